package redisx

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func Exists(ctx context.Context, rdb *redis.Client, key string) (bool, error) {
	n, err := rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// OrderCache is a best-effort read cache; all methods are no-ops on a nil
// receiver or client, and write errors are dropped.
//
// Documents are guarded by the status projection: every write path records
// the order version it produced in order_status:<id>, and a document older
// than that version is neither stored nor served.
type OrderCache struct {
	RDB *redis.Client
}

// StatusDeleted marks a deleted order in the projection. It carries
// VersionDeleted so nothing written later can replace it.
const (
	StatusDeleted  = "deleted"
	VersionDeleted = math.MaxInt32
)

// KEYS[1]=doc KEYS[2]=projection ARGV: doc, version, ttl ms
var setDocScript = redis.NewScript(`
local cur = tonumber(redis.call('HGET', KEYS[2], 'version') or '-1')
if cur > tonumber(ARGV[2]) then
  return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// KEYS[1]=projection KEYS[2]=doc ARGV: status, version, updated_at, ttl ms
var setStatusScript = redis.NewScript(`
local cur = tonumber(redis.call('HGET', KEYS[1], 'version') or '-1')
if cur >= tonumber(ARGV[2]) then
  return 0
end
redis.call('HSET', KEYS[1], 'status', ARGV[1], 'version', ARGV[2], 'updated_at', ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
redis.call('DEL', KEYS[2])
return 1
`)

func (c *OrderCache) enabled() bool { return c != nil && c.RDB != nil }

// Get returns the cached document unless the projection has moved past
// its version; a superseded document is dropped.
func (c *OrderCache) Get(ctx context.Context, orderID string) ([]byte, bool) {
	if !c.enabled() {
		return nil, false
	}
	key := fmt.Sprintf(KeyOrderDoc, orderID)
	b, err := c.RDB.Get(ctx, key).Bytes()
	if err != nil || len(b) == 0 {
		return nil, false
	}
	var doc struct {
		Version int `json:"version"`
	}
	if json.Unmarshal(b, &doc) != nil {
		_ = c.RDB.Del(ctx, key).Err()
		return nil, false
	}
	if p, ok := c.Projection(ctx, orderID); ok && p.Version > doc.Version {
		_ = c.RDB.Del(ctx, key).Err()
		return nil, false
	}
	return b, true
}

// Set stores doc, read from the database at version, unless a newer write
// was already projected.
func (c *OrderCache) Set(ctx context.Context, orderID string, doc []byte, version int) {
	if !c.enabled() {
		return
	}
	_ = setDocScript.Run(ctx, c.RDB,
		[]string{fmt.Sprintf(KeyOrderDoc, orderID), fmt.Sprintf(KeyOrderStatus, orderID)},
		doc, version, TTLOrderDoc.Milliseconds(),
	).Err()
}

// Projection is the last known order status and the version that produced it.
type Projection struct {
	Status    string
	Version   int
	UpdatedAt time.Time
}

func (c *OrderCache) Projection(ctx context.Context, orderID string) (Projection, bool) {
	if !c.enabled() {
		return Projection{}, false
	}
	m, err := c.RDB.HGetAll(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Result()
	if err != nil || len(m) == 0 {
		return Projection{}, false
	}
	v, err := strconv.Atoi(m["version"])
	if err != nil {
		return Projection{}, false
	}
	at, _ := time.Parse(time.RFC3339Nano, m["updated_at"])
	return Projection{Status: m["status"], Version: v, UpdatedAt: at}, true
}

// SetStatus projects status at version and drops the cached document.
// Versions only move forward; a replayed or late write is ignored.
func (c *OrderCache) SetStatus(ctx context.Context, orderID, status string, version int, at time.Time) {
	if !c.enabled() {
		return
	}
	_ = setStatusScript.Run(ctx, c.RDB,
		[]string{fmt.Sprintf(KeyOrderStatus, orderID), fmt.Sprintf(KeyOrderDoc, orderID)},
		status, version, at.UTC().Format(time.RFC3339Nano), TTLStatusCache.Milliseconds(),
	).Err()
}

// Tombstone records that the order is gone so an in-flight read cannot
// re-cache it.
func (c *OrderCache) Tombstone(ctx context.Context, orderID string, at time.Time) {
	c.SetStatus(ctx, orderID, StatusDeleted, VersionDeleted, at)
}

// Dedup remembers processed ids per service for TTLDedup.
type Dedup struct {
	RDB     *redis.Client
	Service string
}

func (d *Dedup) Seen(ctx context.Context, id string) bool {
	if d == nil || d.RDB == nil {
		return false
	}
	ok, _ := Exists(ctx, d.RDB, fmt.Sprintf(KeyDedup, d.Service, id))
	return ok
}

func (d *Dedup) Mark(ctx context.Context, id string) {
	if d == nil || d.RDB == nil {
		return
	}
	_ = d.RDB.Set(ctx, fmt.Sprintf(KeyDedup, d.Service, id), "1", TTLDedup).Err()
}
