package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/apperr"
	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/redisx"
)

// RedisStorage keeps one JSON snapshot per session and refreshes the TTL
// on every save.
type RedisStorage struct {
	RDB *redis.Client
}

var _ Storage = (*RedisStorage)(nil)

func (r *RedisStorage) Load(ctx context.Context, session string) (Snapshot, bool, error) {
	b, err := r.RDB.Get(ctx, fmt.Sprintf(redisx.KeyCart, session)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("%w: load cart: %w", apperr.ErrPersistence, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		// a corrupt snapshot is treated as an empty cart
		return Snapshot{}, false, nil
	}
	return snap, true, nil
}

func (r *RedisStorage) Save(ctx context.Context, session string, snap Snapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := r.RDB.Set(ctx, fmt.Sprintf(redisx.KeyCart, session), b, redisx.TTLCart).Err(); err != nil {
		return fmt.Errorf("%w: save cart: %w", apperr.ErrPersistence, err)
	}
	return nil
}
