package redisx

import "time"

const (
	// Cached order document served by GET /orders?id=: order:{order_id} -> JSON
	KeyOrderDoc = "order:%s"

	// Status projection: order_status:{order_id} -> hash {status, version, updated_at}
	KeyOrderStatus = "order_status:%s"

	// Dedup of processed work: dedup:{service}:{id}
	KeyDedup = "dedup:%s:%s"

	// Cart/wishlist snapshot per session: cart:{session_id} -> JSON
	KeyCart = "cart:%s"
)

var (
	TTLOrderDoc    = 5 * time.Minute
	TTLStatusCache = 10 * time.Minute // outlives any document it guards
	TTLDedup       = 48 * time.Hour
	TTLCart        = 30 * 24 * time.Hour
)
