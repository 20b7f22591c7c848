package redisx

import "time"

const (
	// Catalogue read-through cache: catalog:product:{product_id} -> JSON product metadata (no stock)
	KeyProduct = "catalog:product:%s"

	// Cache status order: order_status:{order_id} -> {"status": "...", "updated_at": "..."}
	KeyOrderStatus = "order_status:%s"

	// Lease held by the reservation sweeper so only one worker deletes at a time
	KeySweepLock = "lock:reservation-sweep"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
