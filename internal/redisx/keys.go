package redisx

import "time"

const (
	// Checkout replay: idem:checkout:{user_id}:{idempotency_key} -> {"order_id": "...", "checkout_url": "..."}
	KeyIdemCheckout = "idem:checkout:%d:%s"

	// Cache status order: order_status:{user_id}:{order_ref} -> "approved"
	KeyOrderStatus = "order_status:%d:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
