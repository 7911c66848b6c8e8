package redisx

import "time"

const (
	// Cache the serialized order detail by order code for the read endpoint:
	// order_status:{order_code} -> order JSON. Dropped on every transition and
	// on payment settlement; the next read reloads from the DB.
	KeyOrderStatus = "order_status:%s"

	// Cache payment state for the client polling endpoint:
	// payment_status:{request_id} -> serialized status view
	KeyPaymentStatus = "payment_status:%s"

	// Fast-path dedup of webhook deliveries by provider transaction id:
	// dedup:webhook:{provider}:{provider_tx_id}
	// The conditional UPDATE in the payments repo stays the source of truth.
	KeyWebhookDedup = "dedup:webhook:%s:%s"

	// Dedup notification sends in the notifier: dedup:notify:{event_id}
	KeyNotifyDedup = "dedup:notify:%s"
)

var (
	TTLStatusCache  = 5 * time.Minute
	TTLWebhookDedup = 48 * time.Hour
	TTLNotifyDedup  = 48 * time.Hour
)
