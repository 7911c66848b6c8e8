package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CheckoutsTotal counts checkout attempts by outcome
	// (created, empty_cart, unavailable, insufficient_stock, error).
	CheckoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_checkouts_total",
			Help: "Total number of checkout attempts",
		},
		[]string{"result"},
	)

	// WebhooksTotal counts payment webhook deliveries by provider and outcome
	// (settled, duplicate, ignored, failed, not_found, amount_mismatch, malformed).
	WebhooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_payment_webhooks_total",
			Help: "Total number of payment webhook deliveries",
		},
		[]string{"provider", "result"},
	)

	// OrderTransitionsTotal counts applied order status transitions.
	OrderTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_order_transitions_total",
			Help: "Total number of applied order status transitions",
		},
		[]string{"to"},
	)
)
