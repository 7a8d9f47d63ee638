package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookEvents counts webhook deliveries by terminal outcome.
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "teamdesk",
		Subsystem: "webhooks",
		Name:      "events_total",
		Help:      "Webhook deliveries by outcome.",
	}, []string{"provider", "outcome"})

	// RateLimitDecisions counts limiter decisions, including fail-open passes.
	RateLimitDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "teamdesk",
		Subsystem: "ratelimit",
		Name:      "decisions_total",
		Help:      "Rate limiter decisions by bucket and result.",
	}, []string{"bucket", "decision"})
)
