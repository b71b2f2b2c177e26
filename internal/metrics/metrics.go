// Package metrics holds the Prometheus collectors shared across the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mealplan"

var (
	// WebhookRequestsTotal counts Stripe webhook requests by event type and status.
	WebhookRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "billing",
		Name:      "webhook_requests_total",
		Help:      "Total Stripe webhook requests by event type and HTTP status.",
	}, []string{"event_type", "status"})

	// WebhookDuration tracks Stripe webhook processing latency.
	WebhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "billing",
		Name:      "webhook_duration_seconds",
		Help:      "Stripe webhook processing duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"event_type"})

	// ReconcileTotal counts billing events applied to profiles by kind and outcome.
	ReconcileTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "billing",
		Name:      "reconcile_total",
		Help:      "Billing events reconciled against profiles by kind and outcome.",
	}, []string{"kind", "outcome"})

	// CheckoutSessionsTotal counts checkout session attempts by plan and outcome.
	CheckoutSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "billing",
		Name:      "checkout_sessions_total",
		Help:      "Checkout session attempts by plan and outcome.",
	}, []string{"plan", "outcome"})

	// CancellationsTotal counts user-initiated cancellations by outcome.
	CancellationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "billing",
		Name:      "cancellations_total",
		Help:      "User-initiated subscription cancellations by outcome.",
	}, []string{"outcome"})

	// MealPlansTotal counts meal plan generation requests by outcome.
	MealPlansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "mealplan",
		Name:      "generated_total",
		Help:      "Meal plan generation requests by outcome.",
	}, []string{"outcome"})

	// NotificationsTotal counts outbound notifications by channel and outcome.
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notify",
		Name:      "sent_total",
		Help:      "Outbound notifications by channel and outcome.",
	}, []string{"channel", "outcome"})

	// LiveConnections tracks open websocket connections.
	LiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "live",
		Name:      "connections",
		Help:      "Open websocket connections.",
	})
)
