package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed order creations",
	}, []string{"reason"})

	OrdersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Total number of cancelled orders",
	})

	StockRestoredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_restored_units_total",
		Help: "Total units of stock restored by cancellations",
	})

	PaymentEventsReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_events_received_total",
		Help: "Total payment processor notifications received",
	}, []string{"type"})

	PaymentEventsDuplicateTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_events_duplicate_total",
		Help: "Total redelivered payment events (matched by event id)",
	})

	PaymentEventsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_events_failed_total",
		Help: "Total payment events recorded but not applied",
	}, []string{"reason"})

	PaymentTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_transitions_total",
		Help: "Total payment status transitions applied",
	}, []string{"to"})

	WebhookProcessingLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "webhook_processing_latency_seconds",
		Help:    "Latency of webhook receipt and reconciliation",
		Buckets: prometheus.DefBuckets,
	})

	PaymentSyncTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_sync_total",
		Help: "Total fallback payment status pulls",
	}, []string{"outcome"})

	ReconcileSweepRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_sweep_runs_total",
		Help: "Total reconciliation sweep runs",
	})

	ReconcileSweepSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_sweep_skipped_total",
		Help: "Sweep ticks skipped because a run was in flight or locked elsewhere",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
