package infra

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus collectors, exposed on /metrics via promhttp.
var (
	OrdersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "retailpos",
		Name:      "orders_created_total",
		Help:      "Orders committed, by payment status and origin (pos|draft).",
	}, []string{"payment_status", "origin"})

	IdempotentReplays = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "retailpos",
		Name:      "idempotent_replays_total",
		Help:      "Order submissions answered with a previously created order.",
	})

	Repayments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "retailpos",
		Name:      "repayments_total",
		Help:      "Repayment attempts by outcome (applied or rejection code).",
	}, []string{"outcome"})

	RepaymentLockWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "retailpos",
		Name:      "repayment_lock_wait_seconds",
		Help:      "Time spent waiting for the per-debt lock.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
	})

	AggregateRecomputes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "retailpos",
		Name:      "customer_aggregate_recomputes_total",
		Help:      "Customer aggregate recomputations by result.",
	}, []string{"result"})

	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "retailpos",
		Name:      "jobs_processed_total",
		Help:      "Background jobs by type and result (ok|retry|dlq).",
	}, []string{"type", "result"})

	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "retailpos",
		Name:      "circuit_breaker_state",
		Help:      "0=closed 1=open 2=half-open.",
	}, []string{"name"})
)
