package worker

// Background goroutine that recomputes customers whose aggregates were left
// stale, e.g. a lost aggregate job or a crash between commit and recompute.
// It also expires idempotency keys past their replay window and reports
// non-empty dead letter queues.

import (
	"context"
	"time"

	"retailpos/internal/repository"
	"retailpos/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const reconcileBatchSize = 100

type ReconcileCronConfig struct {
	Customers service.CustomerService
	Orders    repository.OrderRepository // optional, enables key expiry
	KeyTTL    time.Duration
	RDB       *redis.Client // optional, enables DLQ reporting
	Interval  time.Duration
	BatchSize int
}

// StartReconcileCron ticks every cfg.Interval until ctx is cancelled.
func StartReconcileCron(ctx context.Context, cfg ReconcileCronConfig) {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = reconcileBatchSize
	}
	go func() {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		log.Info().Dur("interval", cfg.Interval).Msg("reconcile_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("reconcile_cron: shutting down")
				return
			case <-ticker.C:
				reconcileOnce(ctx, cfg)
			}
		}
	}()
}

func reconcileOnce(ctx context.Context, cfg ReconcileCronConfig) {
	fixed, err := cfg.Customers.ReconcileStale(ctx, cfg.BatchSize)
	if err != nil {
		log.Error().Err(err).Msg("reconcile_cron: failed to list stale customers")
	} else if fixed > 0 {
		log.Info().Int("count", fixed).Msg("reconcile_cron: stale aggregates recomputed")
	}

	if cfg.Orders != nil && cfg.KeyTTL > 0 {
		n, err := cfg.Orders.ExpireIdempotencyKeys(ctx, time.Now().Add(-cfg.KeyTTL), cfg.BatchSize)
		if err != nil {
			log.Error().Err(err).Msg("reconcile_cron: idempotency key expiry failed")
		} else if n > 0 {
			log.Info().Int64("count", n).Msg("reconcile_cron: idempotency keys expired")
		}
	}

	if cfg.RDB == nil {
		return
	}
	for _, q := range []string{QueueAggregates, QueueReceipt, QueueEmail} {
		n, err := DLQLength(ctx, cfg.RDB, q)
		if err != nil {
			log.Debug().Err(err).Str("queue", q).Msg("reconcile_cron: DLQ length unavailable")
			continue
		}
		if n > 0 {
			log.Warn().Str("queue", q).Int64("entries", n).Msg("reconcile_cron: dead letter queue not empty")
		}
	}
}
