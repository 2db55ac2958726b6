package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"retailpos/internal/infra"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueAggregates = "jobs:aggregates"
	QueueReceipt    = "jobs:receipt"
	QueueEmail      = "jobs:email"

	JobAggregates = "aggregates"
	JobReceipt    = "receipt"
	JobEmail      = "email"

	maxJobAttempts = 3
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Handler processes one job payload. Wrap an error with Permanent to skip
// the remaining attempts and go straight to the DLQ.
type Handler func(ctx context.Context, payload json.RawMessage) error

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func isPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Pool consumes the job queues with BRPOP and dispatches by Job.Type.
type Pool struct {
	rdb      *redis.Client
	handlers map[string]Handler
	queues   []string
	// baseBackoff doubles on each retry: 1s, 2s with the default.
	baseBackoff time.Duration
	deadLetter  func(ctx context.Context, queue, jobType string, payload json.RawMessage, reason string, attempts int)
}

func NewPool(rdb *redis.Client, handlers map[string]Handler) *Pool {
	p := &Pool{
		rdb:         rdb,
		handlers:    handlers,
		queues:      []string{QueueAggregates, QueueReceipt, QueueEmail},
		baseBackoff: time.Second,
	}
	p.deadLetter = func(ctx context.Context, queue, jobType string, payload json.RawMessage, reason string, attempts int) {
		SendToDLQ(ctx, rdb, queue, jobType, payload, reason, attempts)
	}
	return p
}

// Start launches numWorkers goroutines blocked on BRPOP. They exit when ctx
// is cancelled.
func (p *Pool) Start(ctx context.Context, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go p.runWorker(ctx, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func (p *Pool) runWorker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// waits up to 5s then loops to check ctx
			result, err := p.rdb.BRPop(ctx, 5*time.Second, p.queues...).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					log.Warn().Err(err).Int("worker", id).Msg("worker: BRPOP failed")
					time.Sleep(time.Second)
				}
				continue
			}
			if len(result) < 2 {
				continue
			}
			p.processJob(ctx, result[0], result[1])
		}
	}
}

func (p *Pool) processJob(ctx context.Context, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		p.deadLetter(ctx, queue, "unknown", json.RawMessage(fmt.Sprintf("%q", raw)), "malformed envelope: "+err.Error(), 0)
		infra.JobsProcessed.WithLabelValues("unknown", "dlq").Inc()
		return
	}
	handler, ok := p.handlers[job.Type]
	if !ok {
		p.deadLetter(ctx, queue, job.Type, job.Payload, "no handler for job type", 0)
		infra.JobsProcessed.WithLabelValues(job.Type, "dlq").Inc()
		return
	}

	attempts := 0
	err := withRetry(ctx, maxJobAttempts, p.baseBackoff, func(attempt int) error {
		attempts = attempt + 1
		err := handler(ctx, job.Payload)
		if err != nil && !isPermanent(err) && attempts < maxJobAttempts {
			infra.JobsProcessed.WithLabelValues(job.Type, "retry").Inc()
			log.Warn().Err(err).Str("type", job.Type).Int("attempt", attempts).Msg("job failed, retrying")
		}
		return err
	})
	if err != nil {
		p.deadLetter(ctx, queue, job.Type, job.Payload, err.Error(), attempts)
		infra.JobsProcessed.WithLabelValues(job.Type, "dlq").Inc()
		return
	}
	infra.JobsProcessed.WithLabelValues(job.Type, "ok").Inc()
	log.Debug().Str("type", job.Type).Str("queue", queue).Msg("job processed")
}

// withRetry calls fn up to maxAttempts times with exponential backoff
// starting at base. A Permanent error stops immediately.
func withRetry(ctx context.Context, maxAttempts int, base time.Duration, fn func(attempt int) error) error {
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if i > 0 {
			wait := base * time.Duration(1<<uint(i-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		err := fn(i)
		if err == nil {
			return nil
		}
		lastErr = err
		if isPermanent(err) {
			return err
		}
	}
	return lastErr
}
