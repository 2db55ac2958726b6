package worker

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Dispatcher enqueues async jobs into Redis lists. It is the async
// AggregateScheduler and the ReceiptQueue of the service layer.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// ScheduleRecompute never fails the caller: the customer stays flagged stale
// and the reconcile cron picks it up.
func (d *Dispatcher) ScheduleRecompute(ctx context.Context, ownerID, customerID uuid.UUID) {
	payload := AggregateJobPayload{OwnerID: ownerID.String(), CustomerID: customerID.String()}
	if err := d.enqueue(ctx, QueueAggregates, JobAggregates, payload); err != nil {
		log.Warn().Err(err).Str("customer_id", customerID.String()).Msg("dispatcher: aggregate job not queued, left stale")
	}
}

func (d *Dispatcher) EnqueueReceipt(ctx context.Context, ownerID, orderID uuid.UUID) error {
	return d.enqueue(ctx, QueueReceipt, JobReceipt, ReceiptJobPayload{OwnerID: ownerID.String(), OrderID: orderID.String()})
}

func (d *Dispatcher) EnqueueEmail(ctx context.Context, payload EmailJobPayload) error {
	return d.enqueue(ctx, QueueEmail, JobEmail, payload)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(Job{Type: jobType, Payload: data})
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}
