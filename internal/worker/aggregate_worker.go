package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"retailpos/internal/service"

	"github.com/google/uuid"
)

type AggregateJobPayload struct {
	OwnerID    string `json:"owner_id"`
	CustomerID string `json:"customer_id"`
}

// AggregateWorker recomputes customer totals queued by the Dispatcher.
type AggregateWorker struct {
	customers service.CustomerService
}

func NewAggregateWorker(customers service.CustomerService) *AggregateWorker {
	return &AggregateWorker{customers: customers}
}

func (w *AggregateWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload AggregateJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Permanent(fmt.Errorf("aggregate_worker: invalid payload: %w", err))
	}
	ownerID, err := uuid.Parse(payload.OwnerID)
	if err != nil {
		return Permanent(fmt.Errorf("aggregate_worker: owner_id: %w", err))
	}
	customerID, err := uuid.Parse(payload.CustomerID)
	if err != nil {
		return Permanent(fmt.Errorf("aggregate_worker: customer_id: %w", err))
	}
	err = w.customers.RecomputeAggregates(ctx, ownerID, customerID)
	if errors.Is(err, service.ErrNotFound) {
		return Permanent(err)
	}
	return err
}
