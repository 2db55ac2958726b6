package service

import (
	"context"
	"time"

	"retailpos/internal/infra"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Actor is the authenticated caller. OwnerID is the tenant and scopes every
// query and every idempotency key.
type Actor struct {
	OwnerID uuid.UUID
	UserID  uuid.UUID
}

// Event types published after commit.
const (
	EventOrderCreated   = "ORDER_CREATED"
	EventOrderCancelled = "ORDER_CANCELLED"
	EventDebtRepaid     = "DEBT_REPAID"
	EventDraftConfirmed = "DRAFT_CONFIRMED"
)

// InventoryChecker is the external stock read. infra.InventoryClient implements it.
type InventoryChecker interface {
	CheckAvailability(ctx context.Context, ownerID uuid.UUID, lines []infra.AvailabilityLine) ([]infra.Shortage, error)
}

// EventPublisher is implemented by infra.EventBus.
type EventPublisher interface {
	Publish(ctx context.Context, ownerID uuid.UUID, eventType string, payload interface{}) error
}

// KeyLocker is a cross-instance in-flight lock. infra.RedisKeyLocker implements it.
type KeyLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}

// AggregateScheduler runs a customer aggregate recompute after a commit,
// either inline or through the job queue.
type AggregateScheduler interface {
	ScheduleRecompute(ctx context.Context, ownerID, customerID uuid.UUID)
}

// ReceiptQueue renders and mails order receipts in the background.
type ReceiptQueue interface {
	EnqueueReceipt(ctx context.Context, ownerID, orderID uuid.UUID) error
}

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}
