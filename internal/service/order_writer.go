package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"retailpos/internal/infra"
	"retailpos/internal/model"
	"retailpos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderDeps wires the order pipeline. Inventory, Aggregates, Receipts and
// Events may be nil.
type OrderDeps struct {
	Orders      repository.OrderRepository
	Debts       repository.DebtRepository
	Customers   repository.CustomerRepository
	Inventory   InventoryChecker
	Guard       *IdempotencyGuard
	Aggregates  AggregateScheduler
	Receipts    ReceiptQueue
	Events      EventPublisher
	Pricing     Pricing
	DebtDueDays int
}

// orderMeta is what differs between a POS submission and a draft confirmation.
type orderMeta struct {
	idempotencyKey *string
	draftID        *uuid.UUID
	origin         string // pos | draft
}

// orderWriter is the Cart|Draft → Builder → Allocator → Ledger → Order path
// shared by OrderService and DraftService.
type orderWriter struct {
	OrderDeps
	now func() time.Time
}

func newOrderWriter(deps OrderDeps) *orderWriter {
	if deps.DebtDueDays <= 0 {
		deps.DebtDueDays = 30
	}
	return &orderWriter{OrderDeps: deps, now: time.Now}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// loadCustomer resolves an explicit customer id outside any transaction.
func (w *orderWriter) loadCustomer(ctx context.Context, tx *gorm.DB, actor Actor, id uuid.UUID) (*model.Customer, error) {
	c, err := w.Customers.FindByID(ctx, tx, actor.OwnerID, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, invalid("customer_id", "customer %s does not exist", id)
	}
	if err != nil {
		return nil, &DependencyError{Dependency: "customer lookup", Err: err}
	}
	if !c.IsActive {
		return nil, invalid("customer_id", "customer %s is inactive", c.CustomerCode)
	}
	return c, nil
}

// checkAvailability asks the inventory service before anything is written.
func (w *orderWriter) checkAvailability(ctx context.Context, actor Actor, built *BuiltOrder) error {
	if w.Inventory == nil {
		return nil
	}
	lines := make([]infra.AvailabilityLine, 0, len(built.Lines))
	for _, l := range built.Lines {
		lines = append(lines, infra.AvailabilityLine{ProductID: l.ProductID, UnitID: l.UnitID, Quantity: l.Quantity})
	}
	shortages, err := w.Inventory.CheckAvailability(ctx, actor.OwnerID, lines)
	if err != nil {
		return &DependencyError{Dependency: "inventory", Err: err}
	}
	if len(shortages) > 0 {
		sh := shortages[0]
		name := sh.ProductID.String()
		if sh.Index >= 0 && sh.Index < len(built.Lines) && built.Lines[sh.Index].ProductName != "" {
			name = built.Lines[sh.Index].ProductName
		}
		return invalid(fmt.Sprintf("items[%d].quantity", sh.Index),
			"requested %s of %s but only %s available", sh.Requested, name, sh.Available)
	}
	return nil
}

// creditWarning is advisory: the order is never blocked by the limit.
func (w *orderWriter) creditWarning(ctx context.Context, actor Actor, c *model.Customer, newDebt decimal.Decimal) *string {
	if c == nil || !newDebt.IsPositive() || !c.CreditLimit.IsPositive() {
		return nil
	}
	open, err := w.Debts.OpenByCustomer(ctx, actor.OwnerID, c.ID)
	if err != nil {
		log.Warn().Err(err).Str("customer_id", c.ID.String()).Msg("credit check skipped")
		return nil
	}
	current := sumRemaining(open)
	after := current.Add(newDebt)
	if !after.GreaterThan(c.CreditLimit) {
		return nil
	}
	msg := fmt.Sprintf("credit limit %s exceeded: current debt %s + new debt %s = %s",
		c.CreditLimit, current, newDebt, after)
	return &msg
}

// persist writes order, lines, optional debt (with the counter payment) and
// marks the customer's aggregates stale, all inside tx.
func (w *orderWriter) persist(ctx context.Context, tx *gorm.DB, actor Actor, cmd OrderCommand, built *BuiltOrder, customer *model.Customer, meta orderMeta) (*model.Order, *string, error) {
	alloc := built.Allocation
	if alloc.CreatesDebt() && customer == nil {
		return nil, nil, invalid("customer_id",
			"a customer is required to carry the unpaid %s of this order", alloc.Remaining)
	}

	now := w.now()
	code, err := w.Orders.NextOrderCode(ctx, tx, now)
	if err != nil {
		return nil, nil, err
	}

	order := &model.Order{
		ID:             uuid.New(),
		OwnerID:        actor.OwnerID,
		OrderCode:      code,
		CreatedBy:      actor.UserID,
		IdempotencyKey: meta.idempotencyKey,
		DraftID:        meta.draftID,
		TaxRate:        built.TaxRate,
		DiscountAmount: built.DiscountAmount,
		Subtotal:       built.Subtotal,
		TaxAmount:      built.TaxAmount,
		TotalAmount:    built.Total,
		PaidAmount:     alloc.Paid,
		PaymentStatus:  alloc.Status,
		PaymentMethod:  cmd.PaymentMethod,
		Notes:          cmd.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if customer != nil {
		order.CustomerID = &customer.ID
	}
	for _, l := range built.Lines {
		order.Items = append(order.Items, model.OrderLine{
			ID:              uuid.New(),
			OrderID:         order.ID,
			ProductID:       l.ProductID,
			UnitID:          l.UnitID,
			ProductName:     l.ProductName,
			Quantity:        l.Quantity,
			UnitPrice:       l.UnitPrice,
			DiscountPercent: l.DiscountPercent,
			LineTotal:       l.LineTotal,
		})
	}
	if err := w.Orders.Create(ctx, tx, order); err != nil {
		return nil, nil, err
	}

	var warning *string
	if alloc.CreatesDebt() {
		warning = w.creditWarning(ctx, actor, customer, alloc.Remaining)

		due := truncateDay(now).AddDate(0, 0, w.DebtDueDays)
		if cmd.DueDate != nil {
			due = truncateDay(*cmd.DueDate)
		}
		debtNote := "From order " + code
		debt := &model.Debt{
			ID:              uuid.New(),
			OwnerID:         actor.OwnerID,
			OrderID:         order.ID,
			CustomerID:      customer.ID,
			TotalAmount:     built.Total,
			PaidAmount:      alloc.Paid,
			RemainingAmount: alloc.Remaining,
			Status:          model.DebtPending,
			DueDate:         &due,
			Notes:           &debtNote,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		// Σ payments must equal paid_amount from the first moment.
		if alloc.Paid.IsPositive() {
			debt.Status = model.DebtPartial
			note := "paid at counter with order " + code
			debt.Payments = []model.Payment{{
				ID:          uuid.New(),
				DebtID:      debt.ID,
				Amount:      alloc.Paid,
				Method:      debtMethodFor(cmd.PaymentMethod),
				Notes:       &note,
				PaymentDate: now,
				CreatedBy:   actor.UserID,
				CreatedAt:   now,
			}}
		}
		if err := w.Debts.Create(ctx, tx, debt); err != nil {
			return nil, nil, err
		}
		order.Debt = debt
	}

	if customer != nil {
		if err := w.Customers.MarkStale(ctx, tx, actor.OwnerID, customer.ID); err != nil {
			return nil, nil, err
		}
		order.Customer = customer
	}
	return order, warning, nil
}

// afterCommit runs only once the order is durable.
func (w *orderWriter) afterCommit(ctx context.Context, actor Actor, order *model.Order, origin string) {
	infra.OrdersCreated.WithLabelValues(string(order.PaymentStatus), origin).Inc()
	log.Info().
		Str("order_id", order.ID.String()).
		Str("order_code", order.OrderCode).
		Str("owner_id", actor.OwnerID.String()).
		Str("payment_status", string(order.PaymentStatus)).
		Str("total", order.TotalAmount.String()).
		Str("origin", origin).
		Msg("order created")

	if order.CustomerID != nil && w.Aggregates != nil {
		w.Aggregates.ScheduleRecompute(ctx, actor.OwnerID, *order.CustomerID)
	}
	if w.Receipts != nil {
		if err := w.Receipts.EnqueueReceipt(ctx, actor.OwnerID, order.ID); err != nil {
			log.Warn().Err(err).Str("order_id", order.ID.String()).Msg("receipt job not enqueued")
		}
	}
	w.publish(ctx, actor.OwnerID, EventOrderCreated, orderToResponse(order, w.now()))
}

func (w *orderWriter) publish(ctx context.Context, ownerID uuid.UUID, eventType string, payload interface{}) {
	if w.Events == nil {
		return
	}
	if err := w.Events.Publish(ctx, ownerID, eventType, payload); err != nil {
		log.Warn().Err(err).Str("event", eventType).Msg("event not published")
	}
}
