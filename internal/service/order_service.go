package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"retailpos/internal/dto"
	"retailpos/internal/infra"
	"retailpos/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const maxIdempotencyKeyLen = 128

type OrderService interface {
	CreateOrder(ctx context.Context, actor Actor, idempotencyKey string, cmd OrderCommand) (*dto.OrderResponse, error)
	GetOrder(ctx context.Context, actor Actor, id uuid.UUID) (*dto.OrderResponse, error)
	ListOrders(ctx context.Context, actor Actor, filter dto.OrderFilter) (*dto.OrderListResponse, error)
	CancelOrder(ctx context.Context, actor Actor, id uuid.UUID, reason string) (*dto.OrderResponse, error)
}

type orderService struct {
	*orderWriter
}

func NewOrderService(deps OrderDeps) OrderService {
	if deps.Guard == nil {
		deps.Guard = NewIdempotencyGuard(nil, 0, 0)
	}
	return &orderService{orderWriter: newOrderWriter(deps)}
}

// OrderCommandFromRequest turns the wire DTO into the builder's command.
func OrderCommandFromRequest(req dto.CreateOrderRequest) (OrderCommand, error) {
	cmd := OrderCommand{
		TaxRate:        req.TaxRate,
		DiscountAmount: req.DiscountAmount,
		PaymentMethod:  model.PaymentMethod(req.PaymentMethod),
		PaidAmount:     req.PaidAmount,
		IsDebt:         req.IsDebt,
		Notes:          req.Notes,
	}
	if req.CustomerID != nil && *req.CustomerID != "" {
		id, err := uuid.Parse(*req.CustomerID)
		if err != nil {
			return cmd, invalid("customer_id", "invalid uuid %q", *req.CustomerID)
		}
		cmd.CustomerID = &id
	}
	if req.DueDate != nil && *req.DueDate != "" {
		d, err := time.Parse("2006-01-02", *req.DueDate)
		if err != nil {
			return cmd, invalid("due_date", "due_date must be YYYY-MM-DD, got %q", *req.DueDate)
		}
		cmd.DueDate = &d
	}
	for i, it := range req.Items {
		pid, err := uuid.Parse(it.ProductID)
		if err != nil {
			return cmd, invalid(fmt.Sprintf("items[%d].product_id", i), "invalid uuid %q", it.ProductID)
		}
		uid, err := uuid.Parse(it.UnitID)
		if err != nil {
			return cmd, invalid(fmt.Sprintf("items[%d].unit_id", i), "invalid uuid %q", it.UnitID)
		}
		cmd.Lines = append(cmd.Lines, OrderLineInput{
			ProductID:       pid,
			UnitID:          uid,
			ProductName:     it.ProductName,
			Quantity:        it.Quantity,
			UnitPrice:       it.UnitPrice,
			DiscountPercent: it.DiscountPercent,
		})
	}
	return cmd, nil
}

// ── CreateOrder ───────────────────────────────────────────────────────────────
//   1. Idempotency guard (replay returns the original order untouched)
//   2. Pre-flight outside TX: price + allocate, customer lookup, inventory read
//   3. BEGIN TX: order code, order + lines, debt + counter payment, customer stale
//   4. COMMIT, then schedule aggregates, enqueue receipt, publish ORDER_CREATED

func (s *orderService) CreateOrder(ctx context.Context, actor Actor, idempotencyKey string, cmd OrderCommand) (*dto.OrderResponse, error) {
	key := strings.TrimSpace(idempotencyKey)
	if len(key) > maxIdempotencyKeyLen {
		return nil, invalid("idempotency_key", "idempotency key longer than %d characters", maxIdempotencyKeyLen)
	}
	if key == "" {
		order, warning, err := s.create(ctx, actor, cmd, orderMeta{origin: "pos"})
		if err != nil {
			return nil, err
		}
		return s.respond(order, warning, false, cmd), nil
	}

	var warning *string
	lookup := func(ctx context.Context) (*model.Order, error) {
		o, err := s.Orders.FindByIdempotencyKey(ctx, actor.OwnerID, key)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return o, nil
	}
	order, replayed, err := s.Guard.Do(ctx, ScopedKey(actor.OwnerID, key), lookup, func(ctx context.Context) (*model.Order, error) {
		o, w, err := s.create(ctx, actor, cmd, orderMeta{idempotencyKey: &key, origin: "pos"})
		warning = w
		return o, err
	})
	if err != nil {
		return nil, err
	}
	if replayed {
		logReplay(actor, order, key)
		return s.respond(order, nil, true, cmd), nil
	}
	return s.respond(order, warning, false, cmd), nil
}

func (s *orderService) create(ctx context.Context, actor Actor, cmd OrderCommand, meta orderMeta) (*model.Order, *string, error) {
	built, err := s.Pricing.Build(cmd)
	if err != nil {
		return nil, nil, err
	}

	var customer *model.Customer
	if cmd.CustomerID != nil {
		if customer, err = s.loadCustomer(ctx, nil, actor, *cmd.CustomerID); err != nil {
			return nil, nil, err
		}
	} else if built.Allocation.CreatesDebt() {
		return nil, nil, invalid("customer_id",
			"a customer is required to carry the unpaid %s of this order", built.Allocation.Remaining)
	}

	if err := s.checkAvailability(ctx, actor, built); err != nil {
		return nil, nil, err
	}

	var order *model.Order
	var warning *string
	txErr := runTx(ctx, s.Orders.DB(), func(tx *gorm.DB) error {
		o, w, err := s.persist(ctx, tx, actor, cmd, built, customer, meta)
		if err != nil {
			return err
		}
		order, warning = o, w
		return nil
	})
	if txErr != nil {
		return nil, nil, txErr
	}

	s.afterCommit(ctx, actor, order, meta.origin)
	return order, warning, nil
}

// respond maps the order and attaches the values that are only known at
// creation time (change, credit warning).
func (s *orderService) respond(order *model.Order, warning *string, replayed bool, cmd OrderCommand) *dto.OrderResponse {
	resp := orderToResponse(order, s.now())
	resp.Replayed = replayed
	resp.CreditWarning = warning
	if !replayed && !cmd.IsDebt && cmd.PaidAmount.GreaterThan(order.TotalAmount) {
		resp.ChangeAmount = cmd.PaidAmount.Sub(order.TotalAmount)
	}
	return resp
}

// ── GetOrder / ListOrders ─────────────────────────────────────────────────────

func (s *orderService) GetOrder(ctx context.Context, actor Actor, id uuid.UUID) (*dto.OrderResponse, error) {
	o, err := s.Orders.FindByID(ctx, actor.OwnerID, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("order", id)
	}
	if err != nil {
		return nil, err
	}
	return orderToResponse(o, s.now()), nil
}

// ListOrders returns active orders newest first unless include_cancelled is set.
func (s *orderService) ListOrders(ctx context.Context, actor Actor, filter dto.OrderFilter) (*dto.OrderListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 50
	}
	if filter.Limit > 200 {
		filter.Limit = 200
	}
	orders, total, err := s.Orders.List(ctx, actor.OwnerID, filter)
	if err != nil {
		return nil, err
	}
	now := s.now()
	data := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		data = append(data, *orderToResponse(&orders[i], now))
	}
	return &dto.OrderListResponse{Data: data, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

// ── CancelOrder ───────────────────────────────────────────────────────────────
// Terminal. The debt is voided, never deleted; both rows stay for audit.

func (s *orderService) CancelOrder(ctx context.Context, actor Actor, id uuid.UUID, reason string) (*dto.OrderResponse, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, invalid("reason", "a cancellation reason is required")
	}
	order, err := s.Orders.FindByID(ctx, actor.OwnerID, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("order", id)
	}
	if err != nil {
		return nil, err
	}
	if order.CancelledAt != nil {
		return nil, conflict(CodeOrderAlreadyCancelled, "order %s was already cancelled", order.OrderCode)
	}

	now := s.now()
	txErr := runTx(ctx, s.Orders.DB(), func(tx *gorm.DB) error {
		if order.Debt != nil {
			debt, err := s.Debts.LockByID(ctx, tx, actor.OwnerID, order.Debt.ID)
			if err != nil {
				return err
			}
			n, err := s.Debts.CountPayments(ctx, tx, debt.ID)
			if err != nil {
				return err
			}
			var counter int64
			if order.PaymentStatus == model.PaymentPartial {
				counter = 1
			}
			if n > counter {
				return conflict(CodeOrderHasPayments,
					"order %s has %d repayment(s) recorded against its debt and cannot be cancelled", order.OrderCode, n-counter)
			}
			if err := s.Debts.Void(ctx, tx, debt.ID, now); err != nil {
				return err
			}
			order.Debt.VoidedAt = &now
		}
		if err := s.Orders.MarkCancelled(ctx, tx, order.ID, now, reason); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return conflict(CodeOrderAlreadyCancelled, "order %s was already cancelled", order.OrderCode)
			}
			return err
		}
		if order.CustomerID != nil {
			return s.Customers.MarkStale(ctx, tx, actor.OwnerID, *order.CustomerID)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	order.CancelledAt = &now
	order.CancelReason = &reason
	log.Info().Str("order_id", order.ID.String()).Str("owner_id", actor.OwnerID.String()).Str("reason", reason).Msg("order cancelled")
	if order.CustomerID != nil && s.Aggregates != nil {
		s.Aggregates.ScheduleRecompute(ctx, actor.OwnerID, *order.CustomerID)
	}
	resp := orderToResponse(order, now)
	s.publish(ctx, actor.OwnerID, EventOrderCancelled, resp)
	return resp, nil
}

func logReplay(actor Actor, order *model.Order, key string) {
	infra.IdempotentReplays.Inc()
	log.Info().
		Str("order_id", order.ID.String()).
		Str("owner_id", actor.OwnerID.String()).
		Str("idempotency_key", key).
		Msg("idempotent replay")
}

// ── Mapping ───────────────────────────────────────────────────────────────────

const timestampLayout = "2006-01-02T15:04:05Z07:00"

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02")
	return &s
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(timestampLayout)
	return &s
}

func orderToResponse(o *model.Order, now time.Time) *dto.OrderResponse {
	items := make([]dto.OrderLineResponse, 0, len(o.Items))
	for _, l := range o.Items {
		items = append(items, dto.OrderLineResponse{
			ProductID:       l.ProductID.String(),
			UnitID:          l.UnitID.String(),
			ProductName:     l.ProductName,
			Quantity:        l.Quantity,
			UnitPrice:       l.UnitPrice,
			DiscountPercent: l.DiscountPercent,
			LineTotal:       l.LineTotal,
		})
	}
	resp := &dto.OrderResponse{
		ID:             o.ID.String(),
		OrderCode:      o.OrderCode,
		Items:          items,
		TaxRate:        o.TaxRate,
		Subtotal:       o.Subtotal,
		TaxAmount:      o.TaxAmount,
		DiscountAmount: o.DiscountAmount,
		TotalAmount:    o.TotalAmount,
		PaidAmount:     o.PaidAmount,
		PaymentStatus:  string(o.PaymentStatus),
		PaymentMethod:  string(o.PaymentMethod),
		Notes:          o.Notes,
		CancelledAt:    formatTime(o.CancelledAt),
		CancelReason:   o.CancelReason,
		CreatedAt:      o.CreatedAt.UTC().Format(timestampLayout),
	}
	if o.CustomerID != nil {
		id := o.CustomerID.String()
		resp.CustomerID = &id
	}
	if o.Customer != nil {
		resp.CustomerName = o.Customer.FullName
	}
	if o.Debt != nil {
		resp.Debt = &dto.DebtSummary{
			ID:              o.Debt.ID.String(),
			TotalAmount:     o.Debt.TotalAmount,
			PaidAmount:      o.Debt.PaidAmount,
			RemainingAmount: o.Debt.RemainingAmount,
			Status:          string(EffectiveStatus(o.Debt, now)),
			DueDate:         formatDate(o.Debt.DueDate),
		}
	}
	return resp
}
