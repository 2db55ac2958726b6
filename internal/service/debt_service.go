package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"retailpos/internal/dto"
	"retailpos/internal/infra"
	"retailpos/internal/model"
	"retailpos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DebtService is the ledger read side plus the repayment processor.
type DebtService interface {
	GetDebt(ctx context.Context, actor Actor, id uuid.UUID) (*dto.DebtResponse, error)
	ListDebts(ctx context.Context, actor Actor, filter dto.DebtFilter) (*dto.DebtListResponse, error)
	CustomerDebtSummary(ctx context.Context, actor Actor, customerID uuid.UUID) (*dto.CustomerDebtSummary, error)
	RepayDebt(ctx context.Context, actor Actor, id uuid.UUID, req dto.RepayDebtRequest) (*dto.DebtResponse, error)
}

type debtService struct {
	debts      repository.DebtRepository
	customers  repository.CustomerRepository
	aggregates AggregateScheduler
	events     EventPublisher
	pricing    Pricing
	locks      *keyedMutex
	now        func() time.Time
}

func NewDebtService(
	debts repository.DebtRepository,
	customers repository.CustomerRepository,
	aggregates AggregateScheduler,
	events EventPublisher,
	pricing Pricing,
) DebtService {
	return &debtService{
		debts:      debts,
		customers:  customers,
		aggregates: aggregates,
		events:     events,
		pricing:    pricing,
		locks:      newKeyedMutex(),
		now:        time.Now,
	}
}

// EffectiveStatus classifies a debt at read time. OVERDUE is never stored,
// so a debt can go OVERDUE → PARTIAL → PAID as payments arrive.
func EffectiveStatus(d *model.Debt, now time.Time) model.DebtStatus {
	if d.Status != model.DebtPaid && d.RemainingAmount.IsPositive() &&
		d.DueDate != nil && d.DueDate.Before(truncateDay(now)) {
		return model.DebtOverdue
	}
	return d.Status
}

func daysOverdue(d *model.Debt, now time.Time) int {
	if EffectiveStatus(d, now) != model.DebtOverdue {
		return 0
	}
	return int(truncateDay(now).Sub(truncateDay(*d.DueDate)).Hours() / 24)
}

// storedStatus is the status written after every balance change.
func storedStatus(paid, remaining decimal.Decimal) model.DebtStatus {
	switch {
	case !remaining.IsPositive():
		return model.DebtPaid
	case paid.IsPositive():
		return model.DebtPartial
	default:
		return model.DebtPending
	}
}

func sumRemaining(debts []model.Debt) decimal.Decimal {
	total := decimal.Zero
	for _, d := range debts {
		if d.Status == model.DebtPaid || d.VoidedAt != nil {
			continue
		}
		total = total.Add(d.RemainingAmount)
	}
	return total
}

// ── GetDebt / ListDebts ───────────────────────────────────────────────────────

func (s *debtService) GetDebt(ctx context.Context, actor Actor, id uuid.UUID) (*dto.DebtResponse, error) {
	d, err := s.debts.FindByID(ctx, actor.OwnerID, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("debt", id)
	}
	if err != nil {
		return nil, err
	}
	resp := s.debtToResponse(d, s.now())
	for _, p := range d.Payments {
		resp.Payments = append(resp.Payments, paymentToResponse(p))
	}
	return resp, nil
}

func paymentToResponse(p model.Payment) dto.PaymentResponse {
	return dto.PaymentResponse{
		ID:              p.ID.String(),
		Amount:          p.Amount,
		Method:          string(p.Method),
		ReferenceNumber: p.ReferenceNumber,
		Notes:           p.Notes,
		PaymentDate:     p.PaymentDate.UTC().Format(timestampLayout),
	}
}

func (s *debtService) ListDebts(ctx context.Context, actor Actor, filter dto.DebtFilter) (*dto.DebtListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 20
	}
	if filter.Limit > 200 {
		filter.Limit = 200
	}
	if filter.Sort == "" {
		filter.Sort = "latest"
	}
	now := s.now()
	debts, total, err := s.debts.List(ctx, actor.OwnerID, filter, truncateDay(now))
	if err != nil {
		return nil, err
	}
	data := make([]dto.DebtResponse, 0, len(debts))
	for i := range debts {
		data = append(data, *s.debtToResponse(&debts[i], now))
	}
	return &dto.DebtListResponse{Data: data, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

// CustomerDebtSummary is the exact "dư nợ": summed live from the ledger, not
// read from the possibly stale customer aggregate.
func (s *debtService) CustomerDebtSummary(ctx context.Context, actor Actor, customerID uuid.UUID) (*dto.CustomerDebtSummary, error) {
	c, err := s.customers.FindByID(ctx, nil, actor.OwnerID, customerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("customer", customerID)
	}
	if err != nil {
		return nil, err
	}
	open, err := s.debts.OpenByCustomer(ctx, actor.OwnerID, customerID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := &dto.CustomerDebtSummary{
		CustomerID:  customerID.String(),
		TotalDebt:   sumRemaining(open),
		CreditLimit: c.CreditLimit,
	}
	for i := range open {
		out.OpenDebts++
		if EffectiveStatus(&open[i], now) == model.DebtOverdue {
			out.OverdueDebts++
		}
	}
	if c.CreditLimit.IsPositive() {
		out.RemainingCredit = decimal.Max(decimal.Zero, c.CreditLimit.Sub(out.TotalDebt))
		out.OverLimit = out.TotalDebt.GreaterThan(c.CreditLimit)
	}
	return out, nil
}

// ── RepayDebt ─────────────────────────────────────────────────────────────────
// Serialized per debt twice over: an in-process mutex keeps same-instance
// collectors from queueing on the row lock, and SELECT ... FOR UPDATE makes
// the remaining-amount check authoritative across instances.

func (s *debtService) RepayDebt(ctx context.Context, actor Actor, id uuid.UUID, req dto.RepayDebtRequest) (*dto.DebtResponse, error) {
	if err := s.validateRepayment(req); err != nil {
		infra.Repayments.WithLabelValues(rejectionLabel(err)).Inc()
		return nil, err
	}

	waitStart := time.Now()
	unlock := s.locks.Lock(id.String())
	defer unlock()
	infra.RepaymentLockWait.Observe(time.Since(waitStart).Seconds())

	now := s.now()
	var debt *model.Debt
	var payment model.Payment
	txErr := runTx(ctx, s.debts.DB(), func(tx *gorm.DB) error {
		d, err := s.debts.LockByID(ctx, tx, actor.OwnerID, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("debt", id)
		}
		if err != nil {
			return err
		}
		if d.VoidedAt != nil {
			return conflict(CodeDebtVoided, "debt %s was voided when its order was cancelled", id)
		}
		if d.Status == model.DebtPaid || !d.RemainingAmount.IsPositive() {
			return conflict(CodeDebtAlreadyPaid, "debt is already fully paid; remaining debt is 0")
		}
		if req.Amount.GreaterThan(d.RemainingAmount) {
			return conflict(CodeExceedsRemaining, "amount %s exceeds remaining debt of %s", req.Amount, d.RemainingAmount)
		}

		payment = model.Payment{
			ID:              uuid.New(),
			DebtID:          d.ID,
			Amount:          req.Amount,
			Method:          model.DebtPaymentMethod(req.Method),
			ReferenceNumber: req.ReferenceNumber,
			Notes:           req.Notes,
			PaymentDate:     now,
			CreatedBy:       actor.UserID,
			CreatedAt:       now,
		}
		if err := s.debts.AddPayment(ctx, tx, &payment); err != nil {
			return err
		}

		// The balance is a fold over the payment history, never a counter.
		paid, err := s.debts.SumPayments(ctx, tx, d.ID)
		if err != nil {
			return err
		}
		remaining := d.TotalAmount.Sub(paid)
		if remaining.IsNegative() {
			return fmt.Errorf("debt %s: payments %s exceed total %s", d.ID, paid, d.TotalAmount)
		}
		d.PaidAmount = paid
		d.RemainingAmount = remaining
		d.Status = storedStatus(paid, remaining)
		if err := s.debts.UpdateBalance(ctx, tx, d); err != nil {
			return err
		}
		if err := s.customers.MarkStale(ctx, tx, actor.OwnerID, d.CustomerID); err != nil {
			return err
		}
		debt = d
		return nil
	})
	if txErr != nil {
		var cerr *ConflictError
		if errors.As(txErr, &cerr) {
			infra.Repayments.WithLabelValues(cerr.Code).Inc()
			log.Warn().Str("debt_id", id.String()).Str("code", cerr.Code).Str("amount", req.Amount.String()).Msg("repayment rejected")
		}
		return nil, txErr
	}

	infra.Repayments.WithLabelValues("applied").Inc()
	log.Info().
		Str("debt_id", debt.ID.String()).
		Str("owner_id", actor.OwnerID.String()).
		Str("amount", payment.Amount.String()).
		Str("remaining", debt.RemainingAmount.String()).
		Str("status", string(debt.Status)).
		Msg("debt repaid")

	if s.aggregates != nil {
		s.aggregates.ScheduleRecompute(ctx, actor.OwnerID, debt.CustomerID)
	}
	if s.events != nil {
		payload := map[string]interface{}{
			"debt_id":          debt.ID.String(),
			"order_id":         debt.OrderID.String(),
			"customer_id":      debt.CustomerID.String(),
			"payment_id":       payment.ID.String(),
			"amount":           payment.Amount,
			"remaining_amount": debt.RemainingAmount,
			"status":           debt.Status,
		}
		if err := s.events.Publish(ctx, actor.OwnerID, EventDebtRepaid, payload); err != nil {
			log.Warn().Err(err).Str("event", EventDebtRepaid).Msg("event not published")
		}
	}

	resp, err := s.GetDebt(ctx, actor, id)
	if err != nil {
		// The payment is committed; answer from the locked row instead of failing.
		log.Warn().Err(err).Str("debt_id", id.String()).Msg("debt re-read after repayment failed")
		resp = s.debtToResponse(debt, now)
		resp.Payments = append(resp.Payments, paymentToResponse(payment))
		for _, p := range debt.Payments {
			if p.ID != payment.ID {
				resp.Payments = append(resp.Payments, paymentToResponse(p))
			}
		}
	}
	return resp, nil
}

func (s *debtService) validateRepayment(req dto.RepayDebtRequest) error {
	if !req.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Code: CodeNonPositiveAmount,
			Message: fmt.Sprintf("amount must be greater than 0, got %s", req.Amount)}
	}
	if !s.pricing.fitsCurrency(req.Amount) {
		return &ValidationError{Field: "amount", Code: CodeExcessPrecision,
			Message: fmt.Sprintf("amount %s has more than %d decimal places", req.Amount, s.pricing.Decimals)}
	}
	switch model.DebtPaymentMethod(req.Method) {
	case model.DebtMethodCash, model.DebtMethodBankTransfer, model.DebtMethodOther:
	default:
		return invalid("method", "unknown repayment method %q", req.Method)
	}
	return nil
}

func rejectionLabel(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) && verr.Code != "" {
		return verr.Code
	}
	return "invalid"
}

var quickPayPercents = []int{25, 50, 100}

func (s *debtService) debtToResponse(d *model.Debt, now time.Time) *dto.DebtResponse {
	resp := &dto.DebtResponse{
		ID:              d.ID.String(),
		OrderID:         d.OrderID.String(),
		CustomerID:      d.CustomerID.String(),
		TotalAmount:     d.TotalAmount,
		PaidAmount:      d.PaidAmount,
		RemainingAmount: d.RemainingAmount,
		Status:          string(EffectiveStatus(d, now)),
		DueDate:         formatDate(d.DueDate),
		DaysOverdue:     daysOverdue(d, now),
		Notes:           d.Notes,
		CreatedAt:       d.CreatedAt.UTC().Format(timestampLayout),
	}
	if d.Customer != nil {
		resp.CustomerName = d.Customer.FullName
		resp.CustomerPhone = d.Customer.Phone
	}
	if d.Order != nil {
		resp.OrderCode = d.Order.OrderCode
	}
	if d.RemainingAmount.IsPositive() && d.VoidedAt == nil {
		for _, pct := range quickPayPercents {
			resp.QuickPay = append(resp.QuickPay, dto.QuickPayOption{
				Percent: pct,
				Amount:  s.pricing.QuickPayAmount(d.RemainingAmount, pct),
			})
		}
	}
	return resp
}
