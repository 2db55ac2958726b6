package service

import (
	"fmt"
	"time"

	"retailpos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Column scales of the persisted order. Inputs finer than these would be
// rounded by Postgres on insert and no longer reproduce the stored totals.
const (
	MoneyScale    int32 = 2
	QuantityScale int32 = 3
	PercentScale  int32 = 2
)

// OrderLineInput is one cart line as submitted by the POS or the draft bridge.
type OrderLineInput struct {
	ProductID       uuid.UUID
	UnitID          uuid.UUID
	ProductName     string
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	DiscountPercent decimal.Decimal
}

// OrderCommand is the explicit cart handed to CreateOrder. Nothing about the
// order is read from shared state; everything the builder needs is here.
type OrderCommand struct {
	CustomerID     *uuid.UUID
	Lines          []OrderLineInput
	TaxRate        decimal.Decimal
	DiscountAmount decimal.Decimal
	PaymentMethod  model.PaymentMethod
	PaidAmount     decimal.Decimal
	IsDebt         bool
	DueDate        *time.Time
	Notes          *string
}

// PricedLine is an input line plus its rounded total.
type PricedLine struct {
	OrderLineInput
	LineTotal decimal.Decimal
}

// BuiltOrder holds priced totals and the allocation decision. It is not yet
// persisted and has no code or id.
type BuiltOrder struct {
	Lines          []PricedLine
	TaxRate        decimal.Decimal
	DiscountAmount decimal.Decimal
	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	Total          decimal.Decimal
	Allocation     Allocation
}

// Pricing rounds money to the currency's smallest unit (0 decimals for VND).
type Pricing struct {
	Decimals int32
}

// NewPricing clamps decimals to the money column scale.
func NewPricing(decimals int32) Pricing {
	if decimals > MoneyScale {
		decimals = MoneyScale
	}
	if decimals < 0 {
		decimals = 0
	}
	return Pricing{Decimals: decimals}
}

// Round is half-up for the non-negative amounts this package produces.
func (p Pricing) Round(d decimal.Decimal) decimal.Decimal { return d.Round(p.Decimals) }

// fitsCurrency reports whether d has no more fractional digits than the currency allows.
func (p Pricing) fitsCurrency(d decimal.Decimal) bool { return fitsScale(d, p.Decimals) }

func fitsScale(d decimal.Decimal, scale int32) bool { return d.Equal(d.Round(scale)) }

func excessPrecision(field string, d decimal.Decimal, scale int32) *ValidationError {
	return &ValidationError{
		Field:   field,
		Code:    CodeExcessPrecision,
		Message: fmt.Sprintf("%s %s has more than %d decimal places", field, d, scale),
	}
}

// QuickPayAmount pre-fills a repayment with percent of remaining, rounded to
// the currency. 100 always returns remaining exactly.
func (p Pricing) QuickPayAmount(remaining decimal.Decimal, percent int) decimal.Decimal {
	if percent >= 100 {
		return remaining
	}
	if percent <= 0 {
		return decimal.Zero
	}
	return p.Round(remaining.Mul(decimal.NewFromInt(int64(percent))).Div(hundred))
}

func validMethod(m model.PaymentMethod) bool {
	switch m {
	case model.MethodCash, model.MethodBankTransfer, model.MethodCredit, model.MethodMixed:
		return true
	}
	return false
}

// Build validates cmd and computes totals:
//
//	line     = round(qty × price × (1 − discount%/100))
//	subtotal = Σ line
//	tax      = round(subtotal × tax_rate / 100)
//	total    = max(0, subtotal + tax − discount_amount)
//
// then delegates the status decision to Allocate.
func (p Pricing) Build(cmd OrderCommand) (*BuiltOrder, error) {
	if len(cmd.Lines) == 0 {
		return nil, invalid("items", "order must contain at least one line")
	}
	if !validMethod(cmd.PaymentMethod) {
		return nil, invalid("payment_method", "unknown payment method %q", cmd.PaymentMethod)
	}
	if cmd.TaxRate.IsNegative() || cmd.TaxRate.GreaterThan(hundred) {
		return nil, invalid("tax_rate", "tax_rate must be between 0 and 100, got %s", cmd.TaxRate)
	}
	if !fitsScale(cmd.TaxRate, PercentScale) {
		return nil, excessPrecision("tax_rate", cmd.TaxRate, PercentScale)
	}
	if cmd.DiscountAmount.IsNegative() {
		return nil, invalid("discount_amount", "discount_amount must be >= 0, got %s", cmd.DiscountAmount)
	}
	if !p.fitsCurrency(cmd.DiscountAmount) {
		return nil, excessPrecision("discount_amount", cmd.DiscountAmount, p.Decimals)
	}
	if cmd.PaidAmount.IsNegative() {
		return nil, invalid("paid_amount", "paid_amount must be >= 0, got %s", cmd.PaidAmount)
	}
	if !p.fitsCurrency(cmd.PaidAmount) {
		return nil, excessPrecision("paid_amount", cmd.PaidAmount, p.Decimals)
	}

	out := &BuiltOrder{
		Lines:   make([]PricedLine, 0, len(cmd.Lines)),
		TaxRate: cmd.TaxRate,
	}
	subtotal := decimal.Zero
	for i, l := range cmd.Lines {
		field := fmt.Sprintf("items[%d]", i)
		if l.ProductID == uuid.Nil {
			return nil, invalid(field+".product_id", "product_id is required")
		}
		if l.UnitID == uuid.Nil {
			return nil, invalid(field+".unit_id", "unit_id is required")
		}
		if !l.Quantity.IsPositive() {
			return nil, invalid(field+".quantity", "quantity must be > 0, got %s", l.Quantity)
		}
		if !fitsScale(l.Quantity, QuantityScale) {
			return nil, excessPrecision(field+".quantity", l.Quantity, QuantityScale)
		}
		if l.UnitPrice.IsNegative() {
			return nil, invalid(field+".unit_price", "unit_price must be >= 0, got %s", l.UnitPrice)
		}
		if !fitsScale(l.UnitPrice, MoneyScale) {
			return nil, excessPrecision(field+".unit_price", l.UnitPrice, MoneyScale)
		}
		if l.DiscountPercent.IsNegative() || l.DiscountPercent.GreaterThan(hundred) {
			return nil, invalid(field+".discount_percent", "discount_percent must be between 0 and 100, got %s", l.DiscountPercent)
		}
		if !fitsScale(l.DiscountPercent, PercentScale) {
			return nil, excessPrecision(field+".discount_percent", l.DiscountPercent, PercentScale)
		}
		factor := hundred.Sub(l.DiscountPercent).Div(hundred)
		lineTotal := p.Round(l.Quantity.Mul(l.UnitPrice).Mul(factor))
		subtotal = subtotal.Add(lineTotal)
		out.Lines = append(out.Lines, PricedLine{OrderLineInput: l, LineTotal: lineTotal})
	}

	if cmd.DiscountAmount.GreaterThan(subtotal) {
		return nil, invalid("discount_amount", "discount_amount %s exceeds subtotal %s", cmd.DiscountAmount, subtotal)
	}

	tax := p.Round(subtotal.Mul(cmd.TaxRate).Div(hundred))
	discount := cmd.DiscountAmount
	total := subtotal.Add(tax).Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	out.Subtotal = subtotal
	out.TaxAmount = tax
	out.DiscountAmount = discount
	out.Total = total
	out.Allocation = Allocate(total, cmd.PaidAmount, cmd.IsDebt)
	return out, nil
}
