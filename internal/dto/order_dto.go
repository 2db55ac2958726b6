package dto

import "github.com/shopspring/decimal"

// ─── Filter / List ──────────────────────────────────────────────────────────

// OrderFilter is bound from query string of GET /v1/orders.
type OrderFilter struct {
	CustomerID       string `form:"customer_id"      validate:"omitempty,uuid"`
	Status           string `form:"status"           validate:"omitempty,oneof=PAID PARTIAL UNPAID"`
	From             string `form:"from"             validate:"omitempty,datetime=2006-01-02"`
	To               string `form:"to"               validate:"omitempty,datetime=2006-01-02"`
	IncludeCancelled bool   `form:"include_cancelled"`
	Page             int    `form:"page,default=1"   validate:"min=1"`
	Limit            int    `form:"limit,default=50" validate:"min=1,max=200"`
}

type OrderListResponse struct {
	Data  []OrderResponse `json:"data"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

// ─── Request DTOs ────────────────────────────────────────────────────────────

// Business rules (quantity > 0, price >= 0, discount ranges) are checked once in
// the order builder so the POS cart and the draft bridge share them.
type OrderLineRequest struct {
	ProductID       string          `json:"product_id"       validate:"required,uuid"`
	UnitID          string          `json:"unit_id"          validate:"required,uuid"`
	ProductName     string          `json:"product_name"     validate:"max=200"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

// CreateOrderRequest is the body of POST /v1/orders. The idempotency key travels
// in the X-Idempotency-Key header, never in the body.
type CreateOrderRequest struct {
	CustomerID     *string            `json:"customer_id"     validate:"omitempty,uuid"`
	Items          []OrderLineRequest `json:"items"           validate:"dive"`
	TaxRate        decimal.Decimal    `json:"tax_rate"`
	DiscountAmount decimal.Decimal    `json:"discount_amount"`
	PaymentMethod  string             `json:"payment_method"  validate:"required,oneof=CASH BANK_TRANSFER CREDIT MIXED"`
	PaidAmount     decimal.Decimal    `json:"paid_amount"`
	// IsDebt is the POS "sell on credit" toggle: forces paid_amount = 0.
	IsDebt  bool    `json:"is_debt"`
	DueDate *string `json:"due_date"        validate:"omitempty,datetime=2006-01-02"`
	Notes   *string `json:"notes"           validate:"omitempty,max=1000"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type OrderLineResponse struct {
	ProductID       string          `json:"product_id"`
	UnitID          string          `json:"unit_id"`
	ProductName     string          `json:"product_name"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	LineTotal       decimal.Decimal `json:"line_total"`
}

// DebtSummary is the read-time view of an order's debt.
type DebtSummary struct {
	ID              string          `json:"id"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	Status          string          `json:"status"`
	DueDate         *string         `json:"due_date"`
}

type OrderResponse struct {
	ID             string              `json:"id"`
	OrderCode      string              `json:"order_code"`
	CustomerID     *string             `json:"customer_id"`
	CustomerName   string              `json:"customer_name,omitempty"`
	Items          []OrderLineResponse `json:"items"`
	TaxRate        decimal.Decimal     `json:"tax_rate"`
	Subtotal       decimal.Decimal     `json:"subtotal"`
	TaxAmount      decimal.Decimal     `json:"tax_amount"`
	DiscountAmount decimal.Decimal     `json:"discount_amount"`
	TotalAmount    decimal.Decimal     `json:"total_amount"`
	PaidAmount     decimal.Decimal     `json:"paid_amount"`
	ChangeAmount   decimal.Decimal     `json:"change_amount"`
	PaymentStatus  string              `json:"payment_status"`
	PaymentMethod  string              `json:"payment_method"`
	Notes          *string             `json:"notes"`
	Debt           *DebtSummary        `json:"debt"`
	CreditWarning  *string             `json:"credit_warning,omitempty"`
	Replayed       bool                `json:"replayed"`
	CancelledAt    *string             `json:"cancelled_at"`
	CancelReason   *string             `json:"cancel_reason,omitempty"`
	CreatedAt      string              `json:"created_at"`
}
