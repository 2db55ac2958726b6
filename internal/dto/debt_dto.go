package dto

import "github.com/shopspring/decimal"

// DebtFilter is bound from query string of GET /v1/debts.
type DebtFilter struct {
	CustomerID string `form:"customer_id"          validate:"omitempty,uuid"`
	Status     string `form:"status"               validate:"omitempty,oneof=PENDING PARTIAL PAID OVERDUE"`
	Sort       string `form:"sort,default=latest"  validate:"omitempty,oneof=latest largest_remaining nearest_due"`
	Page       int    `form:"page,default=1"       validate:"min=1"`
	Limit      int    `form:"limit,default=20"     validate:"min=1,max=200"`
}

type DebtListResponse struct {
	Data  []DebtResponse `json:"data"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

// RepayDebtRequest is the body of POST /v1/debts/:id/repay. Amount checks
// (> 0, <= remaining) happen in the repayment processor so the message can
// name the current remaining amount.
type RepayDebtRequest struct {
	Amount          decimal.Decimal `json:"amount"`
	Method          string          `json:"method"           validate:"required,oneof=CASH BANK_TRANSFER OTHER"`
	ReferenceNumber *string         `json:"reference_number" validate:"omitempty,max=100"`
	Notes           *string         `json:"notes"            validate:"omitempty,max=1000"`
}

type PaymentResponse struct {
	ID              string          `json:"id"`
	Amount          decimal.Decimal `json:"amount"`
	Method          string          `json:"method"`
	ReferenceNumber *string         `json:"reference_number"`
	Notes           *string         `json:"notes"`
	PaymentDate     string          `json:"payment_date"`
}

type DebtResponse struct {
	ID              string            `json:"id"`
	OrderID         string            `json:"order_id"`
	OrderCode       string            `json:"order_code,omitempty"`
	CustomerID      string            `json:"customer_id"`
	CustomerName    string            `json:"customer_name,omitempty"`
	CustomerPhone   *string           `json:"customer_phone,omitempty"`
	TotalAmount     decimal.Decimal   `json:"total_amount"`
	PaidAmount      decimal.Decimal   `json:"paid_amount"`
	RemainingAmount decimal.Decimal   `json:"remaining_amount"`
	Status          string            `json:"status"`
	DueDate         *string           `json:"due_date"`
	DaysOverdue     int               `json:"days_overdue"`
	Notes           *string           `json:"notes"`
	CreatedAt       string            `json:"created_at"`
	Payments        []PaymentResponse `json:"payments,omitempty"`
	// QuickPay pre-fills for the repay form; the server keeps no state for them.
	QuickPay []QuickPayOption `json:"quick_pay,omitempty"`
}

type QuickPayOption struct {
	Percent int             `json:"percent"`
	Amount  decimal.Decimal `json:"amount"`
}
