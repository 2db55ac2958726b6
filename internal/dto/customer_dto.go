package dto

import "github.com/shopspring/decimal"

type CustomerResponse struct {
	ID           string          `json:"id"`
	CustomerCode string          `json:"customer_code"`
	FullName     string          `json:"full_name"`
	Phone        *string         `json:"phone"`
	Email        *string         `json:"email"`
	CreditLimit  decimal.Decimal `json:"credit_limit"`
	IsActive     bool            `json:"is_active"`
	TotalDebt    decimal.Decimal `json:"total_debt"`
	OrderCount   int             `json:"order_count"`
	TotalSpent   decimal.Decimal `json:"total_spent"`
	// AggregatesStale tells the client the three aggregates above are still
	// being recomputed after a recent write.
	AggregatesStale     bool    `json:"aggregates_stale"`
	AggregatesUpdatedAt *string `json:"aggregates_updated_at"`
}

// CustomerDebtSummary is the exact "dư nợ" figure, summed live from the ledger.
type CustomerDebtSummary struct {
	CustomerID      string          `json:"customer_id"`
	TotalDebt       decimal.Decimal `json:"total_debt"`
	OpenDebts       int             `json:"open_debts"`
	OverdueDebts    int             `json:"overdue_debts"`
	CreditLimit     decimal.Decimal `json:"credit_limit"`
	RemainingCredit decimal.Decimal `json:"remaining_credit"`
	OverLimit       bool            `json:"over_limit"`
}
