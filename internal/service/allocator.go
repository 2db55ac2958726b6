package service

import (
	"retailpos/internal/model"

	"github.com/shopspring/decimal"
)

// Allocation is the outcome of comparing what was tendered with what is due.
type Allocation struct {
	Status model.PaymentStatus
	// Paid is what the order records as paid: never more than the total.
	Paid decimal.Decimal
	// Change is the excess handed back at the counter. It is not a balance.
	Change decimal.Decimal
	// Remaining is non-zero exactly when a Debt must be created.
	Remaining decimal.Decimal
}

func (a Allocation) CreatesDebt() bool { return a.Status != model.PaymentPaid }

// Allocate decides payment status for an order total. isDebt forces the
// tendered amount to zero ("bán nợ"). First matching rule wins, so a zero
// total is PAID and never produces a debt.
func Allocate(total, tendered decimal.Decimal, isDebt bool) Allocation {
	if isDebt {
		tendered = decimal.Zero
	}
	switch {
	case tendered.GreaterThanOrEqual(total):
		return Allocation{
			Status:    model.PaymentPaid,
			Paid:      total,
			Change:    tendered.Sub(total),
			Remaining: decimal.Zero,
		}
	case tendered.IsPositive():
		return Allocation{
			Status:    model.PaymentPartial,
			Paid:      tendered,
			Change:    decimal.Zero,
			Remaining: total.Sub(tendered),
		}
	default:
		return Allocation{
			Status:    model.PaymentUnpaid,
			Paid:      decimal.Zero,
			Change:    decimal.Zero,
			Remaining: total,
		}
	}
}

// debtMethodFor maps the counter payment method onto the ledger's method set.
func debtMethodFor(m model.PaymentMethod) model.DebtPaymentMethod {
	switch m {
	case model.MethodCash:
		return model.DebtMethodCash
	case model.MethodBankTransfer:
		return model.DebtMethodBankTransfer
	default:
		return model.DebtMethodOther
	}
}
