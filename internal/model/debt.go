package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DebtStatus: PENDING | PARTIAL | PAID are stored; OVERDUE is only ever
// computed at read time from DueDate.
type DebtStatus string

const (
	DebtPending DebtStatus = "PENDING"
	DebtPartial DebtStatus = "PARTIAL"
	DebtPaid    DebtStatus = "PAID"
	DebtOverdue DebtStatus = "OVERDUE"
)

// DebtPaymentMethod is how a repayment was collected.
type DebtPaymentMethod string

const (
	DebtMethodCash         DebtPaymentMethod = "CASH"
	DebtMethodBankTransfer DebtPaymentMethod = "BANK_TRANSFER"
	DebtMethodOther        DebtPaymentMethod = "OTHER"
)

// Debt is the amount owed for one order (1:1). TotalAmount is frozen at
// creation; PaidAmount is always SUM(payments.amount). Debts are never deleted;
// a cancelled order voids its debt instead.
type Debt struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OwnerID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	OrderID         uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null"`
	CustomerID      uuid.UUID       `gorm:"type:uuid;index;not null"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	PaidAmount      decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"`
	RemainingAmount decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	Status          DebtStatus      `gorm:"type:varchar(10);not null;index"`
	DueDate         *time.Time      `gorm:"type:date"`
	Notes           *string
	VoidedAt        *time.Time
	CreatedAt       time.Time `gorm:"index"`
	UpdatedAt       time.Time

	Payments []Payment `gorm:"foreignKey:DebtID"`
	Customer *Customer `gorm:"foreignKey:CustomerID"`
	Order    *Order    `gorm:"foreignKey:OrderID"`
}

// Payment is an append-only repayment event. Rows are never updated or deleted.
type Payment struct {
	ID              uuid.UUID         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DebtID          uuid.UUID         `gorm:"type:uuid;index;not null"`
	Amount          decimal.Decimal   `gorm:"type:decimal(15,2);not null"`
	Method          DebtPaymentMethod `gorm:"type:varchar(20);not null"`
	ReferenceNumber *string           `gorm:"type:varchar(100)"`
	Notes           *string
	PaymentDate     time.Time `gorm:"not null;index"`
	CreatedBy       uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt       time.Time
}
