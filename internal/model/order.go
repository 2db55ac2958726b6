package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus is derived from PaidAmount vs TotalAmount, never set independently.
type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "PAID"
	PaymentPartial PaymentStatus = "PARTIAL"
	PaymentUnpaid  PaymentStatus = "UNPAID"
)

// PaymentMethod is how the order was tendered at the counter.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "CASH"
	MethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	MethodCredit       PaymentMethod = "CREDIT"
	MethodMixed        PaymentMethod = "MIXED"
)

// Order is one sale transaction. Created atomically with its lines and is
// immutable afterwards; cancellation only stamps CancelledAt.
type Order struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OwnerID    uuid.UUID  `gorm:"type:uuid;not null;index"`
	OrderCode  string     `gorm:"type:varchar(32);uniqueIndex;not null"`
	CustomerID *uuid.UUID `gorm:"type:uuid;index"`
	CreatedBy  uuid.UUID  `gorm:"type:uuid;not null"`
	// IdempotencyKey is unique per owner (partial index, see infra/database.go)
	IdempotencyKey *string    `gorm:"type:varchar(128)"`
	DraftID        *uuid.UUID `gorm:"type:uuid"`

	TaxRate        decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	PaidAmount     decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	PaymentStatus  PaymentStatus   `gorm:"type:varchar(10);not null;index"`
	PaymentMethod  PaymentMethod   `gorm:"type:varchar(20);not null"`
	Notes          *string

	CancelledAt  *time.Time
	CancelReason *string
	CreatedAt    time.Time `gorm:"index"`
	UpdatedAt    time.Time

	Items    []OrderLine `gorm:"foreignKey:OrderID"`
	Customer *Customer   `gorm:"foreignKey:CustomerID"`
	Debt     *Debt       `gorm:"foreignKey:OrderID"`
}

// OrderLine is owned exclusively by its Order.
type OrderLine struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrderID         uuid.UUID       `gorm:"type:uuid;index;not null"`
	ProductID       uuid.UUID       `gorm:"type:uuid;not null"`
	UnitID          uuid.UUID       `gorm:"type:uuid;not null"`
	ProductName     string          `gorm:"type:varchar(200)"`
	Quantity        decimal.Decimal `gorm:"type:decimal(15,3);not null"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	DiscountPercent decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	LineTotal       decimal.Decimal `gorm:"type:decimal(15,2);not null"`
}
