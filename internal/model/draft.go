package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DraftSource: where the external parser got its input.
type DraftSource string

const (
	DraftSourceText  DraftSource = "TEXT"
	DraftSourceVoice DraftSource = "VOICE"
)

// DraftStatus: DRAFT is editable; CONFIRMED is terminal and read-only.
type DraftStatus string

const (
	DraftStatusDraft     DraftStatus = "DRAFT"
	DraftStatusConfirmed DraftStatus = "CONFIRMED"
)

// Draft is a not-yet-committed order candidate produced by an external parser
// (AI text or voice). ConfidenceScore and MissingFields are advisory only.
type Draft struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OwnerID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	DraftCode       string          `gorm:"type:varchar(32);uniqueIndex;not null"`
	Source          DraftSource     `gorm:"type:varchar(10);not null"`
	RawInput        string          `gorm:"type:text"`
	ParsedData      DraftPayload    `gorm:"type:jsonb;not null"`
	ConfidenceScore decimal.Decimal `gorm:"type:decimal(3,2);not null;default:0"`
	MissingFields   StringList      `gorm:"type:jsonb;not null;default:'[]'"`
	Questions       StringList      `gorm:"type:jsonb;not null;default:'[]'"`
	Status          DraftStatus     `gorm:"type:varchar(10);not null;index"`
	CreatedBy       uuid.UUID       `gorm:"type:uuid;not null"`

	ConfirmedOrderID *uuid.UUID `gorm:"type:uuid"`
	ConfirmedBy      *uuid.UUID `gorm:"type:uuid"`
	ConfirmedAt      *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DraftPayload is the parsed cart: candidate customer, items and payment intent.
type DraftPayload struct {
	Customer       *DraftCustomer   `json:"customer,omitempty"`
	Items          []DraftItem      `json:"items"`
	Payment        *DraftPayment    `json:"payment,omitempty"`
	TaxRate        *decimal.Decimal `json:"tax_rate,omitempty"`
	DiscountAmount *decimal.Decimal `json:"discount_amount,omitempty"`
	Notes          *string          `json:"notes,omitempty"`
}

type DraftCustomer struct {
	ID    *uuid.UUID `json:"id,omitempty"`
	Name  string     `json:"name,omitempty"`
	Phone string     `json:"phone,omitempty"`
	Email string     `json:"email,omitempty"`
}

type DraftItem struct {
	ProductID       *uuid.UUID       `json:"product_id,omitempty"`
	UnitID          *uuid.UUID       `json:"unit_id,omitempty"`
	ProductName     string           `json:"product_name,omitempty"`
	Quantity        decimal.Decimal  `json:"quantity"`
	UnitPrice       *decimal.Decimal `json:"unit_price,omitempty"`
	DiscountPercent decimal.Decimal  `json:"discount_percent"`
}

type DraftPayment struct {
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	PaymentMethod PaymentMethod   `json:"payment_method,omitempty"`
	IsDebt        bool            `json:"is_debt"`
}

func (p DraftPayload) Value() (driver.Value, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (p *DraftPayload) Scan(src interface{}) error {
	return scanJSON(src, p)
}

// StringList is stored as a jsonb array.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(src interface{}) error {
	return scanJSON(src, l)
}

func scanJSON(src interface{}, dest interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("model: cannot scan %T into json column", src)
	}
}
