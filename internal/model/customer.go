package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Customer belongs to one owner (tenant). TotalDebt, OrderCount and TotalSpent
// are recomputed from orders/debts after every committed write touching the
// customer; AggregatesStale is true between that commit and the recompute.
type Customer struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OwnerID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_customers_owner_code"`
	CustomerCode string          `gorm:"type:varchar(32);not null;uniqueIndex:idx_customers_owner_code"`
	FullName     string          `gorm:"type:varchar(200);not null;index"`
	Phone        *string         `gorm:"type:varchar(30);index"`
	Email        *string         `gorm:"type:varchar(200)"`
	CreditLimit  decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"`
	IsActive     bool            `gorm:"not null;default:true"`

	TotalDebt           decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"`
	OrderCount          int             `gorm:"not null;default:0"`
	TotalSpent          decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"`
	AggregatesStale     bool            `gorm:"not null;default:false;index"`
	AggregatesUpdatedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CustomerAggregates is the result of a full recompute from source rows.
type CustomerAggregates struct {
	TotalDebt  decimal.Decimal
	OrderCount int
	TotalSpent decimal.Decimal
}
