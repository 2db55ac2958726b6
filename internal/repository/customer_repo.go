package repository

import (
	"context"
	"fmt"

	"retailpos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CustomerRepository interface {
	Create(ctx context.Context, tx *gorm.DB, c *model.Customer) error
	FindByID(ctx context.Context, tx *gorm.DB, ownerID, id uuid.UUID) (*model.Customer, error)
	// FindByNameAndPhone is an exact match on both fields; either may not be blank.
	FindByNameAndPhone(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, name, phone string) (*model.Customer, error)
	NextCustomerCode(ctx context.Context, tx *gorm.DB) (string, error)
	MarkStale(ctx context.Context, tx *gorm.DB, ownerID, id uuid.UUID) error
	RecomputeAggregates(ctx context.Context, ownerID, id uuid.UUID) (model.CustomerAggregates, error)
	ListStale(ctx context.Context, limit int) ([]model.Customer, error)
	DB() *gorm.DB
}

type customerRepo struct{ db *gorm.DB }

func NewCustomerRepository(db *gorm.DB) CustomerRepository { return &customerRepo{db: db} }

func (r *customerRepo) DB() *gorm.DB { return r.db }

func (r *customerRepo) Create(ctx context.Context, tx *gorm.DB, c *model.Customer) error {
	return conn(r.db, tx).WithContext(ctx).Create(c).Error
}

func (r *customerRepo) FindByID(ctx context.Context, tx *gorm.DB, ownerID, id uuid.UUID) (*model.Customer, error) {
	var c model.Customer
	err := conn(r.db, tx).WithContext(ctx).Where("owner_id = ? AND id = ?", ownerID, id).First(&c).Error
	return &c, err
}

func (r *customerRepo) FindByNameAndPhone(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, name, phone string) (*model.Customer, error) {
	var c model.Customer
	err := conn(r.db, tx).WithContext(ctx).
		Where("owner_id = ? AND full_name = ? AND phone = ? AND is_active", ownerID, name, phone).
		Order("created_at ASC").
		First(&c).Error
	return &c, err
}

func (r *customerRepo) NextCustomerCode(ctx context.Context, tx *gorm.DB) (string, error) {
	var num int64
	if err := conn(r.db, tx).WithContext(ctx).Raw("SELECT nextval('customers_code_seq')").Scan(&num).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("CUS-%06d", num), nil
}

func (r *customerRepo) MarkStale(ctx context.Context, tx *gorm.DB, ownerID, id uuid.UUID) error {
	return conn(r.db, tx).WithContext(ctx).Model(&model.Customer{}).
		Where("owner_id = ? AND id = ?", ownerID, id).
		Update("aggregates_stale", true).Error
}

// recomputeSQL derives all three aggregates from source rows in a single
// statement, so they always describe the same snapshot.
const recomputeSQL = `
UPDATE customers c SET
    total_debt = COALESCE((SELECT SUM(d.remaining_amount) FROM debts d
                           WHERE d.customer_id = c.id AND d.status <> 'PAID' AND d.voided_at IS NULL), 0),
    order_count = (SELECT COUNT(*) FROM orders o
                   WHERE o.customer_id = c.id AND o.cancelled_at IS NULL),
    total_spent = COALESCE((SELECT SUM(o.total_amount) FROM orders o
                            WHERE o.customer_id = c.id AND o.cancelled_at IS NULL), 0),
    aggregates_stale = false,
    aggregates_updated_at = NOW(),
    updated_at = NOW()
WHERE c.owner_id = ? AND c.id = ?
RETURNING c.total_debt, c.order_count, c.total_spent`

func (r *customerRepo) RecomputeAggregates(ctx context.Context, ownerID, id uuid.UUID) (model.CustomerAggregates, error) {
	var agg model.CustomerAggregates
	res := r.db.WithContext(ctx).Raw(recomputeSQL, ownerID, id).Scan(&agg)
	if res.Error != nil {
		return agg, res.Error
	}
	if res.RowsAffected == 0 {
		return agg, gorm.ErrRecordNotFound
	}
	return agg, nil
}

func (r *customerRepo) ListStale(ctx context.Context, limit int) ([]model.Customer, error) {
	var cs []model.Customer
	err := r.db.WithContext(ctx).
		Where("aggregates_stale = ?", true).
		Order("updated_at ASC").
		Limit(limit).
		Find(&cs).Error
	return cs, err
}
