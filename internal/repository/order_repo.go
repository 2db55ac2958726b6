package repository

import (
	"context"
	"fmt"
	"time"

	"retailpos/internal/dto"
	"retailpos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// conn picks the transaction when one is open, the pool otherwise.
func conn(db, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return db
}

type OrderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, o *model.Order) error
	FindByID(ctx context.Context, ownerID, id uuid.UUID) (*model.Order, error)
	FindByIdempotencyKey(ctx context.Context, ownerID uuid.UUID, key string) (*model.Order, error)
	NextOrderCode(ctx context.Context, tx *gorm.DB, day time.Time) (string, error)
	MarkCancelled(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time, reason string) error
	List(ctx context.Context, ownerID uuid.UUID, filter dto.OrderFilter) ([]model.Order, int64, error)
	// ExpireIdempotencyKeys clears keys of orders created before cutoff so the
	// key can be reused. Returns the number of orders touched.
	ExpireIdempotencyKeys(ctx context.Context, cutoff time.Time, limit int) (int64, error)
	DB() *gorm.DB // exposes the DB for transaction creation in service layer
}

type orderRepo struct{ db *gorm.DB }

func NewOrderRepository(db *gorm.DB) OrderRepository { return &orderRepo{db: db} }

func (r *orderRepo) DB() *gorm.DB { return r.db }

// Create inserts the order with its lines. The debt is written separately by
// DebtRepository so its payments are inserted in the same pass.
func (r *orderRepo) Create(ctx context.Context, tx *gorm.DB, o *model.Order) error {
	return conn(r.db, tx).WithContext(ctx).Omit("Customer", "Debt").Create(o).Error
}

func (r *orderRepo) FindByID(ctx context.Context, ownerID, id uuid.UUID) (*model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).
		Preload("Items").Preload("Customer").Preload("Debt").
		Where("owner_id = ? AND id = ?", ownerID, id).
		First(&o).Error
	return &o, err
}

func (r *orderRepo) FindByIdempotencyKey(ctx context.Context, ownerID uuid.UUID, key string) (*model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).
		Preload("Items").Preload("Customer").Preload("Debt").
		Where("owner_id = ? AND idempotency_key = ?", ownerID, key).
		First(&o).Error
	return &o, err
}

// NextOrderCode uses a PostgreSQL sequence for atomic code generation.
func (r *orderRepo) NextOrderCode(ctx context.Context, tx *gorm.DB, day time.Time) (string, error) {
	var num int64
	if err := conn(r.db, tx).WithContext(ctx).Raw("SELECT nextval('orders_code_seq')").Scan(&num).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("ORD-%s-%06d", day.Format("20060102"), num), nil
}

func (r *orderRepo) MarkCancelled(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time, reason string) error {
	res := conn(r.db, tx).WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND cancelled_at IS NULL", id).
		Updates(map[string]interface{}{"cancelled_at": at, "cancel_reason": reason})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *orderRepo) ExpireIdempotencyKeys(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE orders SET idempotency_key = NULL
		WHERE id IN (
			SELECT id FROM orders
			WHERE idempotency_key IS NOT NULL AND created_at < ?
			ORDER BY created_at
			LIMIT ?
		)`, cutoff, limit)
	return res.RowsAffected, res.Error
}

func (r *orderRepo) List(ctx context.Context, ownerID uuid.UUID, filter dto.OrderFilter) ([]model.Order, int64, error) {
	var orders []model.Order
	var total int64
	offset := (filter.Page - 1) * filter.Limit

	q := r.db.WithContext(ctx).Model(&model.Order{}).Where("owner_id = ?", ownerID)

	if !filter.IncludeCancelled {
		q = q.Where("cancelled_at IS NULL")
	}
	if filter.CustomerID != "" {
		q = q.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.Status != "" {
		q = q.Where("payment_status = ?", filter.Status)
	}
	if filter.From != "" {
		q = q.Where("created_at >= ?", filter.From)
	}
	if filter.To != "" {
		// inclusive upper bound on a date
		q = q.Where("created_at < (?::date + INTERVAL '1 day')", filter.To)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := q.Preload("Items").Preload("Customer").Preload("Debt").
		Order("created_at DESC").
		Offset(offset).Limit(filter.Limit).
		Find(&orders).Error

	return orders, total, err
}
