package repository

import (
	"context"
	"time"

	"retailpos/internal/dto"
	"retailpos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DebtRepository interface {
	Create(ctx context.Context, tx *gorm.DB, d *model.Debt) error
	FindByID(ctx context.Context, ownerID, id uuid.UUID) (*model.Debt, error)
	FindByOrderID(ctx context.Context, ownerID, orderID uuid.UUID) (*model.Debt, error)
	// LockByID takes a row lock (SELECT ... FOR UPDATE) held until tx ends.
	LockByID(ctx context.Context, tx *gorm.DB, ownerID, id uuid.UUID) (*model.Debt, error)
	AddPayment(ctx context.Context, tx *gorm.DB, p *model.Payment) error
	SumPayments(ctx context.Context, tx *gorm.DB, debtID uuid.UUID) (decimal.Decimal, error)
	CountPayments(ctx context.Context, tx *gorm.DB, debtID uuid.UUID) (int64, error)
	UpdateBalance(ctx context.Context, tx *gorm.DB, d *model.Debt) error
	Void(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) error
	OpenByCustomer(ctx context.Context, ownerID, customerID uuid.UUID) ([]model.Debt, error)
	List(ctx context.Context, ownerID uuid.UUID, filter dto.DebtFilter, today time.Time) ([]model.Debt, int64, error)
	DB() *gorm.DB
}

type debtRepo struct{ db *gorm.DB }

func NewDebtRepository(db *gorm.DB) DebtRepository { return &debtRepo{db: db} }

func (r *debtRepo) DB() *gorm.DB { return r.db }

// Create inserts the debt and any payments already attached to it.
func (r *debtRepo) Create(ctx context.Context, tx *gorm.DB, d *model.Debt) error {
	return conn(r.db, tx).WithContext(ctx).Omit("Customer", "Order").Create(d).Error
}

func (r *debtRepo) FindByID(ctx context.Context, ownerID, id uuid.UUID) (*model.Debt, error) {
	var d model.Debt
	err := r.db.WithContext(ctx).
		Preload("Payments", func(db *gorm.DB) *gorm.DB {
			return db.Order("payment_date DESC, created_at DESC")
		}).
		Preload("Customer").Preload("Order").
		Where("owner_id = ? AND id = ?", ownerID, id).
		First(&d).Error
	return &d, err
}

func (r *debtRepo) FindByOrderID(ctx context.Context, ownerID, orderID uuid.UUID) (*model.Debt, error) {
	var d model.Debt
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND order_id = ?", ownerID, orderID).
		First(&d).Error
	return &d, err
}

func (r *debtRepo) LockByID(ctx context.Context, tx *gorm.DB, ownerID, id uuid.UUID) (*model.Debt, error) {
	var d model.Debt
	err := conn(r.db, tx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("owner_id = ? AND id = ?", ownerID, id).
		First(&d).Error
	return &d, err
}

func (r *debtRepo) AddPayment(ctx context.Context, tx *gorm.DB, p *model.Payment) error {
	return conn(r.db, tx).WithContext(ctx).Create(p).Error
}

func (r *debtRepo) SumPayments(ctx context.Context, tx *gorm.DB, debtID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := conn(r.db, tx).WithContext(ctx).Model(&model.Payment{}).
		Select("SUM(amount)").
		Where("debt_id = ?", debtID).
		Scan(&sum).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

func (r *debtRepo) CountPayments(ctx context.Context, tx *gorm.DB, debtID uuid.UUID) (int64, error) {
	var n int64
	err := conn(r.db, tx).WithContext(ctx).Model(&model.Payment{}).Where("debt_id = ?", debtID).Count(&n).Error
	return n, err
}

func (r *debtRepo) UpdateBalance(ctx context.Context, tx *gorm.DB, d *model.Debt) error {
	return conn(r.db, tx).WithContext(ctx).Model(&model.Debt{}).
		Where("id = ?", d.ID).
		Updates(map[string]interface{}{
			"paid_amount":      d.PaidAmount,
			"remaining_amount": d.RemainingAmount,
			"status":           d.Status,
		}).Error
}

func (r *debtRepo) Void(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) error {
	return conn(r.db, tx).WithContext(ctx).Model(&model.Debt{}).
		Where("id = ? AND voided_at IS NULL", id).
		Update("voided_at", at).Error
}

// OpenByCustomer returns every non-paid, non-voided debt of the customer.
func (r *debtRepo) OpenByCustomer(ctx context.Context, ownerID, customerID uuid.UUID) ([]model.Debt, error) {
	var debts []model.Debt
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND customer_id = ? AND status <> ? AND voided_at IS NULL", ownerID, customerID, model.DebtPaid).
		Find(&debts).Error
	return debts, err
}

func (r *debtRepo) List(ctx context.Context, ownerID uuid.UUID, filter dto.DebtFilter, today time.Time) ([]model.Debt, int64, error) {
	var debts []model.Debt
	var total int64
	offset := (filter.Page - 1) * filter.Limit
	day := today.Format("2006-01-02")

	q := r.db.WithContext(ctx).Model(&model.Debt{}).
		Where("owner_id = ? AND voided_at IS NULL", ownerID)

	if filter.CustomerID != "" {
		q = q.Where("customer_id = ?", filter.CustomerID)
	}
	// Stored status is PENDING|PARTIAL|PAID; OVERDUE is derived from due_date.
	switch filter.Status {
	case string(model.DebtOverdue):
		q = q.Where("status <> ? AND due_date < ?", model.DebtPaid, day)
	case string(model.DebtPending), string(model.DebtPartial):
		q = q.Where("status = ? AND (due_date IS NULL OR due_date >= ?)", filter.Status, day)
	case string(model.DebtPaid):
		q = q.Where("status = ?", model.DebtPaid)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	switch filter.Sort {
	case "largest_remaining":
		q = q.Order("remaining_amount DESC").Order("created_at DESC")
	case "nearest_due":
		q = q.Order("due_date ASC NULLS LAST").Order("created_at DESC")
	default:
		q = q.Order("created_at DESC")
	}

	err := q.Preload("Customer").Preload("Order").
		Offset(offset).Limit(filter.Limit).
		Find(&debts).Error

	return debts, total, err
}
