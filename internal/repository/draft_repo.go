package repository

import (
	"context"

	"retailpos/internal/dto"
	"retailpos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DraftRepository interface {
	Create(ctx context.Context, d *model.Draft) error
	FindByID(ctx context.Context, ownerID, id uuid.UUID) (*model.Draft, error)
	LockByID(ctx context.Context, tx *gorm.DB, ownerID, id uuid.UUID) (*model.Draft, error)
	Update(ctx context.Context, tx *gorm.DB, d *model.Draft) error
	List(ctx context.Context, ownerID uuid.UUID, filter dto.DraftFilter) ([]model.Draft, int64, error)
	DB() *gorm.DB
}

type draftRepo struct{ db *gorm.DB }

func NewDraftRepository(db *gorm.DB) DraftRepository { return &draftRepo{db: db} }

func (r *draftRepo) DB() *gorm.DB { return r.db }

func (r *draftRepo) Create(ctx context.Context, d *model.Draft) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *draftRepo) FindByID(ctx context.Context, ownerID, id uuid.UUID) (*model.Draft, error) {
	var d model.Draft
	err := r.db.WithContext(ctx).Where("owner_id = ? AND id = ?", ownerID, id).First(&d).Error
	return &d, err
}

func (r *draftRepo) LockByID(ctx context.Context, tx *gorm.DB, ownerID, id uuid.UUID) (*model.Draft, error) {
	var d model.Draft
	err := conn(r.db, tx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("owner_id = ? AND id = ?", ownerID, id).
		First(&d).Error
	return &d, err
}

func (r *draftRepo) Update(ctx context.Context, tx *gorm.DB, d *model.Draft) error {
	return conn(r.db, tx).WithContext(ctx).Save(d).Error
}

func (r *draftRepo) List(ctx context.Context, ownerID uuid.UUID, filter dto.DraftFilter) ([]model.Draft, int64, error) {
	var drafts []model.Draft
	var total int64
	offset := (filter.Page - 1) * filter.Limit

	q := r.db.WithContext(ctx).Model(&model.Draft{}).Where("owner_id = ?", ownerID)
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("created_at DESC").Offset(offset).Limit(filter.Limit).Find(&drafts).Error
	return drafts, total, err
}
