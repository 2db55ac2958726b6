package service

import (
	"context"
	"errors"

	"retailpos/internal/dto"
	"retailpos/internal/infra"
	"retailpos/internal/model"
	"retailpos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type CustomerService interface {
	GetCustomer(ctx context.Context, actor Actor, id uuid.UUID) (*dto.CustomerResponse, error)
	// RecomputeAggregates rebuilds total_debt, order_count and total_spent from
	// committed orders and debts, then clears aggregates_stale.
	RecomputeAggregates(ctx context.Context, ownerID, customerID uuid.UUID) error
	// ReconcileStale recomputes customers still flagged stale, e.g. after a
	// failed background job. Returns how many were fixed.
	ReconcileStale(ctx context.Context, limit int) (int, error)
}

type customerService struct {
	repo repository.CustomerRepository
}

func NewCustomerService(repo repository.CustomerRepository) CustomerService {
	return &customerService{repo: repo}
}

func (s *customerService) GetCustomer(ctx context.Context, actor Actor, id uuid.UUID) (*dto.CustomerResponse, error) {
	c, err := s.repo.FindByID(ctx, nil, actor.OwnerID, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("customer", id)
	}
	if err != nil {
		return nil, err
	}
	return customerToResponse(c), nil
}

func (s *customerService) RecomputeAggregates(ctx context.Context, ownerID, customerID uuid.UUID) error {
	agg, err := s.repo.RecomputeAggregates(ctx, ownerID, customerID)
	if err != nil {
		infra.AggregateRecomputes.WithLabelValues("error").Inc()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("customer", customerID)
		}
		return err
	}
	infra.AggregateRecomputes.WithLabelValues("ok").Inc()
	log.Debug().
		Str("customer_id", customerID.String()).
		Str("total_debt", agg.TotalDebt.String()).
		Int("order_count", agg.OrderCount).
		Msg("customer aggregates recomputed")
	return nil
}

func (s *customerService) ReconcileStale(ctx context.Context, limit int) (int, error) {
	stale, err := s.repo.ListStale(ctx, limit)
	if err != nil {
		return 0, err
	}
	fixed := 0
	for _, c := range stale {
		if err := s.RecomputeAggregates(ctx, c.OwnerID, c.ID); err != nil {
			log.Warn().Err(err).Str("customer_id", c.ID.String()).Msg("reconcile: recompute failed")
			continue
		}
		fixed++
	}
	return fixed, nil
}

// InlineAggregates recomputes synchronously right after the commit. A failure
// leaves the customer stale for the reconcile cron.
type InlineAggregates struct {
	Customers CustomerService
}

func (a InlineAggregates) ScheduleRecompute(ctx context.Context, ownerID, customerID uuid.UUID) {
	if err := a.Customers.RecomputeAggregates(ctx, ownerID, customerID); err != nil {
		log.Warn().Err(err).Str("customer_id", customerID.String()).Msg("aggregate recompute failed, left stale")
	}
}

func customerToResponse(c *model.Customer) *dto.CustomerResponse {
	return &dto.CustomerResponse{
		ID:                  c.ID.String(),
		CustomerCode:        c.CustomerCode,
		FullName:            c.FullName,
		Phone:               c.Phone,
		Email:               c.Email,
		CreditLimit:         c.CreditLimit,
		IsActive:            c.IsActive,
		TotalDebt:           c.TotalDebt,
		OrderCount:          c.OrderCount,
		TotalSpent:          c.TotalSpent,
		AggregatesStale:     c.AggregatesStale,
		AggregatesUpdatedAt: formatTime(c.AggregatesUpdatedAt),
	}
}
