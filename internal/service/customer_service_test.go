package service

import (
	"context"
	"testing"

	"retailpos/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileStale_ClearsFlags(t *testing.T) {
	repo := newStubCustomerRepo()
	owner := uuid.New()
	a := repo.add(&model.Customer{OwnerID: owner, FullName: "A", AggregatesStale: true})
	b := repo.add(&model.Customer{OwnerID: owner, FullName: "B", AggregatesStale: true})
	repo.add(&model.Customer{OwnerID: owner, FullName: "C"})

	svc := NewCustomerService(repo)
	fixed, err := svc.ReconcileStale(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, fixed)
	assert.Equal(t, 1, repo.recomputed[a.ID])
	assert.Equal(t, 1, repo.recomputed[b.ID])

	stale, err := repo.ListStale(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestRecomputeAggregates_UnknownCustomer(t *testing.T) {
	svc := NewCustomerService(newStubCustomerRepo())
	err := svc.RecomputeAggregates(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInlineAggregates_SwallowsFailure(t *testing.T) {
	repo := newStubCustomerRepo()
	sched := InlineAggregates{Customers: NewCustomerService(repo)}
	assert.NotPanics(t, func() {
		sched.ScheduleRecompute(context.Background(), uuid.New(), uuid.New())
	})
}

func TestGetCustomer(t *testing.T) {
	repo := newStubCustomerRepo()
	phone := "0901"
	c := repo.add(&model.Customer{OwnerID: uuid.New(), CustomerCode: "CUS-000001", FullName: "Lan", Phone: &phone, IsActive: true})
	svc := NewCustomerService(repo)

	resp, err := svc.GetCustomer(context.Background(), Actor{OwnerID: c.OwnerID}, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "CUS-000001", resp.CustomerCode)
	assert.Equal(t, "0901", *resp.Phone)

	_, err = svc.GetCustomer(context.Background(), Actor{OwnerID: uuid.New()}, c.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
