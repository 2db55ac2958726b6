package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"retailpos/internal/dto"
	"retailpos/internal/infra"
	"retailpos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ── Stubs ─────────────────────────────────────────────────────────────────────
// In-memory repositories. DB() returns nil so runTx calls fn(nil) inline.
// Every read returns a copy, like a row fetched from Postgres.

type stubOrderRepo struct {
	mu      sync.Mutex
	orders  map[uuid.UUID]*model.Order
	byKey   map[string]uuid.UUID
	seq     int
	creates int
}

func newStubOrderRepo() *stubOrderRepo {
	return &stubOrderRepo{orders: map[uuid.UUID]*model.Order{}, byKey: map[string]uuid.UUID{}}
}

func (r *stubOrderRepo) Create(_ context.Context, _ *gorm.DB, o *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o.IdempotencyKey != nil {
		k := o.OwnerID.String() + ":" + *o.IdempotencyKey
		if _, dup := r.byKey[k]; dup {
			return gorm.ErrDuplicatedKey
		}
		r.byKey[k] = o.ID
	}
	r.orders[o.ID] = o
	r.creates++
	return nil
}

func (r *stubOrderRepo) FindByID(_ context.Context, ownerID, id uuid.UUID) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.OwnerID != ownerID {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *stubOrderRepo) FindByIdempotencyKey(_ context.Context, ownerID uuid.UUID, key string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byKey[ownerID.String()+":"+key]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *r.orders[id]
	return &cp, nil
}

func (r *stubOrderRepo) NextOrderCode(_ context.Context, _ *gorm.DB, day time.Time) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return fmt.Sprintf("ORD-%s-%06d", day.Format("20060102"), r.seq), nil
}

func (r *stubOrderRepo) MarkCancelled(_ context.Context, _ *gorm.DB, id uuid.UUID, at time.Time, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.CancelledAt != nil {
		return gorm.ErrRecordNotFound
	}
	o.CancelledAt = &at
	o.CancelReason = &reason
	return nil
}

func (r *stubOrderRepo) List(_ context.Context, ownerID uuid.UUID, filter dto.OrderFilter) ([]model.Order, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Order
	for _, o := range r.orders {
		if o.OwnerID != ownerID || (!filter.IncludeCancelled && o.CancelledAt != nil) {
			continue
		}
		if filter.Status != "" && string(o.PaymentStatus) != filter.Status {
			continue
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderCode > out[j].OrderCode })
	return out, int64(len(out)), nil
}

func (r *stubOrderRepo) ExpireIdempotencyKeys(context.Context, time.Time, int) (int64, error) {
	return 0, nil
}

func (r *stubOrderRepo) DB() *gorm.DB { return nil }

func (r *stubOrderRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

type stubDebtRepo struct {
	mu       sync.Mutex
	debts    map[uuid.UUID]*model.Debt
	payments map[uuid.UUID][]model.Payment
	findErr  error
}

func newStubDebtRepo() *stubDebtRepo {
	return &stubDebtRepo{debts: map[uuid.UUID]*model.Debt{}, payments: map[uuid.UUID][]model.Payment{}}
}

func (r *stubDebtRepo) Create(_ context.Context, _ *gorm.DB, d *model.Debt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	cp.Payments = nil
	r.debts[d.ID] = &cp
	r.payments[d.ID] = append([]model.Payment(nil), d.Payments...)
	return nil
}

func (r *stubDebtRepo) get(ownerID, id uuid.UUID) (*model.Debt, error) {
	d, ok := r.debts[id]
	if !ok || d.OwnerID != ownerID {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *d
	cp.Payments = append([]model.Payment(nil), r.payments[id]...)
	return &cp, nil
}

func (r *stubDebtRepo) FindByID(_ context.Context, ownerID, id uuid.UUID) (*model.Debt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	return r.get(ownerID, id)
}

func (r *stubDebtRepo) FindByOrderID(_ context.Context, ownerID, orderID uuid.UUID) (*model.Debt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.debts {
		if d.OrderID == orderID {
			return r.get(ownerID, d.ID)
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubDebtRepo) LockByID(_ context.Context, _ *gorm.DB, ownerID, id uuid.UUID) (*model.Debt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(ownerID, id)
}

func (r *stubDebtRepo) AddPayment(_ context.Context, _ *gorm.DB, p *model.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payments[p.DebtID] = append(r.payments[p.DebtID], *p)
	return nil
}

func (r *stubDebtRepo) SumPayments(_ context.Context, _ *gorm.DB, debtID uuid.UUID) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sum := decimal.Zero
	for _, p := range r.payments[debtID] {
		sum = sum.Add(p.Amount)
	}
	return sum, nil
}

func (r *stubDebtRepo) CountPayments(_ context.Context, _ *gorm.DB, debtID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.payments[debtID])), nil
}

func (r *stubDebtRepo) UpdateBalance(_ context.Context, _ *gorm.DB, d *model.Debt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.debts[d.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.PaidAmount = d.PaidAmount
	stored.RemainingAmount = d.RemainingAmount
	stored.Status = d.Status
	return nil
}

func (r *stubDebtRepo) Void(_ context.Context, _ *gorm.DB, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.debts[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	d.VoidedAt = &at
	return nil
}

func (r *stubDebtRepo) OpenByCustomer(_ context.Context, ownerID, customerID uuid.UUID) ([]model.Debt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Debt
	for _, d := range r.debts {
		if d.OwnerID == ownerID && d.CustomerID == customerID && d.VoidedAt == nil && d.Status != model.DebtPaid {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *stubDebtRepo) List(_ context.Context, ownerID uuid.UUID, filter dto.DebtFilter, today time.Time) ([]model.Debt, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Debt
	for _, d := range r.debts {
		if d.OwnerID != ownerID || d.VoidedAt != nil {
			continue
		}
		if filter.Status == string(model.DebtOverdue) {
			if d.Status == model.DebtPaid || d.DueDate == nil || !d.DueDate.Before(today) {
				continue
			}
		} else if filter.Status != "" && string(d.Status) != filter.Status {
			continue
		}
		out = append(out, *d)
	}
	return out, int64(len(out)), nil
}

func (r *stubDebtRepo) DB() *gorm.DB { return nil }

func (r *stubDebtRepo) only() *model.Debt {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.debts {
		cp := *d
		cp.Payments = append([]model.Payment(nil), r.payments[d.ID]...)
		return &cp
	}
	return nil
}

type stubCustomerRepo struct {
	mu         sync.Mutex
	customers  map[uuid.UUID]*model.Customer
	seq        int
	creates    int
	stale      map[uuid.UUID]int
	recomputed map[uuid.UUID]int
	findErr    error
}

func newStubCustomerRepo() *stubCustomerRepo {
	return &stubCustomerRepo{
		customers:  map[uuid.UUID]*model.Customer{},
		stale:      map[uuid.UUID]int{},
		recomputed: map[uuid.UUID]int{},
	}
}

func (r *stubCustomerRepo) add(c *model.Customer) *model.Customer {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	r.customers[c.ID] = c
	return c
}

func (r *stubCustomerRepo) Create(_ context.Context, _ *gorm.DB, c *model.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.customers[c.ID] = c
	r.creates++
	return nil
}

func (r *stubCustomerRepo) FindByID(_ context.Context, _ *gorm.DB, ownerID, id uuid.UUID) (*model.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	c, ok := r.customers[id]
	if !ok || c.OwnerID != ownerID {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *stubCustomerRepo) FindByNameAndPhone(_ context.Context, _ *gorm.DB, ownerID uuid.UUID, name, phone string) (*model.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.customers {
		if c.OwnerID == ownerID && c.IsActive && c.FullName == name && c.Phone != nil && *c.Phone == phone {
			cp := *c
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubCustomerRepo) NextCustomerCode(context.Context, *gorm.DB) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return fmt.Sprintf("CUS-%06d", r.seq), nil
}

func (r *stubCustomerRepo) MarkStale(_ context.Context, _ *gorm.DB, _, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stale[id]++
	if c, ok := r.customers[id]; ok {
		c.AggregatesStale = true
	}
	return nil
}

func (r *stubCustomerRepo) RecomputeAggregates(_ context.Context, _, id uuid.UUID) (model.CustomerAggregates, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.customers[id]
	if !ok {
		return model.CustomerAggregates{}, gorm.ErrRecordNotFound
	}
	r.recomputed[id]++
	c.AggregatesStale = false
	return model.CustomerAggregates{TotalDebt: c.TotalDebt, OrderCount: c.OrderCount, TotalSpent: c.TotalSpent}, nil
}

func (r *stubCustomerRepo) ListStale(_ context.Context, limit int) ([]model.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Customer
	for _, c := range r.customers {
		if c.AggregatesStale && len(out) < limit {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *stubCustomerRepo) DB() *gorm.DB { return nil }

type stubDraftRepo struct {
	mu     sync.Mutex
	drafts map[uuid.UUID]*model.Draft
	// onLock runs inside LockByID, after the snapshot read.
	onLock func(d *model.Draft)
}

func newStubDraftRepo() *stubDraftRepo {
	return &stubDraftRepo{drafts: map[uuid.UUID]*model.Draft{}}
}

func (r *stubDraftRepo) Create(_ context.Context, d *model.Draft) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.drafts[d.ID] = &cp
	return nil
}

func (r *stubDraftRepo) FindByID(_ context.Context, ownerID, id uuid.UUID) (*model.Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drafts[id]
	if !ok || d.OwnerID != ownerID {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *stubDraftRepo) LockByID(ctx context.Context, _ *gorm.DB, ownerID, id uuid.UUID) (*model.Draft, error) {
	if r.onLock != nil {
		r.mu.Lock()
		if d, ok := r.drafts[id]; ok {
			r.onLock(d)
		}
		r.mu.Unlock()
	}
	return r.FindByID(ctx, ownerID, id)
}

func (r *stubDraftRepo) Update(_ context.Context, _ *gorm.DB, d *model.Draft) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.drafts[d.ID] = &cp
	return nil
}

func (r *stubDraftRepo) List(_ context.Context, ownerID uuid.UUID, filter dto.DraftFilter) ([]model.Draft, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Draft
	for _, d := range r.drafts {
		if d.OwnerID == ownerID && (filter.Status == "" || string(d.Status) == filter.Status) {
			out = append(out, *d)
		}
	}
	return out, int64(len(out)), nil
}

func (r *stubDraftRepo) DB() *gorm.DB { return nil }

type stubInventory struct {
	shortages []infra.Shortage
	err       error
	calls     int
}

func (s *stubInventory) CheckAvailability(context.Context, uuid.UUID, []infra.AvailabilityLine) ([]infra.Shortage, error) {
	s.calls++
	return s.shortages, s.err
}

type stubScheduler struct {
	mu    sync.Mutex
	calls []uuid.UUID
}

func (s *stubScheduler) ScheduleRecompute(_ context.Context, _, customerID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, customerID)
}

type stubReceipts struct {
	mu     sync.Mutex
	orders []uuid.UUID
}

func (s *stubReceipts) EnqueueReceipt(_ context.Context, _, orderID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, orderID)
	return nil
}

type stubEvents struct {
	mu    sync.Mutex
	types []string
}

func (s *stubEvents) Publish(_ context.Context, _ uuid.UUID, eventType string, _ interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.types = append(s.types, eventType)
	return nil
}

func (s *stubEvents) published() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.types...)
}

// stubLocker is an in-memory KeyLocker.
type stubLocker struct {
	mu   sync.Mutex
	held map[string]string
	err  error
}

func newStubLocker() *stubLocker { return &stubLocker{held: map[string]string{}} }

func (l *stubLocker) Acquire(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return "", false, l.err
	}
	if _, busy := l.held[key]; busy {
		return "", false, nil
	}
	token := uuid.NewString()
	l.held[key] = token
	return token, true, nil
}

func (l *stubLocker) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}

// ── Fixture ───────────────────────────────────────────────────────────────────

var fixedNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	actor      Actor
	orders     *stubOrderRepo
	debts      *stubDebtRepo
	customers  *stubCustomerRepo
	drafts     *stubDraftRepo
	inventory  *stubInventory
	aggregates *stubScheduler
	receipts   *stubReceipts
	events     *stubEvents
	locker     *stubLocker

	orderSvc OrderService
	debtSvc  DebtService
	draftSvc DraftService
}

func newFixture() *fixture {
	f := &fixture{
		actor:      Actor{OwnerID: uuid.New(), UserID: uuid.New()},
		orders:     newStubOrderRepo(),
		debts:      newStubDebtRepo(),
		customers:  newStubCustomerRepo(),
		drafts:     newStubDraftRepo(),
		inventory:  &stubInventory{},
		aggregates: &stubScheduler{},
		receipts:   &stubReceipts{},
		events:     &stubEvents{},
		locker:     newStubLocker(),
	}
	deps := OrderDeps{
		Orders:      f.orders,
		Debts:       f.debts,
		Customers:   f.customers,
		Inventory:   f.inventory,
		Guard:       NewIdempotencyGuard(f.locker, time.Second, 200*time.Millisecond),
		Aggregates:  f.aggregates,
		Receipts:    f.receipts,
		Events:      f.events,
		Pricing:     NewPricing(0),
		DebtDueDays: 30,
	}
	os := NewOrderService(deps).(*orderService)
	os.now = func() time.Time { return fixedNow }
	f.orderSvc = os

	ds := NewDebtService(f.debts, f.customers, f.aggregates, f.events, deps.Pricing).(*debtService)
	ds.now = func() time.Time { return fixedNow }
	f.debtSvc = ds

	dr := NewDraftService(f.drafts, deps).(*draftService)
	dr.writer.now = func() time.Time { return fixedNow }
	f.draftSvc = dr
	return f
}

func (f *fixture) customer(name, phone string) *model.Customer {
	c := &model.Customer{
		OwnerID:      f.actor.OwnerID,
		CustomerCode: "CUS-" + name,
		FullName:     name,
		IsActive:     true,
	}
	if phone != "" {
		c.Phone = &phone
	}
	return f.customers.add(c)
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func line(qty, price int64) OrderLineInput {
	return OrderLineInput{
		ProductID:   uuid.New(),
		UnitID:      uuid.New(),
		ProductName: "item",
		Quantity:    dec(qty),
		UnitPrice:   dec(price),
	}
}
