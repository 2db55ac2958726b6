package router

import (
	"time"

	"retailpos/internal/config"
	"retailpos/internal/infra"
	"retailpos/internal/repository"
	"retailpos/internal/service"
	"retailpos/internal/worker"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const inventoryTimeout = 5 * time.Second

// Components is the dependency graph shared by the HTTP router and the
// background workers started in main.
// Handler ← Service ← Repository ← DB/Redis
type Components struct {
	Orders    repository.OrderRepository
	Debts     repository.DebtRepository
	Customers repository.CustomerRepository
	Drafts    repository.DraftRepository

	OrderSvc    service.OrderService
	DebtSvc     service.DebtService
	CustomerSvc service.CustomerService
	DraftSvc    service.DraftService

	Dispatcher *worker.Dispatcher
	Events     *infra.EventBus
	Mailer     *infra.Mailer
	// Inventory is nil when INVENTORY_SERVICE_URL is empty.
	Inventory *infra.InventoryClient
}

func NewComponents(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *Components {
	c := &Components{
		Orders:     repository.NewOrderRepository(db),
		Debts:      repository.NewDebtRepository(db),
		Customers:  repository.NewCustomerRepository(db),
		Drafts:     repository.NewDraftRepository(db),
		Dispatcher: worker.NewDispatcher(rdb),
		Events:     infra.NewEventBus(rdb),
		Mailer:     infra.NewMailer(cfg),
	}
	c.CustomerSvc = service.NewCustomerService(c.Customers)

	var aggregates service.AggregateScheduler = service.InlineAggregates{Customers: c.CustomerSvc}
	if cfg.AggregatesAsync {
		aggregates = c.Dispatcher
	}

	deps := service.OrderDeps{
		Orders:      c.Orders,
		Debts:       c.Debts,
		Customers:   c.Customers,
		Guard:       service.NewIdempotencyGuard(infra.NewRedisKeyLocker(rdb), cfg.IdempotencyLockTTL(), cfg.IdempotencyWait()),
		Aggregates:  aggregates,
		Receipts:    c.Dispatcher,
		Events:      c.Events,
		Pricing:     service.NewPricing(cfg.CurrencyDecimals),
		DebtDueDays: cfg.DebtDefaultDueDays,
	}
	if cfg.InventoryServiceURL != "" {
		c.Inventory = infra.NewInventoryClient(cfg.InventoryServiceURL, inventoryTimeout)
		deps.Inventory = c.Inventory
	}

	c.OrderSvc = service.NewOrderService(deps)
	c.DebtSvc = service.NewDebtService(c.Debts, c.Customers, aggregates, c.Events, deps.Pricing)
	c.DraftSvc = service.NewDraftService(c.Drafts, deps)
	return c
}

// WorkerHandlers maps job types to the workers that process them.
func (c *Components) WorkerHandlers(cfg *config.Config) map[string]worker.Handler {
	var emails worker.EmailEnqueuer
	if c.Mailer.Enabled() {
		emails = c.Dispatcher
	}
	receipts := worker.NewReceiptWorker(c.Orders, emails, cfg.BusinessName, cfg.ReceiptStoragePath)
	return map[string]worker.Handler{
		worker.JobAggregates: worker.NewAggregateWorker(c.CustomerSvc).Process,
		worker.JobReceipt:    receipts.Process,
		worker.JobEmail:      worker.NewEmailWorker(c.Mailer).Process,
	}
}

// InventoryBreaker is nil when the availability check is disabled.
func (c *Components) InventoryBreaker() *infra.CircuitBreaker {
	if c.Inventory == nil {
		return nil
	}
	return c.Inventory.Breaker()
}
