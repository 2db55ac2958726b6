package router

import (
	"time"

	"retailpos/internal/config"
	"retailpos/internal/handler"
	"retailpos/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New returns a configured Gin engine serving the /v1 API.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, comps *Components, limiter *middleware.RateLimiter) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	if limiter == nil {
		limiter = middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	}
	r.Use(limiter.Middleware())

	ordersH := handler.NewOrdersHandler(comps.OrderSvc)
	debtsH := handler.NewDebtsHandler(comps.DebtSvc)
	customersH := handler.NewCustomersHandler(comps.CustomerSvc, comps.DebtSvc)
	draftsH := handler.NewDraftsHandler(comps.DraftSvc)
	eventsH := handler.NewEventsHandler(comps.Events)

	// Public
	r.GET("/health", handler.Health(db, rdb, comps.InventoryBreaker()))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	staff := middleware.RequireRole(middleware.RoleOwner, middleware.RoleAdmin, middleware.RoleEmployee)
	managers := middleware.RequireRole(middleware.RoleOwner, middleware.RoleAdmin)

	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret), staff)
	{
		orders := v1.Group("/orders")
		{
			orders.POST("", ordersH.CreateOrder)
			orders.GET("", ordersH.ListOrders)
			orders.GET("/:id", ordersH.GetOrder)
			orders.POST("/:id/cancel", managers, ordersH.CancelOrder)
		}

		debts := v1.Group("/debts")
		{
			debts.GET("", debtsH.ListDebts)
			debts.GET("/:id", debtsH.GetDebt)
			debts.POST("/:id/repay", debtsH.RepayDebt)
		}

		customers := v1.Group("/customers")
		{
			customers.GET("/:id", customersH.GetCustomer)
			customers.GET("/:id/debt-summary", customersH.DebtSummary)
		}

		drafts := v1.Group("/drafts")
		{
			drafts.POST("", draftsH.CreateDraft)
			drafts.GET("", draftsH.ListDrafts)
			drafts.GET("/:id", draftsH.GetDraft)
			drafts.PATCH("/:id", draftsH.UpdateDraft)
			drafts.POST("/:id/confirm", draftsH.ConfirmDraft)
		}

		v1.GET("/events/stream", eventsH.Stream)
	}

	return r
}
