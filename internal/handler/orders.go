package handler

import (
	"net/http"
	"strings"

	"retailpos/internal/dto"
	"retailpos/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	IdempotencyKeyHeader = "X-Idempotency-Key"
	ReplayHeader         = "X-Idempotent-Replay"
)

type OrdersHandler struct{ svc service.OrderService }

func NewOrdersHandler(svc service.OrderService) *OrdersHandler { return &OrdersHandler{svc: svc} }

// CreateOrder godoc
// @Summary      Create an order
// @Description  Prices the cart, allocates the tendered amount and opens a debt
// @Description  for any unpaid remainder, all in one transaction. Retries with the
// @Description  same X-Idempotency-Key return the original order with 200.
// @Tags         orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        X-Idempotency-Key header string false "client-generated retry key"
// @Param        body body dto.CreateOrderRequest true "cart and payment"
// @Success      201  {object} dto.OrderResponse
// @Success      200  {object} dto.OrderResponse "replay"
// @Failure      409  {object} apierror.APIError
// @Failure      422  {object} apierror.ValidationError
// @Failure      503  {object} apierror.APIError
// @Router       /v1/orders [post]
func (h *OrdersHandler) CreateOrder(c *gin.Context) {
	var req dto.CreateOrderRequest
	if !bindAndValidate(c, &req) {
		return
	}
	cmd, err := service.OrderCommandFromRequest(req)
	if err != nil {
		respondError(c, err)
		return
	}
	key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))

	resp, err := h.svc.CreateOrder(c.Request.Context(), actorFrom(c), key, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	if resp.Replayed {
		c.Header(ReplayHeader, "true")
		c.JSON(http.StatusOK, resp)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// GetOrder godoc
// @Summary      Get an order with its lines and debt
// @Tags         orders
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "order UUID"
// @Success      200 {object} dto.OrderResponse
// @Failure      404 {object} apierror.APIError
// @Router       /v1/orders/{id} [get]
func (h *OrdersHandler) GetOrder(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.GetOrder(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListOrders godoc
// @Summary      List orders, newest first
// @Tags         orders
// @Produce      json
// @Security     BearerAuth
// @Param        customer_id query string false "customer UUID"
// @Param        status query string false "PAID|PARTIAL|UNPAID"
// @Param        from query string false "YYYY-MM-DD"
// @Param        to query string false "YYYY-MM-DD"
// @Success      200 {object} dto.OrderListResponse
// @Router       /v1/orders [get]
func (h *OrdersHandler) ListOrders(c *gin.Context) {
	var filter dto.OrderFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.ListOrders(c.Request.Context(), actorFrom(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CancelOrder godoc
// @Summary      Cancel an order
// @Description  Voids the order's debt. Rejected once repayments were recorded.
// @Tags         orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string true "order UUID"
// @Param        body body dto.CancelOrderRequest true "reason"
// @Success      200  {object} dto.OrderResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/orders/{id}/cancel [post]
func (h *OrdersHandler) CancelOrder(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req dto.CancelOrderRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CancelOrder(c.Request.Context(), actorFrom(c), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
