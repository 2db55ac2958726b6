package handler

import (
	"net/http"

	"retailpos/internal/service"

	"github.com/gin-gonic/gin"
)

type CustomersHandler struct {
	customers service.CustomerService
	debts     service.DebtService
}

func NewCustomersHandler(customers service.CustomerService, debts service.DebtService) *CustomersHandler {
	return &CustomersHandler{customers: customers, debts: debts}
}

// GetCustomer returns the customer with cached aggregates; aggregates_stale
// tells the client a recompute is pending.
func (h *CustomersHandler) GetCustomer(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.customers.GetCustomer(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// DebtSummary is computed from open debts, not from the cached total.
func (h *CustomersHandler) DebtSummary(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.debts.CustomerDebtSummary(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
