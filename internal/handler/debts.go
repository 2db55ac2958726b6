package handler

import (
	"net/http"

	"retailpos/internal/dto"
	"retailpos/internal/service"

	"github.com/gin-gonic/gin"
)

type DebtsHandler struct{ svc service.DebtService }

func NewDebtsHandler(svc service.DebtService) *DebtsHandler { return &DebtsHandler{svc: svc} }

// ListDebts godoc
// @Summary      List debts
// @Description  status=OVERDUE selects unpaid debts past their due date.
// @Tags         debts
// @Produce      json
// @Security     BearerAuth
// @Param        customer_id query string false "customer UUID"
// @Param        status query string false "PENDING|PARTIAL|PAID|OVERDUE"
// @Param        sort query string false "latest|largest_remaining|nearest_due"
// @Success      200 {object} dto.DebtListResponse
// @Router       /v1/debts [get]
func (h *DebtsHandler) ListDebts(c *gin.Context) {
	var filter dto.DebtFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.ListDebts(c.Request.Context(), actorFrom(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetDebt godoc
// @Summary      Get a debt with its repayment history
// @Tags         debts
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "debt UUID"
// @Success      200 {object} dto.DebtResponse
// @Failure      404 {object} apierror.APIError
// @Router       /v1/debts/{id} [get]
func (h *DebtsHandler) GetDebt(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.GetDebt(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RepayDebt godoc
// @Summary      Record a repayment
// @Description  Amounts above the remaining balance are rejected, never clamped.
// @Tags         debts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string true "debt UUID"
// @Param        body body dto.RepayDebtRequest true "amount and method"
// @Success      200  {object} dto.DebtResponse
// @Failure      409  {object} apierror.APIError "EXCEEDS_REMAINING, DEBT_ALREADY_PAID, DEBT_VOIDED"
// @Failure      422  {object} apierror.ValidationError
// @Router       /v1/debts/{id}/repay [post]
func (h *DebtsHandler) RepayDebt(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req dto.RepayDebtRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.RepayDebt(c.Request.Context(), actorFrom(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
