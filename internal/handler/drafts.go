package handler

import (
	"net/http"

	"retailpos/internal/dto"
	"retailpos/internal/service"

	"github.com/gin-gonic/gin"
)

type DraftsHandler struct{ svc service.DraftService }

func NewDraftsHandler(svc service.DraftService) *DraftsHandler { return &DraftsHandler{svc: svc} }

// CreateDraft godoc
// @Summary      Store a parsed order draft
// @Description  Called by the text/voice parser. Nothing is sold until confirm.
// @Tags         drafts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.CreateDraftRequest true "parser output"
// @Success      201  {object} dto.DraftResponse
// @Router       /v1/drafts [post]
func (h *DraftsHandler) CreateDraft(c *gin.Context) {
	var req dto.CreateDraftRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CreateDraft(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *DraftsHandler) ListDrafts(c *gin.Context) {
	var filter dto.DraftFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.ListDrafts(c.Request.Context(), actorFrom(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *DraftsHandler) GetDraft(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.GetDraft(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *DraftsHandler) UpdateDraft(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateDraftRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.UpdateDraft(c.Request.Context(), actorFrom(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ConfirmDraft godoc
// @Summary      Confirm a draft into an order
// @Description  Creates the customer (if new) and the order in one transaction.
// @Description  A second confirm returns 409 ALREADY_CONFIRMED.
// @Tags         drafts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string true "draft UUID"
// @Param        body body dto.ConfirmDraftRequest false "cashier overrides"
// @Success      201  {object} dto.ConfirmDraftResponse
// @Failure      409  {object} apierror.APIError
// @Failure      422  {object} apierror.ValidationError
// @Router       /v1/drafts/{id}/confirm [post]
func (h *DraftsHandler) ConfirmDraft(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req dto.ConfirmDraftRequest
	// body is optional
	if c.Request.ContentLength != 0 {
		if !bindAndValidate(c, &req) {
			return
		}
	}
	resp, err := h.svc.ConfirmDraft(c.Request.Context(), actorFrom(c), id, req.Overrides)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}
