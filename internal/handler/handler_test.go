package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"retailpos/internal/dto"
	"retailpos/internal/middleware"
	"retailpos/internal/model"
	"retailpos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

// ── Stubs ─────────────────────────────────────────────────────────────────────

type stubOrderService struct {
	create  func(actor service.Actor, key string, cmd service.OrderCommand) (*dto.OrderResponse, error)
	gotKey  string
	gotUser uuid.UUID
}

func (s *stubOrderService) CreateOrder(_ context.Context, actor service.Actor, key string, cmd service.OrderCommand) (*dto.OrderResponse, error) {
	s.gotKey = key
	s.gotUser = actor.UserID
	return s.create(actor, key, cmd)
}

func (s *stubOrderService) GetOrder(context.Context, service.Actor, uuid.UUID) (*dto.OrderResponse, error) {
	return nil, service.ErrNotFound
}

func (s *stubOrderService) ListOrders(_ context.Context, _ service.Actor, f dto.OrderFilter) (*dto.OrderListResponse, error) {
	return &dto.OrderListResponse{Data: []dto.OrderResponse{}, Page: f.Page, Limit: f.Limit}, nil
}

func (s *stubOrderService) CancelOrder(context.Context, service.Actor, uuid.UUID, string) (*dto.OrderResponse, error) {
	return nil, &service.ConflictError{Code: service.CodeOrderHasPayments, Message: "has payments"}
}

type stubDebtService struct {
	repay func(req dto.RepayDebtRequest) (*dto.DebtResponse, error)
}

func (s *stubDebtService) GetDebt(context.Context, service.Actor, uuid.UUID) (*dto.DebtResponse, error) {
	return nil, &service.DependencyError{Dependency: "database", Err: errors.New("timeout")}
}

func (s *stubDebtService) ListDebts(context.Context, service.Actor, dto.DebtFilter) (*dto.DebtListResponse, error) {
	return &dto.DebtListResponse{}, nil
}

func (s *stubDebtService) CustomerDebtSummary(context.Context, service.Actor, uuid.UUID) (*dto.CustomerDebtSummary, error) {
	return &dto.CustomerDebtSummary{}, nil
}

func (s *stubDebtService) RepayDebt(_ context.Context, _ service.Actor, _ uuid.UUID, req dto.RepayDebtRequest) (*dto.DebtResponse, error) {
	return s.repay(req)
}

type stubDraftService struct {
	service.DraftService
	gotOverrides *model.DraftPayload
	calls        int
}

func (s *stubDraftService) ConfirmDraft(_ context.Context, _ service.Actor, _ uuid.UUID, o *model.DraftPayload) (*dto.ConfirmDraftResponse, error) {
	s.calls++
	s.gotOverrides = o
	if s.calls > 1 {
		return nil, &service.ConflictError{Code: service.CodeAlreadyConfirmed, Message: "already confirmed"}
	}
	return &dto.ConfirmDraftResponse{}, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

var testUser = uuid.New()

func withActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ClaimsKey, &middleware.JWTClaims{
			UserID:  testUser.String(),
			OwnerID: uuid.NewString(),
			Role:    middleware.RoleEmployee,
		})
		c.Next()
	}
}

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(withActor())
	return r
}

func do(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func validOrder() map[string]interface{} {
	return map[string]interface{}{
		"items": []map[string]interface{}{{
			"product_id": uuid.NewString(),
			"unit_id":    uuid.NewString(),
			"quantity":   "2",
			"unit_price": "150000",
		}},
		"payment_method": "CASH",
		"paid_amount":    "300000",
	}
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestCreateOrder_CreatedThenReplayed(t *testing.T) {
	svc := &stubOrderService{}
	calls := 0
	svc.create = func(service.Actor, string, service.OrderCommand) (*dto.OrderResponse, error) {
		calls++
		return &dto.OrderResponse{ID: "o-1", Replayed: calls > 1}, nil
	}
	r := newEngine()
	r.POST("/v1/orders", NewOrdersHandler(svc).CreateOrder)

	headers := map[string]string{IdempotencyKeyHeader: "  tap-1 "}
	w := do(r, http.MethodPost, "/v1/orders", validOrder(), headers)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Empty(t, w.Header().Get(ReplayHeader))
	assert.Equal(t, "tap-1", svc.gotKey)
	assert.Equal(t, testUser, svc.gotUser)

	w = do(r, http.MethodPost, "/v1/orders", validOrder(), headers)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true", w.Header().Get(ReplayHeader))
}

func TestCreateOrder_ValidationFieldsUseWireNames(t *testing.T) {
	svc := &stubOrderService{create: func(service.Actor, string, service.OrderCommand) (*dto.OrderResponse, error) {
		t.Fatal("service must not be called")
		return nil, nil
	}}
	r := newEngine()
	r.POST("/v1/orders", NewOrdersHandler(svc).CreateOrder)

	body := validOrder()
	body["items"].([]map[string]interface{})[0]["unit_id"] = "not-a-uuid"
	body["payment_method"] = "BITCOIN"
	w := do(r, http.MethodPost, "/v1/orders", body, nil)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	fields := decodeBody(t, w)["fields"].(map[string]interface{})
	assert.Equal(t, "uuid", fields["items[0].unit_id"])
	assert.Equal(t, "oneof", fields["payment_method"])
}

func TestCreateOrder_MalformedJSON(t *testing.T) {
	r := newEngine()
	r.POST("/v1/orders", NewOrdersHandler(&stubOrderService{}).CreateOrder)
	req := httptest.NewRequest(http.MethodPost, "/v1/orders", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "MALFORMED_JSON", decodeBody(t, w)["code"])
}

func TestRespondError_Mapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation with code", &service.ValidationError{Field: "amount", Code: service.CodeNonPositiveAmount, Message: "must be > 0"}, http.StatusUnprocessableEntity, service.CodeNonPositiveAmount},
		{"validation", &service.ValidationError{Field: "customer_id", Message: "required"}, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"conflict", &service.ConflictError{Code: service.CodeExceedsRemaining, Message: "too much"}, http.StatusConflict, service.CodeExceedsRemaining},
		{"not found", errors.Join(errors.New("debt x"), service.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"dependency", &service.DependencyError{Dependency: "inventory", Err: errors.New("open")}, http.StatusServiceUnavailable, "DEPENDENCY_UNAVAILABLE"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/x", func(c *gin.Context) { respondError(c, tt.err) })
			w := do(r, http.MethodGet, "/x", nil, nil)
			assert.Equal(t, tt.status, w.Code)
			body := decodeBody(t, w)
			if tt.code != "" {
				assert.Equal(t, tt.code, body["code"])
			}
			assert.NotContains(t, w.Body.String(), "boom")
		})
	}
}

func TestRepayDebt_ConflictCarriesCode(t *testing.T) {
	svc := &stubDebtService{repay: func(req dto.RepayDebtRequest) (*dto.DebtResponse, error) {
		return nil, &service.ConflictError{Code: service.CodeExceedsRemaining,
			Message: "amount " + req.Amount.String() + " exceeds remaining debt of 600000"}
	}}
	r := newEngine()
	r.POST("/v1/debts/:id/repay", NewDebtsHandler(svc).RepayDebt)

	w := do(r, http.MethodPost, "/v1/debts/"+uuid.NewString()+"/repay",
		map[string]interface{}{"amount": "600001", "method": "CASH"}, nil)
	require.Equal(t, http.StatusConflict, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, service.CodeExceedsRemaining, body["code"])
	assert.Contains(t, body["detail"], "600000")
}

func TestRepayDebt_BadID(t *testing.T) {
	r := newEngine()
	r.POST("/v1/debts/:id/repay", NewDebtsHandler(&stubDebtService{}).RepayDebt)
	w := do(r, http.MethodPost, "/v1/debts/42/repay", map[string]interface{}{"amount": "1", "method": "CASH"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ID", decodeBody(t, w)["code"])
}

func TestGetDebt_DependencyIs503(t *testing.T) {
	r := newEngine()
	r.GET("/v1/debts/:id", NewDebtsHandler(&stubDebtService{}).GetDebt)
	w := do(r, http.MethodGet, "/v1/debts/"+uuid.NewString(), nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCancelOrder_Conflict(t *testing.T) {
	r := newEngine()
	r.POST("/v1/orders/:id/cancel", NewOrdersHandler(&stubOrderService{}).CancelOrder)
	w := do(r, http.MethodPost, "/v1/orders/"+uuid.NewString()+"/cancel", map[string]string{"reason": "typo"}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, service.CodeOrderHasPayments, decodeBody(t, w)["code"])
}

func TestConfirmDraft_OptionalBodyAndSecondConfirm(t *testing.T) {
	svc := &stubDraftService{}
	r := newEngine()
	r.POST("/v1/drafts/:id/confirm", NewDraftsHandler(svc).ConfirmDraft)
	path := "/v1/drafts/" + uuid.NewString() + "/confirm"

	req := httptest.NewRequest(http.MethodPost, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Nil(t, svc.gotOverrides)

	w = do(r, http.MethodPost, path, map[string]interface{}{"overrides": map[string]interface{}{"notes": "x"}}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	require.NotNil(t, svc.gotOverrides)
	assert.Equal(t, "x", *svc.gotOverrides.Notes)
	assert.Equal(t, service.CodeAlreadyConfirmed, decodeBody(t, w)["code"])
}
