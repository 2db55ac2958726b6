//go:build integration

package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"retailpos/internal/config"
	"retailpos/internal/infra"
	"retailpos/internal/middleware"
	"retailpos/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

const testSecret = "e2e-secret"

type e2e struct {
	t       *testing.T
	srv     *gin.Engine
	ownerID uuid.UUID
}

func setupE2E(t *testing.T) (*e2e, *model.Customer) {
	t.Helper()
	ctx := context.Background()

	pg, err := tcPostgres.Run(ctx, "postgres:15-alpine",
		tcPostgres.WithDatabase("retailpos_test"),
		tcPostgres.WithUsername("test"),
		tcPostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })
	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rc, err := tcRedis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Terminate(ctx) })
	redisURL, err := rc.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := infra.NewDatabase(dsn)
	require.NoError(t, err)
	rdb, err := infra.NewRedis(redisURL)
	require.NoError(t, err)

	cfg := &config.Config{
		Env:                    "test",
		JWTSecret:              testSecret,
		RateLimitPerMinute:     10000,
		DebtDefaultDueDays:     30,
		IdempotencyLockSeconds: 30,
		IdempotencyWaitSeconds: 5,
		BusinessName:           "E2E Store",
		ReceiptStoragePath:     t.TempDir(),
	}
	comps := NewComponents(cfg, db, rdb)

	owner := uuid.New()
	phone := "0901000111"
	customer := &model.Customer{
		ID:           uuid.New(),
		OwnerID:      owner,
		CustomerCode: "CUS-E2E-1",
		FullName:     "Nguyen Thi Lan",
		Phone:        &phone,
		IsActive:     true,
	}
	require.NoError(t, db.Create(customer).Error)

	gin.SetMode(gin.TestMode)
	return &e2e{t: t, srv: New(cfg, db, rdb, comps, nil), ownerID: owner}, customer
}

func (e *e2e) token(role string) string {
	claims := middleware.JWTClaims{
		UserID:  uuid.NewString(),
		OwnerID: e.ownerID.String(),
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(e.t, err)
	return s
}

func (e *e2e) call(method, path, role string, body interface{}, headers map[string]string) (int, map[string]interface{}, http.Header) {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.token(role))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.srv.ServeHTTP(w, req)

	var out map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(e.t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out, w.Header()
}

func orderBody(customerID *uuid.UUID, price string, paid string, isDebt bool) map[string]interface{} {
	b := map[string]interface{}{
		"items": []map[string]interface{}{{
			"product_id":   uuid.NewString(),
			"unit_id":      uuid.NewString(),
			"product_name": "Rice 5kg",
			"quantity":     "1",
			"unit_price":   price,
		}},
		"payment_method": "CASH",
		"paid_amount":    paid,
		"is_debt":        isDebt,
	}
	if customerID != nil {
		b["customer_id"] = customerID.String()
	}
	return b
}

func TestE2E_CreditSaleAndRepayment(t *testing.T) {
	e, customer := setupE2E(t)
	key := map[string]string{"X-Idempotency-Key": "tap-" + uuid.NewString()}

	code, order, _ := e.call(http.MethodPost, "/v1/orders", middleware.RoleEmployee,
		orderBody(&customer.ID, "600000", "0", true), key)
	require.Equal(t, http.StatusCreated, code, order)
	assert.Equal(t, "UNPAID", order["payment_status"])
	debt := order["debt"].(map[string]interface{})
	debtID := debt["id"].(string)
	assert.Equal(t, "600000", debt["remaining_amount"])

	code, replay, hdr := e.call(http.MethodPost, "/v1/orders", middleware.RoleEmployee,
		orderBody(&customer.ID, "600000", "0", true), key)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "true", hdr.Get("X-Idempotent-Replay"))
	assert.Equal(t, order["id"], replay["id"])

	code, body, _ := e.call(http.MethodPost, "/v1/debts/"+debtID+"/repay", middleware.RoleEmployee,
		map[string]interface{}{"amount": "600001", "method": "CASH"}, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "EXCEEDS_REMAINING", body["code"])

	code, body, _ = e.call(http.MethodPost, "/v1/debts/"+debtID+"/repay", middleware.RoleEmployee,
		map[string]interface{}{"amount": "600000", "method": "CASH"}, nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "PAID", body["status"])
	assert.Equal(t, "0", body["remaining_amount"])

	code, body, _ = e.call(http.MethodPost, "/v1/debts/"+debtID+"/repay", middleware.RoleEmployee,
		map[string]interface{}{"amount": "1", "method": "CASH"}, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "DEBT_ALREADY_PAID", body["code"])

	code, body, _ = e.call(http.MethodGet, "/v1/customers/"+customer.ID.String()+"/debt-summary", middleware.RoleEmployee, nil, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "0", body["total_debt"])
}

func TestE2E_PartialPaymentOpensDebt(t *testing.T) {
	e, customer := setupE2E(t)

	code, order, _ := e.call(http.MethodPost, "/v1/orders", middleware.RoleEmployee,
		orderBody(&customer.ID, "600000", "200000", false), nil)
	require.Equal(t, http.StatusCreated, code, order)
	assert.Equal(t, "PARTIAL", order["payment_status"])

	debtID := order["debt"].(map[string]interface{})["id"].(string)
	code, debt, _ := e.call(http.MethodGet, "/v1/debts/"+debtID, middleware.RoleEmployee, nil, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "400000", debt["remaining_amount"])
	assert.Len(t, debt["payments"], 1)

	code, body, _ := e.call(http.MethodPost, "/v1/orders", middleware.RoleEmployee,
		orderBody(nil, "600000", "0", true), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, body["fields"], "customer_id")
}

func TestE2E_DraftConfirmation(t *testing.T) {
	e, _ := setupE2E(t)

	code, draft, _ := e.call(http.MethodPost, "/v1/drafts", middleware.RoleEmployee, map[string]interface{}{
		"source":           "VOICE",
		"raw_input":        "chi Hoa lay 2 chai nuoc mam, ghi no",
		"confidence_score": "0.9",
		"parsed_data": map[string]interface{}{
			"customer": map[string]interface{}{"name": "Tran Thi Hoa", "phone": "0987654321"},
			"items": []map[string]interface{}{{
				"product_id":   uuid.NewString(),
				"unit_id":      uuid.NewString(),
				"product_name": "Fish sauce",
				"quantity":     "2",
				"unit_price":   "45000",
			}},
			"payment": map[string]interface{}{"is_debt": true, "paid_amount": "0"},
		},
	}, nil)
	require.Equal(t, http.StatusCreated, code, draft)
	path := "/v1/drafts/" + draft["id"].(string) + "/confirm"

	code, confirmed, _ := e.call(http.MethodPost, path, middleware.RoleEmployee, nil, nil)
	require.Equal(t, http.StatusCreated, code, confirmed)
	assert.NotNil(t, confirmed["created_customer"])
	o := confirmed["order"].(map[string]interface{})
	assert.Equal(t, "UNPAID", o["payment_status"])
	assert.Equal(t, "99000", o["total_amount"])

	code, body, _ := e.call(http.MethodPost, path, middleware.RoleEmployee, nil, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "ALREADY_CONFIRMED", body["code"])
}

func TestE2E_CancelRequiresManager(t *testing.T) {
	e, _ := setupE2E(t)
	code, order, _ := e.call(http.MethodPost, "/v1/orders", middleware.RoleEmployee,
		orderBody(nil, "50000", "50000", false), nil)
	require.Equal(t, http.StatusCreated, code, order)
	path := "/v1/orders/" + order["id"].(string) + "/cancel"
	reason := map[string]string{"reason": "scanned twice"}

	code, _, _ = e.call(http.MethodPost, path, middleware.RoleEmployee, reason, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, body, _ := e.call(http.MethodPost, path, middleware.RoleOwner, reason, nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.NotNil(t, body["cancelled_at"])

	code, body, _ = e.call(http.MethodPost, path, middleware.RoleOwner, reason, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "ORDER_ALREADY_CANCELLED", body["code"])
}
