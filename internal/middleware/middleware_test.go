package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func init() { gin.SetMode(gin.TestMode) }

func signToken(t *testing.T, claims JWTClaims, secret string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func validClaims(role string) JWTClaims {
	return JWTClaims{
		UserID:  uuid.NewString(),
		OwnerID: uuid.NewString(),
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func protectedRouter(roles ...string) *gin.Engine {
	r := gin.New()
	r.GET("/x", JWTAuth(testSecret), RequireRole(roles...), func(c *gin.Context) {
		c.String(http.StatusOK, GetClaims(c).OwnerID)
	})
	return r
}

func doGet(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	r := protectedRouter(RoleOwner, RoleEmployee)

	t.Run("missing header", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, doGet(r, "").Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		tok := signToken(t, validClaims(RoleOwner), "other")
		assert.Equal(t, http.StatusUnauthorized, doGet(r, tok).Code)
	})

	t.Run("expired", func(t *testing.T) {
		c := validClaims(RoleOwner)
		c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		assert.Equal(t, http.StatusUnauthorized, doGet(r, signToken(t, c, testSecret)).Code)
	})

	t.Run("owner_id not a uuid", func(t *testing.T) {
		c := validClaims(RoleOwner)
		c.OwnerID = "shop-1"
		assert.Equal(t, http.StatusUnauthorized, doGet(r, signToken(t, c, testSecret)).Code)
	})

	t.Run("role not allowed", func(t *testing.T) {
		tok := signToken(t, validClaims("VIEWER"), testSecret)
		assert.Equal(t, http.StatusForbidden, doGet(r, tok).Code)
	})

	t.Run("ok", func(t *testing.T) {
		c := validClaims(RoleEmployee)
		w := doGet(r, signToken(t, c, testSecret))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, c.OwnerID, w.Body.String())
	})
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(RequestIDKey)) })

	w := doGet(r, "")
	generated := w.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, generated)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Body.String())
}

func TestRateLimiter(t *testing.T) {
	l := NewRateLimiter(2, time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	ok, _ := l.allow("1.1.1.1")
	assert.True(t, ok)
	ok, _ = l.allow("1.1.1.1")
	assert.True(t, ok)
	ok, _ = l.allow("1.1.1.1")
	assert.False(t, ok)

	ok, _ = l.allow("2.2.2.2")
	assert.True(t, ok, "limits are per IP")

	now = now.Add(61 * time.Second)
	ok, _ = l.allow("1.1.1.1")
	assert.True(t, ok, "window resets")

	assert.Equal(t, 1, l.purge(), "2.2.2.2 window expired")
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/x", func(*gin.Context) { panic("boom") })

	w := doGet(r, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "boom")
}
