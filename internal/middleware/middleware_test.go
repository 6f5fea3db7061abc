package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "nightpass/internal/errors"
	"nightpass/internal/models"
	"nightpass/internal/ratelimit"
)

const (
	testSecret = "super-secret-jwt-token-with-at-least-32-characters"
	testUserID = "0f1e2d3c-4b5a-4968-8776-655443322110"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var e envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	return e
}

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims() jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   testUserID,
		Issuer:    "https://project.supabase.co/auth/v1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
}

type stubStaff struct {
	member *models.Staff
	err    error
}

func (s stubStaff) ResolveStaff(_ context.Context, userID string) (*models.Staff, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.member, nil
}

func authRouter(resolver StaffResolver, roles ...string) *gin.Engine {
	r := gin.New()
	r.GET("/api/me", Auth(AuthConfig{Secret: testSecret, Issuer: "https://project.supabase.co/auth/v1"}, resolver), RequireRole(roles...), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"tenant": TenantID(c), "role": CurrentStaff(c).Role}})
	})
	return r
}

func TestParseToken(t *testing.T) {
	cfg := AuthConfig{Secret: testSecret}

	sub, err := ParseToken(cfg, signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims()))
	require.NoError(t, err)
	assert.Equal(t, testUserID, sub)

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	_, err = ParseToken(cfg, signToken(t, jwt.SigningMethodHS256, []byte(testSecret), expired))
	assert.Error(t, err)

	noExpiry := validClaims()
	noExpiry.ExpiresAt = nil
	_, err = ParseToken(cfg, signToken(t, jwt.SigningMethodHS256, []byte(testSecret), noExpiry))
	assert.Error(t, err)

	_, err = ParseToken(cfg, signToken(t, jwt.SigningMethodHS256, []byte("another-secret"), validClaims()))
	assert.Error(t, err)

	_, err = ParseToken(cfg, signToken(t, jwt.SigningMethodHS384, []byte(testSecret), validClaims()))
	assert.Error(t, err)

	_, err = ParseToken(AuthConfig{Secret: testSecret, Issuer: "other"}, signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims()))
	assert.Error(t, err)
}

func TestAuth(t *testing.T) {
	member := &models.Staff{ID: "staff-1", TenantID: "tenant-1", UserID: testUserID, Role: models.RoleManager, IsActive: true}
	token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims())

	tests := []struct {
		name     string
		resolver StaffResolver
		roles    []string
		header   string
		status   int
	}{
		{"missing header", stubStaff{member: member}, []string{models.RoleManager}, "", http.StatusUnauthorized},
		{"bad token", stubStaff{member: member}, []string{models.RoleManager}, "Bearer abc.def.ghi", http.StatusUnauthorized},
		{"not staff", stubStaff{err: apperrors.ErrForbidden}, []string{models.RoleManager}, "Bearer " + token, http.StatusForbidden},
		{"store down", stubStaff{err: errors.New("connection refused")}, []string{models.RoleManager}, "Bearer " + token, http.StatusInternalServerError},
		{"wrong role", stubStaff{member: member}, []string{models.RoleOwner, models.RoleAdmin}, "Bearer " + token, http.StatusForbidden},
		{"allowed", stubStaff{member: member}, []string{models.RoleOwner, models.RoleManager}, "Bearer " + token, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			authRouter(tt.resolver, tt.roles...).ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			e := decode(t, w)
			assert.Equal(t, tt.status == http.StatusOK, e.Success)
			if tt.status == http.StatusInternalServerError {
				assert.Equal(t, "internal server error", e.Error)
			}
			if tt.status == http.StatusOK {
				assert.JSONEq(t, `{"tenant":"tenant-1","role":"manager"}`, string(e.Data))
			}
		})
	}
}

type stubTenants map[string]*models.Tenant

func (s stubTenants) Resolve(_ context.Context, slug string) (*models.Tenant, error) {
	if t, ok := s[slug]; ok {
		return t, nil
	}
	return nil, apperrors.NotFound("tenant")
}

func TestTenant(t *testing.T) {
	tenants := stubTenants{
		"club":   {ID: "tenant-1", Slug: "club", IsActive: true},
		"closed": {ID: "tenant-2", Slug: "closed", IsActive: false},
	}
	r := gin.New()
	r.GET("/api/public/:tenant/ping", Tenant(tenants), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true, "data": TenantID(c) + "/" + TenantSlug(c)})
	})

	for path, status := range map[string]int{
		"/api/public/club/ping":    http.StatusOK,
		"/api/public/closed/ping":  http.StatusNotFound,
		"/api/public/missing/ping": http.StatusNotFound,
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, status, w.Code, path)
	}
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (ratelimit.Result, error) {
	return ratelimit.Result{}, errors.New("redis: connection refused")
}

func TestRateLimit(t *testing.T) {
	r := gin.New()
	r.POST("/reserve", RateLimit(ratelimit.NewMemoryLimiter(2, time.Minute), "reservations", nil), func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"success": true})
	})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/reserve", nil))
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/reserve", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	e := decode(t, w)
	assert.False(t, e.Success)
	assert.Equal(t, apperrors.ErrRateLimited.Error(), e.Error)
}

func TestRateLimitFailsOpen(t *testing.T) {
	r := gin.New()
	r.GET("/lookup", RateLimit(failingLimiter{}, "lookup", nil), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/lookup", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"https://club.example.pe"}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://club.example.pe")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://club.example.pe", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.False(t, decode(t, w).Success)
}
