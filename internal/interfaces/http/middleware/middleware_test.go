package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaskit/backend/internal/infrastructure/auth"
	"github.com/saaskit/backend/internal/infrastructure/cache"
	"github.com/saaskit/backend/internal/infrastructure/config"
	"github.com/saaskit/backend/internal/infrastructure/ratelimit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newJWTService() *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Secret:                 "test-secret-key",
		AccessTokenExpiration:  15 * time.Minute,
		RefreshTokenExpiration: 24 * time.Hour,
		Issuer:                 "saaskit-test",
	})
}

func performRequest(r http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestIDGeneratedAndEchoed(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	w := performRequest(r, http.MethodGet, "/", nil)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, w.Header().Get("X-Request-ID"), w.Body.String())

	w = performRequest(r, http.MethodGet, "/", map[string]string{"X-Request-ID": "given-id"})
	assert.Equal(t, "given-id", w.Header().Get("X-Request-ID"))
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	r := gin.New()
	r.Use(CORSWithConfig(CORSConfig{
		AllowOrigins: []string{"https://app.example.com"},
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Content-Type"},
	}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := performRequest(r, http.MethodGet, "/", map[string]string{"Origin": "https://app.example.com"})
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = performRequest(r, http.MethodGet, "/", map[string]string{"Origin": "https://evil.example.com"})
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflightReturnsNoContent(t *testing.T) {
	r := gin.New()
	r.Use(CORS())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := performRequest(r, http.MethodOptions, "/", map[string]string{"Origin": "https://app.example.com"})
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestBodyLimitRejectsOversizedRequest(t *testing.T) {
	r := gin.New()
	r.Use(BodyLimit(16))
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 64)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_PAYLOAD_TOO_LARGE")
}

func TestBodyLimitPassesSmallRequest(t *testing.T) {
	r := gin.New()
	r.Use(BodyLimit(1024))
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("small"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitEnforcesWindowAndHeaders(t *testing.T) {
	provider := cache.NewMemoryProvider()
	t.Cleanup(func() { _ = provider.Close() })
	limiter := ratelimit.New(provider, 2, time.Minute)

	r := gin.New()
	r.Use(RateLimit(limiter, nil))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := performRequest(r, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))

	w = performRequest(r, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = performRequest(r, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "ERR_RATE_LIMITED")
}

func TestJWTMiddlewareRejectsMissingHeader(t *testing.T) {
	r := gin.New()
	r.Use(JWTAuthMiddleware(newJWTService()))
	r.GET("/api/v1/protected", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := performRequest(r, http.MethodGet, "/api/v1/protected", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTMiddlewareAcceptsValidToken(t *testing.T) {
	svc := newJWTService()
	userID := uuid.New()
	pair, err := svc.GenerateTokenPair(auth.GenerateTokenInput{UserID: userID, Email: "a@b.co"})
	require.NoError(t, err)

	r := gin.New()
	r.Use(JWTAuthMiddleware(svc))
	r.GET("/api/v1/protected", func(c *gin.Context) {
		c.String(http.StatusOK, GetJWTUserID(c))
	})

	w := performRequest(r, http.MethodGet, "/api/v1/protected", map[string]string{
		"Authorization": "Bearer " + pair.AccessToken,
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID.String(), w.Body.String())
}

func TestJWTMiddlewareRejectsPendingToken(t *testing.T) {
	svc := newJWTService()
	pair, err := svc.GenerateTokenPair(auth.GenerateTokenInput{
		UserID:           uuid.New(),
		Email:            "a@b.co",
		TwoFactorPending: true,
	})
	require.NoError(t, err)

	r := gin.New()
	r.Use(JWTAuthMiddleware(svc))
	r.GET("/api/v1/protected", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := performRequest(r, http.MethodGet, "/api/v1/protected", map[string]string{
		"Authorization": "Bearer " + pair.AccessToken,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_TWO_FACTOR_REQUIRED")
}

func TestJWTMiddlewareSkipPaths(t *testing.T) {
	r := gin.New()
	r.Use(JWTAuthMiddleware(newJWTService()))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/api/v1/webhooks/stripe", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := performRequest(r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = performRequest(r, http.MethodPost, "/api/v1/webhooks/stripe", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJWTMiddlewareRejectsRefreshTokenAsAccess(t *testing.T) {
	svc := newJWTService()
	pair, err := svc.GenerateTokenPair(auth.GenerateTokenInput{UserID: uuid.New()})
	require.NoError(t, err)

	r := gin.New()
	r.Use(JWTAuthMiddleware(svc))
	r.GET("/api/v1/protected", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := performRequest(r, http.MethodGet, "/api/v1/protected", map[string]string{
		"Authorization": "Bearer " + pair.RefreshToken,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_TOKEN_INVALID")
}
