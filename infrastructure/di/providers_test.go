package di

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"flowboard/infrastructure/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func memoryConfig() *config.Config {
	cfg := config.Defaults()
	cfg.LogLevel = "error"
	return cfg
}

func TestInitializeContainerWithMemoryStore(t *testing.T) {
	c, cleanup, err := InitializeContainer(context.Background(), memoryConfig())
	require.NoError(t, err)
	defer cleanup()
	defer c.Sessions.CloseAll(context.Background())

	handler := c.Router.Setup()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v2/boards", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInitializeContainerWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := memoryConfig()
	cfg.RedisURL = "redis://" + mr.Addr()
	cfg.IPRateLimit = 1

	c, cleanup, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()

	handler := c.Router.Setup()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"ok"`)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v2/boards", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v2/boards", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestProvideLoggerRejectsUnknownLevel(t *testing.T) {
	cfg := memoryConfig()
	cfg.LogLevel = "loud"

	_, err := ProvideLogger(cfg)
	assert.Error(t, err)
}

func TestRateLimitersDisabledAtZero(t *testing.T) {
	cfg := memoryConfig()
	cfg.IPRateLimit = 0
	cfg.UserRateLimit = 0

	assert.Nil(t, ProvideIPRateLimiter(cfg, nil))
	assert.Nil(t, ProvideUserRateLimiter(cfg, nil))
}

func TestProvideTokenVerifierNeedsDevUser(t *testing.T) {
	cfg := memoryConfig()
	cfg.DevUserID = " "

	_, err := ProvideTokenVerifier(cfg, nil, zap.NewNop())
	assert.Error(t, err)
}
