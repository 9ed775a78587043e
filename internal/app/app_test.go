package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-books/internal/observability"
	"github.com/odyssey-erp/odyssey-books/jobs"
)

func TestMain(m *testing.M) {
	_ = os.Setenv(TestModeEnv, "1")
	RefreshTestMode()
	os.Exit(m.Run())
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 10*time.Minute, cfg.ReportCacheTTL)
	assert.Equal(t, 3, cfg.NumberRetryLimit)
	assert.Equal(t, 1000, cfg.AccountConfig().CodeMin)
	assert.False(t, cfg.IsProduction())
	assert.True(t, InTestMode())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("ACCOUNT_CODE_MIN", "100")
	t.Setenv("ACCOUNT_CODE_MAX", "999")
	t.Setenv("REPORT_CACHE_TTL", "90s")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 999, cfg.AccountConfig().CodeMax)
	assert.Equal(t, 90*time.Second, cfg.ReportCacheTTL)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestQueueRedisAcceptsAddressOrURL(t *testing.T) {
	opt, err := (&Config{RedisAddr: "cache:6379"}).QueueRedis()
	require.NoError(t, err)
	assert.Equal(t, asynq.RedisClientOpt{Addr: "cache:6379"}, opt)

	opt, err = (&Config{RedisAddr: "redis://:secret@cache:6380/3"}).QueueRedis()
	require.NoError(t, err)
	client, ok := opt.(asynq.RedisClientOpt)
	require.True(t, ok)
	assert.Equal(t, "cache:6380", client.Addr)
	assert.Equal(t, 3, client.DB)

	_, err = (&Config{RedisAddr: "ftp://cache"}).QueueRedis()
	require.Error(t, err)
}

func TestLoggerHonoursFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{AppEnv: "staging", LogFormat: "json", LogLevel: slog.LevelWarn})
	logger.Info("dropped")
	logger.Warn("kept", slog.Int64("tenant_id", 7))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "kept", record["msg"])
	assert.Equal(t, "odyssey-books", record["service"])
	assert.Equal(t, "staging", record["env"])
	assert.EqualValues(t, 7, record["tenant_id"])
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"inverted code range": {"ACCOUNT_CODE_MAX", "10"},
		"negative retries":    {"NUMBER_RETRY_LIMIT", "-1"},
		"zero rate":           {"RATE_LIMIT_PER_MINUTE", "0"},
		"bad duration":        {"REPORT_CACHE_TTL", "soon"},
		"unknown log level":   {"LOG_LEVEL", "loud"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := LoadConfig()
			require.Error(t, err)
		})
	}
}

func newTestRouter(cfg *Config) http.Handler {
	return NewRouter(RouterParams{
		Config:     cfg,
		JobHandler: jobs.NewHandler(nil, nil, nil),
		Metrics:    observability.NewMetrics(),
	})
}

func TestRouterServesHealthAndMetrics(t *testing.T) {
	r := newTestRouter(&Config{RateLimitPerMinute: 100})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "odyssey_http_requests_total")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitIsPerTenant(t *testing.T) {
	r := newTestRouter(&Config{RateLimitPerMinute: 2})
	hit := func(tenant string) int {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("X-Tenant-ID", tenant)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, hit("1"))
	assert.Equal(t, http.StatusOK, hit("1"))
	assert.Equal(t, http.StatusTooManyRequests, hit("1"))
	assert.Equal(t, http.StatusOK, hit("2"))
}
