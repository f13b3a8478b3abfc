package config

import (
	"os"
	"strings"
	"time"

	"github.com/cuadrantes/iph-console/backend/internal/utils"
)

// Config holds application configuration derived from environment variables.
type Config struct {
	// Upstream registry API (the system of record for IPH reports)
	UpstreamBaseURL string
	UserAgent       string

	// HTTP client behavior
	HTTPTimeout    time.Duration // per attempt
	HTTPMaxRetries int           // additional attempts after the first
	HTTPRetryBase  time.Duration
	HTTPRetryCap   time.Duration
	LogHTTPRetries bool

	// Cache settings
	CacheDir             string
	CacheMemoryMaxMB     int64
	CacheMemoryMaxItems  int64
	ReportListTTL        time.Duration
	ReportDetailTTL      time.Duration
	ReportStatsTTL       time.Duration
	GeoPointsTTL         time.Duration
	RedisAddr            string // when set, Redis replaces the file store as persistent backend
	RedisPassword        string
	RedisDB              int
	EnableCircuitBreaker bool

	// Server settings
	ListenAddr    string
	AdminAPIToken string

	// Security settings
	RateLimitGlobal      float64  // requests per second globally
	RateLimitGlobalBurst int      // burst size for global rate limit
	RateLimitPerIP       float64  // requests per second per IP
	RateLimitPerIPBurst  int      // burst size for per-IP rate limit
	CORSAllowedOrigins   []string // allowed CORS origins
	EnableRateLimit      bool     // enable rate limiting middleware

	// Observability settings
	LogLevel          string  // log level: debug, info, warn, error
	OTELEnabled       bool    // enable OpenTelemetry tracing
	OTELEndpoint      string  // OpenTelemetry collector endpoint
	OTELSampleRate    float64 // trace sampling rate (0.0 to 1.0)
	SentryDSN         string  // Sentry DSN for error reporting
	SentryEnvironment string  // Sentry environment (dev, staging, production)
	SentryRelease     string  // Sentry release version
}

var cached *Config

// Load reads env vars once and caches them.
func Load() *Config {
	if cached != nil {
		return cached
	}
	upstream := strings.TrimSpace(os.Getenv("IPH_UPSTREAM_URL"))
	if upstream == "" {
		upstream = "http://localhost:9090/api/v1"
	}
	ua := strings.TrimSpace(os.Getenv("IPH_USER_AGENT"))
	if ua == "" {
		ua = "iph-console/0.1"
	}
	cached = &Config{
		UpstreamBaseURL: upstream,
		UserAgent:       ua,

		HTTPTimeout:    utils.GetEnvAsMillis("HTTP_TIMEOUT_MS", 15000),
		HTTPMaxRetries: utils.GetEnvAsInt("HTTP_MAX_RETRIES", 3),
		HTTPRetryBase:  utils.GetEnvAsMillis("HTTP_RETRY_BASE_MS", 300),
		HTTPRetryCap:   utils.GetEnvAsMillis("HTTP_RETRY_CAP_MS", 5000),
		LogHTTPRetries: utils.GetEnvAsBool("LOG_HTTP_RETRIES", false),

		CacheDir:             envOr("CACHE_DIR", defaultCacheDir()),
		CacheMemoryMaxMB:     int64(utils.GetEnvAsInt("CACHE_MEMORY_MAX_MB", 64)),
		CacheMemoryMaxItems:  int64(utils.GetEnvAsInt("CACHE_MEMORY_MAX_ITEMS", 10000)),
		ReportListTTL:        utils.GetEnvAsMillis("REPORT_LIST_TTL_MS", 30000),
		ReportDetailTTL:      utils.GetEnvAsMillis("REPORT_DETAIL_TTL_MS", 300000),
		ReportStatsTTL:       utils.GetEnvAsMillis("REPORT_STATS_TTL_MS", 600000),
		GeoPointsTTL:         utils.GetEnvAsMillis("GEO_POINTS_TTL_MS", 60000),
		RedisAddr:            strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              utils.GetEnvAsInt("REDIS_DB", 0),
		EnableCircuitBreaker: utils.GetEnvAsBool("ENABLE_CIRCUIT_BREAKER", true),

		ListenAddr:    envOr("LISTEN_ADDR", ":8000"),
		AdminAPIToken: strings.TrimSpace(os.Getenv("ADMIN_API_TOKEN")),

		RateLimitGlobal:      utils.GetEnvAsFloat("RATE_LIMIT_GLOBAL", 100.0),
		RateLimitGlobalBurst: utils.GetEnvAsInt("RATE_LIMIT_GLOBAL_BURST", 200),
		RateLimitPerIP:       utils.GetEnvAsFloat("RATE_LIMIT_PER_IP", 10.0),
		RateLimitPerIPBurst:  utils.GetEnvAsInt("RATE_LIMIT_PER_IP_BURST", 20),
		EnableRateLimit:      utils.GetEnvAsBool("ENABLE_RATE_LIMIT", true),

		LogLevel:          strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))),
		OTELEnabled:       utils.GetEnvAsBool("OTEL_ENABLED", false),
		OTELEndpoint:      strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		OTELSampleRate:    utils.GetEnvAsFloat("OTEL_TRACE_SAMPLE_RATE", 0.1),
		SentryDSN:         strings.TrimSpace(os.Getenv("SENTRY_DSN")),
		SentryEnvironment: strings.TrimSpace(os.Getenv("SENTRY_ENVIRONMENT")),
		SentryRelease:     strings.TrimSpace(os.Getenv("SENTRY_RELEASE")),
	}
	if cached.LogLevel == "" {
		cached.LogLevel = "info"
	}
	if cached.SentryEnvironment == "" {
		if env := os.Getenv("ENV"); env != "" {
			cached.SentryEnvironment = env
		} else {
			cached.SentryEnvironment = "development"
		}
	}
	cached.CORSAllowedOrigins = utils.GetEnvAsSlice("CORS_ALLOWED_ORIGINS",
		[]string{"http://localhost:5173", "http://localhost:3000"}, ",")

	return cached
}

// ResetForTest clears cached config; for use in tests only.
func ResetForTest() { cached = nil }

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir + "/iph-console"
	}
	return os.TempDir() + "/iph-console-cache"
}
