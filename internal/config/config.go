// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as the database path, logging, pagination, the content-access grant
// window, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dvorik/go-community-backend/internal/sysutil"
	"github.com/dvorik/go-community-backend/internal/utils"
)

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// App
	DBPath   string // SQLite path
	PageSize int    // default page size for listings (>= 1)

	// Content access guard
	GrantTTL  time.Duration // rolling validity window of access grants
	BlurRatio float64       // share of characters blurred in (0, 1]

	// Ops
	MetricsAddr string // listen address for /metrics and /healthz

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables, applies defaults,
// normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		DBPath:   getenv("DB_PATH", "community.db"),
		PageSize: getint("PAGE_SIZE", 10),

		GrantTTL:  getdur("GRANT_TTL", 24*time.Hour),
		BlurRatio: getfloat("BLUR_RATIO", 0.6),

		MetricsAddr: getenv("METRICS_ADDR", ":9090"),

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-community-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// Normalization
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}

	// Validation
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return Config{}, errors.New("config: invalid LOG_LEVEL " + strconv.Quote(cfg.LogLevel))
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return Config{}, errors.New("config: DB_PATH must not be empty")
	}
	if cfg.PageSize < 1 {
		return Config{}, errors.New("config: PAGE_SIZE must be >= 1")
	}
	if cfg.GrantTTL <= 0 {
		return Config{}, errors.New("config: GRANT_TTL must be positive")
	}
	if cfg.BlurRatio <= 0 || cfg.BlurRatio > 1 {
		return Config{}, errors.New("config: BLUR_RATIO must be in (0, 1]")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return Config{}, errors.New("config: OTEL_TRACES_SAMPLER_ARG must be in [0, 1]")
	}

	return cfg, nil
}

// getenv returns the env value or def when unset/empty.
func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// getbool parses truthy strings ("1", "true", "yes", "on", ...); unset or
// unparsable values fall back to def.
func getbool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return sysutil.IsTruthy(v)
}

// getint falls back to def for unset or unparsable values.
func getint(key string, def int) int {
	return utils.AtoiDefault(strings.TrimSpace(os.Getenv(key)), def)
}

// getfloat falls back to def for unset or unparsable values.
func getfloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// getdur falls back to def for unset or unparsable values.
func getdur(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
