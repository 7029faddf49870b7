package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	LogLevel           string
	LogFormat          string
	CORSAllowedOrigins []string
	Timezone           string

	// Ledger store
	StoreBackend       string
	SpreadsheetID      string
	CredentialsFile    string
	WorkbookPath       string
	DatabaseURL        string
	AutoMigrate        bool
	RedisURL           string
	CacheTTL           time.Duration
	LedgerRetryBase    time.Duration
	LedgerRetries      int
	LedgerLockTTL      time.Duration
	ConflictRetries    int
	BreakerMinRequests int
	BreakerRatio       float64
	BreakerOpenFor     time.Duration
	BackupInterval     time.Duration

	RefdataDir  string
	DocumentDir string

	CompanyName       string
	CompanyAddress    string
	CompanyGSTIN      string
	CompanyDisclaimer string

	// Invoice math variants
	InvoiceDiscountsDisabled bool
	CeilGrandTotal           bool

	RateLimitPerMinute int
	IdempotencyTTL     time.Duration
	OTLPEndpoint       string

	SecureHeaders bool
	EnableHSTS    bool
	MaxBodyBytes  int64
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		LogLevel:           valueOrDefault(k.String("LOG_LEVEL"), "info"),
		LogFormat:          valueOrDefault(k.String("LOG_FORMAT"), "json"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		Timezone:           valueOrDefault(k.String("TIMEZONE"), "Asia/Kolkata"),

		StoreBackend:       strings.ToLower(valueOrDefault(k.String("STORE_BACKEND"), "memory")),
		SpreadsheetID:      strings.TrimSpace(k.String("SHEETS_SPREADSHEET_ID")),
		CredentialsFile:    strings.TrimSpace(k.String("GOOGLE_CREDENTIALS_FILE")),
		WorkbookPath:       valueOrDefault(k.String("WORKBOOK_PATH"), "data/ledger.xlsx"),
		DatabaseURL:        k.String("DATABASE_URL"),
		AutoMigrate:        parseBool(k.String("AUTO_MIGRATE")),
		RedisURL:           k.String("REDIS_URL"),
		CacheTTL:           parseDuration(k.String("LEDGER_CACHE_TTL"), "5s"),
		LedgerRetryBase:    parseDuration(k.String("LEDGER_RETRY_BASE"), "1s"),
		LedgerRetries:      parseInt(k.String("LEDGER_RETRY_ATTEMPTS"), 3),
		LedgerLockTTL:      parseDuration(k.String("LEDGER_LOCK_TTL"), "30s"),
		ConflictRetries:    parseInt(k.String("LEDGER_CONFLICT_RETRIES"), 3),
		BreakerMinRequests: parseInt(k.String("BREAKER_MIN_REQUESTS"), 10),
		BreakerRatio:       parseFloat(k.String("BREAKER_FAILURE_RATIO"), 0.5),
		BreakerOpenFor:     parseDuration(k.String("BREAKER_OPEN_FOR"), "30s"),
		BackupInterval:     parseDuration(k.String("BACKUP_INTERVAL"), "6h"),

		RefdataDir:  valueOrDefault(k.String("REFDATA_DIR"), "data/refdata"),
		DocumentDir: valueOrDefault(k.String("DOCUMENT_DIR"), "data/invoices"),

		CompanyName:       k.String("COMPANY_NAME"),
		CompanyAddress:    k.String("COMPANY_ADDRESS"),
		CompanyGSTIN:      k.String("COMPANY_GSTIN"),
		CompanyDisclaimer: k.String("COMPANY_DISCLAIMER"),

		InvoiceDiscountsDisabled: parseBool(k.String("INVOICE_DISCOUNTS_DISABLED")),
		CeilGrandTotal:           parseBool(k.String("INVOICE_CEIL_GRAND_TOTAL")),

		RateLimitPerMinute: parseInt(k.String("RATE_LIMIT_PER_MINUTE"), 120),
		IdempotencyTTL:     parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		OTLPEndpoint:       strings.TrimSpace(k.String("OTEL_EXPORTER_OTLP_ENDPOINT")),

		SecureHeaders: parseBoolDefault(k.String("SECURE_HEADERS"), true),
		EnableHSTS:    parseBool(k.String("SECURE_HSTS")),
		MaxBodyBytes:  int64(parseInt(k.String("MAX_BODY_BYTES"), 1<<20)),
	}

	switch cfg.StoreBackend {
	case "memory", "workbook":
	case "sheets":
		if cfg.SpreadsheetID == "" {
			return nil, errors.New("SHEETS_SPREADSHEET_ID is required for the sheets backend")
		}
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required for the postgres backend")
		}
	default:
		return nil, fmt.Errorf("STORE_BACKEND %q is not supported", cfg.StoreBackend)
	}
	if cfg.LedgerRetries < 1 {
		return nil, errors.New("LEDGER_RETRY_ATTEMPTS must be at least 1")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseBoolDefault(value string, fallback bool) bool {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return parseBool(value)
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
