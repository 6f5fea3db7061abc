package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"nightpass/internal/cache"
	"nightpass/internal/database"
	"nightpass/internal/external"
	"nightpass/internal/messaging"

	"github.com/joho/godotenv"
)

// Config содержит конфигурацию приложения
type Config struct {
	BackofficePort string
	LandingPort    string
	GinMode        string
	LogLevel       string
	LogFormat      string
	RequestTimeout time.Duration
	RunMigrations  bool

	// Origins allowed by CORS; "*" when empty.
	AllowedOrigins []string
	// Proxies (IPs or CIDRs) whose X-Forwarded-For is believed. Empty means
	// the client IP is always the connection's remote address.
	TrustedProxies []string
	// Public URL of the landing site, used for payment return links.
	PublicBaseURL string
	// Public URL of the landing API, where the payment gateway posts notifications.
	LandingAPIURL string

	Database      database.Config
	NATS          messaging.Config
	Valkey        cache.Config
	Elasticsearch ElasticsearchConfig
	Auth          AuthConfig
	RateLimit     RateLimitConfig
	Reservations  ReservationsConfig

	Payment  external.PaymentConfig
	Identity external.IdentityConfig
	Email    external.EmailConfig
	Storage  external.StorageConfig
}

// AuthConfig holds the shared secret used to verify provider-issued access tokens.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// RateLimitConfig configures the public endpoints limiter.
type RateLimitConfig struct {
	Enabled bool
	// "memory" or "redis"
	Store            string
	Window           time.Duration
	ReservationLimit int
	CheckoutLimit    int
	LookupLimit      int
}

type ReservationsConfig struct {
	PendingTTL         time.Duration
	PaymentTimeout     time.Duration
	ExpirationInterval time.Duration
	EventGracePeriod   time.Duration
	MaxTicketsPerOrder int
}

// Load загружает конфигурацию из переменных окружения
// .env is read first when present; real environment variables win.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to read .env file", "error", err)
	}

	return &Config{
		BackofficePort: getEnv("BACKOFFICE_PORT", "8081"),
		LandingPort:    getEnv("LANDING_PORT", "8082"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SEC", 30)) * time.Second,
		RunMigrations:  getEnvBool("RUN_MIGRATIONS", false),
		AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),
		TrustedProxies: getEnvList("TRUSTED_PROXIES"),
		PublicBaseURL:  getEnv("PUBLIC_BASE_URL", "http://localhost:3000"),
		LandingAPIURL:  getEnv("LANDING_API_URL", "http://localhost:8082"),

		Database: database.Config{
			URL:                getEnv("DATABASE_URL", ""),
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "postgres"),
			Password:           getEnv("DB_PASSWORD", "postgres"),
			DBName:             getEnv("DB_NAME", "nightpass"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetimeMin: getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 5),
			ConnMaxIdleTimeMin: getEnvInt("DB_CONN_MAX_IDLE_TIME_MIN", 1),
		},

		NATS: messaging.Config{
			Enabled:   getEnvBool("NATS_ENABLED", false),
			URL:       getEnv("NATS_URL", "nats://localhost:4222"),
			ClusterID: getEnv("NATS_CLUSTER_ID", "nightpass"),
			ClientID:  getEnv("NATS_CLIENT_ID", "nightpass-api"),
		},

		Valkey: cache.Config{
			Enabled:   getEnvBool("VALKEY_ENABLED", false),
			Addr:      getEnv("VALKEY_ADDR", "localhost:6379"),
			Password:  getEnv("VALKEY_PASSWORD", ""),
			DB:        getEnvInt("VALKEY_DB", 0),
			EventsTTL: time.Duration(getEnvInt("CACHE_EVENTS_TTL_SEC", 60)) * time.Second,
			TenantTTL: time.Duration(getEnvInt("CACHE_TENANT_TTL_SEC", 300)) * time.Second,
			PersonTTL: time.Duration(getEnvInt("CACHE_PERSON_TTL_SEC", 86400)) * time.Second,
		},

		Elasticsearch: LoadElasticsearchConfig(),

		Auth: AuthConfig{
			JWTSecret: getEnv("SUPABASE_JWT_SECRET", ""),
			Issuer:    getEnv("SUPABASE_JWT_ISSUER", ""),
		},

		RateLimit: RateLimitConfig{
			Enabled:          getEnvBool("RATE_LIMIT_ENABLED", true),
			Store:            strings.ToLower(getEnv("RATE_LIMIT_STORE", "memory")),
			Window:           getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
			ReservationLimit: getEnvInt("RATE_LIMIT_RESERVATIONS", 5),
			CheckoutLimit:    getEnvInt("RATE_LIMIT_CHECKOUT", 10),
			LookupLimit:      getEnvInt("RATE_LIMIT_LOOKUP", 20),
		},

		Reservations: ReservationsConfig{
			PendingTTL:         getEnvDuration("RESERVATION_PENDING_TTL", 24*time.Hour),
			PaymentTimeout:     getEnvDuration("PAYMENT_PENDING_TIMEOUT", 15*time.Minute),
			ExpirationInterval: getEnvDuration("EXPIRATION_CHECK_INTERVAL", 30*time.Second),
			EventGracePeriod:   getEnvDuration("EVENT_GRACE_PERIOD", 6*time.Hour),
			MaxTicketsPerOrder: getEnvInt("MAX_TICKETS_PER_ORDER", 10),
		},

		Payment: external.PaymentConfig{
			BaseURL:  getEnv("PAYMENT_GATEWAY_URL", "https://gateway.example.com"),
			TeamSlug: getEnv("PAYMENT_TEAM_SLUG", ""),
			Password: getEnv("PAYMENT_PASSWORD", ""),
			Currency: getEnv("PAYMENT_CURRENCY", "PEN"),
			Timeout:  time.Duration(getEnvInt("PAYMENT_TIMEOUT_SEC", 30)) * time.Second,
		},

		Identity: external.IdentityConfig{
			BaseURL: getEnv("IDENTITY_API_URL", "https://api.apis.net.pe"),
			Token:   getEnv("IDENTITY_API_TOKEN", ""),
			Timeout: time.Duration(getEnvInt("IDENTITY_TIMEOUT_SEC", 10)) * time.Second,
		},

		Email: external.EmailConfig{
			BaseURL: getEnv("EMAIL_API_URL", "https://api.resend.com"),
			APIKey:  getEnv("EMAIL_API_KEY", ""),
			From:    getEnv("EMAIL_FROM", "tickets@nightpass.local"),
			Timeout: time.Duration(getEnvInt("EMAIL_TIMEOUT_SEC", 15)) * time.Second,
		},

		Storage: external.StorageConfig{
			BaseURL:    getEnv("SUPABASE_URL", "http://localhost:54321"),
			ServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
			Timeout:    time.Duration(getEnvInt("STORAGE_TIMEOUT_SEC", 30)) * time.Second,
		},
	}
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает целочисленное значение переменной окружения
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
