package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	SMTP     SMTPConfig
	Stripe   StripeConfig
	Billing  BillingConfig
	Tracing  TracingConfig
}

type AppConfig struct {
	Port               string
	ClientURL          string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JwtSecret          string
}

type DatabaseConfig struct {
	Connection  string
	AutoMigrate bool
}

type SMTPConfig struct {
	Host       string
	Port       int
	Email      string
	Password   string
	SenderName string
}

type StripeConfig struct {
	SecretKey        string
	WebhookSecret    string
	CallTimeout      time.Duration
	MaxRetries       int
	FailureThreshold int
	BreakerTimeout   time.Duration
}

type BillingConfig struct {
	// TestMode shortens every cancellation to a few minutes. Never honoured in production.
	TestMode         bool
	LockTTL          time.Duration
	LockWait         time.Duration
	EventDedupTTL    time.Duration
	RefundEmailQueue string
}

type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Environment, "production")
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	cfg := &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			ClientURL:          getEnv("CLIENT_URL", "http://localhost:5173"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			JwtSecret:          getEnv("JWT_SECRET", ""),
		},
		Database: DatabaseConfig{
			Connection:  getEnv("DB_CONNECTION_STRING", ""),
			AutoMigrate: getEnvAsBool("DB_AUTO_MIGRATE", false),
		},
		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvAsInt("SMTP_PORT", 587),
			Email:      getEnv("SMTP_EMAIL", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			SenderName: getEnv("SMTP_SENDER_NAME", "Club Directory"),
		},
		Stripe: StripeConfig{
			SecretKey:        getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret:    getEnv("STRIPE_WEBHOOK_SECRET", ""),
			CallTimeout:      getEnvAsDuration("STRIPE_CALL_TIMEOUT", 10*time.Second),
			MaxRetries:       getEnvAsInt("STRIPE_MAX_RETRIES", 3),
			FailureThreshold: getEnvAsInt("STRIPE_BREAKER_FAILURES", 5),
			BreakerTimeout:   getEnvAsDuration("STRIPE_BREAKER_TIMEOUT", 30*time.Second),
		},
		Billing: BillingConfig{
			TestMode:         getEnvAsBool("BILLING_TEST_MODE", false),
			LockTTL:          getEnvAsDuration("BILLING_LOCK_TTL", 30*time.Second),
			LockWait:         getEnvAsDuration("BILLING_LOCK_WAIT", 10*time.Second),
			EventDedupTTL:    getEnvAsDuration("BILLING_EVENT_DEDUP_TTL", 24*time.Hour),
			RefundEmailQueue: getEnv("BILLING_REFUND_EMAIL_TOPIC", "billing.refund_email"),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvAsBool("OTEL_ENABLED", false),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "club-directory-backend"),
		},
	}

	cfg.normalize()
	return cfg
}

func (c *Config) normalize() {
	if c.IsProduction() && c.Billing.TestMode {
		log.Println("[WARN] BILLING_TEST_MODE ignored in production")
		c.Billing.TestMode = false
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
