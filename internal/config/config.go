package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewLifecycleConfigHolder),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	CORSAllowedOrigins []string

	AuthJWTSecret string
	AuthJWTIssuer string

	BootstrapAdminEmail string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis     RedisConfig
	RateLimit RateLimitConfig
	SMTP      SMTPConfig

	Scheduler SchedulerConfig

	Notifier NotifierConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis address was configured.
func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

// RateLimitConfig expresses limits as events per minute with a burst allowance.
type RateLimitConfig struct {
	Enabled         bool
	OrdersPerMinute float64
	OrderBurst      int
	TopUpsPerMinute float64
	TopUpBurst      int
	// Contact form submissions are keyed by client IP.
	ContactsPerMinute float64
	ContactBurst      int
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SchedulerConfig struct {
	Enabled   bool
	Interval  time.Duration
	BatchSize int
	Jobs      []string
}

type NotifierConfig struct {
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
	MaxAttempts uint
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:             getenv("APP_SERVICE", "cloudnest"),
		AppVersion:          getenv("APP_VERSION", "0.1.0"),
		Environment:         getenv("ENVIRONMENT", "development"),
		HTTPAddr:            getenv("HTTP_ADDR", ":8080"),
		CORSAllowedOrigins:  parseList(getenv("CORS_ALLOWED_ORIGINS", "*")),
		AuthJWTSecret:       strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),
		AuthJWTIssuer:       strings.TrimSpace(getenv("AUTH_JWT_ISSUER", "")),
		BootstrapAdminEmail: strings.ToLower(strings.TrimSpace(getenv("BOOTSTRAP_ADMIN_EMAIL", ""))),
		OTLPEndpoint:        getenv("OTLP_ENDPOINT", "localhost:4317"),
		DBType:              getenv("DATABASE_TYPE", "postgres"),
		DBHost:              getenv("DATABASE_HOST", "localhost"),
		DBPort:              getenv("DATABASE_PORT", "5432"),
		DBName:              getenv("DATABASE_NAME", "cloudnest"),
		DBUser:              getenv("DATABASE_USER", "postgres"),
		DBPassword:          getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:           getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:       getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:       getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime:   getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime:   getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled:         getenvBool("RATE_LIMIT_ENABLED", true),
			OrdersPerMinute: getenvFloat("RATE_LIMIT_ORDERS_PER_MINUTE", 5),
			OrderBurst:      getenvInt("RATE_LIMIT_ORDER_BURST", 3),
			TopUpsPerMinute: getenvFloat("RATE_LIMIT_TOPUPS_PER_MINUTE", 2),
			TopUpBurst:      getenvInt("RATE_LIMIT_TOPUP_BURST", 2),

			ContactsPerMinute: getenvFloat("RATE_LIMIT_CONTACTS_PER_MINUTE", 3),
			ContactBurst:      getenvInt("RATE_LIMIT_CONTACT_BURST", 3),
		},
		SMTP: SMTPConfig{
			Host:     strings.TrimSpace(getenv("SMTP_HOST", "")),
			Port:     getenvInt("SMTP_PORT", 587),
			Username: getenv("SMTP_USERNAME", ""),
			Password: getenv("SMTP_PASSWORD", ""),
			From:     getenv("SMTP_FROM", "billing@cloudnest.local"),
		},
		Scheduler: SchedulerConfig{
			Enabled:   getenvBool("SCHEDULER_ENABLED", true),
			Interval:  getenvDuration("SCHEDULER_INTERVAL", time.Hour),
			BatchSize: getenvInt("SCHEDULER_BATCH_SIZE", 200),
			Jobs:      parseList(getenv("SCHEDULER_JOBS", "renewal,suspension,cancellation")),
		},
		Notifier: NotifierConfig{
			Workers:     getenvInt("NOTIFIER_WORKERS", 2),
			QueueSize:   getenvInt("NOTIFIER_QUEUE_SIZE", 256),
			SendTimeout: getenvDuration("NOTIFIER_SEND_TIMEOUT", 10*time.Second),
			MaxAttempts: uint(getenvInt("NOTIFIER_MAX_ATTEMPTS", 3)),
		},
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
