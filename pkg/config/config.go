package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App     AppConfig
	Service ServiceConfig
	DB      DBConfig
	Redis   RedisConfig
	JWT     JWTConfig
	GCP     GCPConfig
	PubSub  PubSubConfig
	Stripe  StripeConfig
	Inbox   InboxConfig
	Outbox  OutboxConfig
	Cron    CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"KITLY_APP_ENV" required:"true"`
	Port         string `envconfig:"KITLY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"KITLY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"KITLY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"KITLY_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"KITLY_DB_DSN"`
	Driver string `envconfig:"KITLY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"KITLY_DB_HOST"`
	LegacyPort     int    `envconfig:"KITLY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"KITLY_DB_USER"`
	LegacyPassword string `envconfig:"KITLY_DB_PASSWORD"`
	LegacyName     string `envconfig:"KITLY_DB_NAME"`
	LegacySSLMode  string `envconfig:"KITLY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"KITLY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"KITLY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"KITLY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"KITLY_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	AutoMigrate bool `envconfig:"KITLY_AUTO_MIGRATE" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"KITLY_REDIS_URL" required:"true"`
	PoolSize     int           `envconfig:"KITLY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"KITLY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"KITLY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"KITLY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"KITLY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"KITLY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"KITLY_JWT_ISSUER" default:"kitly"`
	ExpirationMinutes int    `envconfig:"KITLY_JWT_EXPIRATION_MINUTES" default:"60"`
}

// TokenTTL returns the access token lifetime.
func (j JWTConfig) TokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type GCPConfig struct {
	ProjectID       string `envconfig:"KITLY_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"KITLY_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	Enabled      bool   `envconfig:"KITLY_PUBSUB_ENABLED" default:"false"`
	BillingTopic string `envconfig:"KITLY_PUBSUB_BILLING_TOPIC" default:"kitly-billing-events"`
}

type StripeConfig struct {
	APIKey string `envconfig:"KITLY_STRIPE_API_KEY"`
	Secret string `envconfig:"KITLY_STRIPE_SECRET"`
	Env    string `envconfig:"KITLY_STRIPE_ENV" default:"test"`

	StarterPriceID    string `envconfig:"KITLY_STRIPE_STARTER_PRICE_ID"`
	BusinessPriceID   string `envconfig:"KITLY_STRIPE_BUSINESS_PRICE_ID"`
	EnterprisePriceID string `envconfig:"KITLY_STRIPE_ENTERPRISE_PRICE_ID"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type InboxConfig struct {
	PollIntervalMS  int `envconfig:"KITLY_INBOX_POLL_MS" default:"5000"`
	BatchSize       int `envconfig:"KITLY_INBOX_BATCH_SIZE" default:"100"`
	MaxRetries      int `envconfig:"KITLY_INBOX_MAX_RETRIES" default:"5"`
	RetryIntervalMS int `envconfig:"KITLY_INBOX_RETRY_POLL_MS" default:"60000"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"KITLY_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"KITLY_OUTBOX_PUBLISH_POLL_MS" default:"10000"`
	MaxRetries     int `envconfig:"KITLY_OUTBOX_MAX_RETRIES" default:"10"`
	RetentionDays  int `envconfig:"KITLY_OUTBOX_RETENTION_DAYS" default:"30"`
}

type CronConfig struct {
	IntervalHours int `envconfig:"KITLY_CRON_INTERVAL_HOURS" default:"24"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
