package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Gateway      GatewayConfig
	OTP          OTPConfig
	Settlement   SettlementConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Gateway.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Settlement.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"GIGBRIDGE_APP_ENV" required:"true"`
	Port         string `envconfig:"GIGBRIDGE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"GIGBRIDGE_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"GIGBRIDGE_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"GIGBRIDGE_LOG_WARN_STACK" default:"false"`
	CORSOrigins  string `envconfig:"GIGBRIDGE_CORS_ORIGINS" default:"*"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	parts := strings.Split(a.CORSOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type ServiceConfig struct {
	Kind string `envconfig:"GIGBRIDGE_SERVICE_KIND" default:"api"`
	// MetricsAddr is where background workers expose /metrics; empty disables it.
	MetricsAddr string `envconfig:"GIGBRIDGE_METRICS_ADDR"`
}

type DBConfig struct {
	DSN    string `envconfig:"GIGBRIDGE_DB_DSN"`
	Driver string `envconfig:"GIGBRIDGE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"GIGBRIDGE_DB_HOST"`
	LegacyPort     int    `envconfig:"GIGBRIDGE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"GIGBRIDGE_DB_USER"`
	LegacyPassword string `envconfig:"GIGBRIDGE_DB_PASSWORD"`
	LegacyName     string `envconfig:"GIGBRIDGE_DB_NAME"`
	LegacySSLMode  string `envconfig:"GIGBRIDGE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GIGBRIDGE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GIGBRIDGE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GIGBRIDGE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GIGBRIDGE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"GIGBRIDGE_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GIGBRIDGE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"GIGBRIDGE_REDIS_ADDR"`
	Password     string        `envconfig:"GIGBRIDGE_REDIS_PASSWORD"`
	DB           int           `envconfig:"GIGBRIDGE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GIGBRIDGE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GIGBRIDGE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GIGBRIDGE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GIGBRIDGE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GIGBRIDGE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"GIGBRIDGE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"GIGBRIDGE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"GIGBRIDGE_JWT_EXPIRATION_MINUTES" required:"true"`
}

// GatewayConfig points at the payment gateway's REST API.
type GatewayConfig struct {
	Mode          string        `envconfig:"GIGBRIDGE_GATEWAY_MODE" default:"live"`
	BaseURL       string        `envconfig:"GIGBRIDGE_GATEWAY_BASE_URL" default:"https://api.razorpay.com/v1"`
	KeyID         string        `envconfig:"GIGBRIDGE_GATEWAY_KEY_ID"`
	KeySecret     string        `envconfig:"GIGBRIDGE_GATEWAY_KEY_SECRET"`
	WebhookSecret string        `envconfig:"GIGBRIDGE_GATEWAY_WEBHOOK_SECRET"`
	Currency      string        `envconfig:"GIGBRIDGE_GATEWAY_CURRENCY" default:"INR"`
	Timeout       time.Duration `envconfig:"GIGBRIDGE_GATEWAY_TIMEOUT" default:"10s"`
	MaxRetries    uint64        `envconfig:"GIGBRIDGE_GATEWAY_MAX_RETRIES" default:"3"`
	RetryBase     time.Duration `envconfig:"GIGBRIDGE_GATEWAY_RETRY_BASE" default:"200ms"`
}

// IsFake reports whether the in-memory gateway should be used instead of the REST client.
func (g GatewayConfig) IsFake() bool {
	return strings.EqualFold(strings.TrimSpace(g.Mode), GatewayModeFake)
}

func (g GatewayConfig) validate() error {
	if g.IsFake() {
		return nil
	}
	missing := []string{}
	if strings.TrimSpace(g.KeyID) == "" {
		missing = append(missing, EnvGatewayKeyID)
	}
	if strings.TrimSpace(g.KeySecret) == "" {
		missing = append(missing, EnvGatewayKeySecret)
	}
	if len(missing) > 0 {
		return fmt.Errorf("gateway mode %q requires %s", g.Mode, strings.Join(missing, ", "))
	}
	return nil
}

type OTPConfig struct {
	TTL         time.Duration `envconfig:"GIGBRIDGE_OTP_TTL" default:"15m"`
	MaxAttempts int           `envconfig:"GIGBRIDGE_OTP_MAX_ATTEMPTS" default:"5"`
	Pepper      string        `envconfig:"GIGBRIDGE_OTP_PEPPER" required:"true"`
	Retention   time.Duration `envconfig:"GIGBRIDGE_OTP_RETENTION" default:"720h"`
}

type SettlementConfig struct {
	PollInterval     time.Duration `envconfig:"GIGBRIDGE_SETTLEMENT_POLL_INTERVAL" default:"3s"`
	MaxPollAttempts  int           `envconfig:"GIGBRIDGE_SETTLEMENT_MAX_POLL_ATTEMPTS" default:"100"`
	ReconcileBatch   int           `envconfig:"GIGBRIDGE_SETTLEMENT_RECONCILE_BATCH" default:"50"`
	StaleAfter       time.Duration `envconfig:"GIGBRIDGE_SETTLEMENT_STALE_AFTER" default:"5m"`
	MaxConflictRetry int           `envconfig:"GIGBRIDGE_SETTLEMENT_MAX_CONFLICT_RETRY" default:"5"`
}

// Budget is the longest a caller can wait on an unresolved order.
func (s SettlementConfig) Budget() time.Duration {
	return s.PollInterval * time.Duration(s.MaxPollAttempts)
}

func (s SettlementConfig) validate() error {
	if s.PollInterval <= 0 || s.MaxPollAttempts <= 0 {
		return fmt.Errorf("%s and %s must be positive", EnvSettlementPollInterval, EnvSettlementMaxPolls)
	}
	return nil
}

type RateLimitConfig struct {
	ConfirmWindow time.Duration `envconfig:"GIGBRIDGE_RATE_LIMIT_CONFIRM_WINDOW" default:"1m"`
	ConfirmLimit  int           `envconfig:"GIGBRIDGE_RATE_LIMIT_CONFIRM_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	UseSQLite      bool `envconfig:"GIGBRIDGE_USE_SQLITE" default:"false"`
	AutoMigrate    bool `envconfig:"GIGBRIDGE_AUTO_MIGRATE" default:"false"`
	WebhookEnabled bool `envconfig:"GIGBRIDGE_FEATURE_GATEWAY_WEBHOOK" default:"true"`
}

type EventingConfig struct {
	WebhookIdempotencyTTL time.Duration `envconfig:"GIGBRIDGE_EVENTING_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"GIGBRIDGE_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"GIGBRIDGE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"GIGBRIDGE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	NotificationTopic string `envconfig:"GIGBRIDGE_PUBSUB_NOTIFICATION_TOPIC" default:"gb-notification-events"`
	OTPDeliveryTopic  string `envconfig:"GIGBRIDGE_PUBSUB_OTP_DELIVERY_TOPIC" default:"gb-otp-delivery"`
	DomainTopic       string `envconfig:"GIGBRIDGE_PUBSUB_DOMAIN_TOPIC" default:"gb-domain-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"GIGBRIDGE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"GIGBRIDGE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"GIGBRIDGE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval        time.Duration `envconfig:"GIGBRIDGE_CRON_INTERVAL" default:"1m"`
	OutboxRetention time.Duration `envconfig:"GIGBRIDGE_CRON_OUTBOX_RETENTION" default:"720h"`
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
