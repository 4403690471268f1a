package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	RateLimit     RateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Cart          CartConfig
	Checkout      CheckoutConfig
	Stripe        StripeConfig
	Webhook       WebhookConfig
	Notifications NotificationsConfig
	Kafka         KafkaConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Notifications.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string        `envconfig:"HOMECAFE_APP_ENV" required:"true"`
	Port         string        `envconfig:"HOMECAFE_APP_PORT" required:"true"`
	LogLevel     string        `envconfig:"HOMECAFE_LOG_LEVEL" default:"info"`
	LogFormat    string        `envconfig:"HOMECAFE_LOG_FORMAT" default:"json"`
	LogWarnStack bool          `envconfig:"HOMECAFE_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string      `envconfig:"HOMECAFE_CORS_ORIGINS"`
	ReadTimeout  time.Duration `envconfig:"HOMECAFE_HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `envconfig:"HOMECAFE_HTTP_WRITE_TIMEOUT" default:"30s"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"HOMECAFE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"HOMECAFE_DB_DSN"`
	Driver string `envconfig:"HOMECAFE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"HOMECAFE_DB_HOST"`
	LegacyPort     int    `envconfig:"HOMECAFE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"HOMECAFE_DB_USER"`
	LegacyPassword string `envconfig:"HOMECAFE_DB_PASSWORD"`
	LegacyName     string `envconfig:"HOMECAFE_DB_NAME"`
	LegacySSLMode  string `envconfig:"HOMECAFE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"HOMECAFE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"HOMECAFE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"HOMECAFE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"HOMECAFE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"HOMECAFE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"HOMECAFE_REDIS_ADDR"`
	Password     string        `envconfig:"HOMECAFE_REDIS_PASSWORD"`
	DB           int           `envconfig:"HOMECAFE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"HOMECAFE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"HOMECAFE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"HOMECAFE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"HOMECAFE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"HOMECAFE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string        `envconfig:"HOMECAFE_JWT_SECRET" required:"true"`
	Issuer            string        `envconfig:"HOMECAFE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int           `envconfig:"HOMECAFE_JWT_EXPIRATION_MINUTES" default:"60"`
	Leeway            time.Duration `envconfig:"HOMECAFE_JWT_LEEWAY" default:"30s"`
}

// RateLimitConfig throttles checkout attempts per client IP and per contact email.
type RateLimitConfig struct {
	CheckoutWindow     time.Duration `envconfig:"HOMECAFE_RATE_LIMIT_CHECKOUT_WINDOW" default:"1m"`
	CheckoutIPLimit    int           `envconfig:"HOMECAFE_RATE_LIMIT_CHECKOUT_IP" default:"20"`
	CheckoutEmailLimit int           `envconfig:"HOMECAFE_RATE_LIMIT_CHECKOUT_EMAIL" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"HOMECAFE_AUTO_MIGRATE" default:"false"`
}

// CartConfig controls guest cart identity and abandoned cart collection.
type CartConfig struct {
	TokenCookieName string        `envconfig:"HOMECAFE_CART_TOKEN_COOKIE" default:"cart_token"`
	TokenHeader     string        `envconfig:"HOMECAFE_CART_TOKEN_HEADER" default:"X-Cart-Token"`
	TokenTTL        time.Duration `envconfig:"HOMECAFE_CART_TOKEN_TTL" default:"720h"`
	CookieSecure    bool          `envconfig:"HOMECAFE_CART_COOKIE_SECURE" default:"true"`
	GuestCartTTL    time.Duration `envconfig:"HOMECAFE_CART_GUEST_TTL" default:"720h"`
	GCBatchSize     int           `envconfig:"HOMECAFE_CART_GC_BATCH_SIZE" default:"200"`
}

// CheckoutConfig holds pricing knobs applied when a cart becomes an order.
type CheckoutConfig struct {
	Currency              string `envconfig:"HOMECAFE_CHECKOUT_CURRENCY" default:"rub"`
	DeliveryCost          int    `envconfig:"HOMECAFE_CHECKOUT_DELIVERY_COST" default:"200"`
	FreeDeliveryThreshold int    `envconfig:"HOMECAFE_CHECKOUT_FREE_DELIVERY_THRESHOLD" default:"0"`
	BonusAccrualPercent   int    `envconfig:"HOMECAFE_CHECKOUT_BONUS_ACCRUAL_PERCENT" default:"0"`
	SuccessURL            string `envconfig:"HOMECAFE_CHECKOUT_SUCCESS_URL" default:"http://localhost:3000/checkout/success"`
	CancelURL             string `envconfig:"HOMECAFE_CHECKOUT_CANCEL_URL" default:"http://localhost:3000/checkout/cancel"`
}

type StripeConfig struct {
	APIKey string `envconfig:"HOMECAFE_STRIPE_API_KEY"`
	Secret string `envconfig:"HOMECAFE_STRIPE_SECRET"`
	Env    string `envconfig:"HOMECAFE_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type WebhookConfig struct {
	IdempotencyTTL time.Duration `envconfig:"HOMECAFE_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}

// NotificationsConfig selects how rendered notifications leave the process.
type NotificationsConfig struct {
	Transport    string `envconfig:"HOMECAFE_NOTIFICATIONS_TRANSPORT" default:"log"`
	From         string `envconfig:"HOMECAFE_NOTIFICATIONS_FROM" default:"orders@homecafe.local"`
	SMTPHost     string `envconfig:"HOMECAFE_SMTP_HOST"`
	SMTPPort     int    `envconfig:"HOMECAFE_SMTP_PORT" default:"465"`
	SMTPUser     string `envconfig:"HOMECAFE_SMTP_USER"`
	SMTPPassword string `envconfig:"HOMECAFE_SMTP_PASSWORD"`
	SMTPSSL      bool   `envconfig:"HOMECAFE_SMTP_SSL" default:"true"`
}

func (n NotificationsConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(n.Transport)) {
	case NotificationTransportLog, NotificationTransportKafka, NotificationTransportPubSub:
		return nil
	case NotificationTransportSMTP:
		if strings.TrimSpace(n.SMTPHost) == "" {
			return fmt.Errorf("%s is required for smtp transport", EnvSMTPHost)
		}
		return nil
	default:
		return fmt.Errorf("unknown notification transport %q", n.Transport)
	}
}

// TransportName returns the normalized transport selector.
func (n NotificationsConfig) TransportName() string {
	name := strings.ToLower(strings.TrimSpace(n.Transport))
	if name == "" {
		return NotificationTransportLog
	}
	return name
}

type KafkaConfig struct {
	Brokers             []string `envconfig:"HOMECAFE_KAFKA_BROKERS" default:"localhost:9092"`
	NotificationTopic   string   `envconfig:"HOMECAFE_KAFKA_NOTIFICATION_TOPIC" default:"homecafe.notifications"`
	NotificationGroupID string   `envconfig:"HOMECAFE_KAFKA_NOTIFICATION_GROUP" default:"homecafe-notification-worker"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"HOMECAFE_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"HOMECAFE_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	NotificationTopic        string `envconfig:"HOMECAFE_PUBSUB_NOTIFICATION_TOPIC" default:"homecafe-notifications"`
	NotificationSubscription string `envconfig:"HOMECAFE_PUBSUB_NOTIFICATION_SUBSCRIPTION" default:"homecafe-notifications-worker"`
	MaxOutstanding           int    `envconfig:"HOMECAFE_PUBSUB_MAX_OUTSTANDING" default:"20"`
}

type CronConfig struct {
	Interval             time.Duration `envconfig:"HOMECAFE_CRON_INTERVAL" default:"1h"`
	PendingOrderAuditAge time.Duration `envconfig:"HOMECAFE_CRON_PENDING_ORDER_AUDIT_AGE" default:"24h"`
	CartGCEvery          time.Duration `envconfig:"HOMECAFE_CRON_CART_GC_EVERY" default:"24h"`
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
