package config

// EnvPrefix is handed to envconfig; every field carries an explicit key so it is informational only.
const EnvPrefix = "HOMECAFE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	NotificationTransportLog    = "log"
	NotificationTransportSMTP   = "smtp"
	NotificationTransportKafka  = "kafka"
	NotificationTransportPubSub = "pubsub"
)

const (
	EnvAppEnv    = "HOMECAFE_APP_ENV"
	EnvPort      = "HOMECAFE_APP_PORT"
	EnvDBDSN     = "HOMECAFE_DB_DSN"
	EnvDBHost    = "HOMECAFE_DB_HOST"
	EnvDBUser    = "HOMECAFE_DB_USER"
	EnvDBName    = "HOMECAFE_DB_NAME"
	EnvRedisURL  = "HOMECAFE_REDIS_URL"
	EnvJWTSecret = "HOMECAFE_JWT_SECRET"
	EnvJWTIssuer = "HOMECAFE_JWT_ISSUER"
	EnvSMTPHost  = "HOMECAFE_SMTP_HOST"

	EnvNotificationsTransport = "HOMECAFE_NOTIFICATIONS_TRANSPORT"
	EnvKafkaBrokers           = "HOMECAFE_KAFKA_BROKERS"
	EnvCartGuestTTL           = "HOMECAFE_CART_GUEST_TTL"
	EnvTestDBDSN              = "HOMECAFE_TEST_DB_DSN"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
