package config

// EnvPrefix is passed to envconfig; every field carries an explicit tag so the
// prefix only matters for fields without one.
const EnvPrefix = "GIGBRIDGE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	GatewayModeFake = "fake"
)

const (
	EnvAppEnv   = "GIGBRIDGE_APP_ENV"
	EnvPort     = "GIGBRIDGE_APP_PORT"
	EnvLogLevel = "GIGBRIDGE_LOG_LEVEL"

	EnvDBDSN  = "GIGBRIDGE_DB_DSN"
	EnvDBHost = "GIGBRIDGE_DB_HOST"
	EnvDBUser = "GIGBRIDGE_DB_USER"
	EnvDBName = "GIGBRIDGE_DB_NAME"

	EnvRedisURL = "GIGBRIDGE_REDIS_URL"

	EnvJWTSecret  = "GIGBRIDGE_JWT_SECRET"
	EnvJWTIssuer  = "GIGBRIDGE_JWT_ISSUER"
	EnvJWTExpMins = "GIGBRIDGE_JWT_EXPIRATION_MINUTES"

	EnvGatewayMode      = "GIGBRIDGE_GATEWAY_MODE"
	EnvGatewayKeyID     = "GIGBRIDGE_GATEWAY_KEY_ID"
	EnvGatewayKeySecret = "GIGBRIDGE_GATEWAY_KEY_SECRET"

	EnvOTPPepper = "GIGBRIDGE_OTP_PEPPER"
	EnvOTPTTL    = "GIGBRIDGE_OTP_TTL"

	EnvSettlementPollInterval = "GIGBRIDGE_SETTLEMENT_POLL_INTERVAL"
	EnvSettlementMaxPolls     = "GIGBRIDGE_SETTLEMENT_MAX_POLL_ATTEMPTS"

	EnvGCPProjectID = "GIGBRIDGE_GCP_PROJECT_ID"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
