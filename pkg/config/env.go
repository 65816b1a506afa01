package config

// EnvPrefix is handed to envconfig; every field carries an explicit tag so the
// prefix only matters for untagged additions.
const EnvPrefix = "ORDERLEDGER"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	EnvAppEnv       = "ORDERLEDGER_APP_ENV"
	EnvLogLevel     = "ORDERLEDGER_LOG_LEVEL"
	EnvLogWarnStack = "ORDERLEDGER_LOG_WARN_STACK"

	EnvDBDSN    = "ORDERLEDGER_DB_DSN"
	EnvDBDriver = "ORDERLEDGER_DB_DRIVER"
	EnvDBHost   = "ORDERLEDGER_DB_HOST"
	EnvDBPort   = "ORDERLEDGER_DB_PORT"
	EnvDBUser   = "ORDERLEDGER_DB_USER"
	EnvDBPass   = "ORDERLEDGER_DB_PASSWORD"
	EnvDBName   = "ORDERLEDGER_DB_NAME"

	EnvRedisURL = "ORDERLEDGER_REDIS_URL"

	EnvAuditInterval = "ORDERLEDGER_AUDIT_INTERVAL"
	EnvAuditRepair   = "ORDERLEDGER_AUDIT_REPAIR"

	EnvEventsRetentionDays = "ORDERLEDGER_EVENTS_RETENTION_DAYS"

	EnvGCPProjectID       = "ORDERLEDGER_GCP_PROJECT_ID"
	EnvPubSubCascadeTopic = "ORDERLEDGER_PUBSUB_CASCADE_TOPIC"
	EnvOutboxMaxAttempts  = "ORDERLEDGER_OUTBOX_MAX_ATTEMPTS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
