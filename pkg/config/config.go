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
	FeatureFlags FeatureFlagsConfig
	Audit        AuditConfig
	Events       EventsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
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
	Env          string `envconfig:"ORDERLEDGER_APP_ENV" required:"true"`
	LogLevel     string `envconfig:"ORDERLEDGER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ORDERLEDGER_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ORDERLEDGER_SERVICE_KIND" default:"cron-worker"`
}

type DBConfig struct {
	DSN    string `envconfig:"ORDERLEDGER_DB_DSN"`
	Driver string `envconfig:"ORDERLEDGER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ORDERLEDGER_DB_HOST"`
	LegacyPort     int    `envconfig:"ORDERLEDGER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ORDERLEDGER_DB_USER"`
	LegacyPassword string `envconfig:"ORDERLEDGER_DB_PASSWORD"`
	LegacyName     string `envconfig:"ORDERLEDGER_DB_NAME"`
	LegacySSLMode  string `envconfig:"ORDERLEDGER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ORDERLEDGER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ORDERLEDGER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ORDERLEDGER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ORDERLEDGER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the configured driver is the embedded sqlite engine.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"ORDERLEDGER_REDIS_URL"`
	Address      string        `envconfig:"ORDERLEDGER_REDIS_ADDR"`
	Password     string        `envconfig:"ORDERLEDGER_REDIS_PASSWORD"`
	DB           int           `envconfig:"ORDERLEDGER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ORDERLEDGER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ORDERLEDGER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ORDERLEDGER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ORDERLEDGER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ORDERLEDGER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ORDERLEDGER_AUTO_MIGRATE" default:"false"`
}

// AuditConfig drives the scheduled derived-field reconciliation.
type AuditConfig struct {
	Interval time.Duration `envconfig:"ORDERLEDGER_AUDIT_INTERVAL" default:"1h"`
	Repair   bool          `envconfig:"ORDERLEDGER_AUDIT_REPAIR" default:"false"`
	LockTTL  time.Duration `envconfig:"ORDERLEDGER_AUDIT_LOCK_TTL" default:"55m"`
}

type EventsConfig struct {
	RetentionDays int `envconfig:"ORDERLEDGER_EVENTS_RETENTION_DAYS" default:"30"`
}

// GCPConfig is only required by the outbox publisher.
type GCPConfig struct {
	ProjectID       string `envconfig:"ORDERLEDGER_GCP_PROJECT_ID"`
	CredentialsFile string `envconfig:"ORDERLEDGER_GOOGLE_APPLICATION_CREDENTIALS"`
	// EmulatorHost points the client at a local Pub/Sub emulator.
	EmulatorHost string `envconfig:"ORDERLEDGER_PUBSUB_EMULATOR_HOST"`
}

type PubSubConfig struct {
	CascadeTopic string `envconfig:"ORDERLEDGER_PUBSUB_CASCADE_TOPIC" default:"orderledger-cascade-events"`
}

// OutboxConfig tunes delivery of cascade events to Pub/Sub.
type OutboxConfig struct {
	BatchSize      int `envconfig:"ORDERLEDGER_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"ORDERLEDGER_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"ORDERLEDGER_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
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
