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
	Auth         AuthConfig
	Jobs         JobsConfig
	Cron         CronConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"PIPEFLOW_APP_ENV" required:"true"`
	Port         string `envconfig:"PIPEFLOW_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PIPEFLOW_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PIPEFLOW_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PIPEFLOW_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PIPEFLOW_DB_DSN"`
	Driver string `envconfig:"PIPEFLOW_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"PIPEFLOW_DB_HOST"`
	Port     int    `envconfig:"PIPEFLOW_DB_PORT" default:"5432"`
	User     string `envconfig:"PIPEFLOW_DB_USER"`
	Password string `envconfig:"PIPEFLOW_DB_PASSWORD"`
	Name     string `envconfig:"PIPEFLOW_DB_NAME"`
	SSLMode  string `envconfig:"PIPEFLOW_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PIPEFLOW_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PIPEFLOW_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PIPEFLOW_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PIPEFLOW_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PIPEFLOW_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PIPEFLOW_REDIS_ADDR"`
	Password     string        `envconfig:"PIPEFLOW_REDIS_PASSWORD"`
	DB           int           `envconfig:"PIPEFLOW_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PIPEFLOW_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PIPEFLOW_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PIPEFLOW_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PIPEFLOW_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PIPEFLOW_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// AuthConfig verifies access tokens minted by the external auth provider.
type AuthConfig struct {
	JWTSecret string `envconfig:"PIPEFLOW_AUTH_JWT_SECRET" required:"true"`
	JWTIssuer string `envconfig:"PIPEFLOW_AUTH_JWT_ISSUER" required:"true"`
}

// JobsConfig drives the outbox runner and its trigger endpoint.
type JobsConfig struct {
	BatchSize          int           `envconfig:"PIPEFLOW_JOBS_BATCH_SIZE" default:"50"`
	MaxRetries         int           `envconfig:"PIPEFLOW_JOBS_MAX_RETRIES" default:"5"`
	PollInterval       time.Duration `envconfig:"PIPEFLOW_JOBS_POLL_INTERVAL" default:"30s"`
	TriggerSecret      string        `envconfig:"PIPEFLOW_JOBS_TRIGGER_SECRET" required:"true"`
	SigningSecret      string        `envconfig:"PIPEFLOW_JOBS_SIGNING_SECRET" required:"true"`
	SignatureTolerance time.Duration `envconfig:"PIPEFLOW_JOBS_SIGNATURE_TOLERANCE" default:"5m"`
	ProcessingTimeout  time.Duration `envconfig:"PIPEFLOW_JOBS_PROCESSING_TIMEOUT" default:"10m"`
	StaleReclaim       bool          `envconfig:"PIPEFLOW_JOBS_STALE_RECLAIM" default:"true"`
	RetentionDays      int           `envconfig:"PIPEFLOW_JOBS_RETENTION_DAYS" default:"30"`
	TriggerRateLimit   int           `envconfig:"PIPEFLOW_JOBS_TRIGGER_RATE_LIMIT" default:"10"`
	TriggerRateWindow  time.Duration `envconfig:"PIPEFLOW_JOBS_TRIGGER_RATE_WINDOW" default:"1m"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"PIPEFLOW_CRON_INTERVAL" default:"1h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PIPEFLOW_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	parts := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range []string{EnvDBHost, EnvDBUser, EnvDBName} {
		if parts[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
