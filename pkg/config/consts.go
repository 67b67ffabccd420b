package config

// EnvPrefix is shared by every envconfig lookup.
const EnvPrefix = "PIPEFLOW"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

// Environment variable names referenced outside struct tags.
const (
	EnvAppEnv        = "PIPEFLOW_APP_ENV"
	EnvPort          = "PIPEFLOW_APP_PORT"
	EnvDBDSN         = "PIPEFLOW_DB_DSN"
	EnvDBHost        = "PIPEFLOW_DB_HOST"
	EnvDBUser        = "PIPEFLOW_DB_USER"
	EnvDBName        = "PIPEFLOW_DB_NAME"
	EnvRedisURL      = "PIPEFLOW_REDIS_URL"
	EnvJWTSecret     = "PIPEFLOW_AUTH_JWT_SECRET"
	EnvJWTIssuer     = "PIPEFLOW_AUTH_JWT_ISSUER"
	EnvTriggerSecret = "PIPEFLOW_JOBS_TRIGGER_SECRET"
	EnvSigningSecret = "PIPEFLOW_JOBS_SIGNING_SECRET"
)
