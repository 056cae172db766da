package config

// EnvPrefix is applied by envconfig to unprefixed struct fields. Explicit
// envconfig tags on each field already carry it, so this stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Env var names referenced outside struct tags (validation messages, tests).
const (
	EnvAppEnv    = "KITLY_APP_ENV"
	EnvPort      = "KITLY_APP_PORT"
	EnvDBDSN     = "KITLY_DB_DSN"
	EnvDBHost    = "KITLY_DB_HOST"
	EnvDBUser    = "KITLY_DB_USER"
	EnvDBName    = "KITLY_DB_NAME"
	EnvRedisURL  = "KITLY_REDIS_URL"
	EnvJWTSecret = "KITLY_JWT_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
