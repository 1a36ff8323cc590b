package config

const (
	// EnvPrefix is passed to envconfig; individual fields carry explicit
	// STOWPOINT_-prefixed names so the prefix stays empty.
	EnvPrefix = ""

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv  = "STOWPOINT_APP_ENV"
	EnvAppPort = "STOWPOINT_APP_PORT"

	EnvDBDSN  = "STOWPOINT_DB_DSN"
	EnvDBHost = "STOWPOINT_DB_HOST"
	EnvDBUser = "STOWPOINT_DB_USER"
	EnvDBName = "STOWPOINT_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
