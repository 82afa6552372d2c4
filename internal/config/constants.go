package config

import "time"

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	defaultPort       = 3000
	defaultEnv        = "development"

	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	defaultDBDriver     = DriverMySQL
	defaultDBHost       = "127.0.0.1"
	defaultMySQLPort    = 3306
	defaultPostgresPort = 5432
	defaultDBUser       = "root"
	defaultDBPassword   = "password"
	defaultDBName       = "traveldiary"
	defaultDBCharset    = "utf8mb4"
	defaultDBLoc        = "Local"
	defaultDBSSLMode    = "disable"
	defaultSQLitePath   = "data/traveldiary.db"

	defaultRedisHost = "localhost"
	defaultRedisPort = 6379
	defaultRedisDB   = 0

	defaultJWTTTL          = 7 * 24 * time.Hour
	defaultRateLimitMax    = 50
	defaultRateLimitWindow = time.Second
	defaultWeatherCacheTTL = 10 * time.Minute
	defaultPresignTTL      = 15 * time.Minute
	defaultS3Region        = "us-east-1"

	envPort        = "TD_PORT"
	envDatabaseDSN = "TD_DATABASE_DSN"
	envRedisURL    = "TD_REDIS_URL"
	envJWTSecret   = "TD_JWT_SECRET"
)
