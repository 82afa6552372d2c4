package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML config at configPath. A missing default config file yields defaults.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	cfg := defaultAppConfig()

	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := Parse(&cfg, content); err != nil {
			return nil, fmt.Errorf("parse config file %q: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && path == DefaultConfigPath:
	default:
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// Parse decodes YAML content on top of cfg. Unknown keys are rejected.
func Parse(cfg *AppConfig, content []byte) error {
	if len(bytes.TrimSpace(content)) == 0 {
		return nil
	}
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	raw := rawAppConfig{}
	if err := decoder.Decode(&raw); err != nil {
		return err
	}
	return applyRawAppConfig(cfg, raw)
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	cfg := defaultAppConfig()
	return &cfg
}

func defaultAppConfig() AppConfig {
	cfg := AppConfig{
		Port:   defaultPort,
		Env:    defaultEnv,
		JWTTTL: defaultJWTTTL,
		Database: DatabaseRuntimeConfig{
			Driver:   defaultDBDriver,
			Host:     defaultDBHost,
			User:     defaultDBUser,
			Password: defaultDBPassword,
			Name:     defaultDBName,
			Charset:  defaultDBCharset,
			Loc:      defaultDBLoc,
			SSLMode:  defaultDBSSLMode,
			Path:     defaultSQLitePath,
		},
		Redis: RedisRuntimeConfig{
			Host: defaultRedisHost,
			Port: defaultRedisPort,
			DB:   defaultRedisDB,
		},
		RateLimit: RateLimitConfig{
			Max:    defaultRateLimitMax,
			Window: defaultRateLimitWindow,
		},
		Weather: WeatherConfig{
			CacheTTL:     defaultWeatherCacheTTL,
			AutoSnapshot: true,
		},
		Storage: StorageConfig{
			S3: S3Config{
				Region:     defaultS3Region,
				PresignTTL: defaultPresignTTL,
			},
		},
	}
	cfg.Database = normalizeDatabaseConfig(cfg.Database)
	cfg.Redis = normalizeRedisConfig(cfg.Redis)
	cfg.DSN = cfg.Database.DSNValue()
	cfg.RedisURL = cfg.Redis.URLValue()
	return cfg
}

func applyRawAppConfig(cfg *AppConfig, raw rawAppConfig) error {
	if raw.Port != 0 {
		cfg.Port = raw.Port
	}
	if v := strings.TrimSpace(raw.Env); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(raw.JWTSecret); v != "" {
		cfg.JWTSecret = v
	}
	if v := strings.TrimSpace(raw.JWTTTL); v != "" {
		d, err := parsePositiveDuration("jwt_ttl", v)
		if err != nil {
			return err
		}
		cfg.JWTTTL = d
	}

	switch {
	case raw.AllowedOrigins != nil:
		cfg.AllowedOrigins = normalizeOrigins(raw.AllowedOrigins)
	case raw.CORSAllowedOrigins != nil:
		cfg.AllowedOrigins = normalizeOrigins(raw.CORSAllowedOrigins)
	}

	if v := strings.TrimSpace(raw.Timezone); v != "" {
		cfg.Timezone = v
	}
	if v := strings.TrimSpace(raw.TZ); v != "" {
		cfg.Timezone = v
	}
	if v := strings.TrimSpace(raw.Paths.Logs); v != "" {
		cfg.Paths.Logs = v
	}
	if v := strings.TrimSpace(raw.LogDir); v != "" {
		cfg.Paths.Logs = v
	}
	if raw.LogRotateKeep != nil {
		v := *raw.LogRotateKeep
		cfg.LogRotateKeep = &v
	}

	cfg.Database = applyRawDatabaseConfig(cfg.Database, raw.Database)
	cfg.Redis = applyRawRedisConfig(cfg.Redis, raw.Redis)

	if raw.RateLimit.Max != nil {
		cfg.RateLimit.Max = *raw.RateLimit.Max
	}
	if v := strings.TrimSpace(raw.RateLimit.Window); v != "" {
		d, err := parsePositiveDuration("rate_limit.window", v)
		if err != nil {
			return err
		}
		cfg.RateLimit.Window = d
	}

	if v := strings.TrimSpace(raw.Weather.CacheTTL); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return fmt.Errorf("invalid weather.cache_ttl %q", v)
		}
		cfg.Weather.CacheTTL = d
	}
	if raw.Weather.AutoSnapshot != nil {
		cfg.Weather.AutoSnapshot = *raw.Weather.AutoSnapshot
	}

	s3 := cfg.Storage.S3
	rs3 := raw.Storage.S3
	if v := strings.TrimSpace(rs3.Endpoint); v != "" {
		s3.Endpoint = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(rs3.Region); v != "" {
		s3.Region = v
	}
	if v := strings.TrimSpace(rs3.Bucket); v != "" {
		s3.Bucket = v
	}
	if v := strings.TrimSpace(rs3.AccessKeyID); v != "" {
		s3.AccessKeyID = v
	}
	if v := strings.TrimSpace(rs3.SecretAccessKey); v != "" {
		s3.SecretAccessKey = v
	}
	if v := strings.TrimSpace(rs3.PublicURL); v != "" {
		s3.PublicURL = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(rs3.PresignTTL); v != "" {
		d, err := parsePositiveDuration("storage.s3.presign_ttl", v)
		if err != nil {
			return err
		}
		s3.PresignTTL = d
	}
	if rs3.UsePathStyle != nil {
		s3.UsePathStyle = *rs3.UsePathStyle
	} else if s3.Endpoint != "" {
		s3.UsePathStyle = true
	}
	cfg.Storage.S3 = s3

	cfg.DSN = cfg.Database.DSNValue()
	cfg.RedisURL = cfg.Redis.URLValue()
	cfg.Paths = normalizeRuntimePaths(cfg.Paths)
	cfg.Env = normalizeEnv(cfg.Env)
	return nil
}

func applyRawDatabaseConfig(current DatabaseRuntimeConfig, raw rawDatabaseConfig) DatabaseRuntimeConfig {
	cfg := current
	if v := strings.ToLower(strings.TrimSpace(raw.Driver)); v != "" && v != cfg.Driver {
		cfg.Driver = v
		cfg.Port = 0
	}
	if v := strings.TrimSpace(raw.DSN); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(raw.Host); v != "" {
		cfg.Host = v
	}
	if raw.Port != 0 {
		cfg.Port = raw.Port
	}
	if v := strings.TrimSpace(raw.User); v != "" {
		cfg.User = v
	}
	if v := strings.TrimSpace(raw.Password); v != "" {
		cfg.Password = v
	}
	if v := strings.TrimSpace(raw.Name); v != "" {
		cfg.Name = v
	}
	if v := strings.TrimSpace(raw.Charset); v != "" {
		cfg.Charset = v
	}
	if v := strings.TrimSpace(raw.Loc); v != "" {
		cfg.Loc = v
	}
	if v := strings.TrimSpace(raw.SSLMode); v != "" {
		cfg.SSLMode = v
	}
	if v := strings.TrimSpace(raw.Path); v != "" {
		cfg.Path = v
	}
	if raw.Params != nil {
		cfg.Params = raw.Params
	}
	return normalizeDatabaseConfig(cfg)
}

func applyRawRedisConfig(current RedisRuntimeConfig, raw rawRedisConfig) RedisRuntimeConfig {
	cfg := current
	if v := strings.TrimSpace(raw.URL); v != "" {
		cfg.URL = v
	}
	if v := strings.TrimSpace(raw.Host); v != "" {
		cfg.Host = v
	}
	if raw.Port != 0 {
		cfg.Port = raw.Port
	}
	if v := strings.TrimSpace(raw.Username); v != "" {
		cfg.Username = v
	}
	if v := strings.TrimSpace(raw.Password); v != "" {
		cfg.Password = v
	}
	if raw.DB != nil {
		cfg.DB = *raw.DB
	}
	if raw.TLS != nil {
		cfg.TLS = *raw.TLS
	}
	return normalizeRedisConfig(cfg)
}

func applyEnv(cfg *AppConfig) error {
	if v := strings.TrimSpace(os.Getenv(envPort)); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", envPort, v, err)
		}
		cfg.Port = port
	}
	if v := strings.TrimSpace(os.Getenv(envDatabaseDSN)); v != "" {
		cfg.Database.DSN = v
		cfg.DSN = cfg.Database.DSNValue()
	}
	if v := strings.TrimSpace(os.Getenv(envRedisURL)); v != "" {
		cfg.Redis.URL = normalizeRedisRawURL(v)
		cfg.RedisURL = cfg.Redis.URLValue()
	}
	if v := strings.TrimSpace(os.Getenv(envJWTSecret)); v != "" {
		cfg.JWTSecret = v
	}
	return nil
}

func validate(cfg *AppConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port %d, expected 1-65535", cfg.Port)
	}
	switch cfg.Database.Driver {
	case DriverMySQL, DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported database.driver %q, expected mysql, postgres or sqlite", cfg.Database.Driver)
	}
	if cfg.Database.Driver != DriverSQLite && (cfg.Database.Port < 1 || cfg.Database.Port > 65535) {
		return fmt.Errorf("invalid database.port %d, expected 1-65535", cfg.Database.Port)
	}
	if cfg.Redis.Port < 1 || cfg.Redis.Port > 65535 {
		return fmt.Errorf("invalid redis.port %d, expected 1-65535", cfg.Redis.Port)
	}
	if cfg.Redis.DB < 0 {
		return fmt.Errorf("invalid redis.db %d, expected >= 0", cfg.Redis.DB)
	}
	if cfg.RateLimit.Max < 0 {
		return fmt.Errorf("invalid rate_limit.max %d, expected >= 0", cfg.RateLimit.Max)
	}
	return nil
}

func parsePositiveDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q, expected a positive duration", key, raw)
	}
	return d, nil
}
