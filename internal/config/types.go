package config

import (
	"strings"
	"time"
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int
	Env            string // "development" | "production" | "test"
	JWTSecret      string
	JWTTTL         time.Duration
	AllowedOrigins []string
	Timezone       string
	Paths          RuntimePathsConfig
	LogRotateKeep  *int

	Database  DatabaseRuntimeConfig
	Redis     RedisRuntimeConfig
	RateLimit RateLimitConfig
	Weather   WeatherConfig
	Storage   StorageConfig

	// Resolved connection strings.
	DSN      string
	RedisURL string
}

type DatabaseRuntimeConfig struct {
	Driver   string
	DSN      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	Charset  string
	Loc      string
	SSLMode  string
	Path     string // sqlite file
	Params   map[string]string
}

type RedisRuntimeConfig struct {
	URL      string
	Host     string
	Port     int
	Username string
	Password string
	DB       int
	TLS      bool
}

type RateLimitConfig struct {
	Max    int
	Window time.Duration
}

type WeatherConfig struct {
	CacheTTL     time.Duration
	AutoSnapshot bool
}

type StorageConfig struct {
	S3 S3Config
}

// S3Config configures presigned uploads. Endpoint is optional for AWS, required for MinIO-like stores.
type S3Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	PublicURL       string
	PresignTTL      time.Duration
	UsePathStyle    bool
}

// Enabled reports whether enough is configured to presign uploads.
func (c S3Config) Enabled() bool {
	return strings.TrimSpace(c.Bucket) != "" &&
		strings.TrimSpace(c.AccessKeyID) != "" &&
		strings.TrimSpace(c.SecretAccessKey) != ""
}

type RuntimePathsConfig struct {
	Logs string
}

type rawAppConfig struct {
	Port               int                `yaml:"port"`
	Env                string             `yaml:"env"`
	JWTSecret          string             `yaml:"jwt_secret"`
	JWTTTL             string             `yaml:"jwt_ttl"`
	AllowedOrigins     []string           `yaml:"allowed_origins"`
	CORSAllowedOrigins []string           `yaml:"cors_allowed_origins"`
	Timezone           string             `yaml:"timezone"`
	TZ                 string             `yaml:"tz"`
	Paths              rawPathsConfig     `yaml:"paths"`
	LogDir             string             `yaml:"log_dir"`
	LogRotateKeep      *int               `yaml:"log_rotate_keep"`
	Database           rawDatabaseConfig  `yaml:"database"`
	Redis              rawRedisConfig     `yaml:"redis"`
	RateLimit          rawRateLimitConfig `yaml:"rate_limit"`
	Weather            rawWeatherConfig   `yaml:"weather"`
	Storage            rawStorageConfig   `yaml:"storage"`
}

type rawDatabaseConfig struct {
	Driver   string            `yaml:"driver"`
	DSN      string            `yaml:"dsn"`
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	User     string            `yaml:"user"`
	Password string            `yaml:"password"`
	Name     string            `yaml:"name"`
	Charset  string            `yaml:"charset"`
	Loc      string            `yaml:"loc"`
	SSLMode  string            `yaml:"sslmode"`
	Path     string            `yaml:"path"`
	Params   map[string]string `yaml:"params"`
}

type rawRedisConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       *int   `yaml:"db"`
	TLS      *bool  `yaml:"tls"`
}

type rawRateLimitConfig struct {
	Max    *int   `yaml:"max"`
	Window string `yaml:"window"`
}

type rawWeatherConfig struct {
	CacheTTL     string `yaml:"cache_ttl"`
	AutoSnapshot *bool  `yaml:"auto_snapshot"`
}

type rawStorageConfig struct {
	S3 rawS3Config `yaml:"s3"`
}

type rawS3Config struct {
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PublicURL       string `yaml:"public_url"`
	PresignTTL      string `yaml:"presign_ttl"`
	UsePathStyle    *bool  `yaml:"use_path_style"`
}

type rawPathsConfig struct {
	Logs string `yaml:"logs"`
}

// IsDev reports whether the app runs in development mode.
func (c *AppConfig) IsDev() bool {
	return c.Env == "development" || c.Env == "dev"
}

// LogDir returns the resolved log directory.
func (c *AppConfig) LogDir() string {
	return ResolveRuntimePath(c.Paths.Logs, "logs")
}

// LogRotateKeepCount returns the configured number of daily log files to keep.
func (c *AppConfig) LogRotateKeepCount() (int, bool) {
	if c.LogRotateKeep == nil || *c.LogRotateKeep <= 0 {
		return 0, false
	}
	return *c.LogRotateKeep, true
}
