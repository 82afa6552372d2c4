package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, defaultPort, cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.True(t, cfg.IsDev())
	assert.Equal(t, 7*24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, DriverMySQL, cfg.Database.Driver)
	assert.Equal(t, "root:password@tcp(127.0.0.1:3306)/traveldiary?charset=utf8mb4&loc=Local&parseTime=True", cfg.DSN)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, 50, cfg.RateLimit.Max)
	assert.Equal(t, time.Second, cfg.RateLimit.Window)
	assert.Equal(t, 10*time.Minute, cfg.Weather.CacheTTL)
	assert.True(t, cfg.Weather.AutoSnapshot)
	assert.False(t, cfg.Storage.S3.Enabled())
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
}

func TestLoad_Postgres(t *testing.T) {
	path := writeConfig(t, `
port: 8080
env: production
jwt_secret: s3cret
jwt_ttl: 24h
database:
  driver: postgresql
  host: db
  user: diary
  password: pw
  name: diaries
  params:
    TimeZone: UTC
redis:
  host: cache
  password: rp
  db: 2
allowed_origins: [" https://example.com ", ""]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.False(t, cfg.IsDev())
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "host=db port=5432 user=diary password=pw dbname=diaries sslmode=disable TimeZone=UTC", cfg.DSN)
	assert.Equal(t, "redis://:rp@cache:6379/2", cfg.RedisURL)
	assert.Equal(t, []string{"https://example.com"}, cfg.AllowedOrigins)
}

func TestLoad_SQLiteAndStorage(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: sqlite
  path: /tmp/diary.db
weather:
  cache_ttl: 0s
  auto_snapshot: false
storage:
  s3:
    endpoint: http://minio:9000/
    bucket: diary
    access_key_id: ak
    secret_access_key: sk
    presign_ttl: 5m
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/diary.db", cfg.DSN)
	assert.Equal(t, time.Duration(0), cfg.Weather.CacheTTL)
	assert.False(t, cfg.Weather.AutoSnapshot)
	assert.True(t, cfg.Storage.S3.Enabled())
	assert.Equal(t, "http://minio:9000", cfg.Storage.S3.Endpoint)
	assert.True(t, cfg.Storage.S3.UsePathStyle)
	assert.Equal(t, 5*time.Minute, cfg.Storage.S3.PresignTTL)
	assert.Equal(t, "us-east-1", cfg.Storage.S3.Region)
}

func TestLoad_Rejects(t *testing.T) {
	cases := map[string]string{
		"unknown key":  "nope: 1\n",
		"bad port":     "port: 70000\n",
		"bad driver":   "database:\n  driver: oracle\n",
		"bad jwt ttl":  "jwt_ttl: soon\n",
		"negative ttl": "rate_limit:\n  window: -1s\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(envPort, "9090")
	t.Setenv(envDatabaseDSN, "file::memory:")
	t.Setenv(envRedisURL, "cache:6380/1")
	t.Setenv(envJWTSecret, "from-env")

	cfg, err := Load(writeConfig(t, "database:\n  driver: sqlite\n"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "file::memory:", cfg.DSN)
	assert.Equal(t, "redis://cache:6380/1", cfg.RedisURL)
	assert.Equal(t, "from-env", cfg.JWTSecret)
}
