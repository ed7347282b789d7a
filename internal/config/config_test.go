package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfigFile(t, `
service:
  name: riskhub
postgres:
  host: localhost
  database: riskhub
  user: riskhub
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "riskhub", cfg.Service.Name)
	assert.Equal(t, 8080, cfg.Service.HTTPPort)
	assert.Equal(t, "release", cfg.Service.Mode)
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Equal(t, 6379, cfg.Redis.Port)
	assert.Equal(t, "ingestion-alerts", cfg.Kafka.AlertTopic)
	assert.Equal(t, 24*30, cfg.Auth.TokenTTLHours)
	assert.Equal(t, 1000, cfg.Ingestion.MaxBatchEvents)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("RISKHUB_PG_HOST", "db.internal")

	path := writeConfigFile(t, `
postgres:
  host: ${RISKHUB_PG_HOST:localhost}
  password: ${RISKHUB_PG_PASSWORD:fallback}
auth:
  jwt_secret: ${RISKHUB_JWT_SECRET:dev-secret}
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	// 未设置的变量使用默认值
	assert.Equal(t, "fallback", cfg.Postgres.Password)
	assert.Equal(t, "dev-secret", cfg.Auth.JWTSecret)
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}
