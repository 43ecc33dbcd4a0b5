package config

import (
	"testing"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("PORT", "5555")
	t.Setenv("POSTGRES_USER", "pos")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DB", "pos")
	t.Setenv("POSTGRES_HOST", "localhost")
	t.Setenv("POSTGRES_PORT", "5432")
	t.Setenv("JWT_SECRET", "jwt")
	t.Setenv("GO_ENV", "dev")
	t.Setenv("FE_URL", "http://localhost:5173")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("TOKEN_TTL", "")
	t.Setenv("REFUND_WINDOW_DAYS", "")
	t.Setenv("IMAGE_DIR", "")
	t.Setenv("POSTGRES_SSLMODE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5432, cfg.PostgresPort)
	assert.Equal(t, 12*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 30*24*time.Hour, cfg.RefundWindow)
	assert.Equal(t, "public/images", cfg.ImageDir)
	assert.Equal(t, "host=localhost port=5432 user=pos password=secret dbname=pos sslmode=disable", cfg.DSN())
}

func TestLoad_DatabaseURLSkipsPostgresVars(t *testing.T) {
	t.Setenv("PORT", "5555")
	t.Setenv("DATABASE_URL", "postgres://pos@db/pos")
	t.Setenv("POSTGRES_PORT", "")
	t.Setenv("JWT_SECRET", "jwt")
	t.Setenv("GO_ENV", "dev")
	t.Setenv("FE_URL", "http://localhost:5173")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://pos@db/pos", cfg.DSN())
}

func TestLoad_MissingSecret(t *testing.T) {
	setRequired(t)
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.EqualError(t, err, "JWT_SECRET is required")
}

func TestLoad_BadNumbers(t *testing.T) {
	setRequired(t)
	t.Setenv("POSTGRES_PORT", "abc")
	_, err := Load()
	assert.Error(t, err)

	setRequired(t)
	t.Setenv("REFUND_WINDOW_DAYS", "-1")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoad_SeedAdminNeedsPassword(t *testing.T) {
	setRequired(t)
	t.Setenv("SEED_ADMIN_USERNAME", "admin")
	t.Setenv("SEED_ADMIN_PASSWORD", "short")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadTerminal(t *testing.T) {
	t.Setenv("POS_API_URL", "")
	t.Setenv("POS_TERMINAL", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("POS_REQUEST_TIMEOUT", "")
	t.Setenv("POS_CATALOG_TTL", "30s")

	cfg, err := LoadTerminal()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5555", cfg.APIBaseURL)
	assert.Equal(t, 30*time.Second, cfg.CatalogTTL)
	assert.Equal(t, "", cfg.RedisAddr)

	t.Setenv("POS_REQUEST_TIMEOUT", "soon")
	_, err = LoadTerminal()
	assert.Error(t, err)
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, log.DEBUG, LogLevel(" Debug "))
	assert.Equal(t, log.OFF, LogLevel("off"))
	assert.Equal(t, log.INFO, LogLevel("verbose"))
}
