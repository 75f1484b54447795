package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"DIRECTUS_URL", "PUBLIC_URL", "DIRECTUS_TOKEN", "ADMIN_EMAIL", "ADMIN_PASSWORD",
	"DB_DSN", "DB_HOST", "DB_PORT", "DB_DATABASE", "DB_USER", "DB_PASSWORD", "DB_SSLMODE",
	"HTTP_TIMEOUT", "BACKUP_DIR", "PUBLIC_POLICY", "LOG_LEVEL", "LOG_FORMAT",
	"S3_BUCKET", "S3_ACCESS_KEY", "S3_SECRET_KEY",
}

// clearEnv blanks every key for the duration of the test; t.Setenv restores them.
func clearEnv(t *testing.T) {
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "none.env")
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		clearEnv(t)
		cfg, err := Load(missingEnvFile(t))
		require.NoError(t, err)

		assert.Equal(t, "http://localhost:8055", cfg.Directus.URL)
		assert.Equal(t, 30*time.Second, cfg.Directus.Timeout)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "directus", cfg.Database.Name)
		assert.Equal(t, "directus", cfg.Database.User)
		assert.Equal(t, "disable", cfg.Database.SSLMode)
		assert.Equal(t, "backups", cfg.Backup.Dir)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.Equal(t, "us-east-1", cfg.S3.Region)
		assert.True(t, cfg.S3.PathStyle)
		assert.False(t, cfg.S3Enabled())
	})

	t.Run("environment overrides", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("DIRECTUS_URL", "https://cms.example.id/")
		t.Setenv("ADMIN_EMAIL", "admin@example.id")
		t.Setenv("ADMIN_PASSWORD", "rahasia")
		t.Setenv("DB_HOST", "db.internal")
		t.Setenv("DB_PORT", "6543")
		t.Setenv("HTTP_TIMEOUT", "5s")
		t.Setenv("PUBLIC_POLICY", "abf8a154-5b1c-4a46-ac9c-7300570f4f17")

		cfg, err := Load(missingEnvFile(t))
		require.NoError(t, err)

		assert.Equal(t, "https://cms.example.id", cfg.Directus.URL)
		assert.Equal(t, 5*time.Second, cfg.Directus.Timeout)
		assert.Equal(t, "db.internal", cfg.Database.Host)
		assert.Equal(t, 6543, cfg.Database.Port)
		assert.Equal(t, "abf8a154-5b1c-4a46-ac9c-7300570f4f17", cfg.Directus.PublicPolicy)
		assert.NoError(t, cfg.RequireAPI())
		assert.NoError(t, cfg.RequireDB())
	})

	t.Run("PUBLIC_URL fallback", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("PUBLIC_URL", "http://cms:8055")
		cfg, err := Load(missingEnvFile(t))
		require.NoError(t, err)
		assert.Equal(t, "http://cms:8055", cfg.Directus.URL)
	})

	t.Run("env file does not override set variables", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), ".env")
		content := "# local\nADMIN_EMAIL=file@example.id\nADMIN_PASSWORD=dari-file\nBACKUP_DIR=/tmp/cadangan\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		t.Setenv("ADMIN_EMAIL", "shell@example.id")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "shell@example.id", cfg.Admin.Email)
		assert.Equal(t, "dari-file", cfg.Admin.Password)
		assert.Equal(t, "/tmp/cadangan", cfg.Backup.Dir)

		// godotenv sets process env; undo for the other subtests
		os.Unsetenv("ADMIN_PASSWORD")
		os.Unsetenv("BACKUP_DIR")
	})

	t.Run("invalid url", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("DIRECTUS_URL", "not a url")
		_, err := Load(missingEnvFile(t))
		assert.Error(t, err)
	})
}

func TestDSN(t *testing.T) {
	t.Run("explicit DSN wins", func(t *testing.T) {
		cfg := &Config{Database: DatabaseConfig{DSN: "postgres://u:p@h/db", Host: "ignored"}}
		assert.Equal(t, "postgres://u:p@h/db", cfg.DSN())
	})

	t.Run("built from parts", func(t *testing.T) {
		cfg := &Config{Database: DatabaseConfig{Host: "localhost", Port: 5432, Name: "directus", User: "directus", Password: "pw", SSLMode: "disable"}}
		assert.Equal(t, "host=localhost port=5432 user=directus dbname=directus sslmode=disable password=pw", cfg.DSN())
	})

	t.Run("password omitted when empty", func(t *testing.T) {
		cfg := &Config{Database: DatabaseConfig{Host: "db", Port: 5432, Name: "d", User: "u", SSLMode: "require"}}
		assert.NotContains(t, cfg.DSN(), "password=")
	})
}

func TestRequire(t *testing.T) {
	cfg := &Config{}
	assert.ErrorIs(t, cfg.RequireAPI(), ErrMissingCredentials)
	assert.ErrorIs(t, cfg.RequireDB(), ErrMissingDatabase)

	cfg.Directus.Token = "static"
	assert.NoError(t, cfg.RequireAPI())

	cfg.Database.DSN = "postgres://localhost/directus"
	assert.NoError(t, cfg.RequireDB())
}
