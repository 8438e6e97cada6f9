package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chtemp runs the test from an empty directory so a developer's local
// config.yaml cannot leak into assertions.
func chtemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	chtemp(t)
	t.Setenv("KEYSERVE_SECURITY_ADMIN_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URI)
	assert.Equal(t, "pfizer_licenses", cfg.Mongo.Database)
	assert.Equal(t, "licenses", cfg.Mongo.Collection)
	assert.Equal(t, "admin", cfg.Security.AdminUsername)
	assert.True(t, cfg.Security.RateLimit.Enabled)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	chtemp(t)
	t.Setenv("KEYSERVE_SECURITY_ADMIN_SECRET", "s3cret")
	t.Setenv("KEYSERVE_SERVER_PORT", "9090")
	t.Setenv("KEYSERVE_MONGO_DATABASE", "licenses_test")
	t.Setenv("KEYSERVE_LOGGING_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "licenses_test", cfg.Mongo.Database)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched values keep their defaults.
	assert.Equal(t, "licenses", cfg.Mongo.Collection)
}

func TestLoad_YAMLFileThenEnv(t *testing.T) {
	chtemp(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "keyserve.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 7000
mongo:
  database: from_yaml
security:
  admin_secret: file-secret
`), 0o600))

	t.Setenv("KEYSERVE_CONFIG_FILE", path)
	t.Setenv("KEYSERVE_MONGO_DATABASE", "from_env")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "from_env", cfg.Mongo.Database)
	assert.Equal(t, "file-secret", cfg.Security.AdminSecret)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		cfg := Default()
		cfg.Security.AdminSecret = "s3cret"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"port too low", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"missing mongo uri", func(c *Config) { c.Mongo.URI = "" }, "mongo uri is required"},
		{"missing database", func(c *Config) { c.Mongo.Database = "" }, "mongo database is required"},
		{"missing admin username", func(c *Config) { c.Security.AdminUsername = "" }, "admin username is required"},
		{"missing secret and hash", func(c *Config) { c.Security.AdminSecret = "" }, "admin secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_HashAloneSatisfiesSecret(t *testing.T) {
	cfg := Default()
	cfg.Security.AdminSecretHash = "$2a$10$abcdefghijklmnopqrstuv"
	assert.NoError(t, cfg.validate())
}
