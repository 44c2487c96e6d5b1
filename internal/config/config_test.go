package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", DriverMemory)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, 3, cfg.Domain.ConflictRetries)
	assert.Equal(t, 30, cfg.Domain.ExpiryAlertDays)
	assert.Equal(t, 10*time.Second, cfg.Lock.TTL)
	assert.Empty(t, cfg.Redis.Addr)
	assert.True(t, cfg.App.Development())
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	content := "STORAGE_DRIVER=memory\nAPP_PORT=9090\nLOCK_TTL=3s\nEXPIRY_ALERT_DAYS=45\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	// godotenv never overrides variables already present; t.Setenv restores them afterwards
	for _, k := range []string{"STORAGE_DRIVER", "LOCK_TTL", "EXPIRY_ALERT_DAYS", "APP_PORT"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, 3*time.Second, cfg.Lock.TTL)
	assert.Equal(t, 45, cfg.Domain.ExpiryAlertDays)
}

func TestLoad_MalformedValue(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", DriverMemory)
	t.Setenv("LOCK_TTL", "soon")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOCK_TTL")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			App:       AppConfig{Port: "8080"},
			Storage:   StorageConfig{Driver: DriverPostgres, DatabaseURL: "postgres://localhost/pharmaflow", MaxConns: 4, MinConns: 1},
			Lock:      LockConfig{TTL: time.Second, Retries: 1},
			Auth:      AuthConfig{JWTSecret: "s"},
			Domain:    DomainConfig{ConflictRetries: 3},
			Scheduler: SchedulerConfig{OutboxBatchSize: 10},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "postgres without url", mutate: func(c *Config) { c.Storage.DatabaseURL = "" }, wantErr: "DATABASE_URL"},
		{name: "memory without url", mutate: func(c *Config) { c.Storage.Driver = DriverMemory; c.Storage.DatabaseURL = "" }},
		{name: "unknown driver", mutate: func(c *Config) { c.Storage.Driver = "sqlite" }, wantErr: "STORAGE_DRIVER"},
		{name: "zero conflict retries", mutate: func(c *Config) { c.Domain.ConflictRetries = 0 }, wantErr: "CONFLICT_RETRIES"},
		{name: "negative lock retries", mutate: func(c *Config) { c.Lock.Retries = -1 }, wantErr: "LOCK_RETRIES"},
		{name: "min above max conns", mutate: func(c *Config) { c.Storage.MinConns = 10 }, wantErr: "DB_MIN_CONNS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
