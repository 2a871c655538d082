package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "APP_ENV", "STORAGE", "DATA_DIR", "SQLITE_PATH", "SEED_SAMPLES", "READ_TIMEOUT", "SHUTDOWN_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StorageFile, cfg.Storage)
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, "./data/taskdesk.db", cfg.SQLitePath)
	assert.True(t, cfg.SeedSamples)
	assert.Equal(t, 10*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.IsDev())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("APP_ENV", "dev")
	t.Setenv("STORAGE", "memory")
	t.Setenv("SEED_SAMPLES", "false")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("READ_TIMEOUT", "not-a-duration")

	cfg := Load()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.False(t, cfg.SeedSamples)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 10*time.Second, cfg.ReadTimeout)
	assert.True(t, cfg.IsDev())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"file", Config{Storage: StorageFile, DataDir: "./data"}, false},
		{"file without dir", Config{Storage: StorageFile}, true},
		{"postgres", Config{Storage: StoragePostgres}, false},
		{"sqlite", Config{Storage: StorageSQLite, SQLitePath: "./data/taskdesk.db"}, false},
		{"sqlite without path", Config{Storage: StorageSQLite}, true},
		{"unknown", Config{Storage: "mysql"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
