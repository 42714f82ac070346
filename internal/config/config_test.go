package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("LOCK_TTL", "10s")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.LockTTL)
	assert.False(t, cfg.AllowHeaderIdentity)
}

func TestFromEnvReadsValues(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/ledger")
	t.Setenv("LOCK_TTL", "3s")
	t.Setenv("ALLOW_HEADER_IDENTITY", "true")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, BackendPostgres, cfg.StoreBackend)
	assert.Equal(t, "postgres://localhost/ledger", cfg.DatabaseURL)
	assert.Equal(t, 3*time.Second, cfg.LockTTL)
	assert.True(t, cfg.AllowHeaderIdentity)
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	t.Setenv("LOCK_TTL", "soon")
	_, err := FromEnv()
	assert.Error(t, err)

	t.Setenv("LOCK_TTL", "5s")
	t.Setenv("ALLOW_HEADER_IDENTITY", "maybe")
	_, err = FromEnv()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{StoreBackend: BackendMemory, JWTSecret: "s3cret", LockTTL: time.Second}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"memory ok", func(c *Config) {}, ""},
		{"postgres without dsn", func(c *Config) { c.StoreBackend = BackendPostgres }, "DATABASE_URL"},
		{"postgres with dsn", func(c *Config) {
			c.StoreBackend = BackendPostgres
			c.DatabaseURL = "postgres://x"
		}, ""},
		{"mongo without uri", func(c *Config) { c.StoreBackend = BackendMongo }, "MONGO_URI"},
		{"bigquery without project", func(c *Config) { c.StoreBackend = BackendBigQuery }, "BQ_PROJECT_ID"},
		{"unknown backend", func(c *Config) { c.StoreBackend = "sqlite" }, "unknown STORE_BACKEND"},
		{"no identity source", func(c *Config) { c.JWTSecret = "" }, "JWT_SECRET"},
		{"header identity only", func(c *Config) {
			c.JWTSecret = ""
			c.AllowHeaderIdentity = true
		}, ""},
		{"zero ttl", func(c *Config) { c.LockTTL = 0 }, "LOCK_TTL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateStoreIgnoresIdentity(t *testing.T) {
	cfg := Config{StoreBackend: BackendMemory, LockTTL: time.Second}
	assert.NoError(t, cfg.ValidateStore())
	assert.Error(t, cfg.Validate())
}
