package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_PORT", "")
	t.Setenv("UPLOAD_DIR", "")
	t.Setenv("SMTP_HOST", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, "static/uploads", cfg.Upload.Dir)
	assert.Equal(t, 16*1024*1024, cfg.Upload.MaxBytes)
	assert.Empty(t, cfg.Notification.SMTPHost)
	assert.Equal(t, 24*time.Hour, cfg.Auth.AccessTokenTTL())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_PORT", "9000")
	t.Setenv("AUTH_ACCESS_TOKEN_TTL_MINUTES", "15")
	t.Setenv("POSTGRES_RUN_MIGRATIONS", "false")
	t.Setenv("AUTH_BCRYPT_COST", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.App.Port)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenTTL())
	assert.False(t, cfg.Postgres.RunMigrations)
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
}

func TestLoad_InvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "primary")

	_, err := Load()
	assert.Error(t, err)
}

func TestRequestTimeout(t *testing.T) {
	assert.Equal(t, time.Duration(0), AppConfig{RequestTimeoutSeconds: 0}.RequestTimeout())
	assert.Equal(t, 5*time.Second, AppConfig{RequestTimeoutSeconds: 5}.RequestTimeout())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			App:    AppConfig{Env: "production", Port: "8080"},
			Auth:   AuthConfig{JWTSecret: "s3cret", BcryptCost: 12},
			Upload: UploadConfig{MaxBytes: 1024},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "ok", mutate: func(*Config) {}},
		{name: "default secret in production", mutate: func(c *Config) { c.Auth.JWTSecret = defaultJWTSecret }, wantErr: "AUTH_JWT_SECRET"},
		{name: "default secret in development", mutate: func(c *Config) { c.App.Env = "development"; c.Auth.JWTSecret = defaultJWTSecret }},
		{name: "bcrypt cost", mutate: func(c *Config) { c.Auth.BcryptCost = 2 }, wantErr: "AUTH_BCRYPT_COST"},
		{name: "upload limit", mutate: func(c *Config) { c.Upload.MaxBytes = 0 }, wantErr: "UPLOAD_MAX_BYTES"},
		{name: "smtp without sender", mutate: func(c *Config) { c.Notification.SMTPHost = "smtp.example.com" }, wantErr: "NOTIFY_EMAIL_FROM"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
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
