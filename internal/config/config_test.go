package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearNotifyEnv(t *testing.T) {
	for _, key := range []string{
		"RESEND_API_KEY", "SENDGRID_API_KEY", "SMTP_HOST", "SMTP_USERNAME", "SMTP_PASSWORD",
		"TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN", "TWILIO_FROM_NUMBER", "GETAMBEE_API_KEY",
		"AUTH_JWT_SECRET", "DB_DSN",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearNotifyEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Server.RateLimitRPS)
	assert.Equal(t, 50051, cfg.GRPC.Port)
	assert.Equal(t, 2, cfg.Worker.Count)
	assert.Equal(t, 20, cfg.Worker.BufferSize)
	assert.Equal(t, "alerts@example.com", cfg.Notify.EmailFrom)
	assert.Equal(t, 10*time.Second, cfg.Notify.ProviderTimeout)
	assert.Empty(t, cfg.Notify.ResendAPIKey)
	assert.Empty(t, cfg.Notify.TwilioSID)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_CustomEnv(t *testing.T) {
	clearNotifyEnv(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("WORKER_COUNT", "4")
	t.Setenv("RESEND_API_KEY", "re_test")
	t.Setenv("TWILIO_ACCOUNT_SID", "AC123")
	t.Setenv("TWILIO_AUTH_TOKEN", "secret")
	t.Setenv("TWILIO_FROM_NUMBER", "+15550001111")
	t.Setenv("NOTIFY_PROVIDER_TIMEOUT", "3s")
	t.Setenv("LOG_FORMAT", "text")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Worker.Count)
	assert.Equal(t, "re_test", cfg.Notify.ResendAPIKey)
	assert.Equal(t, "AC123", cfg.Notify.TwilioSID)
	assert.Equal(t, "+15550001111", cfg.Notify.TwilioFrom)
	assert.Equal(t, 3*time.Second, cfg.Notify.ProviderTimeout)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad port", "SERVER_PORT", "70000"},
		{"bad level", "LOG_LEVEL", "verbose"},
		{"bad format", "LOG_FORMAT", "xml"},
		{"bad driver", "DB_DRIVER", "oracle"},
		{"postgres without dsn", "DB_DRIVER", "postgres"},
		{"zero workers", "WORKER_COUNT", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearNotifyEnv(t)
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
