package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server  ServerConfig
	GRPC    GRPCConfig
	Worker  WorkerConfig
	Notify  NotifyConfig
	Feeds   FeedsConfig
	Auth    AuthConfig
	DB      DatabaseConfig
	Logging LoggingConfig
}

type GRPCConfig struct {
	Port int
}

type ServerConfig struct {
	Host            string
	Port            int
	RateLimitRPS    int
	ShutdownTimeout time.Duration
}

// WorkerConfig sizes the background pool that runs alert dispatch cycles.
type WorkerConfig struct {
	Count      int
	BufferSize int
}

// NotifyConfig carries provider credentials. A provider is used only when all
// of its fields are set; nothing here is read from the environment at send time.
type NotifyConfig struct {
	EmailFrom       string
	ResendAPIKey    string
	SendGridAPIKey  string
	SMTPHost        string
	SMTPPort        int
	SMTPUsername    string
	SMTPPassword    string
	TwilioSID       string
	TwilioToken     string
	TwilioFrom      string
	ProviderTimeout time.Duration
}

type FeedsConfig struct {
	USGSURL     string
	AmbeeURL    string
	AmbeeAPIKey string
	Timeout     time.Duration
}

type AuthConfig struct {
	JWTSecret string
}

type DatabaseConfig struct {
	Driver string // "sqlite" or "postgres"
	Path   string
	DSN    string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "localhost"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			RateLimitRPS:    getEnvInt("RATE_LIMIT_RPS", 5),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		GRPC: GRPCConfig{
			Port: getEnvInt("GRPC_PORT", 50051),
		},
		Worker: WorkerConfig{
			Count:      getEnvInt("WORKER_COUNT", 2),
			BufferSize: getEnvInt("WORKER_BUFFER_SIZE", 20),
		},
		Notify: NotifyConfig{
			EmailFrom:       getEnv("ALERTS_EMAIL_FROM", "alerts@example.com"),
			ResendAPIKey:    os.Getenv("RESEND_API_KEY"),
			SendGridAPIKey:  os.Getenv("SENDGRID_API_KEY"),
			SMTPHost:        os.Getenv("SMTP_HOST"),
			SMTPPort:        getEnvInt("SMTP_PORT", 587),
			SMTPUsername:    os.Getenv("SMTP_USERNAME"),
			SMTPPassword:    os.Getenv("SMTP_PASSWORD"),
			TwilioSID:       os.Getenv("TWILIO_ACCOUNT_SID"),
			TwilioToken:     os.Getenv("TWILIO_AUTH_TOKEN"),
			TwilioFrom:      os.Getenv("TWILIO_FROM_NUMBER"),
			ProviderTimeout: getEnvDuration("NOTIFY_PROVIDER_TIMEOUT", 10*time.Second),
		},
		Feeds: FeedsConfig{
			USGSURL:     getEnv("USGS_URL", "https://earthquake.usgs.gov/fdsnws/event/1/query"),
			AmbeeURL:    getEnv("AMBEE_URL", "https://api.ambeedata.com/disasters/latest/by-continent"),
			AmbeeAPIKey: os.Getenv("GETAMBEE_API_KEY"),
			Timeout:     getEnvDuration("FEED_TIMEOUT", 10*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("AUTH_JWT_SECRET"),
		},
		DB: DatabaseConfig{
			Driver: getEnv("DB_DRIVER", "sqlite"),
			Path:   getEnv("DB_PATH", "./data/disasterwatch.db"),
			DSN:    os.Getenv("DB_DSN"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.GRPC.Port < 1 || c.GRPC.Port > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPC.Port)
	}
	if c.Server.RateLimitRPS < 1 {
		return fmt.Errorf("RATE_LIMIT_RPS must be at least 1")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.Worker.Count < 1 {
		return fmt.Errorf("WORKER_COUNT must be at least 1")
	}
	if c.Worker.BufferSize < 0 {
		return fmt.Errorf("WORKER_BUFFER_SIZE must not be negative")
	}

	if c.Notify.ProviderTimeout <= 0 {
		return fmt.Errorf("NOTIFY_PROVIDER_TIMEOUT must be positive")
	}
	if c.Feeds.Timeout <= 0 {
		return fmt.Errorf("FEED_TIMEOUT must be positive")
	}

	switch c.DB.Driver {
	case "sqlite":
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("DB_DSN is required when DB_DRIVER is postgres")
		}
	default:
		return fmt.Errorf("invalid database driver: %s", c.DB.Driver)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
