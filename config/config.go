package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	AWS          AWSConfig
	Registration RegistrationConfig
	Worker       WorkerConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string        `env:"PORT"                 envDefault:"8080"`
	ReadTimeout        time.Duration `env:"READ_TIMEOUT"         envDefault:"30s"`
	WriteTimeout       time.Duration `env:"WRITE_TIMEOUT"        envDefault:"30s"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT"     envDefault:"15s"`
	CORSAllowedOrigins string        `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000,http://localhost:3001"`
	GinMode            string        `env:"GIN_MODE"             envDefault:"release"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Backend        string `env:"STORE_BACKEND"      envDefault:"postgres"`
	URL            string `env:"DATABASE_URL"`
	Host           string `env:"DB_HOST"            envDefault:"localhost"`
	Port           string `env:"DB_PORT"            envDefault:"5432"`
	User           string `env:"DB_USER"            envDefault:"postgres"`
	Password       string `env:"DB_PASSWORD"        envDefault:"postgres"`
	DBName         string `env:"DB_NAME"            envDefault:"events"`
	SSLMode        string `env:"DB_SSLMODE"         envDefault:"disable"`
	MaxConns       int32  `env:"DB_MAX_CONNS"       envDefault:"10"`
	ConnectRetries int    `env:"DB_CONNECT_RETRIES" envDefault:"5"`
}

// RedisConfig holds Redis connection settings. An empty Addr disables the
// notification queue.
type RedisConfig struct {
	Addr           string `env:"REDIS_ADDR"`
	Password       string `env:"REDIS_PASSWORD"`
	DB             int    `env:"REDIS_DB"              envDefault:"0"`
	ConnectRetries int    `env:"REDIS_CONNECT_RETRIES" envDefault:"3"`
}

// Enabled reports whether a Redis address is configured.
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string `env:"JWT_SECRET"       envDefault:"change-me-in-production"`
	ExpireHours int    `env:"JWT_EXPIRE_HOURS" envDefault:"24"`
}

// AWSConfig holds AWS credentials and the media bucket. An empty bucket
// disables presigned uploads.
type AWSConfig struct {
	Region               string `env:"AWS_REGION"                 envDefault:"us-east-1"`
	AccessKeyID          string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey      string `env:"AWS_SECRET_ACCESS_KEY"`
	MediaBucket          string `env:"AWS_S3_MEDIA_BUCKET"`
	PresignExpireMinutes int    `env:"AWS_PRESIGN_EXPIRE_MINUTES" envDefault:"15"`
}

// RegistrationConfig bounds registration listings.
type RegistrationConfig struct {
	DefaultPageSize int `env:"REGISTRATION_PAGE_SIZE"     envDefault:"10"`
	MaxPageSize     int `env:"REGISTRATION_MAX_PAGE_SIZE" envDefault:"100"`
}

// WorkerConfig tunes the notification worker.
type WorkerConfig struct {
	Concurrency int `env:"WORKER_CONCURRENCY" envDefault:"8"`
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)
	return Parse()
}

// Parse reads configuration from the process environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.Database.Backend = strings.ToLower(strings.TrimSpace(cfg.Database.Backend))
	if cfg.Database.Backend != BackendPostgres && cfg.Database.Backend != BackendMemory {
		return nil, fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendPostgres, BackendMemory, cfg.Database.Backend)
	}
	if cfg.Registration.DefaultPageSize <= 0 {
		cfg.Registration.DefaultPageSize = 10
	}
	if cfg.Registration.MaxPageSize < cfg.Registration.DefaultPageSize {
		cfg.Registration.MaxPageSize = cfg.Registration.DefaultPageSize
	}
	if cfg.Worker.Concurrency <= 0 {
		cfg.Worker.Concurrency = 1
	}
	return &cfg, nil
}
