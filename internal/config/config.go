package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	SQLitePath  string
	RedisURL    string

	// Registration
	EmailDomain     string        // required email domain for signup, e.g. "mtu.edu"
	RegistrationTTL time.Duration // verification-code entry window
	SendGridKey     string
	MailFrom        string

	// Avatars
	AvatarDir    string // disk storage root; ignored when AvatarBucket is set
	AvatarBucket string // S3 bucket name
	S3Endpoint   string // custom S3 endpoint (minio etc.), optional

	// Sign-in rate limiting
	SignInLimit  int
	SignInWindow time.Duration
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", "3000"),
		Env:             getEnv("ENV", "development"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		SQLitePath:      os.Getenv("SQLITE_PATH"),
		RedisURL:        os.Getenv("REDIS_URL"),
		EmailDomain:     getEnv("EMAIL_DOMAIN", "mtu.edu"),
		RegistrationTTL: getDuration("REGISTRATION_TTL", 15*time.Minute),
		SendGridKey:     os.Getenv("SENDGRID_API_KEY"),
		MailFrom:        getEnv("MAIL_FROM", "no-reply@mail.huskies.io"),
		AvatarDir:       getEnv("AVATAR_DIR", "./data/avatars"),
		AvatarBucket:    os.Getenv("AVATAR_BUCKET"),
		S3Endpoint:      os.Getenv("S3_ENDPOINT"),
		SignInLimit:     getInt("SIGNIN_RATE_LIMIT", 10),
		SignInWindow:    getDuration("SIGNIN_RATE_WINDOW", time.Minute),
	}

	// In production, require the external stores and the mailer key
	if cfg.Env == "production" {
		if cfg.DatabaseURL == "" {
			panic("DATABASE_URL is required in production")
		}
		if cfg.RedisURL == "" {
			panic("REDIS_URL is required in production")
		}
		if cfg.SendGridKey == "" {
			panic("SENDGRID_API_KEY is required in production")
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
