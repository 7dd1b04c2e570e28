package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DevelopmentJWTSecret is the JWT_SECRET default. It is public, so release
// mode refuses to start with it.
const DevelopmentJWTSecret = "development-insecure-secret-change-me"

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Cache      CacheConfig
	DIP        DIPConfig
	JWT        JWTConfig
	Admin      AdminConfig
	Email      EmailConfig
	Site       SiteConfig
	Log        LogConfig
	Newsletter NewsletterConfig
}

type ServerConfig struct {
	Host            string
	Port            string
	Mode            string // gin mode: debug, release or test
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// TrustedProxies may set X-Forwarded-For. Empty means none: the client
	// IP is always the peer address.
	TrustedProxies []string
}

type DatabaseConfig struct {
	Path string
}

type CacheConfig struct {
	Directory         string
	DefaultTTLSeconds int
	InquiriesTTL      time.Duration
	CleanupInterval   time.Duration
	CleanupMaxAge     time.Duration
}

type DIPConfig struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	RetryMax    int
	Wahlperiode int
	StartDate   string // YYYY-MM-DD
	MaxPages    int
}

type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience string
	AdminTTL time.Duration
}

type AdminConfig struct {
	Username     string
	PasswordHash string // bcrypt
}

type EmailConfig struct {
	SendGridAPIKey string
	FromEmail      string
	FromName       string
}

type SiteConfig struct {
	Name    string
	BaseURL string
	Contact string
}

type LogConfig struct {
	Level  string
	Format string // json or text
}

type NewsletterConfig struct {
	ConfirmTTL      time.Duration
	SubscribeLimit  int
	SubscribeWindow time.Duration
}

// Load reads configuration from the environment, after loading a .env file
// if one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnv("SERVER_PORT", "8008"),
			Mode:            getEnv("GIN_MODE", "release"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			TrustedProxies:  getListEnv("TRUSTED_PROXIES"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", "ngo-inquiries.db"),
		},
		Cache: CacheConfig{
			Directory:         getEnv("CACHE_DIR", "var/cache"),
			DefaultTTLSeconds: getIntEnv("CACHE_DEFAULT_TTL_SECONDS", 900),
			InquiriesTTL:      getDurationEnv("CACHE_INQUIRIES_TTL", time.Hour),
			CleanupInterval:   getDurationEnv("CACHE_CLEANUP_INTERVAL", time.Hour),
			CleanupMaxAge:     getDurationEnv("CACHE_CLEANUP_MAX_AGE", 24*time.Hour),
		},
		DIP: DIPConfig{
			BaseURL:     getEnv("DIP_BASE_URL", "https://search.dip.bundestag.de/api/v1"),
			APIKey:      getEnv("DIP_API_KEY", ""),
			Timeout:     getDurationEnv("DIP_TIMEOUT", 20*time.Second),
			RetryMax:    getIntEnv("DIP_RETRY_MAX", 2),
			Wahlperiode: getIntEnv("DIP_WAHLPERIODE", 21),
			StartDate:   getEnv("DIP_START_DATE", "2025-03-25"),
			MaxPages:    getIntEnv("DIP_MAX_PAGES", 20),
		},
		JWT: JWTConfig{
			Secret:   getEnv("JWT_SECRET", DevelopmentJWTSecret),
			Issuer:   getEnv("JWT_ISSUER", "ngo-inquiry-tracker"),
			Audience: getEnv("JWT_AUDIENCE", "ngo-inquiry-tracker-web"),
			AdminTTL: getDurationEnv("JWT_ADMIN_TTL", 12*time.Hour),
		},
		Admin: AdminConfig{
			Username:     getEnv("ADMIN_USERNAME", "admin"),
			PasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		},
		Email: EmailConfig{
			SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
			FromEmail:      getEnv("FROM_EMAIL", "newsletter@example.org"),
			FromName:       getEnv("FROM_NAME", "NGO-Anfragen Tracker"),
		},
		Site: SiteConfig{
			Name:    getEnv("SITE_NAME", "NGO-Anfragen Tracker"),
			BaseURL: strings.TrimRight(getEnv("SITE_BASE_URL", "http://localhost:8008"), "/"),
			Contact: getEnv("SITE_CONTACT", "kontakt@example.org"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Newsletter: NewsletterConfig{
			ConfirmTTL:      getDurationEnv("NEWSLETTER_CONFIRM_TTL", 48*time.Hour),
			SubscribeLimit:  getIntEnv("NEWSLETTER_SUBSCRIBE_LIMIT", 5),
			SubscribeWindow: getDurationEnv("NEWSLETTER_SUBSCRIBE_WINDOW", 10*time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values that would make the server misbehave at runtime.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Cache.Directory) == "" {
		errs = append(errs, errors.New("CACHE_DIR must not be empty"))
	}
	if c.Cache.DefaultTTLSeconds <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_DEFAULT_TTL_SECONDS must be > 0, got %d", c.Cache.DefaultTTLSeconds))
	}
	if c.Cache.CleanupInterval <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_CLEANUP_INTERVAL must be > 0, got %s", c.Cache.CleanupInterval))
	}
	if c.DIP.Wahlperiode <= 0 {
		errs = append(errs, fmt.Errorf("DIP_WAHLPERIODE must be > 0, got %d", c.DIP.Wahlperiode))
	}
	if _, err := time.Parse("2006-01-02", c.DIP.StartDate); err != nil {
		errs = append(errs, fmt.Errorf("DIP_START_DATE must be YYYY-MM-DD: %w", err))
	}
	if c.Newsletter.SubscribeLimit <= 0 {
		errs = append(errs, fmt.Errorf("NEWSLETTER_SUBSCRIBE_LIMIT must be > 0, got %d", c.Newsletter.SubscribeLimit))
	}
	if c.Server.Mode == "release" && (c.JWT.Secret == "" || c.JWT.Secret == DevelopmentJWTSecret) {
		errs = append(errs, errors.New("JWT_SECRET must be set in release mode"))
	} else if len(c.JWT.Secret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters"))
	}
	return errors.Join(errs...)
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getListEnv splits a comma-separated value, dropping blanks.
func getListEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnv accepts Go duration strings ("90s", "1h") or plain seconds.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
