package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr          string
	Env           string
	TokenSecret   string
	AccessTTL     time.Duration
	CORSOrigin    string
	DatabaseURL   string
	MigrationsDir string
	RedisURL      string
	OutboxSize    int
	// SMTP Configuration
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
	AppURL       string
}

// Load reads configuration from the environment. DATABASE_URL and REDIS_URL
// default to empty, which selects the in-memory backends.
func Load() Config {
	return Config{
		Addr:          getenv("API_ADDR", ":8787"),
		Env:           getenv("TASKTRACK_ENV", "development"),
		TokenSecret:   getenv("TASKTRACK_TOKEN_SECRET", "tasktrack-dev-secret"),
		AccessTTL:     time.Duration(getenvInt("TASKTRACK_ACCESS_TTL_SECONDS", 86400)) * time.Second,
		CORSOrigin:    getenv("TASKTRACK_CORS_ORIGIN", "*"),
		DatabaseURL:   getenv("DATABASE_URL", ""),
		MigrationsDir: getenv("TASKTRACK_MIGRATIONS_DIR", "./db/migrations"),
		RedisURL:      getenv("REDIS_URL", ""),
		OutboxSize:    getenvInt("TASKTRACK_OUTBOX_SIZE", 256),
		// SMTP - empty by default, email disabled if not configured
		SMTPHost:     getenv("SMTP_HOST", ""),
		SMTPPort:     getenv("SMTP_PORT", "587"),
		SMTPUsername: getenv("SMTP_USERNAME", ""),
		SMTPPassword: getenv("SMTP_PASSWORD", ""),
		SMTPFrom:     getenv("SMTP_FROM", ""),
		SMTPFromName: getenv("SMTP_FROM_NAME", "TaskTrack"),
		AppURL:       getenv("TASKTRACK_APP_URL", ""),
	}
}

// fileConfig mirrors Config for YAML files. Pointer fields distinguish
// "not in the file" from an explicit empty value.
type fileConfig struct {
	Addr             *string `yaml:"addr"`
	Env              *string `yaml:"env"`
	TokenSecret      *string `yaml:"token_secret"`
	AccessTTLSeconds *int    `yaml:"access_ttl_seconds"`
	CORSOrigin       *string `yaml:"cors_origin"`
	DatabaseURL      *string `yaml:"database_url"`
	MigrationsDir    *string `yaml:"migrations_dir"`
	RedisURL         *string `yaml:"redis_url"`
	OutboxSize       *int    `yaml:"outbox_size"`
	AppURL           *string `yaml:"app_url"`
	SMTP             *struct {
		Host     *string `yaml:"host"`
		Port     *string `yaml:"port"`
		Username *string `yaml:"username"`
		Password *string `yaml:"password"`
		From     *string `yaml:"from"`
		FromName *string `yaml:"from_name"`
	} `yaml:"smtp"`
}

// LoadFile overlays the YAML file at path onto base. Keys missing from the
// file keep their value from base.
func LoadFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return base, fmt.Errorf("parse config file %s: %w", path, err)
	}

	cfg := base
	setString(&cfg.Addr, fc.Addr)
	setString(&cfg.Env, fc.Env)
	setString(&cfg.TokenSecret, fc.TokenSecret)
	if fc.AccessTTLSeconds != nil {
		cfg.AccessTTL = time.Duration(*fc.AccessTTLSeconds) * time.Second
	}
	setString(&cfg.CORSOrigin, fc.CORSOrigin)
	setString(&cfg.DatabaseURL, fc.DatabaseURL)
	setString(&cfg.MigrationsDir, fc.MigrationsDir)
	setString(&cfg.RedisURL, fc.RedisURL)
	if fc.OutboxSize != nil {
		cfg.OutboxSize = *fc.OutboxSize
	}
	setString(&cfg.AppURL, fc.AppURL)
	if fc.SMTP != nil {
		setString(&cfg.SMTPHost, fc.SMTP.Host)
		setString(&cfg.SMTPPort, fc.SMTP.Port)
		setString(&cfg.SMTPUsername, fc.SMTP.Username)
		setString(&cfg.SMTPPassword, fc.SMTP.Password)
		setString(&cfg.SMTPFrom, fc.SMTP.From)
		setString(&cfg.SMTPFromName, fc.SMTP.FromName)
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if c.TokenSecret == "" {
		return fmt.Errorf("token secret is required")
	}
	if c.AccessTTL <= 0 {
		return fmt.Errorf("access ttl must be positive, got %s", c.AccessTTL)
	}
	if c.Env == "production" && c.TokenSecret == "tasktrack-dev-secret" {
		return fmt.Errorf("TASKTRACK_TOKEN_SECRET must be set in production")
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
