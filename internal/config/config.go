package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DBConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
}

type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type FeedConfig struct {
	DedupMaxKeys    int `yaml:"dedup_max_keys"`
	DedupTTLSeconds int `yaml:"dedup_ttl_seconds"`
}

type AuthConfig struct {
	JWTSigningKey string `yaml:"jwt_signing_key"`
}

type EventLogConfig struct {
	RetentionDays int `yaml:"retention_days"`
}

// SiteConfig mirrors the physical install: camera inventory and the NAS
// target. The watcher re-reads this section on file change and patches the
// coordinator's system status.
type SiteConfig struct {
	NAS     NASTarget      `yaml:"nas"`
	Cameras []CameraTarget `yaml:"cameras"`
}

type NASTarget struct {
	Host string `yaml:"host"`
}

type CameraTarget struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	RTSPURL string `yaml:"rtsp_url"`
	Zone    string `yaml:"zone"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	DB       DBConfig       `yaml:"db"`
	Redis    RedisConfig    `yaml:"redis"`
	NATS     NATSConfig     `yaml:"nats"`
	Feed     FeedConfig     `yaml:"feed"`
	Auth     AuthConfig     `yaml:"auth"`
	EventLog EventLogConfig `yaml:"event_log"`
	Site     SiteConfig     `yaml:"site"`
}

// Load reads the YAML file and applies env overrides. Env wins so deploys can
// keep secrets out of the file.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		c.DB.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		c.DB.Port = v
	}
	if v := os.Getenv("DB_USER"); v != "" {
		c.DB.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.DB.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		c.DB.Name = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	if v := os.Getenv("JWT_SIGNING_KEY"); v != "" {
		c.Auth.JWTSigningKey = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.DB.Host == "" {
		c.DB.Host = "localhost"
	}
	if c.DB.Port == "" {
		c.DB.Port = "5432"
	}
	if c.DB.SSLMode == "" {
		c.DB.SSLMode = "disable"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.NATS.Subject == "" {
		c.NATS.Subject = "kindyguard.detections"
	}
	if c.Feed.DedupTTLSeconds == 0 {
		c.Feed.DedupTTLSeconds = 10
	}
	if c.EventLog.RetentionDays == 0 {
		c.EventLog.RetentionDays = 90
	}
	if c.Auth.JWTSigningKey == "" {
		c.Auth.JWTSigningKey = "dev-secret-do-not-use-in-prod"
	}
}

// DSN builds the Postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name, c.DB.SSLMode)
}

func (c *Config) DedupTTL() time.Duration {
	return time.Duration(c.Feed.DedupTTLSeconds) * time.Second
}
