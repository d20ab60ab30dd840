package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Fallback gateway pair used when the configured values are absent or
// malformed. The substitution is logged, never silent.
const (
	DefaultGatewayURL     = "http://127.0.0.1:8000"
	DefaultGatewayAnonKey = "kaienv-local-anon-key"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	JWT      JWTConfig      `yaml:"jwt"`
	Security SecurityConfig `yaml:"security"`
	Session  SessionConfig  `yaml:"session"`
	Auth     AuthConfig     `yaml:"auth"`
	Backup   BackupConfig   `yaml:"backup"`
}

type BackupConfig struct {
	Dir           string `yaml:"dir"`
	RetentionDays int    `yaml:"retention_days"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Mode string `yaml:"mode"`
}

type DatabaseConfig struct {
	Type   string       `yaml:"type"`
	SQLite SQLiteConfig `yaml:"sqlite"`
	MySQL  MySQLConfig  `yaml:"mysql"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Charset  string `yaml:"charset"`
}

// GatewayConfig identifies the backend the dashboard talks to. The URL
// doubles as the token issuer and as the origin key for the credential
// cache, the way a browser scopes localStorage to an origin.
type GatewayConfig struct {
	URL     string `yaml:"url"`
	AnonKey string `yaml:"anon_key"`
}

type JWTConfig struct {
	Secret    string `yaml:"secret"`
	ExpiresIn string `yaml:"expires_in"`
	Issuer    string `yaml:"issuer"`
}

type SecurityConfig struct {
	BcryptCost int `yaml:"bcrypt_cost"`
}

type SessionConfig struct {
	RefreshInterval string `yaml:"refresh_interval"`
	CacheDir        string `yaml:"cache_dir"`
}

type AuthConfig struct {
	FallbackEnabled bool             `yaml:"fallback_enabled"`
	FallbackAdmin   CredentialConfig `yaml:"fallback_admin"`
	FallbackUser    CredentialConfig `yaml:"fallback_user"`
	DefaultAdmin    CredentialConfig `yaml:"default_admin"`
}

type CredentialConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

var Global *Config

// Load reads the configuration file and environment variables
func Load(configPath string, log *zap.Logger) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override with environment variables
	if jwtSecret := os.Getenv("KAIENV_JWT_SECRET"); jwtSecret != "" {
		cfg.JWT.Secret = jwtSecret
	}

	if dbType := os.Getenv("KAIENV_DB_TYPE"); dbType != "" {
		cfg.Database.Type = dbType
	}

	if dbPath := os.Getenv("KAIENV_DB_PATH"); dbPath != "" {
		cfg.Database.SQLite.Path = dbPath
	}

	if mysqlHost := os.Getenv("KAIENV_MYSQL_HOST"); mysqlHost != "" {
		cfg.Database.MySQL.Host = mysqlHost
	}

	if mysqlUser := os.Getenv("KAIENV_MYSQL_USER"); mysqlUser != "" {
		cfg.Database.MySQL.Username = mysqlUser
	}

	if mysqlPass := os.Getenv("KAIENV_MYSQL_PASSWORD"); mysqlPass != "" {
		cfg.Database.MySQL.Password = mysqlPass
	}

	if mysqlDB := os.Getenv("KAIENV_MYSQL_DATABASE"); mysqlDB != "" {
		cfg.Database.MySQL.Database = mysqlDB
	}

	if gwURL := os.Getenv("KAIENV_GATEWAY_URL"); gwURL != "" {
		cfg.Gateway.URL = gwURL
	}

	if gwKey := os.Getenv("KAIENV_GATEWAY_ANON_KEY"); gwKey != "" {
		cfg.Gateway.AnonKey = gwKey
	}

	// Substitute the known default gateway pair when the configured one
	// is missing or unusable, so the dashboard stays reachable.
	if !validGatewayURL(cfg.Gateway.URL) {
		log.Warn("gateway url missing or malformed, using default",
			zap.String("configured", cfg.Gateway.URL),
			zap.String("default", DefaultGatewayURL))
		cfg.Gateway.URL = DefaultGatewayURL
	}
	if cfg.Gateway.AnonKey == "" {
		log.Warn("gateway anon key missing, using default")
		cfg.Gateway.AnonKey = DefaultGatewayAnonKey
	}

	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = cfg.Gateway.URL
	}
	if cfg.JWT.ExpiresIn == "" {
		cfg.JWT.ExpiresIn = "24h"
	}
	if cfg.Security.BcryptCost == 0 {
		cfg.Security.BcryptCost = 12
	}
	if cfg.Session.RefreshInterval == "" {
		cfg.Session.RefreshInterval = "1m"
	}
	if cfg.Session.CacheDir == "" {
		cfg.Session.CacheDir = "data/cache"
	}
	if cfg.Backup.Dir == "" {
		cfg.Backup.Dir = "data/backups"
	}
	if cfg.Backup.RetentionDays == 0 {
		cfg.Backup.RetentionDays = 30
	}

	// Ensure data directory exists for SQLite
	if cfg.Database.Type == "sqlite" {
		dataDir := filepath.Dir(cfg.Database.SQLite.Path)
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	// Validate MySQL configuration if MySQL is selected
	if cfg.Database.Type == "mysql" {
		if cfg.Database.MySQL.Username == "" {
			return nil, fmt.Errorf("MySQL username is required")
		}
		if cfg.Database.MySQL.Database == "" {
			return nil, fmt.Errorf("MySQL database name is required")
		}
	}

	if err := os.MkdirAll(cfg.Session.CacheDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	Global = &cfg
	return &cfg, nil
}

func validGatewayURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
