package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Config defines server configuration.
type Config struct {
	Server    ServerConfig `yaml:"server"`
	Store     StoreConfig  `yaml:"store"`
	API       APIConfig    `yaml:"api"`
	Log       LogConfig    `yaml:"log"`
	Transport string       `yaml:"transport"`
	// Key is the base64 AES key reports are sealed with. It is only read from
	// the environment or the config file and never written anywhere.
	Key string `yaml:"key"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// Token, when set, is required as a bearer token on /mcp.
	Token string `yaml:"token"`
}

type StoreConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	RedisURL string `yaml:"redis_url"`
	Prefix   string `yaml:"prefix"`
}

type APIConfig struct {
	BaseURL       string        `yaml:"base_url"`
	ReferencePath string        `yaml:"reference_path"`
	ReportsPath   string        `yaml:"reports_path"`
	RetryMax      int           `yaml:"retry_max"`
	Timeout       time.Duration `yaml:"timeout"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Store: StoreConfig{
			Driver: StoreSQLite,
			Path:   "prodreport.db",
			Prefix: "prodreport:",
		},
		API: APIConfig{
			BaseURL:  "http://localhost:3000",
			RetryMax: 3,
			Timeout:  30 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
		Transport: "stdio",
	}

	if path := os.Getenv("PRODREPORT_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if host := os.Getenv("PRODREPORT_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("PRODREPORT_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PRODREPORT_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if token := os.Getenv("PRODREPORT_SERVER_TOKEN"); token != "" {
		cfg.Server.Token = token
	}
	if driver := os.Getenv("PRODREPORT_STORE_DRIVER"); driver != "" {
		cfg.Store.Driver = driver
	}
	if path := os.Getenv("PRODREPORT_STORE_PATH"); path != "" {
		cfg.Store.Path = path
	}
	if url := os.Getenv("PRODREPORT_REDIS_URL"); url != "" {
		cfg.Store.RedisURL = url
	}
	if base := os.Getenv("PRODREPORT_API_BASE_URL"); base != "" {
		cfg.API.BaseURL = base
	}
	if retryStr := os.Getenv("PRODREPORT_API_RETRY_MAX"); retryStr != "" {
		retry, err := strconv.Atoi(retryStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PRODREPORT_API_RETRY_MAX: %w", err)
		}
		cfg.API.RetryMax = retry
	}
	if level := os.Getenv("PRODREPORT_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if path := os.Getenv("PRODREPORT_LOG_PATH"); path != "" {
		cfg.Log.Path = path
	}
	if mode := os.Getenv("PRODREPORT_TRANSPORT_MODE"); mode != "" {
		cfg.Transport = mode
	}
	if key := os.Getenv("PRODREPORT_KEY"); key != "" {
		cfg.Key = key
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the enumerated settings.
func (c Config) Validate() error {
	switch strings.ToLower(c.Store.Driver) {
	case StoreMemory, StoreSQLite:
	case StoreRedis:
		if c.Store.RedisURL == "" {
			return fmt.Errorf("store driver redis requires a redis url")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch strings.ToLower(c.Transport) {
	case "stdio", "http":
	default:
		return fmt.Errorf("unknown transport mode %q", c.Transport)
	}
	if c.API.RetryMax < 0 {
		return fmt.Errorf("api retry_max must not be negative")
	}
	return nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
