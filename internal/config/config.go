package config

import (
	"errors"
	"fmt"
	"os"

	"storebridge/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Upstream   UpstreamConfig   `yaml:"upstream"`
	Sink       SinkConfig       `yaml:"sink"`
	Sync       SyncConfig       `yaml:"sync"`
	Abandon    AbandonConfig    `yaml:"abandon"`
	Database   DatabaseConfig   `yaml:"database"`
	Backup     BackupConfig     `yaml:"backup"`
	Redis      RedisConfig      `yaml:"redis"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Exports    ExportConfig     `yaml:"exports"`
	Tenants    []models.Tenant  `yaml:"tenants"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type UpstreamConfig struct {
	BaseURL        string  `yaml:"base_url"`
	AccessToken    string  `yaml:"access_token"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
}

type SinkConfig struct {
	CustomersURL    string `yaml:"customers_url"`
	AbandonmentsURL string `yaml:"abandonments_url"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
}

type SyncConfig struct {
	PageSize       int `yaml:"page_size"`
	RunLockSeconds int `yaml:"run_lock_seconds"`
}

type AbandonConfig struct {
	ThresholdMinutes int `yaml:"threshold_minutes"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool   `yaml:"prometheus_enabled"`
	PrometheusPort    int    `yaml:"prometheus_port"`
	HealthCheckPort   int    `yaml:"health_check_port"`
	LogLevel          string `yaml:"log_level"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type AlertsConfig struct {
	TelegramEnabled bool   `yaml:"telegram_enabled"`
	BotToken        string `yaml:"bot_token"`
	ChatID          int64  `yaml:"chat_id"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; variables may come from the parent process instead.
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Environment variable substitution inside the YAML before parsing.
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Upstream.BaseURL == "" {
		return errors.New("upstream base_url is required")
	}

	if c.Sink.CustomersURL == "" {
		return errors.New("sink customers_url is required")
	}

	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	return ValidateTenants(c.Tenants)
}

func ValidateTenants(tenants []models.Tenant) error {
	// Check for duplicate tenant IDs
	seen := make(map[string]bool)
	for _, tenant := range tenants {
		if tenant.ID == "" {
			return fmt.Errorf("tenant '%s' has empty ID", tenant.Name)
		}
		if seen[tenant.ID] {
			return fmt.Errorf("duplicate tenant ID found: %s", tenant.ID)
		}
		seen[tenant.ID] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	// auth enabled by default when API is enabled
	if !c.API.Auth.Enabled {
		c.API.Auth.Enabled = true
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}

	// Pipeline defaults
	if c.Sync.PageSize == 0 {
		c.Sync.PageSize = models.DefaultPageSize
	}
	if c.Sync.RunLockSeconds == 0 {
		c.Sync.RunLockSeconds = models.DefaultRunLockTTL
	}
	if c.Abandon.ThresholdMinutes == 0 {
		c.Abandon.ThresholdMinutes = models.DefaultThresholdMinutes
	}
	if c.Upstream.TimeoutSeconds == 0 {
		c.Upstream.TimeoutSeconds = 30
	}
	if c.Upstream.RateLimitBurst == 0 {
		c.Upstream.RateLimitBurst = 4
	}
	if c.Sink.TimeoutSeconds == 0 {
		c.Sink.TimeoutSeconds = 30
	}
	if c.Sink.AbandonmentsURL == "" {
		c.Sink.AbandonmentsURL = c.Sink.CustomersURL
	}
}
