package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Uuq114/JanusBedrock/internal/balancer"
	"github.com/Uuq114/JanusBedrock/internal/bedrock"
	"github.com/Uuq114/JanusBedrock/internal/models"
)

const (
	DefaultConfigPath = "config/config.yaml"
	DefaultRegion     = "us-east-1"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Provider ProviderConfig `yaml:"provider"`
	Catalog  models.Catalog `yaml:"catalog"`
	Database DatabaseConfig `yaml:"database"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Addr            string          `yaml:"addr"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
	// TrustedProxies may set X-Forwarded-For. Empty trusts none.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// RateLimitConfig guards /chat per client IP. Zero disables it.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
	// IdleTTL evicts buckets of clients not seen for this long.
	IdleTTL time.Duration `yaml:"idle_ttl"`
}

type ProviderConfig struct {
	// ModelID overrides the Bedrock id of the current catalog model.
	ModelID          string            `yaml:"model_id"`
	SystemPrompt     string            `yaml:"system_prompt"`
	AnthropicVersion string            `yaml:"anthropic_version"`
	Strategy         string            `yaml:"strategy"`
	Endpoints        []models.Endpoint `yaml:"endpoints"`
}

// DatabaseConfig enables the usage ledger when DSN is set.
type DatabaseConfig struct {
	DSN           string        `yaml:"dsn"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	QueueSize     int           `yaml:"queue_size"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
			RateLimit: RateLimitConfig{
				IdleTTL: 10 * time.Minute,
			},
		},
		Provider: ProviderConfig{
			SystemPrompt:     bedrock.DefaultSystemPrompt,
			AnthropicVersion: bedrock.DefaultAnthropicVersion,
			Strategy:         balancer.StrategyRoundRobin,
		},
		Catalog: models.DefaultCatalog(),
		Database: DatabaseConfig{
			BatchSize:     50,
			FlushInterval: 5 * time.Second,
			QueueSize:     1024,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the yaml file at path over the defaults, then applies
// environment overrides, including those from a .env file in the working
// directory. A missing file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	file, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Addr = ":" + v
	}
	if v := os.Getenv("BEDROCK_MODEL_ID"); v != "" {
		c.Provider.ModelID = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("RATE_LIMIT_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_PER_MINUTE: %w", err)
		}
		c.Server.RateLimit.RequestsPerMinute = n
	}

	region := getEnv("AWS_REGION", os.Getenv("AWS_DEFAULT_REGION"))
	switch {
	case len(c.Provider.Endpoints) == 0:
		if region == "" {
			region = DefaultRegion
		}
		c.Provider.Endpoints = []models.Endpoint{{Region: region}}
	case len(c.Provider.Endpoints) == 1 && region != "":
		// a single endpoint follows the deployment's region; multi-region
		// setups keep the regions they list
		c.Provider.Endpoints[0].Region = region
	}
	return nil
}

func (c *Config) normalize() {
	for i := range c.Provider.Endpoints {
		ep := &c.Provider.Endpoints[i]
		if ep.Name == "" {
			ep.Name = ep.Region
		}
		if ep.Weight == 0 {
			ep.Weight = 1
		}
	}
	if c.Provider.ModelID == "" {
		if m := c.Catalog.CurrentModel(); m != nil {
			c.Provider.ModelID = m.ID
		}
	}
	if c.Server.RateLimit.RequestsPerMinute > 0 && c.Server.RateLimit.Burst <= 0 {
		c.Server.RateLimit.Burst = c.Server.RateLimit.RequestsPerMinute
	}
}

func (c *Config) Validate() error {
	if _, err := balancer.New(c.Provider.Strategy); err != nil {
		return fmt.Errorf("provider: %w", err)
	}
	if len(c.Provider.Endpoints) == 0 {
		return errors.New("provider: at least one endpoint is required")
	}
	seen := make(map[string]bool, len(c.Provider.Endpoints))
	for _, ep := range c.Provider.Endpoints {
		if ep.Region == "" {
			return fmt.Errorf("provider: endpoint %q has no region", ep.Name)
		}
		if ep.Weight < 0 {
			return fmt.Errorf("provider: endpoint %q has negative weight", ep.Name)
		}
		if seen[ep.Name] {
			return fmt.Errorf("provider: duplicate endpoint %q", ep.Name)
		}
		seen[ep.Name] = true
	}
	for _, proxy := range c.Server.TrustedProxies {
		if net.ParseIP(proxy) == nil {
			if _, _, err := net.ParseCIDR(proxy); err != nil {
				return fmt.Errorf("server: invalid trusted proxy %q", proxy)
			}
		}
	}
	if c.Catalog.CurrentModel() == nil {
		return fmt.Errorf("catalog: current model %q is not listed", c.Catalog.Current)
	}
	if c.Provider.ModelID == "" {
		return errors.New("provider: model_id is required")
	}
	if c.Database.DSN != "" {
		if c.Database.BatchSize <= 0 {
			return errors.New("database: batch_size must be positive")
		}
		if c.Database.FlushInterval <= 0 {
			return errors.New("database: flush_interval must be positive")
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
