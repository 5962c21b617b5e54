// Package models defines the data structures shared by the detector, the
// collaborators and the CLI.
package models

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is read when --config is not given. A missing default
// file is not an error.
const DefaultConfigPath = "secondlook.yaml"

// Config holds runtime configuration. Values come from the YAML file first,
// then CLI flags and environment variables override them.
type Config struct {
	Bank      BankConfig      `yaml:"bank"`
	AI        AIConfig        `yaml:"ai"`
	Cache     CacheConfig     `yaml:"cache"`
	Database  DatabaseConfig  `yaml:"database"`
	Detection DetectionConfig `yaml:"detection"`
	Server    ServerConfig    `yaml:"server"`
	Watch     WatchConfig     `yaml:"watch"`
}

// BankConfig points at the Nessie sandbox.
type BankConfig struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	AccountID  string        `yaml:"account_id"`
	MerchantID string        `yaml:"merchant_id"`
	Timeout    time.Duration `yaml:"timeout"`
}

// AIConfig points at the text-generation service.
type AIConfig struct {
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	Model             string        `yaml:"model"`
	MaxRetries        int           `yaml:"max_retries"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	Timeout           time.Duration `yaml:"timeout"`
}

type CacheConfig struct {
	Dir      string        `yaml:"dir"`
	Disabled bool          `yaml:"disabled"`
	BankTTL  time.Duration `yaml:"bank_ttl"`
	AITTL    time.Duration `yaml:"ai_ttl"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// DetectionConfig overrides the built-in detection rules. Empty lists keep
// the defaults.
type DetectionConfig struct {
	CheckoutURLKeywords     []string `yaml:"checkout_url_keywords"`
	CheckoutSelectors       []string `yaml:"checkout_selectors"`
	ConfirmationURLKeywords []string `yaml:"confirmation_url_keywords"`
	ConfirmationPhrases     []string `yaml:"confirmation_phrases"`
	CartContainers          []string `yaml:"cart_containers"`
	TotalSelectors          []string `yaml:"total_selectors"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// WatchConfig controls the live browser session.
type WatchConfig struct {
	Headless bool          `yaml:"headless"`
	Debounce time.Duration `yaml:"debounce"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LoadConfig reads path and applies defaults. When path is the default and
// the file does not exist, defaults alone are returned.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		path = DefaultConfigPath
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && path == DefaultConfigPath:
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills every unset field.
func (c *Config) ApplyDefaults() {
	if c.Bank.BaseURL == "" {
		c.Bank.BaseURL = "http://api.nessieisreal.com"
	}
	if c.Bank.MerchantID == "" {
		c.Bank.MerchantID = "57cf75cea73e494d8675ec49"
	}
	if c.Bank.Timeout == 0 {
		c.Bank.Timeout = 10 * time.Second
	}

	if c.AI.BaseURL == "" {
		c.AI.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if c.AI.Model == "" {
		c.AI.Model = "gemini-2.5-flash"
	}
	if c.AI.MaxRetries == 0 {
		c.AI.MaxRetries = 3
	}
	if c.AI.RequestsPerMinute == 0 {
		c.AI.RequestsPerMinute = 15
	}
	if c.AI.Timeout == 0 {
		c.AI.Timeout = 60 * time.Second
	}

	if c.Cache.Dir == "" {
		c.Cache.Dir = ".secondlook/cache"
	}
	if c.Cache.BankTTL == 0 {
		c.Cache.BankTTL = time.Minute
	}
	if c.Cache.AITTL == 0 {
		c.Cache.AITTL = 24 * time.Hour
	}

	if c.Database.Path == "" {
		c.Database.Path = ".secondlook/secondlook.db"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8787"
	}

	if c.Watch.Debounce == 0 {
		c.Watch.Debounce = 250 * time.Millisecond
	}
	if c.Watch.Timeout == 0 {
		c.Watch.Timeout = 30 * time.Minute
	}
}
