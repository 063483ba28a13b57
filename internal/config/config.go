// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type HTTPConfig struct {
	Port      int    `yaml:"port"`
	PublicURL string `yaml:"public_url"` // base URL providers redirect back to
}

type AdminConfig struct {
	Port          int           `yaml:"port"`
	APIKey        string        `yaml:"api_key"`
	SessionSecret string        `yaml:"session_secret"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
}

type PayPalConfig struct {
	ClientID string `yaml:"client_id"`
	Secret   string `yaml:"secret"`
	Sandbox  bool   `yaml:"sandbox"`
}

type CryptomusConfig struct {
	MerchantID string `yaml:"merchant_id"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
}

type PaymentConfig struct {
	PayPal    PayPalConfig    `yaml:"paypal"`
	Cryptomus CryptomusConfig `yaml:"cryptomus"`
	// Timeout bounds every outbound provider call.
	Timeout time.Duration `yaml:"timeout"`
}

type SweepConfig struct {
	Interval            time.Duration `yaml:"interval"`           // expiry sweep cadence
	ReconcileInterval   time.Duration `yaml:"reconcile_interval"` // pending-purchase reconcile cadence
	ReconcileStaleAfter time.Duration `yaml:"reconcile_stale_after"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	HTTP     HTTPConfig     `yaml:"http"`
	Admin    AdminConfig    `yaml:"admin"`
	Payment  PaymentConfig  `yaml:"payment"`
	Sweep    SweepConfig    `yaml:"sweep"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Runtime.Dev = dev
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.Admin.Port == 0 {
		c.Admin.Port = 8081
	}
	if c.Admin.SessionTTL == 0 {
		c.Admin.SessionTTL = 30 * time.Minute
	}
	if c.Payment.Timeout == 0 {
		c.Payment.Timeout = 15 * time.Second
	}
	if c.Payment.Cryptomus.BaseURL == "" {
		c.Payment.Cryptomus.BaseURL = "https://api.cryptomus.com"
	}
	if c.Sweep.Interval == 0 {
		c.Sweep.Interval = time.Hour
	}
	if c.Sweep.ReconcileInterval == 0 {
		c.Sweep.ReconcileInterval = time.Minute
	}
	if c.Sweep.ReconcileStaleAfter == 0 {
		c.Sweep.ReconcileStaleAfter = 10 * time.Minute
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = time.Hour
	}
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return errors.New("config: database.url is required")
	}
	if c.HTTP.PublicURL == "" {
		return errors.New("config: http.public_url is required")
	}
	if !c.Runtime.Dev {
		if c.Payment.PayPal.ClientID == "" && c.Payment.Cryptomus.MerchantID == "" {
			return errors.New("config: at least one payment provider must be configured")
		}
	}
	return nil
}
