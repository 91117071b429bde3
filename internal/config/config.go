// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/quantfisher/ashare-trader/internal/types"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config represents the full engine configuration.
type Config struct {
	InitCash float64    `yaml:"init_cash"`
	DataPath string     `yaml:"data_path"`
	DB       DBConfig   `yaml:"db"`
	Kind     types.Kind `yaml:"kind"`

	Fee     FeeConfig     `yaml:"fee"`
	Log     LogConfig     `yaml:"log"`
	Listen  ListenConfig  `yaml:"listen"`
	Metrics MetricsConfig `yaml:"metrics"`
	Push    PushConfig    `yaml:"push"`
	Plugins PluginsConfig `yaml:"strategy"`
}

// DBConfig points at the historical-bar store.
type DBConfig struct {
	Path string `yaml:"path"`
}

// FeeConfig holds fee rates applied to fills.
type FeeConfig struct {
	Broker   float64 `yaml:"broker"`
	Transfer float64 `yaml:"transfer"`
	Tax      float64 `yaml:"tax"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

// ListenConfig holds the spawn-listener settings.
type ListenConfig struct {
	Port int `yaml:"port"`
}

// MetricsConfig holds the prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// PushConfig holds notification sink settings.
type PushConfig struct {
	Email  *EmailConfig  `yaml:"email"`
	Wechat *WechatConfig `yaml:"wechat"`
}

// EmailConfig holds SMTP push settings.
type EmailConfig struct {
	SMTPHost string `yaml:"smtp_host"`
	SMTPPort int    `yaml:"smtp_port"`
	User     string `yaml:"user"`
	Token    string `yaml:"token"`
	Notify   string `yaml:"notify"`
}

// WechatConfig holds the wechat push token.
type WechatConfig struct {
	Token string `yaml:"token"`
}

// PluginsConfig names the enabled strategy/broker/risk implementations.
type PluginsConfig struct {
	Strategy []string `yaml:"strategy"`
	Broker   []string `yaml:"broker"`
	Risk     []string `yaml:"risk"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		InitCash: 0,
		Kind:     types.KindStock,
		Fee: FeeConfig{
			Broker:   0.00025,
			Transfer: 0.00002,
			Tax:      0.001,
		},
		Log:    LogConfig{Level: "info"},
		Listen: ListenConfig{Port: 9527},
		Metrics: MetricsConfig{
			Port: 9100,
			Path: "/metrics",
		},
	}
}

// Load loads configuration from a YAML file, expanding environment
// variables before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes loads configuration from YAML bytes.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// The trade-calendar oracle reads its file path from the environment.
	if cfg.DataPath != "" {
		os.Setenv("TRADER_TRADE_DATE", cfg.DataPath+"/trade_date.txt")
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.InitCash < 0 {
		errs = append(errs, "init_cash must not be negative")
	}
	if c.Kind != types.KindStock && c.Kind != types.KindFund {
		errs = append(errs, fmt.Sprintf("kind '%s' is not supported", c.Kind))
	}
	if c.Fee.Broker < 0 || c.Fee.Broker > 0.01 {
		errs = append(errs, "fee.broker must be between 0 and 0.01")
	}
	if c.Fee.Transfer < 0 || c.Fee.Transfer > 0.01 {
		errs = append(errs, "fee.transfer must be between 0 and 0.01")
	}
	if c.Fee.Tax < 0 || c.Fee.Tax > 0.1 {
		errs = append(errs, "fee.tax must be between 0 and 0.1")
	}
	if c.Listen.Port <= 0 || c.Listen.Port > 65535 {
		errs = append(errs, "listen.port must be a valid TCP port")
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level '%s' is not supported", c.Log.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", types.ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}

// InitCashDecimal returns the starting cash as decimal.
func (c *Config) InitCashDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.InitCash)
}

// BrokerFee returns the broker commission rate as decimal.
func (c *Config) BrokerFee() decimal.Decimal {
	return decimal.NewFromFloat(c.Fee.Broker)
}

// TransferFee returns the transfer fee rate as decimal.
func (c *Config) TransferFee() decimal.Decimal {
	return decimal.NewFromFloat(c.Fee.Transfer)
}

// TaxFee returns the stamp tax rate as decimal.
func (c *Config) TaxFee() decimal.Decimal {
	return decimal.NewFromFloat(c.Fee.Tax)
}
