package config

import (
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultMaxLocalAccounts = 10
	DefaultOnboardTimeout   = 15
	DefaultPaymentTimeout   = 300
)

// Engine is the configuration for one engine instance.
type Engine struct {
	Environment string `toml:"environment"`
	AppID       string `toml:"app_id"`

	DbPath   string `toml:"db_path"`
	InMemory bool   `toml:"in_memory"`

	// MaxLocalAccounts caps how many accounts each versioned store may hold.
	MaxLocalAccounts int `toml:"max_local_accounts"`

	// OnboardTimeoutSecs bounds the wait for on-chain account creation.
	OnboardTimeoutSecs int `toml:"onboard_timeout_secs"`

	// PaymentTimeoutSecs is the default payment wait deadline.
	PaymentTimeoutSecs int `toml:"payment_timeout_secs"`
}

// Load reads an Engine config from a TOML file and applies defaults.
func Load(path string) (Engine, error) {
	var cfg Engine
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Engine{}, err
	}

	cfg.ApplyDefaults()

	return cfg, nil
}

func (c *Engine) ApplyDefaults() {
	if c.MaxLocalAccounts <= 0 {
		c.MaxLocalAccounts = DefaultMaxLocalAccounts
	}
	if c.OnboardTimeoutSecs <= 0 {
		c.OnboardTimeoutSecs = DefaultOnboardTimeout
	}
	if c.PaymentTimeoutSecs <= 0 {
		c.PaymentTimeoutSecs = DefaultPaymentTimeout
	}
}

func (c *Engine) OnboardTimeout() time.Duration {
	return time.Duration(c.OnboardTimeoutSecs) * time.Second
}

func (c *Engine) PaymentTimeout() time.Duration {
	return time.Duration(c.PaymentTimeoutSecs) * time.Second
}
