// Package server provides configuration loading with file and environment
// overrides, defaults, and a sanitize pass that clamps invalid values.
package server

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// RateLimitConfig defines the fixed-window limits applied to posting.
type RateLimitConfig struct {
	Max           int           `mapstructure:"max"`
	Window        time.Duration `mapstructure:"window"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// RegisterGateConfig throttles registration attempts per client IP.
type RegisterGateConfig struct {
	PerMinute int `mapstructure:"per_minute"`
	Burst     int `mapstructure:"burst"`
}

// StoreSettings selects the persistence driver and its location.
type StoreSettings struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

// Config holds all server settings.
type Config struct {
	Addr            string             `mapstructure:"addr"`
	Env             string             `mapstructure:"env"`
	AllowedOrigins  []string           `mapstructure:"allowed_origins"`
	Store           StoreSettings      `mapstructure:"store"`
	HistoryCap      int                `mapstructure:"history_cap"`
	SnapshotSize    int                `mapstructure:"snapshot_size"`
	MaxTextLen      int                `mapstructure:"max_text_len"`
	MaxUsernameLen  int                `mapstructure:"max_username_len"`
	RateLimit       RateLimitConfig    `mapstructure:"rate_limit"`
	Heartbeat       time.Duration      `mapstructure:"heartbeat"`
	RegisterGate    RegisterGateConfig `mapstructure:"register_gate"`
	ShutdownTimeout time.Duration      `mapstructure:"shutdown_timeout"`
}

// DefaultConfig returns the built-in settings used when no config file or
// environment overrides are present.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		Env:            "production",
		AllowedOrigins: []string{"*"},
		Store: StoreSettings{
			Driver: "file",
			Path:   "data/chat.json",
		},
		HistoryCap:     200,
		SnapshotSize:   50,
		MaxTextLen:     500,
		MaxUsernameLen: 24,
		RateLimit: RateLimitConfig{
			Max:           3,
			Window:        5 * time.Second,
			SweepInterval: time.Minute,
		},
		Heartbeat: 20 * time.Second,
		RegisterGate: RegisterGateConfig{
			PerMinute: 10,
			Burst:     5,
		},
		ShutdownTimeout: 10 * time.Second,
	}
}

// LoadConfig reads settings from an optional YAML file and CHAT_* environment
// variables layered over the defaults. An empty path looks for config.yaml in
// the working directory and silently falls back to defaults when absent.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix("CHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return sanitizeConfig(cfg), nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("addr", d.Addr)
	v.SetDefault("env", d.Env)
	v.SetDefault("allowed_origins", d.AllowedOrigins)
	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("history_cap", d.HistoryCap)
	v.SetDefault("snapshot_size", d.SnapshotSize)
	v.SetDefault("max_text_len", d.MaxTextLen)
	v.SetDefault("max_username_len", d.MaxUsernameLen)
	v.SetDefault("rate_limit.max", d.RateLimit.Max)
	v.SetDefault("rate_limit.window", d.RateLimit.Window)
	v.SetDefault("rate_limit.sweep_interval", d.RateLimit.SweepInterval)
	v.SetDefault("heartbeat", d.Heartbeat)
	v.SetDefault("register_gate.per_minute", d.RegisterGate.PerMinute)
	v.SetDefault("register_gate.burst", d.RegisterGate.Burst)
	v.SetDefault("shutdown_timeout", d.ShutdownTimeout)
}

// sanitizeConfig clamps values a bad file or environment could break.
func sanitizeConfig(cfg Config) Config {
	d := DefaultConfig()

	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = d.Addr
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = d.AllowedOrigins
	}
	if cfg.HistoryCap <= 0 {
		cfg.HistoryCap = d.HistoryCap
	}
	if cfg.SnapshotSize <= 0 {
		cfg.SnapshotSize = d.SnapshotSize
	}
	if cfg.SnapshotSize > cfg.HistoryCap {
		cfg.SnapshotSize = cfg.HistoryCap
	}
	if cfg.MaxTextLen <= 0 {
		cfg.MaxTextLen = d.MaxTextLen
	}
	if cfg.MaxUsernameLen <= 0 {
		cfg.MaxUsernameLen = d.MaxUsernameLen
	}
	if cfg.RateLimit.Max <= 0 {
		cfg.RateLimit.Max = d.RateLimit.Max
	}
	if cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = d.RateLimit.Window
	}
	if cfg.RateLimit.SweepInterval <= 0 {
		cfg.RateLimit.SweepInterval = d.RateLimit.SweepInterval
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = d.Heartbeat
	}
	if cfg.RegisterGate.PerMinute <= 0 {
		cfg.RegisterGate.PerMinute = d.RegisterGate.PerMinute
	}
	if cfg.RegisterGate.Burst <= 0 {
		cfg.RegisterGate.Burst = d.RegisterGate.Burst
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = d.ShutdownTimeout
	}
	return cfg
}
