package config

import (
	"github.com/caarlos0/env/v11"
)

// FromEnv overlays environment variables onto cfg and re-applies defaults.
// Unset variables leave the existing values alone.
func FromEnv(cfg *Config) (*Config, error) {
	if cfg == nil {
		cfg = Default()
	}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
