package config

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// SimulateConfig holds configuration for the simulate command.
type SimulateConfig struct {
	Engine EngineConfig
	Start  string
	// Retune* apply new bounds after the named phase; empty RetuneAfter disables it.
	RetuneAfter     string
	RetuneMinFee    string
	RetuneMaxFee    string
	RetuneThreshold string
	RetuneCaller    string
	MetricsAddr     string
	LogLevel        string
}

// LoadSimulate merges config file, environment variables, and flags into SimulateConfig.
func LoadSimulate(cfgFile string, flags *pflag.FlagSet) (SimulateConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("start", "1700000000")
		v.SetDefault("retune-min-fee", "0.005")
		v.SetDefault("retune-max-fee", "0.1")
		v.SetDefault("retune-threshold", "1")
	})
	if err != nil {
		return SimulateConfig{}, err
	}

	cfg := SimulateConfig{
		Engine:          engineConfig(v),
		Start:           v.GetString("start"),
		RetuneAfter:     v.GetString("retune-after"),
		RetuneMinFee:    v.GetString("retune-min-fee"),
		RetuneMaxFee:    v.GetString("retune-max-fee"),
		RetuneThreshold: v.GetString("retune-threshold"),
		RetuneCaller:    v.GetString("retune-caller"),
		MetricsAddr:     v.GetString("metrics-addr"),
		LogLevel:        v.GetString("log-level"),
	}
	if cfg.RetuneCaller == "" {
		cfg.RetuneCaller = cfg.Engine.Owner
	}

	return cfg, nil
}
