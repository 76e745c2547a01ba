package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ReplayConfig holds configuration for the replay command.
type ReplayConfig struct {
	Engine          EngineConfig
	RPCURL          string
	Input           string
	Out             string
	PGDSN           string
	StateFile       string
	StateName       string
	RecomputeFrom   string
	Workers         int
	DefaultDecimals uint8
	BatchSize       int
	MaxRetries      int
	RetryBackoff    time.Duration
	MetricsAddr     string
	LogLevel        string
}

// LoadReplay merges config file, environment variables, and flags into ReplayConfig.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("out", "./data/fee_changes.jsonl")
		v.SetDefault("state-name", "fee_engine")
		v.SetDefault("workers", 4)
		v.SetDefault("default-decimals", 18)
		v.SetDefault("batch-size", 200)
		v.SetDefault("max-retries", 3)
		v.SetDefault("retry-backoff", 200*time.Millisecond)
	})
	if err != nil {
		return ReplayConfig{}, err
	}

	decimals := v.GetUint("default-decimals")
	if decimals > maxTokenDecimals {
		return ReplayConfig{}, fmt.Errorf("default-decimals %d above %d", decimals, maxTokenDecimals)
	}

	cfg := ReplayConfig{
		Engine:          engineConfig(v),
		RPCURL:          v.GetString("rpc"),
		Input:           v.GetString("in"),
		Out:             v.GetString("out"),
		PGDSN:           v.GetString("pg-dsn"),
		StateFile:       v.GetString("state-file"),
		StateName:       v.GetString("state-name"),
		RecomputeFrom:   v.GetString("recompute-from"),
		Workers:         v.GetInt("workers"),
		DefaultDecimals: uint8(decimals),
		BatchSize:       v.GetInt("batch-size"),
		MaxRetries:      v.GetInt("max-retries"),
		RetryBackoff:    v.GetDuration("retry-backoff"),
		MetricsAddr:     v.GetString("metrics-addr"),
		LogLevel:        v.GetString("log-level"),
	}

	return cfg, nil
}
