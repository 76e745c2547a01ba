package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// IndexConfig holds configuration for the index command.
type IndexConfig struct {
	RPCURL        string
	FromBlock     uint64
	ToBlock       uint64
	Confirmations uint64
	Addresses     []string
	Topic0        []string
	BatchSize     uint64
	Out           string
	Checkpoint    string
	MaxRetries    int
	RetryBackoff  time.Duration
	LogLevel      string
}

// LoadIndex merges config file, environment variables, and flags into IndexConfig.
func LoadIndex(cfgFile string, flags *pflag.FlagSet) (IndexConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("batch-size", uint64(2000))
		v.SetDefault("out", "./data/logs.jsonl")
		v.SetDefault("checkpoint", "./data/checkpoint.json")
		v.SetDefault("max-retries", 5)
		v.SetDefault("retry-backoff", 500*time.Millisecond)
	})
	if err != nil {
		return IndexConfig{}, err
	}

	cfg := IndexConfig{
		RPCURL:        v.GetString("rpc"),
		FromBlock:     v.GetUint64("from"),
		ToBlock:       v.GetUint64("to"),
		Confirmations: v.GetUint64("confirmations"),
		Addresses:     getStringSlice(v, "address"),
		Topic0:        getStringSlice(v, "topic0"),
		BatchSize:     v.GetUint64("batch-size"),
		Out:           v.GetString("out"),
		Checkpoint:    v.GetString("checkpoint"),
		MaxRetries:    v.GetInt("max-retries"),
		RetryBackoff:  v.GetDuration("retry-backoff"),
		LogLevel:      v.GetString("log-level"),
	}
	if cfg.ToBlock != 0 && cfg.ToBlock < cfg.FromBlock {
		return IndexConfig{}, fmt.Errorf("to block %d below from block %d", cfg.ToBlock, cfg.FromBlock)
	}
	return cfg, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	switch typed := v.Get(key).(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return cleanStrings(strings.Split(typed, ","))
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
