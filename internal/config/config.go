package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"dynamicFee/internal/fee"
	"dynamicFee/internal/fixedpoint"
)

const envPrefix = "FEEHOOK"

// maxTokenDecimals is the largest decimals value a token scaling can absorb.
const maxTokenDecimals = 36

// EngineConfig holds the fee engine settings shared by every command.
// Fee and threshold values are decimal fractions ("0.01" == 1%).
type EngineConfig struct {
	MinFee              string
	MaxFee              string
	VolatilityThreshold string
	Owner               string
	HalfLife            time.Duration
	Alpha               string
}

// FeeConfig parses the engine settings; the caller attaches a notifier.
func (c EngineConfig) FeeConfig() (fee.Config, error) {
	minFee, err := fixedpoint.Parse(c.MinFee)
	if err != nil {
		return fee.Config{}, fmt.Errorf("min-fee: %w", err)
	}
	maxFee, err := fixedpoint.Parse(c.MaxFee)
	if err != nil {
		return fee.Config{}, fmt.Errorf("max-fee: %w", err)
	}
	threshold, err := fixedpoint.Parse(c.VolatilityThreshold)
	if err != nil {
		return fee.Config{}, fmt.Errorf("volatility-threshold: %w", err)
	}
	owner, err := ParseAddress(c.Owner)
	if err != nil {
		return fee.Config{}, fmt.Errorf("owner: %w", err)
	}
	alpha, err := fixedpoint.Parse(c.Alpha)
	if err != nil {
		return fee.Config{}, fmt.Errorf("alpha: %w", err)
	}

	params := fee.GlobalParameters{
		MinFee:              minFee,
		MaxFee:              maxFee,
		VolatilityThreshold: threshold,
		Owner:               owner,
	}
	if err := params.Validate(); err != nil {
		return fee.Config{}, err
	}
	return fee.Config{Params: params, HalfLife: c.HalfLife, Alpha: alpha}, nil
}

func setEngineDefaults(v *viper.Viper) {
	v.SetDefault("min-fee", "0.01")
	v.SetDefault("max-fee", "0.05")
	v.SetDefault("volatility-threshold", "1")
	v.SetDefault("owner", common.Address{}.Hex())
	v.SetDefault("half-life", fee.DefaultHalfLife)
	v.SetDefault("alpha", fee.DefaultAlpha)
	v.SetDefault("log-level", "info")
}

func engineConfig(v *viper.Viper) EngineConfig {
	return EngineConfig{
		MinFee:              v.GetString("min-fee"),
		MaxFee:              v.GetString("max-fee"),
		VolatilityThreshold: v.GetString("volatility-threshold"),
		Owner:               v.GetString("owner"),
		HalfLife:            v.GetDuration("half-life"),
		Alpha:               v.GetString("alpha"),
	}
}

// newViper merges config file, environment variables, and flags.
func newViper(cfgFile string, flags *pflag.FlagSet, defaults func(*viper.Viper)) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	setEngineDefaults(v)
	if defaults != nil {
		defaults(v)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

// ParseAddress parses a hex address.
func ParseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address: %q", input)
	}
	return common.HexToAddress(input), nil
}

// ParseTimestamp parses a timestamp value (unix seconds or RFC3339).
func ParseTimestamp(input string) (uint64, error) {
	if strings.TrimSpace(input) == "" {
		return 0, nil
	}

	if isNumeric(input) {
		val, err := strconv.ParseUint(input, 10, 64)
		if err != nil {
			return 0, err
		}
		return val, nil
	}

	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, err
	}
	return uint64(tm.Unix()), nil
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}
