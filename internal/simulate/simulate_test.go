package simulate

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dynamicFee/internal/fee"
	"dynamicFee/internal/fixedpoint"
)

var (
	owner     = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	minFee    = fixedpoint.MustParse("0.01")
	maxFee    = fixedpoint.MustParse("0.05")
	threshold = fixedpoint.One
)

func newEngine(t *testing.T) *fee.Engine {
	t.Helper()
	engine, err := fee.NewEngine(fee.Config{Params: fee.GlobalParameters{
		MinFee: minFee, MaxFee: maxFee, VolatilityThreshold: threshold, Owner: owner,
	}}, nil)
	require.NoError(t, err)
	return engine
}

func defaultConfig() Config {
	return Config{
		Start:  1_700_000_000,
		Pool:   DefaultPool,
		Tokens: [2]common.Address{DefaultTokenA, DefaultTokenB},
		Phases: DefaultPhases(),
	}
}

func lastOf(steps []Step, phase string) Step {
	var out Step
	for _, s := range steps {
		if s.Phase == phase {
			out = s
		}
	}
	return out
}

func TestDefaultScenario(t *testing.T) {
	steps, err := Run(context.Background(), newEngine(t), defaultConfig(), nil)
	require.NoError(t, err)
	require.Len(t, steps, 40)

	for _, s := range steps {
		assert.False(t, s.Fee.Lt(&minFee), "fee below min at %s/%d", s.Phase, s.Index)
		assert.False(t, s.Fee.Gt(&maxFee), "fee above max at %s/%d", s.Phase, s.Index)
	}

	// a constant price never moves volatility
	steady := lastOf(steps, "steady")
	assert.True(t, steady.Volatility.IsZero())
	assert.Equal(t, minFee, steady.Fee)

	swings := lastOf(steps, "swings")
	assert.Equal(t, maxFee, swings.Fee)

	calm := lastOf(steps, "calm")
	assert.True(t, calm.Volatility.Lt(&swings.Volatility))
	assert.True(t, calm.Fee.Lt(&swings.Fee))
	assert.Equal(t, uint64(1_700_000_000), steps[0].Timestamp)
	assert.Equal(t, steps[0].Timestamp+uint64(5*time.Minute/time.Second), steps[1].Timestamp)
}

func TestRetuneRequiresOwner(t *testing.T) {
	cfg := defaultConfig()
	cfg.Retune = &Retune{
		AfterPhase: "swings",
		MinFee:     fixedpoint.MustParse("0.001"),
		MaxFee:     fixedpoint.MustParse("0.1"),
		Threshold:  fixedpoint.MustParse("2"),
		Caller:     common.HexToAddress("0x00000000000000000000000000000000000000b2"),
	}
	_, err := Run(context.Background(), newEngine(t), cfg, nil)
	assert.ErrorIs(t, err, fee.ErrNotAuthorized)

	cfg.Retune.Caller = owner
	engine := newEngine(t)
	steps, err := Run(context.Background(), engine, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, fixedpoint.MustParse("0.1"), engine.Parameters().MaxFee)

	for _, s := range steps {
		if s.Phase == "mixed" || s.Phase == "calm" {
			assert.False(t, s.Fee.Lt(&cfg.Retune.MinFee))
			assert.False(t, s.Fee.Gt(&cfg.Retune.MaxFee))
		}
	}
}

func TestRunRejectsDuplicatePool(t *testing.T) {
	engine := newEngine(t)
	_, err := Run(context.Background(), engine, defaultConfig(), nil)
	require.NoError(t, err)
	_, err = Run(context.Background(), engine, defaultConfig(), nil)
	assert.ErrorIs(t, err, fee.ErrDuplicatePool)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	steps, err := Run(ctx, newEngine(t), defaultConfig(), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, steps)
}
