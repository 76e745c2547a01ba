package metrics

import (
	"context"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dynamicFee/internal/fee"
	"dynamicFee/internal/fixedpoint"
)

func TestCollectorFeeChanged(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	pool := common.HexToAddress("0x1111111111111111111111111111111111111111")

	require.NoError(t, c.FeeChanged(context.Background(), fee.FeeChange{
		Pool:       pool,
		OldFee:     fixedpoint.MustParse("0.01"),
		NewFee:     fixedpoint.MustParse("0.03"),
		Volatility: fixedpoint.MustParse("0.5"),
	}))
	require.NoError(t, c.FeeChanged(context.Background(), fee.FeeChange{
		Pool:   pool,
		OldFee: fixedpoint.MustParse("0.03"),
		NewFee: fixedpoint.MustParse("0.02"),
	}))

	assert.InDelta(t, 0.02, testutil.ToFloat64(c.PoolFee.WithLabelValues(pool.Hex())), 1e-12)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.FeeChanges.WithLabelValues("up")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.FeeChanges.WithLabelValues("down")))
}

func TestResultLabels(t *testing.T) {
	assert.Equal(t, "ok", Result(nil))
	assert.Equal(t, "unknown_pool", Result(fmt.Errorf("pool x: %w", fee.ErrUnknownPool)))
	assert.Equal(t, "stale", Result(fee.ErrStaleObservation))
	assert.Equal(t, "arithmetic", Result(fee.ErrDivisionByZero))
	assert.Equal(t, "error", Result(fmt.Errorf("boom")))

	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.ObserveResult(nil)
	c.ObserveResult(fee.ErrInvalidAmount)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Observations.WithLabelValues("invalid_amount")))
}

func TestNilServerIsNoop(t *testing.T) {
	s := NewServer("", prometheus.NewRegistry())
	assert.Nil(t, s)
	assert.NoError(t, s.Start())
	assert.NoError(t, s.Stop(context.Background()))
}
