package fee

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dynamicFee/internal/fixedpoint"
)

func TestDecayFactorBoundaries(t *testing.T) {
	tracker, err := NewTracker(time.Hour, fixedpoint.MustParse("0.2"))
	require.NoError(t, err)

	assert.Equal(t, fixedpoint.One, tracker.DecayFactor(0))
	assert.Equal(t, fixedpoint.MustParse("0.5"), tracker.DecayFactor(3600))
	assert.Equal(t, fixedpoint.MustParse("0.25"), tracker.DecayFactor(7200))
	// halfway through the first half-life interpolates to 0.75
	assert.Equal(t, fixedpoint.MustParse("0.75"), tracker.DecayFactor(1800))

	far := tracker.DecayFactor(256 * 3600)
	assert.True(t, far.IsZero())
}

func TestNewTrackerValidation(t *testing.T) {
	_, err := NewTracker(500*time.Millisecond, fixedpoint.MustParse("0.2"))
	assert.Error(t, err)
	_, err = NewTracker(time.Hour, fixedpoint.Zero())
	assert.Error(t, err)
	_, err = NewTracker(time.Hour, fixedpoint.One)
	assert.Error(t, err)
}

func TestObserveBootstrapAndBlend(t *testing.T) {
	tracker, err := NewTracker(time.Hour, fixedpoint.MustParse("0.5"))
	require.NoError(t, err)

	state, err := tracker.Observe(PoolFeeState{}, fixedpoint.One, 100)
	require.NoError(t, err)
	assert.True(t, state.HasPrice)
	assert.True(t, state.CurrentVolatility.IsZero())
	assert.Equal(t, uint64(100), state.LastObservation)

	// +10% move: 0.5 * 0.1 + 0.5 * 0
	state, err = tracker.Observe(state, fixedpoint.MustParse("1.1"), 100)
	require.NoError(t, err)
	assert.Equal(t, fixedpoint.MustParse("0.05"), state.CurrentVolatility)

	// one half-life later, flat price: 0.5 * 0 + 0.5 * (0.05 * 0.5)
	state, err = tracker.Observe(state, fixedpoint.MustParse("1.1"), 3700)
	require.NoError(t, err)
	assert.Equal(t, fixedpoint.MustParse("0.0125"), state.CurrentVolatility)

	_, err = tracker.Observe(state, fixedpoint.One, 3699)
	assert.ErrorIs(t, err, ErrStaleObservation)

	_, err = tracker.Observe(state, uint256.Int{}, 4000)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestComputeFeeEdges(t *testing.T) {
	fee, err := ComputeFee(fixedpoint.Zero(), minFee, maxFee, threshold)
	require.NoError(t, err)
	assert.Equal(t, minFee, fee)

	fee, err = ComputeFee(threshold, minFee, maxFee, threshold)
	require.NoError(t, err)
	assert.Equal(t, maxFee, fee)

	fee, err = ComputeFee(fixedpoint.FromUint64(50), minFee, maxFee, threshold)
	require.NoError(t, err)
	assert.Equal(t, maxFee, fee)

	fee, err = ComputeFee(fixedpoint.MustParse("0.5"), minFee, maxFee, threshold)
	require.NoError(t, err)
	assert.Equal(t, fixedpoint.MustParse("0.03"), fee)

	var huge uint256.Int
	huge.SetAllOne()
	fee, err = ComputeFee(huge, minFee, maxFee, fixedpoint.MustParse("0.001"))
	require.NoError(t, err)
	assert.Equal(t, maxFee, fee)

	_, err = ComputeFee(fixedpoint.One, minFee, maxFee, fixedpoint.Zero())
	assert.ErrorIs(t, err, ErrDivisionByZero)

	_, err = ComputeFee(fixedpoint.One, maxFee, minFee, threshold)
	assert.ErrorIs(t, err, ErrInvalidBounds)
}
