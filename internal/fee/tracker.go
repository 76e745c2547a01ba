package fee

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"dynamicFee/internal/fixedpoint"
)

const (
	DefaultHalfLife = time.Hour
	// DefaultAlpha is the weight of the newest price move in the volatility EMA.
	DefaultAlpha = "0.2"
)

// Tracker updates a pool's volatility estimate from observed prices.
type Tracker struct {
	halfLife uint64 // seconds
	alpha    uint256.Int
	rest     uint256.Int // 1 - alpha
}

// NewTracker validates 0 < alpha < 1 and halfLife >= 1s.
func NewTracker(halfLife time.Duration, alpha uint256.Int) (*Tracker, error) {
	secs := uint64(halfLife / time.Second)
	if secs == 0 {
		return nil, fmt.Errorf("half-life must be at least 1s, got %s", halfLife)
	}
	if alpha.IsZero() || !alpha.Lt(&fixedpoint.One) {
		return nil, fmt.Errorf("alpha must be in (0, 1), got %s", fixedpoint.Format(alpha))
	}
	rest, err := fixedpoint.Sub(fixedpoint.One, alpha)
	if err != nil {
		return nil, err
	}
	return &Tracker{halfLife: secs, alpha: alpha, rest: rest}, nil
}

// DecayFactor returns 2^(-elapsed/halfLife) in fixed point. Whole half-lives
// halve the factor; the remainder interpolates linearly toward the next halving.
func (t *Tracker) DecayFactor(elapsed uint64) uint256.Int {
	halvings := elapsed / t.halfLife
	if halvings >= 256 {
		return uint256.Int{}
	}
	var factor uint256.Int
	factor.Rsh(&fixedpoint.One, uint(halvings))

	rem := elapsed % t.halfLife
	if rem == 0 {
		return factor
	}
	// factor * (1 - rem/(2*halfLife))
	var cut uint256.Int
	cut.Mul(&factor, uint256.NewInt(rem))
	cut.Div(&cut, uint256.NewInt(2*t.halfLife))
	factor.Sub(&factor, &cut)
	return factor
}

// Observe returns the state after folding observedPrice in at time now.
// The input state is not modified.
func (t *Tracker) Observe(state PoolFeeState, observedPrice uint256.Int, now uint64) (PoolFeeState, error) {
	if observedPrice.IsZero() {
		return state, fmt.Errorf("zero price: %w", ErrInvalidAmount)
	}
	if !state.HasPrice {
		state.LastPrice = observedPrice
		state.HasPrice = true
		state.LastObservation = now
		return state, nil
	}
	if now < state.LastObservation {
		return state, fmt.Errorf("now %d before %d: %w", now, state.LastObservation, ErrStaleObservation)
	}

	delta, err := fixedpoint.Div(fixedpoint.AbsDiff(observedPrice, state.LastPrice), state.LastPrice)
	if err != nil {
		return state, fmt.Errorf("price delta: %w", err)
	}

	decayed, err := fixedpoint.Mul(state.CurrentVolatility, t.DecayFactor(now-state.LastObservation))
	if err != nil {
		return state, fmt.Errorf("decay volatility: %w", err)
	}

	fresh, err := fixedpoint.Mul(t.alpha, delta)
	if err != nil {
		return state, fmt.Errorf("weight delta: %w", err)
	}
	prior, err := fixedpoint.Mul(t.rest, decayed)
	if err != nil {
		return state, fmt.Errorf("weight prior: %w", err)
	}
	volatility, err := fixedpoint.Add(fresh, prior)
	if err != nil {
		return state, fmt.Errorf("blend volatility: %w", err)
	}

	state.CurrentVolatility = volatility
	state.LastPrice = observedPrice
	state.LastObservation = now
	return state, nil
}
