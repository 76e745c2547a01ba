package fee

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"dynamicFee/internal/fixedpoint"
)

// GlobalParameters bounds every pool's fee. Values are fixed-point fractions.
type GlobalParameters struct {
	MinFee              uint256.Int
	MaxFee              uint256.Int
	VolatilityThreshold uint256.Int
	Owner               common.Address
}

// Validate checks 0 <= MinFee <= MaxFee <= 1 and VolatilityThreshold > 0.
func (p GlobalParameters) Validate() error {
	if p.MinFee.Gt(&p.MaxFee) {
		return fmt.Errorf("min fee %s above max fee %s: %w", fixedpoint.Format(p.MinFee), fixedpoint.Format(p.MaxFee), ErrInvalidBounds)
	}
	if p.MaxFee.Gt(&fixedpoint.One) {
		return fmt.Errorf("max fee %s above 100%%: %w", fixedpoint.Format(p.MaxFee), ErrInvalidBounds)
	}
	if p.VolatilityThreshold.IsZero() {
		return fmt.Errorf("volatility threshold must be positive: %w", ErrInvalidBounds)
	}
	return nil
}

// TokenScaling normalizes raw token amounts into the 18-decimal domain.
type TokenScaling struct {
	Token   common.Address
	Scaling uint256.Int
}

// ScalingFromDecimals returns the scaling factor for a token with the given decimals,
// 1e18 * 10^(18-decimals) expressed as a fixed-point multiplier.
func ScalingFromDecimals(decimals uint8) (uint256.Int, error) {
	if decimals > 36 {
		return uint256.Int{}, fmt.Errorf("decimals %d: %w", decimals, ErrInvalidScaling)
	}
	return fixedpoint.Pow10(36 - decimals)
}

// PoolConfig is fixed at registration.
type PoolConfig struct {
	Pool   common.Address
	Tokens []TokenScaling
}

func (c PoolConfig) tokenIndex(token common.Address) int {
	for i, ts := range c.Tokens {
		if ts.Token == token {
			return i
		}
	}
	return -1
}

// PoolFeeState is the mutable per-pool fee and volatility state.
type PoolFeeState struct {
	CurrentFee        uint256.Int
	CurrentVolatility uint256.Int
	LastPrice         uint256.Int
	// HasPrice is false until the first observation sets LastPrice.
	HasPrice        bool
	LastObservation uint64
}

// SwapObservation describes one executed swap. Timestamp is unix seconds.
type SwapObservation struct {
	Pool      common.Address
	TokenIn   common.Address
	TokenOut  common.Address
	AmountIn  uint256.Int
	AmountOut uint256.Int
	Timestamp uint64
}

// FeeChange is raised when an observation moves a pool's stored fee.
type FeeChange struct {
	ID         string
	Pool       common.Address
	OldFee     uint256.Int
	NewFee     uint256.Int
	Volatility uint256.Int
	Timestamp  uint64
}
