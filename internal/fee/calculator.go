package fee

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"dynamicFee/internal/fixedpoint"
)

// ComputeFee interpolates linearly between minFee and maxFee, reaching maxFee
// once volatility >= threshold.
func ComputeFee(volatility, minFee, maxFee, threshold uint256.Int) (uint256.Int, error) {
	if minFee.Gt(&maxFee) {
		return uint256.Int{}, fmt.Errorf("min fee above max fee: %w", ErrInvalidBounds)
	}
	ratio, err := fixedpoint.Div(volatility, threshold)
	if err != nil {
		// A ratio too large for 256 bits is past the cap anyway.
		if !errors.Is(err, fixedpoint.ErrArithmeticOverflow) {
			return uint256.Int{}, fmt.Errorf("volatility ratio: %w", err)
		}
		ratio = fixedpoint.One
	}
	ratio = fixedpoint.Clamp(ratio, fixedpoint.Zero(), fixedpoint.One)

	span, err := fixedpoint.Sub(maxFee, minFee)
	if err != nil {
		return uint256.Int{}, err
	}
	step, err := fixedpoint.Mul(span, ratio)
	if err != nil {
		return uint256.Int{}, fmt.Errorf("fee step: %w", err)
	}
	fee, err := fixedpoint.Add(minFee, step)
	if err != nil {
		return uint256.Int{}, err
	}
	return fixedpoint.Clamp(fee, minFee, maxFee), nil
}
