// Package fixedpoint implements 18-decimal fixed-point arithmetic on 256-bit words.
//
// A value v represents v * 1e-18, so One (1e18) is 100%. Multiplication and
// division use a 512-bit intermediate and report overflow instead of wrapping.
package fixedpoint

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// Decimals is the number of fractional digits carried by a fixed-point value.
const Decimals = 18

var (
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
	ErrDivisionByZero     = errors.New("division by zero")
	ErrInvalidNumber      = errors.New("invalid fixed-point number")
)

// One is 1.0 in fixed point.
var One = *uint256.NewInt(1_000_000_000_000_000_000)

// Zero returns the zero value.
func Zero() uint256.Int {
	return uint256.Int{}
}

// FromUint64 converts an integer to fixed point (v * 1e18).
func FromUint64(v uint64) uint256.Int {
	var out uint256.Int
	out.Mul(uint256.NewInt(v), &One)
	return out
}

// Pow10 returns 10^exp as a raw 256-bit integer.
func Pow10(exp uint8) (uint256.Int, error) {
	if exp > 77 {
		return uint256.Int{}, fmt.Errorf("10^%d: %w", exp, ErrArithmeticOverflow)
	}
	out := *uint256.NewInt(1)
	ten := uint256.NewInt(10)
	for i := uint8(0); i < exp; i++ {
		out.Mul(&out, ten)
	}
	return out, nil
}

// Mul returns a*b/1e18, truncating.
func Mul(a, b uint256.Int) (uint256.Int, error) {
	var out uint256.Int
	if _, overflow := out.MulDivOverflow(&a, &b, &One); overflow {
		return uint256.Int{}, ErrArithmeticOverflow
	}
	return out, nil
}

// Div returns a*1e18/b, truncating.
func Div(a, b uint256.Int) (uint256.Int, error) {
	if b.IsZero() {
		return uint256.Int{}, ErrDivisionByZero
	}
	var out uint256.Int
	if _, overflow := out.MulDivOverflow(&a, &One, &b); overflow {
		return uint256.Int{}, ErrArithmeticOverflow
	}
	return out, nil
}

// Add returns a+b.
func Add(a, b uint256.Int) (uint256.Int, error) {
	var out uint256.Int
	if _, overflow := out.AddOverflow(&a, &b); overflow {
		return uint256.Int{}, ErrArithmeticOverflow
	}
	return out, nil
}

// Sub returns a-b; values are unsigned, so b > a is an overflow.
func Sub(a, b uint256.Int) (uint256.Int, error) {
	var out uint256.Int
	if _, underflow := out.SubOverflow(&a, &b); underflow {
		return uint256.Int{}, ErrArithmeticOverflow
	}
	return out, nil
}

// AbsDiff returns |a-b|.
func AbsDiff(a, b uint256.Int) uint256.Int {
	var out uint256.Int
	if a.Lt(&b) {
		out.Sub(&b, &a)
	} else {
		out.Sub(&a, &b)
	}
	return out
}

// Clamp bounds x to [lo, hi]. lo wins when lo > hi.
func Clamp(x, lo, hi uint256.Int) uint256.Int {
	if x.Gt(&hi) {
		x = hi
	}
	if x.Lt(&lo) {
		x = lo
	}
	return x
}

// Parse converts a decimal string such as "0.05" or "1" into fixed point.
// Digits beyond the 18th fractional place are truncated.
func Parse(input string) (uint256.Int, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return uint256.Int{}, fmt.Errorf("empty value: %w", ErrInvalidNumber)
	}
	rat, ok := new(big.Rat).SetString(input)
	if !ok {
		return uint256.Int{}, fmt.Errorf("%q: %w", input, ErrInvalidNumber)
	}
	if rat.Sign() < 0 {
		return uint256.Int{}, fmt.Errorf("%q is negative: %w", input, ErrInvalidNumber)
	}
	scaled := new(big.Int).Mul(rat.Num(), One.ToBig())
	scaled.Quo(scaled, rat.Denom())
	out, overflow := uint256.FromBig(scaled)
	if overflow {
		return uint256.Int{}, fmt.Errorf("%q: %w", input, ErrArithmeticOverflow)
	}
	return *out, nil
}

// MustParse is Parse for constants; it panics on malformed input.
func MustParse(input string) uint256.Int {
	out, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return out
}

// Format renders a fixed-point value as a decimal string without trailing zeros.
func Format(v uint256.Int) string {
	rat := new(big.Rat).SetFrac(v.ToBig(), One.ToBig())
	text := rat.FloatString(Decimals)
	if strings.Contains(text, ".") {
		text = strings.TrimRight(text, "0")
		text = strings.TrimSuffix(text, ".")
	}
	return text
}
