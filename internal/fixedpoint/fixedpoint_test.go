package fixedpoint

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestMulTruncates(t *testing.T) {
	got, err := Mul(MustParse("0.2"), MustParse("0.15"))
	require.NoError(t, err)
	require.Equal(t, "0.03", Format(got))

	// 1e-18 * 0.5 truncates to zero.
	got, err = Mul(*uint256.NewInt(1), MustParse("0.5"))
	require.NoError(t, err)
	require.True(t, got.IsZero())
}

func TestMulOverflow(t *testing.T) {
	var max uint256.Int
	max.SetAllOne()

	_, err := Mul(max, FromUint64(2))
	require.ErrorIs(t, err, ErrArithmeticOverflow)

	// The intermediate product exceeds 256 bits but the result fits.
	got, err := Mul(max, One)
	require.NoError(t, err)
	require.Equal(t, max, got)
}

func TestDiv(t *testing.T) {
	got, err := Div(MustParse("1.10"), MustParse("0.95"))
	require.NoError(t, err)
	require.Equal(t, "1.157894736842105263", Format(got))

	_, err = Div(One, Zero())
	require.True(t, errors.Is(err, ErrDivisionByZero))

	var max uint256.Int
	max.SetAllOne()
	_, err = Div(max, *uint256.NewInt(1))
	require.ErrorIs(t, err, ErrArithmeticOverflow)
}

func TestAddSub(t *testing.T) {
	sum, err := Add(MustParse("0.01"), MustParse("0.04"))
	require.NoError(t, err)
	require.Equal(t, MustParse("0.05"), sum)

	_, err = Sub(MustParse("0.01"), MustParse("0.02"))
	require.ErrorIs(t, err, ErrArithmeticOverflow)

	var max uint256.Int
	max.SetAllOne()
	_, err = Add(max, One)
	require.ErrorIs(t, err, ErrArithmeticOverflow)

	require.Equal(t, MustParse("0.01"), AbsDiff(MustParse("0.01"), MustParse("0.02")))
	require.Equal(t, MustParse("0.01"), AbsDiff(MustParse("0.02"), MustParse("0.01")))
}

func TestClamp(t *testing.T) {
	lo, hi := MustParse("0.01"), MustParse("0.05")

	require.Equal(t, lo, Clamp(Zero(), lo, hi))
	require.Equal(t, hi, Clamp(One, lo, hi))
	require.Equal(t, MustParse("0.03"), Clamp(MustParse("0.03"), lo, hi))
}

func TestParseFormat(t *testing.T) {
	require.Equal(t, One, MustParse("1"))
	require.Equal(t, *uint256.NewInt(10_000_000_000_000_000), MustParse("0.01"))
	require.Equal(t, "0.05", Format(MustParse("5e-2")))
	require.Equal(t, "0", Format(Zero()))
	require.Equal(t, "2", Format(FromUint64(2)))

	for _, input := range []string{"", "abc", "-1"} {
		_, err := Parse(input)
		require.ErrorIs(t, err, ErrInvalidNumber, "input %q", input)
	}
}

func TestPow10(t *testing.T) {
	got, err := Pow10(18)
	require.NoError(t, err)
	require.Equal(t, One, got)

	_, err = Pow10(78)
	require.ErrorIs(t, err, ErrArithmeticOverflow)
}
