package replay

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"dynamicFee/internal/fee"
	"dynamicFee/internal/model"
)

// toObservation converts a decoded V3 Swap record into a swap observation.
// Amounts are signed from the pool's perspective: the positive leg is the
// token paid in, the negative leg the token paid out.
func toObservation(record model.TypedEventRecord) (fee.SwapObservation, error) {
	if !common.IsHexAddress(record.Address) {
		return fee.SwapObservation{}, fmt.Errorf("invalid pool address: %s", record.Address)
	}
	meta := record.PoolMeta
	if !common.IsHexAddress(meta.Token0) || !common.IsHexAddress(meta.Token1) {
		return fee.SwapObservation{}, fmt.Errorf("missing pool meta")
	}

	var data model.SwapEventData
	if err := json.Unmarshal(record.Decoded, &data); err != nil {
		return fee.SwapObservation{}, fmt.Errorf("decode swap: %w", err)
	}
	amount0, err := parseSigned(data.Amount0)
	if err != nil {
		return fee.SwapObservation{}, fmt.Errorf("amount0: %w", err)
	}
	amount1, err := parseSigned(data.Amount1)
	if err != nil {
		return fee.SwapObservation{}, fmt.Errorf("amount1: %w", err)
	}

	obs := fee.SwapObservation{
		Pool:      common.HexToAddress(record.Address),
		Timestamp: record.Timestamp,
	}
	token0 := common.HexToAddress(meta.Token0)
	token1 := common.HexToAddress(meta.Token1)

	var in, out *big.Int
	switch {
	case amount0.Sign() > 0 && amount1.Sign() < 0:
		obs.TokenIn, obs.TokenOut = token0, token1
		in, out = amount0, new(big.Int).Neg(amount1)
	case amount1.Sign() > 0 && amount0.Sign() < 0:
		obs.TokenIn, obs.TokenOut = token1, token0
		in, out = amount1, new(big.Int).Neg(amount0)
	default:
		return fee.SwapObservation{}, fmt.Errorf("amounts %s/%s: %w", data.Amount0, data.Amount1, fee.ErrInvalidAmount)
	}

	if err := setUint(&obs.AmountIn, in); err != nil {
		return fee.SwapObservation{}, fmt.Errorf("amount in: %w", err)
	}
	if err := setUint(&obs.AmountOut, out); err != nil {
		return fee.SwapObservation{}, fmt.Errorf("amount out: %w", err)
	}
	return obs, nil
}

func parseSigned(value string) (*big.Int, error) {
	if value == "" {
		return nil, fmt.Errorf("empty amount")
	}
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %s", value)
	}
	return v, nil
}

func setUint(dst *uint256.Int, v *big.Int) error {
	if overflow := dst.SetFromBig(v); overflow {
		return fee.ErrArithmeticOverflow
	}
	return nil
}
