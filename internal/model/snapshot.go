package model

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"dynamicFee/internal/fee"
	"dynamicFee/internal/fixedpoint"
)

// EngineSnapshot is the persisted form of the engine's pool states.
type EngineSnapshot struct {
	LastProcessed uint64         `json:"last_processed_ts"`
	UpdatedAt     string         `json:"updated_at"`
	Pools         []PoolSnapshot `json:"pools"`
}

// PoolSnapshot is one pool's config and state. LastPrice is empty before the first swap.
type PoolSnapshot struct {
	Pool              string         `json:"pool"`
	Tokens            []TokenScaling `json:"tokens"`
	CurrentFee        string         `json:"current_fee"`
	CurrentVolatility string         `json:"current_volatility"`
	LastPrice         string         `json:"last_price,omitempty"`
	LastObservation   uint64         `json:"last_observation"`
}

// NewPoolSnapshots converts engine snapshots to their stored form.
func NewPoolSnapshots(snaps []fee.PoolSnapshot) []PoolSnapshot {
	out := make([]PoolSnapshot, 0, len(snaps))
	for _, snap := range snaps {
		rec := PoolSnapshot{
			Pool:              snap.Config.Pool.Hex(),
			Tokens:            NewTokenScalings(snap.Config.Tokens),
			CurrentFee:        fixedpoint.Format(snap.State.CurrentFee),
			CurrentVolatility: fixedpoint.Format(snap.State.CurrentVolatility),
			LastObservation:   snap.State.LastObservation,
		}
		if snap.State.HasPrice {
			rec.LastPrice = fixedpoint.Format(snap.State.LastPrice)
		}
		out = append(out, rec)
	}
	return out
}

// NewTokenScalings converts scaling factors to their stored form.
func NewTokenScalings(tokens []fee.TokenScaling) []TokenScaling {
	out := make([]TokenScaling, 0, len(tokens))
	for _, ts := range tokens {
		out = append(out, TokenScaling{Token: ts.Token.Hex(), Scaling: fixedpoint.Format(ts.Scaling)})
	}
	return out
}

// ToEngine parses stored pool snapshots back into engine snapshots.
func ToEngine(records []PoolSnapshot) ([]fee.PoolSnapshot, error) {
	out := make([]fee.PoolSnapshot, 0, len(records))
	for _, rec := range records {
		if !common.IsHexAddress(rec.Pool) {
			return nil, fmt.Errorf("invalid pool address: %s", rec.Pool)
		}
		tokens := make([]fee.TokenScaling, 0, len(rec.Tokens))
		for _, tok := range rec.Tokens {
			if !common.IsHexAddress(tok.Token) {
				return nil, fmt.Errorf("pool %s: invalid token address: %s", rec.Pool, tok.Token)
			}
			scaling, err := fixedpoint.Parse(tok.Scaling)
			if err != nil {
				return nil, fmt.Errorf("pool %s: scaling: %w", rec.Pool, err)
			}
			tokens = append(tokens, fee.TokenScaling{Token: common.HexToAddress(tok.Token), Scaling: scaling})
		}

		state := fee.PoolFeeState{LastObservation: rec.LastObservation}
		var err error
		if state.CurrentFee, err = fixedpoint.Parse(rec.CurrentFee); err != nil {
			return nil, fmt.Errorf("pool %s: current fee: %w", rec.Pool, err)
		}
		if state.CurrentVolatility, err = fixedpoint.Parse(rec.CurrentVolatility); err != nil {
			return nil, fmt.Errorf("pool %s: current volatility: %w", rec.Pool, err)
		}
		if rec.LastPrice != "" {
			if state.LastPrice, err = fixedpoint.Parse(rec.LastPrice); err != nil {
				return nil, fmt.Errorf("pool %s: last price: %w", rec.Pool, err)
			}
			state.HasPrice = true
		}

		out = append(out, fee.PoolSnapshot{
			Config: fee.PoolConfig{Pool: common.HexToAddress(rec.Pool), Tokens: tokens},
			State:  state,
		})
	}
	return out, nil
}
