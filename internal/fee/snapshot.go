package fee

import (
	"fmt"

	"go.uber.org/zap"
)

// PoolSnapshot is a point-in-time copy of one pool.
type PoolSnapshot struct {
	Config PoolConfig
	State  PoolFeeState
}

// Snapshot copies every pool's config and state, ordered by pool address.
func (e *Engine) Snapshot() []PoolSnapshot {
	pools := e.store.Pools()
	out := make([]PoolSnapshot, 0, len(pools))
	for _, pool := range pools {
		config, state, err := e.store.read(pool)
		if err != nil {
			continue
		}
		config.Tokens = append([]TokenScaling(nil), config.Tokens...)
		out = append(out, PoolSnapshot{Config: config, State: state})
	}
	return out
}

// Restore registers pools with previously captured state. It fails on the
// first pool that is already registered or carries invalid scaling; pools
// restored before the failure stay registered.
func (e *Engine) Restore(snapshots []PoolSnapshot) error {
	for _, snap := range snapshots {
		config, err := newPoolConfig(snap.Config.Pool, snap.Config.Tokens)
		if err != nil {
			return fmt.Errorf("restore: %w", err)
		}
		if !e.store.insert(config, snap.State) {
			return fmt.Errorf("restore: pool %s: %w", snap.Config.Pool.Hex(), ErrDuplicatePool)
		}
	}
	if len(snapshots) > 0 {
		e.logger.Info("pools restored", zap.Int("pools", len(snapshots)))
	}
	return nil
}
