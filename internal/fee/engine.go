package fee

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"dynamicFee/internal/fixedpoint"
)

// Config controls engine behavior.
type Config struct {
	Params GlobalParameters
	// HalfLife and Alpha default to DefaultHalfLife and DefaultAlpha when zero.
	HalfLife time.Duration
	Alpha    uint256.Int
	Notifier Notifier
}

// Engine re-prices pool fees from the volatility of their executed swaps.
type Engine struct {
	params   atomic.Pointer[GlobalParameters]
	tracker  *Tracker
	store    *Store
	notifier Notifier
	logger   *zap.Logger
}

func NewEngine(cfg Config, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}
	if cfg.HalfLife == 0 {
		cfg.HalfLife = DefaultHalfLife
	}
	if cfg.Alpha.IsZero() {
		cfg.Alpha = fixedpoint.MustParse(DefaultAlpha)
	}
	tracker, err := NewTracker(cfg.HalfLife, cfg.Alpha)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		tracker:  tracker,
		store:    NewStore(),
		notifier: cfg.Notifier,
		logger:   logger,
	}
	params := cfg.Params
	e.params.Store(&params)
	return e, nil
}

// Parameters returns the current global parameters.
func (e *Engine) Parameters() GlobalParameters {
	return *e.params.Load()
}

// SetParameters replaces the global bounds. Stored pool fees are not reclamped;
// they move inside the new bounds on their next observation.
func (e *Engine) SetParameters(minFee, maxFee, threshold uint256.Int, caller common.Address) error {
	current := e.params.Load()
	if caller != current.Owner {
		return fmt.Errorf("caller %s: %w", caller.Hex(), ErrNotAuthorized)
	}
	next := GlobalParameters{
		MinFee:              minFee,
		MaxFee:              maxFee,
		VolatilityThreshold: threshold,
		Owner:               current.Owner,
	}
	if err := next.Validate(); err != nil {
		return err
	}
	e.params.Store(&next)

	e.logger.Info("fee parameters updated",
		zap.String("min_fee", fixedpoint.Format(minFee)),
		zap.String("max_fee", fixedpoint.Format(maxFee)),
		zap.String("volatility_threshold", fixedpoint.Format(threshold)),
	)
	return nil
}

// Register creates the pool's config and initial state (fee = MinFee, volatility = 0).
func (e *Engine) Register(pool common.Address, tokens []TokenScaling) error {
	config, err := newPoolConfig(pool, tokens)
	if err != nil {
		return err
	}
	state := PoolFeeState{CurrentFee: e.params.Load().MinFee}
	if !e.store.insert(config, state) {
		return fmt.Errorf("pool %s: %w", pool.Hex(), ErrDuplicatePool)
	}

	e.logger.Info("pool registered", zap.String("pool", pool.Hex()), zap.Int("tokens", len(tokens)))
	return nil
}

func newPoolConfig(pool common.Address, tokens []TokenScaling) (PoolConfig, error) {
	if len(tokens) < 2 {
		return PoolConfig{}, fmt.Errorf("pool %s has %d tokens: %w", pool.Hex(), len(tokens), ErrInvalidScaling)
	}
	seen := make(map[common.Address]struct{}, len(tokens))
	for _, ts := range tokens {
		if ts.Scaling.IsZero() {
			return PoolConfig{}, fmt.Errorf("token %s: zero scaling: %w", ts.Token.Hex(), ErrInvalidScaling)
		}
		if _, ok := seen[ts.Token]; ok {
			return PoolConfig{}, fmt.Errorf("token %s listed twice: %w", ts.Token.Hex(), ErrInvalidScaling)
		}
		seen[ts.Token] = struct{}{}
	}
	return PoolConfig{Pool: pool, Tokens: append([]TokenScaling(nil), tokens...)}, nil
}

// OnSwapObserved folds one executed swap into the pool's volatility and fee.
// It returns the fee change, or nil if the stored fee did not move.
func (e *Engine) OnSwapObserved(ctx context.Context, obs SwapObservation) (*FeeChange, error) {
	params := e.params.Load()

	prev, next, err := e.store.update(obs.Pool, func(config PoolConfig, state PoolFeeState) (PoolFeeState, error) {
		price, err := observedPrice(config, obs)
		if err != nil {
			return state, err
		}
		next, err := e.tracker.Observe(state, price, obs.Timestamp)
		if err != nil {
			return state, err
		}
		fee, err := ComputeFee(next.CurrentVolatility, params.MinFee, params.MaxFee, params.VolatilityThreshold)
		if err != nil {
			return state, err
		}
		next.CurrentFee = fee
		return next, nil
	})
	if err != nil {
		return nil, fmt.Errorf("pool %s: %w", obs.Pool.Hex(), err)
	}

	if prev.CurrentFee.Eq(&next.CurrentFee) {
		return nil, nil
	}

	change := &FeeChange{
		ID:         feeChangeID(obs.Pool, obs.Timestamp, prev, next),
		Pool:       obs.Pool,
		OldFee:     prev.CurrentFee,
		NewFee:     next.CurrentFee,
		Volatility: next.CurrentVolatility,
		Timestamp:  obs.Timestamp,
	}
	e.logger.Debug("fee adjusted",
		zap.String("pool", obs.Pool.Hex()),
		zap.String("old_fee", fixedpoint.Format(change.OldFee)),
		zap.String("new_fee", fixedpoint.Format(change.NewFee)),
		zap.String("volatility", fixedpoint.Format(change.Volatility)),
	)
	if e.notifier != nil {
		if err := e.notifier.FeeChanged(ctx, *change); err != nil {
			e.logger.Warn("fee change delivery failed", zap.String("pool", obs.Pool.Hex()), zap.Error(err))
		}
	}
	return change, nil
}

// CurrentFee returns the pool's stored fee.
func (e *Engine) CurrentFee(pool common.Address) (uint256.Int, error) {
	_, state, err := e.store.read(pool)
	if err != nil {
		return uint256.Int{}, fmt.Errorf("pool %s: %w", pool.Hex(), err)
	}
	return state.CurrentFee, nil
}

// CurrentVolatility returns the pool's stored volatility.
func (e *Engine) CurrentVolatility(pool common.Address) (uint256.Int, error) {
	_, state, err := e.store.read(pool)
	if err != nil {
		return uint256.Int{}, fmt.Errorf("pool %s: %w", pool.Hex(), err)
	}
	return state.CurrentVolatility, nil
}

// State returns a copy of the pool's fee state.
func (e *Engine) State(pool common.Address) (PoolFeeState, error) {
	_, state, err := e.store.read(pool)
	if err != nil {
		return PoolFeeState{}, fmt.Errorf("pool %s: %w", pool.Hex(), err)
	}
	return state, nil
}

// PoolConfig returns a copy of the pool's registration.
func (e *Engine) PoolConfig(pool common.Address) (PoolConfig, error) {
	config, _, err := e.store.read(pool)
	if err != nil {
		return PoolConfig{}, fmt.Errorf("pool %s: %w", pool.Hex(), err)
	}
	config.Tokens = append([]TokenScaling(nil), config.Tokens...)
	return config, nil
}

// IsRegistered reports whether the pool is known.
func (e *Engine) IsRegistered(pool common.Address) bool {
	_, ok := e.store.get(pool)
	return ok
}

// PoolCount returns the number of registered pools.
func (e *Engine) PoolCount() int {
	return e.store.Len()
}

// Pools lists registered pools.
func (e *Engine) Pools() []common.Address {
	return e.store.Pools()
}

// observedPrice normalizes both legs and quotes the later-listed token per
// earlier-listed token, so swaps in either direction share one price axis.
// LastPrice is therefore always tokens[1] per tokens[0], whichever way the swap ran.
func observedPrice(config PoolConfig, obs SwapObservation) (uint256.Int, error) {
	if obs.AmountIn.IsZero() || obs.AmountOut.IsZero() {
		return uint256.Int{}, fmt.Errorf("zero swap amount: %w", ErrInvalidAmount)
	}
	in := config.tokenIndex(obs.TokenIn)
	out := config.tokenIndex(obs.TokenOut)
	if in < 0 || out < 0 || in == out {
		return uint256.Int{}, fmt.Errorf("pair %s/%s: %w", obs.TokenIn.Hex(), obs.TokenOut.Hex(), ErrUnknownToken)
	}

	amountIn, err := fixedpoint.Mul(obs.AmountIn, config.Tokens[in].Scaling)
	if err != nil {
		return uint256.Int{}, fmt.Errorf("scale amount in: %w", err)
	}
	amountOut, err := fixedpoint.Mul(obs.AmountOut, config.Tokens[out].Scaling)
	if err != nil {
		return uint256.Int{}, fmt.Errorf("scale amount out: %w", err)
	}
	if amountIn.IsZero() || amountOut.IsZero() {
		return uint256.Int{}, fmt.Errorf("amount scales to zero: %w", ErrInvalidAmount)
	}

	var price uint256.Int
	if in < out {
		price, err = fixedpoint.Div(amountOut, amountIn)
	} else {
		price, err = fixedpoint.Div(amountIn, amountOut)
	}
	if err != nil {
		return uint256.Int{}, fmt.Errorf("price: %w", err)
	}
	if price.IsZero() {
		return uint256.Int{}, fmt.Errorf("price rounds to zero: %w", ErrInvalidAmount)
	}
	return price, nil
}

var feeChangeNamespace = uuid.MustParse("6f1d3c2a-8b47-5e90-a1c4-2d9e7b5f0c31")

// feeChangeID is a UUIDv5 over the change, so replaying the same swaps yields the same ids.
func feeChangeID(pool common.Address, ts uint64, prev, next PoolFeeState) string {
	name := fmt.Sprintf("%s:%d:%s:%s:%s", pool.Hex(), ts,
		fixedpoint.Format(prev.CurrentFee), fixedpoint.Format(next.CurrentFee), fixedpoint.Format(next.CurrentVolatility))
	return uuid.NewSHA1(feeChangeNamespace, []byte(name)).String()
}
