// Package replay feeds decoded swap events through the fee engine.
package replay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dynamicFee/internal/dex"
	"dynamicFee/internal/fee"
	"dynamicFee/internal/model"
)

const defaultDecimals uint8 = 18

// Config controls replay behavior.
type Config struct {
	// Workers bounds how many pools are replayed concurrently.
	Workers int
	// DefaultDecimals is used when neither the record nor the chain knows a token.
	DefaultDecimals uint8
	// RecomputeFrom, when set, ignores saved state and replays records at or after it.
	RecomputeFrom uint64
	StateStore    StateStore
}

// PoolRegistry persists newly registered pools; postgres.Store satisfies it.
type PoolRegistry interface {
	UpsertPools(ctx context.Context, pools []model.Pool) error
}

// Observer records per-observation outcomes; metrics.Collector satisfies it.
type Observer interface {
	ObserveResult(err error)
	ObserveState(pool string, state fee.PoolFeeState)
}

// Summary reports what a run did.
type Summary struct {
	Total      int
	Swaps      int
	Skipped    int
	Failed     int
	NewPools   int
	FeeChanges int
	LastTs     uint64
}

// Replayer replays a typed events JSONL file into a fee engine.
type Replayer struct {
	cfg      Config
	engine   *fee.Engine
	registry PoolRegistry
	source   DecimalsSource
	observer Observer
	logger   *zap.Logger
	decimals *TokenDecimalsCache
}

// NewReplayer builds a replayer; registry, source and observer are optional.
func NewReplayer(cfg Config, engine *fee.Engine, registry PoolRegistry, source DecimalsSource, observer Observer, logger *zap.Logger) *Replayer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.DefaultDecimals == 0 {
		cfg.DefaultDecimals = defaultDecimals
	}
	return &Replayer{
		cfg:      cfg,
		engine:   engine,
		registry: registry,
		source:   source,
		observer: observer,
		logger:   logger,
		decimals: NewTokenDecimalsCache(),
	}
}

// Run restores saved state, replays every swap newer than it and saves the
// resulting snapshot.
func (r *Replayer) Run(ctx context.Context, inputPath string) (Summary, error) {
	if r.engine == nil {
		return Summary{}, fmt.Errorf("engine is nil")
	}

	startTs, err := r.restore(ctx)
	if err != nil {
		return Summary{}, err
	}

	file, err := os.Open(inputPath)
	if err != nil {
		return Summary{}, fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	summary := Summary{LastTs: startTs}
	byPool := make(map[common.Address][]fee.SwapObservation)
	order := make([]common.Address, 0, 64)
	pools := make([]model.Pool, 0, 64)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		summary.Total++

		var record model.TypedEventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			summary.Failed++
			r.logger.Warn("decode typed event", zap.Error(err))
			continue
		}
		if record.EventName != dex.SwapEventName {
			continue
		}
		if record.Timestamp <= startTs {
			summary.Skipped++
			continue
		}

		obs, err := toObservation(record)
		if err != nil {
			summary.Failed++
			r.observe(err)
			r.logger.Warn("parse swap", zap.Error(err), zap.String("pool", record.Address), zap.String("tx", record.TxHash))
			continue
		}

		if !r.engine.IsRegistered(obs.Pool) {
			pool, err := r.register(ctx, obs.Pool, record.PoolMeta, record.Timestamp)
			if err != nil {
				summary.Failed++
				r.logger.Warn("register pool", zap.Error(err), zap.String("pool", record.Address))
				continue
			}
			pools = append(pools, pool)
		}

		if _, ok := byPool[obs.Pool]; !ok {
			order = append(order, obs.Pool)
		}
		byPool[obs.Pool] = append(byPool[obs.Pool], obs)
		summary.Swaps++
		if record.Timestamp > summary.LastTs {
			summary.LastTs = record.Timestamp
		}
	}
	if err := scanner.Err(); err != nil {
		return summary, fmt.Errorf("scan input: %w", err)
	}

	summary.NewPools = len(pools)
	if r.registry != nil && len(pools) > 0 {
		if err := r.registry.UpsertPools(ctx, pools); err != nil {
			return summary, fmt.Errorf("upsert pools: %w", err)
		}
	}

	failed, changes, err := r.feed(ctx, order, byPool)
	summary.Failed += failed
	summary.FeeChanges = changes
	if err != nil {
		return summary, err
	}

	if err := r.save(ctx, summary.LastTs); err != nil {
		return summary, err
	}

	r.logger.Info("replay complete",
		zap.Int("total", summary.Total),
		zap.Int("swaps", summary.Swaps),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Int("new_pools", summary.NewPools),
		zap.Int("fee_changes", summary.FeeChanges),
	)
	return summary, nil
}

// feed replays each pool's observations in timestamp order. Pools run
// concurrently; observations within a pool never do.
func (r *Replayer) feed(ctx context.Context, order []common.Address, byPool map[common.Address][]fee.SwapObservation) (int, int, error) {
	var failed, changes atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for _, pool := range order {
		observations := byPool[pool]
		sort.SliceStable(observations, func(i, j int) bool {
			return observations[i].Timestamp < observations[j].Timestamp
		})

		g.Go(func() error {
			for _, obs := range observations {
				if err := gctx.Err(); err != nil {
					return err
				}
				change, err := r.engine.OnSwapObserved(gctx, obs)
				r.observe(err)
				if err != nil {
					failed.Add(1)
					r.logger.Warn("observe swap", zap.Error(err), zap.String("pool", pool.Hex()), zap.Uint64("ts", obs.Timestamp))
					continue
				}
				if change != nil {
					changes.Add(1)
				}
			}
			if r.observer != nil {
				if state, err := r.engine.State(pool); err == nil {
					r.observer.ObserveState(pool.Hex(), state)
				}
			}
			return nil
		})
	}
	err := g.Wait()
	return int(failed.Load()), int(changes.Load()), err
}

func (r *Replayer) register(ctx context.Context, pool common.Address, meta model.PoolMeta, ts uint64) (model.Pool, error) {
	token0 := common.HexToAddress(meta.Token0)
	token1 := common.HexToAddress(meta.Token1)
	tokens := make([]fee.TokenScaling, 0, 2)
	for _, leg := range []struct {
		token    common.Address
		decimals *uint8
	}{{token0, meta.Decimals0}, {token1, meta.Decimals1}} {
		decimals := r.tokenDecimals(ctx, leg.token, leg.decimals)
		scaling, err := fee.ScalingFromDecimals(decimals)
		if err != nil {
			return model.Pool{}, err
		}
		tokens = append(tokens, fee.TokenScaling{Token: leg.token, Scaling: scaling})
	}

	if err := r.engine.Register(pool, tokens); err != nil {
		return model.Pool{}, err
	}
	return model.Pool{
		Address:      pool.Hex(),
		Tokens:       model.NewTokenScalings(tokens),
		RegisteredAt: time.Unix(int64(ts), 0).UTC(),
	}, nil
}

// tokenDecimals prefers the record, then the cache, then the chain, then the default.
func (r *Replayer) tokenDecimals(ctx context.Context, token common.Address, fromRecord *uint8) uint8 {
	if fromRecord != nil {
		r.decimals.Set(token, *fromRecord)
		return *fromRecord
	}
	if decimals, ok := r.decimals.Get(token); ok {
		return decimals
	}
	if r.source != nil {
		decimals, err := r.source.TokenDecimals(ctx, token)
		if err == nil {
			r.decimals.Set(token, decimals)
			return decimals
		}
		r.logger.Warn("token decimals", zap.String("token", token.Hex()), zap.Error(err))
	}
	return r.cfg.DefaultDecimals
}

func (r *Replayer) restore(ctx context.Context) (uint64, error) {
	if r.cfg.RecomputeFrom > 0 {
		return r.cfg.RecomputeFrom - 1, nil
	}
	if r.cfg.StateStore == nil {
		return 0, nil
	}
	snap, ok, err := r.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	pools, err := model.ToEngine(snap.Pools)
	if err != nil {
		return 0, fmt.Errorf("load state: %w", err)
	}
	if err := r.engine.Restore(pools); err != nil {
		return 0, err
	}
	r.logger.Info("state restored", zap.Int("pools", len(pools)), zap.Uint64("last_processed_ts", snap.LastProcessed))
	return snap.LastProcessed, nil
}

func (r *Replayer) save(ctx context.Context, lastTs uint64) error {
	if r.cfg.StateStore == nil {
		return nil
	}
	snap := model.EngineSnapshot{
		LastProcessed: lastTs,
		UpdatedAt:     time.Now().UTC().Format(time.RFC3339Nano),
		Pools:         model.NewPoolSnapshots(r.engine.Snapshot()),
	}
	if err := r.cfg.StateStore.Save(ctx, snap); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func (r *Replayer) observe(err error) {
	if r.observer != nil {
		r.observer.ObserveResult(err)
	}
}
