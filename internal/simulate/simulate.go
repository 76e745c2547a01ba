// Package simulate drives a synthetic pool through scripted swap phases.
package simulate

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"dynamicFee/internal/fee"
	"dynamicFee/internal/fixedpoint"
)

// Phase is a run of swaps at a fixed spacing. AmountsOut cycles per swap;
// every swap pays AmountIn of the first token.
type Phase struct {
	Name       string
	Swaps      int
	Interval   time.Duration
	AmountIn   string
	AmountsOut []string
}

// Retune changes the global parameters once the named phase completes.
type Retune struct {
	AfterPhase string
	MinFee     uint256.Int
	MaxFee     uint256.Int
	Threshold  uint256.Int
	Caller     common.Address
}

type Config struct {
	Start  uint64
	Pool   common.Address
	Tokens [2]common.Address
	Phases []Phase
	Retune *Retune
}

// Step is the pool's state after one simulated swap.
type Step struct {
	Phase      string
	Index      int
	Timestamp  uint64
	Fee        uint256.Int
	Volatility uint256.Int
	Changed    bool
}

var (
	DefaultPool   = common.HexToAddress("0x5157000000000000000000000000000000000001")
	DefaultTokenA = common.HexToAddress("0x5157000000000000000000000000000000000a0a")
	DefaultTokenB = common.HexToAddress("0x5157000000000000000000000000000000000b0b")
)

// DefaultPhases: steady slippage, extreme alternating swings, hourly mixed
// moves and a long calm stretch.
func DefaultPhases() []Phase {
	return []Phase{
		{Name: "steady", Swaps: 10, Interval: 5 * time.Minute, AmountIn: "1", AmountsOut: []string{"0.95"}},
		{Name: "swings", Swaps: 20, Interval: time.Minute, AmountIn: "1", AmountsOut: []string{"0.5", "2"}},
		{Name: "mixed", Swaps: 4, Interval: time.Hour, AmountIn: "1", AmountsOut: []string{"0.95", "1.05", "0.9", "1.1"}},
		{Name: "calm", Swaps: 6, Interval: 12 * time.Hour, AmountIn: "1", AmountsOut: []string{"1"}},
	}
}

// Run registers cfg.Pool with 18-decimal tokens and replays every phase.
func Run(ctx context.Context, engine *fee.Engine, cfg Config, logger *zap.Logger) ([]Step, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Tokens[0] == cfg.Tokens[1] {
		return nil, fmt.Errorf("simulate: tokens must differ")
	}
	if err := engine.Register(cfg.Pool, []fee.TokenScaling{
		{Token: cfg.Tokens[0], Scaling: fixedpoint.One},
		{Token: cfg.Tokens[1], Scaling: fixedpoint.One},
	}); err != nil {
		return nil, fmt.Errorf("simulate: %w", err)
	}

	ts := cfg.Start
	var steps []Step
	for _, phase := range cfg.Phases {
		if len(phase.AmountsOut) == 0 {
			return steps, fmt.Errorf("phase %s: no amounts", phase.Name)
		}
		amountIn, err := fixedpoint.Parse(phase.AmountIn)
		if err != nil {
			return steps, fmt.Errorf("phase %s: amount in: %w", phase.Name, err)
		}
		for i := 0; i < phase.Swaps; i++ {
			if err := ctx.Err(); err != nil {
				return steps, err
			}
			amountOut, err := fixedpoint.Parse(phase.AmountsOut[i%len(phase.AmountsOut)])
			if err != nil {
				return steps, fmt.Errorf("phase %s: amount out: %w", phase.Name, err)
			}
			change, err := engine.OnSwapObserved(ctx, fee.SwapObservation{
				Pool:      cfg.Pool,
				TokenIn:   cfg.Tokens[0],
				TokenOut:  cfg.Tokens[1],
				AmountIn:  amountIn,
				AmountOut: amountOut,
				Timestamp: ts,
			})
			if err != nil {
				return steps, fmt.Errorf("phase %s swap %d: %w", phase.Name, i, err)
			}
			state, err := engine.State(cfg.Pool)
			if err != nil {
				return steps, err
			}
			step := Step{
				Phase:      phase.Name,
				Index:      i,
				Timestamp:  ts,
				Fee:        state.CurrentFee,
				Volatility: state.CurrentVolatility,
				Changed:    change != nil,
			}
			steps = append(steps, step)
			logger.Info("swap",
				zap.String("phase", phase.Name),
				zap.Int("index", i),
				zap.Uint64("ts", ts),
				zap.String("fee", fixedpoint.Format(step.Fee)),
				zap.String("volatility", fixedpoint.Format(step.Volatility)),
				zap.Bool("changed", step.Changed),
			)
			ts += uint64(phase.Interval / time.Second)
		}

		if cfg.Retune != nil && cfg.Retune.AfterPhase == phase.Name {
			r := cfg.Retune
			if err := engine.SetParameters(r.MinFee, r.MaxFee, r.Threshold, r.Caller); err != nil {
				return steps, fmt.Errorf("retune after %s: %w", phase.Name, err)
			}
		}
	}
	return steps, nil
}
