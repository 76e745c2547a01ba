// Package metrics exposes the fee engine's per-pool state to Prometheus.
package metrics

import (
	"context"
	"errors"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"dynamicFee/internal/fee"
	"dynamicFee/internal/fixedpoint"
)

// Collector holds the fee engine metrics.
type Collector struct {
	PoolFee         *prometheus.GaugeVec
	PoolVolatility  *prometheus.GaugeVec
	Observations    *prometheus.CounterVec
	FeeChanges      *prometheus.CounterVec
	PoolsRegistered prometheus.Gauge
}

// NewCollector registers the fee metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		PoolFee: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "feehook",
				Subsystem: "pool",
				Name:      "fee_ratio",
				Help:      "Current swap fee as a fraction (0.01 == 1%)",
			},
			[]string{"pool"},
		),
		PoolVolatility: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "feehook",
				Subsystem: "pool",
				Name:      "volatility",
				Help:      "Current time-decayed volatility estimate",
			},
			[]string{"pool"},
		),
		Observations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "feehook",
				Subsystem: "engine",
				Name:      "swap_observations_total",
				Help:      "Swap observations processed, by result",
			},
			[]string{"result"},
		),
		FeeChanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "feehook",
				Subsystem: "engine",
				Name:      "fee_changes_total",
				Help:      "Fee changes raised, by direction",
			},
			[]string{"direction"},
		),
		PoolsRegistered: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "feehook",
				Subsystem: "engine",
				Name:      "pools_registered",
				Help:      "Number of registered pools",
			},
		),
	}
}

// FeeChanged implements fee.Notifier.
func (c *Collector) FeeChanged(_ context.Context, change fee.FeeChange) error {
	pool := change.Pool.Hex()
	c.PoolFee.WithLabelValues(pool).Set(Float(change.NewFee))
	c.PoolVolatility.WithLabelValues(pool).Set(Float(change.Volatility))

	direction := "up"
	if change.NewFee.Lt(&change.OldFee) {
		direction = "down"
	}
	c.FeeChanges.WithLabelValues(direction).Inc()
	return nil
}

// ObserveState records a pool's state after an observation.
func (c *Collector) ObserveState(pool string, state fee.PoolFeeState) {
	c.PoolFee.WithLabelValues(pool).Set(Float(state.CurrentFee))
	c.PoolVolatility.WithLabelValues(pool).Set(Float(state.CurrentVolatility))
}

// ObserveResult counts one swap observation outcome.
func (c *Collector) ObserveResult(err error) {
	c.Observations.WithLabelValues(Result(err)).Inc()
}

// Result maps an engine error to a metric label.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, fee.ErrUnknownPool):
		return "unknown_pool"
	case errors.Is(err, fee.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, fee.ErrUnknownToken):
		return "unknown_token"
	case errors.Is(err, fee.ErrStaleObservation):
		return "stale"
	case errors.Is(err, fee.ErrArithmeticOverflow), errors.Is(err, fee.ErrDivisionByZero):
		return "arithmetic"
	default:
		return "error"
	}
}

// Float converts a fixed-point value for gauges; precision loss is acceptable here.
func Float(v uint256.Int) float64 {
	f, _ := new(big.Rat).SetFrac(v.ToBig(), fixedpoint.One.ToBig()).Float64()
	return f
}
