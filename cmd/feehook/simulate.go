package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dynamicFee/internal/config"
	"dynamicFee/internal/fee"
	"dynamicFee/internal/fixedpoint"
	"dynamicFee/internal/metrics"
	"dynamicFee/internal/simulate"
)

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSimulate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	feeCfg, err := cfg.Engine.FeeConfig()
	if err != nil {
		return err
	}
	start, err := config.ParseTimestamp(cfg.Start)
	if err != nil {
		return fmt.Errorf("parse start: %w", err)
	}

	simCfg := simulate.Config{
		Start:  start,
		Pool:   simulate.DefaultPool,
		Tokens: [2]common.Address{simulate.DefaultTokenA, simulate.DefaultTokenB},
		Phases: simulate.DefaultPhases(),
	}
	if cfg.RetuneAfter != "" {
		retune, err := parseRetune(cfg)
		if err != nil {
			return err
		}
		simCfg.Retune = retune
	}

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	feeCfg.Notifier = collector

	engine, err := fee.NewEngine(feeCfg, logger)
	if err != nil {
		return err
	}

	stopMetrics := startMetrics(cfg.MetricsAddr, reg, logger)
	defer stopMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	steps, err := simulate.Run(ctx, engine, simCfg, logger)
	if err != nil {
		return err
	}

	changes := 0
	for _, step := range steps {
		if step.Changed {
			changes++
		}
	}
	state, err := engine.State(simCfg.Pool)
	if err != nil {
		return err
	}
	logger.Info("simulate complete",
		zap.Int("swaps", len(steps)),
		zap.Int("fee_changes", changes),
		zap.String("final_fee", fixedpoint.Format(state.CurrentFee)),
		zap.String("final_volatility", fixedpoint.Format(state.CurrentVolatility)),
	)
	return nil
}

func parseRetune(cfg config.SimulateConfig) (*simulate.Retune, error) {
	minFee, err := fixedpoint.Parse(cfg.RetuneMinFee)
	if err != nil {
		return nil, fmt.Errorf("retune-min-fee: %w", err)
	}
	maxFee, err := fixedpoint.Parse(cfg.RetuneMaxFee)
	if err != nil {
		return nil, fmt.Errorf("retune-max-fee: %w", err)
	}
	threshold, err := fixedpoint.Parse(cfg.RetuneThreshold)
	if err != nil {
		return nil, fmt.Errorf("retune-threshold: %w", err)
	}
	caller, err := config.ParseAddress(cfg.RetuneCaller)
	if err != nil {
		return nil, fmt.Errorf("retune-caller: %w", err)
	}
	return &simulate.Retune{
		AfterPhase: cfg.RetuneAfter,
		MinFee:     minFee,
		MaxFee:     maxFee,
		Threshold:  threshold,
		Caller:     caller,
	}, nil
}
