package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dynamicFee/internal/chain"
	"dynamicFee/internal/config"
	"dynamicFee/internal/fee"
	"dynamicFee/internal/metrics"
	"dynamicFee/internal/notify"
	"dynamicFee/internal/replay"
	"dynamicFee/internal/storage"
	"dynamicFee/internal/storage/postgres"
)

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Input == "" {
		return fmt.Errorf("input path is required")
	}

	feeCfg, err := cfg.Engine.FeeConfig()
	if err != nil {
		return err
	}

	recomputeFrom, err := config.ParseTimestamp(cfg.RecomputeFrom)
	if err != nil {
		return fmt.Errorf("parse recompute-from: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var source replay.DecimalsSource
	if cfg.RPCURL != "" {
		chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()
		source = chainClient
	}

	var (
		registry   replay.PoolRegistry
		stateStore replay.StateStore
		sinks      []*notify.Sink
	)
	sinkCfg := notify.SinkConfig{
		BatchSize:  cfg.BatchSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryBackoff,
	}
	if cfg.Out != "" {
		sinks = append(sinks, notify.NewSink(storage.NewJsonlStorage(cfg.Out), sinkCfg, logger))
	}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		registry = store
		stateStore = &replay.DBStateStore{Store: store, Name: cfg.StateName}
		sinks = append(sinks, notify.NewSink(store, sinkCfg, logger))
	}
	if cfg.StateFile != "" {
		stateStore = &replay.FileStateStore{Path: cfg.StateFile}
	}

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	notifiers := notify.Multi{collector}
	for _, sink := range sinks {
		notifiers = append(notifiers, sink)
	}
	feeCfg.Notifier = notifiers

	engine, err := fee.NewEngine(feeCfg, logger)
	if err != nil {
		return err
	}

	stopMetrics := startMetrics(cfg.MetricsAddr, reg, logger)
	defer stopMetrics()

	logger.Info("replay start",
		zap.String("input", cfg.Input),
		zap.String("out", cfg.Out),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.String("state_file", cfg.StateFile),
		zap.Int("workers", cfg.Workers),
		zap.Uint64("recompute_from", recomputeFrom),
		zap.String("min_fee", cfg.Engine.MinFee),
		zap.String("max_fee", cfg.Engine.MaxFee),
		zap.String("volatility_threshold", cfg.Engine.VolatilityThreshold),
		zap.Duration("half_life", cfg.Engine.HalfLife),
	)

	r := replay.NewReplayer(replay.Config{
		Workers:         cfg.Workers,
		DefaultDecimals: cfg.DefaultDecimals,
		RecomputeFrom:   recomputeFrom,
		StateStore:      stateStore,
	}, engine, registry, source, collector, logger)

	_, runErr := r.Run(ctx, cfg.Input)

	// flush on a fresh context so buffered changes survive an interrupt
	for _, sink := range sinks {
		if err := sink.Flush(context.WithoutCancel(ctx)); err != nil {
			logger.Error("flush fee changes", zap.Error(err))
			if runErr == nil {
				runErr = err
			}
		}
	}
	collector.PoolsRegistered.Set(float64(engine.PoolCount()))
	return runErr
}
