package main

import (
	"context"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"dynamicFee/internal/fee"
	"dynamicFee/internal/metrics"
)

func main() {
	root := &cobra.Command{
		Use:          "feehook",
		Short:        "Volatility-driven dynamic pool fees",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay decoded swap events through the fee engine",
		RunE:  runReplay,
	}

	addEngineFlags(replayCmd.Flags())
	replayCmd.Flags().String("rpc", "", "RPC URL for token decimals lookups (optional)")
	replayCmd.Flags().String("in", "", "input typed events JSONL")
	replayCmd.Flags().String("out", "./data/fee_changes.jsonl", "fee changes JSONL output, empty disables")
	replayCmd.Flags().String("pg-dsn", "", "Postgres DSN (optional)")
	replayCmd.Flags().String("state-file", "", "local engine state file; defaults to Postgres state when pg-dsn is set")
	replayCmd.Flags().String("state-name", "fee_engine", "state row name in Postgres")
	replayCmd.Flags().String("recompute-from", "", "ignore saved state and replay from timestamp (unix seconds or RFC3339)")
	replayCmd.Flags().Int("workers", 4, "pools replayed concurrently")
	replayCmd.Flags().Uint8("default-decimals", 18, "token decimals when unknown")
	replayCmd.Flags().Int("batch-size", 200, "fee changes per storage write")
	replayCmd.Flags().Int("max-retries", 3, "storage write retry attempts")
	replayCmd.Flags().Duration("retry-backoff", 200*time.Millisecond, "initial storage retry backoff")
	replayCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9102)")

	root.AddCommand(replayCmd)

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Drive a synthetic pool through scripted swap phases",
		RunE:  runSimulate,
	}

	addEngineFlags(simulateCmd.Flags())
	simulateCmd.Flags().String("start", "1700000000", "first swap timestamp (unix seconds or RFC3339)")
	simulateCmd.Flags().String("retune-after", "", "phase after which the parameters are replaced (steady, swings, mixed, calm)")
	simulateCmd.Flags().String("retune-min-fee", "0.005", "replacement min fee")
	simulateCmd.Flags().String("retune-max-fee", "0.1", "replacement max fee")
	simulateCmd.Flags().String("retune-threshold", "1", "replacement volatility threshold")
	simulateCmd.Flags().String("retune-caller", "", "caller for the retune, defaults to owner")
	simulateCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9102)")

	root.AddCommand(simulateCmd)

	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Fetch raw pool swap logs into JSONL",
		RunE:  runIndex,
	}

	indexCmd.Flags().String("rpc", "", "RPC URL")
	indexCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	indexCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means head minus confirmations")
	indexCmd.Flags().Uint64("confirmations", 0, "blocks to stay behind the head when to is 0")
	indexCmd.Flags().StringSlice("address", nil, "pool addresses (comma-separated)")
	indexCmd.Flags().StringSlice("topic0", nil, "topic0 filters (comma-separated), defaults to the Swap signature")
	indexCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	indexCmd.Flags().String("out", "./data/logs.jsonl", "output JSONL path")
	indexCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path, empty disables")
	indexCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	indexCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	indexCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(indexCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode raw swap logs into replay input",
		RunE:  runDecode,
	}

	decodeCmd.Flags().String("rpc", "", "RPC URL for pool and token metadata")
	decodeCmd.Flags().String("in", "", "input raw logs JSONL")
	decodeCmd.Flags().String("out", "./data/typed_events.jsonl", "output typed events JSONL")
	decodeCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL, empty disables")
	decodeCmd.Flags().String("topic0-map", "", "extra swap topic0 aliases (comma-separated topic0=Swap)")
	decodeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(decodeCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addEngineFlags(flags *pflag.FlagSet) {
	flags.String("min-fee", "0.01", "minimum fee as a fraction")
	flags.String("max-fee", "0.05", "maximum fee as a fraction")
	flags.String("volatility-threshold", "1", "volatility at which the fee reaches max-fee")
	flags.String("owner", "0x0000000000000000000000000000000000000000", "address allowed to change parameters")
	flags.Duration("half-life", fee.DefaultHalfLife, "volatility decay half-life")
	flags.String("alpha", fee.DefaultAlpha, "weight of the newest price move")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// startMetrics serves reg on addr until the returned stop is called.
func startMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) func() {
	server := metrics.NewServer(addr, reg)
	if server == nil {
		return func() {}
	}
	go func() {
		if err := server.Start(); err != nil {
			logger.Warn("metrics server", zap.Error(err))
		}
	}()
	logger.Info("metrics listening", zap.String("addr", addr))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Stop(ctx); err != nil {
			logger.Warn("metrics shutdown", zap.Error(err))
		}
	}
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
