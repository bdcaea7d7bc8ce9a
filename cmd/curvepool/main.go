package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "curvepool",
		Short:        "Bonding curve pool simulator, quoter and event indexer",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	root.AddCommand(
		newIndexCmd(),
		newDecodeCmd(),
		newAggregateCmd(),
		newSimulateCmd(),
		newQuoteCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index curve pool logs from an RPC endpoint",
		RunE:  runIndex,
	}

	cmd.Flags().String("rpc", "", "RPC URL")
	cmd.Flags().Uint64("from", 0, "start block (inclusive)")
	cmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	cmd.Flags().StringSlice("address", nil, "pool addresses (comma-separated)")
	cmd.Flags().StringSlice("topic0", nil, "topic0 hashes or event names (comma-separated), default all pool events")
	cmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	cmd.Flags().String("out", "./data/logs.jsonl", "output JSONL path")
	cmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	cmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().Int("timestamp-concurrency", 8, "parallel block timestamp reads")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	return cmd
}

func newDecodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode raw pool logs into typed events",
		RunE:  runDecode,
	}

	cmd.Flags().String("rpc", "", "RPC URL for pool metadata and reserves")
	cmd.Flags().String("in", "", "input raw logs JSONL")
	cmd.Flags().String("out", "./data/typed_events.jsonl", "output typed events JSONL")
	cmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	cmd.Flags().String("topic0-map", "", "extra topic0->event mappings (comma-separated key=value)")
	cmd.Flags().Bool("include-reserves", false, "read pool reserves at each event block (requires archive RPC for historical accuracy)")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	return cmd
}

func newAggregateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate typed events into window metrics",
		RunE:  runAggregate,
	}

	cmd.Flags().String("rpc", "", "optional RPC URL for token decimals")
	cmd.Flags().String("in", "", "input typed events JSONL")
	cmd.Flags().String("window", "5m", "aggregation window (e.g. 1m, 5m, 1h)")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN")
	cmd.Flags().Int("batch-size", 1000, "batch size for DB writes")
	cmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	cmd.Flags().String("recompute-from", "", "recompute from timestamp (unix seconds or RFC3339)")
	cmd.Flags().String("platform", "", "platform fee sink address, attributes fee sweeps by sender")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	return cmd
}

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a YAML pool scenario and write its events",
		RunE:  runSimulate,
	}

	cmd.Flags().String("scenario", "", "scenario YAML path")
	cmd.Flags().String("out", "./data/simulated_events.jsonl", "output typed events JSONL")
	cmd.Flags().Bool("append", false, "append to the output file")
	cmd.Flags().String("pg-dsn", "", "optional Postgres DSN to keep balances in the ledger_balances table")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	return cmd
}

func newQuoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote prices and trade amounts on a curve",
		RunE:  runQuote,
	}

	cmd.Flags().Uint32("slope-numerator", 1_000_000, "slope numerator, m = numerator / 1e6")
	cmd.Flags().Uint8("exponent", 1, "curve exponent n")
	cmd.Flags().Uint8("fee-rate", 0, "owner fee rate in tenths of a percent")
	cmd.Flags().String("supply", "", "curve supply in raw units")
	cmd.Flags().String("quote-reserve", "", "quote reserve in raw units, used when supply is empty")
	cmd.Flags().String("amount", "", "trade size in raw units, e.g. 1e18")
	cmd.Flags().String("rpc", "", "RPC URL for live quotes")
	cmd.Flags().String("pool", "", "deployed pool address for live quotes")
	cmd.Flags().Uint64("block", 0, "block for live reads, 0 means latest")
	cmd.Flags().String("log-level", "warn", "log level (debug, info, warn, error)")
	return cmd
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

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
