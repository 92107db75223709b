package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/sugawarayuuta/sonnet"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"logsync/internal/abidef"
	"logsync/internal/chain"
	"logsync/internal/config"
	"logsync/internal/fetcher"
	"logsync/internal/logsync"
	"logsync/internal/storage"
)

func main() {
	root := &cobra.Command{
		Use:          "logsync",
		Short:        "Resumable EVM contract event log sync",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync new logs of a contract into the key-value store",
		RunE:  runSync,
	}

	syncCmd.Flags().String("rpc", "", "EVM RPC URL")
	syncCmd.Flags().String("address", "", "contract address")
	syncCmd.Flags().String("abi", "erc20", "ABI JSON file or preset (erc20)")
	syncCmd.Flags().StringSlice("event", nil, "event names (comma-separated)")
	syncCmd.Flags().StringToString("indexed", nil, "indexed values per event, e.g. Transfer=0xabc;*")
	syncCmd.Flags().Uint64("start-block", 0, "first block when no checkpoint exists")
	syncCmd.Flags().Uint64("max-block-span", logsync.DefaultMaxBlockSpan, "maximum blocks per sync call")
	syncCmd.Flags().String("key-scheme", "block", "storage key scheme (block, tx)")
	syncCmd.Flags().Duration("interval", 0, "repeat sync at this interval, 0 runs once")
	syncCmd.Flags().Int("max-retries", 5, "maximum retry attempts for the head query")
	syncCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	addFetchPolicyFlags(syncCmd)
	addStoreFlags(syncCmd)
	syncCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(syncCmd)
	root.AddCommand(newFetchCmd())
	root.AddCommand(newTopicsCmd())
	root.AddCommand(newExportCmd())
	root.AddCommand(newCheckpointCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addFetchPolicyFlags(cmd *cobra.Command) {
	cmd.Flags().Uint64("initial-batch-size", fetcher.DefaultInitialBatchSize, "initial and maximum blocks per range query")
	cmd.Flags().Uint64("min-batch-size", fetcher.DefaultMinBatchSize, "window size below which failures isolate single blocks")
	cmd.Flags().Duration("retry-delay", 0, "pause after a failed range query")
}

func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("store", "sqlite", "key-value backend (memory, sqlite, leveldb, postgres, mongo)")
	cmd.Flags().String("store-path", "./data/logsync.db", "sqlite file or leveldb directory")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN")
	cmd.Flags().String("mongo-uri", "mongodb://localhost:27017", "MongoDB URI")
	cmd.Flags().String("mongo-database", "logsync", "MongoDB database")
	cmd.Flags().String("table", "kv_store", "table or collection shared by all records")
	cmd.Flags().Int("cache-size", 0, "LRU read cache entries, 0 disables")
}

func runSync(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSync(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	addresses, err := logsync.ParseAddresses([]string{cfg.Address})
	if err != nil {
		return err
	}
	if len(addresses) != 1 {
		return fmt.Errorf("exactly one contract address is required")
	}
	parsed, err := abidef.Load(cfg.ABI)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	store, err := storage.OpenKV(cfg.Store, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	syncer := logsync.NewSyncer(logsync.Config{
		MaxBlockSpan: cfg.MaxBlockSpan,
		Policy:       fetchPolicy(cfg.Fetch),
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, chainClient, store, logger)

	req := logsync.SyncRequest{
		ContractAddress: addresses[0],
		ABI:             parsed,
		EventNames:      cfg.Events,
		StartBlock:      cfg.StartBlock,
		IndexedValues:   cfg.Indexed,
	}
	if cfg.KeyScheme == "tx" {
		req.KeyGenerator = logsync.TxLogKey
	}

	logger.Info("sync start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("address", addresses[0].Hex()),
		zap.Strings("events", cfg.Events),
		zap.Uint64("start_block", cfg.StartBlock),
		zap.String("store", cfg.Store.Backend),
		zap.String("key_scheme", cfg.KeyScheme),
		zap.Duration("interval", cfg.Interval),
	)

	if cfg.Interval > 0 {
		err := syncer.Run(ctx, req, cfg.Interval, func(result logsync.SyncResult) {
			logger.Info("sync result",
				zap.Int("synced_logs", result.SyncedLogs),
				zap.Uint64("from", result.FromBlock),
				zap.Uint64("to", result.ToBlock),
				zap.Uint64("next_nonce", result.NextNonce),
			)
			logMetrics(logger)
		})
		if err == context.Canceled {
			return nil
		}
		return err
	}

	result, err := syncer.SyncLogs(ctx, req)
	if err != nil {
		return err
	}
	logMetrics(logger)
	return printJSON(result)
}

func fetchPolicy(p config.FetchPolicy) fetcher.Policy {
	return fetcher.Policy{
		InitialBatchSize: p.InitialBatchSize,
		MinBatchSize:     p.MinBatchSize,
		RetryDelay:       p.RetryDelay,
	}
}

func printJSON(v interface{}) error {
	data, err := sonnet.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(data))
	return err
}

// logMetrics writes a snapshot of the registered counters and timers.
func logMetrics(logger *zap.Logger) {
	metrics.DefaultRegistry.Each(func(name string, m interface{}) {
		switch typed := m.(type) {
		case metrics.Counter:
			logger.Debug("metric", zap.String("name", name), zap.Int64("count", typed.Count()))
		case metrics.Gauge:
			logger.Debug("metric", zap.String("name", name), zap.Int64("value", typed.Value()))
		case metrics.Meter:
			logger.Debug("metric", zap.String("name", name), zap.Int64("count", typed.Count()))
		case metrics.Timer:
			snapshot := typed.Snapshot()
			logger.Debug("metric",
				zap.String("name", name),
				zap.Int64("count", snapshot.Count()),
				zap.Duration("mean", time.Duration(snapshot.Mean())),
				zap.Duration("p99", time.Duration(snapshot.Percentile(0.99))),
			)
		}
	})
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
