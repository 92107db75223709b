package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/sugawarayuuta/sonnet"
	"go.uber.org/zap"

	"logsync/internal/config"
	"logsync/internal/kv"
	"logsync/internal/logsync"
	"logsync/internal/model"
	"logsync/internal/storage"
)

const exportBatchSize = 1000

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored records by key prefix into JSONL",
		RunE:  runExport,
	}

	cmd.Flags().String("prefix", "", "key prefix, empty exports everything")
	cmd.Flags().String("out", "./data/export.jsonl", "output JSONL path")
	addStoreFlags(cmd)
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadStore(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := storage.OpenKV(cfg.Store, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	sink := storage.NewJsonlStorage(cfg.Out)
	batch := make([]model.StoredEntry, 0, exportBatchSize)
	total := 0

	err = store.Scan(cmd.Context(), cfg.Prefix, func(entry kv.Entry) error {
		if !sonnet.Valid(entry.Value) {
			return fmt.Errorf("stored value of %s is not valid JSON", entry.Key)
		}
		batch = append(batch, model.StoredEntry{Key: entry.Key, Value: entry.Value})
		if len(batch) < exportBatchSize {
			return nil
		}
		total += len(batch)
		err := sink.PutEntries(batch)
		batch = batch[:0]
		return err
	})
	if err != nil {
		return err
	}
	total += len(batch)
	if err := sink.PutEntries(batch); err != nil {
		return err
	}

	logger.Info("export complete", zap.String("prefix", cfg.Prefix), zap.Int("entries", total), zap.String("out", cfg.Out))
	return nil
}

func newCheckpointCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect or reset the sync checkpoint of a contract and event set",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the checkpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCheckpoint(cmd, func(ctx context.Context, checkpoints *logsync.CheckpointStore, key string, logger *zap.Logger) error {
				cp, ok, err := checkpoints.Load(ctx, key)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no checkpoint for %s", key)
				}
				return printJSON(cp)
			})
		},
	}

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Delete the checkpoint so the next sync starts from --start-block",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCheckpoint(cmd, func(ctx context.Context, checkpoints *logsync.CheckpointStore, key string, logger *zap.Logger) error {
				if err := checkpoints.Reset(ctx, key); err != nil {
					return err
				}
				logger.Info("checkpoint reset", zap.String("key", key))
				return nil
			})
		},
	}

	for _, sub := range []*cobra.Command{show, reset} {
		sub.Flags().String("address", "", "contract address")
		sub.Flags().StringSlice("event", nil, "event names (comma-separated)")
		addStoreFlags(sub)
		sub.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
		cmd.AddCommand(sub)
	}
	return cmd
}

func withCheckpoint(cmd *cobra.Command, fn func(context.Context, *logsync.CheckpointStore, string, *zap.Logger) error) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadStore(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	addresses, err := logsync.ParseAddresses([]string{cfg.Address})
	if err != nil {
		return err
	}
	if len(addresses) != 1 || len(cfg.Events) == 0 {
		return fmt.Errorf("address and at least one event are required")
	}

	store, err := storage.OpenKV(cfg.Store, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	key := logsync.CheckpointKey(addresses[0], cfg.Events)
	return fn(cmd.Context(), logsync.NewCheckpointStore(store), key, logger)
}
