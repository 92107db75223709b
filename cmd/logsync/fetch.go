package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"logsync/internal/abidef"
	"logsync/internal/chain"
	"logsync/internal/config"
	"logsync/internal/logsync"
	"logsync/internal/storage"
)

func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch and decode logs of an explicit block range into JSONL",
		RunE:  runFetch,
	}

	cmd.Flags().String("rpc", "", "EVM RPC URL")
	cmd.Flags().StringSlice("address", nil, "contract addresses (comma-separated)")
	cmd.Flags().String("abi", "erc20", "ABI JSON file or preset (erc20)")
	cmd.Flags().StringSlice("event", nil, "event names (comma-separated)")
	cmd.Flags().StringToString("indexed", nil, "indexed values per event, e.g. Transfer=0xabc;*")
	cmd.Flags().Uint64("from", 0, "start block (inclusive)")
	cmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	cmd.Flags().String("out", "./data/logs.jsonl", "output JSONL path")
	addFetchPolicyFlags(cmd)
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	return cmd
}

func runFetch(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFetch(cfgFile, cmd.Flags())
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
	addresses, err := logsync.ParseAddresses(cfg.Addresses)
	if err != nil {
		return err
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

	to := cfg.ToBlock
	if to == 0 {
		latest, err := chainClient.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	helper := logsync.NewHelper(chainClient, fetchPolicy(cfg.Fetch), logger)
	result, err := helper.GetContractLogs(ctx, logsync.LogQuery{
		Addresses:     addresses,
		ABI:           parsed,
		EventNames:    cfg.Events,
		IndexedValues: cfg.Indexed,
		FromBlock:     cfg.FromBlock,
		ToBlock:       to,
	})
	if err != nil {
		return err
	}

	if err := storage.NewJsonlStorage(cfg.Out).PutLogBatch(result.Records); err != nil {
		return fmt.Errorf("store logs: %w", err)
	}

	logger.Info("fetch complete",
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", to),
		zap.Int("logs", len(result.Records)),
		zap.Uint64s("skipped_blocks", result.Skipped),
		zap.String("out", cfg.Out),
	)
	logMetrics(logger)
	return nil
}

func newTopicsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topics",
		Short: "Print the topic filter computed for events and indexed values",
		RunE:  runTopics,
	}

	cmd.Flags().String("abi", "erc20", "ABI JSON file or preset (erc20)")
	cmd.Flags().StringSlice("event", nil, "event names (comma-separated)")
	cmd.Flags().StringToString("indexed", nil, "indexed values per event, e.g. Transfer=0xabc;*")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	return cmd
}

func runTopics(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadTopics(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	parsed, err := abidef.Load(cfg.ABI)
	if err != nil {
		return err
	}

	filter, err := logsync.BuildFilter(parsed, cfg.Events, cfg.Indexed, nil)
	if err != nil {
		return err
	}
	return printJSON(filter)
}
