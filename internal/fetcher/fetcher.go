package fetcher

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"logsync/internal/topics"
)

// LogFilterer is the range log query of the RPC transport.
type LogFilterer interface {
	FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)
}

// Query describes one inclusive block range to walk.
type Query struct {
	Addresses []common.Address
	Topics    topics.TopicFilter
	FromBlock uint64
	ToBlock   uint64
}

// Result holds the logs of a walk in fetch order plus the blocks given up on.
type Result struct {
	Logs    []types.Log
	Skipped []uint64
	Queries int
}

// Fetcher walks block ranges in adaptively sized windows.
type Fetcher struct {
	client  LogFilterer
	policy  Policy
	logger  *zap.Logger
	metrics Metrics
}

// New builds a Fetcher. Zero policy fields fall back to the defaults.
func New(client LogFilterer, policy Policy, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		client: client,
		policy: policy.normalized(),
		logger: logger,
	}
}

// Policy returns the effective window policy.
func (f *Fetcher) Policy() Policy {
	return f.policy
}

// Fetch queries [FromBlock, ToBlock] window by window. Failed windows shrink and are retried
// from the same block; a block that fails on its own is logged, recorded in Result.Skipped
// and its logs are lost. Only an invalid range or context cancellation return an error.
func (f *Fetcher) Fetch(ctx context.Context, q Query) (Result, error) {
	if f.client == nil {
		return Result{}, fmt.Errorf("log filterer is nil")
	}
	if q.FromBlock > q.ToBlock {
		return Result{}, fmt.Errorf("%w: from=%d to=%d", ErrInvalidRange, q.FromBlock, q.ToBlock)
	}

	var result Result
	step := f.policy.Start(q.FromBlock)
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		from, to := f.policy.Window(step, q.ToBlock)
		logs, err := f.query(ctx, q, from, to)
		result.Queries++
		if err != nil && ctx.Err() != nil {
			return result, ctx.Err()
		}

		next, transition := f.policy.Next(step, q.ToBlock, err == nil)
		f.metrics.Transition(transition).Inc(1)

		switch transition {
		case Advanced, Grown:
			result.Logs = append(result.Logs, logs...)
			f.metrics.Logs().Mark(int64(len(logs)))
			f.logger.Debug("range fetched",
				zap.Uint64("from", from),
				zap.Uint64("to", to),
				zap.Int("logs", len(logs)),
				zap.Uint64("next_batch_size", next.BatchSize),
			)
		case Shrunk:
			f.logger.Warn("filter logs failed, shrinking window",
				zap.Error(err),
				zap.Uint64("from", from),
				zap.Uint64("to", to),
				zap.Uint64("batch_size", next.BatchSize),
			)
		case Skipped:
			result.Skipped = append(result.Skipped, step.Current)
			f.logger.Warn("skip unrecoverable block", zap.Error(err), zap.Uint64("block_number", step.Current))
		}

		if err != nil {
			if waitErr := f.wait(ctx); waitErr != nil {
				return result, waitErr
			}
		}

		if to == q.ToBlock && transition != Shrunk {
			return result, nil
		}
		step = next
	}
}

func (f *Fetcher) query(ctx context.Context, q Query, from, to uint64) ([]types.Log, error) {
	start := time.Now()
	defer f.metrics.Query().UpdateSince(start)

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: q.Addresses,
		Topics:    [][]common.Hash(q.Topics),
	}
	logs, err := f.client.FilterLogs(ctx, query)
	if err != nil {
		f.metrics.Failed().Inc(1)
	}
	return logs, err
}

func (f *Fetcher) wait(ctx context.Context) error {
	if f.policy.RetryDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(f.policy.RetryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
