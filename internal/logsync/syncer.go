package logsync

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"logsync/internal/decoder"
	"logsync/internal/fetcher"
	"logsync/internal/kv"
)

// DefaultMaxBlockSpan caps the blocks covered by one sync call.
const DefaultMaxBlockSpan uint64 = 100000

// HeadReader reports the current chain head.
type HeadReader interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

// Transport is the RPC surface a Syncer needs.
type Transport interface {
	fetcher.LogFilterer
	HeadReader
}

// Config holds runtime settings for a Syncer.
type Config struct {
	MaxBlockSpan uint64
	Policy       fetcher.Policy
	MaxRetries   int
	RetryBackoff time.Duration
}

// Syncer resumes log syncs from checkpoints kept in a key-value store. Calls sharing a
// checkpoint key must be serialized by the caller.
type Syncer struct {
	cfg         Config
	client      Transport
	store       kv.Store
	fetcher     *fetcher.Fetcher
	checkpoints *CheckpointStore
	logger      *zap.Logger
	metrics     Metrics
}

// NewSyncer builds a Syncer with its dependencies.
func NewSyncer(cfg Config, client Transport, store kv.Store, logger *zap.Logger) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxBlockSpan == 0 {
		cfg.MaxBlockSpan = DefaultMaxBlockSpan
	}
	return &Syncer{
		cfg:         cfg,
		client:      client,
		store:       store,
		fetcher:     fetcher.New(client, cfg.Policy, logger),
		checkpoints: NewCheckpointStore(store),
		logger:      logger,
	}
}

// Checkpoints exposes the checkpoint store for inspection and reset.
func (s *Syncer) Checkpoints() *CheckpointStore {
	return s.checkpoints
}

// SyncLogs fetches, decodes and stores every log since the checkpoint of (address, events),
// then advances the checkpoint. The checkpoint is written only after all logs are stored,
// so a failed call leaves it untouched and can be retried.
func (s *Syncer) SyncLogs(ctx context.Context, req SyncRequest) (SyncResult, error) {
	if s.client == nil {
		return SyncResult{}, fmt.Errorf("chain client is nil")
	}
	if s.store == nil {
		return SyncResult{}, fmt.Errorf("store is nil")
	}
	if err := req.validate(); err != nil {
		return SyncResult{}, err
	}
	filter, err := BuildFilter(req.ABI, req.EventNames, req.IndexedValues, req.Filter)
	if err != nil {
		return SyncResult{}, err
	}
	dec, err := decoder.New(req.ABI, req.EventNames, s.logger)
	if err != nil {
		return SyncResult{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	keyFor := req.KeyGenerator
	if keyFor == nil {
		keyFor = BlockNonceKey
	}

	start := time.Now()
	s.metrics.Runs().Inc(1)
	defer s.metrics.Duration().UpdateSince(start)

	cpKey := CheckpointKey(req.ContractAddress, req.EventNames)
	from, nonce := req.StartBlock, uint64(0)
	cp, ok, err := s.checkpoints.Load(ctx, cpKey)
	if err != nil {
		s.metrics.Failed().Inc(1)
		return SyncResult{}, err
	}
	if ok {
		from, nonce = cp.StartBlock, cp.Nonce
		s.logger.Info("resume from checkpoint", zap.String("key", cpKey), zap.Uint64("from", from), zap.Uint64("nonce", nonce))
	}

	head, err := s.latestBlock(ctx)
	if err != nil {
		s.metrics.Failed().Inc(1)
		return SyncResult{}, fmt.Errorf("get latest block: %w", err)
	}
	s.metrics.Head().Update(int64(head))

	if from > head {
		s.logger.Info("nothing to sync", zap.Uint64("from", from), zap.Uint64("head", head))
		if !ok {
			if _, err := s.checkpoints.Save(ctx, cpKey, from, nonce); err != nil {
				s.metrics.Failed().Inc(1)
				return SyncResult{}, err
			}
		}
		return SyncResult{FromBlock: from, ToBlock: from - 1, NextNonce: nonce}, nil
	}
	to := boundedTo(from, head, s.cfg.MaxBlockSpan)

	fetched, err := s.fetcher.Fetch(ctx, fetcher.Query{
		Addresses: []common.Address{req.ContractAddress},
		Topics:    filter,
		FromBlock: from,
		ToBlock:   to,
	})
	if err != nil {
		s.metrics.Failed().Inc(1)
		return SyncResult{}, fmt.Errorf("fetch logs: %w", err)
	}

	records := dec.DecodeAll(fetched.Logs)
	for _, record := range records {
		key := keyFor(record, nonce)
		if err := kv.PutJSON(ctx, s.store, key, record); err != nil {
			s.metrics.Failed().Inc(1)
			return SyncResult{}, fmt.Errorf("store log %s: %w", key, err)
		}
		nonce++
	}
	s.metrics.Stored().Inc(int64(len(records)))

	if _, err := s.checkpoints.Save(ctx, cpKey, to+1, nonce); err != nil {
		s.metrics.Failed().Inc(1)
		return SyncResult{}, err
	}

	s.logger.Info("sync complete",
		zap.String("key", cpKey),
		zap.Uint64("from", from),
		zap.Uint64("to", to),
		zap.Int("logs", len(records)),
		zap.Int("skipped_blocks", len(fetched.Skipped)),
		zap.Uint64("next_nonce", nonce),
	)

	return SyncResult{
		SyncedLogs: len(records),
		FromBlock:  from,
		ToBlock:    to,
		NextNonce:  nonce,
		Skipped:    fetched.Skipped,
	}, nil
}

// Run calls SyncLogs every interval until ctx is cancelled. Store and input errors stop the
// loop; a sync that catches up to the head just waits for the next tick.
func (s *Syncer) Run(ctx context.Context, req SyncRequest, interval time.Duration, onResult func(SyncResult)) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be greater than zero")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		result, err := s.SyncLogs(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if onResult != nil {
			onResult(result)
		}

		// keep going without waiting while behind the head
		if result.ToBlock >= result.FromBlock && result.ToBlock-result.FromBlock+1 > s.cfg.MaxBlockSpan {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// boundedTo returns min(head, from+span).
func boundedTo(from, head, span uint64) uint64 {
	if span > math.MaxUint64-from {
		return head
	}
	if from+span < head {
		return from + span
	}
	return head
}
