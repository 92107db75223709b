package logsync

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	defaultRetryBackoff = 100 * time.Millisecond
	maxRetryBackoff     = 30 * time.Second
)

// latestBlock reads the chain head, retrying up to MaxRetries times with a doubling
// backoff capped at maxRetryBackoff. It is the only read a sync call retries; log and
// checkpoint writes fail the call directly.
func (s *Syncer) latestBlock(ctx context.Context) (uint64, error) {
	retries := s.cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	backoff := s.cfg.RetryBackoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}

	for attempt := 0; ; attempt++ {
		head, err := s.client.LatestBlockNumber(ctx)
		if err == nil {
			return head, nil
		}
		if attempt >= retries || ctx.Err() != nil {
			return 0, err
		}

		s.metrics.HeadRetries().Inc(1)
		s.logger.Warn("get latest block failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
		)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return 0, ctx.Err()
		case <-timer.C:
		}

		if backoff *= 2; backoff > maxRetryBackoff {
			backoff = maxRetryBackoff
		}
	}
}
