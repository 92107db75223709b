package logsync

import (
	"context"
	"fmt"
	"time"

	"logsync/internal/kv"
	"logsync/internal/model"
)

// CheckpointStore persists sync checkpoints in the key-value store shared with the logs.
type CheckpointStore struct {
	store kv.Store
}

func NewCheckpointStore(store kv.Store) *CheckpointStore {
	return &CheckpointStore{store: store}
}

func (c *CheckpointStore) Load(ctx context.Context, key string) (model.SyncCheckpoint, bool, error) {
	var cp model.SyncCheckpoint
	ok, err := kv.GetJSON(ctx, c.store, key, &cp)
	if err != nil {
		return model.SyncCheckpoint{}, false, fmt.Errorf("load checkpoint: %w", err)
	}
	return cp, ok, nil
}

// Save overwrites the checkpoint. It is not retried.
func (c *CheckpointStore) Save(ctx context.Context, key string, startBlock, nonce uint64) (model.SyncCheckpoint, error) {
	cp := model.SyncCheckpoint{
		StartBlock: startBlock,
		Nonce:      nonce,
		LastSync:   time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := kv.PutJSON(ctx, c.store, key, cp); err != nil {
		return model.SyncCheckpoint{}, fmt.Errorf("save checkpoint: %w", err)
	}
	return cp, nil
}

// Reset deletes the checkpoint so the next sync starts from the request's start block.
func (c *CheckpointStore) Reset(ctx context.Context, key string) error {
	if err := c.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("reset checkpoint: %w", err)
	}
	return nil
}
