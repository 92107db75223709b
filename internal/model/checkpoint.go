package model

import "github.com/sugawarayuuta/sonnet"

// SyncCheckpoint is the resume state of one (contract, event set) sync.
type SyncCheckpoint struct {
	StartBlock uint64 `json:"start_block"`
	Nonce      uint64 `json:"nonce"`
	LastSync   string `json:"last_sync"`
}

// StoredEntry is one raw key/value pair read back from a key-value store. Value holds the
// stored JSON bytes unchanged.
type StoredEntry struct {
	Key   string            `json:"key"`
	Value sonnet.RawMessage `json:"value"`
}
