package logsync

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"logsync/internal/abidef"
	"logsync/internal/model"
	"logsync/internal/topics"
)

// ErrInvalidRequest marks requests rejected before any network I/O.
var ErrInvalidRequest = errors.New("invalid sync request")

// KeyGenerator builds the storage key of a log from the record and the current nonce.
type KeyGenerator func(record model.LogRecord, nonce uint64) string

// SyncRequest asks for every new log of a contract's event set since the last sync.
type SyncRequest struct {
	ContractAddress common.Address
	ABI             abidef.ABI
	EventNames      []string
	// StartBlock is used only when no checkpoint exists yet.
	StartBlock uint64
	// IndexedValues holds per-event indexed parameter values. A nil value leaves its slot
	// unfiltered; a []interface{} value is OR-matched.
	IndexedValues map[string][]interface{}
	// Filter is merged over the computed topics; slot 0 is always computed.
	Filter topics.TopicFilter
	// KeyGenerator defaults to BlockNonceKey.
	KeyGenerator KeyGenerator
}

// SyncResult summarises one sync call.
type SyncResult struct {
	SyncedLogs int      `json:"synced_logs"`
	FromBlock  uint64   `json:"from_block"`
	ToBlock    uint64   `json:"to_block"`
	NextNonce  uint64   `json:"next_nonce"`
	Skipped    []uint64 `json:"skipped_blocks,omitempty"`
}

func (r SyncRequest) validate() error {
	if r.ContractAddress == (common.Address{}) {
		return fmt.Errorf("%w: contract address is required", ErrInvalidRequest)
	}
	_, err := resolveEvents(r.ABI, r.EventNames)
	return err
}

func resolveEvents(parsed abidef.ABI, names []string) ([]abidef.Entry, error) {
	if len(parsed.Entries) == 0 {
		return nil, fmt.Errorf("%w: abi is required", ErrInvalidRequest)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: at least one event name is required", ErrInvalidRequest)
	}
	events, err := parsed.EventsNamed(names)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return events, nil
}

// BuildFilter derives the topic filter for the named events, falling back to signature
// hashes only when values name no usable event, then overlays the caller filter.
func BuildFilter(parsed abidef.ABI, names []string, values map[string][]interface{}, caller topics.TopicFilter) (topics.TopicFilter, error) {
	events, err := resolveEvents(parsed, names)
	if err != nil {
		return nil, err
	}

	if len(values) > 0 {
		filter, ok, err := topics.BuildForEventMap(parsed, names, values)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		if ok {
			return topics.Merge(filter, caller), nil
		}
	}

	filter, err := topics.SignatureFilter(events)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return topics.Merge(filter, caller), nil
}

// BlockNonceKey is the default key: "<blockNumber>_<nonce>". Re-syncing a range writes new
// keys, so delivery is at-least-once.
func BlockNonceKey(record model.LogRecord, nonce uint64) string {
	return strconv.FormatUint(record.BlockNumber, 10) + "_" + strconv.FormatUint(nonce, 10)
}

// TxLogKey ignores the nonce and keys a log by "<address>_<txHash>_<logIndex>", so
// re-synced logs overwrite themselves.
func TxLogKey(record model.LogRecord, _ uint64) string {
	return strings.ToLower(record.Address) + "_" + strings.ToLower(record.TxHash) + "_" + strconv.FormatUint(record.LogIndex, 10)
}

// CheckpointKey is "sync_checkpoint:<lowercase address>:<sorted event names>".
func CheckpointKey(address common.Address, eventNames []string) string {
	names := append([]string(nil), eventNames...)
	sort.Strings(names)
	return "sync_checkpoint:" + strings.ToLower(address.Hex()) + ":" + strings.Join(names, ",")
}

// ParseAddresses converts string addresses into common.Address.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !common.IsHexAddress(input) {
			return nil, fmt.Errorf("%w: invalid address: %s", ErrInvalidRequest, input)
		}
		addresses = append(addresses, common.HexToAddress(input))
	}
	return addresses, nil
}
