package logsync

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"logsync/internal/abidef"
	"logsync/internal/decoder"
	"logsync/internal/fetcher"
	"logsync/internal/model"
	"logsync/internal/topics"
)

// ReceiptReader loads transaction receipts.
type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// LogQuery is an explicit, uncheckpointed range query.
type LogQuery struct {
	Addresses     []common.Address
	ABI           abidef.ABI
	EventNames    []string
	IndexedValues map[string][]interface{}
	Filter        topics.TopicFilter
	FromBlock     uint64
	ToBlock       uint64
}

// LogResult holds the decoded logs of a LogQuery in fetch order.
type LogResult struct {
	Records []model.LogRecord
	Skipped []uint64
	Filter  topics.TopicFilter
}

// Helper runs one-off queries against a transport handle.
type Helper struct {
	fetcher *fetcher.Fetcher
	logger  *zap.Logger
}

func NewHelper(client fetcher.LogFilterer, policy fetcher.Policy, logger *zap.Logger) *Helper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Helper{
		fetcher: fetcher.New(client, policy, logger),
		logger:  logger,
	}
}

// GetContractLogs fetches and decodes the target events of q.Addresses over
// [FromBlock, ToBlock].
func (h *Helper) GetContractLogs(ctx context.Context, q LogQuery) (LogResult, error) {
	if q.FromBlock > q.ToBlock {
		return LogResult{}, fmt.Errorf("%w: from=%d to=%d", fetcher.ErrInvalidRange, q.FromBlock, q.ToBlock)
	}
	if len(q.Addresses) == 0 {
		return LogResult{}, fmt.Errorf("%w: at least one address is required", ErrInvalidRequest)
	}
	filter, err := BuildFilter(q.ABI, q.EventNames, q.IndexedValues, q.Filter)
	if err != nil {
		return LogResult{}, err
	}
	dec, err := decoder.New(q.ABI, q.EventNames, h.logger)
	if err != nil {
		return LogResult{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	fetched, err := h.fetcher.Fetch(ctx, fetcher.Query{
		Addresses: q.Addresses,
		Topics:    filter,
		FromBlock: q.FromBlock,
		ToBlock:   q.ToBlock,
	})
	if err != nil {
		return LogResult{}, err
	}

	return LogResult{
		Records: dec.DecodeAll(fetched.Logs),
		Skipped: fetched.Skipped,
		Filter:  filter,
	}, nil
}

// ReceiptLogs decodes the target events emitted by one transaction.
func (h *Helper) ReceiptLogs(ctx context.Context, reader ReceiptReader, txHash common.Hash, parsed abidef.ABI, eventNames []string) ([]model.LogRecord, error) {
	if _, err := resolveEvents(parsed, eventNames); err != nil {
		return nil, err
	}
	dec, err := decoder.New(parsed, eventNames, h.logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	receipt, err := reader.TransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, fmt.Errorf("get receipt %s: %w", txHash.Hex(), err)
	}

	logs := make([]types.Log, 0, len(receipt.Logs))
	for _, log := range receipt.Logs {
		if log != nil {
			logs = append(logs, *log)
		}
	}
	return dec.DecodeAll(logs), nil
}
