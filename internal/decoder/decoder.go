package decoder

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"logsync/internal/abidef"
	"logsync/internal/model"
)

// Decoder turns raw provider logs into LogRecords for a set of target events.
type Decoder struct {
	abi     abi.ABI
	targets map[string]struct{}
	logger  *zap.Logger
}

// New builds a decoder for eventNames, which must all exist in the ABI.
func New(parsed abidef.ABI, eventNames []string, logger *zap.Logger) (*Decoder, error) {
	if len(eventNames) == 0 {
		return nil, fmt.Errorf("at least one event name is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ethABI := parsed.EthABI()
	targets := make(map[string]struct{}, len(eventNames))
	for _, name := range eventNames {
		if _, ok := ethABI.Events[name]; !ok {
			return nil, fmt.Errorf("event %q not found in abi", name)
		}
		targets[name] = struct{}{}
	}

	return &Decoder{abi: ethABI, targets: targets, logger: logger}, nil
}

// Decode converts one log. ok is false when the log decodes successfully to an event outside
// the targets; such logs are dropped. A log that fails to decode, target or not, is still
// returned with Decoded=false and nil Args.
func (d *Decoder) Decode(log types.Log) (model.LogRecord, bool) {
	record := model.NewLogRecord(log)

	event, err := d.eventFor(log)
	if err != nil {
		return d.undecoded(record, err), true
	}

	args, err := unpackArgs(event, log)
	if err != nil {
		return d.undecoded(record, err), true
	}
	if _, ok := d.targets[event.Name]; !ok {
		return model.LogRecord{}, false
	}

	record.Decoded = true
	record.Name = event.Name
	record.Signature = event.Sig
	record.Args = args
	return record, true
}

// DecodeAll decodes logs in order, dropping non-target events.
func (d *Decoder) DecodeAll(logs []types.Log) []model.LogRecord {
	records := make([]model.LogRecord, 0, len(logs))
	for _, log := range logs {
		record, ok := d.Decode(log)
		if !ok {
			continue
		}
		records = append(records, record)
	}
	return records
}

func (d *Decoder) eventFor(log types.Log) (*abi.Event, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("log has no topics")
	}
	return d.abi.EventByID(log.Topics[0])
}

func (d *Decoder) undecoded(record model.LogRecord, err error) model.LogRecord {
	d.logger.Debug("decode log failed",
		zap.Error(err),
		zap.Uint64("block_number", record.BlockNumber),
		zap.String("tx_hash", record.TxHash),
		zap.Uint64("log_index", record.LogIndex),
	)
	record.Decoded = false
	record.Args = nil
	record.DecodeError = err.Error()
	return record
}

func unpackArgs(event *abi.Event, log types.Log) ([]model.EventArg, error) {
	var indexed abi.Arguments
	for _, input := range event.Inputs {
		if input.Indexed {
			indexed = append(indexed, input)
		}
	}
	if len(log.Topics)-1 != len(indexed) {
		return nil, fmt.Errorf("topic count mismatch: event %s expects %d indexed, log has %d", event.Name, len(indexed), len(log.Topics)-1)
	}

	values := make(map[string]interface{}, len(event.Inputs))
	if err := event.Inputs.NonIndexed().UnpackIntoMap(values, log.Data); err != nil {
		return nil, fmt.Errorf("unpack data: %w", err)
	}
	if err := abi.ParseTopicsIntoMap(values, indexed, log.Topics[1:]); err != nil {
		return nil, fmt.Errorf("parse topics: %w", err)
	}

	args := make([]model.EventArg, 0, len(event.Inputs))
	for _, input := range event.Inputs {
		args = append(args, model.EventArg{
			Name:    input.Name,
			Type:    input.Type.String(),
			Indexed: input.Indexed,
			Value:   normalizeValue(values[input.Name]),
		})
	}
	return args, nil
}
