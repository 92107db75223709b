package model

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// LogRecord is a chain log as persisted by the syncer. Decoded records carry the event name,
// signature and arguments; undecodable ones keep the raw fields with Decoded=false and
// Args=nil.
type LogRecord struct {
	BlockNumber uint64     `json:"block_number"`
	BlockHash   string     `json:"block_hash"`
	TxHash      string     `json:"tx_hash"`
	TxIndex     uint64     `json:"tx_index"`
	LogIndex    uint64     `json:"log_index"`
	Address     string     `json:"address"`
	Topics      []string   `json:"topics"`
	Data        string     `json:"data"`
	Removed     bool       `json:"removed"`
	Decoded     bool       `json:"decoded"`
	Name        string     `json:"name,omitempty"`
	Signature   string     `json:"signature,omitempty"`
	Args        []EventArg `json:"args"`
	DecodeError string     `json:"decode_error,omitempty"`
}

// EventArg is one decoded event argument in declaration order.
type EventArg struct {
	Name    string      `json:"name"`
	Type    string      `json:"type"`
	Indexed bool        `json:"indexed"`
	Value   interface{} `json:"value"`
}

// NewLogRecord copies the raw fields of a provider log.
func NewLogRecord(log types.Log) LogRecord {
	topics := make([]string, 0, len(log.Topics))
	for _, topic := range log.Topics {
		topics = append(topics, topic.Hex())
	}

	return LogRecord{
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash.Hex(),
		TxHash:      log.TxHash.Hex(),
		TxIndex:     uint64(log.TxIndex),
		LogIndex:    uint64(log.Index),
		Address:     log.Address.Hex(),
		Topics:      topics,
		Data:        hexutil.Encode(log.Data),
		Removed:     log.Removed,
	}
}

// Arg returns the value of the named argument.
func (lr LogRecord) Arg(name string) (interface{}, bool) {
	for _, arg := range lr.Args {
		if arg.Name == name {
			return arg.Value, true
		}
	}
	return nil, false
}
