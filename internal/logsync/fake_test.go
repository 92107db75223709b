package logsync

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"logsync/internal/abidef"
	"logsync/internal/kv"
)

var (
	token = common.HexToAddress("0x1111111111111111111111111111111111111111")
	alice = common.HexToAddress("0x2222222222222222222222222222222222222222")
	bob   = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

// fakeChain serves a fixed head and a fixed set of logs, honouring address and topic filters.
type fakeChain struct {
	head       uint64
	headErrors int
	logs       []types.Log
	receipts   map[common.Hash]*types.Receipt

	headCalls int
	queries   []ethereum.FilterQuery
}

func (c *fakeChain) LatestBlockNumber(context.Context) (uint64, error) {
	c.headCalls++
	if c.headErrors > 0 {
		c.headErrors--
		return 0, errors.New("connection refused")
	}
	return c.head, nil
}

func (c *fakeChain) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	c.queries = append(c.queries, q)
	from, to := q.FromBlock.Uint64(), q.ToBlock.Uint64()

	var out []types.Log
	for _, log := range c.logs {
		if log.BlockNumber < from || log.BlockNumber > to {
			continue
		}
		if len(q.Addresses) > 0 && !containsAddress(q.Addresses, log.Address) {
			continue
		}
		if !matchTopics(q.Topics, log.Topics) {
			continue
		}
		out = append(out, log)
	}
	return out, nil
}

func (c *fakeChain) TransactionReceipt(_ context.Context, txHash common.Hash) (*types.Receipt, error) {
	receipt, ok := c.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func containsAddress(list []common.Address, addr common.Address) bool {
	for _, a := range list {
		if a == addr {
			return true
		}
	}
	return false
}

func matchTopics(filter [][]common.Hash, topics []common.Hash) bool {
	for i, slot := range filter {
		if len(slot) == 0 {
			continue
		}
		if i >= len(topics) {
			return false
		}
		found := false
		for _, want := range slot {
			if topics[i] == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func erc20(t *testing.T) abidef.ABI {
	t.Helper()
	parsed, err := abidef.ERC20()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	return parsed
}

func addressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(common.LeftPadBytes(addr.Bytes(), 32))
}

// eventLog builds a Transfer or Approval log at block.
func eventLog(t *testing.T, parsed abidef.ABI, name string, block uint64, index uint, src, dst common.Address, value int64) types.Log {
	t.Helper()
	event := parsed.EthABI().Events[name]
	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(value))
	if err != nil {
		t.Fatalf("pack %s: %v", name, err)
	}
	return types.Log{
		Address:     token,
		Topics:      []common.Hash{event.ID, addressTopic(src), addressTopic(dst)},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.BigToHash(new(big.Int).SetUint64(block*1000 + uint64(index))),
		Index:       index,
	}
}

// failingStore fails every log write after the first failAfter ones.
type failingStore struct {
	*kv.Memory
	failAfter int
	writes    int
}

func (s *failingStore) Put(ctx context.Context, key string, value []byte) error {
	if !strings.HasPrefix(key, "sync_checkpoint:") {
		s.writes++
		if s.writes > s.failAfter {
			return errors.New("disk full")
		}
	}
	return s.Memory.Put(ctx, key, value)
}
