package logsync

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"logsync/internal/fetcher"
)

func TestGetContractLogsMultiEvent(t *testing.T) {
	parsed := erc20(t)
	chain := &fakeChain{
		logs: []types.Log{
			eventLog(t, parsed, "Transfer", 10, 0, alice, bob, 1),
			eventLog(t, parsed, "Approval", 11, 0, alice, bob, 2),
			eventLog(t, parsed, "Transfer", 12, 0, bob, alice, 3),
		},
	}
	helper := NewHelper(chain, fetcher.Policy{InitialBatchSize: 5, MinBatchSize: 1}, zap.NewNop())

	result, err := helper.GetContractLogs(context.Background(), LogQuery{
		Addresses:  []common.Address{token},
		ABI:        parsed,
		EventNames: []string{"Transfer", "Approval"},
		IndexedValues: map[string][]interface{}{
			"Transfer": {alice.Hex()},
			"Approval": {alice.Hex()},
		},
		FromBlock: 0,
		ToBlock:   20,
	})
	if err != nil {
		t.Fatalf("get logs: %v", err)
	}

	if len(result.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(result.Records))
	}
	if result.Records[0].Name != "Transfer" || result.Records[1].Name != "Approval" {
		t.Fatalf("records mismatch: %+v", result.Records)
	}
	if len(result.Filter.Slot(0)) != 2 || result.Filter.Slot(1)[0] != addressTopic(alice) {
		t.Fatalf("filter mismatch: %v", result.Filter)
	}
	if len(chain.queries) != 5 {
		t.Fatalf("expected 5 windows, got %d", len(chain.queries))
	}
}

func TestGetContractLogsValidation(t *testing.T) {
	parsed := erc20(t)
	helper := NewHelper(&fakeChain{}, fetcher.DefaultPolicy(), nil)

	_, err := helper.GetContractLogs(context.Background(), LogQuery{
		Addresses: []common.Address{token}, ABI: parsed, EventNames: []string{"Transfer"}, FromBlock: 10, ToBlock: 5,
	})
	if !errors.Is(err, fetcher.ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}

	_, err = helper.GetContractLogs(context.Background(), LogQuery{ABI: parsed, EventNames: []string{"Transfer"}})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestReceiptLogs(t *testing.T) {
	parsed := erc20(t)
	transfer := eventLog(t, parsed, "Transfer", 10, 0, alice, bob, 1)
	approval := eventLog(t, parsed, "Approval", 10, 1, alice, bob, 2)
	garbage := types.Log{Address: token, Topics: []common.Hash{common.HexToHash("0xdead")}, BlockNumber: 10, Index: 2}

	txHash := common.HexToHash("0x01")
	chain := &fakeChain{receipts: map[common.Hash]*types.Receipt{
		txHash: {Logs: []*types.Log{&transfer, &approval, &garbage}},
	}}
	helper := NewHelper(chain, fetcher.DefaultPolicy(), nil)

	records, err := helper.ReceiptLogs(context.Background(), chain, txHash, parsed, []string{"Transfer"})
	if err != nil {
		t.Fatalf("receipt logs: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected transfer plus undecoded log, got %+v", records)
	}
	if !records[0].Decoded || records[0].Name != "Transfer" {
		t.Fatalf("transfer not decoded: %+v", records[0])
	}
	if records[1].Decoded || records[1].Args != nil {
		t.Fatalf("unknown log should stay undecoded: %+v", records[1])
	}

	if _, err := helper.ReceiptLogs(context.Background(), chain, common.HexToHash("0x02"), parsed, []string{"Transfer"}); err == nil {
		t.Fatalf("expected missing receipt error")
	}
}
