package topics

import (
	"encoding/json"
	"errors"
	"math/big"
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"logsync/internal/abidef"
)

const holderA = "0xaAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa"
const holderB = "0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB"
const holderC = "0xCcCCccccCCCCcCCCCCCcCcCccCcCCCcCcccccccC"

func erc20(t *testing.T) abidef.ABI {
	t.Helper()
	parsed, err := abidef.ERC20()
	if err != nil {
		t.Fatalf("erc20 abi: %v", err)
	}
	return parsed
}

func TestDeriveEventSignatureHashes(t *testing.T) {
	parsed := erc20(t)

	hashes, err := DeriveEventSignatureHashes(parsed.Events())
	if err != nil {
		t.Fatalf("derive: %v", err)
	}

	want := []common.Hash{
		crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)")),
		crypto.Keccak256Hash([]byte("Approval(address,address,uint256)")),
	}
	if !reflect.DeepEqual(hashes, want) {
		t.Fatalf("hash mismatch: %v != %v", hashes, want)
	}
	if hashes[0] != parsed.EthABI().Events["Transfer"].ID {
		t.Fatalf("hash differs from go-ethereum event id")
	}
}

func TestDeriveEventSignatureHashesRejectsFunctions(t *testing.T) {
	parsed := erc20(t)

	_, err := DeriveEventSignatureHashes(parsed.Entries)
	if !errors.Is(err, abidef.ErrNotEvent) {
		t.Fatalf("expected ErrNotEvent, got %v", err)
	}
}

func TestBuildForSingleEventTransfer(t *testing.T) {
	transfer, _ := erc20(t).Event("Transfer")

	got, err := BuildForSingleEvent(transfer, []interface{}{holderA, nil})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	want := TopicFilter{
		{crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))},
		{common.BytesToHash(common.LeftPadBytes(common.HexToAddress(holderA).Bytes(), 32))},
		nil,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("topics mismatch: %v != %v", got, want)
	}
}

func TestBuildForSingleEventCardinality(t *testing.T) {
	transfer, _ := erc20(t).Event("Transfer")

	cases := []struct {
		values []interface{}
		want   int
	}{
		{values: nil, want: 1},
		{values: []interface{}{holderA}, want: 2},
		{values: []interface{}{holderA, holderB}, want: 3},
		{values: []interface{}{holderA, holderB, "100", "extra"}, want: 3},
	}

	for _, tc := range cases {
		got, err := BuildForSingleEvent(transfer, tc.values)
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		if got.Len() != tc.want {
			t.Fatalf("len(%v) = %d, want %d", tc.values, got.Len(), tc.want)
		}
	}
}

func TestBuildForSingleEventListValues(t *testing.T) {
	transfer, _ := erc20(t).Event("Transfer")

	got, err := BuildForSingleEvent(transfer, []interface{}{[]interface{}{holderA, holderB}})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(got.Slot(1)) != 2 {
		t.Fatalf("expected OR slot with 2 values, got %v", got.Slot(1))
	}

	got, err = BuildForSingleEvent(transfer, []interface{}{[]interface{}{holderA, nil}})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got.Slot(1) != nil {
		t.Fatalf("nil inside a list should widen the slot, got %v", got.Slot(1))
	}
}

func TestBuildForEventMapMergesConservatively(t *testing.T) {
	parsed := erc20(t)

	got, ok, err := BuildForEventMap(parsed, []string{"Transfer", "Approval"}, map[string][]interface{}{
		"Transfer": {holderA, holderB},
		"Approval": {holderA, holderC},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !ok {
		t.Fatalf("expected usable filter")
	}

	transferID := parsed.EthABI().Events["Transfer"].ID
	approvalID := parsed.EthABI().Events["Approval"].ID
	wantA, _ := EncodeIndexedValue(holderA, "address")

	want := TopicFilter{
		{transferID, approvalID},
		{wantA},
		nil,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("merged topics mismatch: %v != %v", got, want)
	}
}

func TestBuildForEventMapShorterEventWidensSlot(t *testing.T) {
	parsed := erc20(t)

	got, ok, err := BuildForEventMap(parsed, []string{"Transfer", "Approval"}, map[string][]interface{}{
		"Transfer": {holderA, holderB},
	})
	if err != nil || !ok {
		t.Fatalf("build: ok=%v err=%v", ok, err)
	}
	if got.Len() != 3 {
		t.Fatalf("expected 3 slots, got %d", got.Len())
	}
	if got.Slot(1) != nil || got.Slot(2) != nil {
		t.Fatalf("slots without agreement must be nil: %v", got)
	}
}

func TestBuildForEventMapNoUsableEvents(t *testing.T) {
	parsed := erc20(t)

	got, ok, err := BuildForEventMap(parsed, nil, map[string][]interface{}{
		"Swap": {holderA},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok || got != nil {
		t.Fatalf("expected no filter, got %v", got)
	}
}

func TestEncodeIndexedValue(t *testing.T) {
	if _, ok := EncodeIndexedValue(nil, "address"); ok {
		t.Fatalf("nil must not filter")
	}

	minusOne, _ := EncodeIndexedValue(int64(-1), "int256")
	if minusOne != common.HexToHash("0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff") {
		t.Fatalf("negative int mismatch: %s", minusOne.Hex())
	}

	amount, _ := EncodeIndexedValue("1000", "uint256")
	if amount != common.BigToHash(big.NewInt(1000)) {
		t.Fatalf("uint mismatch: %s", amount.Hex())
	}

	hexAmount, _ := EncodeIndexedValue("0x3e8", "uint256")
	if hexAmount != amount {
		t.Fatalf("hex uint mismatch: %s", hexAmount.Hex())
	}

	flag, _ := EncodeIndexedValue(true, "bool")
	if flag != common.BigToHash(big.NewInt(1)) {
		t.Fatalf("bool mismatch: %s", flag.Hex())
	}

	id, _ := EncodeIndexedValue("0x1234", "bytes32")
	if id != common.HexToHash("0x1234") {
		t.Fatalf("bytes32 mismatch: %s", id.Hex())
	}

	name, _ := EncodeIndexedValue("alice", "string")
	if name != crypto.Keccak256Hash([]byte("alice")) {
		t.Fatalf("string mismatch: %s", name.Hex())
	}

	coerced, ok := EncodeIndexedValue("not-an-address", "address")
	if !ok || coerced != crypto.Keccak256Hash([]byte("not-an-address")) {
		t.Fatalf("string coercion mismatch: %s", coerced.Hex())
	}
}

func TestMergeKeepsSignatureSlot(t *testing.T) {
	transfer, _ := erc20(t).Event("Transfer")
	computed, err := BuildForSingleEvent(transfer, []interface{}{holderA})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	callerB, _ := EncodeIndexedValue(holderB, "address")
	caller := TopicFilter{{common.HexToHash("0x01")}, nil, {callerB}}

	got := Merge(computed, caller)
	if got.Len() != 3 {
		t.Fatalf("expected 3 slots, got %d", got.Len())
	}
	if !reflect.DeepEqual(got.Slot(0), computed.Slot(0)) {
		t.Fatalf("signature slot overridden")
	}
	if !reflect.DeepEqual(got.Slot(1), computed.Slot(1)) {
		t.Fatalf("empty caller slot must keep computed value")
	}
	if !reflect.DeepEqual(got.Slot(2), []common.Hash{callerB}) {
		t.Fatalf("caller slot not applied")
	}
}

func TestTopicFilterJSON(t *testing.T) {
	filter := TopicFilter{
		{common.HexToHash("0x01")},
		nil,
		{common.HexToHash("0x02"), common.HexToHash("0x03")},
	}

	data, err := json.Marshal(filter)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded TopicFilter
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(filter, decoded) {
		t.Fatalf("json mismatch: %v != %v", filter, decoded)
	}
}
