package decoder

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"logsync/internal/abidef"
	"logsync/internal/model"
)

const tickABI = `[{"type":"event","name":"Tick","inputs":[
	{"name":"seq","type":"uint64","indexed":false},
	{"name":"delta","type":"int64","indexed":false}
]}]`

func TestDecodeKeepsWideIntegersExact(t *testing.T) {
	parsed, err := abidef.Parse([]byte(tickABI))
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	decoder, err := New(parsed, []string{"Tick"}, nil)
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	event := parsed.EthABI().Events["Tick"]
	seq := uint64(1)<<63 + 1
	data, err := event.Inputs.NonIndexed().Pack(seq, int64(math.MinInt64))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}

	record, ok := decoder.Decode(types.Log{Address: token, Topics: []common.Hash{event.ID}, Data: data})
	if !ok || !record.Decoded {
		t.Fatalf("tick not decoded: %+v", record)
	}

	// read back the way stored records are
	raw, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var stored model.LogRecord
	if err := json.Unmarshal(raw, &stored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if v, _ := stored.Arg("seq"); v != "9223372036854775809" {
		t.Fatalf("uint64 arg changed after round trip: %v", v)
	}
	if v, _ := stored.Arg("delta"); v != "-9223372036854775808" {
		t.Fatalf("int64 arg changed after round trip: %v", v)
	}
}
