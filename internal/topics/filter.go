package topics

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// TopicFilter is the eth_getLogs topic array. Slot 0 holds event signature hashes, slots 1..3
// hold indexed parameter values. A nil or empty slot matches any value; several hashes in one
// slot are OR-matched.
type TopicFilter [][]common.Hash

// Len returns the number of slots.
func (f TopicFilter) Len() int {
	return len(f)
}

// Slot returns the hashes at position i, or nil when the slot is absent or unfiltered.
func (f TopicFilter) Slot(i int) []common.Hash {
	if i < 0 || i >= len(f) {
		return nil
	}
	return f[i]
}

// MarshalJSON encodes each slot as null, a single hex string, or a list of hex strings.
func (f TopicFilter) MarshalJSON() ([]byte, error) {
	out := make([]interface{}, 0, len(f))
	for _, slot := range f {
		switch len(slot) {
		case 0:
			out = append(out, nil)
		case 1:
			out = append(out, slot[0].Hex())
		default:
			hexes := make([]string, 0, len(slot))
			for _, h := range slot {
				hexes = append(hexes, h.Hex())
			}
			out = append(out, hexes)
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the same shape MarshalJSON produces.
func (f *TopicFilter) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(TopicFilter, 0, len(raw))
	for i, item := range raw {
		var single *string
		if err := json.Unmarshal(item, &single); err == nil {
			if single == nil {
				out = append(out, nil)
				continue
			}
			h, err := parseHash(*single)
			if err != nil {
				return fmt.Errorf("topic %d: %w", i, err)
			}
			out = append(out, []common.Hash{h})
			continue
		}

		var list []string
		if err := json.Unmarshal(item, &list); err != nil {
			return fmt.Errorf("topic %d: expected null, string or list", i)
		}
		slot := make([]common.Hash, 0, len(list))
		for _, s := range list {
			h, err := parseHash(s)
			if err != nil {
				return fmt.Errorf("topic %d: %w", i, err)
			}
			slot = append(slot, h)
		}
		out = append(out, slot)
	}

	*f = out
	return nil
}

// Merge overlays caller-supplied topics on a computed filter. Slot 0 always keeps the
// computed signature hashes; later slots take the caller value wherever it is non-empty.
func Merge(computed, caller TopicFilter) TopicFilter {
	size := len(computed)
	if len(caller) > size {
		size = len(caller)
	}

	merged := make(TopicFilter, size)
	for i := 0; i < size; i++ {
		if i > 0 && len(caller.Slot(i)) > 0 {
			merged[i] = caller.Slot(i)
			continue
		}
		merged[i] = computed.Slot(i)
	}
	return merged
}

func parseHash(s string) (common.Hash, error) {
	h, ok := hexToHash(s)
	if !ok {
		return common.Hash{}, fmt.Errorf("invalid topic %q", s)
	}
	return h, nil
}
