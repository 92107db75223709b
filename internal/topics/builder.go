package topics

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"logsync/internal/abidef"
)

// DeriveEventSignatureHashes hashes the canonical signature of every event entry. Any
// non-event entry fails with abidef.ErrNotEvent.
func DeriveEventSignatureHashes(events []abidef.Entry) ([]common.Hash, error) {
	hashes := make([]common.Hash, 0, len(events))
	for _, event := range events {
		if event.Kind != abidef.KindEvent {
			return nil, fmt.Errorf("%s %q: %w", event.Kind, event.Name, abidef.ErrNotEvent)
		}
		hashes = append(hashes, SignatureHash(event.Signature()))
	}
	return hashes, nil
}

// BuildForSingleEvent pairs the event's indexed inputs positionally with values and returns
// [signatureHash, slot1, ...]. Only as many slots as values are produced; a nil value leaves
// its slot unfiltered.
func BuildForSingleEvent(event abidef.Entry, values []interface{}) (TopicFilter, error) {
	if event.Kind != abidef.KindEvent {
		return nil, fmt.Errorf("%s %q: %w", event.Kind, event.Name, abidef.ErrNotEvent)
	}
	if event.Anonymous {
		return nil, fmt.Errorf("anonymous event %q has no signature topic", event.Name)
	}

	indexed := event.IndexedInputs()
	size := len(values)
	if size > len(indexed) {
		size = len(indexed)
	}

	filter := make(TopicFilter, 0, 1+size)
	filter = append(filter, []common.Hash{SignatureHash(event.Signature())})
	for i := 0; i < size; i++ {
		filter = append(filter, encodeSlot(values[i], indexed[i].Type))
	}
	return filter, nil
}

// BuildForEventMap builds one filter that matches any of several events, each with its own
// indexed values. Slot 0 becomes the OR of all signature hashes. Every later slot keeps a
// value only when all target events produced the identical slot; otherwise it becomes nil
// (match-any).
//
// The merge loses precision: the node cannot express "this value only for that event" at
// slots 1..3, so the result may admit logs a single-event query would exclude. Callers that
// need exact per-event filtering on indexed values should issue one query per event.
//
// Targets are eventNames, or every key of values when eventNames is empty. ok is false when
// values names no event that exists in the ABI; the caller should then fall back to a
// signature-only filter.
func BuildForEventMap(parsed abidef.ABI, eventNames []string, values map[string][]interface{}) (TopicFilter, bool, error) {
	targets := eventNames
	if len(targets) == 0 {
		for name := range values {
			targets = append(targets, name)
		}
		sort.Strings(targets)
	}

	usable := false
	perEvent := make([]TopicFilter, 0, len(targets))
	for _, name := range targets {
		event, found := parsed.Event(name)
		if !found {
			continue
		}
		eventValues, supplied := values[name]
		if supplied {
			usable = true
		}
		filter, err := BuildForSingleEvent(event, eventValues)
		if err != nil {
			return nil, false, err
		}
		perEvent = append(perEvent, filter)
	}
	if !usable {
		return nil, false, nil
	}

	return mergeEventFilters(perEvent), true, nil
}

// SignatureFilter returns a filter with only slot 0: the OR of the events' signature hashes.
func SignatureFilter(events []abidef.Entry) (TopicFilter, error) {
	hashes, err := DeriveEventSignatureHashes(events)
	if err != nil {
		return nil, err
	}
	return TopicFilter{dedupe(hashes)}, nil
}

func mergeEventFilters(filters []TopicFilter) TopicFilter {
	size := 0
	for _, filter := range filters {
		if filter.Len() > size {
			size = filter.Len()
		}
	}

	merged := make(TopicFilter, size)
	var signatures []common.Hash
	for _, filter := range filters {
		signatures = append(signatures, filter.Slot(0)...)
	}
	merged[0] = dedupe(signatures)

	for i := 1; i < size; i++ {
		shared := filters[0].Slot(i)
		for _, filter := range filters[1:] {
			if !sameSlot(shared, filter.Slot(i)) {
				shared = nil
				break
			}
		}
		merged[i] = shared
	}
	return merged
}

func sameSlot(a, b []common.Hash) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	left, right := dedupe(a), dedupe(b)
	if len(left) != len(right) {
		return false
	}
	seen := make(map[common.Hash]struct{}, len(left))
	for _, h := range left {
		seen[h] = struct{}{}
	}
	for _, h := range right {
		if _, ok := seen[h]; !ok {
			return false
		}
	}
	return true
}

func dedupe(hashes []common.Hash) []common.Hash {
	seen := make(map[common.Hash]struct{}, len(hashes))
	out := make([]common.Hash, 0, len(hashes))
	for _, h := range hashes {
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}
