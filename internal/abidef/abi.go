package abidef

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Kind tags the variant of an ABI entry.
type Kind string

const (
	KindEvent       Kind = "event"
	KindFunction    Kind = "function"
	KindError       Kind = "error"
	KindConstructor Kind = "constructor"
	KindFallback    Kind = "fallback"
	KindReceive     Kind = "receive"
)

// ErrNotEvent is returned when an event-only operation receives another entry kind.
var ErrNotEvent = errors.New("abi entry is not an event")

// Param is one input or output of an ABI entry. Components is only set for tuple types.
type Param struct {
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	InternalType string  `json:"internalType,omitempty"`
	Indexed      bool    `json:"indexed,omitempty"`
	Components   []Param `json:"components,omitempty"`
}

// Entry is a single item of a contract ABI.
type Entry struct {
	Kind            Kind    `json:"type"`
	Name            string  `json:"name,omitempty"`
	Inputs          []Param `json:"inputs"`
	Outputs         []Param `json:"outputs,omitempty"`
	Anonymous       bool    `json:"anonymous,omitempty"`
	StateMutability string  `json:"stateMutability,omitempty"`
}

// ABI is a validated contract ABI together with its go-ethereum counterpart.
type ABI struct {
	Entries []Entry
	eth     abi.ABI
}

// Parse validates a JSON ABI. Both a bare array and a build artifact with an "abi"
// field are accepted.
func Parse(data []byte) (ABI, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var artifact struct {
			ABI json.RawMessage `json:"abi"`
		}
		if err := json.Unmarshal(data, &artifact); err != nil {
			return ABI{}, fmt.Errorf("parse abi artifact: %w", err)
		}
		if len(artifact.ABI) == 0 {
			return ABI{}, fmt.Errorf("abi artifact has no abi field")
		}
		data = artifact.ABI
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return ABI{}, fmt.Errorf("parse abi: %w", err)
	}

	for i := range entries {
		if entries[i].Kind == "" {
			entries[i].Kind = KindFunction
		}
		if err := entries[i].validate(); err != nil {
			return ABI{}, fmt.Errorf("abi entry %d (%s): %w", i, entries[i].Name, err)
		}
	}

	eth, err := abi.JSON(bytes.NewReader(data))
	if err != nil {
		return ABI{}, fmt.Errorf("build abi: %w", err)
	}

	return ABI{Entries: entries, eth: eth}, nil
}

// EthABI returns the go-ethereum ABI used for log decoding.
func (a ABI) EthABI() abi.ABI {
	return a.eth
}

// Events returns every event entry in declaration order.
func (a ABI) Events() []Entry {
	events := make([]Entry, 0)
	for _, entry := range a.Entries {
		if entry.Kind == KindEvent {
			events = append(events, entry)
		}
	}
	return events
}

// Event looks up an event by name.
func (a ABI) Event(name string) (Entry, bool) {
	for _, entry := range a.Entries {
		if entry.Kind == KindEvent && entry.Name == name {
			return entry, true
		}
	}
	return Entry{}, false
}

// EventsNamed resolves every name to its event entry, failing on the first unknown name.
func (a ABI) EventsNamed(names []string) ([]Entry, error) {
	events := make([]Entry, 0, len(names))
	for _, name := range names {
		entry, ok := a.Event(name)
		if !ok {
			return nil, fmt.Errorf("event %q not found in abi", name)
		}
		events = append(events, entry)
	}
	return events, nil
}

// Signature returns the canonical signature Name(type1,type2,...) of the entry.
func (e Entry) Signature() string {
	types := make([]string, 0, len(e.Inputs))
	for _, input := range e.Inputs {
		types = append(types, input.CanonicalType())
	}
	return e.Name + "(" + strings.Join(types, ",") + ")"
}

// IndexedInputs returns the indexed inputs in declaration order.
func (e Entry) IndexedInputs() []Param {
	indexed := make([]Param, 0, 3)
	for _, input := range e.Inputs {
		if input.Indexed {
			indexed = append(indexed, input)
		}
	}
	return indexed
}

// CanonicalType expands tuple types into their parenthesized component list, keeping any
// array suffix: tuple[] with (uint256,address) becomes (uint256,address)[].
func (p Param) CanonicalType() string {
	if suffix, ok := splitTuple(p.Type); ok {
		parts := make([]string, 0, len(p.Components))
		for _, component := range p.Components {
			parts = append(parts, component.CanonicalType())
		}
		return "(" + strings.Join(parts, ",") + ")" + suffix
	}
	return normalizeElementary(p.Type)
}

func (e Entry) validate() error {
	switch e.Kind {
	case KindEvent, KindFunction, KindError:
		if e.Name == "" {
			return fmt.Errorf("%s entry requires a name", e.Kind)
		}
	case KindConstructor, KindFallback, KindReceive:
	default:
		return fmt.Errorf("unknown entry type %q", e.Kind)
	}

	for _, input := range e.Inputs {
		if input.Indexed && e.Kind != KindEvent {
			return fmt.Errorf("input %q is indexed outside an event", input.Name)
		}
		if err := input.validate(); err != nil {
			return err
		}
	}
	for _, output := range e.Outputs {
		if err := output.validate(); err != nil {
			return err
		}
	}

	if e.Kind == KindEvent {
		limit := 3
		if e.Anonymous {
			limit = 4
		}
		if n := len(e.IndexedInputs()); n > limit {
			return fmt.Errorf("event has %d indexed inputs, at most %d allowed", n, limit)
		}
	}
	return nil
}

func (p Param) validate() error {
	if p.Type == "" {
		return fmt.Errorf("param %q has no type", p.Name)
	}
	_, tuple := splitTuple(p.Type)
	if tuple && len(p.Components) == 0 {
		return fmt.Errorf("tuple param %q has no components", p.Name)
	}
	if !tuple && len(p.Components) > 0 {
		return fmt.Errorf("param %q of type %s must not have components", p.Name, p.Type)
	}
	for _, component := range p.Components {
		if err := component.validate(); err != nil {
			return err
		}
	}
	return nil
}

// splitTuple reports whether typ is tuple, tuple[] or tuple[N] and returns the array suffix.
func splitTuple(typ string) (string, bool) {
	if !strings.HasPrefix(typ, "tuple") {
		return "", false
	}
	suffix := typ[len("tuple"):]
	if suffix != "" && !strings.HasPrefix(suffix, "[") {
		return "", false
	}
	return suffix, true
}

func normalizeElementary(typ string) string {
	base, suffix := typ, ""
	if idx := strings.IndexByte(typ, '['); idx >= 0 {
		base, suffix = typ[:idx], typ[idx:]
	}
	switch base {
	case "uint":
		base = "uint256"
	case "int":
		base = "int256"
	case "fixed":
		base = "fixed128x18"
	case "ufixed":
		base = "ufixed128x18"
	}
	return base + suffix
}
