package fetcher

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

type blockRange struct {
	From uint64
	To   uint64
}

// fakeFilterer returns one log per block and fails any query touching a poison block or
// wider than maxWidth.
type fakeFilterer struct {
	poison   map[uint64]bool
	maxWidth uint64
	attempts []blockRange
	cancel   func()
}

func (f *fakeFilterer) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	from, to := q.FromBlock.Uint64(), q.ToBlock.Uint64()
	f.attempts = append(f.attempts, blockRange{From: from, To: to})
	if f.cancel != nil {
		f.cancel()
	}

	if f.maxWidth > 0 && to-from+1 > f.maxWidth {
		return nil, fmt.Errorf("query returned more than 10000 results")
	}
	logs := make([]types.Log, 0, to-from+1)
	for b := from; b <= to; b++ {
		if f.poison[b] {
			return nil, fmt.Errorf("internal error at block %d", b)
		}
		logs = append(logs, types.Log{BlockNumber: b})
	}
	return logs, nil
}

func TestFetchSkipsOnlyPoisonBlocks(t *testing.T) {
	poison := map[uint64]bool{2345: true, 2346: true, 4000: true, 5000: true}
	client := &fakeFilterer{poison: poison}
	f := New(client, Policy{InitialBatchSize: 1000, MinBatchSize: 100}, zap.NewNop())

	result, err := f.Fetch(context.Background(), Query{FromBlock: 1000, ToBlock: 5000})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	wantSkipped := []uint64{2345, 2346, 4000, 5000}
	if !reflect.DeepEqual(result.Skipped, wantSkipped) {
		t.Fatalf("skipped mismatch: %v != %v", result.Skipped, wantSkipped)
	}

	next := uint64(1000)
	for _, log := range result.Logs {
		for poison[next] {
			next++
		}
		if log.BlockNumber != next {
			t.Fatalf("expected block %d, got %d", next, log.BlockNumber)
		}
		next++
	}
	if next != 5000 {
		t.Fatalf("logs stop at %d", next)
	}

	attempted := make(map[uint64]bool)
	for _, r := range client.attempts {
		for b := r.From; b <= r.To; b++ {
			attempted[b] = true
		}
	}
	for b := uint64(1000); b <= 5000; b++ {
		if !attempted[b] {
			t.Fatalf("block %d never attempted", b)
		}
	}
	for b := range poison {
		if !containsRange(client.attempts, blockRange{From: b, To: b}) {
			t.Fatalf("poison block %d skipped without a single-block attempt", b)
		}
	}
	if result.Queries != len(client.attempts) {
		t.Fatalf("query count mismatch: %d != %d", result.Queries, len(client.attempts))
	}
}

func TestFetchShrinksAndRecovers(t *testing.T) {
	client := &fakeFilterer{maxWidth: 300}
	f := New(client, Policy{InitialBatchSize: 1000, MinBatchSize: 100}, zap.NewNop())

	result, err := f.Fetch(context.Background(), Query{FromBlock: 0, ToBlock: 2999})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(result.Skipped) != 0 {
		t.Fatalf("unexpected skips: %v", result.Skipped)
	}
	if len(result.Logs) != 3000 {
		t.Fatalf("expected 3000 logs, got %d", len(result.Logs))
	}

	wantPrefix := []blockRange{
		{0, 999},
		{0, 499},
		{0, 249},
		{250, 749},
		{250, 499},
	}
	if !reflect.DeepEqual(client.attempts[:len(wantPrefix)], wantPrefix) {
		t.Fatalf("attempts mismatch: %v", client.attempts[:len(wantPrefix)])
	}
}

func TestFetchInvalidRange(t *testing.T) {
	client := &fakeFilterer{}
	f := New(client, DefaultPolicy(), nil)

	_, err := f.Fetch(context.Background(), Query{FromBlock: 10, ToBlock: 9})
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
	if len(client.attempts) != 0 {
		t.Fatalf("no query expected before validation")
	}
}

func TestFetchSingleBlock(t *testing.T) {
	client := &fakeFilterer{}
	f := New(client, DefaultPolicy(), nil)

	result, err := f.Fetch(context.Background(), Query{FromBlock: 7, ToBlock: 7})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(result.Logs) != 1 || result.Logs[0].BlockNumber != 7 {
		t.Fatalf("logs mismatch: %+v", result.Logs)
	}
}

func TestFetchStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &fakeFilterer{poison: map[uint64]bool{5: true}, cancel: cancel}
	f := New(client, Policy{InitialBatchSize: 10, MinBatchSize: 2}, nil)

	_, err := f.Fetch(ctx, Query{FromBlock: 0, ToBlock: 100})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(client.attempts) != 1 {
		t.Fatalf("expected one attempt, got %d", len(client.attempts))
	}
}

func containsRange(ranges []blockRange, want blockRange) bool {
	for _, r := range ranges {
		if r == want {
			return true
		}
	}
	return false
}
