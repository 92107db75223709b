package fetcher

import (
	"errors"
	"fmt"
	"time"
)

const (
	DefaultInitialBatchSize uint64 = 50000
	DefaultMinBatchSize     uint64 = 100
)

// ErrInvalidRange is returned when fromBlock > toBlock.
var ErrInvalidRange = errors.New("from block must be <= to block")

// Policy bounds the adaptive window.
type Policy struct {
	InitialBatchSize uint64
	MinBatchSize     uint64
	// RetryDelay is waited after a failed range query before the next attempt.
	RetryDelay time.Duration
}

// DefaultPolicy returns the 50000/100 window bounds.
func DefaultPolicy() Policy {
	return Policy{InitialBatchSize: DefaultInitialBatchSize, MinBatchSize: DefaultMinBatchSize}
}

func (p Policy) normalized() Policy {
	if p.InitialBatchSize == 0 {
		p.InitialBatchSize = DefaultInitialBatchSize
	}
	if p.MinBatchSize == 0 {
		p.MinBatchSize = DefaultMinBatchSize
	}
	if p.MinBatchSize > p.InitialBatchSize {
		p.MinBatchSize = p.InitialBatchSize
	}
	return p
}

// Step is the loop state before one range query: the next unqueried block and the current
// window width.
type Step struct {
	Current   uint64
	BatchSize uint64
}

// Transition names what Next did with a step.
type Transition int

const (
	// Advanced moved past a successful window at full width.
	Advanced Transition = iota
	// Grown moved past a successful window and doubled a reduced width.
	Grown
	// Shrunk kept the same start block with a smaller width.
	Shrunk
	// Skipped gave up on a single block that failed on its own.
	Skipped
)

func (t Transition) String() string {
	switch t {
	case Advanced:
		return "advanced"
	case Grown:
		return "grown"
	case Shrunk:
		return "shrunk"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("transition(%d)", int(t))
	}
}

// Start returns the initial step for a range beginning at from.
func (p Policy) Start(from uint64) Step {
	p = p.normalized()
	return Step{Current: from, BatchSize: p.InitialBatchSize}
}

// Window returns the inclusive block range queried for step s, clipped at to.
func (p Policy) Window(s Step, to uint64) (uint64, uint64) {
	batch := s.BatchSize
	if batch == 0 {
		batch = 1
	}
	if batch-1 >= to-s.Current {
		return s.Current, to
	}
	return s.Current, s.Current + batch - 1
}

// Next is the pure transition of the fetch loop.
//
// On success the start moves past the window and a reduced width doubles back toward
// InitialBatchSize. On failure the start stays and the width halves; a width above
// MinBatchSize is clamped to it, a width already at or below MinBatchSize keeps halving so a
// failing block is isolated. A single-block window whose halved width falls below
// MinBatchSize is skipped and the width resets to InitialBatchSize.
func (p Policy) Next(s Step, to uint64, ok bool) (Step, Transition) {
	p = p.normalized()
	_, end := p.Window(s, to)

	if ok {
		next := Step{Current: end + 1, BatchSize: s.BatchSize}
		if s.BatchSize < p.InitialBatchSize {
			next.BatchSize = s.BatchSize * 2
			if next.BatchSize > p.InitialBatchSize {
				next.BatchSize = p.InitialBatchSize
			}
			return next, Grown
		}
		return next, Advanced
	}

	halved := s.BatchSize / 2
	if halved >= p.MinBatchSize {
		return Step{Current: s.Current, BatchSize: halved}, Shrunk
	}
	if end == s.Current {
		return Step{Current: s.Current + 1, BatchSize: p.InitialBatchSize}, Skipped
	}
	if s.BatchSize > p.MinBatchSize {
		return Step{Current: s.Current, BatchSize: p.MinBatchSize}, Shrunk
	}
	if halved == 0 {
		halved = 1
	}
	return Step{Current: s.Current, BatchSize: halved}, Shrunk
}
