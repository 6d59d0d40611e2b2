// Package idgen generates compact, time-ordered identifiers for a single machine.
//
// An ID packs three fields, most significant first:
//
//	[31 bits seconds since epoch][5 bits machine id][5 bits sequence]
//
// At most 32 IDs are produced per machine per second; further callers block
// until the clock reaches the next second.
package idgen

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/serroba/shortlinks/internal/idgen/base62"
)

const (
	timestampBits = 31
	machineBits   = 5
	sequenceBits  = 5

	MaxMachineID = (1 << machineBits) - 1
	maxSequence  = (1 << sequenceBits) - 1
	maxTimestamp = (1 << timestampBits) - 1

	machineShift   = sequenceBits
	timestampShift = sequenceBits + machineBits
)

// DefaultEpoch is 2024-01-01T00:00:00Z.
var DefaultEpoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

var (
	ErrInvalidMachineID    = fmt.Errorf("machine id must be between 0 and %d", MaxMachineID)
	ErrClockMovedBackwards = errors.New("clock moved backwards")
	ErrTimestampOverflow   = errors.New("timestamp does not fit in 31 bits")
	ErrInvalidID           = errors.New("invalid id")
)

// ClockPolicy decides what Generate does when the wall clock is behind the
// last second it used.
type ClockPolicy int

const (
	// ClockReject refuses to generate until the clock catches up.
	ClockReject ClockPolicy = iota
	// ClockWait blocks until the clock catches up.
	ClockWait
)

// ID is a packed identifier. Its external form is base62.
type ID uint64

func (id ID) String() string {
	return base62.Encode(uint64(id))
}

// Parse decodes the base62 form of an ID.
func Parse(s string) (ID, error) {
	n, err := base62.Decode(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidID, err)
	}

	return ID(n), nil
}

// Split unpacks the raw fields of an ID.
func Split(id ID) (seconds uint64, machineID, sequence uint64) {
	return uint64(id) >> timestampShift,
		(uint64(id) >> machineShift) & MaxMachineID,
		uint64(id) & maxSequence
}

// Parts is a decoded ID.
type Parts struct {
	Time      time.Time
	MachineID int64
	Sequence  int64
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock replaces the wall clock. Only second resolution is used.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

// WithEpoch sets the instant from which timestamps are counted.
func WithEpoch(epoch time.Time) Option {
	return func(g *Generator) {
		g.epoch = epoch
	}
}

// WithClockPolicy sets the backward clock policy.
func WithClockPolicy(policy ClockPolicy) Option {
	return func(g *Generator) {
		g.policy = policy
	}
}

// WithPollInterval sets how long Generate sleeps between clock samples
// while waiting for the next second.
func WithPollInterval(d time.Duration) Option {
	return func(g *Generator) {
		g.pollInterval = d
	}
}

// WithStallObserver registers fn to be told how long each blocking wait for
// the clock lasted. fn runs with the generator locked.
func WithStallObserver(fn func(time.Duration)) Option {
	return func(g *Generator) {
		g.onStall = fn
	}
}

// Generator is safe for concurrent use.
type Generator struct {
	mu            sync.Mutex
	machineID     uint64
	sequence      uint64
	lastTimestamp int64

	now          func() time.Time
	epoch        time.Time
	policy       ClockPolicy
	pollInterval time.Duration
	onStall      func(time.Duration)
}

// New creates a generator for the given machine id.
func New(machineID int64, opts ...Option) (*Generator, error) {
	if machineID < 0 || machineID > MaxMachineID {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidMachineID, machineID)
	}

	g := &Generator{
		machineID:     uint64(machineID),
		lastTimestamp: -1,
		now:           time.Now,
		epoch:         DefaultEpoch,
		policy:        ClockReject,
		pollInterval:  time.Millisecond,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

// MachineID returns the machine id embedded in every generated ID.
func (g *Generator) MachineID() int64 {
	return int64(g.machineID)
}

// Generate returns the next ID.
func (g *Generator) Generate() (ID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ts := g.timestamp()
	if ts < 0 || ts > maxTimestamp {
		return 0, fmt.Errorf("%w: %d", ErrTimestampOverflow, ts)
	}

	if ts < g.lastTimestamp {
		if g.policy == ClockReject {
			return 0, fmt.Errorf("%w: %ds behind", ErrClockMovedBackwards, g.lastTimestamp-ts)
		}

		ts = g.waitUntil(g.lastTimestamp)
	}

	var seq uint64

	if ts == g.lastTimestamp {
		seq = (g.sequence + 1) & maxSequence
		if seq == 0 {
			ts = g.waitUntil(g.lastTimestamp + 1)
		}
	}

	if ts > maxTimestamp {
		return 0, fmt.Errorf("%w: %d", ErrTimestampOverflow, ts)
	}

	g.lastTimestamp = ts
	g.sequence = seq

	return ID(uint64(ts)<<timestampShift | g.machineID<<machineShift | seq), nil
}

// Decompose unpacks id using this generator's epoch.
func (g *Generator) Decompose(id ID) Parts {
	seconds, machineID, sequence := Split(id)

	return Parts{
		Time:      g.epoch.Add(time.Duration(seconds) * time.Second),
		MachineID: int64(machineID),
		Sequence:  int64(sequence),
	}
}

func (g *Generator) timestamp() int64 {
	return int64(g.now().Sub(g.epoch) / time.Second)
}

// waitUntil samples the clock until it reports at least target.
// There is no timeout: a frozen clock stalls the caller.
func (g *Generator) waitUntil(target int64) int64 {
	ts := g.timestamp()
	if ts >= target {
		return ts
	}

	began := time.Now()

	for ts < target {
		time.Sleep(g.pollInterval)
		ts = g.timestamp()
	}

	if g.onStall != nil {
		g.onStall(time.Since(began))
	}

	return ts
}
