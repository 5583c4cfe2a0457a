// Package tracker implements the Operation Tracker of spec §4.D: admission
// control bounding global, per-second and per-address concurrent operations,
// with opportunistic reaping of expired entries.
package tracker

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/erigontech/contractcore/pkg/common"
	"github.com/erigontech/contractcore/pkg/contracts/contracterr"
)

// Bounds, per spec §3 invariant 9 / §4.D.
const (
	MaxConcurrentOperations = 100
	MaxOperationsPerSecond  = 1000
	MaxPerAddressActive     = 10
	OperationTTL            = 30 * time.Second
	HistoryWindow           = 60 * time.Second
)

// Type enumerates the operation kinds the facade admits (spec §3
// OperationType).
type Type int

const (
	Deploy Type = iota
	Upgrade
	Execute
	StateUpdate
	Rollback
)

func (t Type) String() string {
	switch t {
	case Deploy:
		return "deploy"
	case Upgrade:
		return "upgrade"
	case Execute:
		return "execute"
	case StateUpdate:
		return "state_update"
	case Rollback:
		return "rollback"
	default:
		return "unknown"
	}
}

// Handle identifies one admitted operation, returned by StartOperation so
// callers have a stable diagnostic handle beyond the bare (time, type) pair
// the spec's OperationMetrics describes (not invariant-bearing; purely for
// introspection, e.g. the CLI's status command).
type Handle struct {
	ID        uuid.UUID
	Address   common.Address
	Type      Type
	StartTime time.Time
}

// Tracker owns the active-operation table and the sliding operation history
// (spec §4.D). The global admission bound is enforced with a weighted
// semaphore sized to MaxConcurrentOperations; everything else is guarded by
// a plain mutex, matching the single reader-writer gate the spec's
// concurrency model (§5) calls for.
type Tracker struct {
	mu sync.Mutex

	active  map[common.Address][]Handle
	history []historyEntry

	sem *semaphore.Weighted

	maxPerSecond  int
	maxPerAddress int
	operationTTL  time.Duration
}

type historyEntry struct {
	at   time.Time
	kind Type
}

// New returns an empty Tracker using the spec's default admission caps.
func New() *Tracker {
	return NewWithLimits(MaxConcurrentOperations, MaxOperationsPerSecond, MaxPerAddressActive, OperationTTL)
}

// NewWithLimits returns an empty Tracker with operator-supplied admission
// caps, for internal/config-driven runtimes.
func NewWithLimits(maxConcurrent, maxPerSecond, maxPerAddress int, ttl time.Duration) *Tracker {
	return &Tracker{
		active:         make(map[common.Address][]Handle),
		sem:            semaphore.NewWeighted(int64(maxConcurrent)),
		maxPerSecond:   maxPerSecond,
		maxPerAddress:  maxPerAddress,
		operationTTL:   ttl,
	}
}

func (t *Tracker) reapLocked(now time.Time) {
	for addr, ops := range t.active {
		kept := ops[:0]
		for _, op := range ops {
			if now.Sub(op.StartTime) < t.operationTTL {
				kept = append(kept, op)
			} else {
				t.sem.Release(1)
			}
		}
		if len(kept) == 0 {
			delete(t.active, addr)
		} else {
			t.active[addr] = kept
		}
	}

	cut := 0
	for cut < len(t.history) && now.Sub(t.history[cut].at) > HistoryWindow {
		cut++
	}
	if cut > 0 {
		t.history = append([]historyEntry{}, t.history[cut:]...)
	}
}

// StartOperation admits a new operation on addr, in the fixed order: reap
// expired, check global bound, check per-second bound, check per-address
// bound, record (spec §4.D).
func (t *Tracker) StartOperation(addr common.Address, opType Type) (Handle, error) {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.reapLocked(now)

	if !t.sem.TryAcquire(1) {
		return Handle{}, contracterr.New(contracterr.ErrConcurrencyLimit, "maximum concurrent operations exceeded")
	}

	recent := 0
	for _, h := range t.history {
		if now.Sub(h.at) < time.Second {
			recent++
		}
	}
	if recent >= t.maxPerSecond {
		t.sem.Release(1)
		return Handle{}, contracterr.New(contracterr.ErrConcurrencyLimit, "maximum operations per second exceeded")
	}

	if len(t.active[addr]) >= t.maxPerAddress {
		t.sem.Release(1)
		return Handle{}, contracterr.New(contracterr.ErrConcurrencyLimit, "maximum concurrent operations per contract exceeded")
	}

	h := Handle{ID: uuid.New(), Address: addr, Type: opType, StartTime: now}
	t.active[addr] = append(t.active[addr], h)
	t.history = append(t.history, historyEntry{at: now, kind: opType})
	return h, nil
}

// EndOperation releases one active slot on addr matching opType by value
// (spec §4.D: "removes one metrics entry whose op_type matches"). Must be
// called on every exit path of a started operation, success or failure.
func (t *Tracker) EndOperation(addr common.Address, opType Type) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ops := t.active[addr]
	for i, op := range ops {
		if op.Type == opType {
			t.active[addr] = append(ops[:i], ops[i+1:]...)
			t.sem.Release(1)
			if len(t.active[addr]) == 0 {
				delete(t.active, addr)
			}
			return
		}
	}
}

// ActiveOperationCount returns the total number of currently active
// operations across all contracts.
func (t *Tracker) ActiveOperationCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := 0
	for _, ops := range t.active {
		total += len(ops)
	}
	return total
}

// OperationsPerSecond returns how many operations started within the last
// second.
func (t *Tracker) OperationsPerSecond() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	count := 0
	for _, h := range t.history {
		if now.Sub(h.at) < time.Second {
			count++
		}
	}
	return count
}

// ActiveOperations returns a snapshot of every currently active handle on
// addr, for introspection (e.g. the CLI's status command).
func (t *Tracker) ActiveOperations(addr common.Address) []Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	ops := t.active[addr]
	out := make([]Handle, len(ops))
	copy(out, ops)
	return out
}
