// Package state implements the per-contract key/value store, hashed
// snapshots and diffs of spec §4.B.
package state

import (
	"bytes"
	"crypto/sha256"
	"sort"
	"sync"
	"time"

	"github.com/erigontech/contractcore/pkg/common"
	"github.com/erigontech/contractcore/pkg/common/mathutil"
	"github.com/erigontech/contractcore/pkg/contracts/contracterr"
)

// Size caps (spec §3). Overridable via Manager.WithLimits for internal/config
// wiring; these are the spec's defaults.
const (
	MaxKeySize     = 1024              // 1 KiB
	MaxValueSize   = 1024 * 1024       // 1 MiB
	MaxStateSize   = 100 * 1024 * 1024 // 100 MiB
	MaxEntries     = 100_000
	SchemaVersion  = 1
	InitializedKey = "_initialized"
)

// Snapshot is an immutable, hashed copy of a contract's state at a point in
// time (spec §3 StateSnapshot).
type Snapshot struct {
	Address       common.Address
	Version       string
	Timestamp     int64 // unix seconds
	State         map[string][]byte
	StateHash     common.Hash
	SchemaVersion uint32
}

// Diff is the structural delta applied by a single update_state call
// (spec §3 StateDiff).
type Diff struct {
	Added    map[string][]byte
	Modified map[string][2][]byte // [old, new]
	Deleted  map[string][]byte
}

// Manager owns every contract's current state, its snapshot history and its
// diff log (spec §4.B). All methods are synchronous and serialized by the
// Manager's own lock.
type Manager struct {
	mu sync.RWMutex

	states    map[common.Address]map[string][]byte
	snapshots map[common.Address][]*Snapshot
	diffs     map[common.Address][]*Diff

	maxKeySize   int
	maxValueSize int
	maxStateSize uint64
	maxEntries   int
}

// NewManager returns an empty Manager using the spec's default size caps.
func NewManager() *Manager {
	return &Manager{
		states:       make(map[common.Address]map[string][]byte),
		snapshots:    make(map[common.Address][]*Snapshot),
		diffs:        make(map[common.Address][]*Diff),
		maxKeySize:   MaxKeySize,
		maxValueSize: MaxValueSize,
		maxStateSize: MaxStateSize,
		maxEntries:   MaxEntries,
	}
}

// WithLimits overrides the size caps, for internal/config-driven runtimes.
func (m *Manager) WithLimits(maxKeySize, maxValueSize int, maxStateSize uint64, maxEntries int) *Manager {
	m.maxKeySize, m.maxValueSize, m.maxStateSize, m.maxEntries = maxKeySize, maxValueSize, maxStateSize, maxEntries
	return m
}

// GetState returns a read-only reference to addr's current state, or nil if
// absent. Callers must not mutate the returned map.
func (m *Manager) GetState(addr common.Address) map[string][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.states[addr]
}

func stateSize(s map[string][]byte) uint64 {
	var total uint64
	for k, v := range s {
		total += uint64(len(k)) + uint64(len(v))
	}
	return total
}

// GetStateSize returns the current Σ(|k|+|v|) for addr.
func (m *Manager) GetStateSize(addr common.Address) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return stateSize(m.states[addr])
}

func (m *Manager) validateUpdate(current map[string][]byte, key, value []byte) error {
	if len(key) > m.maxKeySize {
		return contracterr.New(contracterr.ErrState,
			"key size exceeds maximum allowed size")
	}
	if len(value) > m.maxValueSize {
		return contracterr.New(contracterr.ErrState,
			"value size exceeds maximum allowed size")
	}

	total := stateSize(current)
	if existing, ok := current[string(key)]; ok {
		total -= uint64(len(key)) + uint64(len(existing))
	}
	added, overflow := mathutil.SafeAdd(total, uint64(len(key))+uint64(len(value)))
	if overflow || added > m.maxStateSize {
		return contracterr.New(contracterr.ErrState, "total state size would exceed maximum allowed size")
	}

	if _, exists := current[string(key)]; !exists && len(current) >= m.maxEntries {
		return contracterr.New(contracterr.ErrState, "maximum number of entries exceeded")
	}
	return nil
}

// UpdateState writes (key, value) into addr's state, validating it against
// the size caps, and appends a Diff describing the change (spec §4.B). A
// missing state map is treated as empty.
func (m *Manager) UpdateState(addr common.Address, key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	old := m.states[addr]
	if err := m.validateUpdate(old, key, value); err != nil {
		return err
	}

	newState := make(map[string][]byte, len(old)+1)
	for k, v := range old {
		newState[k] = v
	}
	newState[string(key)] = value

	m.trackChanges(addr, old, newState)
	m.states[addr] = newState
	return nil
}

func (m *Manager) trackChanges(addr common.Address, old, new map[string][]byte) {
	d := &Diff{
		Added:    make(map[string][]byte),
		Modified: make(map[string][2][]byte),
		Deleted:  make(map[string][]byte),
	}
	for k, nv := range new {
		if ov, ok := old[k]; ok {
			if !bytes.Equal(ov, nv) {
				d.Modified[k] = [2][]byte{ov, nv}
			}
		} else {
			d.Added[k] = nv
		}
	}
	for k, ov := range old {
		if _, ok := new[k]; !ok {
			d.Deleted[k] = ov
		}
	}
	m.diffs[addr] = append(m.diffs[addr], d)
}

// computeStateHash is the SHA-256 over keys sorted lexicographically,
// concatenated key‖value for each entry (spec §3).
func computeStateHash(s map[string][]byte) common.Hash {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write(s[k])
	}
	var out common.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// CreateSnapshot copies addr's current state, hashes it and appends it to
// addr's snapshot history (spec §4.B). Fails with ErrState if addr has no
// state yet.
func (m *Manager) CreateSnapshot(addr common.Address, version string, now time.Time) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.states[addr]
	if !ok {
		return nil, contracterr.New(contracterr.ErrState, "contract state not found")
	}

	cloned := make(map[string][]byte, len(current))
	for k, v := range current {
		cp := make([]byte, len(v))
		copy(cp, v)
		cloned[k] = cp
	}

	snap := &Snapshot{
		Address:       addr,
		Version:       version,
		Timestamp:     now.Unix(),
		State:         cloned,
		StateHash:     computeStateHash(cloned),
		SchemaVersion: SchemaVersion,
	}
	m.snapshots[addr] = append(m.snapshots[addr], snap)
	return snap, nil
}

// RestoreFromSnapshot finds the snapshot for addr taken at timestamp,
// reverifies its hash and replaces addr's current state with a clone of it
// (spec §4.B, §8 property 5). Fails with ErrStateCorrupted if the stored
// hash no longer matches the recomputed one.
func (m *Manager) RestoreFromSnapshot(addr common.Address, timestamp int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snaps, ok := m.snapshots[addr]
	if !ok {
		return contracterr.New(contracterr.ErrState, "no snapshots found for contract")
	}

	var found *Snapshot
	for _, s := range snaps {
		if s.Timestamp == timestamp {
			found = s
			break
		}
	}
	if found == nil {
		return contracterr.New(contracterr.ErrState, "snapshot not found for given timestamp")
	}

	if computeStateHash(found.State) != found.StateHash {
		return contracterr.New(contracterr.ErrStateCorrupted, "state integrity verification failed")
	}

	cloned := make(map[string][]byte, len(found.State))
	for k, v := range found.State {
		cp := make([]byte, len(v))
		copy(cp, v)
		cloned[k] = cp
	}
	m.states[addr] = cloned
	return nil
}

// GetSnapshots returns addr's snapshot history, oldest first.
func (m *Manager) GetSnapshots(addr common.Address) []*Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshots[addr]
}

// GetStateDiffs returns addr's diff log, oldest first.
func (m *Manager) GetStateDiffs(addr common.Address) []*Diff {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.diffs[addr]
}
