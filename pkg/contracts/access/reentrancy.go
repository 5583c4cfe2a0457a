package access

import (
	"sync"

	"github.com/erigontech/contractcore/pkg/contracts/contracterr"
)

// ReentrancyGuard prevents a guarded section from being entered recursively.
// It is not part of the core's own invariants (spec §4 lists only A–F); it
// is a helper the original exposes for use inside sandboxed contracts
// (contract/access.rs), kept here so the sandbox adapter can offer it to
// built-in test methods that want to guard against re-entry.
type ReentrancyGuard struct {
	mu      sync.Mutex
	entered bool
}

// NewReentrancyGuard returns an unentered guard.
func NewReentrancyGuard() *ReentrancyGuard {
	return &ReentrancyGuard{}
}

// Enter marks the guard as entered, failing with ErrReentrancy if it is
// already entered.
func (g *ReentrancyGuard) Enter() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.entered {
		return contracterr.New(contracterr.ErrReentrancy, "reentrant call detected")
	}
	g.entered = true
	return nil
}

// Exit clears the entered flag.
func (g *ReentrancyGuard) Exit() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entered = false
}
