// Package callctx carries the ambient caller identity that the rest of spec.md
// assumes is available to every authorization check. Spec §9 re-architects the
// original's process-wide sender slot into an explicit parameter: production
// code always threads a *CallContext through the facade; the process-wide
// slot below exists only to let tests set a caller without plumbing one
// through every helper, exactly as the original's msg::test_utils did.
package callctx

import (
	"sync"

	"github.com/erigontech/contractcore/pkg/common"
)

// CallContext carries the identity of the account invoking a Runtime Facade
// operation. It is deliberately minimal: the core never authenticates this
// value, only authorizes against it (spec §2).
type CallContext struct {
	Caller common.Address
}

// New returns a CallContext for the given caller.
func New(caller common.Address) *CallContext {
	return &CallContext{Caller: caller}
}

var (
	testMu     sync.RWMutex
	testCaller *common.Address
)

// SetTestCaller installs a process-wide test caller, for use by test helpers
// that want an ambient identity instead of threading a *CallContext
// everywhere. Mirrors the original's msg::test_utils::set_sender.
func SetTestCaller(addr common.Address) {
	testMu.Lock()
	defer testMu.Unlock()
	c := addr
	testCaller = &c
}

// ClearTestCaller removes the process-wide test caller.
func ClearTestCaller() {
	testMu.Lock()
	defer testMu.Unlock()
	testCaller = nil
}

// FromTest returns a CallContext built from the process-wide test caller,
// defaulting to the zero address if none was set. Only test code should call
// this; production callers must build a CallContext from an authenticated
// request instead.
func FromTest() *CallContext {
	testMu.RLock()
	defer testMu.RUnlock()
	if testCaller == nil {
		return &CallContext{}
	}
	return &CallContext{Caller: *testCaller}
}
