// Package builtin provides the reference Sandbox Adapter used by tests and
// by the CLI when no external WASM engine is wired in. It recognizes only
// the two built-in test methods spec §4.E names (add, loop_test); real
// contracts MUST be dispatched through a genuine sandbox implementation of
// sandbox.Adapter (spec §9 design note: this is a test seam, not production
// dispatch).
package builtin

import (
	"crypto/sha256"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/erigontech/contractcore/pkg/common"
	"github.com/erigontech/contractcore/pkg/common/mathutil"
	"github.com/erigontech/contractcore/pkg/contracts/access"
	"github.com/erigontech/contractcore/pkg/contracts/contracterr"
	"github.com/erigontech/contractcore/pkg/contracts/sandbox"
)

// wasmMagic is the four-byte WASM module header. Real bytecode must start
// with it to pass Compile's structural check; this is deliberately shallow
// (spec §1 treats the sandbox as an opaque seam, not a WASM engine to
// reimplement here).
var wasmMagic = [4]byte{0x00, 0x61, 0x73, 0x6D}

// gasPerIteration is the cost of one loop_test iteration, per spec §4.E's
// "iterations*100 > gas_limit" rule.
const gasPerIteration = 100

type module struct {
	hash     common.Hash
	bytecode []byte
}

func (m *module) BytecodeHash() common.Hash { return m.hash }

type instance struct {
	id    uuid.UUID
	mod   *module
	env   sandbox.Env
	limit uint64 // env.GasLimit at instantiation; not decremented
}

func (i *instance) ID() uuid.UUID { return i.id }

// Adapter is the reference sandbox.Adapter. It caches compiled modules by
// bytecode hash so repeated deploys/executes of the same bytecode skip
// recompilation, and it guards every Call against reentrant calls on the
// same instance.
type Adapter struct {
	mu        sync.Mutex
	modules   *lru.Cache[common.Hash, *module]
	guards    map[uuid.UUID]*access.ReentrancyGuard
}

// New returns an Adapter with a bounded module cache of the given size.
func New(cacheSize int) *Adapter {
	cache, _ := lru.New[common.Hash, *module](cacheSize)
	return &Adapter{
		modules: cache,
		guards:  make(map[uuid.UUID]*access.ReentrancyGuard),
	}
}

// Compile rejects empty or non-WASM-prefixed bytecode, otherwise returns a
// cached or newly built Module.
func (a *Adapter) Compile(bytecode []byte) (sandbox.Module, error) {
	if len(bytecode) < 4 || [4]byte(bytecode[:4]) != wasmMagic {
		return nil, contracterr.New(contracterr.ErrCompilation, "bytecode missing WASM magic header")
	}

	hash := sha256.Sum256(bytecode)
	key := common.Hash(hash)

	if m, ok := a.modules.Get(key); ok {
		return m, nil
	}

	m := &module{hash: key, bytecode: bytecode}
	a.modules.Add(key, m)
	return m, nil
}

// Instantiate records limits in env and returns a fresh Instance whose gas
// budget is env.GasLimit. The limits themselves are not checked.
func (a *Adapter) Instantiate(mod sandbox.Module, limits sandbox.ResourceLimits, env sandbox.Env) (sandbox.Instance, error) {
	m, ok := mod.(*module)
	if !ok {
		return nil, contracterr.New(contracterr.ErrExecution, "module not produced by this adapter")
	}
	env.Limits = limits

	inst := &instance{id: uuid.New(), mod: m, env: env, limit: env.GasLimit}

	a.mu.Lock()
	a.guards[inst.id] = access.NewReentrancyGuard()
	a.mu.Unlock()

	return inst, nil
}

// Call dispatches to the built-in test methods. Any other method name is an
// ErrNotImplemented, per spec §9: production dispatch belongs to a real
// sandbox, this adapter only answers the two reference methods.
func (a *Adapter) Call(inst sandbox.Instance, method string, args []sandbox.Value) ([]sandbox.Value, error) {
	i, ok := inst.(*instance)
	if !ok {
		return nil, contracterr.New(contracterr.ErrExecution, "instance not produced by this adapter")
	}

	a.mu.Lock()
	guard := a.guards[i.id]
	a.mu.Unlock()
	if guard == nil {
		return nil, contracterr.New(contracterr.ErrExecution, "unknown instance")
	}
	if err := guard.Enter(); err != nil {
		return nil, err
	}
	defer guard.Exit()

	switch method {
	case "add":
		if len(args) != 2 {
			return nil, contracterr.New(contracterr.ErrInvalidArgs, "add method requires exactly 2 arguments")
		}
		return []sandbox.Value{sandbox.I32Value(args[0].I32 + args[1].I32)}, nil

	case "loop_test":
		if len(args) != 1 {
			return nil, contracterr.New(contracterr.ErrInvalidArgs, "loop_test requires exactly 1 argument")
		}
		iterations := uint64(args[0].I32)
		cost, overflow := mathutil.SafeMul(iterations, gasPerIteration)
		if overflow || cost > i.env.GasLimit {
			return nil, contracterr.New(contracterr.ErrExecution, "Gas limit exceeded")
		}
		return nil, nil

	default:
		return nil, contracterr.New(contracterr.ErrNotImplemented, "method "+method+" not implemented")
	}
}
