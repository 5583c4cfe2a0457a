// Package sandbox defines the opaque compile/instantiate/call seam the
// Runtime Facade drives to execute contract bytecode (spec §4.F, §6.3). The
// core never interprets bytecode itself; it treats the Adapter as a black
// box bounded by ResourceLimits.
package sandbox

import (
	"github.com/google/uuid"

	"github.com/erigontech/contractcore/pkg/common"
)

// ValueKind tags a Value's payload (spec §6.2).
type ValueKind int

const (
	I32 ValueKind = iota
	I64
	F32
	F64
	Bytes
	String
)

// Value is a tagged union mirroring the sandbox ABI (spec §6.2).
type Value struct {
	Kind ValueKind
	I32  int32
	I64  int64
	F32  float32
	F64  float64
	Buf  []byte
	Str  string
}

// I32Value constructs an I32 Value, the only kind the reference builtin
// adapter's test methods use.
func I32Value(v int32) Value { return Value{Kind: I32, I32: v} }

// ResourceLimits bounds what an Instance may consume (spec §6.2).
type ResourceLimits struct {
	MaxMemory    uint64
	MaxGas       uint64
	MaxStorage   uint64
	MaxCallDepth uint32
}

// Env is the execution environment passed to Instantiate (spec §4.E).
type Env struct {
	GasLimit    uint64
	BlockNumber uint64
	Timestamp   int64
	Caller      common.Address
	Limits      ResourceLimits
}

// Module is an opaque compiled handle to bytecode.
type Module interface {
	// BytecodeHash identifies the bytecode this module was compiled from.
	BytecodeHash() common.Hash
}

// Instance is an opaque instantiated, runnable module.
type Instance interface {
	ID() uuid.UUID
}

// Adapter is the three-method seam spec §4.F describes. Implementations are
// responsible for rejecting malformed modules, enforcing ResourceLimits, and
// reporting gas exhaustion as an ExecutionError whose detail contains
// "Gas limit exceeded".
type Adapter interface {
	Compile(bytecode []byte) (Module, error)
	Instantiate(module Module, limits ResourceLimits, env Env) (Instance, error)
	Call(instance Instance, method string, args []Value) ([]Value, error)
}
