package builtin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/contractcore/pkg/contracts/contracterr"
	"github.com/erigontech/contractcore/pkg/contracts/sandbox"
)

func validBytecode() []byte {
	return append([]byte{0x00, 0x61, 0x73, 0x6D}, []byte{1, 2, 3}...)
}

func TestCompileRejectsMissingMagicHeader(t *testing.T) {
	a := New(8)
	_, err := a.Compile([]byte{1, 2, 3, 4})
	assert.ErrorIs(t, err, contracterr.ErrCompilation)
}

func TestCompileRejectsShortBytecode(t *testing.T) {
	a := New(8)
	_, err := a.Compile([]byte{0x00})
	assert.ErrorIs(t, err, contracterr.ErrCompilation)
}

func TestCompileCachesByBytecodeHash(t *testing.T) {
	a := New(8)
	bc := validBytecode()

	m1, err := a.Compile(bc)
	require.NoError(t, err)
	m2, err := a.Compile(bc)
	require.NoError(t, err)
	assert.Equal(t, m1.BytecodeHash(), m2.BytecodeHash())
	assert.Same(t, m1, m2)
}

func TestAddMethod(t *testing.T) {
	a := New(8)
	mod, err := a.Compile(validBytecode())
	require.NoError(t, err)

	inst, err := a.Instantiate(mod, sandbox.ResourceLimits{MaxGas: 1000}, sandbox.Env{GasLimit: 1000})
	require.NoError(t, err)

	out, err := a.Call(inst, "add", []sandbox.Value{sandbox.I32Value(2), sandbox.I32Value(3)})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int32(5), out[0].I32)
}

func TestLoopTestWithinGasLimit(t *testing.T) {
	a := New(8)
	mod, err := a.Compile(validBytecode())
	require.NoError(t, err)

	inst, err := a.Instantiate(mod, sandbox.ResourceLimits{MaxGas: 1000}, sandbox.Env{GasLimit: 1000})
	require.NoError(t, err)

	_, err = a.Call(inst, "loop_test", []sandbox.Value{sandbox.I32Value(5)})
	assert.NoError(t, err)
}

func TestLoopTestExceedsGasLimit(t *testing.T) {
	a := New(8)
	mod, err := a.Compile(validBytecode())
	require.NoError(t, err)

	inst, err := a.Instantiate(mod, sandbox.ResourceLimits{MaxGas: 100}, sandbox.Env{GasLimit: 100})
	require.NoError(t, err)

	_, err = a.Call(inst, "loop_test", []sandbox.Value{sandbox.I32Value(5)})
	require.Error(t, err)
	assert.ErrorIs(t, err, contracterr.ErrExecution)
	assert.Contains(t, err.Error(), "Gas limit exceeded")
}

func TestCallUnknownMethod(t *testing.T) {
	a := New(8)
	mod, err := a.Compile(validBytecode())
	require.NoError(t, err)
	inst, err := a.Instantiate(mod, sandbox.ResourceLimits{MaxGas: 1000}, sandbox.Env{GasLimit: 1000})
	require.NoError(t, err)

	_, err = a.Call(inst, "not_a_method", nil)
	assert.ErrorIs(t, err, contracterr.ErrNotImplemented)
}
