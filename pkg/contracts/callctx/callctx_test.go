package callctx

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/erigontech/contractcore/pkg/common"
)

func TestNew(t *testing.T) {
	addr := common.BytesToAddress([]byte{1, 2, 3})
	cc := New(addr)
	assert.Equal(t, addr, cc.Caller)
}

func TestFromTestDefaultsToZeroAddress(t *testing.T) {
	ClearTestCaller()
	cc := FromTest()
	assert.True(t, cc.Caller.IsZero())
}

func TestSetAndClearTestCaller(t *testing.T) {
	addr := common.BytesToAddress([]byte{9})
	SetTestCaller(addr)
	defer ClearTestCaller()

	cc := FromTest()
	assert.Equal(t, addr, cc.Caller)

	ClearTestCaller()
	assert.True(t, FromTest().Caller.IsZero())
}
