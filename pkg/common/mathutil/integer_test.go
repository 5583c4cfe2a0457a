package mathutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeAdd(t *testing.T) {
	sum, overflow := SafeAdd(1, 2)
	assert.False(t, overflow)
	assert.Equal(t, uint64(3), sum)

	_, overflow = SafeAdd(math.MaxUint64, 1)
	assert.True(t, overflow)
}

func TestSafeMul(t *testing.T) {
	product, overflow := SafeMul(3, 4)
	assert.False(t, overflow)
	assert.Equal(t, uint64(12), product)

	_, overflow = SafeMul(math.MaxUint64, 2)
	assert.True(t, overflow)
}

func TestCeilDiv(t *testing.T) {
	assert.Equal(t, 3, CeilDiv(7, 3))
	assert.Equal(t, 2, CeilDiv(6, 3))
	assert.Equal(t, 0, CeilDiv(5, 0))
}

func TestParseUint64(t *testing.T) {
	cases := []struct {
		in      string
		want    uint64
		wantOK  bool
	}{
		{"", 0, true},
		{"42", 42, true},
		{"0x2a", 42, true},
		{"0X2A", 42, true},
		{"not-a-number", 0, false},
	}
	for _, c := range cases {
		got, ok := ParseUint64(c.in)
		assert.Equal(t, c.wantOK, ok, "input %q", c.in)
		if c.wantOK {
			assert.Equal(t, c.want, got, "input %q", c.in)
		}
	}
}
