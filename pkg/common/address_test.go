package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytesToAddressPadsLeft(t *testing.T) {
	a := BytesToAddress([]byte{0xAB, 0xCD})
	assert.Equal(t, byte(0xAB), a[AddressLength-2])
	assert.Equal(t, byte(0xCD), a[AddressLength-1])
	for i := 0; i < AddressLength-2; i++ {
		assert.Equal(t, byte(0), a[i])
	}
}

func TestBytesToAddressTruncatesOverlong(t *testing.T) {
	long := make([]byte, AddressLength+10)
	for i := range long {
		long[i] = byte(i)
	}
	a := BytesToAddress(long)
	assert.Equal(t, long[10:], a[:])
}

func TestHexToAddressRoundTrip(t *testing.T) {
	a, err := HexToAddress("0x" + "11"+"22"+"33"+"0000000000000000000000000000000000000000000000000000000000")
	require.NoError(t, err)
	assert.Equal(t, "0x1122330000000000000000000000000000000000000000000000000000000000", a.String())
}

func TestHexToAddressRejectsInvalidHex(t *testing.T) {
	_, err := HexToAddress("0xzz")
	assert.Error(t, err)
}

func TestIsZero(t *testing.T) {
	var a Address
	assert.True(t, a.IsZero())
	a[0] = 1
	assert.False(t, a.IsZero())
}

func TestWellKnownRolesAreDistinctAndFullyFilled(t *testing.T) {
	roles := []Role{DefaultAdmin, Deployer, Executor, Upgrader}
	for i := range roles {
		for j := range roles {
			if i != j {
				assert.NotEqual(t, roles[i], roles[j])
			}
		}
	}
	for _, b := range Deployer {
		assert.Equal(t, byte(1), b)
	}
	for _, b := range Executor {
		assert.Equal(t, byte(2), b)
	}
	for _, b := range Upgrader {
		assert.Equal(t, byte(3), b)
	}
}
