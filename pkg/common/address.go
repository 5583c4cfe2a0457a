// Package common holds the value types shared by every contract-runtime
// component: 32-byte addresses, roles and hashes.
package common

import (
	"encoding/hex"
	"fmt"
)

// AddressLength is the length in bytes of a contract or account identifier.
const AddressLength = 32

// RoleLength is the length in bytes of an access-control role tag.
const RoleLength = 32

// HashLength is the length in bytes of a SHA-256 digest.
const HashLength = 32

// Address is an opaque 32-byte contract or account identifier.
type Address [AddressLength]byte

// Role is an opaque 32-byte access-control capability tag.
type Role [RoleLength]byte

// Hash is a 32-byte digest, used for state-integrity hashes.
type Hash [HashLength]byte

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool { return a == Address{} }

func (a Address) String() string { return "0x" + hex.EncodeToString(a[:]) }
func (r Role) String() string    { return "0x" + hex.EncodeToString(r[:]) }
func (h Hash) String() string    { return "0x" + hex.EncodeToString(h[:]) }

// BytesToAddress left-pads b with zeros into an Address; a b longer than
// AddressLength is cut to its last AddressLength bytes.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-min(len(b), AddressLength):], b)
	return a
}

// BytesToRole left-pads b with zeros into a Role; a b longer than RoleLength
// is cut to its first RoleLength bytes.
func BytesToRole(b []byte) Role {
	var r Role
	copy(r[RoleLength-min(len(b), RoleLength):], b)
	return r
}

// HexToAddress parses a 0x-prefixed or bare hex string into an Address.
func HexToAddress(s string) (Address, error) {
	b, err := decodeHex(s)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address hex %q: %w", s, err)
	}
	return BytesToAddress(b), nil
}

// HexToRole parses a 0x-prefixed or bare hex string into a Role.
func HexToRole(s string) (Role, error) {
	b, err := decodeHex(s)
	if err != nil {
		return Role{}, fmt.Errorf("invalid role hex %q: %w", s, err)
	}
	return BytesToRole(b), nil
}

func decodeHex(s string) ([]byte, error) {
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	return hex.DecodeString(s)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Well-known roles (spec §3). DefaultAdmin is the zero role and is the
// sentinel admin-of-everything role; it is reserved and its own admin is
// immutably itself.
var (
	DefaultAdmin = Role{}
	Deployer     = fillRole(1)
	Executor     = fillRole(2)
	Upgrader     = fillRole(3)
)

func fillRole(b byte) Role {
	var r Role
	for i := range r {
		r[i] = b
	}
	return r
}
