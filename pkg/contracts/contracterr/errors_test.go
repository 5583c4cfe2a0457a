package contracterr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetailedErrorWrapsKind(t *testing.T) {
	err := New(ErrAccessDenied, "account x lacks role y")
	assert.True(t, errors.Is(err, ErrAccessDenied))
	assert.Equal(t, "access denied: account x lacks role y", err.Error())
}

func TestDetailedErrorWithoutDetail(t *testing.T) {
	err := New(ErrNotFound, "")
	assert.Equal(t, "not found", err.Error())
}

func TestUnrecoverable(t *testing.T) {
	assert.True(t, Unrecoverable(New(ErrStateCorrupted, "hash mismatch")))
	assert.True(t, Unrecoverable(New(ErrBytecodeIntegrity, "hash mismatch")))
	assert.False(t, Unrecoverable(New(ErrAccessDenied, "")))
}

func TestClassifiers(t *testing.T) {
	assert.True(t, IsVersionError(New(ErrVersionConflict, "")))
	assert.True(t, IsStateError(New(ErrStateRollback, "")))
	assert.True(t, IsUpgradeError(New(ErrUpgradeLimitExceeded, "")))
	assert.True(t, IsBytecodeError(New(ErrBytecodeVerification, "")))
	assert.True(t, IsConcurrencyError(New(ErrOperationTimeout, "")))

	assert.False(t, IsVersionError(New(ErrAccessDenied, "")))
}
