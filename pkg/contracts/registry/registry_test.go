package registry

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/contractcore/pkg/common"
	"github.com/erigontech/contractcore/pkg/contracts/contracterr"
)

func addrN(n byte) common.Address { return common.BytesToAddress([]byte{n}) }

func version(v string, upgradeable bool, at time.Time) Version {
	return Version{
		Bytecode: []byte{0x00, 0x61, 0x73, 0x6D},
		ABI:      ABI{Methods: []Method{{Name: "foo"}}},
		Metadata: Metadata{
			Version:       v,
			CreatedAt:     at,
			UpdatedAt:     at,
			Author:        addrN(1),
			Description:   "a test contract",
			IsUpgradeable: upgradeable,
		},
	}
}

func TestRegisterVersionRejectsEmptyBytecode(t *testing.T) {
	r := New()
	v := version("1.0.0", true, time.Now())
	v.Bytecode = nil
	err := r.RegisterVersion(addrN(1), v)
	assert.ErrorIs(t, err, contracterr.ErrBytecodeVerification)
}

func TestRegisterVersionRejectsOversizedBytecode(t *testing.T) {
	r := NewWithLimits(3)
	v := version("1.0.0", true, time.Now())
	err := r.RegisterVersion(addrN(1), v)
	assert.ErrorIs(t, err, contracterr.ErrBytecodeVerification)
}

func TestRegisterVersionFirstIsDeploy(t *testing.T) {
	r := New()
	addr := addrN(1)
	require.NoError(t, r.RegisterVersion(addr, version("1.0.0", true, time.Now())))

	latest, err := r.GetLatestVersion(addr)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", latest.Metadata.Version)

	_, err = r.GetUpgradeHistory(addr)
	assert.ErrorIs(t, err, contracterr.ErrNotFound)
}

func TestRegisterVersionRequiresStrictlyGreaterSemver(t *testing.T) {
	r := New()
	addr := addrN(1)
	now := time.Now()
	require.NoError(t, r.RegisterVersion(addr, version("1.0.0", true, now)))

	err := r.RegisterVersion(addr, version("1.0.0", true, now))
	assert.ErrorIs(t, err, contracterr.ErrVersionConflict)

	err = r.RegisterVersion(addr, version("0.9.0", true, now))
	assert.ErrorIs(t, err, contracterr.ErrVersionConflict)

	require.NoError(t, r.RegisterVersion(addr, version("1.1.0", true, now)))
}

func TestRegisterVersionRejectsNonUpgradeableCurrent(t *testing.T) {
	r := New()
	addr := addrN(1)
	now := time.Now()
	require.NoError(t, r.RegisterVersion(addr, version("1.0.0", false, now)))

	err := r.RegisterVersion(addr, version("2.0.0", true, now))
	assert.ErrorIs(t, err, contracterr.ErrUpgradeValidation)
}

func TestRegisterVersionRecordsUpgradeHistory(t *testing.T) {
	r := New()
	addr := addrN(1)
	now := time.Now()
	require.NoError(t, r.RegisterVersion(addr, version("1.0.0", true, now)))
	require.NoError(t, r.RegisterVersion(addr, version("2.0.0", true, now)))

	recs, err := r.GetUpgradeHistory(addr)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "1.0.0", recs[0].FromVersion)
	assert.Equal(t, "2.0.0", recs[0].ToVersion)
	assert.True(t, recs[0].Successful)
	assert.False(t, recs[0].RollbackPerformed)
}

func TestRollbackVersionRequiresTwoVersions(t *testing.T) {
	r := New()
	addr := addrN(1)
	now := time.Now()
	require.NoError(t, r.RegisterVersion(addr, version("1.0.0", true, now)))

	err := r.RollbackVersion(addr)
	assert.ErrorIs(t, err, contracterr.ErrStateRollback)
}

func TestRollbackVersionPopsNewestOnly(t *testing.T) {
	r := New()
	addr := addrN(1)
	now := time.Now()
	require.NoError(t, r.RegisterVersion(addr, version("1.0.0", true, now)))
	require.NoError(t, r.RegisterVersion(addr, version("2.0.0", true, now)))
	require.NoError(t, r.RegisterVersion(addr, version("3.0.0", true, now)))

	require.NoError(t, r.RollbackVersion(addr))

	latest, err := r.GetLatestVersion(addr)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", latest.Metadata.Version)

	recs, err := r.GetUpgradeHistory(addr)
	require.NoError(t, err)
	last := recs[len(recs)-1]
	assert.False(t, last.Successful)
	assert.True(t, last.RollbackPerformed)
}

func TestFindByIndexVersion(t *testing.T) {
	r := New()
	addr := addrN(1)
	now := time.Now()
	require.NoError(t, r.RegisterVersion(addr, version("1.0.0", true, now)))

	contracts, err := r.FindByIndex(IndexVersion, "1.0.0")
	require.NoError(t, err)
	require.Len(t, contracts, 1)
	assert.Equal(t, addr, contracts[0].Address)

	_, err = r.FindByIndex(IndexVersion, "9.9.9")
	assert.ErrorIs(t, err, contracterr.ErrVersionNotFound)
}

func TestFindByIndexCreationAndUpdateTime(t *testing.T) {
	r := New()
	addr := addrN(1)
	now := time.Unix(1_700_000_000, 0)
	require.NoError(t, r.RegisterVersion(addr, version("1.0.0", true, now)))

	tsStr := strconv.FormatInt(time.Unix(1_700_000_000, 0).Unix(), 10)

	contracts, err := r.FindByIndex(IndexCreationTime, tsStr)
	require.NoError(t, err)
	assert.Len(t, contracts, 1)

	contracts, err = r.FindByIndex(IndexUpdateTime, tsStr)
	require.NoError(t, err)
	assert.Len(t, contracts, 1)
}

func TestSearchByDescriptionIsCaseInsensitive(t *testing.T) {
	r := New()
	addr := addrN(1)
	require.NoError(t, r.RegisterVersion(addr, version("1.0.0", true, time.Now())))

	contracts := r.SearchByDescription("TEST")
	assert.Len(t, contracts, 1)

	contracts = r.SearchByDescription("no-such-substring")
	assert.Empty(t, contracts)
}

