package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/contractcore/pkg/common"
	"github.com/erigontech/contractcore/pkg/contracts/contracterr"
)

func addrN(n byte) common.Address { return common.BytesToAddress([]byte{n}) }

func TestBootstrapGrantsDefaultAdminToAnyCaller(t *testing.T) {
	c := New()
	admin := addrN(1)

	changed, err := c.GrantRole(common.DefaultAdmin, admin, addrN(99))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, c.HasRole(common.DefaultAdmin, admin))
}

func TestBootstrapClosesAfterFirstAdmin(t *testing.T) {
	c := New()
	first := addrN(1)
	_, err := c.GrantRole(common.DefaultAdmin, first, addrN(42))
	require.NoError(t, err)

	_, err = c.GrantRole(common.DefaultAdmin, addrN(2), addrN(42))
	assert.ErrorIs(t, err, contracterr.ErrAccessDenied)
}

func TestGrantRoleRequiresAdmin(t *testing.T) {
	c := New()
	admin := addrN(1)
	_, err := c.GrantRole(common.DefaultAdmin, admin, admin)
	require.NoError(t, err)

	_, err = c.GrantRole(common.Deployer, addrN(2), addrN(3))
	assert.ErrorIs(t, err, contracterr.ErrAccessDenied)

	changed, err := c.GrantRole(common.Deployer, addrN(2), admin)
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestGrantRoleIsIdempotent(t *testing.T) {
	c := New()
	admin := addrN(1)
	_, err := c.GrantRole(common.DefaultAdmin, admin, admin)
	require.NoError(t, err)

	changed, err := c.GrantRole(common.Deployer, addrN(2), admin)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = c.GrantRole(common.Deployer, addrN(2), admin)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestRevokeRoleIsIdempotent(t *testing.T) {
	c := New()
	admin := addrN(1)
	_, err := c.GrantRole(common.DefaultAdmin, admin, admin)
	require.NoError(t, err)
	_, err = c.GrantRole(common.Deployer, addrN(2), admin)
	require.NoError(t, err)

	changed, err := c.RevokeRole(common.Deployer, addrN(2), admin)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = c.RevokeRole(common.Deployer, addrN(2), admin)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestSetRoleAdminForbidsDefaultAdmin(t *testing.T) {
	c := New()
	admin := addrN(1)
	_, err := c.GrantRole(common.DefaultAdmin, admin, admin)
	require.NoError(t, err)

	err = c.SetRoleAdmin(common.DefaultAdmin, common.Deployer, admin)
	assert.ErrorIs(t, err, contracterr.ErrInvalidOp)
}

func TestSetRoleAdminReassignsAdministration(t *testing.T) {
	c := New()
	admin := addrN(1)
	_, err := c.GrantRole(common.DefaultAdmin, admin, admin)
	require.NoError(t, err)

	err = c.SetRoleAdmin(common.Deployer, common.Upgrader, admin)
	require.NoError(t, err)
	assert.Equal(t, common.Upgrader, c.RoleAdmin(common.Deployer))

	upgrader := addrN(2)
	_, err = c.GrantRole(common.Upgrader, upgrader, admin)
	require.NoError(t, err)

	changed, err := c.GrantRole(common.Deployer, addrN(3), upgrader)
	require.NoError(t, err)
	assert.True(t, changed)

	_, err = c.GrantRole(common.Deployer, addrN(4), admin)
	assert.ErrorIs(t, err, contracterr.ErrAccessDenied)
}

func TestCheckRole(t *testing.T) {
	c := New()
	admin := addrN(1)
	assert.ErrorIs(t, c.CheckRole(common.DefaultAdmin, admin), contracterr.ErrAccessDenied)

	_, err := c.GrantRole(common.DefaultAdmin, admin, admin)
	require.NoError(t, err)
	assert.NoError(t, c.CheckRole(common.DefaultAdmin, admin))
}
