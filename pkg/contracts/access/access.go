// Package access implements role-based access control for the contract
// runtime (spec §4.A): role grants/revokes with an admin hierarchy rooted at
// DEFAULT_ADMIN.
package access

import (
	"sync"

	"github.com/erigontech/contractcore/pkg/common"
	"github.com/erigontech/contractcore/pkg/contracts/contracterr"
)

// Control holds role grants and the role-admin hierarchy. All methods are
// synchronous and non-blocking (spec §5: Access Control never suspends).
type Control struct {
	mu sync.RWMutex

	// grants[role][account] == struct{} iff account holds role.
	grants map[common.Role]map[common.Address]struct{}
	// admins[role] is the role whose holders may grant/revoke role. A
	// missing entry defaults to DEFAULT_ADMIN (spec §3 invariant 2).
	admins map[common.Role]common.Role
}

// New returns an empty Control. No account holds any role yet, including
// DEFAULT_ADMIN; the first grant_role(DEFAULT_ADMIN, x) call is the bootstrap
// case (spec §3 invariant 3, §8 property 2).
func New() *Control {
	return &Control{
		grants: make(map[common.Role]map[common.Address]struct{}),
		admins: make(map[common.Role]common.Role),
	}
}

// HasRole reports whether account holds role.
func (c *Control) HasRole(role common.Role, account common.Address) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hasRoleLocked(role, account)
}

func (c *Control) hasRoleLocked(role common.Role, account common.Address) bool {
	accounts, ok := c.grants[role]
	if !ok {
		return false
	}
	_, ok = accounts[account]
	return ok
}

// CheckRole lifts HasRole to a failure, per §4.A.
func (c *Control) CheckRole(role common.Role, account common.Address) error {
	if !c.HasRole(role, account) {
		return contracterr.New(contracterr.ErrAccessDenied,
			"account "+account.String()+" does not have required role "+role.String())
	}
	return nil
}

// RoleAdmin returns the role that administers role, defaulting to
// DEFAULT_ADMIN (spec §3 invariant 2, §4.A).
func (c *Control) RoleAdmin(role common.Role) common.Role {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roleAdminLocked(role)
}

func (c *Control) roleAdminLocked(role common.Role) common.Role {
	if admin, ok := c.admins[role]; ok {
		return admin
	}
	return common.DefaultAdmin
}

// GrantRole grants role to account on behalf of caller, returning true iff
// the grant changed state. Idempotent: granting to an existing holder
// returns (false, nil), never an error (spec §4.A, §8 property 1).
//
// Bootstrap exception (spec §3 invariant 3): granting DEFAULT_ADMIN succeeds
// for any caller if and only if no account currently holds DEFAULT_ADMIN.
func (c *Control) GrantRole(role common.Role, account common.Address, caller common.Address) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	isBootstrap := role == common.DefaultAdmin && len(c.grants[common.DefaultAdmin]) == 0
	if !isBootstrap {
		admin := c.roleAdminLocked(role)
		if !c.hasRoleLocked(admin, caller) {
			return false, contracterr.New(contracterr.ErrAccessDenied,
				"caller "+caller.String()+" does not hold admin role "+admin.String()+" for role "+role.String())
		}
	}

	if c.hasRoleLocked(role, account) {
		return false, nil
	}

	accounts, ok := c.grants[role]
	if !ok {
		accounts = make(map[common.Address]struct{})
		c.grants[role] = accounts
	}
	accounts[account] = struct{}{}
	return true, nil
}

// RevokeRole revokes role from account on behalf of caller, returning true
// iff the revoke changed state. Idempotent (spec §9: grant and revoke are
// distinct operations; repeated revokes are no-ops, never a toggle).
func (c *Control) RevokeRole(role common.Role, account common.Address, caller common.Address) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	admin := c.roleAdminLocked(role)
	if !c.hasRoleLocked(admin, caller) {
		return false, contracterr.New(contracterr.ErrAccessDenied,
			"caller "+caller.String()+" does not hold admin role "+admin.String()+" for role "+role.String())
	}

	if !c.hasRoleLocked(role, account) {
		return false, nil
	}

	delete(c.grants[role], account)
	return true, nil
}

// SetRoleAdmin changes the admin role of role to newAdmin, on behalf of
// caller who must hold the current admin of role. Changing the admin of
// DEFAULT_ADMIN is forbidden (spec §3 invariant 2, §4.A).
func (c *Control) SetRoleAdmin(role, newAdmin common.Role, caller common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if role == common.DefaultAdmin {
		return contracterr.New(contracterr.ErrInvalidOp, "cannot change admin role of DEFAULT_ADMIN")
	}

	current := c.roleAdminLocked(role)
	if !c.hasRoleLocked(current, caller) {
		return contracterr.New(contracterr.ErrAccessDenied,
			"caller "+caller.String()+" does not hold current admin role "+current.String()+" for role "+role.String())
	}

	c.admins[role] = newAdmin
	return nil
}
