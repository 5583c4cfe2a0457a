// Package runtime implements the Runtime Facade of spec §4.E/§6.1: the single
// entry point that composes access control, state, registry, tracker and
// sandbox into the contract lifecycle operations (deploy, upgrade, execute,
// rollback, state update) plus their read-only queries.
package runtime

import (
	"time"

	"github.com/erigontech/erigon-lib/log/v3"

	"github.com/erigontech/contractcore/internal/config"
	"github.com/erigontech/contractcore/pkg/common"
	"github.com/erigontech/contractcore/pkg/contracts/access"
	"github.com/erigontech/contractcore/pkg/contracts/callctx"
	"github.com/erigontech/contractcore/pkg/contracts/contracterr"
	"github.com/erigontech/contractcore/pkg/contracts/registry"
	"github.com/erigontech/contractcore/pkg/contracts/sandbox"
	"github.com/erigontech/contractcore/pkg/contracts/state"
	"github.com/erigontech/contractcore/pkg/contracts/tracker"
)

// UpgradeWindow is the trailing period over which MaxUpgradesPerDay is
// counted (spec §4.E check_upgrade_limits). DefaultSandboxMemory is the
// memory limit callers typically pass in sandbox.ResourceLimits when none
// is otherwise configured.
const (
	UpgradeWindow        = 86400 * time.Second
	DefaultSandboxMemory = 64 * 1024 * 1024
)

// Runtime is the facade spec §6.1 describes. Each subsystem guards itself
// with its own lock, taken and released within a single call, so the facade
// never holds two subsystem locks at once. The lifecycle operations start
// with tracker admission and the role check, and release their tracker
// admission on every exit path. The calls that follow are not always in the
// order Registry -> StateManager -> Sandbox: deploy and upgrade call the
// sandbox's Compile before registering the version and writing state.
type Runtime struct {
	tracker  *tracker.Tracker
	access   *access.Control
	registry *registry.Registry
	state    *state.Manager
	sandbox  sandbox.Adapter

	minUpgradeInterval time.Duration
	maxUpgradesPerDay  int
	upgradeWindow      time.Duration

	logger log.Logger
}

// Option configures a Runtime at construction.
type Option func(*Runtime)

// WithLogger overrides the default root logger.
func WithLogger(l log.Logger) Option {
	return func(r *Runtime) { r.logger = l }
}

// New assembles a Runtime from fresh subsystems using the spec's default
// limits, wired to adapter for contract execution.
func New(adapter sandbox.Adapter, opts ...Option) *Runtime {
	return NewFromConfig(adapter, config.Default(), opts...)
}

// NewFromConfig assembles a Runtime whose admission, upgrade-rate and size
// limits come from cfg (see internal/config), wired to adapter for contract
// execution.
func NewFromConfig(adapter sandbox.Adapter, cfg config.RuntimeConfig, opts ...Option) *Runtime {
	r := &Runtime{
		tracker: tracker.NewWithLimits(
			cfg.MaxConcurrentOperations,
			cfg.MaxOperationsPerSecond,
			cfg.MaxPerAddressActive,
			time.Duration(cfg.OperationTTLSeconds)*time.Second,
		),
		access:   access.New(),
		registry: registry.NewWithLimits(cfg.MaxBytecodeSize),
		state: state.NewManager().WithLimits(
			cfg.MaxKeySize, cfg.MaxValueSize, cfg.MaxStateSize, cfg.MaxEntries,
		),
		sandbox:            adapter,
		minUpgradeInterval: time.Duration(cfg.MinUpgradeIntervalSeconds) * time.Second,
		maxUpgradesPerDay:  cfg.MaxUpgradesPerDay,
		upgradeWindow:      UpgradeWindow,
		logger:             log.Root(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DeployedContract describes everything deploy_contract produces (spec §4.E).
type DeployedContract struct {
	Address common.Address
	Version *registry.Version
}

// ExecutionResult is what execute_contract returns (spec §4.E, §6.2).
type ExecutionResult struct {
	ReturnValues []sandbox.Value
	GasUsed      uint64
}

// --- Role management (spec §6.1 passthroughs to Access Control) ---

// GrantRole grants role to account, authorized by cc.Caller.
func (r *Runtime) GrantRole(cc *callctx.CallContext, role common.Role, account common.Address) (bool, error) {
	return r.access.GrantRole(role, account, cc.Caller)
}

// RevokeRole revokes role from account, authorized by cc.Caller.
func (r *Runtime) RevokeRole(cc *callctx.CallContext, role common.Role, account common.Address) (bool, error) {
	return r.access.RevokeRole(role, account, cc.Caller)
}

// SetRoleAdmin changes role's admin role, authorized by cc.Caller.
func (r *Runtime) SetRoleAdmin(cc *callctx.CallContext, role, newAdmin common.Role) error {
	return r.access.SetRoleAdmin(role, newAdmin, cc.Caller)
}

// HasRole reports whether account holds role.
func (r *Runtime) HasRole(role common.Role, account common.Address) bool {
	return r.access.HasRole(role, account)
}

// --- Lifecycle operations (spec §4.E) ---

// DeployContract registers bytecode/abi/metadata as the first version at the
// caller-supplied addr, requiring cc.Caller to hold common.Deployer.
func (r *Runtime) DeployContract(cc *callctx.CallContext, addr common.Address, bytecode []byte, abi registry.ABI, meta registry.Metadata) (*DeployedContract, error) {
	h, err := r.tracker.StartOperation(addr, tracker.Deploy)
	if err != nil {
		r.logger.Warn("deploy rejected: admission control", "address", addr, "err", err)
		return nil, err
	}
	defer r.tracker.EndOperation(addr, tracker.Deploy)

	if err := r.access.CheckRole(common.Deployer, cc.Caller); err != nil {
		r.logger.Warn("deploy rejected: access denied", "address", addr, "caller", cc.Caller, "op", h.ID)
		return nil, err
	}

	mod, err := r.sandbox.Compile(bytecode)
	if err != nil {
		r.logger.Warn("deploy rejected: compilation failed", "address", addr, "err", err)
		return nil, err
	}
	_ = mod

	v := registry.Version{Bytecode: bytecode, ABI: abi, Metadata: meta}
	if err := r.registry.RegisterVersion(addr, v); err != nil {
		r.logger.Warn("deploy rejected: registration failed", "address", addr, "err", err)
		return nil, err
	}

	if err := r.state.UpdateState(addr, []byte(state.InitializedKey), []byte{1}); err != nil {
		r.logger.Error("deploy left state uninitialized", "address", addr, "err", err)
		return nil, err
	}

	if _, err := r.state.CreateSnapshot(addr, meta.Version, meta.CreatedAt); err != nil {
		r.logger.Error("deploy left contract without a snapshot", "address", addr, "err", err)
		return nil, err
	}

	stored, err := r.registry.GetLatestVersion(addr)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("contract deployed", "address", addr, "version", meta.Version, "op", h.ID)
	return &DeployedContract{Address: addr, Version: stored}, nil
}

// checkUpgradeLimits enforces spec §4.E's rate limit: at least
// MinUpgradeInterval since the contract's last update, and no more than
// MaxUpgradesPerDay registrations within the trailing UpgradeWindow.
func (r *Runtime) checkUpgradeLimits(addr common.Address, now time.Time) error {
	history, err := r.registry.GetContractVersions(addr)
	if err != nil {
		return err
	}
	latest := history[len(history)-1]
	if now.Sub(latest.Metadata.UpdatedAt) < r.minUpgradeInterval {
		return contracterr.New(contracterr.ErrUpgradeLimitExceeded, "minimum upgrade interval not elapsed")
	}

	recent := 0
	for _, v := range history {
		if now.Sub(v.Metadata.CreatedAt) <= r.upgradeWindow {
			recent++
		}
	}
	if recent >= r.maxUpgradesPerDay {
		return contracterr.New(contracterr.ErrUpgradeLimitExceeded, "maximum upgrades per day exceeded")
	}
	return nil
}

// UpgradeContract registers a new version for addr, requiring cc.Caller to
// hold common.Upgrader, and enforcing the upgrade rate limit (spec §4.E).
func (r *Runtime) UpgradeContract(cc *callctx.CallContext, addr common.Address, bytecode []byte, abi registry.ABI, meta registry.Metadata, now time.Time) (*registry.Version, error) {
	h, err := r.tracker.StartOperation(addr, tracker.Upgrade)
	if err != nil {
		r.logger.Warn("upgrade rejected: admission control", "address", addr, "err", err)
		return nil, err
	}
	defer r.tracker.EndOperation(addr, tracker.Upgrade)

	if err := r.access.CheckRole(common.Upgrader, cc.Caller); err != nil {
		r.logger.Warn("upgrade rejected: access denied", "address", addr, "caller", cc.Caller, "op", h.ID)
		return nil, err
	}

	if err := r.checkUpgradeLimits(addr, now); err != nil {
		r.logger.Warn("upgrade rejected: rate limit", "address", addr, "err", err, "op", h.ID)
		return nil, err
	}

	if _, err := r.sandbox.Compile(bytecode); err != nil {
		r.logger.Warn("upgrade rejected: compilation failed", "address", addr, "err", err)
		return nil, err
	}

	previous, err := r.registry.GetLatestVersion(addr)
	if err != nil {
		r.logger.Warn("upgrade rejected: no previous version", "address", addr, "err", err, "op", h.ID)
		return nil, err
	}
	if _, err := r.state.CreateSnapshot(addr, previous.Metadata.Version, now); err != nil {
		r.logger.Warn("upgrade rejected: could not snapshot previous state", "address", addr, "err", err, "op", h.ID)
		return nil, err
	}

	v := registry.Version{Bytecode: bytecode, ABI: abi, Metadata: meta}
	if err := r.registry.RegisterVersion(addr, v); err != nil {
		r.logger.Warn("upgrade rejected: registration failed", "address", addr, "err", err)
		return nil, err
	}

	stored, err := r.registry.GetLatestVersion(addr)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("contract upgraded", "address", addr, "version", meta.Version, "op", h.ID)
	return stored, nil
}

// RollbackContract discards addr's newest version, requiring cc.Caller to
// hold common.Upgrader (spec §4.C/§4.E, one step at a time: spec §9 open
// question 1, resolved in favor of the original's single-pop semantics).
func (r *Runtime) RollbackContract(cc *callctx.CallContext, addr common.Address) error {
	h, err := r.tracker.StartOperation(addr, tracker.Rollback)
	if err != nil {
		r.logger.Warn("rollback rejected: admission control", "address", addr, "err", err)
		return err
	}
	defer r.tracker.EndOperation(addr, tracker.Rollback)

	if err := r.access.CheckRole(common.Upgrader, cc.Caller); err != nil {
		r.logger.Warn("rollback rejected: access denied", "address", addr, "caller", cc.Caller, "op", h.ID)
		return err
	}

	snaps := r.state.GetSnapshots(addr)
	if len(snaps) < 2 {
		err := contracterr.New(contracterr.ErrStateRollback, "fewer than two snapshots available for rollback")
		r.logger.Warn("rollback rejected: insufficient snapshots", "address", addr, "op", h.ID)
		return err
	}
	previous := snaps[len(snaps)-2]

	if err := r.state.RestoreFromSnapshot(addr, previous.Timestamp); err != nil {
		r.logger.Error("rollback failed: state restore", "address", addr, "err", err, "op", h.ID)
		return err
	}

	if err := r.registry.RollbackVersion(addr); err != nil {
		r.logger.Warn("rollback rejected", "address", addr, "err", err, "op", h.ID)
		return err
	}

	r.logger.Debug("contract rolled back", "address", addr, "op", h.ID)
	return nil
}

// ExecuteContract invokes method on addr's compiled bytecode, requiring
// cc.Caller to hold common.Executor. version selects both the ABI consulted
// for method presence and the bytecode instantiated and called: a deliberate
// stricter reading of spec §9 open question 2 than the original, which never
// varies bytecode by version. An empty version selects the latest version,
// per spec §4.E's "select specified version else latest".
func (r *Runtime) ExecuteContract(cc *callctx.CallContext, addr common.Address, version, method string, args []sandbox.Value, limits sandbox.ResourceLimits, blockNumber uint64, now time.Time) (*ExecutionResult, error) {
	h, err := r.tracker.StartOperation(addr, tracker.Execute)
	if err != nil {
		r.logger.Warn("execute rejected: admission control", "address", addr, "err", err)
		return nil, err
	}
	defer r.tracker.EndOperation(addr, tracker.Execute)

	if err := r.access.CheckRole(common.Executor, cc.Caller); err != nil {
		r.logger.Warn("execute rejected: access denied", "address", addr, "caller", cc.Caller, "op", h.ID)
		return nil, err
	}

	var v *registry.Version
	if version == "" {
		v, err = r.registry.GetLatestVersion(addr)
	} else {
		v, err = r.registry.GetContractVersion(addr, version)
	}
	if err != nil {
		r.logger.Warn("execute rejected: version not found", "address", addr, "version", version, "op", h.ID)
		return nil, err
	}

	// Execute may mutate state via host hooks, so a snapshot taken here makes
	// every call reversible through RollbackContract (spec §4.E rationale).
	if _, err := r.state.CreateSnapshot(addr, v.Metadata.Version, now); err != nil {
		r.logger.Warn("execute rejected: could not snapshot state", "address", addr, "err", err, "op", h.ID)
		return nil, err
	}

	if !v.ABI.HasMethod(method) {
		err := contracterr.New(contracterr.ErrInvalidArgs, "method "+method+" not declared in ABI")
		r.logger.Warn("execute rejected: unknown method", "address", addr, "method", method, "op", h.ID)
		return nil, err
	}

	mod, err := r.sandbox.Compile(v.Bytecode)
	if err != nil {
		r.logger.Error("execute failed: recompilation of stored bytecode", "address", addr, "err", err, "op", h.ID)
		return nil, err
	}

	env := sandbox.Env{
		GasLimit:    limits.MaxGas,
		BlockNumber: blockNumber,
		Timestamp:   now.Unix(),
		Caller:      cc.Caller,
		Limits:      limits,
	}
	inst, err := r.sandbox.Instantiate(mod, limits, env)
	if err != nil {
		r.logger.Warn("execute rejected: instantiation failed", "address", addr, "err", err, "op", h.ID)
		return nil, err
	}

	out, err := r.sandbox.Call(inst, method, args)
	if err != nil {
		r.logger.Warn("execute failed", "address", addr, "method", method, "err", err, "op", h.ID)
		return nil, err
	}

	r.logger.Debug("contract executed", "address", addr, "method", method, "op", h.ID)
	return &ExecutionResult{ReturnValues: out}, nil
}

// UpdateContractState writes (key, value) into addr's state. Spec §4.E lists
// no required role for this operation (an internal caller, typically the
// sandbox's host hooks during Execute); it only requires addr's state to
// already exist before delegating to state_manager.update_state.
func (r *Runtime) UpdateContractState(cc *callctx.CallContext, addr common.Address, key, value []byte) error {
	h, err := r.tracker.StartOperation(addr, tracker.StateUpdate)
	if err != nil {
		r.logger.Warn("state update rejected: admission control", "address", addr, "err", err)
		return err
	}
	defer r.tracker.EndOperation(addr, tracker.StateUpdate)

	if r.state.GetState(addr) == nil {
		err := contracterr.New(contracterr.ErrNotFound, "contract state not found")
		r.logger.Warn("state update rejected: no such contract state", "address", addr, "op", h.ID)
		return err
	}

	if err := r.state.UpdateState(addr, key, value); err != nil {
		r.logger.Warn("state update rejected", "address", addr, "err", err, "op", h.ID)
		return err
	}

	r.logger.Debug("contract state updated", "address", addr, "key", string(key), "op", h.ID)
	return nil
}

// CreateSnapshot snapshots addr's current state under version.
func (r *Runtime) CreateSnapshot(addr common.Address, version string, now time.Time) (*state.Snapshot, error) {
	return r.state.CreateSnapshot(addr, version, now)
}

// RestoreSnapshot restores addr's state from the snapshot taken at timestamp.
func (r *Runtime) RestoreSnapshot(addr common.Address, timestamp int64) error {
	return r.state.RestoreFromSnapshot(addr, timestamp)
}

// --- Read-only queries (spec §6.1) ---

// ContractExists reports whether addr has at least one registered version.
func (r *Runtime) ContractExists(addr common.Address) bool {
	_, err := r.registry.GetLatestVersion(addr)
	return err == nil
}

// GetContractVersions returns addr's full version history.
func (r *Runtime) GetContractVersions(addr common.Address) ([]*registry.Version, error) {
	return r.registry.GetContractVersions(addr)
}

// GetContractVersion returns a specific version of addr.
func (r *Runtime) GetContractVersion(addr common.Address, version string) (*registry.Version, error) {
	return r.registry.GetContractVersion(addr, version)
}

// GetLatestVersion returns addr's newest version.
func (r *Runtime) GetLatestVersion(addr common.Address) (*registry.Version, error) {
	return r.registry.GetLatestVersion(addr)
}

// GetUpgradeHistory returns addr's upgrade log.
func (r *Runtime) GetUpgradeHistory(addr common.Address) ([]*registry.UpgradeRecord, error) {
	return r.registry.GetUpgradeHistory(addr)
}

// GetContractState returns addr's current state.
func (r *Runtime) GetContractState(addr common.Address) map[string][]byte {
	return r.state.GetState(addr)
}

// GetStateSnapshots returns addr's snapshot history.
func (r *Runtime) GetStateSnapshots(addr common.Address) []*state.Snapshot {
	return r.state.GetSnapshots(addr)
}

// GetStateDiffs returns addr's diff log.
func (r *Runtime) GetStateDiffs(addr common.Address) []*state.Diff {
	return r.state.GetStateDiffs(addr)
}

// ListAllContracts returns every registered contract's latest version.
func (r *Runtime) ListAllContracts() []registry.Contract {
	return r.registry.ListAllContracts()
}

// SearchByDescription returns contracts whose latest description contains substr.
func (r *Runtime) SearchByDescription(substr string) []registry.Contract {
	return r.registry.SearchByDescription(substr)
}

// FindByIndex returns contracts matching one of the secondary indexes.
func (r *Runtime) FindByIndex(key registry.IndexKey, value string) ([]registry.Contract, error) {
	return r.registry.FindByIndex(key, value)
}

// ActiveOperations returns addr's currently admitted operations, for the
// CLI's status command.
func (r *Runtime) ActiveOperations(addr common.Address) []tracker.Handle {
	return r.tracker.ActiveOperations(addr)
}

// ActiveOperationCount returns the total number of currently active
// operations across all contracts.
func (r *Runtime) ActiveOperationCount() int {
	return r.tracker.ActiveOperationCount()
}
