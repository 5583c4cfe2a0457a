// Package registry implements the versioned contract registry of spec §4.C:
// per-contract version history in strict semver order, secondary indexes,
// and an upgrade/rollback log.
package registry

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"

	"github.com/erigontech/contractcore/pkg/common"
	"github.com/erigontech/contractcore/pkg/contracts/contracterr"
)

// MaxBytecodeSize is the upper bound on a single version's bytecode (spec
// §4.E deploy_contract rule, enforced here too since register_version's
// bytecode-verification precondition is shared by deploy and upgrade).
const MaxBytecodeSize = 2 * 1024 * 1024 // 2 MiB

// Registry holds every contract's version history plus the indexes and
// upgrade log behind the §4.C query operations. Version, author and time
// lookups go through an index; description search scans every contract.
// No I/O, no blocking (spec §5).
type Registry struct {
	mu sync.RWMutex

	versions map[common.Address][]*Version
	upgrades map[common.Address][]*UpgradeRecord

	byVersion  map[string][]common.Address
	byAuthor   map[common.Address][]common.Address
	byCreation map[int64][]common.Address
	byUpdate   map[int64][]common.Address

	maxBytecodeSize int
}

// New returns an empty Registry using the spec's default bytecode ceiling.
func New() *Registry {
	return NewWithLimits(MaxBytecodeSize)
}

// NewWithLimits returns an empty Registry with an operator-supplied bytecode
// ceiling, for internal/config-driven runtimes.
func NewWithLimits(maxBytecodeSize int) *Registry {
	return &Registry{
		versions:        make(map[common.Address][]*Version),
		upgrades:        make(map[common.Address][]*UpgradeRecord),
		byVersion:       make(map[string][]common.Address),
		byAuthor:        make(map[common.Address][]common.Address),
		byCreation:      make(map[int64][]common.Address),
		byUpdate:        make(map[int64][]common.Address),
		maxBytecodeSize: maxBytecodeSize,
	}
}

func (r *Registry) verifyBytecode(bytecode []byte) error {
	if len(bytecode) == 0 {
		return contracterr.New(contracterr.ErrBytecodeVerification, "empty bytecode provided")
	}
	if len(bytecode) > r.maxBytecodeSize {
		return contracterr.New(contracterr.ErrBytecodeVerification, "bytecode size exceeds maximum allowed size")
	}
	return nil
}

// RegisterVersion appends v to addr's version history (spec §4.C). The
// first registration for an address is a deploy; subsequent ones are
// upgrades and must carry a strictly greater semver version than the
// current newest, which must also still be upgradeable.
func (r *Registry) RegisterVersion(addr common.Address, v Version) error {
	if err := r.verifyBytecode(v.Bytecode); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	history := r.versions[addr]
	var latest *Version
	if len(history) > 0 {
		latest = history[len(history)-1]
	}

	if latest != nil {
		currentVer, err := semver.NewVersion(latest.Metadata.Version)
		if err != nil {
			return contracterr.New(contracterr.ErrVersionIncompatible, "invalid current version format")
		}
		newVer, err := semver.NewVersion(v.Metadata.Version)
		if err != nil {
			return contracterr.New(contracterr.ErrVersionIncompatible, "invalid new version format")
		}
		if !newVer.GreaterThan(currentVer) {
			return contracterr.New(contracterr.ErrVersionConflict,
				"new version "+v.Metadata.Version+" must be greater than current version "+latest.Metadata.Version)
		}
		if !latest.Metadata.IsUpgradeable {
			return contracterr.New(contracterr.ErrUpgradeValidation, "current contract version is not upgradeable")
		}
	}

	stored := v
	r.versions[addr] = append(history, &stored)

	r.byVersion[v.Metadata.Version] = append(r.byVersion[v.Metadata.Version], addr)
	r.byAuthor[v.Metadata.Author] = append(r.byAuthor[v.Metadata.Author], addr)
	r.byCreation[v.Metadata.CreatedAt.Unix()] = append(r.byCreation[v.Metadata.CreatedAt.Unix()], addr)
	r.byUpdate[v.Metadata.UpdatedAt.Unix()] = append(r.byUpdate[v.Metadata.UpdatedAt.Unix()], addr)

	if latest != nil {
		r.upgrades[addr] = append(r.upgrades[addr], &UpgradeRecord{
			FromVersion: latest.Metadata.Version,
			ToVersion:   v.Metadata.Version,
			Timestamp:   v.Metadata.UpdatedAt,
			Successful:  true,
		})
	}
	return nil
}

// RollbackVersion pops the newest version of addr's history, requiring at
// least two versions to exist, and marks the last upgrade record as a
// rollback (spec §4.C).
func (r *Registry) RollbackVersion(addr common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	history, ok := r.versions[addr]
	if !ok {
		return contracterr.New(contracterr.ErrNotFound, "contract not found")
	}
	if len(history) < 2 {
		return contracterr.New(contracterr.ErrStateRollback, "no previous version available for rollback")
	}

	r.versions[addr] = history[:len(history)-1]

	if recs := r.upgrades[addr]; len(recs) > 0 {
		last := recs[len(recs)-1]
		last.Successful = false
		last.RollbackPerformed = true
	}
	return nil
}

// GetContractVersions returns addr's full version history, oldest first.
func (r *Registry) GetContractVersions(addr common.Address) ([]*Version, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	history, ok := r.versions[addr]
	if !ok {
		return nil, contracterr.New(contracterr.ErrNotFound, "contract not found at address "+addr.String())
	}
	return history, nil
}

// GetContractVersion returns the specific semver version of addr.
func (r *Registry) GetContractVersion(addr common.Address, version string) (*Version, error) {
	history, err := r.GetContractVersions(addr)
	if err != nil {
		return nil, err
	}
	for _, v := range history {
		if v.Metadata.Version == version {
			return v, nil
		}
	}
	return nil, contracterr.New(contracterr.ErrVersionNotFound, "version "+version+" not found for contract "+addr.String())
}

// GetLatestVersion returns addr's newest (active) version.
func (r *Registry) GetLatestVersion(addr common.Address) (*Version, error) {
	history, err := r.GetContractVersions(addr)
	if err != nil {
		return nil, err
	}
	return history[len(history)-1], nil
}

// GetUpgradeHistory returns addr's upgrade log.
func (r *Registry) GetUpgradeHistory(addr common.Address) ([]*UpgradeRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	recs, ok := r.upgrades[addr]
	if !ok {
		return nil, contracterr.New(contracterr.ErrNotFound, "no upgrade history found for contract "+addr.String())
	}
	return recs, nil
}

// Contracts, returned by ListAllContracts/SearchByDescription/FindByIndex.
type Contract struct {
	Address common.Address
	Latest  *Version
}

// ListAllContracts returns every registered contract's latest version.
func (r *Registry) ListAllContracts() []Contract {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Contract, 0, len(r.versions))
	for addr, history := range r.versions {
		if len(history) > 0 {
			out = append(out, Contract{Address: addr, Latest: history[len(history)-1]})
		}
	}
	sortContracts(out)
	return out
}

// SearchByDescription returns every contract whose latest version's
// description case-insensitively contains substr.
func (r *Registry) SearchByDescription(substr string) []Contract {
	r.mu.RLock()
	defer r.mu.RUnlock()
	needle := strings.ToLower(substr)
	var out []Contract
	for addr, history := range r.versions {
		if len(history) == 0 {
			continue
		}
		latest := history[len(history)-1]
		if strings.Contains(strings.ToLower(latest.Metadata.Description), needle) {
			out = append(out, Contract{Address: addr, Latest: latest})
		}
	}
	sortContracts(out)
	return out
}

// FindByIndex looks up contracts by one of the secondary indexes (spec
// §4.C). IndexDescription behaves like SearchByDescription.
func (r *Registry) FindByIndex(key IndexKey, value string) ([]Contract, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if key == IndexDescription {
		return r.searchByDescriptionLocked(value), nil
	}

	var addrs []common.Address
	switch key {
	case IndexVersion:
		a, ok := r.byVersion[value]
		if !ok {
			return nil, contracterr.New(contracterr.ErrVersionNotFound, "no contracts found for version "+value)
		}
		addrs = a
	case IndexAuthor:
		author, err := common.HexToAddress(value)
		if err != nil {
			return nil, contracterr.New(contracterr.ErrInvalidArgs, "invalid author address")
		}
		a, ok := r.byAuthor[author]
		if !ok {
			return nil, contracterr.New(contracterr.ErrNotFound, "no contracts found for author "+value)
		}
		addrs = a
	case IndexCreationTime:
		ts, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, contracterr.New(contracterr.ErrInvalidArgs, "invalid creation time")
		}
		a, ok := r.byCreation[ts]
		if !ok {
			return nil, contracterr.New(contracterr.ErrNotFound, "no contracts found for creation time "+value)
		}
		addrs = a
	case IndexUpdateTime:
		ts, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, contracterr.New(contracterr.ErrInvalidArgs, "invalid update time")
		}
		a, ok := r.byUpdate[ts]
		if !ok {
			return nil, contracterr.New(contracterr.ErrNotFound, "no contracts found for update time "+value)
		}
		addrs = a
	default:
		return nil, contracterr.New(contracterr.ErrInvalidArgs, "unsupported index key")
	}

	out := make([]Contract, 0, len(addrs))
	seen := make(map[common.Address]bool, len(addrs))
	for _, addr := range addrs {
		if seen[addr] {
			continue
		}
		seen[addr] = true
		if history, ok := r.versions[addr]; ok && len(history) > 0 {
			out = append(out, Contract{Address: addr, Latest: history[len(history)-1]})
		}
	}
	sortContracts(out)
	return out, nil
}

func (r *Registry) searchByDescriptionLocked(substr string) []Contract {
	needle := strings.ToLower(substr)
	var out []Contract
	for addr, history := range r.versions {
		if len(history) == 0 {
			continue
		}
		latest := history[len(history)-1]
		if strings.Contains(strings.ToLower(latest.Metadata.Description), needle) {
			out = append(out, Contract{Address: addr, Latest: latest})
		}
	}
	sortContracts(out)
	return out
}

func sortContracts(c []Contract) {
	sort.Slice(c, func(i, j int) bool {
		return string(c[i].Address[:]) < string(c[j].Address[:])
	})
}
