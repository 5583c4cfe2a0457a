package registry

import (
	"time"

	"github.com/erigontech/contractcore/pkg/common"
)

// Param is a single ABI parameter (spec §3 ABI).
type Param struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Indexed bool   `json:"indexed"`
}

// Method describes one callable ABI entry.
type Method struct {
	Name    string  `json:"name"`
	Inputs  []Param `json:"inputs"`
	Outputs []Param `json:"outputs"`
	Payable bool    `json:"payable"`
}

// Event describes one ABI event.
type Event struct {
	Name   string  `json:"name"`
	Inputs []Param `json:"inputs"`
}

// ABI is descriptive only; the core enforces only method-name presence for
// execution (spec §3).
type ABI struct {
	Methods   []Method `json:"methods"`
	Events    []Event  `json:"events"`
	Standards []string `json:"standards"`
}

// HasMethod reports whether name is declared in the ABI.
func (a ABI) HasMethod(name string) bool {
	for _, m := range a.Methods {
		if m.Name == name {
			return true
		}
	}
	return false
}

// Metadata is a contract version's descriptive metadata (spec §3).
type Metadata struct {
	Version       string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Author        common.Address
	Description   string
	IsUpgradeable bool
}

// Version is one immutable entry in a contract's version history.
type Version struct {
	Bytecode []byte
	ABI      ABI
	Metadata Metadata
}

// UpgradeRecord describes a single registration that replaced a prior
// version (spec §3 UpgradeRecord).
type UpgradeRecord struct {
	FromVersion       string
	ToVersion         string
	Timestamp         time.Time
	Successful        bool
	RollbackPerformed bool
}

// IndexKey selects which secondary index FindByIndex queries against.
type IndexKey int

const (
	IndexVersion IndexKey = iota
	IndexAuthor
	IndexCreationTime
	IndexUpdateTime
	IndexDescription
)
