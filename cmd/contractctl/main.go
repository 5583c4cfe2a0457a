// Command contractctl is a manual-operation CLI around the Runtime Facade:
// grant roles, deploy/upgrade/execute/rollback contracts and inspect status,
// each subcommand reading its payload from a JSON file. Every invocation
// builds a fresh in-memory Runtime; no roles, contracts or state persist from
// one invocation to the next.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/erigontech/erigon-lib/log/v3"
	"github.com/urfave/cli/v2"

	"github.com/erigontech/contractcore/internal/config"
	"github.com/erigontech/contractcore/pkg/common"
	"github.com/erigontech/contractcore/pkg/contracts/callctx"
	"github.com/erigontech/contractcore/pkg/contracts/registry"
	"github.com/erigontech/contractcore/pkg/contracts/runtime"
	"github.com/erigontech/contractcore/pkg/contracts/sandbox"
	"github.com/erigontech/contractcore/pkg/contracts/sandbox/builtin"
)

var (
	configFlag = &cli.StringFlag{Name: "config", Usage: "path to a RuntimeConfig TOML file"}
	verbosity  = &cli.IntFlag{Name: "verbosity", Value: 3, Usage: "log verbosity, 0 (crit) - 5 (trace)"}
	callerFlag = &cli.StringFlag{Name: "caller", Usage: "hex address authorizing this operation", Required: true}
	addrFlag   = &cli.StringFlag{Name: "address", Usage: "hex contract address", Required: true}
)

func main() {
	app := &cli.App{
		Name:  "contractctl",
		Usage: "manually exercise the contract runtime",
		Flags: []cli.Flag{configFlag, verbosity},
		Before: func(c *cli.Context) error {
			lvl := log.Lvl(c.Int(verbosity.Name))
			log.Root().SetHandler(log.LvlFilterHandler(lvl, log.StderrHandler))
			return nil
		},
		Commands: []*cli.Command{
			grantRoleCmd,
			deployCmd,
			upgradeCmd,
			executeCmd,
			rollbackCmd,
			statusCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadRuntime(c *cli.Context) (*runtime.Runtime, error) {
	cfg, err := config.Load(c.String(configFlag.Name))
	if err != nil {
		return nil, err
	}
	return runtime.NewFromConfig(builtin.New(256), cfg), nil
}

func parseAddress(c *cli.Context, flag string) (common.Address, error) {
	return common.HexToAddress(c.String(flag))
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %q: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %q: %w", path, err)
	}
	return nil
}

var grantRoleCmd = &cli.Command{
	Name:  "grant-role",
	Usage: "grant a role to an account",
	Flags: []cli.Flag{
		callerFlag,
		&cli.StringFlag{Name: "role", Required: true, Usage: "hex role identifier"},
		&cli.StringFlag{Name: "account", Required: true, Usage: "hex account address"},
	},
	Action: func(c *cli.Context) error {
		rt, err := loadRuntime(c)
		if err != nil {
			return err
		}
		caller, err := parseAddress(c, callerFlag.Name)
		if err != nil {
			return err
		}
		role, err := common.HexToRole(c.String("role"))
		if err != nil {
			return err
		}
		account, err := common.HexToAddress(c.String("account"))
		if err != nil {
			return err
		}
		changed, err := rt.GrantRole(callctx.New(caller), role, account)
		if err != nil {
			return err
		}
		fmt.Printf("granted=%v\n", changed)
		return nil
	},
}

// deployPayload is the JSON shape the deploy and upgrade subcommands read.
type deployPayload struct {
	Bytecode []byte         `json:"bytecode"`
	ABI      registry.ABI   `json:"abi"`
	Metadata deployMetadata `json:"metadata"`
}

type deployMetadata struct {
	Version       string `json:"version"`
	Author        string `json:"author"`
	Description   string `json:"description"`
	IsUpgradeable bool   `json:"is_upgradeable"`
}

func (p deployPayload) toMetadata(now time.Time) (registry.Metadata, error) {
	author, err := common.HexToAddress(p.Metadata.Author)
	if err != nil {
		return registry.Metadata{}, err
	}
	return registry.Metadata{
		Version:       p.Metadata.Version,
		CreatedAt:     now,
		UpdatedAt:     now,
		Author:        author,
		Description:   p.Metadata.Description,
		IsUpgradeable: p.Metadata.IsUpgradeable,
	}, nil
}

var deployCmd = &cli.Command{
	Name:  "deploy",
	Usage: "deploy the first version of a contract",
	Flags: []cli.Flag{
		callerFlag, addrFlag,
		&cli.StringFlag{Name: "payload", Required: true, Usage: "path to a deploy payload JSON file"},
	},
	Action: func(c *cli.Context) error {
		rt, err := loadRuntime(c)
		if err != nil {
			return err
		}
		caller, err := parseAddress(c, callerFlag.Name)
		if err != nil {
			return err
		}
		addr, err := parseAddress(c, addrFlag.Name)
		if err != nil {
			return err
		}
		var payload deployPayload
		if err := readJSON(c.String("payload"), &payload); err != nil {
			return err
		}
		meta, err := payload.toMetadata(time.Now())
		if err != nil {
			return err
		}
		deployed, err := rt.DeployContract(callctx.New(caller), addr, payload.Bytecode, payload.ABI, meta)
		if err != nil {
			return err
		}
		fmt.Printf("deployed address=%s version=%s\n", deployed.Address, deployed.Version.Metadata.Version)
		return nil
	},
}

var upgradeCmd = &cli.Command{
	Name:  "upgrade",
	Usage: "register a new version for an existing contract",
	Flags: []cli.Flag{
		callerFlag, addrFlag,
		&cli.StringFlag{Name: "payload", Required: true, Usage: "path to a deploy payload JSON file"},
	},
	Action: func(c *cli.Context) error {
		rt, err := loadRuntime(c)
		if err != nil {
			return err
		}
		caller, err := parseAddress(c, callerFlag.Name)
		if err != nil {
			return err
		}
		addr, err := parseAddress(c, addrFlag.Name)
		if err != nil {
			return err
		}
		var payload deployPayload
		if err := readJSON(c.String("payload"), &payload); err != nil {
			return err
		}
		now := time.Now()
		meta, err := payload.toMetadata(now)
		if err != nil {
			return err
		}
		v, err := rt.UpgradeContract(callctx.New(caller), addr, payload.Bytecode, payload.ABI, meta, now)
		if err != nil {
			return err
		}
		fmt.Printf("upgraded address=%s version=%s\n", addr, v.Metadata.Version)
		return nil
	},
}

var executeCmd = &cli.Command{
	Name:  "execute",
	Usage: "call a method on a deployed contract version",
	Flags: []cli.Flag{
		callerFlag, addrFlag,
		&cli.StringFlag{Name: "version", Usage: "contract version to execute, latest if omitted"},
		&cli.StringFlag{Name: "method", Required: true},
		&cli.Uint64Flag{Name: "gas-limit", Value: 1_000_000},
		&cli.Uint64Flag{Name: "arg1", Usage: "first i32 argument, if any"},
		&cli.Uint64Flag{Name: "arg2", Usage: "second i32 argument, if any"},
		&cli.IntFlag{Name: "argc", Value: 0, Usage: "number of i32 args to pass (0, 1 or 2)"},
	},
	Action: func(c *cli.Context) error {
		rt, err := loadRuntime(c)
		if err != nil {
			return err
		}
		caller, err := parseAddress(c, callerFlag.Name)
		if err != nil {
			return err
		}
		addr, err := parseAddress(c, addrFlag.Name)
		if err != nil {
			return err
		}

		var args []sandbox.Value
		switch c.Int("argc") {
		case 1:
			args = append(args, sandbox.I32Value(int32(c.Uint64("arg1"))))
		case 2:
			args = append(args, sandbox.I32Value(int32(c.Uint64("arg1"))), sandbox.I32Value(int32(c.Uint64("arg2"))))
		}

		limits := sandbox.ResourceLimits{MaxGas: c.Uint64("gas-limit"), MaxMemory: runtime.DefaultSandboxMemory}
		result, err := rt.ExecuteContract(callctx.New(caller), addr, c.String("version"), c.String("method"),
			args, limits, 0, time.Now())
		if err != nil {
			return err
		}
		fmt.Printf("executed, %d return value(s)\n", len(result.ReturnValues))
		for i, v := range result.ReturnValues {
			fmt.Printf("  [%d] i32=%d\n", i, v.I32)
		}
		return nil
	},
}

var rollbackCmd = &cli.Command{
	Name:  "rollback",
	Usage: "discard the newest version of a contract",
	Flags: []cli.Flag{callerFlag, addrFlag},
	Action: func(c *cli.Context) error {
		rt, err := loadRuntime(c)
		if err != nil {
			return err
		}
		caller, err := parseAddress(c, callerFlag.Name)
		if err != nil {
			return err
		}
		addr, err := parseAddress(c, addrFlag.Name)
		if err != nil {
			return err
		}
		if err := rt.RollbackContract(callctx.New(caller), addr); err != nil {
			return err
		}
		fmt.Println("rolled back")
		return nil
	},
}

var statusCmd = &cli.Command{
	Name:  "status",
	Usage: "print a contract's latest version and active operations",
	Flags: []cli.Flag{addrFlag},
	Action: func(c *cli.Context) error {
		rt, err := loadRuntime(c)
		if err != nil {
			return err
		}
		addr, err := parseAddress(c, addrFlag.Name)
		if err != nil {
			return err
		}
		if !rt.ContractExists(addr) {
			fmt.Println("no such contract")
			return nil
		}
		latest, err := rt.GetLatestVersion(addr)
		if err != nil {
			return err
		}
		fmt.Printf("address=%s latest_version=%s upgradeable=%v\n", addr, latest.Metadata.Version, latest.Metadata.IsUpgradeable)
		for _, h := range rt.ActiveOperations(addr) {
			fmt.Printf("  active op=%s type=%s started=%s\n", h.ID, h.Type, h.StartTime.Format(time.RFC3339))
		}
		return nil
	},
}
