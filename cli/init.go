package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/openmined/mine"
	"github.com/openmined/mine/miner"
	"github.com/openmined/mine/pkg/eth"
	"github.com/openmined/mine/pkg/storage"
	"github.com/spf13/cobra"
)

var errConfigExists = errors.New("config file already exists, use --force to overwrite")

// NewInitCmd asks for the settings a node cannot guess and writes them,
// together with the current defaults, to the config file.
func NewInitCmd(path *string) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a config file",
		Long:  `Interactively create a mine.toml config file.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			if _, err := os.Stat(*path); err == nil && !force {
				logErrorCmd(*cmd, fmt.Errorf("%w: %s", errConfigExists, *path))

				return
			}

			c := cfg
			if err := configForm(&c).Run(); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			if c.Trainer.Runtime == mine.RuntimeWasm {
				c.Trainer.Module, c.Trainer.Command = c.Trainer.Command, ""
			}
			if err := c.Validate(); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			if err := c.Save(*path); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logSuccessCmd(*cmd, "Config written to "+*path)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config file")

	return cmd
}

func configForm(c *mine.Config) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Sonar contract address").
				Value(&c.Miner.Contract).
				Validate(validateAddress),
			huh.NewInput().
				Title("Operator account").
				Description(`An ethereum address, or "auto" for the node's first account.`).
				Value(&c.Miner.Address).
				Validate(func(s string) error {
					if s == miner.AutoAddress {
						return nil
					}

					return validateAddress(s)
				}),
			huh.NewInput().
				Title("Ethereum JSON-RPC URL").
				Value(&c.Miner.EthereumURL),
			huh.NewInput().
				Title("IPFS API URL").
				Value(&c.IPFS.URL),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Trainer runtime").
				Options(
					huh.NewOption("Host process", mine.RuntimeHost),
					huh.NewOption("WebAssembly module", mine.RuntimeWasm),
				).
				Value(&c.Trainer.Runtime),
			huh.NewInput().
				Title("Trainer command or module path").
				Value(&c.Trainer.Command),
			huh.NewInput().
				Title("Training input data").
				Value(&c.Trainer.InputData),
			huh.NewInput().
				Title("Training target data").
				Value(&c.Trainer.TargetData),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Submission ledger").
				Options(
					huh.NewOption("In memory", storage.TypeMemory),
					huh.NewOption("Badger on disk", storage.TypeBadger),
					huh.NewOption("SQLite on disk", storage.TypeSQLite),
					huh.NewOption("PostgreSQL", storage.TypePostgres),
				).
				Value(&c.Daemon.Ledger),
			huh.NewInput().
				Title("PostgreSQL URL").
				Description("Only used by the PostgreSQL ledger.").
				Value(&c.Daemon.LedgerURL),
			huh.NewConfirm().
				Title("Remove workspaces after submitting?").
				Value(&c.Workspace.Cleanup),
			huh.NewConfirm().
				Title("Enable debug output?").
				Value(&c.Debug),
		),
	)
}

func validateAddress(s string) error {
	_, err := eth.ParseAddress(s)

	return err
}
