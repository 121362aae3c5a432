// Package cli is the stablepay command tree.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/lisanmuaddib/stablepay/internal/config"
	"github.com/lisanmuaddib/stablepay/pkg/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags.
var Version = "0.1.0"

// NewRootCmd builds the command tree around app. A nil app loads configuration from
// the --config and --env-file flags before the first command runs.
func NewRootCmd(app *App) *cobra.Command {
	if app == nil {
		app = &App{}
	}

	root := &cobra.Command{
		Use:   "stablepay",
		Short: "Swap INR and USDT through the StablePay contract",
		Long: `stablepay quotes and executes INR <-> USDT swaps against the StablePay
contract, reads token balances, sends transfers and follows swap events.

Without rpc_url every command runs against simulated data.

Examples:
  stablepay quote 1000 INR USDT
  stablepay swap 1000 INR USDT --ref invoice-42
  stablepay balance 0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed
  stablepay watch`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return app.load()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&app.loadOpts.ConfigFile, "config", "", "config file (default: stablepay.yaml in . or $HOME)")
	flags.StringVar(&app.loadOpts.EnvFile, "env-file", "", "env file to load (default: .env)")
	flags.BoolVarP(&app.verbose, "verbose", "v", false, "Enable debug logging")
	flags.BoolVarP(&app.jsonOutput, "json", "j", false, "Output in JSON format")

	root.AddCommand(
		newStatusCmd(app),
		newQuoteCmd(app),
		newSwapCmd(app),
		newBalanceCmd(app),
		newTransferCmd(app),
		newHistoryCmd(app),
		newRatesCmd(app),
		newWatchCmd(app),
		newContractCmd(app),
		newDBCmd(app),
	)
	return root
}

func (a *App) load() error {
	if a.Config == nil {
		cfg, err := config.Load(a.loadOpts)
		if err != nil {
			return err
		}
		a.Config = cfg
	}
	if a.Log == nil {
		opts := a.Config.Log
		if a.verbose {
			opts.Level = logrus.DebugLevel.String()
		}
		a.Log = logging.NewLogger(opts)
	}
	for _, err := range a.Config.ContractAddressProblems() {
		a.Log.WithError(err).Warn("Ignoring contract address, swaps run simulated")
	}
	return nil
}

// Execute runs the command tree and prints any error. It returns the error so the
// caller can choose the exit code.
func Execute(ctx context.Context) error {
	app := &App{}
	defer app.Close()

	err := NewRootCmd(app).ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "\n%s %v\n\n", color.RedString("Error:"), err)
	}
	return err
}
