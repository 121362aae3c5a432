package cli

import (
	"github.com/lisanmuaddib/stablepay/internal/config"
	"github.com/spf13/cobra"
)

type contractView struct {
	Configured   string `json:"configured"`
	Override     string `json:"override"`
	Effective    string `json:"effective"`
	OverrideFile string `json:"overrideFile"`
}

func newContractCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contract",
		Short: "Show or override the swap contract address",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the configured and overriding contract addresses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			view := contractView{
				Configured:   app.Config.ContractAddress,
				Override:     app.Config.OverrideAddress,
				Effective:    app.Config.EffectiveContractAddress(),
				OverrideFile: app.Config.OverrideFile,
			}
			out := cmd.OutOrStdout()
			if app.jsonOutput {
				return printJSON(out, view)
			}
			printField(out, "Configured", orNone(view.Configured))
			printField(out, "Override", orNone(view.Override))
			printField(out, "Effective", orNone(view.Effective))
			printField(out, "Override file", orNone(view.OverrideFile))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <address>",
		Short: "Persist an address that takes precedence over contract_address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			saved, err := config.SaveOverride(app.Config.OverrideFile, args[0])
			if err != nil {
				return err
			}
			app.Config.OverrideAddress = saved
			successColor.Fprintf(cmd.OutOrStdout(), "Contract override set to %s\n", saved)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove the persisted override",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.ClearOverride(app.Config.OverrideFile); err != nil {
				return err
			}
			app.Config.OverrideAddress = ""
			successColor.Fprintln(cmd.OutOrStdout(), "Contract override cleared")
			return nil
		},
	})

	return cmd
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
