package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type statusView struct {
	Network         string `json:"network"`
	IsConnected     bool   `json:"isConnected"`
	HasProvider     bool   `json:"hasProvider"`
	HasSigner       bool   `json:"hasSigner"`
	ContractAddress string `json:"contractAddress"`
	SignerAddress   string `json:"signerAddress,omitempty"`
	Mode            string `json:"mode"`
}

func newStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the contract connection status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := app.service(cmd.Context())
			if err != nil {
				return err
			}

			status := svc.Status()
			view := statusView{
				Network:         string(app.Config.Network),
				IsConnected:     status.IsConnected,
				HasProvider:     status.HasProvider,
				HasSigner:       status.HasSigner,
				ContractAddress: status.ContractAddress,
				Mode:            "simulated",
			}
			if status.IsConnected {
				view.Mode = "live"
			}
			if app.Wallet != nil && app.Wallet.HasSigner() {
				view.SignerAddress = app.Wallet.Address().Hex()
			}

			out := cmd.OutOrStdout()
			if app.jsonOutput {
				return printJSON(out, view)
			}

			printHeader(out, "STABLEPAY STATUS")
			printField(out, "Network", view.Network)
			printField(out, "Mode", view.Mode)
			printField(out, "Connected", yesNo(view.IsConnected))
			printField(out, "Provider", yesNo(view.HasProvider))
			printField(out, "Signer", yesNo(view.HasSigner))
			if view.ContractAddress != "" {
				printField(out, "Contract", view.ContractAddress)
			}
			if view.SignerAddress != "" {
				printField(out, "Signer address", view.SignerAddress)
			}
			return nil
		},
	}
}

func yesNo(b bool) string {
	if b {
		return color.GreenString("yes")
	}
	return color.RedString("no")
}
