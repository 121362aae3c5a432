package cli

import (
	"fmt"
	"strings"

	"github.com/lisanmuaddib/stablepay/pkg/swap"
	"github.com/lisanmuaddib/stablepay/pkg/wallet"
	"github.com/spf13/cobra"
)

type balanceView struct {
	Address     string `json:"address"`
	Balance     string `json:"balance"`
	Placeholder bool   `json:"placeholder"`
	Cause       string `json:"cause,omitempty"`
}

func newBalanceCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <address>",
		Short: "Show the USDT balance of an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens, err := app.tokens(cmd.Context())
			if err != nil {
				return err
			}
			balance, err := tokens.Balance(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			view := balanceView{Address: args[0], Balance: balance.Amount.String(), Placeholder: balance.Placeholder}
			if balance.Cause != nil {
				view.Cause = balance.Cause.Error()
			}
			out := cmd.OutOrStdout()
			if app.jsonOutput {
				return printJSON(out, view)
			}

			printField(out, "Address", view.Address)
			printField(out, "Balance", formatAmount(balance.Amount)+" "+swap.USDT)
			if balance.Placeholder {
				warnColor.Fprintln(out, "  Placeholder value, not read from chain.")
				if balance.Cause != nil {
					printField(out, "Cause", balance.Cause)
				}
			}
			return nil
		},
	}
}

type transferView struct {
	To        string `json:"to"`
	Amount    string `json:"amount"`
	TxHash    string `json:"txHash"`
	Synthetic bool   `json:"synthetic"`
	Cause     string `json:"cause,omitempty"`
}

func newTransferCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <to> <amount>",
		Short: "Send USDT from the configured wallet",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := wallet.ValidateAmount(args[1])
			if err != nil {
				return err
			}
			to := strings.TrimSpace(args[0])

			tokens, err := app.tokens(cmd.Context())
			if err != nil {
				return err
			}

			stop := app.startSpinner(cmd.ErrOrStderr(), "Sending transfer...")
			result, err := tokens.Transfer(cmd.Context(), to, amount)
			stop()
			if err != nil {
				return err
			}

			view := transferView{To: to, Amount: amount.String(), TxHash: result.TxHash, Synthetic: result.Synthetic}
			if result.Cause != nil {
				view.Cause = result.Cause.Error()
			}
			out := cmd.OutOrStdout()
			if app.jsonOutput {
				return printJSON(out, view)
			}

			printHeader(out, "TRANSFER SENT")
			printField(out, "To", to)
			printField(out, "Amount", fmt.Sprintf("%s %s", formatAmount(amount), swap.USDT))
			printField(out, "Transaction", result.TxHash)
			if result.Synthetic {
				warnColor.Fprintln(out, "\n  Synthetic transaction id, nothing was sent on chain.")
				if result.Cause != nil {
					printField(out, "Cause", result.Cause)
				}
			}
			return nil
		},
	}
}
