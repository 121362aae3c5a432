package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/lisanmuaddib/stablepay/pkg/swap"
	"github.com/lisanmuaddib/stablepay/pkg/wallet"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

type outcomeView struct {
	Outcome     string `json:"outcome"`
	TxHash      string `json:"txHash,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Error       string `json:"error,omitempty"`
	ErrorCode   string `json:"errorCode,omitempty"`
	BlockNumber string `json:"blockNumber,omitempty"`
	GasUsed     uint64 `json:"gasUsed,omitempty"`
}

func newOutcomeView(o swap.Outcome) outcomeView {
	view := outcomeView{Outcome: o.Kind.String(), TxHash: o.TxHash, Reason: o.Reason}
	if o.Err != nil {
		view.Error = o.Err.Error()
		view.ErrorCode = wallet.ErrorCode(o.Err)
	}
	if o.Status != nil {
		view.GasUsed = o.Status.GasUsed
		if o.Status.BlockNumber != nil {
			view.BlockNumber = o.Status.BlockNumber.String()
		}
	}
	return view
}

func newSwapCmd(app *App) *cobra.Command {
	var reference string

	cmd := &cobra.Command{
		Use:   "swap <amount> <from> <to>",
		Short: "Execute a swap through the contract",
		Long: `Execute a fiat to USDT or USDT to fiat swap. Exactly one side must be USDT.

When the contract cannot complete the swap and gas_proof_fallback is enabled, a
zero-value self-transfer is sent on the fallback network instead. That transfer
proves gas was spent; it is not a swap.`,
		Example: `  stablepay swap 1000 INR USDT
  stablepay swap 6 USDT INR --ref payout-7`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(strings.TrimSpace(args[0]))
			if err != nil {
				return wallet.NewWalletError(wallet.ErrCodeInvalidAmount, fmt.Sprintf("invalid amount %q", args[0]), err, "")
			}

			svc, err := app.service(cmd.Context())
			if err != nil {
				return err
			}

			stop := app.startSpinner(cmd.ErrOrStderr(), "Executing swap...")
			outcome := svc.Swap(cmd.Context(), args[1], args[2], amount, reference)
			stop()

			out := cmd.OutOrStdout()
			if app.jsonOutput {
				if err := printJSON(out, newOutcomeView(outcome)); err != nil {
					return err
				}
			} else {
				printOutcome(out, outcome)
			}

			switch outcome.Kind {
			case swap.OutcomeFailed:
				return outcome.Err
			case swap.OutcomeNeedsFallback:
				return fmt.Errorf("swap not executed: %s", outcome.Reason)
			default:
				return nil
			}
		},
	}

	cmd.Flags().StringVar(&reference, "ref", "", "Payment reference recorded with the swap (default: random)")
	return cmd
}

func printOutcome(out io.Writer, o swap.Outcome) {
	switch o.Kind {
	case swap.OutcomeExecuted:
		printHeader(out, "SWAP EXECUTED")
		printField(out, "Transaction", o.TxHash)
	case swap.OutcomeGasProof:
		printHeader(out, "GAS PROOF SENT")
		printField(out, "Transaction", o.TxHash)
		printField(out, "Reason", o.Reason)
		warnColor.Fprintln(out, "\n  The contract swap did not run. This transaction only proves gas was spent.")
	case swap.OutcomeNeedsFallback:
		printHeader(out, "SWAP NOT EXECUTED")
		printField(out, "Reason", o.Reason)
		if o.Err != nil {
			printField(out, "Cause", o.Err)
		}
		return
	default:
		printHeader(out, "SWAP FAILED")
		printField(out, "Error", o.Err)
		return
	}
	if o.Status != nil {
		if o.Status.BlockNumber != nil {
			printField(out, "Block", o.Status.BlockNumber.String())
		}
		printField(out, "Gas used", humanize.Comma(int64(o.Status.GasUsed)))
	}
}
