package cli

import (
	"fmt"
	"strings"

	"github.com/lisanmuaddib/stablepay/pkg/swap"
	"github.com/lisanmuaddib/stablepay/pkg/wallet"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

type quoteView struct {
	Amount       string                 `json:"amount"`
	FromCurrency string                 `json:"fromCurrency"`
	ToCurrency   string                 `json:"toCurrency"`
	ToAmount     string                 `json:"toAmount"`
	TaxAmount    string                 `json:"taxAmount"`
	Source       swap.CalculationSource `json:"source"`
}

func newQuoteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "quote <amount> <from> <to>",
		Short: "Preview a swap without sending anything",
		Example: `  stablepay quote 1000 INR USDT
  stablepay quote 6 USDT INR`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(strings.TrimSpace(args[0]))
			if err != nil {
				return wallet.NewWalletError(wallet.ErrCodeInvalidAmount, fmt.Sprintf("invalid amount %q", args[0]), err, "")
			}
			from, to := swap.NormalizeCurrency(args[1]), swap.NormalizeCurrency(args[2])

			svc, err := app.service(cmd.Context())
			if err != nil {
				return err
			}
			calc, err := svc.Calculate(cmd.Context(), from, to, amount)
			if err != nil {
				return err
			}

			view := quoteView{
				Amount:       amount.String(),
				FromCurrency: from,
				ToCurrency:   to,
				ToAmount:     calc.ToAmount,
				TaxAmount:    calc.TaxAmount,
				Source:       calc.Source,
			}
			out := cmd.OutOrStdout()
			if app.jsonOutput {
				return printJSON(out, view)
			}

			printHeader(out, "SWAP QUOTE")
			printField(out, "You send", fmt.Sprintf("%s %s", formatAmount(amount), from))
			printField(out, "You receive", fmt.Sprintf("%s %s", formatAmountString(calc.ToAmount), to))
			printField(out, "Tax (GST)", fmt.Sprintf("%s %s", formatAmountString(calc.TaxAmount), to))
			printField(out, "Source", string(calc.Source))
			if calc.Source == swap.SourceSimulated {
				warnColor.Fprintln(out, "\n  Quote uses the local rate table, not the contract.")
			}
			return nil
		},
	}
}
