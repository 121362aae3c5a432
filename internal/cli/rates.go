package cli

import (
	"github.com/lisanmuaddib/stablepay/pkg/swap"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

type ratesView struct {
	GSTPercent string            `json:"gstPercent"`
	Rates      map[string]string `json:"rates"`
}

func newRatesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rates [currency...]",
		Short: "Show currency rates and the GST rate from the contract",
		Example: `  stablepay rates
  stablepay rates INR`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := app.service(ctx)
			if err != nil {
				return err
			}
			history := svc.History()

			currencies := lo.Uniq(lo.Map(args, func(c string, _ int) string { return swap.NormalizeCurrency(c) }))
			if len(currencies) == 0 {
				currencies = []string{"INR"}
			}

			gst, err := history.GSTRate(ctx)
			if err != nil {
				return err
			}
			view := ratesView{GSTPercent: gst.String(), Rates: make(map[string]string, len(currencies))}
			for _, c := range currencies {
				rate, err := history.CurrencyRate(ctx, c)
				if err != nil {
					return err
				}
				view.Rates[c] = rate.String()
			}

			out := cmd.OutOrStdout()
			if app.jsonOutput {
				return printJSON(out, view)
			}
			printField(out, "GST", view.GSTPercent+"%")
			for _, c := range currencies {
				printField(out, "USDT per "+c, view.Rates[c])
			}
			return nil
		},
	}
}
