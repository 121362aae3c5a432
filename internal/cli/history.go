package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/lisanmuaddib/stablepay/pkg/db"
	"github.com/lisanmuaddib/stablepay/pkg/swap"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

type historyView struct {
	Source    string            `json:"source"`
	Simulated bool              `json:"simulated"`
	Records   []swap.SwapRecord `json:"records"`
}

func newHistoryCmd(app *App) *cobra.Command {
	var (
		local bool
		limit int
	)

	cmd := &cobra.Command{
		Use:   "history [address...]",
		Short: "List swaps for addresses, or the most recent swaps",
		Long: `List swaps read from the contract. With --local the records come from the
database filled by "stablepay watch" instead.`,
		RunE: func(cmd *cobra.Command, users []string) error {
			ctx := cmd.Context()

			view := historyView{Source: "contract"}
			if local {
				store, err := app.store()
				if err != nil {
					return err
				}
				view.Source = "database"
				switch len(users) {
				case 0:
					view.Records, err = store.Recent(ctx, limit)
				case 1:
					view.Records, err = store.ListByUser(ctx, users[0], limit)
				default:
					view.Records, err = store.ListByUsers(ctx, users, limit)
				}
				if err != nil {
					return err
				}
			} else {
				svc, err := app.service(ctx)
				if err != nil {
					return err
				}
				if len(users) == 0 {
					history, err := svc.History().RecentSwaps(ctx)
					if err != nil {
						return err
					}
					view.Records, view.Simulated = history.Records, history.Simulated
				}
				for _, user := range lo.Uniq(users) {
					history, err := svc.History().UserSwapHistory(ctx, user)
					if err != nil {
						return err
					}
					view.Records = append(view.Records, history.Records...)
					view.Simulated = view.Simulated || history.Simulated
				}
				if limit > 0 && len(view.Records) > limit {
					view.Records = view.Records[:limit]
				}
			}
			if view.Records == nil {
				view.Records = []swap.SwapRecord{}
			}

			out := cmd.OutOrStdout()
			if app.jsonOutput {
				return printJSON(out, view)
			}
			if len(view.Records) == 0 {
				warnColor.Fprintln(out, "No swaps found.")
				return nil
			}
			printRecords(out, view.Records)
			if view.Simulated {
				warnColor.Fprintln(out, "\nPlaceholder history, the contract could not be read.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&local, "local", false, "Read from the local database")
	cmd.Flags().IntVar(&limit, "limit", db.DefaultListLimit, "Maximum number of records")
	return cmd
}

func printRecords(out io.Writer, records []swap.SwapRecord) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tUSER\tFROM\tTO\tTAX\tTX")
	lo.ForEach(records, func(r swap.SwapRecord, _ int) {
		fmt.Fprintf(tw, "%s\t%s\t%s %s\t%s %s\t%s\t%s\n",
			formatTimestamp(r.Timestamp),
			shortHex(r.User),
			formatAmountString(r.FromAmount), r.FromCurrency,
			formatAmountString(r.ToAmount), r.ToCurrency,
			formatAmountString(r.TaxAmount),
			shortHex(r.TransactionHash),
		)
	})
	tw.Flush()
}

// shortHex abbreviates long hex strings to 0x1234…abcd.
func shortHex(s string) string {
	if len(s) <= 14 {
		return s
	}
	return s[:6] + "…" + s[len(s)-4:]
}
