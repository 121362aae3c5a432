package cli

import (
	"fmt"

	"github.com/lisanmuaddib/stablepay/pkg/db"
	"github.com/spf13/cobra"
)

func newDBCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the local swap database",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !app.Config.Database.Enabled() {
				return ErrNoDatabase
			}
			if err := db.RunMigrations(app.Log, app.Config.Database); err != nil {
				return err
			}
			successColor.Fprintln(cmd.OutOrStdout(), "Migrations applied")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !app.Config.Database.Enabled() {
				return ErrNoDatabase
			}
			version, dirty, err := db.MigrationStatus(app.Log, app.Config.Database)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if app.jsonOutput {
				return printJSON(out, map[string]interface{}{"version": version, "dirty": dirty})
			}
			printField(out, "Version", fmt.Sprint(version))
			printField(out, "Dirty", yesNo(dirty))
			return nil
		},
	})

	return cmd
}
