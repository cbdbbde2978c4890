package admin

import (
	"context"
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mwantia/snaptag/cmd/snaptag/cli"
	"github.com/mwantia/snaptag/internal/app"
)

func NewDatabaseCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Inspect the local database",
		Long:  "Inspect the local image and tag database, its schema versions and record counts.",
	}

	cmd.AddCommand(newDatabaseStatusCommand())

	return cmd
}

func newDatabaseStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show schema versions and record counts",
		Long:  "Opens the database, upgrading it if required, and shows its version history and record counts.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RunWithApp(cmd, func(ctx context.Context, a *app.App) error {
				status, err := a.Store().Status(ctx)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Database: %s (%s)\n\n", status.Name, status.Path)

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "VERSION\tAPPLIED\tDESCRIPTION")
				for _, v := range status.Versions {
					applied := time.Unix(v.AppliedAt, 0).Format(time.RFC3339)
					fmt.Fprintf(w, "%d\t%s\t%s\n", v.Version, applied, v.Description)
				}
				w.Flush()

				names := make([]string, 0, len(status.Collections))
				for name := range status.Collections {
					names = append(names, name)
				}
				sort.Strings(names)

				fmt.Fprintln(out)
				w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "COLLECTION\tRECORDS")
				for _, name := range names {
					fmt.Fprintf(w, "%s\t%d\n", name, status.Collections[name])
				}
				return w.Flush()
			})
		},
	}
}
