package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"accountgate/internal/database"
	"accountgate/internal/logging"
	"accountgate/migrations"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "migrate",
		Short:        "Manage the accountgate database schema",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().String("database-url", "", "Postgres URL (defaults to $DATABASE_URL)")
	cmd.AddCommand(newUpCmd(), newStatusCmd())
	return cmd
}

func newUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, done, err := openMigrator(cmd)
			if err != nil {
				return err
			}
			defer done()

			if err := m.Up(cmd.Context()); err != nil {
				return err
			}
			cmd.Println("migrations applied")
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, done, err := openMigrator(cmd)
			if err != nil {
				return err
			}
			defer done()

			statuses, err := m.Status(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VERSION\tSTATE\tFILE")
			for _, s := range statuses {
				state := "pending"
				if s.Applied {
					state = "applied"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\n", s.Version, state, s.Path)
			}
			return tw.Flush()
		},
	}
}

func openMigrator(cmd *cobra.Command) (*database.Migrator, func(), error) {
	url, _ := cmd.Flags().GetString("database-url")
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		return nil, nil, oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL or --database-url is required")
	}

	pool, err := database.Connect(cmd.Context(), url)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(logging.Options{Format: logging.FormatText, Service: "migrate"})
	return database.NewMigrator(pool, migrations.FS, logger), pool.Close, nil
}
