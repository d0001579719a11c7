package cmd

import (
	"database/sql"
	"fmt"
	"text/tabwriter"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/lufespi/gestor-academico/internal/migrations"
)

// migrationDriver is the database/sql name registered by pgx's stdlib package.
const migrationDriver = "pgx"

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeDB, err := openMigrations()
		if err != nil {
			return err
		}
		defer closeDB()

		applied, err := svc.Up(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
		if len(applied) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No pending migrations")
			return nil
		}
		for _, name := range applied {
			fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
		}
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeDB, err := openMigrations()
		if err != nil {
			return err
		}
		defer closeDB()

		statuses, err := svc.Status(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to read migration status: %w", err)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tAPPLIED\tAPPLIED AT")
		for _, st := range statuses {
			appliedAt := st.AppliedAt
			if appliedAt == "" {
				appliedAt = "-"
			}
			fmt.Fprintf(tw, "%s\t%t\t%s\n", st.Name, st.Applied, appliedAt)
		}
		return tw.Flush()
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateStatusCmd)
}

func openMigrations() (*migrations.Service, func(), error) {
	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open(migrationDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	svc, err := migrations.NewService(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to init migrations: %w", err)
	}
	return svc, func() { _ = db.Close() }, nil
}
