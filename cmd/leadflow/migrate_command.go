package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"leadflow/internal/repositories"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.config()
			if err != nil {
				return err
			}
			if cfg.Storage != "sql" {
				return fmt.Errorf("migrate: storage is %q, nothing to migrate", cfg.Storage)
			}
			dialect := repositories.Dialect(cfg.Database.Dialect)
			db, err := repositories.Open(dialect, cfg.Database.DSN)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := repositories.Migrate(cmd.Context(), db, dialect)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(applied) == 0 {
				fmt.Fprintln(out, "Database is up to date")
				return nil
			}
			for _, name := range applied {
				fmt.Fprintf(out, "Applied %s\n", name)
			}
			return nil
		},
	}
}
