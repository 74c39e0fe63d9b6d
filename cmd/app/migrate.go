package main

import (
	"github.com/spf13/cobra"

	"einvoicing/internal/db"
	"einvoicing/internal/logger"
	"einvoicing/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pool, err := rt.connect(cmd.Context())
		if err != nil {
			return err
		}
		applied, err := db.NewMigrator(pool, migrations.FS, logger.WithComponent("migrate")).Up(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{"applied": applied})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
