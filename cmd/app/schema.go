package main

import (
	"strings"

	"github.com/spf13/cobra"

	"einvoicing/internal/app"
)

var schemaCmd = &cobra.Command{
	Use:   "schema NAME",
	Short: "Print the JSON Schema of a request payload",
	Long:  "Print the JSON Schema of a request payload. Known names: " + strings.Join(app.SchemaNames(), ", "),
	Args:  cobra.ExactArgs(1),
	// Schemas need no store or configuration.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		schema, err := app.GenerateSchema(args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), schema)
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
