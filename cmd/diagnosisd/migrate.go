package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yungbote/diagnosis-backend/internal/app"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		// NewCore migrates on open.
		a, err := app.NewCore(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", a.Cfg.DB.Driver)
		return nil
	},
}
