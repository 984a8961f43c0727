package main

import (
	"github.com/spf13/cobra"

	"github.com/yungbote/diagnosis-backend/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := app.New(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	a.Start(ctx)
	return a.Run(ctx)
}
