// Command diagnosisd runs the symptom questionnaire backend and its
// maintenance tasks.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "diagnosisd",
	Short: "Symptom questionnaire diagnosis backend",
	Long: `diagnosisd serves the adaptive questionnaire API and manages the
knowledge base it reasons over.

Configuration is read from the environment (DB_DRIVER, SQLITE_PATH,
POSTGRES_*, REDIS_ADDR, JWT_SECRET_KEY, ...).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, kbCmd, tokenCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
