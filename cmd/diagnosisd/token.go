package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/diagnosis-backend/internal/app"
	"github.com/yungbote/diagnosis-backend/internal/platform/logger"
	"github.com/yungbote/diagnosis-backend/internal/services"
)

var tokenUser string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for local testing",
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "owner id (uuid); a random one when empty")
}

func runToken(cmd *cobra.Command, args []string) error {
	userID := uuid.New()
	if tokenUser != "" {
		parsed, err := uuid.Parse(tokenUser)
		if err != nil {
			return fmt.Errorf("--user: %w", err)
		}
		userID = parsed
	}
	cfg := app.LoadConfig(nil)
	auth := services.NewAuthService(logger.Nop(), cfg.JWTSecretKey, cfg.AccessTokenTTL)
	tok, exp, err := auth.IssueToken(userID)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "user:    %s\n", userID)
	fmt.Fprintf(out, "expires: %s\n", exp.UTC().Format(time.RFC3339))
	fmt.Fprintln(out, tok)
	return nil
}
