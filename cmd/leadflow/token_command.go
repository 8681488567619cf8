package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"leadflow/internal/authz"
	"leadflow/internal/middleware"
)

// Dev helper: tokens are normally issued by the CRM's auth service.
func newTokenCommand(ctx *commandContext) *cobra.Command {
	var (
		userID int64
		roleID int
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a bearer token with the configured secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !authz.Known(roleID) {
				return fmt.Errorf("unknown role %d", roleID)
			}
			cfg, err := ctx.config()
			if err != nil {
				return err
			}
			tok, err := middleware.IssueToken([]byte(cfg.JWT.Secret), userID, roleID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 1, "User id")
	cmd.Flags().IntVar(&roleID, "role", authz.RoleSales, "Role id (10 sales, 20 operations, 30 audit, 40 management, 50 admin, 60 automation)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}
