package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/labyard/internal/auth"
)

func newTokenCmd() *cobra.Command {
	var (
		userID string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API token for a user",
		Long:  "Signs a bearer token carrying the user's ID, email and role. Inactive users are refused.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if a.cfg.Server.JWTSecret == "" {
				return fmt.Errorf("server.jwt_secret (or LY_JWT_SECRET) is required to issue tokens")
			}
			u, err := a.services.Catalog.GetUser(cmd.Context(), userID)
			if err != nil {
				return err
			}
			if !u.Active {
				return fmt.Errorf("user %s is inactive", u.Email)
			}
			if ttl <= 0 {
				ttl = a.cfg.Server.TokenTTL
			}
			tok, err := auth.Issue(a.cfg.Server.JWTSecret, auth.Identity{Subject: u.ID, Email: u.Email, Role: u.Role}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user ID (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default server.token_ttl)")
	cmd.MarkFlagRequired("user")
	return cmd
}
