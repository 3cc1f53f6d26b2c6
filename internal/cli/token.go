package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	httpmiddleware "github.com/sherlock-labs/screenshot-sherlock/internal/http/middleware"
)

// NewTokenCmd creates the 'token' command, which mints a bearer token for
// local API testing.
func NewTokenCmd(factory Factory) *cobra.Command {
	var (
		email string
		ttl   time.Duration
	)

	cmd := &cobra.Command{
		Use:     "token <user-id>",
		Short:   "Issue a signed API token for a user id",
		Example: `  sherlock token 3f1c9a52-8d1e-4a43-9a0e-5b7f0f0d6b21 --email me@example.com --ttl 24h`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return withDeps(ctx, factory, func(deps *Deps) error {
				if deps.JWTSecret == "" {
					return errors.New("JWT_SECRET is required to issue tokens")
				}
				token, err := httpmiddleware.IssueUserToken(deps.JWTSecret, args[0], email, ttl)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")

	return cmd
}
