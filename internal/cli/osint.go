package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sherlock-labs/screenshot-sherlock/internal/osint"
)

// NewOSINTCmd creates the 'osint' command.
func NewOSINTCmd(factory Factory) *cobra.Command {
	return &cobra.Command{
		Use:     "osint <handle>",
		Short:   "List public accounts found for a username",
		Example: `  sherlock osint sam_rivers`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			handle, ok := osint.NormalizeHandle(args[0])
			if !ok {
				return fmt.Errorf("invalid handle %q", args[0])
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return withDeps(ctx, factory, func(deps *Deps) error {
				if deps.OSINT == nil {
					return ErrOSINTUnavailable
				}
				res := deps.OSINT.CheckUsername(ctx, handle)
				if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
				if res.Failed() {
					return fmt.Errorf("osint scan failed: %s", res.Error)
				}
				return nil
			})
		},
	}
}
