package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"
)

// NewHealthCommand creates the health command.
func NewHealthCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the database is reachable",
		Long: `Ping the database and report entry and rule counts.

Exit codes:
  0 - Database reachable
  2 - Database unavailable`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withSession(cmd, func(ctx context.Context, s *session, out *OutputFormatter) error {
				h, err := s.engine.Health(ctx)
				if err != nil {
					return err
				}
				return out.Emit(h, func(w io.Writer) { writeHealth(w, h) })
			})
		},
	}
}
