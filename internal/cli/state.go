package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"
)

// StateOptions holds flags for the state command.
type StateOptions struct {
	*RootOptions
	Day string
}

// NewStateCommand creates the state command and its day/active subcommands.
func NewStateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Reconstruct current state",
	}

	day := &cobra.Command{
		Use:   "day",
		Short: "Show everything recorded for one day",
		Long: `Show the entries, projection rows and totals of one day.

Examples:
  mnemo state day
  mnemo state day --day 2024-03-04 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, func(ctx context.Context, s *session, out *OutputFormatter) error {
				snap, err := s.engine.SnapshotDay(ctx, opts.Day)
				if err != nil {
					return err
				}
				return out.Emit(snap, func(w io.Writer) { writeDaySnapshot(w, snap) })
			})
		},
	}
	day.Flags().StringVar(&opts.Day, "day", "", "day to show (YYYY-MM-DD, default today)")

	active := &cobra.Command{
		Use:           "active",
		Short:         "Show open tasks, active projects and open days",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, func(ctx context.Context, s *session, out *OutputFormatter) error {
				snap, err := s.engine.SnapshotActive(ctx)
				if err != nil {
					return err
				}
				return out.Emit(snap, func(w io.Writer) { writeActiveSnapshot(w, snap) })
			})
		},
	}

	cmd.AddCommand(day, active)
	return cmd
}

// CloseOptions holds flags for the close command.
type CloseOptions struct {
	*RootOptions
	Day     string
	Summary string
}

// NewCloseCommand creates the close command.
func NewCloseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CloseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "close",
		Short: "Close a day",
		Long: `Freeze a day's totals and write its memory snapshot.

Closing an already closed day changes nothing and reports the stored result.

Examples:
  mnemo close
  mnemo close --day 2024-03-04 --summary "shipped the importer"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, func(ctx context.Context, s *session, out *OutputFormatter) error {
				res, err := s.engine.CloseDay(ctx, opts.Day, opts.Summary)
				if err != nil {
					return err
				}
				return out.Emit(res, func(w io.Writer) { writeCloseResult(w, res) })
			})
		},
	}

	cmd.Flags().StringVar(&opts.Day, "day", "", "day to close (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&opts.Summary, "summary", "", "free-text summary stored with the day")

	return cmd
}
