package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/mnemo/internal/engine"
)

// NorthStarOptions holds flags for the northstar command.
type NorthStarOptions struct {
	*RootOptions
	AsOf string
	Day  string
}

// NewNorthStarCommand creates the northstar command.
func NewNorthStarCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NorthStarOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "northstar",
		Short: "Compute the 7-day clarity score",
		Long: `Compute the clarity score of the seven days ending at --as-of and run
the behavioral reactions it triggers. Each reaction fires at most once per day.

A day is complete when it is closed, has at least 3 entries and has either a
done task or a transaction.

Examples:
  mnemo northstar
  mnemo northstar --as-of 2024-03-10 --format json
  mnemo northstar day --day 2024-03-04`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, func(ctx context.Context, s *session, out *OutputFormatter) error {
				ns, err := s.engine.NorthStar(ctx, opts.AsOf)
				if err != nil {
					return err
				}
				return out.Emit(ns, func(w io.Writer) { writeNorthStar(w, ns) })
			})
		},
	}
	cmd.Flags().StringVar(&opts.AsOf, "as-of", "", "last day of the window (YYYY-MM-DD, default today)")

	day := &cobra.Command{
		Use:           "day",
		Short:         "Explain the completeness of one day",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, func(ctx context.Context, s *session, out *OutputFormatter) error {
				d, err := s.engine.NorthStarDay(ctx, opts.Day)
				if err != nil {
					return err
				}
				return out.Emit(d, func(w io.Writer) { writeBreakdownLine(w, d) })
			})
		},
	}
	day.Flags().StringVar(&opts.Day, "day", "", "day to explain (YYYY-MM-DD, default today)")

	cmd.AddCommand(day)
	return cmd
}

// EventsOptions holds flags for the events command.
type EventsOptions struct {
	*RootOptions
	Since  string
	Kind   string
	Limit  int
	Offset int
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List behavioral reactions, newest first",
		Long: `List the recorded behavioral reactions.

Examples:
  mnemo events
  mnemo events --kind reset_day_protocol --since 2024-03-01`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, func(ctx context.Context, s *session, out *OutputFormatter) error {
				page, err := s.engine.ListBehaviorEvents(ctx, engine.EventQuery{
					Since:  opts.Since,
					Kind:   opts.Kind,
					Limit:  opts.Limit,
					Offset: opts.Offset,
				})
				if err != nil {
					return err
				}
				return out.Emit(page, func(w io.Writer) { writeEventPage(w, page) })
			})
		},
	}

	cmd.Flags().StringVar(&opts.Since, "since", "", "only events on or after this day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "clarity_warning, reset_day_protocol or perfect_week")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "page size (default 50)")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "rows to skip")

	return cmd
}
