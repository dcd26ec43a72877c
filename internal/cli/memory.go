package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"
)

// MemoryOptions holds flags for the memory command.
type MemoryOptions struct {
	*RootOptions
	Day    string
	Start  string
	Period string
	Limit  int
	Offset int
}

// NewMemoryCommand creates the memory command and its day/week/list
// subcommands.
func NewMemoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MemoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Compile and list narrative memory",
	}

	day := &cobra.Command{
		Use:   "day",
		Short: "Compile the narrative of one day",
		Long: `Compile the daily narrative from the day's ledger and projections and
store it. Compiling again replaces the stored narrative.

Examples:
  mnemo memory day --day 2024-03-04`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, func(ctx context.Context, s *session, out *OutputFormatter) error {
				n, err := s.engine.CompileDay(ctx, opts.Day)
				if err != nil {
					return err
				}
				return out.Emit(n, func(w io.Writer) { writeNarrative(w, n) })
			})
		},
	}
	day.Flags().StringVar(&opts.Day, "day", "", "day to compile (YYYY-MM-DD, default today)")

	week := &cobra.Command{
		Use:   "week",
		Short: "Compile the narrative of seven days",
		Long: `Compile the weekly narrative of the seven days starting at --start.
Days without a stored daily narrative are compiled first.

Examples:
  mnemo memory week --start 2024-03-04`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, func(ctx context.Context, s *session, out *OutputFormatter) error {
				n, err := s.engine.CompileWeek(ctx, opts.Start)
				if err != nil {
					return err
				}
				return out.Emit(n, func(w io.Writer) { writeNarrative(w, n) })
			})
		},
	}
	week.Flags().StringVar(&opts.Start, "start", "", "first day of the week (YYYY-MM-DD, default six days ago)")

	list := &cobra.Command{
		Use:           "list",
		Short:         "List stored narratives, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, func(ctx context.Context, s *session, out *OutputFormatter) error {
				page, err := s.engine.ListMemory(ctx, opts.Period, opts.Limit, opts.Offset)
				if err != nil {
					return err
				}
				return out.Emit(page, func(w io.Writer) { writeNarrativePage(w, page) })
			})
		},
	}
	list.Flags().StringVar(&opts.Period, "period", "", "daily or weekly (default both)")
	list.Flags().IntVar(&opts.Limit, "limit", 0, "page size (default 20)")
	list.Flags().IntVar(&opts.Offset, "offset", 0, "rows to skip")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one stored narrative",
		Long: `Show a stored narrative by the id printed by memory list.

Examples:
  mnemo memory show 3`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return rootOpts.formatter(cmd).Fail(err)
			}
			return opts.withSession(cmd, func(ctx context.Context, s *session, out *OutputFormatter) error {
				n, err := s.engine.GetMemory(ctx, id)
				if err != nil {
					return err
				}
				return out.Emit(n, func(w io.Writer) { writeNarrative(w, n) })
			})
		},
	}

	cmd.AddCommand(day, week, list, show)
	return cmd
}
