package cli

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/mnemo/internal/ingest"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Day    string
	Repair bool
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Verify a day's projections against the ledger",
		Long: `Recompute a day's projection rows from its ledger entries and compare
them with the stored rows. With --repair the stored rows are rebuilt; task and
project statuses are kept. The ledger is never modified.

Exit codes:
  0 - Projections match the ledger (or were repaired)
  1 - Projections differ from the ledger
  2 - Command error (database not found, etc.)

Examples:
  mnemo replay --day 2024-03-04
  mnemo replay --day 2024-03-04 --repair
  mnemo replay --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Day, "day", "", "day to replay (YYYY-MM-DD, default today)")
	cmd.Flags().BoolVar(&opts.Repair, "repair", false, "rebuild the stored projections from the ledger")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	return opts.withSession(cmd, func(ctx context.Context, s *session, out *OutputFormatter) error {
		var (
			report ingest.ReplayReport
			err    error
		)
		if opts.Repair {
			report, err = s.engine.ReplayDay(ctx, opts.Day)
		} else {
			report, err = s.engine.VerifyDay(ctx, opts.Day)
		}
		if err != nil {
			return err
		}

		if opts.Format == "json" {
			return outputReplayJSON(cmd, report)
		}
		return outputReplayText(cmd, report, opts.Verbose)
	})
}

// mismatch reports whether the command should fail. A repaired day matches
// the ledger afterwards.
func mismatch(report ingest.ReplayReport) bool {
	return !report.Equivalent && !report.Repaired
}

// outputReplayJSON outputs the replay report as JSON.
func outputReplayJSON(cmd *cobra.Command, report ingest.ReplayReport) error {
	response := CLIResponse{
		Status: "ok",
		Data:   report,
	}

	if mismatch(report) {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_REPLAY_MISMATCH",
			Message: "stored projections differ from the ledger",
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if mismatch(report) {
		return NewExitError(ExitFailure, "replay verification failed")
	}
	return nil
}

// outputReplayText outputs the replay report as text.
func outputReplayText(cmd *cobra.Command, report ingest.ReplayReport, verbose bool) error {
	w := cmd.OutOrStdout()
	writeReplay(w, report, verbose)

	if !mismatch(report) {
		return nil
	}
	writeMismatchHint(w)
	return NewExitError(ExitFailure, "replay verification failed")
}

func writeMismatchHint(w io.Writer) {
	_, _ = io.WriteString(w, "  Warning: stored projections differ from the ledger. Run with --repair to rebuild.\n")
}
