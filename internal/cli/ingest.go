package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/mnemo/internal/ingest"
)

// IngestOptions holds flags for the ingest command.
type IngestOptions struct {
	*RootOptions
	Source string
	Day    string
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IngestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ingest [text...]",
		Short: "Capture one entry",
		Long: `Capture one free-text entry into the ledger and route it.

The text is the joined arguments, or stdin when no argument is given.

Examples:
  mnemo ingest "TODO renew passport"
  mnemo ingest --day 2024-03-04 "spent 12.50 on lunch"
  echo "FACT: the lease ends in June" | mnemo ingest --source cli`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(opts, cmd, args)
		},
	}

	cmd.Flags().StringVar(&opts.Source, "source", "", "origin channel (voice, text, cli, api, slack, webhook)")
	cmd.Flags().StringVar(&opts.Day, "day", "", "day to file the entry under (YYYY-MM-DD, default today)")

	return cmd
}

func runIngest(opts *IngestOptions, cmd *cobra.Command, args []string) error {
	raw := strings.Join(args, " ")
	if len(args) == 0 {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return opts.formatter(cmd).Fail(fmt.Errorf("failed to read stdin: %w", err))
		}
		raw = string(data)
	}

	return opts.withSession(cmd, func(ctx context.Context, s *session, out *OutputFormatter) error {
		res, err := s.engine.Ingest(ctx, ingest.Request{Raw: raw, Source: opts.Source, Day: opts.Day})
		if err != nil {
			return err
		}
		return out.EmitTraced(res.Entry.RequestID, res, func(w io.Writer) {
			writeIngestResult(w, res)
		})
	})
}

// BatchOptions holds flags for the batch command.
type BatchOptions struct {
	*RootOptions
	Source string
	Day    string
}

// NewBatchCommand creates the batch command.
func NewBatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "batch [file]",
		Short: "Capture many entries",
		Long: `Capture an ordered batch of entries. Each item is committed on its own;
a failing item is reported and does not roll back the others.

The file is a YAML or JSON document:

  source: cli
  day: 2024-03-04
  items:
    - raw: TODO call the bank
    - raw: spent 40 on groceries
      day: 2024-03-05

Without a file (or with "-"), every non-blank stdin line is one item.

Examples:
  mnemo batch week.yaml
  cat notes.txt | mnemo batch --day 2024-03-04`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(opts, cmd, args)
		},
	}

	cmd.Flags().StringVar(&opts.Source, "source", "", "origin channel for items that give none")
	cmd.Flags().StringVar(&opts.Day, "day", "", "day for items that give none (YYYY-MM-DD)")

	return cmd
}

func runBatch(opts *BatchOptions, cmd *cobra.Command, args []string) error {
	var (
		req ingest.BatchRequest
		err error
	)
	if len(args) == 0 || args[0] == "-" {
		req, err = readBatchLines(cmd.InOrStdin())
	} else {
		req, err = readBatchFile(args[0])
	}
	if err != nil {
		return opts.formatter(cmd).Fail(err)
	}
	if opts.Source != "" {
		req.Source = opts.Source
	}
	if opts.Day != "" {
		req.Day = opts.Day
	}

	return opts.withSession(cmd, func(ctx context.Context, s *session, out *OutputFormatter) error {
		res, err := s.engine.IngestBatch(ctx, req)
		if err != nil {
			return err
		}
		return out.EmitTraced(res.BatchID, res, func(w io.Writer) {
			writeBatchResult(w, res)
		})
	})
}

// readBatchFile decodes a YAML or JSON batch document.
func readBatchFile(path string) (ingest.BatchRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ingest.BatchRequest{}, fmt.Errorf("failed to read batch file: %w", err)
	}
	var req ingest.BatchRequest
	if err := yaml.Unmarshal(data, &req); err != nil {
		return ingest.BatchRequest{}, fmt.Errorf("failed to parse batch file %s: %w", path, err)
	}
	return req, nil
}

// readBatchLines turns each non-blank line into one item.
func readBatchLines(r io.Reader) (ingest.BatchRequest, error) {
	var req ingest.BatchRequest
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		req.Items = append(req.Items, ingest.Request{Raw: line})
	}
	if err := sc.Err(); err != nil {
		return ingest.BatchRequest{}, fmt.Errorf("failed to read stdin: %w", err)
	}
	return req, nil
}
