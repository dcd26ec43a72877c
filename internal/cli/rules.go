package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/mnemo/internal/model"
	"github.com/roach88/mnemo/internal/router"
	"github.com/roach88/mnemo/internal/rulewatch"
)

// RuleAddOptions holds flags for the rules add command.
type RuleAddOptions struct {
	*RootOptions
	Name        string
	Pattern     string
	Priority    int
	Target      string
	EntryType   string
	Description string
	Inactive    bool
}

// NewRulesCommand creates the rules command and its subcommands.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage the routing table",
		Long: `Manage the routing table. Rules are evaluated by descending priority;
ties keep insertion order. Changes apply to the next capture.`,
	}

	cmd.AddCommand(
		newRulesListCommand(rootOpts),
		newRulesAddCommand(rootOpts),
		newRulesToggleCommand(rootOpts, "enable", true),
		newRulesToggleCommand(rootOpts, "disable", false),
		newRulesImportCommand(rootOpts),
		newRulesWatchCommand(rootOpts),
	)
	return cmd
}

func newRulesListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List rules in evaluation order",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withSession(cmd, func(ctx context.Context, s *session, out *OutputFormatter) error {
				rules, err := s.engine.Rules(ctx)
				if err != nil {
					return err
				}
				return out.Emit(rules, func(w io.Writer) { writeRules(w, rules) })
			})
		},
	}
}

func newRulesAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RuleAddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Append a rule",
		Long: `Append a rule to the routing table.

Examples:
  mnemo rules add --name gym --pattern "(?i)\\bgym\\b" --priority 70 \
    --target metrics --entry-type metric`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rule := model.Rule{
				Name:        opts.Name,
				Pattern:     opts.Pattern,
				Priority:    opts.Priority,
				Target:      model.Category(opts.Target),
				EntryType:   model.EntryType(opts.EntryType),
				Active:      !opts.Inactive,
				Description: opts.Description,
			}
			return rootOpts.withSession(cmd, func(ctx context.Context, s *session, out *OutputFormatter) error {
				added, err := s.engine.AddRule(ctx, rule)
				if err != nil {
					return err
				}
				return out.Emit(added, func(w io.Writer) {
					fmt.Fprintf(w, "✓ Rule %s added (priority %d, %s/%s)\n", added.Name, added.Priority, added.Target, added.EntryType)
				})
			})
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "unique rule name (required)")
	cmd.Flags().StringVar(&opts.Pattern, "pattern", "", "regular expression matched against the text (required)")
	cmd.Flags().IntVar(&opts.Priority, "priority", 50, "evaluation priority, higher first")
	cmd.Flags().StringVar(&opts.Target, "target", "", "tasks, transactions, facts, metrics or projects (required)")
	cmd.Flags().StringVar(&opts.EntryType, "entry-type", "", "entry type assigned on match (required)")
	cmd.Flags().StringVar(&opts.Description, "description", "", "free-text description")
	cmd.Flags().BoolVar(&opts.Inactive, "inactive", false, "add the rule disabled")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("pattern")
	_ = cmd.MarkFlagRequired("target")
	_ = cmd.MarkFlagRequired("entry-type")

	return cmd
}

func newRulesToggleCommand(rootOpts *RootOptions, verb string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:           verb + " <name>",
		Short:         fmt.Sprintf("%s a rule by name", titleCase.String(verb)),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			return rootOpts.withSession(cmd, func(ctx context.Context, s *session, out *OutputFormatter) error {
				if err := s.engine.SetRuleActive(ctx, name, active); err != nil {
					return err
				}
				data := map[string]interface{}{"name": name, "active": active}
				return out.Emit(data, func(w io.Writer) {
					fmt.Fprintf(w, "✓ Rule %s %sd\n", name, verb)
				})
			})
		},
	}
}

func newRulesImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the routing table from a YAML file",
		Long: `Replace the whole routing table with the rules of a YAML file. Every
rule is validated first; one invalid rule rejects the import.

  rules:
    - name: task_prefix
      pattern: "(?i)^(TODO|TASK)\\b"
      priority: 100
      target: tasks
      entry_type: task`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := router.LoadRulesFile(args[0])
			if err != nil {
				return rootOpts.formatter(cmd).Fail(err)
			}
			return rootOpts.withSession(cmd, func(ctx context.Context, s *session, out *OutputFormatter) error {
				stored, err := s.engine.ImportRules(ctx, rules)
				if err != nil {
					return err
				}
				return out.Emit(stored, func(w io.Writer) { writeRules(w, stored) })
			})
		},
	}
}

func newRulesWatchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <file>",
		Short: "Reload the routing table whenever a YAML file changes",
		Long: `Import the rules file, then watch it and import it again on every
change until interrupted. A file that fails validation is logged and the
previous table stays in effect.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withSession(cmd, func(ctx context.Context, s *session, out *OutputFormatter) error {
				reload := func(ctx context.Context, rules []model.Rule) error {
					_, err := s.engine.ImportRules(ctx, rules)
					return err
				}
				w, err := rulewatch.New(args[0], reload, rulewatch.WithLogger(s.log.Named("rulewatch")))
				if err != nil {
					return err
				}
				defer w.Close()

				out.VerboseLog("watching %s", args[0])
				return w.Run(ctx)
			})
		},
	}
}
