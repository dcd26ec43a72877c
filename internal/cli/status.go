package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/mnemo/internal/model"
)

// NewTaskCommand creates the task command.
func NewTaskCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage task rows",
	}

	setStatus := &cobra.Command{
		Use:   "set-status <id> <status>",
		Short: "Move a task to pending, in_progress, done or cancelled",
		Long: `Move a task to a new status. Done and cancelled tasks are final.

Examples:
  mnemo task set-status 12 in_progress
  mnemo task set-status 12 done`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return rootOpts.formatter(cmd).Fail(err)
			}
			return rootOpts.withSession(cmd, func(ctx context.Context, s *session, out *OutputFormatter) error {
				task, err := s.engine.TransitionTask(ctx, id, args[1])
				if err != nil {
					return err
				}
				return out.Emit(task, func(w io.Writer) {
					fmt.Fprintf(w, "✓ Task %d is %s: %s\n", task.ID, task.Status, task.Title)
				})
			})
		},
	}

	cmd.AddCommand(setStatus)
	return cmd
}

// NewProjectCommand creates the project command.
func NewProjectCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage project rows",
	}

	setStatus := &cobra.Command{
		Use:   "set-status <id> <status>",
		Short: "Move a project to active, paused, done or archived",
		Long: `Move a project to a new status. Archived projects are final.

Examples:
  mnemo project set-status 3 paused`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return rootOpts.formatter(cmd).Fail(err)
			}
			return rootOpts.withSession(cmd, func(ctx context.Context, s *session, out *OutputFormatter) error {
				project, err := s.engine.TransitionProject(ctx, id, args[1])
				if err != nil {
					return err
				}
				return out.Emit(project, func(w io.Writer) {
					fmt.Fprintf(w, "✓ Project %d is %s: %s\n", project.ID, project.Status, project.Name)
				})
			})
		},
	}

	cmd.AddCommand(setStatus)
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, model.NewValidationError("id", fmt.Sprintf("invalid id %q", s))
	}
	return id, nil
}
