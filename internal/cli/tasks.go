package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/caras/internal/model"
)

// NewTasksCommand creates the tasks command group.
func NewTasksCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Record downstream tasks that hold reservations",
	}
	cmd.AddCommand(newTasksAddCommand(rootOpts))
	cmd.AddCommand(newTasksLinkCommand(rootOpts))
	cmd.AddCommand(newTasksCloseCommand(rootOpts))
	return cmd
}

func newTasksAddCommand(rootOpts *RootOptions) *cobra.Command {
	t := model.Task{Status: "open"}

	cmd := &cobra.Command{
		Use:           "add",
		Short:         "Add or replace a task",
		Example:       `  caras tasks add --id task-1 --title "Install artwork" --type installation`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			f := rootOpts.formatter(cmd)
			if err := s.store.UpsertTask(cmd.Context(), t); err != nil {
				return f.Fail("add task", err)
			}
			return f.Render(t, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Stored task %s (%s)\n", t.ID, t.Status)
				return err
			})
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&t.ID, "id", "", "task id (required)")
	fl.StringVar(&t.Title, "title", "", "title (required)")
	fl.StringVar(&t.Type, "type", "", "task type")
	fl.StringVar(&t.Status, "status", "open", "status; done and cancelled release reservations")
	fl.StringVar(&t.Owner, "owner", "", "owner")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newTasksLinkCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "link <task-id> <reservation-id>...",
		Short:         "Record that a task holds reservations",
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			f := rootOpts.formatter(cmd)
			task, ids := args[0], args[1:]
			if err := s.store.LinkTask(cmd.Context(), task, ids); err != nil {
				return f.Fail("link task", err)
			}
			return f.Render(map[string]any{"task": task, "reservations": ids}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Linked task %s to %s\n", task, strings.Join(ids, ", "))
				return err
			})
		},
	}
}

func newTasksCloseCommand(rootOpts *RootOptions) *cobra.Command {
	var cancel bool

	cmd := &cobra.Command{
		Use:           "close <task-id>",
		Short:         "Mark a task done, releasing its reservations",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			status := model.TaskStatusDone
			if cancel {
				status = model.TaskStatusCancelled
			}
			f := rootOpts.formatter(cmd)
			if err := s.store.SetTaskStatus(cmd.Context(), args[0], status); err != nil {
				return f.Fail("close task", err)
			}
			return f.Render(map[string]string{"task": args[0], "status": status}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Task %s is %s\n", args[0], status)
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&cancel, "cancel", false, "mark cancelled instead of done")
	return cmd
}
