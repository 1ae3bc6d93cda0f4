package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/caras/internal/engine"
)

// NewCodesCommand creates the codes command group.
func NewCodesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codes",
		Short: "Assign and revoke authorization codes",
	}
	cmd.AddCommand(newCodesAssignCommand(rootOpts))
	cmd.AddCommand(newCodesRevokeCommand(rootOpts))
	return cmd
}

func newCodesAssignCommand(rootOpts *RootOptions) *cobra.Command {
	var code string

	cmd := &cobra.Command{
		Use:   "assign <reservation-id>...",
		Short: "Stamp one authorization code onto a batch of reservations",
		Long: `Stamp one authorization code onto every reservation in the batch, in
a single transaction. The batch fails without changes if any reservation
already has a code. A code is generated when --code is not given.`,
		Example: `  caras codes assign res-1 res-2 res-3
  caras codes assign res-4 --code APS-1234`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			f := rootOpts.formatter(cmd)
			res, err := s.engine.AssignCode(cmd.Context(), args, code)
			if err != nil {
				return f.Fail("assign code", err)
			}
			return f.Render(res, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Assigned %s to %d reservations (requirements: %s)\n",
					res.Code, res.Affected, strings.Join(res.RequirementIDs, ", "))
				return err
			})
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "authorization code (generated when empty)")
	return cmd
}

func newCodesRevokeCommand(rootOpts *RootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "revoke <reservation-id>...",
		Short: "Clear the authorization code of a batch of reservations",
		Long: `Clear the authorization code of every reservation in the batch.
Reservations without a code are skipped.

Active downstream tasks are checked first; the revoke is refused while any
task holds a reservation unless --force is given.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			f := rootOpts.formatter(cmd)
			ctx := cmd.Context()

			report, err := s.engine.CheckConflicts(ctx, args)
			if err != nil {
				return f.Fail("check conflicts", err)
			}
			if report.HasConflicts && !force {
				_ = f.Error("ACTIVE_TASKS", fmt.Sprintf("%d active tasks hold these reservations (use --force to revoke anyway)", len(report.Conflicts)),
					ErrorDetails{Kind: engine.KindConflict, Conflicts: report.Conflicts})
				if f.Format != "json" {
					writeConflicts(f.Writer, report.Conflicts)
				}
				return NewExitError(ExitFailure, "revoke refused: active tasks")
			}
			if report.HasConflicts {
				f.VerboseLog("revoking despite %d active tasks", len(report.Conflicts))
			}

			res, err := s.engine.RevokeCode(ctx, args)
			if err != nil {
				return f.Fail("revoke code", err)
			}
			return f.Render(res, func(w io.Writer) error {
				fmt.Fprintf(w, "Revoked %d reservations", len(res.Revoked))
				if len(res.Skipped) > 0 {
					fmt.Fprintf(w, " (%d had no code: %s)", len(res.Skipped), strings.Join(res.Skipped, ", "))
				}
				_, err := fmt.Fprintln(w)
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "revoke even when active tasks hold the reservations")
	return cmd
}

// NewConflictsCommand creates the conflicts command.
func NewConflictsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "conflicts <reservation-id>...",
		Short:         "List active tasks holding reservations",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			f := rootOpts.formatter(cmd)
			report, err := s.engine.CheckConflicts(cmd.Context(), args)
			if err != nil {
				return f.Fail("check conflicts", err)
			}
			return f.Render(report, func(w io.Writer) error {
				if !report.HasConflicts {
					_, err := fmt.Fprintln(w, "No active tasks hold these reservations.")
					return err
				}
				writeConflicts(w, report.Conflicts)
				return nil
			})
		},
	}
}

func writeConflicts(w io.Writer, conflicts []engine.TaskConflict) {
	for _, c := range conflicts {
		fmt.Fprintf(w, "  %s held by task %s (%s, %s)\n", c.ReservationID, c.Task.ID, c.Task.Title, c.Task.Status)
	}
}
