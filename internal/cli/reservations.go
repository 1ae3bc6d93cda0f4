package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/caras/internal/engine"
	"github.com/roach88/caras/internal/model"
)

// NewReservationsCommand creates the reservations command group.
func NewReservationsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "reservations",
		Aliases: []string{"res"},
		Short:   "Attach and remove inventory reservations",
	}
	cmd.AddCommand(newReservationsAddCommand(rootOpts))
	cmd.AddCommand(newReservationsDeleteCommand(rootOpts))
	return cmd
}

func newReservationsAddCommand(rootOpts *RootOptions) *cobra.Command {
	var in struct {
		id, requirement, inventory, typ, period string
	}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Reserve an inventory unit for a requirement",
		Example: `  caras reservations add --requirement req-1 --inventory inv-42 \
    --type flow --period 7/2026`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, err := model.ParseFulfillmentType(in.typ)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --type", err)
			}
			period, err := model.ParsePeriod(in.period)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --period", err)
			}

			s, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			f := rootOpts.formatter(cmd)
			r, err := s.engine.CreateReservation(cmd.Context(), engine.ReservationRequest{
				ID:            in.id,
				RequirementID: in.requirement,
				InventoryID:   in.inventory,
				Type:          typ,
				Period:        period,
			})
			if err != nil {
				return f.Fail("create reservation", err)
			}
			return f.Render(r, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Reserved %s as %s (%s, %s) for %s\n",
					r.InventoryID, r.ID, r.Type, r.Period, r.RequirementID)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&in.id, "id", "", "reservation id (generated when empty)")
	cmd.Flags().StringVar(&in.requirement, "requirement", "", "requirement id (required)")
	cmd.Flags().StringVar(&in.inventory, "inventory", "", "inventory unit id (required)")
	cmd.Flags().StringVar(&in.typ, "type", "", "flow, counter_flow or bonus (required)")
	cmd.Flags().StringVar(&in.period, "period", "", "catorcena, e.g. 7/2026 (required)")
	_ = cmd.MarkFlagRequired("requirement")
	_ = cmd.MarkFlagRequired("inventory")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("period")
	return cmd
}

func newReservationsDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <reservation-id>...",
		Short: "Delete reservations, all or nothing",
		Long: `Delete a batch of reservations. The whole batch is rejected if any
reservation is unknown, carries an authorization code, or is held by an
active task.`,
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
			n, err := s.engine.DeleteReservations(cmd.Context(), args)
			if err != nil {
				return f.Fail("delete reservations", err)
			}
			return f.Render(map[string]int{"deleted": n}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Deleted %d reservations\n", n)
				return err
			})
		},
	}
}

func writeReservationTable(w io.Writer, res []model.Reservation) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RESERVATION\tINVENTORY\tTYPE\tPERIOD\tCODE")
	for _, r := range res {
		code := r.AuthCode
		if code == "" {
			code = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.InventoryID, r.Type, r.Period, code)
	}
	return tw.Flush()
}
