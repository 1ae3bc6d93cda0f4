package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/caras/internal/catalog"
	"github.com/roach88/caras/internal/model"
)

// NewInventoryCommand creates the inventory command group.
func NewInventoryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "inventory",
		Aliases: []string{"inv"},
		Short:   "Maintain and search the local inventory catalog",
	}
	cmd.AddCommand(newInventoryAddCommand(rootOpts))
	cmd.AddCommand(newInventorySearchCommand(rootOpts))
	return cmd
}

func newInventoryAddCommand(rootOpts *RootOptions) *cobra.Command {
	var u model.InventoryUnit

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add or replace an inventory unit",
		Example: `  caras inventory add --id inv-42 --code MX-042 --city Monterrey \
    --face-format billboard --location-class urban --lat 25.67 --lon -100.31`,
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
			if err := s.store.UpsertInventory(cmd.Context(), u); err != nil {
				return f.Fail("add inventory", err)
			}
			return f.Render(u, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Stored inventory unit %s (%s)\n", u.ID, u.Code)
				return err
			})
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&u.ID, "id", "", "unit id (required)")
	fl.StringVar(&u.Code, "code", "", "unit code (required)")
	fl.StringVar(&u.Address, "address", "", "street address")
	fl.StringVar(&u.City, "city", "", "city")
	fl.StringVar(&u.State, "state", "", "state")
	fl.StringVar(&u.Format, "face-format", "", "face format")
	fl.StringVar(&u.LocationClass, "location-class", "", "location class")
	fl.Float64Var(&u.Latitude, "lat", 0, "latitude")
	fl.Float64Var(&u.Longitude, "lon", 0, "longitude")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("code")
	return cmd
}

func newInventorySearchCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		requirement string
		period      string
		filter      catalog.Filter
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search units a requirement may reserve",
		Long: `Search the catalog with the requirement's face format, location class
and city. Flags narrow or override those defaults. With --period, units
the requirement already holds in that catorcena are left out; units other
requirements hold there are still listed.

Fully authorized requirements cannot be searched.`,
		Example: `  caras inventory search --requirement req-1 --period 7/2026
  caras inventory search --requirement req-1 --text "av. constitución"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if period != "" {
				p, err := model.ParsePeriod(period)
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid --period", err)
				}
				filter.Period = &p
			}

			s, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			f := rootOpts.formatter(cmd)
			units, err := s.engine.SearchInventory(cmd.Context(), requirement, filter)
			if err != nil {
				return f.Fail("search inventory", err)
			}
			return f.Render(units, func(w io.Writer) error {
				if len(units) == 0 {
					_, err := fmt.Fprintln(w, "No matching inventory.")
					return err
				}
				return writeInventoryTable(w, units)
			})
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&requirement, "requirement", "", "requirement id (required)")
	fl.StringVar(&period, "period", "", "only units the requirement does not hold in this catorcena")
	fl.StringVar(&filter.City, "city", "", "city")
	fl.StringVar(&filter.State, "state", "", "state")
	fl.StringVar(&filter.Format, "face-format", "", "face format")
	fl.StringVar(&filter.LocationClass, "location-class", "", "location class")
	fl.StringVar(&filter.Text, "text", "", "match code, address or city")
	fl.IntVar(&filter.Limit, "limit", catalog.DefaultLimit, "maximum results")
	_ = cmd.MarkFlagRequired("requirement")
	return cmd
}

func writeInventoryTable(w io.Writer, units []model.InventoryUnit) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCODE\tCITY\tFORMAT\tCLASS\tADDRESS")
	for _, u := range units {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", u.ID, u.Code, u.City, u.Format, u.LocationClass, u.Address)
	}
	return tw.Flush()
}
