package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/roach88/caras/internal/engine"
	"github.com/roach88/caras/internal/model"
)

// NewRequirementsCommand creates the requirements command group.
func NewRequirementsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "requirements",
		Aliases: []string{"reqs"},
		Short:   "Manage face requirements",
	}
	cmd.AddCommand(newRequirementsListCommand(rootOpts))
	cmd.AddCommand(newRequirementsShowCommand(rootOpts))
	cmd.AddCommand(newRequirementsAddCommand(rootOpts))
	cmd.AddCommand(newRequirementsUpdateCommand(rootOpts))
	cmd.AddCommand(newRequirementsDeleteCommand(rootOpts))
	return cmd
}

func newRequirementsListCommand(rootOpts *RootOptions) *cobra.Command {
	var campaign, groupBy string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a campaign's requirements with lock state and completion",
		Example: `  caras requirements list --campaign camp-1
  caras requirements list --campaign camp-1 --group-by period`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var dim model.GroupDimension
			if groupBy != "" {
				d, err := model.ParseGroupDimension(groupBy)
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid --group-by", err)
				}
				dim = d
			}

			s, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			f := rootOpts.formatter(cmd)
			views, err := s.engine.ListRequirements(cmd.Context(), campaign)
			if err != nil {
				return f.Fail("list requirements", err)
			}

			if dim == 0 {
				return f.Render(views, func(w io.Writer) error {
					return writeRequirementTable(w, views)
				})
			}
			groups := engine.GroupViews(views, dim)
			return f.Render(groups, func(w io.Writer) error {
				for i, g := range groups {
					if i > 0 {
						fmt.Fprintln(w)
					}
					fmt.Fprintf(w, "== %s ==\n", g.Key)
					if err := writeRequirementTable(w, g.Items); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&campaign, "campaign", "", "campaign id (required)")
	cmd.Flags().StringVar(&groupBy, "group-by", "", "group by period or article")
	_ = cmd.MarkFlagRequired("campaign")
	return cmd
}

func newRequirementsShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <requirement-id>",
		Short:         "Show one requirement with its reservations and guards",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			f := rootOpts.formatter(cmd)
			v, err := s.engine.GetRequirement(cmd.Context(), args[0])
			if err != nil {
				return f.Fail("show requirement", err)
			}
			return f.Render(v, func(w io.Writer) error {
				return writeRequirementDetail(w, v)
			})
		},
	}
}

// requirementFlags binds the editable requirement fields to flags.
type requirementFlags struct {
	id, campaign, article, start, end string
	flow, counterFlow, bonus          int
	format, locationClass, city       string
	state, socioeconomic, rate        string
}

func (rf *requirementFlags) bind(cmd *cobra.Command, withIdentity bool) {
	fl := cmd.Flags()
	if withIdentity {
		fl.StringVar(&rf.id, "id", "", "requirement id (generated when empty)")
		fl.StringVar(&rf.campaign, "campaign", "", "campaign id")
	}
	fl.StringVar(&rf.article, "article", "", "article (ARTICULO) code")
	fl.StringVar(&rf.start, "start", "", "first catorcena, e.g. 7/2026")
	fl.StringVar(&rf.end, "end", "", "last catorcena, e.g. 8/2026")
	fl.IntVar(&rf.flow, "flow", 0, "flow faces required")
	fl.IntVar(&rf.counterFlow, "counter-flow", 0, "counter-flow faces required")
	fl.IntVar(&rf.bonus, "bonus", 0, "bonus faces required")
	fl.StringVar(&rf.format, "face-format", "", "face format, e.g. billboard")
	fl.StringVar(&rf.locationClass, "location-class", "", "location class, e.g. urban")
	fl.StringVar(&rf.city, "city", "", "city")
	fl.StringVar(&rf.state, "state", "", "state")
	fl.StringVar(&rf.socioeconomic, "nse", "", "socioeconomic level")
	fl.StringVar(&rf.rate, "rate", "", "public rate, e.g. 18500.00")
}

// apply copies every flag the user set onto req.
func (rf *requirementFlags) apply(cmd *cobra.Command, req model.FaceRequirement) (model.FaceRequirement, error) {
	changed := cmd.Flags().Changed
	if changed("id") {
		req.ID = rf.id
	}
	if changed("campaign") {
		req.CampaignID = rf.campaign
	}
	if changed("article") {
		req.Article = rf.article
	}
	if changed("start") {
		p, err := model.ParsePeriod(rf.start)
		if err != nil {
			return req, fmt.Errorf("--start: %w", err)
		}
		req.StartPeriod = p
	}
	if changed("end") {
		p, err := model.ParsePeriod(rf.end)
		if err != nil {
			return req, fmt.Errorf("--end: %w", err)
		}
		req.EndPeriod = p
	}
	if changed("flow") {
		req.FlowRequired = rf.flow
	}
	if changed("counter-flow") {
		req.CounterFlowRequired = rf.counterFlow
	}
	if changed("bonus") {
		req.BonusRequired = rf.bonus
	}
	if changed("face-format") {
		req.Format = rf.format
	}
	if changed("location-class") {
		req.LocationClass = rf.locationClass
	}
	if changed("city") {
		req.City = rf.city
	}
	if changed("state") {
		req.State = rf.state
	}
	if changed("nse") {
		req.SocioeconomicLevel = rf.socioeconomic
	}
	if changed("rate") {
		d, err := decimal.NewFromString(rf.rate)
		if err != nil {
			return req, fmt.Errorf("--rate: %w", err)
		}
		req.PublicRate = d
	}
	return req, nil
}

func newRequirementsAddCommand(rootOpts *RootOptions) *cobra.Command {
	rf := &requirementFlags{}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a face requirement",
		Example: `  caras requirements add --campaign camp-1 --article ART-100 \
    --start 7/2026 --end 8/2026 --flow 3 --counter-flow 2 --city Monterrey`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := rf.apply(cmd, model.FaceRequirement{})
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid flags", err)
			}

			s, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			f := rootOpts.formatter(cmd)
			req, err = s.engine.CreateRequirement(cmd.Context(), req)
			if err != nil {
				return f.Fail("create requirement", err)
			}
			return f.Render(req, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Created requirement %s (%s, %s..%s, %d faces)\n",
					req.ID, req.Article, req.StartPeriod, req.EndPeriod, req.TotalRequired())
				return err
			})
		},
	}

	rf.bind(cmd, true)
	_ = cmd.MarkFlagRequired("campaign")
	_ = cmd.MarkFlagRequired("article")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func newRequirementsUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	rf := &requirementFlags{}
	var ifVersion int64

	cmd := &cobra.Command{
		Use:   "update <requirement-id>",
		Short: "Change a requirement's fields",
		Long: `Change a requirement's fields. Only the flags given are changed.

A fully authorized requirement cannot change. A partially authorized one
cannot drop a quantity below its authorized reservations or move its
periods away from them.

With --if-version the edit applies only while the requirement is still at
that version, as shown by "requirements show". Without it the version just
read is used.`,
		Example: `  caras requirements update req-1 --flow 4
  caras requirements update req-1 --city Saltillo --if-version 3`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			f := rootOpts.formatter(cmd)
			cur, err := s.engine.GetRequirement(cmd.Context(), args[0])
			if err != nil {
				return f.Fail("update requirement", err)
			}
			req, err := rf.apply(cmd, cur.Requirement)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid flags", err)
			}
			if ifVersion > 0 {
				req.Version = ifVersion
			}

			v, err := s.engine.UpdateRequirement(cmd.Context(), req)
			if err != nil {
				return f.Fail("update requirement", err)
			}
			return f.Render(v, func(w io.Writer) error {
				return writeRequirementDetail(w, v)
			})
		},
	}

	rf.bind(cmd, false)
	cmd.Flags().Int64Var(&ifVersion, "if-version", 0, "Only apply while the requirement is at this version")
	return cmd
}

func newRequirementsDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <requirement-id>",
		Short: "Delete a requirement with no reservations",
		Long: `Delete a requirement. Reservations are never deleted implicitly:
remove them first. Requirements with authorized reservations cannot be
deleted.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			f := rootOpts.formatter(cmd)
			if err := s.engine.DeleteRequirement(cmd.Context(), args[0]); err != nil {
				return f.Fail("delete requirement", err)
			}
			return f.Success(map[string]string{"deleted": args[0]})
		},
	}
}

func writeRequirementTable(w io.Writer, views []engine.RequirementView) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tARTICLE\tPERIODS\tFLOW\tCOUNTER\tBONUS\tRESERVED\tSTATE")
	for _, v := range views {
		r, c := v.Requirement, v.Completion
		fmt.Fprintf(tw, "%s\t%s\t%s..%s\t%d/%d\t%d/%d\t%d/%d\t%d%%\t%s\n",
			r.ID, r.Article, r.StartPeriod, r.EndPeriod,
			c.FlowReserved, r.FlowRequired,
			c.CounterFlowReserved, r.CounterFlowRequired,
			c.BonusReserved, r.BonusRequired,
			c.Percentage, v.LockState)
	}
	return tw.Flush()
}

func writeRequirementDetail(w io.Writer, v engine.RequirementView) error {
	r, c := v.Requirement, v.Completion
	fmt.Fprintf(w, "Requirement %s (campaign %s)\n", r.ID, r.CampaignID)
	fmt.Fprintf(w, "  Article:  %s\n", r.Article)
	fmt.Fprintf(w, "  Periods:  %s..%s\n", r.StartPeriod, r.EndPeriod)
	fmt.Fprintf(w, "  Required: flow %d, counter-flow %d, bonus %d\n", r.FlowRequired, r.CounterFlowRequired, r.BonusRequired)
	fmt.Fprintf(w, "  Reserved: %d of %d (%d%%)", c.TotalReserved, c.TotalRequired, c.Percentage)
	if c.Overbooked {
		fmt.Fprint(w, " overbooked")
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  State:    %s\n", v.LockState)
	fmt.Fprintf(w, "  Version:  %d\n", r.Version)
	if v.Guards.Warning != "" {
		fmt.Fprintf(w, "  Warning:  %s\n", v.Guards.Warning)
	}
	if len(v.Reservations) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	return writeReservationTable(w, v.Reservations)
}
