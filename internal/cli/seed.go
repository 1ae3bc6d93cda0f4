package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/caras/internal/seed"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Load inventory, requirements, reservations and tasks from YAML",
		Long: `Load a seed document into the database.

The document is validated against the seed schema before anything is
written. Records are applied through the engine, so lock, duplicate and
quota rules still hold; the first rejected record stops the load.`,
		Example:       `  caras seed ./testdata/campaign.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := seed.LoadFile(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid seed file", err)
			}

			s, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			f := rootOpts.formatter(cmd)
			sum, err := seed.Apply(cmd.Context(), s.engine, s.store, doc)
			if err != nil {
				return f.Fail("apply seed", err)
			}
			return f.Render(sum, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Seeded %d units, %d requirements, %d reservations, %d codes, %d tasks\n",
					sum.Units, sum.Requirements, sum.Reservations, sum.Codes, sum.Tasks)
				return err
			})
		},
	}
}
