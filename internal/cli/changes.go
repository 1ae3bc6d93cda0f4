package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/caras/internal/model"
)

// ChangesOptions holds flags for the changes command.
type ChangesOptions struct {
	*RootOptions
	Campaign string
	Since    int64
	Limit    int
	Follow   bool
	Interval time.Duration
}

// NewChangesCommand creates the changes command.
func NewChangesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ChangesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "changes",
		Short: "Read a campaign's change log",
		Long: `Read the durable change log of a campaign: one entry per requirement
touched by each committed mutation. Consumers remember the last seq they
processed and pass it as --since.

With --follow the command keeps polling for new entries until interrupted.
Each entry is printed on its own line (one JSON object per line with
--format json).`,
		Example: `  caras changes --campaign camp-1
  caras changes --campaign camp-1 --since 42 --follow`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChanges(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Campaign, "campaign", "", "campaign id (required)")
	cmd.Flags().Int64Var(&opts.Since, "since", 0, "only entries with seq greater than this")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum entries per read (0 = all)")
	cmd.Flags().BoolVarP(&opts.Follow, "follow", "f", false, "keep polling for new entries")
	cmd.Flags().DurationVar(&opts.Interval, "interval", time.Second, "poll interval with --follow")
	_ = cmd.MarkFlagRequired("campaign")

	return cmd
}

func runChanges(opts *ChangesOptions, cmd *cobra.Command) error {
	s, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	f := opts.formatter(cmd)
	if !opts.Follow {
		changes, err := s.engine.Changes(cmd.Context(), opts.Campaign, opts.Since, opts.Limit)
		if err != nil {
			return f.Fail("read changes", err)
		}
		return f.Render(changes, func(w io.Writer) error {
			for _, c := range changes {
				writeChange(w, c)
			}
			return nil
		})
	}

	if opts.Interval <= 0 {
		return NewExitError(ExitCommandError, "--interval must be positive")
	}

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			s.logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	s.logger.Info("following changes", "campaign", opts.Campaign, "since", opts.Since)
	return followChanges(ctx, opts, f.Writer, func(ctx context.Context, since int64) ([]model.Change, error) {
		return s.engine.Changes(ctx, opts.Campaign, since, opts.Limit)
	})
}

// followChanges polls read every opts.Interval and prints new entries until
// ctx is cancelled.
func followChanges(ctx context.Context, opts *ChangesOptions, w io.Writer, read func(context.Context, int64) ([]model.Change, error)) error {
	since := opts.Since
	enc := json.NewEncoder(w)
	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		changes, err := read(ctx, since)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return WrapExitError(ExitCommandError, "read changes", err)
		}
		for _, c := range changes {
			if opts.Format == "json" {
				if err := enc.Encode(c); err != nil {
					return err
				}
			} else {
				writeChange(w, c)
			}
			since = c.Seq
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func writeChange(w io.Writer, c model.Change) {
	fmt.Fprintf(w, "%d\t%s\t%s", c.Seq, c.Kind, c.RequirementID)
	if len(c.ReservationIDs) > 0 {
		fmt.Fprintf(w, "\t%s", strings.Join(c.ReservationIDs, ","))
	}
	if c.Code != "" {
		fmt.Fprintf(w, "\tcode=%s", c.Code)
	}
	fmt.Fprintln(w)
}
