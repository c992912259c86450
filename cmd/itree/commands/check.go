package commands

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/itree/pkg/observability"
)

// ErrCheckFailed is returned when the loaded tree fails verification.
var ErrCheckFailed = errors.New("interval tree verification failed")

type checkOptions struct {
	colorize bool
	nocolor  bool
}

// NewCheckCommand creates the check subcommand.
func NewCheckCommand(globals *GlobalOptions) *cobra.Command {
	opts := &checkOptions{}

	cmd := &cobra.Command{
		Use:   "check FILE...",
		Short: "Load range files and verify the interval tree invariants",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, globals, opts, args)
		},
	}

	cmd.Flags().BoolVar(&opts.colorize, "color", false, "force colored output")
	cmd.Flags().BoolVar(&opts.nocolor, "no-color", false, "disable colored output")

	return cmd
}

func runCheck(cmd *cobra.Command, globals *GlobalOptions, opts *checkOptions, files []string) error {
	if opts.nocolor {
		color.NoColor = true //nolint:reassign // intentional override of library global
	} else if opts.colorize {
		color.NoColor = false //nolint:reassign // intentional override of library global
	}

	ctx := cmd.Context()

	sess, err := openSession(ctx, globals, observability.ModeCLI, files)
	if err != nil {
		return err
	}
	defer sess.close(ctx)

	out := cmd.OutOrStdout()
	stats := sess.index.Stats()
	verifyErr := sess.index.Verify()

	if !globals.Quiet {
		fmt.Fprintf(out, "Index:        %s\n", stats.Name)
		fmt.Fprintf(out, "Intervals:    %s\n", humanize.Comma(int64(stats.Size)))
		fmt.Fprintf(out, "Black height: %d\n", stats.BlackHeight)

		if verifyErr == nil {
			color.New(color.FgGreen).Fprintf(out, "OK: coloring, subtree max and order invariants hold\n")
		} else {
			color.New(color.FgRed).Fprintf(out, "FAIL: %v\n", verifyErr)
		}
	}

	if verifyErr != nil {
		return fmt.Errorf("%w: %w", ErrCheckFailed, verifyErr)
	}

	return nil
}
