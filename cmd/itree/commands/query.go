package commands

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/itree/pkg/index"
	"github.com/Sumatoshi-tech/itree/pkg/observability"
	"github.com/Sumatoshi-tech/itree/pkg/rangefile"
)

// Output formats.
const (
	formatTable = "table"
	formatPlain = "plain"
)

// ErrUnknownOutputFormat is returned for an unsupported --format value.
var ErrUnknownOutputFormat = errors.New("unknown output format")

type queryOptions struct {
	bounds boundFlags
	format string
	keys   bool
	ip     bool
}

// NewQueryCommand creates the query subcommand.
func NewQueryCommand(globals *GlobalOptions) *cobra.Command {
	opts := &queryOptions{}

	cmd := &cobra.Command{
		Use:   "query FILE...",
		Short: "Print intervals overlapping a range or containing a point",
		Long: `Load one or more range files (.csv, .yaml, .json, optionally .lz4) and
print every stored interval that overlaps [--low, --high] or contains --point.

Examples:
  itree query ranges.csv --low 10 --high 20
  itree query blocklist.csv.lz4 --point 10.1.2.3 --ip`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, globals, opts, args)
		},
	}

	cmd.Flags().AddFlagSet(newBoundFlagSet(&opts.bounds))
	cmd.Flags().StringVarP(&opts.format, "format", "f", formatTable, "output format: table or plain")
	cmd.Flags().BoolVarP(&opts.keys, "keys", "k", false, "print intervals only, without values")
	cmd.Flags().BoolVar(&opts.ip, "ip", false, "render bounds as IPv4 addresses")

	return cmd
}

func runQuery(cmd *cobra.Command, globals *GlobalOptions, opts *queryOptions, files []string) error {
	if opts.format != formatTable && opts.format != formatPlain {
		return fmt.Errorf("%w: %q", ErrUnknownOutputFormat, opts.format)
	}

	low, high, stab, err := opts.bounds.query()
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	sess, err := openSession(ctx, globals, observability.ModeCLI, files)
	if err != nil {
		return err
	}
	defer sess.close(ctx)

	var matches []index.Match

	if stab {
		matches = sess.index.Stab(ctx, low)
	} else {
		matches, err = sess.index.Search(ctx, low, high)
		if err != nil {
			return err
		}
	}

	if globals.Quiet {
		return nil
	}

	render := boundRenderer(opts.ip)

	if opts.format == formatPlain {
		writePlain(cmd.OutOrStdout(), matches, opts.keys, render)

		return nil
	}

	writeTable(cmd.OutOrStdout(), matches, opts.keys, render)

	return nil
}

func boundRenderer(ip bool) func(int64) string {
	if !ip {
		return func(b int64) string { return strconv.FormatInt(b, 10) }
	}

	return func(b int64) string {
		if b < 0 || b > math.MaxUint32 {
			return strconv.FormatInt(b, 10)
		}

		return rangefile.Long2IP(uint32(b))
	}
}

func writePlain(w io.Writer, matches []index.Match, keys bool, render func(int64) string) {
	for _, m := range matches {
		if keys {
			fmt.Fprintf(w, "[%s, %s]\n", render(m.Low), render(m.High))

			continue
		}

		fmt.Fprintf(w, "[%s, %s]\t%s\n", render(m.Low), render(m.High), m.Value)
	}
}

func writeTable(w io.Writer, matches []index.Match, keys bool, render func(int64) string) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)

	if keys {
		tbl.AppendHeader(table.Row{"Low", "High"})
	} else {
		tbl.AppendHeader(table.Row{"Low", "High", "Value"})
	}

	for _, m := range matches {
		if keys {
			tbl.AppendRow(table.Row{render(m.Low), render(m.High)})

			continue
		}

		tbl.AppendRow(table.Row{render(m.Low), render(m.High), m.Value})
	}

	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %s matches", humanize.Comma(int64(len(matches))))})
	tbl.Render()
}
