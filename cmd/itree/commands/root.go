// Package commands implements the itree subcommands.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/itree/pkg/version"
)

// GlobalOptions holds the persistent root flags shared by all subcommands.
type GlobalOptions struct {
	ConfigPath string
	Verbose    bool
	Quiet      bool
}

// NewRootCommand builds the itree command tree.
func NewRootCommand() *cobra.Command {
	globals := &GlobalOptions{}

	rootCmd := &cobra.Command{
		Use:   "itree",
		Short: "itree - interval index for integer and IPv4 ranges",
		Long: `itree loads interval files into an augmented red-black interval tree
and answers overlap queries.

Commands:
  query     Search loaded files for overlapping intervals
  check     Load files and verify the tree invariants
  serve     Serve an index over HTTP
  compress  Write an LZ4-compressed copy of a range file`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&globals.ConfigPath, "config", "c", "", "config file (default: ./itree.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&globals.Verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&globals.Quiet, "quiet", "q", false, "suppress output")

	rootCmd.AddCommand(NewQueryCommand(globals))
	rootCmd.AddCommand(NewCheckCommand(globals))
	rootCmd.AddCommand(NewServeCommand(globals))
	rootCmd.AddCommand(NewCompressCommand())
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "itree %s\n", version.String())
		},
	}
}
