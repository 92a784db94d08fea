// Package cli implements the stepflow command line tool.
//
// Output is a table (text/tabwriter) by default, or indented JSON with
// --json.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd builds the stepflow command tree.
func NewRootCmd(version string) *cobra.Command {
	var jsonOutput bool

	root := &cobra.Command{
		Use:           "stepflow",
		Short:         "stepflow: declarative step flows",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	outputFn := func(cmd *cobra.Command) *Output {
		return NewOutput(jsonOutput, cmd.OutOrStdout(), cmd.ErrOrStderr())
	}

	root.AddCommand(
		newValidateCmd(outputFn),
		newInspectCmd(outputFn),
		newJournalCmd(outputFn),
	)
	return root
}
