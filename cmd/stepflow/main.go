// Command stepflow checks and inspects YAML flow documents and reads runner
// journals.
//
// Usage:
//
//	stepflow [--json] <command> [flags]
//
// Commands:
//
//	validate  Parse and compile a flow document
//	inspect   Print the steps, targets and unreachable steps of a document
//	journal   List journaled runners or the events of one runner
package main

import (
	"fmt"
	"os"

	"github.com/petrijr/stepflow/internal/cli"
)

// version is set via ldflags at build time.
var version = "dev"

func main() {
	if err := cli.NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
