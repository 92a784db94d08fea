package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/petrijr/stepflow/pkg/dsl"
)

func newValidateCmd(outputFn func(*cobra.Command) *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE...",
		Short: "Parse and compile flow documents",
		Long: "Parse and compile flow documents. Actions that are not scripts are\n" +
			"replaced by placeholders, so documents can be checked without the\n" +
			"host program that registers them.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn(cmd)

			type result struct {
				File  string `json:"file"`
				Flow  string `json:"flow"`
				Steps int    `json:"steps"`
			}
			results := make([]result, 0, len(args))
			for _, path := range args {
				doc, err := dsl.LoadFile(path)
				if err != nil {
					return err
				}
				def, err := doc.Compile(dsl.NewRegistry(), dsl.WithPlaceholderActions())
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				results = append(results, result{File: path, Flow: def.Name, Steps: len(def.Steps)})
			}

			rows := make([][]string, len(results))
			for i, r := range results {
				rows[i] = []string{r.File, r.Flow, strconv.Itoa(r.Steps)}
			}
			return out.Print([]string{"FILE", "FLOW", "STEPS"}, rows, results)
		},
	}
}

func newInspectCmd(outputFn func(*cobra.Command) *Output) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Show the steps and transition targets of a flow document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn(cmd)

			doc, err := dsl.LoadFile(args[0])
			if err != nil {
				return err
			}
			rep := doc.Inspect()

			rows := make([][]string, 0, len(rep.Steps)+len(rep.Channels))
			for _, st := range rep.Steps {
				name := st.Name
				if name == rep.Start {
					name += " (start)"
				}
				rows = append(rows, []string{name, st.Kind, strings.Join(st.Targets, ",")})
			}
			keys := make([]string, 0, len(rep.Channels))
			for key := range rep.Channels {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				rows = append(rows, []string{"@" + key, "channel", strings.Join(rep.Channels[key], ",")})
			}
			if err := out.Print([]string{"STEP", "KIND", "TARGETS"}, rows, rep); err != nil {
				return err
			}

			if len(rep.Unreachable) > 0 {
				msg := "unreachable steps: " + strings.Join(rep.Unreachable, ", ")
				if strict {
					return fmt.Errorf("%s: %s", args[0], msg)
				}
				out.Warn(msg)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when the document has unreachable steps")
	return cmd
}
