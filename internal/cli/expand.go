package cli

import (
	"fmt"
	"sort"

	"github.com/me/flowgraph/internal/batch"
	"github.com/me/flowgraph/internal/invoke"
	"github.com/me/flowgraph/pkg/model"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type expandedRun struct {
	Suffix string           `json:"suffix"`
	Params batch.Assignment `json:"params"`
}

func newExpandCmd() *cobra.Command {
	var historyFile string

	cmd := &cobra.Command{
		Use:   "expand <params>",
		Short: "Expand run parameters into the individual runs of a batch",
		Long: "Read run parameters (YAML or JSON) and print one assignment per run. Multi-valued\n" +
			"inputs in matched mode advance together; inputs in multiplied mode form a cross product.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readFile(cmd, args[0])
			if err != nil {
				return err
			}
			var params map[string]any
			if err := yaml.Unmarshal(data, &params); err != nil {
				return fmt.Errorf("parse params: %w", err)
			}

			names := invoke.FallbackNames
			if historyFile != "" {
				h, err := loadHistory(cmd, historyFile)
				if err != nil {
					return err
				}
				names = invoke.HistoryNames(h)
			}

			exp, err := batch.Expand(params)
			if err != nil {
				return err
			}
			runs := make([]expandedRun, 0, exp.Len())
			for a, keys := range exp.All() {
				display := make([]string, len(keys))
				for i, key := range keys {
					display[i] = names.Name(a[key])
				}
				runs = append(runs, expandedRun{Suffix: batch.RunNameSuffix(display), Params: a})
			}
			logger.Debug("params expanded", "runs", len(runs), "multi_inputs", len(exp.MultiInputKeys()))

			out := cmd.OutOrStdout()
			if jsonOutput() {
				return printJSON(out, runs)
			}
			fmt.Fprintln(out, headingFmt("%d run(s)", len(runs)))
			for i, run := range runs {
				fmt.Fprintf(out, "Run %d%s\n", i+1, run.Suffix)
				keys := make([]string, 0, len(run.Params))
				for k := range run.Params {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintf(out, "  %s = %v\n", k, run.Params[k])
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&historyFile, "history", "", "History snapshot used to name selected datasets")
	return cmd
}

// loadHistory reads a history snapshot file (YAML or JSON).
func loadHistory(cmd *cobra.Command, path string) (*model.History, error) {
	data, err := readFile(cmd, path)
	if err != nil {
		return nil, err
	}
	var h model.History
	if err := yaml.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("parse history %s: %w", path, err)
	}
	return &h, nil
}
