package cli

import (
	"fmt"
	"strings"

	"github.com/me/flowgraph/internal/definition"
	"github.com/me/flowgraph/internal/ordering"
	"github.com/me/flowgraph/internal/provenance"
	"github.com/spf13/cobra"
)

type jobsResult struct {
	Jobs     []provenance.Row `json:"jobs"`
	Warnings []string         `json:"warnings"`
}

func newJobsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "jobs <history>",
		Short: "List the jobs that produced the items of a history",
		Long: "Credit every finished dataset and collection of a history snapshot to the job that\n" +
			"produced it. Hand-uploaded datasets and hand-built collections are listed as inputs.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := loadHistory(cmd, args[0])
			if err != nil {
				return err
			}
			res, err := provenance.Reconstruct(h)
			if err != nil {
				return err
			}
			out := jobsResult{Jobs: provenance.Summarize(res, tools), Warnings: res.Warnings}
			if out.Warnings == nil {
				out.Warnings = []string{}
			}

			w := cmd.OutOrStdout()
			if jsonOutput() {
				return printJSON(w, out)
			}
			fmt.Fprintln(w, headingFmt("%-10s  %-20s  %-30s  %s", "JOB", "KIND", "NAME", "OUTPUTS"))
			for _, row := range out.Jobs {
				outputs := make([]string, len(row.Outputs))
				for i, o := range row.Outputs {
					outputs[i] = fmt.Sprintf("%d: %s", o.HID, o.Name)
				}
				name := fmt.Sprintf("%-30s", row.Name)
				if row.Disabled {
					name = errorFmt("%s", name)
				}
				fmt.Fprintf(w, "%-10s  %-20s  %s  %s\n", row.JobID, row.Kind, name, strings.Join(outputs, ", "))
			}
			printWarnings(w, out.Warnings)
			return nil
		},
	}
}

func newExtractCmd() *cobra.Command {
	var (
		sel    provenance.Selection
		format string
	)
	opts := ordering.DefaultLayout()

	cmd := &cobra.Command{
		Use:   "extract <history>",
		Short: "Build a workflow from selected jobs and inputs of a history",
		Long: "Turn the selected datasets and collections into input steps and the selected jobs\n" +
			"into tool steps, connected the way the history's data flowed. The workflow\n" +
			"definition is written to stdout, laid out by dependency level.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(sel.JobIDs) == 0 && len(sel.DatasetHIDs) == 0 && len(sel.CollectionHIDs) == 0 {
				return fmt.Errorf("nothing selected: use --jobs, --datasets or --collections")
			}
			h, err := loadHistory(cmd, args[0])
			if err != nil {
				return err
			}
			g, warnings, err := provenance.Extract(h, sel, tools, opts)
			if err != nil {
				return err
			}
			printWarnings(cmd.ErrOrStderr(), warnings)
			logger.Info("workflow extracted", "steps", g.Len(), "cycles", g.HasCycles)
			return writeDocument(cmd, definition.New(logger).Encode(g, tools), format)
		},
	}

	cmd.Flags().StringVar(&sel.Name, "name", "", "Name of the new workflow")
	cmd.Flags().IntSliceVar(&sel.JobIDs, "jobs", nil, "Job ids to turn into tool steps")
	cmd.Flags().IntSliceVar(&sel.DatasetHIDs, "datasets", nil, "Dataset hids to turn into input steps")
	cmd.Flags().IntSliceVar(&sel.CollectionHIDs, "collections", nil, "Collection hids to turn into input collection steps")
	cmd.Flags().StringVar(&format, "format", "yaml", "Definition format (yaml, json)")
	cmd.Flags().Float64Var(&opts.ColumnWidth, "column-width", opts.ColumnWidth, "Horizontal distance between levels")
	cmd.Flags().Float64Var(&opts.RowHeight, "row-height", opts.RowHeight, "Vertical distance between steps of one level")
	return cmd
}
