package cli

import (
	"fmt"

	"github.com/me/flowgraph/internal/definition"
	"github.com/me/flowgraph/internal/ordering"
	"github.com/me/flowgraph/pkg/model"
	"github.com/spf13/cobra"
)

type orderedStep struct {
	Index  int    `json:"index"`
	ID     string `json:"id"`
	Type   string `json:"type"`
	ToolID string `json:"tool_id,omitempty"`
}

type orderResult struct {
	definition.SaveResult
	Steps []orderedStep `json:"steps"`
}

// buildGraph decodes path and builds its ordered graph.
func buildGraph(cmd *cobra.Command, path string) (*model.Graph, error) {
	doc, err := loadDocument(cmd, path)
	if err != nil {
		return nil, err
	}
	g, err := definition.New(logger).Build(doc, tools)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

func newOrderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "order <workflow>",
		Short: "Print the steps of a workflow in execution order",
		Long:  "Build the workflow graph, sort it topologically and report whether it is runnable.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := buildGraph(cmd, args[0])
			if err != nil {
				return err
			}

			res := orderResult{SaveResult: definition.Saved(g), Steps: []orderedStep{}}
			for _, s := range g.Steps() {
				res.Steps = append(res.Steps, orderedStep{
					Index:  s.OrderIndex,
					ID:     s.ID,
					Type:   string(s.Type),
					ToolID: s.ToolID,
				})
			}

			out := cmd.OutOrStdout()
			if jsonOutput() {
				if err := printJSON(out, res); err != nil {
					return err
				}
			} else {
				name := res.Name
				if name == "" {
					name = "(unnamed)"
				}
				fmt.Fprintln(out, headingFmt("Workflow: %s", name))
				for _, s := range res.Steps {
					index := "-"
					if s.Index >= 0 {
						index = fmt.Sprint(s.Index)
					}
					fmt.Fprintf(out, "  %3s  %-6s  %-24s  %s\n", index, s.ID, s.Type, s.ToolID)
				}
				if len(res.Errors) > 0 {
					fmt.Fprintln(out, errorFmt("Not runnable:"))
					for _, e := range res.Errors {
						fmt.Fprintf(out, "  - %s\n", e)
					}
				}
			}

			if g.HasCycles {
				_, err := ordering.Order(g.Steps())
				return err
			}
			return nil
		},
	}
}

func newLayoutCmd() *cobra.Command {
	opts := ordering.DefaultLayout()
	var format string

	cmd := &cobra.Command{
		Use:   "layout <workflow>",
		Short: "Place every step of a workflow on the canvas by dependency level",
		Long: "Assign canvas positions column by column: each column holds the steps whose inputs\n" +
			"are all produced by earlier columns. The laid out definition is written to stdout,\n" +
			"keyed by execution order.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := buildGraph(cmd, args[0])
			if err != nil {
				return err
			}
			levels, err := ordering.Layout(g, opts)
			if err != nil {
				return err
			}
			logger.Info("workflow laid out", "steps", g.Len(), "levels", len(levels))
			return writeDocument(cmd, definition.New(logger).Encode(g, tools), format)
		},
	}

	cmd.Flags().StringVar(&format, "format", "yaml", "Definition format (yaml, json)")
	cmd.Flags().Float64Var(&opts.Base, "base", opts.Base, "Offset of the first column and row")
	cmd.Flags().Float64Var(&opts.ColumnWidth, "column-width", opts.ColumnWidth, "Horizontal distance between levels")
	cmd.Flags().Float64Var(&opts.RowHeight, "row-height", opts.RowHeight, "Vertical distance between steps of one level")
	return cmd
}
