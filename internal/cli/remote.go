package cli

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/me/flowgraph/internal/definition"
	"github.com/me/flowgraph/pkg/model"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type savedWorkflow struct {
	Workflow model.StoredWorkflow   `json:"workflow"`
	Result   *definition.SaveResult `json:"result"`
}

func newSaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save <workflow>",
		Short: "Save a workflow definition on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDocument(cmd, args[0])
			if err != nil {
				return err
			}
			resp, err := client.Post(cmd.Context(), "/api/v1/workflows", doc)
			if err != nil {
				return fmt.Errorf("save workflow: %w", err)
			}

			var data savedWorkflow
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			out := cmd.OutOrStdout()
			if jsonOutput() {
				return printJSON(out, data)
			}
			fmt.Fprintf(out, "Workflow registered: %s (revision %d)\n", data.Workflow.ID, data.Workflow.Revision)
			if data.Result != nil {
				fmt.Fprintln(out, data.Result.Message)
				for _, e := range data.Result.Errors {
					fmt.Fprintln(out, errorFmt("  - %s", e))
				}
			}
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	var (
		limit int
		name  string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			q.Set("limit", strconv.Itoa(limit))
			if name != "" {
				q.Set("name", name)
			}
			resp, err := client.Get(cmd.Context(), "/api/v1/workflows?"+q.Encode())
			if err != nil {
				return fmt.Errorf("list workflows: %w", err)
			}

			var data []model.StoredWorkflow
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOutput() {
				return printJSON(out, data)
			}
			if len(data) == 0 {
				fmt.Fprintln(out, "No workflows found.")
				return nil
			}

			fmt.Fprintln(out, headingFmt("%-36s  %-30s  %-8s  %-6s  %s", "ID", "NAME", "REVISION", "STEPS", "STATUS"))
			for _, wf := range data {
				status := "runnable"
				if wf.Runnable() != "" {
					status = errorFmt("not runnable")
				}
				fmt.Fprintf(out, "%-36s  %-30s  %-8d  %-6d  %s\n", wf.ID, wf.Name, wf.Revision, wf.StepCount, status)
			}

			if resp.Pagination != nil && resp.Pagination.HasMore {
				fmt.Fprintf(out, "\n(%d of %d shown)\n", len(data), resp.Pagination.Total)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of workflows to list")
	cmd.Flags().StringVar(&name, "name", "", "Only list workflows whose name contains this text")
	return cmd
}

func newRunCmd() *cobra.Command {
	var (
		paramsFile  string
		historyFile string
		historyID   string
	)

	cmd := &cobra.Command{
		Use:   "run <workflow_id>",
		Short: "Run a saved workflow, once per combination of multi-valued inputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{"history_id": historyID}
			params := map[string]any{}
			if paramsFile != "" {
				data, err := readFile(cmd, paramsFile)
				if err != nil {
					return err
				}
				if err := yaml.Unmarshal(data, &params); err != nil {
					return fmt.Errorf("parse params: %w", err)
				}
			}
			body["params"] = params
			if historyFile != "" {
				h, err := loadHistory(cmd, historyFile)
				if err != nil {
					return err
				}
				body["history"] = h
			}

			resp, err := client.Post(cmd.Context(), "/api/v1/workflows/"+url.PathEscape(args[0])+"/run", body)
			if err != nil {
				return fmt.Errorf("run workflow: %w", err)
			}
			var data struct {
				Invocations []*model.Invocation `json:"invocations"`
			}
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOutput() {
				return printJSON(out, data.Invocations)
			}
			fmt.Fprintln(out, headingFmt("%d invocation(s) queued", len(data.Invocations)))
			for _, inv := range data.Invocations {
				target := inv.HistoryName
				if target == "" {
					target = inv.HistoryID
				}
				fmt.Fprintf(out, "  %s  %-10s  %s\n", inv.ID, inv.State, target)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&paramsFile, "params", "p", "", "Run parameters file (YAML/JSON)")
	cmd.Flags().StringVar(&historyFile, "history", "", "History snapshot used to name new histories")
	cmd.Flags().StringVar(&historyID, "history-id", "", "History to run in when no new history is requested")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <workflow_id>",
		Short: "Delete a saved workflow and its invocations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := client.Delete(cmd.Context(), "/api/v1/workflows/"+url.PathEscape(args[0])); err != nil {
				return fmt.Errorf("delete workflow: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Workflow deleted: %s\n", args[0])
			return nil
		},
	}
}
