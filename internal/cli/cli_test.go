package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/google/go-cmp/cmp"
	"github.com/me/flowgraph/internal/batch"
	"github.com/me/flowgraph/internal/config"
	"github.com/me/flowgraph/internal/definition"
	"github.com/me/flowgraph/internal/provenance"
	"github.com/me/flowgraph/internal/server"
	"github.com/me/flowgraph/internal/store"
	"github.com/me/flowgraph/internal/toolbox"
	"github.com/me/flowgraph/pkg/model"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// startTestServer starts a server with an in-memory SQLite store and returns the URL.
func startTestServer(t *testing.T) string {
	t.Helper()
	srvLogger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	st, err := store.NewSQLiteStore(":memory:", srvLogger)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	tools, err := toolbox.Load(testdataPath("tools.yaml"))
	if err != nil {
		t.Fatalf("load tools: %v", err)
	}
	srv := server.New(config.DefaultServerConfig(), st, nil, srvLogger, server.WithTools(tools))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func testdataPath(rel string) string {
	return filepath.Join("..", "..", "testdata", rel)
}

// writeTemp writes content to a file in a per-test directory.
func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// runCLI executes the root command and returns what it wrote to stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()

	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}

func TestOrderCommand(t *testing.T) {
	out, err := runCLI(t, "--tools", testdataPath("tools.yaml"), "order", testdataPath("workflows/cat_sort.json"))
	if err != nil {
		t.Fatalf("order: %v\noutput: %s", err, out)
	}
	if !strings.Contains(out, "Workflow: cat then sort") {
		t.Errorf("missing workflow heading in:\n%s", out)
	}
	if strings.Contains(out, "Not runnable") {
		t.Errorf("unexpected problems in:\n%s", out)
	}
}

func TestOrderCommand_JSON(t *testing.T) {
	out, err := runCLI(t, "-o", "json", "order", testdataPath("workflows/cat_sort.yaml"))
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	var res orderResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("parse output: %v\n%s", err, out)
	}
	if res.Message != "Workflow saved" {
		t.Errorf("message = %q, want Workflow saved", res.Message)
	}
	var ids []string
	for i, s := range res.Steps {
		if s.Index != i {
			t.Errorf("step %s index = %d, want %d", s.ID, s.Index, i)
		}
		ids = append(ids, s.ID)
	}
	if diff := cmp.Diff([]string{"5", "2", "7", "1"}, ids); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestOrderCommand_Cycle(t *testing.T) {
	out, err := runCLI(t, "order", testdataPath("workflows/cycle.yaml"))
	if err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Fatalf("err = %v, want cycle error", err)
	}
	if !strings.Contains(out, "This workflow contains cycles") {
		t.Errorf("missing cycle problem in:\n%s", out)
	}
}

func TestOrderCommand_MissingTool(t *testing.T) {
	wf := writeTemp(t, "wf.yaml", `
name: needs bowtie
steps:
  "0": {id: 0, type: data_input}
  "1":
    id: 1
    type: tool
    tool_id: bowtie2
    input_connections:
      reads: {id: 0, output_name: output}
`)
	_, err := runCLI(t, "--tools", testdataPath("tools.yaml"), "order", wf)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Message != definition.MissingToolsMessage {
		t.Fatalf("err = %v, want missing tools error", err)
	}
	if len(apiErr.Details) != 1 || apiErr.Details[0].Message != "Step 1 requires tool 'bowtie2'." {
		t.Errorf("details = %+v", apiErr.Details)
	}

	if _, err := runCLI(t, "order", wf); err != nil {
		t.Errorf("without a registry tools are not checked, got %v", err)
	}
}

func TestLayoutCommand(t *testing.T) {
	out, err := runCLI(t, "layout", "--format", "json", testdataPath("workflows/cat_sort.json"))
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	var doc definition.Document
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("parse output: %v\n%s", err, out)
	}

	got := make(map[string]model.Position)
	for key, sd := range doc.Steps {
		if sd.Position == nil {
			t.Fatalf("step %s has no position", key)
		}
		got[key] = *sd.Position
	}
	want := map[string]model.Position{
		"0": {Left: 10, Top: 10},
		"1": {Left: 10, Top: 130},
		"2": {Left: 230, Top: 10},
		"3": {Left: 450, Top: 10},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("positions mismatch (-want +got):\n%s", diff)
	}
}

func TestLayoutCommand_Spacing(t *testing.T) {
	out, err := runCLI(t, "layout", "--format", "json", "--base", "0", "--column-width", "100", "--row-height", "50",
		testdataPath("workflows/cat_sort.json"))
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	var doc definition.Document
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if pos := doc.Steps["3"].Position; pos == nil || pos.Left != 200 || pos.Top != 0 {
		t.Errorf("sort position = %+v, want (200,0)", pos)
	}
}

func TestLayoutCommand_Cycle(t *testing.T) {
	if _, err := runCLI(t, "layout", testdataPath("workflows/cycle.yaml")); err == nil {
		t.Fatal("expected error for cyclic workflow")
	}
}

func TestExpandCommand(t *testing.T) {
	params := writeTemp(t, "params.yaml", `
"0|input": [1, 2]
"1|input": [4, 5]
"3|column": "1"
new_history: "on"
`)
	out, err := runCLI(t, "-o", "json", "expand", params, "--history", testdataPath("histories/mapped.yaml"))
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	var runs []struct {
		Suffix string         `json:"suffix"`
		Params map[string]any `json:"params"`
	}
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("parse output: %v\n%s", err, out)
	}
	var suffixes []string
	for _, r := range runs {
		suffixes = append(suffixes, r.Suffix)
		if r.Params["3|column"] != "1" {
			t.Errorf("single-valued param lost: %v", r.Params)
		}
	}
	want := []string{
		" on forward.fastq and cat on data 1",
		" on reverse.fastq and cat on data 2",
	}
	if diff := cmp.Diff(want, suffixes); diff != "" {
		t.Errorf("suffix mismatch (-want +got):\n%s", diff)
	}
}

func TestExpandCommand_Multiplied(t *testing.T) {
	params := writeTemp(t, "params.json", `{
		"0|input": ["a", "b"], "0|multi_mode": "multiplied",
		"1|input": ["x", "y", "z"], "1|multi_mode": "multiplied"
	}`)
	out, err := runCLI(t, "expand", params)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if !strings.HasPrefix(out, "6 run(s)") {
		t.Errorf("output does not start with the run count:\n%s", out)
	}
	if !strings.Contains(out, "Run 6 on b and z") {
		t.Errorf("missing last run in:\n%s", out)
	}
}

func TestExpandCommand_Mismatch(t *testing.T) {
	params := writeTemp(t, "params.yaml", "\"0|input\": [1, 2]\n\"1|input\": [1, 2, 3]\n")
	_, err := runCLI(t, "expand", params)
	var mm *batch.MismatchedLengthError
	if !errors.As(err, &mm) {
		t.Fatalf("err = %v, want MismatchedLengthError", err)
	}
}

func TestJobsCommand(t *testing.T) {
	out, err := runCLI(t, "-o", "json", "--tools", testdataPath("tools.yaml"), "jobs", testdataPath("histories/mapped.yaml"))
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	var res jobsResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("parse output: %v\n%s", err, out)
	}
	var ids []string
	for _, row := range res.Jobs {
		ids = append(ids, row.JobID)
	}
	if diff := cmp.Diff([]string{"fake_1", "fake_2", "fake_100", "10", "12"}, ids); diff != "" {
		t.Errorf("jobs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{provenance.UnfinishedWarning}, res.Warnings); diff != "" {
		t.Errorf("warnings mismatch (-want +got):\n%s", diff)
	}
}

func TestJobsCommand_Text(t *testing.T) {
	out, err := runCLI(t, "jobs", testdataPath("histories/mapped.yaml"))
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	for _, want := range []string{"JOB", "cat1", "Warning: " + provenance.UnfinishedWarning} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestExtractCommand(t *testing.T) {
	out, err := runCLI(t, "--tools", testdataPath("tools.yaml"), "extract", testdataPath("histories/mapped.yaml"),
		"--jobs", "10,12", "--collections", "3", "--name", "from history", "--format", "json")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	var doc definition.Document
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("parse output: %v\n%s", err, out)
	}
	if doc.Name != "from history" || len(doc.Steps) != 3 {
		t.Fatalf("doc = %q with %d steps, want 3", doc.Name, len(doc.Steps))
	}

	byTool := make(map[string]*definition.StepDoc)
	for _, sd := range doc.Steps {
		byTool[sd.ToolID] = sd
	}
	in, cat, sort1 := byTool[""], byTool["cat1"], byTool["sort1"]
	if in == nil || cat == nil || sort1 == nil {
		t.Fatalf("steps = %v", byTool)
	}
	if in.Type != string(model.StepTypeDataCollectionInput) {
		t.Errorf("input type = %q", in.Type)
	}
	if refs := cat.InputConnections["input1"].Refs; len(refs) != 1 || refs[0].ID != in.ID {
		t.Errorf("cat input1 = %+v, want the input collection", refs)
	}
	if refs := sort1.InputConnections["input"].Refs; len(refs) != 1 || refs[0].ID != cat.ID {
		t.Errorf("sort input = %+v, want the cat step", refs)
	}
}

func TestExtractCommand_Errors(t *testing.T) {
	if _, err := runCLI(t, "extract", testdataPath("histories/mapped.yaml")); err == nil {
		t.Error("expected error when nothing is selected")
	}
	_, err := runCLI(t, "extract", testdataPath("histories/mapped.yaml"), "--jobs", "99")
	var nc *provenance.JobNotConnectedError
	if !errors.As(err, &nc) {
		t.Errorf("err = %v, want JobNotConnectedError", err)
	}
}

func TestRootCmd_InvalidFlags(t *testing.T) {
	wf := testdataPath("workflows/cat_sort.json")
	if _, err := runCLI(t, "-o", "xml", "order", wf); err == nil {
		t.Error("expected error for unknown output")
	}
	if _, err := runCLI(t, "--log-format", "logfmt", "order", wf); err == nil {
		t.Error("expected error for unknown log format")
	}
	if _, err := runCLI(t, "--tools", "no-such-file.yaml", "order", wf); err == nil {
		t.Error("expected error for missing tool registry")
	}
}

func TestRemoteCommands(t *testing.T) {
	url := startTestServer(t)

	out, err := runCLI(t, "--server", url, "-o", "json", "save", testdataPath("workflows/cat_sort.yaml"))
	if err != nil {
		t.Fatalf("save: %v\n%s", err, out)
	}
	var saved savedWorkflow
	if err := json.Unmarshal([]byte(out), &saved); err != nil {
		t.Fatalf("parse save output: %v", err)
	}
	id := saved.Workflow.ID
	if id == "" || saved.Workflow.StepCount != 4 {
		t.Fatalf("saved = %+v", saved.Workflow)
	}

	out, err = runCLI(t, "--server", url, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, id) || !strings.Contains(out, "runnable") {
		t.Errorf("list output missing workflow:\n%s", out)
	}

	params := writeTemp(t, "params.yaml", "\"0|input\": [1, 2]\nnew_history: \"on\"\n")
	out, err = runCLI(t, "--server", url, "-o", "json", "run", id, "--params", params,
		"--history", testdataPath("histories/mapped.yaml"))
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	var invs []*model.Invocation
	if err := json.Unmarshal([]byte(out), &invs); err != nil {
		t.Fatalf("parse run output: %v", err)
	}
	var names []string
	for _, inv := range invs {
		names = append(names, inv.HistoryName)
	}
	want := []string{
		"History from cat then sort workflow on forward.fastq",
		"History from cat then sort workflow on reverse.fastq",
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("history names mismatch (-want +got):\n%s", diff)
	}

	out, err = runCLI(t, "--server", url, "delete", id)
	if err != nil || !strings.Contains(out, "Workflow deleted: "+id) {
		t.Fatalf("delete: %v\n%s", err, out)
	}

	_, err = runCLI(t, "--server", url, "run", id)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrNotFound {
		t.Errorf("err = %v, want NOT_FOUND", err)
	}
}
