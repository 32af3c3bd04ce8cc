package invoke

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/me/flowgraph/internal/batch"
	"github.com/me/flowgraph/internal/ordering"
	"github.com/me/flowgraph/pkg/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// pipeline builds "0" (input) -> "1" (cat1) -> "2" (sort1), ordered.
func pipeline(t *testing.T) *model.Graph {
	t.Helper()
	g := model.NewGraph()
	g.Name = "cat and sort"
	for _, s := range []*model.Step{
		model.NewStep("0", model.StepTypeDataInput),
		model.NewStep("1", model.StepTypeTool),
		model.NewStep("2", model.StepTypeTool),
	} {
		if err := g.AddStep(s); err != nil {
			t.Fatalf("AddStep: %v", err)
		}
	}
	if _, err := g.ConnectIDs("0", "output", "1", "input1"); err != nil {
		t.Fatalf("ConnectIDs: %v", err)
	}
	if _, err := g.ConnectIDs("1", "out_file1", "2", "input"); err != nil {
		t.Fatalf("ConnectIDs: %v", err)
	}
	if !ordering.Attach(g) {
		t.Fatal("unexpected cycle")
	}
	return g
}

type recorder struct {
	got    []*model.Invocation
	failAt int
}

func (r *recorder) Invoke(_ context.Context, inv *model.Invocation) error {
	if r.failAt > 0 && len(r.got)+1 == r.failAt {
		return errors.New("executor unavailable")
	}
	r.got = append(r.got, inv)
	return nil
}

func TestRun_SingleRun(t *testing.T) {
	rec := &recorder{}
	r := NewRunner(rec, nil, testLogger())
	invs, err := r.Run(context.Background(), pipeline(t), Request{
		WorkflowID:  "wf-1",
		HistoryID:   "hist-1",
		HistoryName: "current",
		Params: map[string]any{
			"0|input":        7,
			"2|column":       "3",
			"2|order":        "ASC",
			"wf_parm|genome": "hg38",
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(invs) != 1 || len(rec.got) != 1 {
		t.Fatalf("invocations = %d, executed = %d, want 1", len(invs), len(rec.got))
	}
	inv := invs[0]
	if inv.ID == "" || inv.WorkflowID != "wf-1" || inv.WorkflowName != "cat and sort" {
		t.Errorf("inv = %+v", inv)
	}
	if inv.NewHistory || inv.HistoryID != "hist-1" || inv.HistoryName != "current" {
		t.Errorf("history = %v %q %q", inv.NewHistory, inv.HistoryID, inv.HistoryName)
	}
	if inv.State != model.InvocationStateQueued {
		t.Errorf("State = %q", inv.State)
	}
	wantArgs := map[string]map[string]any{
		"0": {"input": 7},
		"1": {},
		"2": {"column": "3", "order": "ASC"},
	}
	if diff := cmp.Diff(wantArgs, inv.StepArgs); diff != "" {
		t.Errorf("step args mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]any{"genome": "hg38"}, inv.Replacements); diff != "" {
		t.Errorf("replacements mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_BatchNewHistories(t *testing.T) {
	h := &model.History{Datasets: []*model.Dataset{
		{ID: 11, HID: 1, Name: "sample_a.fq"},
		{ID: 12, HID: 2, Name: "sample_b.fq"},
	}}
	rec := &recorder{}
	r := NewRunner(rec, HistoryNames(h), testLogger())
	invs, err := r.Run(context.Background(), pipeline(t), Request{
		WorkflowID: "wf-1",
		HistoryID:  "hist-1",
		Params: map[string]any{
			"0|input":     []any{11, 12},
			"new_history": "on",
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	var names []string
	for _, inv := range invs {
		if !inv.NewHistory || inv.HistoryID != "" {
			t.Errorf("inv %s: NewHistory = %v, HistoryID = %q", inv.ID, inv.NewHistory, inv.HistoryID)
		}
		names = append(names, inv.HistoryName)
	}
	want := []string{
		"History from cat and sort workflow on sample_a.fq",
		"History from cat and sort workflow on sample_b.fq",
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("history names mismatch (-want +got):\n%s", diff)
	}
	if invs[0].StepArgs["0"]["input"] != 11 || invs[1].StepArgs["0"]["input"] != 12 {
		t.Errorf("step args = %v, %v", invs[0].StepArgs["0"], invs[1].StepArgs["0"])
	}
}

func TestRun_NamedHistoryMultiplied(t *testing.T) {
	rec := &recorder{}
	r := NewRunner(rec, nil, testLogger())
	invs, err := r.Run(context.Background(), pipeline(t), Request{Params: map[string]any{
		"0|input":          []any{"a", "b"},
		"0|multi_mode":     "multiplied",
		"2|input":          []any{"x", "y"},
		"2|multi_mode":     "multiplied",
		"new_history":      true,
		"new_history_name": "Batch",
	}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	var names []string
	for _, inv := range invs {
		names = append(names, inv.HistoryName)
	}
	sort.Strings(names)
	want := []string{"Batch on a and x", "Batch on a and y", "Batch on b and x", "Batch on b and y"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("history names mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_RefusesUnrunnable(t *testing.T) {
	r := NewRunner(&recorder{}, nil, testLogger())

	_, err := r.Run(context.Background(), model.NewGraph(), Request{})
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "Workflow cannot be run because it does not have any steps" {
		t.Errorf("empty: err = %v", err)
	}

	cyclic := model.NewGraph()
	a := model.NewStep("a", model.StepTypeTool)
	_ = cyclic.AddStep(a)
	_, _ = cyclic.Connect(a, "out", a, "in")
	ordering.Attach(cyclic)
	_, err = r.Run(context.Background(), cyclic, Request{})
	if !errors.As(err, &apiErr) || apiErr.Message != "Workflow cannot be run because it contains cycles" {
		t.Errorf("cyclic: err = %v", err)
	}

	broken := pipeline(t)
	broken.HasErrors = true
	_, err = r.Run(context.Background(), broken, Request{})
	if !errors.As(err, &apiErr) || apiErr.Message != "Workflow cannot be run because of validation errors in some steps" {
		t.Errorf("broken: err = %v", err)
	}
}

func TestRun_MismatchedInputs(t *testing.T) {
	rec := &recorder{}
	r := NewRunner(rec, nil, testLogger())
	_, err := r.Run(context.Background(), pipeline(t), Request{Params: map[string]any{
		"0|input": []any{1, 2},
		"2|input": []any{1, 2, 3},
	}})
	var mm *batch.MismatchedLengthError
	if !errors.As(err, &mm) {
		t.Fatalf("err = %v, want MismatchedLengthError", err)
	}
	if len(rec.got) != 0 {
		t.Errorf("executed %d runs, want 0", len(rec.got))
	}
}

func TestRun_ExecutorFailureStopsBatch(t *testing.T) {
	rec := &recorder{failAt: 2}
	r := NewRunner(rec, nil, testLogger())
	invs, err := r.Run(context.Background(), pipeline(t), Request{Params: map[string]any{
		"0|input": []any{1, 2, 3},
	}})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(invs) != 1 {
		t.Errorf("invocations = %d, want 1", len(invs))
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewRunner(&recorder{}, nil, testLogger())
	_, err := r.Run(ctx, pipeline(t), Request{Params: map[string]any{"0|input": 1}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestHistoryNames(t *testing.T) {
	h := &model.History{Datasets: []*model.Dataset{{ID: 4, Name: "reads.fq"}}}
	names := HistoryNames(h)
	for _, v := range []any{4, float64(4), "4", int64(4)} {
		if got := names.Name(v); got != "reads.fq" {
			t.Errorf("Name(%#v) = %q, want reads.fq", v, got)
		}
	}
	if got := names.Name(99); got != "99" {
		t.Errorf("Name(99) = %q, want 99", got)
	}
	if got := names.Name(4.5); got != "4.5" {
		t.Errorf("Name(4.5) = %q, want 4.5", got)
	}
}
