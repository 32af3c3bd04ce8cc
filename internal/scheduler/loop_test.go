package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/me/flowgraph/internal/store"
	"github.com/me/flowgraph/pkg/model"
)

// testStore creates a migrated in-memory store.
func testStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := store.NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// queue inserts QUEUED invocations with the given ids, one second apart.
func queue(t *testing.T, st store.Store, ids ...string) {
	t.Helper()
	base := time.Now().UTC()
	for i, id := range ids {
		inv := &model.Invocation{
			ID:           id,
			WorkflowID:   "wf-1",
			WorkflowName: "cat and sort",
			State:        model.InvocationStateQueued,
			Assignment:   map[string]any{},
			StepArgs:     map[string]map[string]any{},
			CreatedAt:    base.Add(time.Duration(i) * time.Second),
		}
		if err := st.CreateInvocation(context.Background(), inv); err != nil {
			t.Fatalf("CreateInvocation(%s): %v", id, err)
		}
	}
}

func stateOf(t *testing.T, st store.Store, id string) *model.Invocation {
	t.Helper()
	inv, err := st.GetInvocation(context.Background(), id)
	if err != nil || inv == nil {
		t.Fatalf("GetInvocation(%s) = %v, %v", id, inv, err)
	}
	return inv
}

func TestTick_SchedulesQueued(t *testing.T) {
	st := testStore(t)
	queue(t, st, "inv-a", "inv-b")

	var order []string
	h := HandlerFunc(func(_ context.Context, inv *model.Invocation) error {
		order = append(order, inv.ID)
		return nil
	})
	sched := NewLoop(st, h, DefaultConfig(), testLogger())

	if err := sched.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if diff := cmp.Diff([]string{"inv-a", "inv-b"}, order); diff != "" {
		t.Errorf("dispatch order mismatch (-want +got):\n%s", diff)
	}
	for _, id := range order {
		if got := stateOf(t, st, id).State; got != model.InvocationStateScheduled {
			t.Errorf("%s state = %q, want SCHEDULED", id, got)
		}
	}

	// A second tick finds nothing left to dispatch.
	order = nil
	if err := sched.Tick(context.Background()); err != nil {
		t.Fatalf("second Tick: %v", err)
	}
	if len(order) != 0 {
		t.Errorf("second tick dispatched %v", order)
	}
}

func TestTick_HandlerFailureMarksFailed(t *testing.T) {
	st := testStore(t)
	queue(t, st, "inv-a", "inv-b")

	h := HandlerFunc(func(_ context.Context, inv *model.Invocation) error {
		if inv.ID == "inv-a" {
			return errors.New("backend rejected run")
		}
		return nil
	})
	var observed []model.InvocationState
	sched := NewLoop(st, h, DefaultConfig(), testLogger())
	sched.SetObserver(func(s model.InvocationState) { observed = append(observed, s) })

	if err := sched.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	a := stateOf(t, st, "inv-a")
	if a.State != model.InvocationStateFailed || a.Message != "backend rejected run" {
		t.Errorf("inv-a = %q %q, want FAILED with message", a.State, a.Message)
	}
	if got := stateOf(t, st, "inv-b").State; got != model.InvocationStateScheduled {
		t.Errorf("inv-b state = %q, want SCHEDULED", got)
	}
	want := []model.InvocationState{model.InvocationStateFailed, model.InvocationStateScheduled}
	if diff := cmp.Diff(want, observed); diff != "" {
		t.Errorf("observed states mismatch (-want +got):\n%s", diff)
	}
}

func TestTick_EmptyTick(t *testing.T) {
	sched := NewLoop(testStore(t), NewLogHandler(testLogger()), DefaultConfig(), testLogger())
	if err := sched.Tick(context.Background()); err != nil {
		t.Fatalf("Tick with empty DB: %v", err)
	}
}

// TestStart_StopsOnContextCancel verifies that Start returns when its context
// is cancelled.
func TestStart_StopsOnContextCancel(t *testing.T) {
	st := testStore(t)
	queue(t, st, "inv-a")

	cfg := Config{PollInterval: 10 * time.Millisecond}
	sched := NewLoop(st, NewLogHandler(testLogger()), cfg, testLogger())

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- sched.Start(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Start returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return within 5 seconds after context cancellation")
	}

	if got := stateOf(t, st, "inv-a").State; got != model.InvocationStateScheduled {
		t.Errorf("state = %q, want SCHEDULED", got)
	}
}

func TestStop(t *testing.T) {
	sched := NewLoop(testStore(t), NewLogHandler(testLogger()), Config{PollInterval: 10 * time.Millisecond}, testLogger())

	done := make(chan error, 1)
	go func() {
		done <- sched.Start(context.Background())
	}()
	time.Sleep(30 * time.Millisecond)

	if err := sched.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Start returned %v, want nil", err)
	}
}
