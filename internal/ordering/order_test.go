package ordering

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/me/flowgraph/pkg/model"
)

type conn struct {
	from, out, to, in string
}

func makeGraph(t *testing.T, steps []*model.Step, conns []conn) *model.Graph {
	t.Helper()
	g := model.NewGraph()
	for _, s := range steps {
		if err := g.AddStep(s); err != nil {
			t.Fatalf("AddStep(%s): %v", s.ID, err)
		}
	}
	for _, c := range conns {
		if _, err := g.ConnectIDs(c.from, c.out, c.to, c.in); err != nil {
			t.Fatalf("Connect(%v): %v", c, err)
		}
	}
	return g
}

func step(id string) *model.Step {
	return model.NewStep(id, model.StepTypeTool)
}

func stepAt(id string, left, top float64) *model.Step {
	s := step(id)
	s.Position = &model.Position{Left: left, Top: top}
	return s
}

func ids(steps []*model.Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.ID
	}
	return out
}

func TestAttach_LinearPipeline(t *testing.T) {
	// Submitted out of order: annotate before its producer.
	g := makeGraph(t,
		[]*model.Step{step("annotate"), step("assemble"), model.NewStep("reads", model.StepTypeDataInput)},
		[]conn{
			{"assemble", "contigs", "annotate", "contigs"},
			{"reads", "output", "assemble", "read1"},
		})

	if !Attach(g) {
		t.Fatal("Attach = false, want true")
	}
	if g.HasCycles {
		t.Error("HasCycles = true, want false")
	}
	if diff := cmp.Diff([]string{"reads", "assemble", "annotate"}, ids(g.Steps())); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	for i, s := range g.Steps() {
		if s.OrderIndex != i {
			t.Errorf("%s.OrderIndex = %d, want %d", s.ID, s.OrderIndex, i)
		}
	}
}

func TestAttach_DiamondEdgesPointForward(t *testing.T) {
	g := makeGraph(t,
		[]*model.Step{step("d"), step("c"), step("b"), step("a")},
		[]conn{
			{"a", "out", "b", "x"},
			{"a", "out", "c", "x"},
			{"b", "out", "d", "x"},
			{"c", "out", "d", "y"},
		})
	if !Attach(g) {
		t.Fatal("Attach = false, want true")
	}
	for _, c := range g.Connections() {
		if c.Source().OrderIndex >= c.Destination().OrderIndex {
			t.Errorf("edge %s: source index %d >= destination index %d",
				c, c.Source().OrderIndex, c.Destination().OrderIndex)
		}
	}
	steps := g.Steps()
	if steps[0].ID != "a" || steps[3].ID != "d" {
		t.Errorf("order = %v, want a first and d last", ids(steps))
	}
}

func TestAttach_RandomDAGsRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		n := 2 + rng.Intn(10)
		steps := make([]*model.Step, n)
		for i := range steps {
			steps[i] = step(string(rune('a' + i)))
		}
		var conns []conn
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				if rng.Intn(3) == 0 {
					conns = append(conns, conn{steps[i].ID, "out", steps[j].ID, "in" + steps[i].ID})
				}
			}
		}
		rng.Shuffle(n, func(i, j int) { steps[i], steps[j] = steps[j], steps[i] })
		g := makeGraph(t, steps, conns)
		if !Attach(g) {
			t.Fatalf("trial %d: Attach = false for acyclic graph", trial)
		}
		for _, c := range g.Connections() {
			if c.Source().OrderIndex >= c.Destination().OrderIndex {
				t.Fatalf("trial %d: edge %s not forward", trial, c)
			}
		}
		seen := make(map[int]bool)
		for _, s := range g.Steps() {
			if s.OrderIndex < 0 || s.OrderIndex >= n || seen[s.OrderIndex] {
				t.Fatalf("trial %d: order index %d not dense/unique", trial, s.OrderIndex)
			}
			seen[s.OrderIndex] = true
		}
	}
}

func TestAttach_CycleDetected(t *testing.T) {
	a, b, c := step("a"), step("b"), step("c")
	g := makeGraph(t, []*model.Step{a, b, c}, []conn{
		{"a", "out", "b", "x"},
		{"b", "out", "c", "x"},
		{"c", "out", "b", "y"},
	})
	if Attach(g) {
		t.Fatal("Attach = true, want false")
	}
	if !g.HasCycles {
		t.Error("HasCycles = false, want true")
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, ids(g.Steps())); diff != "" {
		t.Errorf("cyclic graph reordered (-want +got):\n%s", diff)
	}
	for _, s := range g.Steps() {
		if s.Ordered() {
			t.Errorf("%s.OrderIndex = %d, want unassigned", s.ID, s.OrderIndex)
		}
	}
}

func TestAttach_SelfLoop(t *testing.T) {
	g := makeGraph(t, []*model.Step{step("only")}, []conn{{"only", "out", "only", "x"}})
	if Attach(g) {
		t.Fatal("Attach = true for self-loop, want false")
	}
	if !g.HasCycles {
		t.Error("HasCycles = false, want true")
	}
	if g.Steps()[0].Ordered() {
		t.Error("self-looped step received an order index")
	}
}

func TestAttach_ClearsStaleIndexOnCycle(t *testing.T) {
	a, b := step("a"), step("b")
	g := makeGraph(t, []*model.Step{a, b}, []conn{{"a", "out", "b", "x"}})
	Attach(g)
	if _, err := g.Connect(b, "out", a, "y"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if Attach(g) {
		t.Fatal("Attach = true after closing cycle")
	}
	if a.Ordered() || b.Ordered() {
		t.Error("order index survived cycle detection")
	}
}

func TestOrder_CycleErrorNamesSteps(t *testing.T) {
	g := makeGraph(t, []*model.Step{step("root"), step("x"), step("y")}, []conn{
		{"root", "out", "x", "a"},
		{"x", "out", "y", "a"},
		{"y", "out", "x", "b"},
	})
	_, err := Order(g.Steps())
	var ce *CycleError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want CycleError", err)
	}
	if !strings.Contains(err.Error(), "x, y") {
		t.Errorf("error = %q, want to name x, y", err.Error())
	}
}

func TestAttach_PositionTieBreak(t *testing.T) {
	g := makeGraph(t, []*model.Step{
		stepAt("far", 10, 0),
		stepAt("mid", 3, 4),
		stepAt("origin", 0, 0),
	}, nil)
	if !Attach(g) {
		t.Fatal("Attach = false")
	}
	if diff := cmp.Diff([]string{"origin", "mid", "far"}, ids(g.Steps())); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestAttach_PartialPositionsKeepInputOrder(t *testing.T) {
	g := makeGraph(t, []*model.Step{
		stepAt("far", 10, 0),
		step("unplaced"),
		stepAt("origin", 0, 0),
	}, nil)
	Attach(g)
	if diff := cmp.Diff([]string{"far", "unplaced", "origin"}, ids(g.Steps())); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestAttach_PositionsDoNotOverrideEdges(t *testing.T) {
	g := makeGraph(t, []*model.Step{
		stepAt("consumer", 0, 0),
		stepAt("producer", 500, 500),
	}, []conn{{"producer", "out", "consumer", "in"}})
	Attach(g)
	if diff := cmp.Diff([]string{"producer", "consumer"}, ids(g.Steps())); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestAttach_Deterministic(t *testing.T) {
	build := func() *model.Graph {
		return makeGraph(t, []*model.Step{
			stepAt("a", 200, 10), stepAt("b", 10, 10), stepAt("c", 400, 200), stepAt("d", 30, 300),
		}, []conn{{"b", "out", "c", "x"}, {"a", "out", "c", "y"}})
	}
	g1, g2 := build(), build()
	Attach(g1)
	Attach(g2)
	if diff := cmp.Diff(ids(g1.Steps()), ids(g2.Steps())); diff != "" {
		t.Errorf("orderings differ (-first +second):\n%s", diff)
	}
}

func TestAttach_EmptyGraph(t *testing.T) {
	g := model.NewGraph()
	if !Attach(g) {
		t.Error("Attach(empty) = false, want true")
	}
	if g.HasCycles {
		t.Error("empty graph reported cycles")
	}
}

func TestTopSort_ReflexiveEdgesAreNotCycles(t *testing.T) {
	order, err := TopSort([]Edge{{From: 0, To: 0}, {From: 1, To: 1}, {From: 1, To: 0}})
	if err != nil {
		t.Fatalf("TopSort: %v", err)
	}
	if diff := cmp.Diff([]int{1, 0}, order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}

	if _, err := TopSort([]Edge{{From: 0, To: 0, Loop: true}}); err == nil {
		t.Error("TopSort with loop edge: want cycle error")
	}
}
