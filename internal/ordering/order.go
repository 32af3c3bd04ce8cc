// Package ordering sorts workflow graphs topologically, detects cycles and
// computes the level ordering used for automatic canvas layout.
package ordering

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/me/flowgraph/pkg/model"
)

// Edge is a dependency between two step indices. An edge from a step to
// itself records only that the step exists, unless Loop is set, in which
// case it is a connection from the step into itself.
type Edge struct {
	From int
	To   int
	Loop bool
}

// CycleError reports the step indices that could not be ordered.
type CycleError struct {
	Indices []int
	IDs     []string
}

func (e *CycleError) Error() string {
	if len(e.IDs) > 0 {
		return fmt.Sprintf("workflow contains a cycle involving steps: %s", strings.Join(e.IDs, ", "))
	}
	return fmt.Sprintf("workflow contains a cycle involving %d steps", len(e.Indices))
}

// EdgeList builds the edge list for steps: one reflexive edge per step so
// isolated steps still appear in the output, plus one source→destination
// edge per connection. Connections to steps outside the list are ignored.
func EdgeList(steps []*model.Step) []Edge {
	index := make(map[*model.Step]int, len(steps))
	for i, s := range steps {
		index[s] = i
	}
	edges := make([]Edge, 0, len(steps))
	for i, s := range steps {
		edges = append(edges, Edge{From: i, To: i})
		for _, c := range s.InputConnections() {
			src, ok := index[c.Source()]
			if !ok {
				continue
			}
			edges = append(edges, Edge{From: src, To: i, Loop: src == i})
		}
	}
	return edges
}

// graphState holds predecessor counts and successor lists for Kahn's algorithm.
type graphState struct {
	nodes      []int
	numPreds   map[int]int
	successors map[int][]int
}

func newGraphState(edges []Edge) *graphState {
	st := &graphState{
		numPreds:   make(map[int]int),
		successors: make(map[int][]int),
	}
	for _, e := range edges {
		for _, n := range []int{e.From, e.To} {
			if _, ok := st.numPreds[n]; !ok {
				st.numPreds[n] = 0
				st.nodes = append(st.nodes, n)
			}
		}
		if e.From == e.To && !e.Loop {
			continue
		}
		st.numPreds[e.To]++
		st.successors[e.From] = append(st.successors[e.From], e.To)
	}
	sort.Ints(st.nodes)
	return st
}

func (st *graphState) remaining() []int {
	var out []int
	for _, n := range st.nodes {
		if st.numPreds[n] > 0 {
			out = append(out, n)
		}
	}
	return out
}

// TopSort orders the nodes of an edge list with Kahn's algorithm. Roots
// are taken in ascending index order and successors in edge order, so the
// result depends only on the input.
func TopSort(edges []Edge) ([]int, error) {
	st := newGraphState(edges)

	var queue []int
	for _, n := range st.nodes {
		if st.numPreds[n] == 0 {
			queue = append(queue, n)
		}
	}

	order := make([]int, 0, len(st.nodes))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		for _, succ := range st.successors[n] {
			st.numPreds[succ]--
			if st.numPreds[succ] == 0 {
				queue = append(queue, succ)
			}
		}
	}

	if len(order) != len(st.nodes) {
		return nil, &CycleError{Indices: st.remaining()}
	}
	return order, nil
}

// TopSortLevels groups the nodes of an edge list into levels: level 0
// holds every root and a node sits one level past its deepest predecessor.
func TopSortLevels(edges []Edge) ([][]int, error) {
	st := newGraphState(edges)
	done := make(map[int]bool, len(st.nodes))

	var levels [][]int
	for {
		var level []int
		for _, n := range st.nodes {
			if !done[n] && st.numPreds[n] == 0 {
				level = append(level, n)
			}
		}
		if len(level) == 0 {
			break
		}
		for _, n := range level {
			done[n] = true
			for _, succ := range st.successors[n] {
				st.numPreds[succ]--
			}
		}
		levels = append(levels, level)
	}

	if len(done) != len(st.nodes) {
		return nil, &CycleError{Indices: st.remaining()}
	}
	return levels, nil
}

// Order returns steps in topological order. When every step has a
// position, steps are first sorted by distance from the canvas origin so
// that otherwise unrelated steps keep a visually stable order. The input
// slice is not modified.
func Order(steps []*model.Step) ([]*model.Step, error) {
	sorted := make([]*model.Step, len(steps))
	copy(sorted, steps)
	if positioned(sorted) {
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Position.Distance() < sorted[j].Position.Distance()
		})
	}

	order, err := TopSort(EdgeList(sorted))
	if err != nil {
		var ce *CycleError
		if errors.As(err, &ce) {
			for _, i := range ce.Indices {
				ce.IDs = append(ce.IDs, sorted[i].ID)
			}
		}
		return nil, err
	}

	out := make([]*model.Step, len(order))
	for i, idx := range order {
		out[i] = sorted[idx]
	}
	return out, nil
}

// Attach orders the graph in place. On success every step receives its
// order index and HasCycles is cleared. On a cycle HasCycles is set, the
// steps stay in submission order and no order index is assigned.
// It returns true when the graph could be ordered.
func Attach(g *model.Graph) bool {
	steps := g.Steps()
	ordered, err := Order(steps)
	if err != nil {
		g.HasCycles = true
		for _, s := range steps {
			s.OrderIndex = -1
		}
		return false
	}
	g.HasCycles = false
	for i, s := range ordered {
		s.OrderIndex = i
	}
	// ordered is a permutation of the graph's own steps.
	_ = g.Reorder(ordered)
	return true
}

// Levels returns the graph's steps grouped by depth from the roots.
func Levels(g *model.Graph) ([][]*model.Step, error) {
	steps := g.Steps()
	idx, err := TopSortLevels(EdgeList(steps))
	if err != nil {
		return nil, err
	}
	levels := make([][]*model.Step, len(idx))
	for i, level := range idx {
		for _, n := range level {
			levels[i] = append(levels[i], steps[n])
		}
	}
	return levels, nil
}

func positioned(steps []*model.Step) bool {
	for _, s := range steps {
		if s.Position == nil {
			return false
		}
	}
	return true
}
