package model

import (
	"fmt"
	"math"
)

// StepType identifies the kind of node a Step represents.
type StepType string

const (
	StepTypeTool                StepType = "tool"
	StepTypeDataInput           StepType = "data_input"
	StepTypeDataCollectionInput StepType = "data_collection_input"
	StepTypeInvalid             StepType = "invalid"
)

// ParseStepType maps a wire type tag to a StepType. An empty tag is a tool
// step (older definitions omit it); anything unrecognized is invalid.
func ParseStepType(s string) StepType {
	switch StepType(s) {
	case "", StepTypeTool:
		return StepTypeTool
	case StepTypeDataInput, StepTypeDataCollectionInput:
		return StepType(s)
	}
	return StepTypeInvalid
}

// IsInput returns true for the placeholder steps that feed datasets or
// collections into a workflow.
func (t StepType) IsInput() bool {
	return t == StepTypeDataInput || t == StepTypeDataCollectionInput
}

// Position is the editor canvas location of a step.
type Position struct {
	Left float64 `json:"left" yaml:"left"`
	Top  float64 `json:"top" yaml:"top"`
}

// Distance returns the Euclidean distance of the position from the origin.
func (p Position) Distance() float64 {
	return math.Sqrt(p.Left*p.Left + p.Top*p.Top)
}

// Step is a node of a workflow graph.
type Step struct {
	ID              string
	Type            StepType
	ToolID          string
	ToolState       map[string]any
	ToolErrors      []string
	Annotation      string
	Position        *Position
	WorkflowOutputs []string

	// OrderIndex is the topological rank of the step, or -1 until the
	// graph owning it has been ordered.
	OrderIndex int

	inputs     map[string][]*Connection
	inputNames []string
}

// NewStep creates an unordered step with no connections.
func NewStep(id string, typ StepType) *Step {
	return &Step{
		ID:         id,
		Type:       typ,
		OrderIndex: -1,
		inputs:     make(map[string][]*Connection),
	}
}

// Ordered returns true once an order index has been assigned.
func (s *Step) Ordered() bool {
	return s.OrderIndex >= 0
}

// InputNames returns the connected input slots in the order they were first bound.
func (s *Step) InputNames() []string {
	out := make([]string, len(s.inputNames))
	copy(out, s.inputNames)
	return out
}

// ConnectionsTo returns the connections bound to one input slot.
func (s *Step) ConnectionsTo(inputName string) []*Connection {
	conns := s.inputs[inputName]
	out := make([]*Connection, len(conns))
	copy(out, conns)
	return out
}

// InputConnections returns every incoming connection, grouped by slot.
func (s *Step) InputConnections() []*Connection {
	var out []*Connection
	for _, name := range s.inputNames {
		out = append(out, s.inputs[name]...)
	}
	return out
}

// IsRoot returns true if nothing feeds into the step.
func (s *Step) IsRoot() bool {
	return len(s.inputNames) == 0
}

// HasErrors returns true if the step reported validation errors.
func (s *Step) HasErrors() bool {
	return len(s.ToolErrors) > 0
}

func (s *Step) bind(c *Connection) {
	if _, ok := s.inputs[c.inputName]; !ok {
		s.inputNames = append(s.inputNames, c.inputName)
	}
	s.inputs[c.inputName] = append(s.inputs[c.inputName], c)
}

// Connection binds an output slot of one step to an input slot of another.
// Connections are created through Graph.Connect and never change afterwards.
type Connection struct {
	source     *Step
	outputName string
	dest       *Step
	inputName  string
}

// Source returns the step producing the value.
func (c *Connection) Source() *Step { return c.source }

// OutputName returns the output slot on the source step.
func (c *Connection) OutputName() string { return c.outputName }

// Destination returns the step consuming the value.
func (c *Connection) Destination() *Step { return c.dest }

// InputName returns the input slot on the destination step.
func (c *Connection) InputName() string { return c.inputName }

// IsSelfLoop returns true if the connection feeds a step into itself.
func (c *Connection) IsSelfLoop() bool { return c.source == c.dest }

func (c *Connection) String() string {
	return fmt.Sprintf("%s/%s -> %s/%s", c.source.ID, c.outputName, c.dest.ID, c.inputName)
}

// Graph owns a set of steps and the connections between them.
//
// HasCycles is set by the orderer; a graph with cycles keeps its steps in
// submission order and must not be run. HasErrors is set by whoever loads
// the steps when any of them reports a validation error.
type Graph struct {
	Name      string
	HasCycles bool
	HasErrors bool

	steps []*Step
	byID  map[string]*Step
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{byID: make(map[string]*Step)}
}

// AddStep appends a step to the graph.
func (g *Graph) AddStep(s *Step) error {
	if _, ok := g.byID[s.ID]; ok {
		return &DuplicateStepError{ID: s.ID}
	}
	g.byID[s.ID] = s
	g.steps = append(g.steps, s)
	return nil
}

// Connect binds from.outputName to to.inputName. Both steps must already
// belong to the graph. Binding a second connection to the same input slot
// turns it into a multiple-input slot.
func (g *Graph) Connect(from *Step, outputName string, to *Step, inputName string) (*Connection, error) {
	if !g.owns(from) {
		return nil, &UnknownStepError{ID: stepID(from)}
	}
	if !g.owns(to) {
		return nil, &UnknownStepError{ID: stepID(to)}
	}
	c := &Connection{source: from, outputName: outputName, dest: to, inputName: inputName}
	to.bind(c)
	return c, nil
}

// ConnectIDs is Connect addressed by step id.
func (g *Graph) ConnectIDs(fromID, outputName, toID, inputName string) (*Connection, error) {
	from, ok := g.byID[fromID]
	if !ok {
		return nil, &UnknownStepError{ID: fromID}
	}
	to, ok := g.byID[toID]
	if !ok {
		return nil, &UnknownStepError{ID: toID}
	}
	return g.Connect(from, outputName, to, inputName)
}

// Step looks up a step by id.
func (g *Graph) Step(id string) (*Step, bool) {
	s, ok := g.byID[id]
	return s, ok
}

// Steps returns the steps in their current order.
func (g *Graph) Steps() []*Step {
	out := make([]*Step, len(g.steps))
	copy(out, g.steps)
	return out
}

// Len returns the number of steps.
func (g *Graph) Len() int {
	return len(g.steps)
}

// Roots returns the steps with no incoming connections.
func (g *Graph) Roots() []*Step {
	var out []*Step
	for _, s := range g.steps {
		if s.IsRoot() {
			out = append(out, s)
		}
	}
	return out
}

// Connections returns every edge of the graph, ordered by destination step
// and then by input slot.
func (g *Graph) Connections() []*Connection {
	var out []*Connection
	for _, s := range g.steps {
		out = append(out, s.InputConnections()...)
	}
	return out
}

// Reorder replaces the step order. steps must be a permutation of the
// graph's current steps.
func (g *Graph) Reorder(steps []*Step) error {
	if len(steps) != len(g.steps) {
		return fmt.Errorf("reorder: got %d steps, graph has %d", len(steps), len(g.steps))
	}
	seen := make(map[*Step]bool, len(steps))
	for _, s := range steps {
		if !g.owns(s) {
			return &UnknownStepError{ID: stepID(s)}
		}
		if seen[s] {
			return &DuplicateStepError{ID: s.ID}
		}
		seen[s] = true
	}
	g.steps = append(g.steps[:0:0], steps...)
	return nil
}

// RefreshErrors sets HasErrors from the steps' tool errors.
func (g *Graph) RefreshErrors() {
	g.HasErrors = false
	for _, s := range g.steps {
		if s.HasErrors() || s.Type == StepTypeInvalid {
			g.HasErrors = true
			return
		}
	}
}

func (g *Graph) owns(s *Step) bool {
	if s == nil {
		return false
	}
	return g.byID[s.ID] == s
}

func stepID(s *Step) string {
	if s == nil {
		return "<nil>"
	}
	return s.ID
}
