package model

// Tool describes an installed tool as far as the graph engine needs it.
type Tool struct {
	ID      string      `json:"id" yaml:"id"`
	Name    string      `json:"name" yaml:"name"`
	Version string      `json:"version,omitempty" yaml:"version,omitempty"`
	Inputs  []ToolInput `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs []string    `json:"outputs,omitempty" yaml:"outputs,omitempty"`
}

// ToolInput is a data input of a tool. Name is the fully prefixed name
// (e.g. "queries_0|input2") used by step connections.
type ToolInput struct {
	Name       string `json:"name" yaml:"name"`
	Collection bool   `json:"collection,omitempty" yaml:"collection,omitempty"`
	Multiple   bool   `json:"multiple,omitempty" yaml:"multiple,omitempty"`
}

// Input looks up a data input by prefixed name.
func (t *Tool) Input(name string) (ToolInput, bool) {
	for _, in := range t.Inputs {
		if in.Name == name {
			return in, true
		}
	}
	return ToolInput{}, false
}

// ToolLookup resolves tool ids. Implementations must be safe for
// concurrent reads.
type ToolLookup interface {
	Tool(id string) (*Tool, bool)
}

// ToolSet is a map-backed ToolLookup.
type ToolSet map[string]*Tool

// Tool implements ToolLookup.
func (s ToolSet) Tool(id string) (*Tool, bool) {
	t, ok := s[id]
	return t, ok
}

// NewToolSet indexes tools by id.
func NewToolSet(tools ...*Tool) ToolSet {
	s := make(ToolSet, len(tools))
	for _, t := range tools {
		s[t.ID] = t
	}
	return s
}
