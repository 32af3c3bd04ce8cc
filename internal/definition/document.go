// Package definition reads and writes the editor's workflow document and
// converts it to and from the in-memory graph.
package definition

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/me/flowgraph/pkg/model"
	"gopkg.in/yaml.v3"
)

// Document is a workflow as exchanged with the editor. Steps are keyed by
// their external id rendered as a string.
type Document struct {
	Name  string              `json:"name" yaml:"name"`
	Steps map[string]*StepDoc `json:"steps" yaml:"steps"`
}

// StepDoc is one step of a Document.
type StepDoc struct {
	ID               int                       `json:"id" yaml:"id"`
	Type             string                    `json:"type" yaml:"type"`
	ToolID           string                    `json:"tool_id,omitempty" yaml:"tool_id,omitempty"`
	Name             string                    `json:"name,omitempty" yaml:"name,omitempty"`
	ToolState        map[string]any            `json:"tool_state" yaml:"tool_state"`
	ToolErrors       []string                  `json:"tool_errors,omitempty" yaml:"tool_errors,omitempty"`
	Annotation       string                    `json:"annotation" yaml:"annotation"`
	Position         *model.Position           `json:"position,omitempty" yaml:"position,omitempty"`
	WorkflowOutputs  []string                  `json:"workflow_outputs" yaml:"workflow_outputs"`
	InputConnections map[string]ConnectionList `json:"input_connections" yaml:"input_connections"`
}

// ConnectionRef names the producing step and output slot of a connection.
type ConnectionRef struct {
	ID         int    `json:"id" yaml:"id"`
	OutputName string `json:"output_name" yaml:"output_name"`
}

// ConnectionList is the set of connections bound to one input slot. On the
// wire it is a single object, or a list when the slot accepts several
// datasets.
type ConnectionList struct {
	Refs     []ConnectionRef
	Multiple bool
}

// Single returns a list holding one connection.
func Single(id int, outputName string) ConnectionList {
	return ConnectionList{Refs: []ConnectionRef{{ID: id, OutputName: outputName}}}
}

// MarshalJSON writes a list for multiple slots and a single object otherwise.
func (c ConnectionList) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.wire())
}

// UnmarshalJSON accepts either shape; null and {} mean no connection.
func (c *ConnectionList) UnmarshalJSON(data []byte) error {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		var list []ConnectionRef
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return fmt.Errorf("input connection list: %w", err)
		}
		*c = ConnectionList{Refs: list, Multiple: true}
		return nil
	}
	var ref *ConnectionRef
	if err := json.Unmarshal(data, &ref); err != nil {
		return fmt.Errorf("input connection: %w", err)
	}
	*c = fromSingle(ref)
	return nil
}

// MarshalYAML mirrors MarshalJSON.
func (c ConnectionList) MarshalYAML() (any, error) {
	return c.wire(), nil
}

// UnmarshalYAML mirrors UnmarshalJSON.
func (c *ConnectionList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var list []ConnectionRef
		if err := node.Decode(&list); err != nil {
			return fmt.Errorf("input connection list: %w", err)
		}
		*c = ConnectionList{Refs: list, Multiple: true}
		return nil
	case yaml.MappingNode:
		var ref ConnectionRef
		if len(node.Content) > 0 {
			if err := node.Decode(&ref); err != nil {
				return fmt.Errorf("input connection: %w", err)
			}
			*c = fromSingle(&ref)
			return nil
		}
	case yaml.ScalarNode:
		if node.Tag != "!!null" {
			return fmt.Errorf("line %d: input connection must be a mapping or a list", node.Line)
		}
	}
	*c = ConnectionList{}
	return nil
}

func fromSingle(ref *ConnectionRef) ConnectionList {
	if ref == nil || (*ref == ConnectionRef{}) {
		return ConnectionList{}
	}
	return ConnectionList{Refs: []ConnectionRef{*ref}}
}

func (c ConnectionList) wire() any {
	if c.Multiple || len(c.Refs) > 1 {
		refs := c.Refs
		if refs == nil {
			refs = []ConnectionRef{}
		}
		return refs
	}
	if len(c.Refs) == 0 {
		return nil
	}
	return c.Refs[0]
}

// SaveResult is what a save reports back to the editor.
type SaveResult struct {
	Name    string   `json:"name"`
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}
