package definition

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/me/flowgraph/internal/ordering"
	"github.com/me/flowgraph/pkg/model"
	"gopkg.in/yaml.v3"
)

// Codec converts workflow documents to graphs and back.
type Codec struct {
	logger *slog.Logger
}

// New creates a Codec with the given logger.
func New(logger *slog.Logger) *Codec {
	return &Codec{logger: logger.With("component", "definition")}
}

// Decode parses a JSON or YAML workflow document. A position missing left
// or top is dropped, so the step counts as unplaced.
func (c *Codec) Decode(data []byte) (*Document, error) {
	var doc Document
	var placed positionFields
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("JSON parse error: %w", err)
		}
		if err := json.Unmarshal(trimmed, &placed); err != nil {
			return nil, fmt.Errorf("JSON parse error: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("YAML parse error: %w", err)
		}
		if err := yaml.Unmarshal(data, &placed); err != nil {
			return nil, fmt.Errorf("YAML parse error: %w", err)
		}
	}
	if doc.Steps == nil {
		doc.Steps = make(map[string]*StepDoc)
	}
	for key, sd := range doc.Steps {
		if sd == nil {
			return nil, fmt.Errorf("step %q: empty step", key)
		}
		if sd.Position != nil && !placed.complete(key) {
			c.logger.Debug("ignoring partial position", "step", key)
			sd.Position = nil
		}
	}
	return &doc, nil
}

// positionFields records which position keys each step actually carried.
type positionFields struct {
	Steps map[string]*struct {
		Position map[string]any `json:"position" yaml:"position"`
	} `json:"steps" yaml:"steps"`
}

func (p positionFields) complete(key string) bool {
	sd := p.Steps[key]
	if sd == nil {
		return false
	}
	return sd.Position["left"] != nil && sd.Position["top"] != nil
}

// Build turns a saved document into an ordered graph. Every non-input step
// must name a tool known to tools; when tools is nil the check is skipped.
// Step ids are the external ids of the document. Connections that name an
// unknown step fail with *model.UnknownStepError. A graph with cycles is
// returned with HasCycles set and its steps left unordered.
func (c *Codec) Build(doc *Document, tools model.ToolLookup) (*model.Graph, error) {
	if apiErr := CheckTools(doc, tools); apiErr != nil {
		return nil, apiErr
	}

	g := model.NewGraph()
	g.Name = doc.Name
	docs := sortedSteps(doc)

	for _, sd := range docs {
		s := model.NewStep(strconv.Itoa(sd.ID), model.ParseStepType(sd.Type))
		s.ToolID = sd.ToolID
		s.ToolState = sd.ToolState
		s.ToolErrors = append([]string(nil), sd.ToolErrors...)
		s.Annotation = sd.Annotation
		s.WorkflowOutputs = append([]string(nil), sd.WorkflowOutputs...)
		if sd.Position != nil {
			pos := *sd.Position
			s.Position = &pos
		}
		if err := g.AddStep(s); err != nil {
			return nil, err
		}
	}

	for _, sd := range docs {
		to := strconv.Itoa(sd.ID)
		for _, name := range sortedKeys(sd.InputConnections) {
			for _, ref := range sd.InputConnections[name].Refs {
				if _, err := g.ConnectIDs(strconv.Itoa(ref.ID), ref.OutputName, to, name); err != nil {
					return nil, fmt.Errorf("step %d input %q: %w", sd.ID, name, err)
				}
			}
		}
	}

	g.RefreshErrors()
	if !ordering.Attach(g) {
		c.logger.Debug("workflow contains cycles", "name", g.Name, "steps", g.Len())
	}
	return g, nil
}

// Saved summarizes a freshly built graph the way a save reports it.
func Saved(g *model.Graph) SaveResult {
	res := SaveResult{Name: g.Name, Message: "Workflow saved"}
	if problems := ordering.Problems(g); len(problems) > 0 {
		res.Message = "Workflow saved, but will not be runnable due to the following errors"
		res.Errors = problems
	}
	return res
}

// Marshal renders doc as "json" (indented) or "yaml".
func Marshal(doc *Document, format string) ([]byte, error) {
	switch format {
	case "json", "":
		return json.MarshalIndent(doc, "", "  ")
	case "yaml":
		return yaml.Marshal(doc)
	}
	return nil, fmt.Errorf("unsupported format %q", format)
}

// sortedSteps returns the steps by external id, then by key.
func sortedSteps(doc *Document) []*StepDoc {
	keys := make([]string, 0, len(doc.Steps))
	for k := range doc.Steps {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := doc.Steps[keys[i]], doc.Steps[keys[j]]
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		return keys[i] < keys[j]
	})
	out := make([]*StepDoc, len(keys))
	for i, k := range keys {
		out[i] = doc.Steps[k]
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
