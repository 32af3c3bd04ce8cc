package definition

import (
	"fmt"
	"strconv"

	"github.com/me/flowgraph/pkg/model"
)

// Encode renders a graph for the editor. Steps are keyed by order index, or
// by position in the graph when it has not been ordered. A tool step whose
// tool is unknown to tools is sent as an invalid step without state or
// connections. Connections to slots the tool no longer declares are
// dropped; slots declared as multiple are written as lists.
func (c *Codec) Encode(g *model.Graph, tools model.ToolLookup) *Document {
	steps := g.Steps()
	ids := make(map[*model.Step]int, len(steps))
	for i, s := range steps {
		if s.Ordered() {
			ids[s] = s.OrderIndex
		} else {
			ids[s] = i
		}
	}

	doc := &Document{Name: g.Name, Steps: make(map[string]*StepDoc, len(steps))}
	for _, s := range steps {
		id := ids[s]
		sd := &StepDoc{
			ID:               id,
			Type:             string(s.Type),
			ToolID:           s.ToolID,
			ToolState:        s.ToolState,
			ToolErrors:       s.ToolErrors,
			Annotation:       s.Annotation,
			WorkflowOutputs:  append([]string{}, s.WorkflowOutputs...),
			InputConnections: make(map[string]ConnectionList),
		}
		if s.Position != nil {
			pos := *s.Position
			sd.Position = &pos
		}
		doc.Steps[strconv.Itoa(id)] = sd

		var tool *model.Tool
		switch s.Type {
		case model.StepTypeDataInput:
			sd.Name = "Input dataset"
		case model.StepTypeDataCollectionInput:
			sd.Name = "Input dataset collection"
		case model.StepTypeTool:
			if tools == nil {
				sd.Name = s.ToolID
				break
			}
			t, ok := tools.Tool(s.ToolID)
			if !ok {
				invalidate(sd)
				c.logger.Debug("unrecognized tool", "step", s.ID, "tool_id", s.ToolID)
				continue
			}
			tool = t
			sd.Name = t.Name
		default:
			invalidate(sd)
			continue
		}

		for _, conn := range s.InputConnections() {
			name := conn.InputName()
			multiple := false
			if tool != nil && len(tool.Inputs) > 0 {
				in, ok := tool.Input(name)
				if !ok {
					c.logger.Debug("dropping connection to undeclared input", "step", s.ID, "input", name)
					continue
				}
				multiple = in.Multiple
			}
			cl := sd.InputConnections[name]
			cl.Refs = append(cl.Refs, ConnectionRef{ID: ids[conn.Source()], OutputName: conn.OutputName()})
			cl.Multiple = multiple
			sd.InputConnections[name] = cl
		}
	}
	return doc
}

func invalidate(sd *StepDoc) {
	sd.Type = string(model.StepTypeInvalid)
	sd.Name = fmt.Sprintf("Unrecognized Tool: %s", sd.ToolID)
	sd.ToolState = nil
	sd.ToolErrors = []string{fmt.Sprintf("Unrecognized Tool Id: %s", sd.ToolID)}
	sd.WorkflowOutputs = []string{}
	sd.InputConnections = map[string]ConnectionList{}
}
