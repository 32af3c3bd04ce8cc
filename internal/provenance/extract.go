package provenance

import (
	"fmt"

	"github.com/me/flowgraph/internal/ordering"
	"github.com/me/flowgraph/pkg/model"
)

// Selection picks what a workflow built from a history is made of: the
// datasets and collections that become inputs and the jobs that become
// tool steps.
type Selection struct {
	Name           string `json:"workflow_name" yaml:"workflow_name"`
	JobIDs         []int  `json:"job_ids" yaml:"job_ids"`
	DatasetHIDs    []int  `json:"dataset_ids" yaml:"dataset_ids"`
	CollectionHIDs []int  `json:"dataset_collection_ids" yaml:"dataset_collection_ids"`
}

// JobNotConnectedError is returned when a selected job produced nothing
// in the history.
type JobNotConnectedError struct {
	JobID int
}

func (e *JobNotConnectedError) Error() string {
	return "Attempt to create workflow with job not connected to current history"
}

const outputName = "output"

type outputRef struct {
	step *model.Step
	name string
}

// Extract builds an ordered, laid out workflow graph from a selection of
// h. Each selected job's data inputs are connected to whichever selected
// step produced the bound item; inputs bound to members of a mapped-over
// collection are connected to the collection instead. Steps are named
// "input_<hid>", "collection_<hid>" and "job_<id>". An acyclic result is
// laid out with layout. The reconstruction warnings are returned alongside
// the graph.
func Extract(h *model.History, sel Selection, tools model.ToolLookup, layout ordering.LayoutOptions) (*model.Graph, []string, error) {
	res, err := Reconstruct(h)
	if err != nil {
		return nil, nil, err
	}

	g := model.NewGraph()
	g.Name = sel.Name
	byHID := make(map[int]outputRef)

	for _, hid := range sel.DatasetHIDs {
		s := model.NewStep(fmt.Sprintf("input_%d", hid), model.StepTypeDataInput)
		s.ToolState = map[string]any{"name": "Input Dataset"}
		if err := g.AddStep(s); err != nil {
			return nil, nil, err
		}
		byHID[hid] = outputRef{step: s, name: outputName}
	}
	for _, hid := range sel.CollectionHIDs {
		s := model.NewStep(fmt.Sprintf("collection_%d", hid), model.StepTypeDataCollectionInput)
		s.ToolState = map[string]any{"name": "Input Dataset Collection"}
		if err := g.AddStep(s); err != nil {
			return nil, nil, err
		}
		byHID[hid] = outputRef{step: s, name: outputName}
	}

	for _, id := range sel.JobIDs {
		j, ok := res.Job(id)
		if !ok {
			return nil, nil, &JobNotConnectedError{JobID: id}
		}
		s := model.NewStep(fmt.Sprintf("job_%d", id), model.StepTypeTool)
		s.ToolID = j.Record.ToolID
		if tools != nil {
			if _, ok := tools.Tool(j.Record.ToolID); !ok {
				s.ToolErrors = []string{fmt.Sprintf("Unrecognized Tool Id: %s", j.Record.ToolID)}
			}
		}
		state, assocs := CleanupParams(j.Record.Params)
		s.ToolState = state
		if err := g.AddStep(s); err != nil {
			return nil, nil, err
		}

		// Only earlier jobs can feed a later one, so a single pass suffices.
		for _, a := range assocs {
			hid := a.HID
			if len(j.Implicit) > 0 {
				if in, ok := j.Implicit[0].ImplicitInput(a.InputName); ok {
					hid = in
				}
			}
			src, ok := byHID[hid]
			if !ok {
				continue
			}
			if _, err := g.Connect(src.step, src.name, s, a.InputName); err != nil {
				return nil, nil, err
			}
		}

		for _, o := range j.Outputs {
			hid := o.HID()
			if mapped, ok := res.HIDMap[hid]; ok {
				hid = mapped
			}
			byHID[hid] = outputRef{step: s, name: o.Name}
		}
	}

	g.RefreshErrors()
	if ordering.Attach(g) {
		if _, err := ordering.Layout(g, layout); err != nil {
			return nil, nil, err
		}
	}
	return g, res.Warnings, nil
}
