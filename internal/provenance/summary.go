package provenance

import (
	"fmt"

	"github.com/me/flowgraph/pkg/model"
)

// Row is one entry of the "build workflow from history" chooser.
type Row struct {
	JobID       string      `json:"job_id"`
	Kind        string      `json:"kind"`
	ToolID      string      `json:"tool_id,omitempty"`
	Name        string      `json:"name"`
	Disabled    bool        `json:"disabled"`
	DisabledWhy string      `json:"disabled_why,omitempty"`
	Outputs     []OutputRow `json:"outputs"`
}

// OutputRow is one item credited to a Row.
type OutputRow struct {
	HID  int               `json:"hid"`
	Name string            `json:"name"`
	Slot string            `json:"slot,omitempty"`
	Kind model.ContentKind `json:"kind"`
}

// Summarize renders reconstructed jobs for display. Real jobs whose tool
// is unknown to tools are disabled.
func Summarize(res *Result, tools model.ToolLookup) []Row {
	rows := make([]Row, 0, len(res.Jobs))
	for _, j := range res.Jobs {
		row := Row{JobID: j.ID(), Kind: j.Kind.String()}
		switch j.Kind {
		case JobKindReal:
			row.ToolID = j.Record.ToolID
			row.Name = j.Record.ToolID
			if tools != nil {
				if t, ok := tools.Tool(j.Record.ToolID); ok {
					if t.Name != "" {
						row.Name = t.Name
					}
				} else {
					row.Name = fmt.Sprintf("Unknown tool with id '%s'", j.Record.ToolID)
					row.Disabled = true
					row.DisabledWhy = "This tool is not installed"
				}
			}
		case JobKindFakeInput:
			row.Name = "Input Dataset"
		case JobKindCollectionCreation:
			row.Name = collectionCreationName
			row.Disabled = true
			row.DisabledWhy = j.DisabledWhy()
		}
		for _, o := range j.Outputs {
			row.Outputs = append(row.Outputs, OutputRow{
				HID:  o.HID(),
				Name: o.DisplayName(),
				Slot: o.Name,
				Kind: o.Kind(),
			})
		}
		rows = append(rows, row)
	}
	return rows
}
