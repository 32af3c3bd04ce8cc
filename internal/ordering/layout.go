package ordering

import (
	"github.com/me/flowgraph/pkg/model"
)

// LayoutOptions controls automatic canvas placement.
type LayoutOptions struct {
	Base        float64 // Offset of the first column and row
	ColumnWidth float64 // Horizontal distance between levels
	RowHeight   float64 // Vertical distance between steps of one level
}

// DefaultLayout returns the spacing used for workflows built from a history.
func DefaultLayout() LayoutOptions {
	return LayoutOptions{Base: 10, ColumnWidth: 220, RowHeight: 120}
}

// Layout places every step at base + level*ColumnWidth from the left and
// base + row*RowHeight from the top, where row is the step's index within
// its level. It returns the levels used and leaves positions untouched
// when the graph has a cycle.
func Layout(g *model.Graph, opts LayoutOptions) ([][]*model.Step, error) {
	levels, err := Levels(g)
	if err != nil {
		return nil, err
	}
	for i, level := range levels {
		for j, s := range level {
			s.Position = &model.Position{
				Left: opts.Base + opts.ColumnWidth*float64(i),
				Top:  opts.Base + opts.RowHeight*float64(j),
			}
		}
	}
	return levels, nil
}

// Problems returns the user-facing reasons a saved graph will not be
// runnable.
func Problems(g *model.Graph) []string {
	var out []string
	if g.HasErrors {
		out = append(out, "Some steps in this workflow have validation errors")
	}
	if g.HasCycles {
		out = append(out, "This workflow contains cycles")
	}
	return out
}

// CheckRunnable returns a validation error when the graph must not be
// executed. action completes the sentence "Workflow cannot be ...".
func CheckRunnable(g *model.Graph, action string) *model.APIError {
	switch {
	case g.Len() == 0:
		return model.NewValidationError("Workflow cannot be " + action + " because it does not have any steps")
	case g.HasCycles:
		return model.NewValidationError("Workflow cannot be " + action + " because it contains cycles")
	case g.HasErrors:
		return model.NewValidationError("Workflow cannot be " + action + " because of validation errors in some steps")
	}
	return nil
}
