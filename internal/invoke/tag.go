package invoke

import (
	"sort"
	"strings"

	"github.com/me/flowgraph/internal/ordering"
	"github.com/me/flowgraph/pkg/model"
)

// OutputTagInfix separates the step id from the output name in an output
// tag key: "<stepID>|otag|<output>".
const OutputTagInfix = "|otag|"

// TagOutputs replaces each tool step's workflow outputs with the outputs
// tagged in params. Outputs that stay tagged keep their position and newly
// tagged ones follow in name order. Empty params change nothing.
func TagOutputs(g *model.Graph, params map[string]any) error {
	if apiErr := ordering.CheckRunnable(g, "tagged for outputs"); apiErr != nil {
		return apiErr
	}
	if len(params) == 0 {
		return nil
	}

	for _, s := range g.Steps() {
		if s.Type != model.StepTypeTool {
			continue
		}
		prefix := s.ID + OutputTagInfix
		tagged := make(map[string]bool)
		for key := range params {
			if name, ok := strings.CutPrefix(key, prefix); ok {
				tagged[name] = true
			}
		}

		var outputs []string
		for _, name := range s.WorkflowOutputs {
			if tagged[name] {
				outputs = append(outputs, name)
				delete(tagged, name)
			}
		}
		added := make([]string, 0, len(tagged))
		for name := range tagged {
			added = append(added, name)
		}
		sort.Strings(added)
		s.WorkflowOutputs = append(outputs, added...)
	}
	return nil
}
