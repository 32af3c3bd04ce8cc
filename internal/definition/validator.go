package definition

import (
	"fmt"

	"github.com/me/flowgraph/pkg/model"
)

// MissingToolsMessage is the validation message for documents that use
// tools that are not installed.
const MissingToolsMessage = "This workflow includes missing or invalid tools. It cannot be saved until the following steps are removed or the missing tools are enabled."

// CheckTools returns a validation error listing every non-input step whose
// tool is unknown. It returns nil when tools is nil.
func CheckTools(doc *Document, tools model.ToolLookup) *model.APIError {
	if tools == nil {
		return nil
	}
	var errs []model.FieldError
	for _, sd := range sortedSteps(doc) {
		if model.ParseStepType(sd.Type).IsInput() {
			continue
		}
		if _, ok := tools.Tool(sd.ToolID); !ok {
			errs = append(errs, model.FieldError{
				Field:   fmt.Sprintf("steps.%d.tool_id", sd.ID),
				Message: fmt.Sprintf("Step %d requires tool '%s'.", sd.ID, sd.ToolID),
			})
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return model.NewValidationError(MissingToolsMessage, errs...)
}
