package invoke

import (
	"fmt"
	"strconv"

	"github.com/me/flowgraph/pkg/model"
)

// NameLookup resolves a submitted input value to a display name.
type NameLookup interface {
	Name(value any) string
}

// NameFunc adapts a function to NameLookup.
type NameFunc func(value any) string

// Name calls f.
func (f NameFunc) Name(value any) string {
	return f(value)
}

// FallbackNames renders values as they were submitted.
var FallbackNames NameLookup = NameFunc(func(value any) string {
	return fmt.Sprint(value)
})

// HistoryNames resolves dataset ids against h, falling back to the value
// itself for ids it does not hold.
func HistoryNames(h *model.History) NameLookup {
	return NameFunc(func(value any) string {
		if id, ok := datasetID(value); ok {
			if d, ok := h.DatasetByID(id); ok {
				return d.Name
			}
		}
		return fmt.Sprint(value)
	})
}

// datasetID accepts the shapes an id takes after JSON or YAML decoding.
func datasetID(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	case string:
		if id, err := strconv.Atoi(v); err == nil {
			return id, true
		}
	}
	return 0, false
}
