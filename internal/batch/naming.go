package batch

import (
	"fmt"
	"strings"
)

// RunNameSuffix builds the suffix appended to the name of a history created
// for one expanded run, from the display names of its multi-input values:
// "", " on a", " on a and b", " on a, b and c".
func RunNameSuffix(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return " on " + names[0]
	}
	last := len(names) - 1
	return fmt.Sprintf(" on %s and %s", strings.Join(names[:last], ", "), names[last])
}
