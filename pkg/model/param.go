package model

// ParamKind tags the variant held by a Param.
type ParamKind string

const (
	ParamScalar      ParamKind = "scalar"
	ParamData        ParamKind = "data"
	ParamRepeat      ParamKind = "repeat"
	ParamConditional ParamKind = "conditional"
)

// Param is one node of a job's recorded tool parameter tree.
//
//	scalar:      Value
//	data:        HIDs of the bound datasets or collections (empty when an optional input was unset)
//	repeat:      Instances, each with its own child parameters
//	conditional: CurrentCase and the Children of the selected case
type Param struct {
	Name        string           `json:"name" yaml:"name"`
	Kind        ParamKind        `json:"kind" yaml:"kind"`
	Value       any              `json:"value,omitempty" yaml:"value,omitempty"`
	HIDs        []int            `json:"hids,omitempty" yaml:"hids,omitempty"`
	Instances   []RepeatInstance `json:"instances,omitempty" yaml:"instances,omitempty"`
	CurrentCase int              `json:"current_case,omitempty" yaml:"current_case,omitempty"`
	Children    []Param          `json:"children,omitempty" yaml:"children,omitempty"`
}

// RepeatInstance is one block of a repeat parameter.
type RepeatInstance struct {
	Index  int     `json:"index" yaml:"index"`
	Params []Param `json:"params" yaml:"params"`
}

// Values flattens a parameter list into the nested map form stored as a
// step's tool state. Repeats become lists of maps carrying "__index__" and
// conditionals carry "__current_case__".
func Values(params []Param) map[string]any {
	out := make(map[string]any, len(params))
	for _, p := range params {
		switch p.Kind {
		case ParamData:
			if len(p.HIDs) == 0 {
				out[p.Name] = nil
			} else {
				hids := make([]any, len(p.HIDs))
				for i, h := range p.HIDs {
					hids[i] = h
				}
				out[p.Name] = hids
			}
		case ParamRepeat:
			blocks := make([]any, len(p.Instances))
			for i, inst := range p.Instances {
				m := Values(inst.Params)
				m["__index__"] = inst.Index
				blocks[i] = m
			}
			out[p.Name] = blocks
		case ParamConditional:
			m := Values(p.Children)
			m["__current_case__"] = p.CurrentCase
			out[p.Name] = m
		default:
			out[p.Name] = p.Value
		}
	}
	return out
}
