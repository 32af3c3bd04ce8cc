package provenance

import (
	"fmt"
	"strings"

	"github.com/me/flowgraph/pkg/model"
)

// Association records that the item with HID was bound to the prefixed
// tool input InputName, e.g. "queries_0|input2" inside a repeat or
// "cond|input" inside a conditional.
type Association struct {
	HID       int
	InputName string
}

// CleanupParams flattens a job's parameter tree into a tool state with all
// data values cleared and returns where each cleared value was bound. The
// root "dbkey" and any root key extending a data input's prefixed name
// with "_" are dropped as metadata carried along with the datasets.
func CleanupParams(params []model.Param) (map[string]any, []Association) {
	state := model.Values(params)
	delete(state, "dbkey")

	c := &cleaner{}
	c.visit("", params, state)

	for key := range state {
		for _, prefix := range c.metadata {
			if strings.HasPrefix(key, prefix) {
				delete(state, key)
				break
			}
		}
	}
	return state, c.assocs
}

type cleaner struct {
	assocs   []Association
	metadata []string
}

func (c *cleaner) visit(prefix string, params []model.Param, values map[string]any) {
	if values == nil {
		return
	}
	for _, p := range params {
		switch p.Kind {
		case model.ParamData:
			values[p.Name] = nil
			for _, hid := range p.HIDs {
				c.assocs = append(c.assocs, Association{HID: hid, InputName: prefix + p.Name})
			}
			c.metadata = append(c.metadata, prefix+p.Name+"_")
		case model.ParamRepeat:
			blocks, _ := values[p.Name].([]any)
			for i, inst := range p.Instances {
				if i >= len(blocks) {
					break
				}
				block, _ := blocks[i].(map[string]any)
				c.visit(fmt.Sprintf("%s%s_%d|", prefix, p.Name, inst.Index), inst.Params, block)
			}
		case model.ParamConditional:
			group, _ := values[p.Name].(map[string]any)
			c.visit(prefix+p.Name+"|", p.Children, group)
		}
	}
}
