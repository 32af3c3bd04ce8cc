package model

import (
	"reflect"
	"testing"
)

func TestHistory_ActiveContents(t *testing.T) {
	h := &History{
		Datasets:    []*Dataset{{ID: 10, HID: 1}, {ID: 11, HID: 3}},
		Collections: []*Collection{{ID: 20, HID: 2}},
	}
	var hids []int
	var kinds []ContentKind
	for _, c := range h.ActiveContents() {
		hids = append(hids, c.HID())
		kinds = append(kinds, c.Kind())
	}
	if !reflect.DeepEqual(hids, []int{1, 2, 3}) {
		t.Errorf("hids = %v, want [1 2 3]", hids)
	}
	if kinds[1] != ContentKindCollection || kinds[0] != ContentKindDataset {
		t.Errorf("kinds = %v", kinds)
	}
}

func TestValues(t *testing.T) {
	params := []Param{
		{Name: "input1", Kind: ParamData, HIDs: []int{1}},
		{Name: "lines", Kind: ParamScalar, Value: 10},
		{Name: "queries", Kind: ParamRepeat, Instances: []RepeatInstance{
			{Index: 0, Params: []Param{{Name: "input2", Kind: ParamData}}},
		}},
		{Name: "cond", Kind: ParamConditional, CurrentCase: 1, Children: []Param{
			{Name: "mode", Kind: ParamScalar, Value: "fast"},
		}},
	}
	got := Values(params)
	want := map[string]any{
		"input1":  []any{1},
		"lines":   10,
		"queries": []any{map[string]any{"input2": nil, "__index__": 0}},
		"cond":    map[string]any{"mode": "fast", "__current_case__": 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Values = %#v, want %#v", got, want)
	}
}
