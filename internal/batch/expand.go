// Package batch expands a workflow run request whose input slots received
// several selected values into the individual runs it stands for.
package batch

import (
	"fmt"
	"iter"
	"sort"
	"strings"
)

const (
	// InputSuffix marks a parameter key that binds a step input slot.
	InputSuffix = "|input"
	// ModeSuffix marks the sibling key selecting how a multi input combines.
	ModeSuffix = "|multi_mode"
)

// Mode selects how a multi-valued input combines with the others.
type Mode string

const (
	// ModeMatched zips all matched inputs positionally.
	ModeMatched Mode = "matched"
	// ModeMultiplied crosses the input with every other combination.
	ModeMultiplied Mode = "multiplied"
)

// Assignment is one fully resolved set of run parameters.
type Assignment map[string]any

// MismatchedLengthError is returned when matched inputs select different
// numbers of values.
type MismatchedLengthError struct {
	Key      string
	Len      int
	FirstKey string
	FirstLen int
}

func (e *MismatchedLengthError) Error() string {
	return fmt.Sprintf("Failed to match up multi-select inputs, must select equal number of data files in each multiselect (%s has %d, %s has %d)",
		e.FirstKey, e.FirstLen, e.Key, e.Len)
}

// Split is a submission classified into its single-valued and multi-valued inputs.
type Split struct {
	Single     map[string]any
	Matched    map[string][]any
	Multiplied map[string][]any
}

// SplitInputs classifies the input-binding keys of params. A key ending in
// InputSuffix whose value is a list is a multi input. It is matched unless
// its "<prefix>|multi_mode" key holds any mode other than "matched".
func SplitInputs(params map[string]any) Split {
	sp := Split{
		Single:     make(map[string]any),
		Matched:    make(map[string][]any),
		Multiplied: make(map[string][]any),
	}
	for key, val := range params {
		if !strings.HasSuffix(key, InputSuffix) {
			continue
		}
		values, ok := toAnySlice(val)
		if !ok {
			sp.Single[key] = val
			continue
		}
		base := strings.TrimSuffix(key, InputSuffix)
		if modeOf(params[base+ModeSuffix]) == ModeMultiplied {
			sp.Multiplied[key] = values
		} else {
			sp.Matched[key] = values
		}
	}
	return sp
}

func modeOf(v any) Mode {
	if s, ok := v.(string); ok && Mode(s) != ModeMatched {
		return ModeMultiplied
	}
	return ModeMatched
}

// Expansion is the validated set of runs implied by one submission. It
// holds no per-run state, so All can be iterated any number of times.
type Expansion struct {
	params         map[string]any
	matchedKeys    []string
	matched        map[string][]any
	matchedLen     int
	multipliedKeys []string
	multiplied     map[string][]any
}

// Expand validates params and prepares the expansion. Matched inputs must
// all select the same number of values; no partial expansion is returned
// when they do not.
func Expand(params map[string]any) (*Expansion, error) {
	sp := SplitInputs(params)
	e := &Expansion{
		params:         params,
		matchedKeys:    sortedKeys(sp.Matched),
		matched:        sp.Matched,
		matchedLen:     1,
		multipliedKeys: sortedKeys(sp.Multiplied),
		multiplied:     sp.Multiplied,
	}
	if len(e.matchedKeys) > 0 {
		first := e.matchedKeys[0]
		e.matchedLen = len(sp.Matched[first])
		for _, key := range e.matchedKeys[1:] {
			if n := len(sp.Matched[key]); n != e.matchedLen {
				return nil, &MismatchedLengthError{Key: key, Len: n, FirstKey: first, FirstLen: e.matchedLen}
			}
		}
	}
	return e, nil
}

// Len returns the number of runs.
func (e *Expansion) Len() int {
	n := e.matchedLen
	for _, key := range e.multipliedKeys {
		n *= len(e.multiplied[key])
	}
	return n
}

// MultiInputKeys returns the matched keys followed by the multiplied keys,
// each group sorted.
func (e *Expansion) MultiInputKeys() []string {
	out := make([]string, 0, len(e.matchedKeys)+len(e.multipliedKeys))
	out = append(out, e.matchedKeys...)
	return append(out, e.multipliedKeys...)
}

// At builds the i-th run. Matched inputs form the outermost axis and the
// last multiplied key varies fastest. It reports false when i is outside
// [0, Len()), which includes every i when a multi-input selected nothing.
func (e *Expansion) At(i int) (Assignment, bool) {
	if i < 0 || i >= e.Len() {
		return nil, false
	}
	a := make(Assignment, len(e.params))
	for k, v := range e.params {
		a[k] = v
	}
	for j := len(e.multipliedKeys) - 1; j >= 0; j-- {
		key := e.multipliedKeys[j]
		values := e.multiplied[key]
		a[key] = values[i%len(values)]
		i /= len(values)
	}
	for _, key := range e.matchedKeys {
		a[key] = e.matched[key][i]
	}
	return a, true
}

// All yields every run with the multi-input keys attached. Runs are built
// on demand.
func (e *Expansion) All() iter.Seq2[Assignment, []string] {
	keys := e.MultiInputKeys()
	return func(yield func(Assignment, []string) bool) {
		n := e.Len()
		for i := 0; i < n; i++ {
			a, _ := e.At(i)
			if !yield(a, keys) {
				return
			}
		}
	}
}

// Collect materializes every run.
func (e *Expansion) Collect() []Assignment {
	out := make([]Assignment, 0, e.Len())
	for a := range e.All() {
		out = append(out, a)
	}
	return out
}

func sortedKeys(m map[string][]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// toAnySlice converts a value to []any if it's a slice type.
func toAnySlice(v any) ([]any, bool) {
	switch arr := v.(type) {
	case []any:
		return arr, true
	case []string:
		result := make([]any, len(arr))
		for i, s := range arr {
			result[i] = s
		}
		return result, true
	case []int:
		result := make([]any, len(arr))
		for i, n := range arr {
			result[i] = n
		}
		return result, true
	}
	return nil, false
}
