// Package toolbox loads the set of installed tools from a YAML or JSON file.
package toolbox

import (
	"fmt"
	"os"

	"github.com/me/flowgraph/pkg/model"
	"gopkg.in/yaml.v3"
)

type file struct {
	Tools []*model.Tool `yaml:"tools"`
}

// Parse reads a tool list document.
func Parse(data []byte) (model.ToolSet, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("YAML parse error: %w", err)
	}
	set := make(model.ToolSet, len(f.Tools))
	for i, t := range f.Tools {
		if t == nil || t.ID == "" {
			return nil, fmt.Errorf("tools[%d]: missing id", i)
		}
		if _, dup := set[t.ID]; dup {
			return nil, fmt.Errorf("tools[%d]: duplicate tool id %q", i, t.ID)
		}
		set[t.ID] = t
	}
	return set, nil
}

// Load reads a tool list from path. An empty path yields a nil lookup,
// which callers treat as "accept any tool".
func Load(path string) (model.ToolLookup, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tools: %w", err)
	}
	set, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}
