package model

import "sort"

// History is a read-only snapshot of an execution history: its active
// datasets and collections plus the jobs that produced them.
type History struct {
	ID          string        `json:"id" yaml:"id"`
	Name        string        `json:"name" yaml:"name"`
	Datasets    []*Dataset    `json:"datasets" yaml:"datasets"`
	Collections []*Collection `json:"collections,omitempty" yaml:"collections,omitempty"`
	Jobs        []*Job        `json:"jobs,omitempty" yaml:"jobs,omitempty"`
}

// Dataset is one dataset instance in a history.
type Dataset struct {
	ID    int          `json:"id" yaml:"id"`
	HID   int          `json:"hid" yaml:"hid"`
	Name  string       `json:"name" yaml:"name"`
	State ContentState `json:"state" yaml:"state"`

	// CopiedFrom is the instance this one was copied from, possibly in
	// another history. Production credit belongs to the end of the chain.
	CopiedFrom *Dataset `json:"copied_from,omitempty" yaml:"copied_from,omitempty"`

	CreatingJobs []JobAssociation `json:"creating_jobs,omitempty" yaml:"creating_jobs,omitempty"`
}

// JobAssociation links a dataset to a job output slot.
type JobAssociation struct {
	JobID int    `json:"job_id" yaml:"job_id"`
	Name  string `json:"name" yaml:"name"`
}

// Collection is a dataset collection instance in a history.
type Collection struct {
	ID   int    `json:"id" yaml:"id"`
	HID  int    `json:"hid" yaml:"hid"`
	Name string `json:"name" yaml:"name"`

	// ImplicitOutputName is set when the collection was produced as a side
	// effect of mapping a tool over another collection.
	ImplicitOutputName string `json:"implicit_output_name,omitempty" yaml:"implicit_output_name,omitempty"`

	// Elements are the ids of the member datasets.
	Elements []int `json:"elements" yaml:"elements"`

	// ImplicitInputs maps a tool input name to the hid of the collection
	// that was mapped over to produce this one.
	ImplicitInputs map[string]int `json:"implicit_inputs,omitempty" yaml:"implicit_inputs,omitempty"`
}

// IsImplicit returns true if the collection is an implicit job output.
func (c *Collection) IsImplicit() bool {
	return c.ImplicitOutputName != ""
}

// ImplicitInput returns the hid of the collection mapped over for inputName.
func (c *Collection) ImplicitInput(inputName string) (int, bool) {
	hid, ok := c.ImplicitInputs[inputName]
	return hid, ok
}

// Job is an executed tool job.
type Job struct {
	ID          int     `json:"id" yaml:"id"`
	ToolID      string  `json:"tool_id" yaml:"tool_id"`
	ToolVersion string  `json:"tool_version,omitempty" yaml:"tool_version,omitempty"`
	Params      []Param `json:"params,omitempty" yaml:"params,omitempty"`
}

// ContentKind distinguishes datasets from collections in history contents.
type ContentKind string

const (
	ContentKindDataset    ContentKind = "dataset"
	ContentKindCollection ContentKind = "dataset_collection"
)

// Content is one entry of a history: exactly one of Dataset or Collection is set.
type Content struct {
	Dataset    *Dataset
	Collection *Collection
}

// Kind returns which variant the content holds.
func (c Content) Kind() ContentKind {
	if c.Collection != nil {
		return ContentKindCollection
	}
	return ContentKindDataset
}

// HID returns the display index of the content.
func (c Content) HID() int {
	if c.Collection != nil {
		return c.Collection.HID
	}
	return c.Dataset.HID
}

// ActiveContents returns datasets and collections interleaved by hid.
func (h *History) ActiveContents() []Content {
	out := make([]Content, 0, len(h.Datasets)+len(h.Collections))
	for _, d := range h.Datasets {
		out = append(out, Content{Dataset: d})
	}
	for _, c := range h.Collections {
		out = append(out, Content{Collection: c})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].HID() < out[j].HID() })
	return out
}

// Job looks up a job by id.
func (h *History) Job(id int) (*Job, bool) {
	for _, j := range h.Jobs {
		if j.ID == id {
			return j, true
		}
	}
	return nil, false
}

// DatasetByID looks up an active dataset by id.
func (h *History) DatasetByID(id int) (*Dataset, bool) {
	for _, d := range h.Datasets {
		if d.ID == id {
			return d, true
		}
	}
	return nil, false
}

// DatasetByHID looks up an active dataset by display index.
func (h *History) DatasetByHID(hid int) (*Dataset, bool) {
	for _, d := range h.Datasets {
		if d.HID == hid {
			return d, true
		}
	}
	return nil, false
}

// CollectionByHID looks up an active collection by display index.
func (h *History) CollectionByHID(hid int) (*Collection, bool) {
	for _, c := range h.Collections {
		if c.HID == hid {
			return c, true
		}
	}
	return nil, false
}
