// Package provenance reconstructs which job produced each finished item of
// a history and turns a selection of those jobs into a workflow graph.
package provenance

import (
	"fmt"
	"strconv"

	"github.com/me/flowgraph/pkg/model"
)

// JobKind tags the variant held by a Job.
type JobKind int

const (
	// JobKindReal is a recorded tool job.
	JobKindReal JobKind = iota
	// JobKindFakeInput stands in for a dataset with no producing job, such
	// as an upload. It can only become a workflow input.
	JobKindFakeInput
	// JobKindCollectionCreation stands in for a collection built by hand
	// rather than by mapping a tool over another collection.
	JobKindCollectionCreation
)

func (k JobKind) String() string {
	switch k {
	case JobKindReal:
		return "job"
	case JobKindFakeInput:
		return "input"
	case JobKindCollectionCreation:
		return "collection_creation"
	}
	return "unknown"
}

const (
	collectionCreationName     = "Dataset Collection Creation"
	collectionCreationDisabled = "Dataset collection created in a way not compatible with workflows"
)

// Job is a producer of history items: a real tool job or a synthetic
// stand-in for items nothing recorded.
type Job struct {
	Kind JobKind

	// Record is the recorded job for JobKindReal. When the job is missing
	// from the snapshot it is a stub carrying only the id.
	Record *model.Job

	// Outputs are the history items credited to the job in the order they
	// were found.
	Outputs []Output

	// Implicit are the collections this job is designated to represent,
	// in history order. Empty unless the job mapped over a collection.
	Implicit []*model.Collection

	sourceID int
}

// ID returns the job id, or "fake_<id>" built from the dataset or
// collection id for synthetic jobs.
func (j *Job) ID() string {
	switch j.Kind {
	case JobKindReal:
		return strconv.Itoa(j.Record.ID)
	case JobKindFakeInput, JobKindCollectionCreation:
		return fmt.Sprintf("fake_%d", j.sourceID)
	}
	return ""
}

// String renders a job for log lines.
func (j *Job) String() string {
	if j.Kind == JobKindReal && j.Record.ToolID != "" {
		return fmt.Sprintf("%s(%s)", j.ID(), j.Record.ToolID)
	}
	return j.ID()
}

// IsFake returns true for synthetic jobs.
func (j *Job) IsFake() bool {
	return j.Kind != JobKindReal
}

// DisabledWhy explains why the job cannot be selected as a workflow step,
// or returns "" when it can.
func (j *Job) DisabledWhy() string {
	if j.Kind == JobKindCollectionCreation {
		return collectionCreationDisabled
	}
	return ""
}

func (j *Job) outputIndex(datasetID int) int {
	for i, o := range j.Outputs {
		if o.Dataset != nil && o.Dataset.ID == datasetID {
			return i
		}
	}
	return -1
}

// jobLess orders real jobs before synthetic ones, each by id.
func jobLess(a, b *Job) bool {
	if a.IsFake() != b.IsFake() {
		return !a.IsFake()
	}
	if !a.IsFake() {
		return a.Record.ID < b.Record.ID
	}
	if a.sourceID != b.sourceID {
		return a.sourceID < b.sourceID
	}
	return a.Kind < b.Kind
}

// Output is one history item credited to a job, under the job's output
// slot name. Exactly one of Dataset or Collection is set; Name is empty for
// synthetic jobs.
type Output struct {
	Name       string
	Dataset    *model.Dataset
	Collection *model.Collection
}

// HID returns the display index of the item.
func (o Output) HID() int {
	if o.Collection != nil {
		return o.Collection.HID
	}
	return o.Dataset.HID
}

// Kind returns whether the item is a dataset or a collection.
func (o Output) Kind() model.ContentKind {
	if o.Collection != nil {
		return model.ContentKindCollection
	}
	return model.ContentKindDataset
}

// DisplayName returns the item's name.
func (o Output) DisplayName() string {
	if o.Collection != nil {
		return o.Collection.Name
	}
	return o.Dataset.Name
}
