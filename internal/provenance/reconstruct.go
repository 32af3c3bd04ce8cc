package provenance

import (
	"sort"

	"github.com/me/flowgraph/pkg/model"
)

// UnfinishedWarning is reported once when any dataset was skipped because
// it has not finished.
const UnfinishedWarning = "Some datasets still queued or running were ignored"

// ProvenanceError is returned when no single job can be credited with an
// implicitly produced collection.
type ProvenanceError struct {
	CollectionHID int
}

func (e *ProvenanceError) Error() string {
	return "Cannot determine collection provenance."
}

// Result is the reconstructed history provenance.
type Result struct {
	// Jobs in the order their first item appears in the history.
	Jobs []*Job

	// Warnings are sorted and deduplicated.
	Warnings []string

	// HIDMap redirects the hid of a member dataset whose job output slot
	// was replaced by its implicit collection to the collection's hid.
	HIDMap map[int]int
}

// Job looks up a real job by id.
func (r *Result) Job(id int) (*Job, bool) {
	for _, j := range r.Jobs {
		if j.Kind == JobKindReal && j.Record.ID == id {
			return j, true
		}
	}
	return nil, false
}

// ImplicitJobs maps every job that represents implicit collections to
// those collections.
func (r *Result) ImplicitJobs() map[*Job][]*model.Collection {
	out := make(map[*Job][]*model.Collection)
	for _, j := range r.Jobs {
		if len(j.Implicit) > 0 {
			out[j] = j.Implicit
		}
	}
	return out
}

type reconstructor struct {
	h           *model.History
	jobs        []*Job
	realJobs    map[int]*Job
	datasetJobs map[int]*Job
	warnings    map[string]struct{}
	hidMap      map[int]int
}

// Reconstruct credits every finished item of h to the job that produced
// it. Datasets with no recorded producer get a synthetic input job and
// hand-built collections a synthetic creation job. A collection produced
// by mapping a tool over another collection is credited to the
// lowest-numbered job that produced one of its members; the member's
// output slot on that job is replaced by the collection. The history is
// not modified.
func Reconstruct(h *model.History) (*Result, error) {
	r := &reconstructor{
		h:           h,
		realJobs:    make(map[int]*Job),
		datasetJobs: make(map[int]*Job),
		warnings:    make(map[string]struct{}),
		hidMap:      make(map[int]int),
	}

	contents := h.ActiveContents()
	for _, c := range contents {
		switch c.Kind() {
		case model.ContentKindCollection:
			if c.Collection.IsImplicit() {
				continue
			}
			r.jobs = append(r.jobs, &Job{
				Kind:     JobKindCollectionCreation,
				Outputs:  []Output{{Collection: c.Collection}},
				sourceID: c.Collection.ID,
			})
		case model.ContentKindDataset:
			r.appendDataset(c.Dataset)
		}
	}

	claims, claimants, err := r.implicitClaims(contents)
	if err != nil {
		return nil, err
	}
	keep, dropped, err := designate(claims, claimants)
	if err != nil {
		return nil, err
	}
	if len(dropped) > 0 {
		kept := r.jobs[:0]
		for _, j := range r.jobs {
			if !dropped[j] {
				kept = append(kept, j)
			}
		}
		r.jobs = kept
	}
	for _, j := range keep {
		if err := r.replaceWithCollections(j, claims[j]); err != nil {
			return nil, err
		}
	}

	warnings := make([]string, 0, len(r.warnings))
	for w := range r.warnings {
		warnings = append(warnings, w)
	}
	sort.Strings(warnings)
	return &Result{Jobs: r.jobs, Warnings: warnings, HIDMap: r.hidMap}, nil
}

func (r *reconstructor) appendDataset(d *model.Dataset) {
	if !d.State.IsFinished() {
		r.warnings[UnfinishedWarning] = struct{}{}
		return
	}

	origin := originOf(d)
	if len(origin.CreatingJobs) == 0 {
		j := &Job{
			Kind:     JobKindFakeInput,
			Outputs:  []Output{{Dataset: d}},
			sourceID: d.ID,
		}
		r.jobs = append(r.jobs, j)
		r.datasetJobs[d.ID] = j
		return
	}

	var last *Job
	for _, assoc := range origin.CreatingJobs {
		j := r.realJob(assoc.JobID)
		j.Outputs = append(j.Outputs, Output{Name: assoc.Name, Dataset: d})
		last = j
	}
	r.datasetJobs[d.ID] = last
}

func (r *reconstructor) realJob(id int) *Job {
	if j, ok := r.realJobs[id]; ok {
		return j
	}
	rec, ok := r.h.Job(id)
	if !ok {
		rec = &model.Job{ID: id}
	}
	j := &Job{Kind: JobKindReal, Record: rec}
	r.realJobs[id] = j
	r.jobs = append(r.jobs, j)
	return j
}

// originOf follows the copy chain of d back to the instance a job wrote.
func originOf(d *model.Dataset) *model.Dataset {
	seen := map[*model.Dataset]bool{d: true}
	for d.CopiedFrom != nil && !seen[d.CopiedFrom] {
		d = d.CopiedFrom
		seen[d] = true
	}
	return d
}

// implicitClaims records, for every implicit collection, the jobs that
// produced its members. Members without a producing job, such as those
// still running, are skipped. A collection none of whose members resolve
// is a provenance error.
func (r *reconstructor) implicitClaims(contents []model.Content) (map[*Job][]*model.Collection, map[*model.Collection][]*Job, error) {
	claims := make(map[*Job][]*model.Collection)
	claimants := make(map[*model.Collection][]*Job)
	for _, c := range contents {
		col := c.Collection
		if col == nil || !col.IsImplicit() {
			continue
		}
		resolved := false
		for _, id := range col.Elements {
			j, ok := r.datasetJobs[id]
			if !ok {
				continue
			}
			resolved = true
			if containsCollection(claims[j], col) {
				continue
			}
			claims[j] = append(claims[j], col)
			claimants[col] = append(claimants[col], j)
		}
		if !resolved {
			return nil, nil, &ProvenanceError{CollectionHID: col.HID}
		}
	}
	return claims, claimants, nil
}

// designate walks the claiming jobs in id order. The first job not yet
// dropped is kept and every other claimant of its first collection is
// dropped. A kept job sharing any later collection with a claimant that
// was not dropped is ambiguous.
func designate(claims map[*Job][]*model.Collection, claimants map[*model.Collection][]*Job) ([]*Job, map[*Job]bool, error) {
	candidates := make([]*Job, 0, len(claims))
	for j := range claims {
		candidates = append(candidates, j)
	}
	sort.Slice(candidates, func(a, b int) bool { return jobLess(candidates[a], candidates[b]) })

	var keep []*Job
	dropped := make(map[*Job]bool)
	for _, j := range candidates {
		if dropped[j] {
			continue
		}
		keep = append(keep, j)
		for i, col := range claims[j] {
			for _, other := range claimants[col] {
				if other == j {
					continue
				}
				if i == 0 {
					dropped[other] = true
				} else if !dropped[other] {
					return nil, nil, &ProvenanceError{CollectionHID: col.HID}
				}
			}
		}
	}
	return keep, dropped, nil
}

func (r *reconstructor) replaceWithCollections(j *Job, cols []*model.Collection) error {
	for _, col := range cols {
		idx := -1
		for _, id := range col.Elements {
			if r.datasetJobs[id] == j {
				idx = j.outputIndex(id)
				break
			}
		}
		if idx < 0 {
			return &ProvenanceError{CollectionHID: col.HID}
		}
		replaced := j.Outputs[idx]
		j.Outputs[idx] = Output{Name: replaced.Name, Collection: col}
		r.hidMap[replaced.Dataset.HID] = col.HID
	}
	j.Implicit = cols
	return nil
}

func containsCollection(cols []*model.Collection, c *model.Collection) bool {
	for _, have := range cols {
		if have == c {
			return true
		}
	}
	return false
}
