package model

// ContentState is the execution state of a history dataset.
type ContentState string

const (
	ContentStateNew        ContentState = "new"
	ContentStateUpload     ContentState = "upload"
	ContentStateQueued     ContentState = "queued"
	ContentStateRunning    ContentState = "running"
	ContentStateOK         ContentState = "ok"
	ContentStateEmpty      ContentState = "empty"
	ContentStateError      ContentState = "error"
	ContentStatePaused     ContentState = "paused"
	ContentStateDiscarded  ContentState = "discarded"
	ContentStateFailedMeta ContentState = "failed_metadata"
)

// String returns the string representation of the content state.
func (s ContentState) String() string {
	return string(s)
}

// IsFinished returns false while the producing job has not completed.
func (s ContentState) IsFinished() bool {
	switch s {
	case ContentStateNew, ContentStateQueued, ContentStateRunning:
		return false
	}
	return true
}

// InvocationState represents the lifecycle state of a workflow invocation.
type InvocationState string

const (
	InvocationStateQueued    InvocationState = "QUEUED"
	InvocationStateScheduled InvocationState = "SCHEDULED"
	InvocationStateFailed    InvocationState = "FAILED"
	InvocationStateCancelled InvocationState = "CANCELLED"
)

// String returns the string representation of the invocation state.
func (s InvocationState) String() string {
	return string(s)
}

// IsTerminal returns true if the invocation is in a final state.
func (s InvocationState) IsTerminal() bool {
	switch s {
	case InvocationStateScheduled, InvocationStateFailed, InvocationStateCancelled:
		return true
	}
	return false
}
