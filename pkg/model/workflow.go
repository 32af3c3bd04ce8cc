package model

import (
	"encoding/json"
	"time"
)

// StoredWorkflow is a persisted workflow definition. Definition holds the
// encoded step/connection document; each save creates a new revision.
type StoredWorkflow struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Revision   int             `json:"revision"`
	HasCycles  bool            `json:"has_cycles"`
	HasErrors  bool            `json:"has_errors"`
	StepCount  int             `json:"step_count"`
	Definition json.RawMessage `json:"definition,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Runnable reports why a stored workflow cannot be executed, or "" when it can.
func (w *StoredWorkflow) Runnable() string {
	switch {
	case w.StepCount == 0:
		return "Workflow cannot be run because it does not have any steps"
	case w.HasCycles:
		return "Workflow cannot be run because it contains cycles"
	case w.HasErrors:
		return "Workflow cannot be run because of validation errors in some steps"
	}
	return ""
}

// Invocation is one concrete run of a workflow produced by batch expansion.
type Invocation struct {
	ID           string                    `json:"id"`
	WorkflowID   string                    `json:"workflow_id"`
	WorkflowName string                    `json:"workflow_name"`
	HistoryID    string                    `json:"history_id,omitempty"`
	HistoryName  string                    `json:"history_name"`
	NewHistory   bool                      `json:"new_history"`
	State        InvocationState           `json:"state"`
	Assignment   map[string]any            `json:"assignment"`
	StepArgs     map[string]map[string]any `json:"step_args"`
	Replacements map[string]any            `json:"replacements,omitempty"`
	Message      string                    `json:"message,omitempty"`
	CreatedAt    time.Time                 `json:"created_at"`
	UpdatedAt    time.Time                 `json:"updated_at"`
}
