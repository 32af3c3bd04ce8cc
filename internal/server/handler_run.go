package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/me/flowgraph/internal/batch"
	"github.com/me/flowgraph/internal/invoke"
	"github.com/me/flowgraph/pkg/model"
)

type runRequest struct {
	Params      map[string]any `json:"params"`
	HistoryID   string         `json:"history_id"`
	HistoryName string         `json:"history_name"`
	// History, when sent, names the datasets selected for multi inputs in
	// new history names.
	History *model.History `json:"history,omitempty"`
}

type runResponse struct {
	Invocations []*model.Invocation `json:"invocations"`
}

func (s *Server) handleRunWorkflow(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req runRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		respondError(w, reqID, http.StatusBadRequest, apiErr)
		return
	}

	wf, g, err := s.loadWorkflow(r.Context(), id, true)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}

	var names invoke.NameLookup
	if req.History != nil {
		names = invoke.HistoryNames(req.History)
	}
	runner := invoke.NewRunner(invoke.NewQueueExecutor(s.store, s.logger), names, s.logger)
	invs, err := runner.Run(r.Context(), g, invoke.Request{
		WorkflowID:  wf.ID,
		Params:      req.Params,
		HistoryID:   req.HistoryID,
		HistoryName: req.HistoryName,
	})
	if err != nil {
		var mismatch *batch.MismatchedLengthError
		if errors.As(err, &mismatch) {
			s.metrics.ObserveMismatch()
		}
		if len(invs) > 0 {
			// Runs queued before the failure stay queued; report them.
			s.logger.Warn("run stopped part way", "workflow_id", wf.ID, "queued", len(invs), "error", err)
			s.metrics.ObserveExpansion(len(invs))
			respondPartial(w, reqID, runResponse{Invocations: invs}, err)
			return
		}
		respondErr(w, reqID, err)
		return
	}

	s.metrics.ObserveExpansion(len(invs))
	respondCreated(w, reqID, runResponse{Invocations: invs})
}

func (s *Server) handleListInvocations(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	opts, apiErr := listOptions(r)
	if apiErr != nil {
		respondError(w, reqID, http.StatusBadRequest, apiErr)
		return
	}
	wf, err := s.store.GetWorkflow(r.Context(), id)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	if wf == nil {
		respondErr(w, reqID, model.NewNotFoundError("workflow", id))
		return
	}

	invs, total, err := s.store.ListInvocations(r.Context(), id, opts)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	if invs == nil {
		invs = []*model.Invocation{}
	}
	respondList(w, reqID, invs, model.NewPagination(total, opts))
}
