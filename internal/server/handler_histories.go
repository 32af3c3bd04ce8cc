package server

import (
	"errors"
	"net/http"

	"github.com/me/flowgraph/internal/definition"
	"github.com/me/flowgraph/internal/provenance"
	"github.com/me/flowgraph/pkg/model"
)

type jobsResponse struct {
	Jobs     []provenance.Row `json:"jobs"`
	Warnings []string         `json:"warnings"`
}

type extractRequest struct {
	History   *model.History       `json:"history"`
	Selection provenance.Selection `json:"selection"`
}

func (s *Server) handleHistoryJobs(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var h model.History
	if apiErr := decodeJSON(w, r, &h); apiErr != nil {
		respondError(w, reqID, http.StatusBadRequest, apiErr)
		return
	}

	res, err := provenance.Reconstruct(&h)
	if err != nil {
		s.observeProvenance(err)
		respondErr(w, reqID, err)
		return
	}
	warnings := res.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	respondOK(w, reqID, jobsResponse{Jobs: provenance.Summarize(res, s.tools), Warnings: warnings})
}

func (s *Server) handleExtractWorkflow(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req extractRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		respondError(w, reqID, http.StatusBadRequest, apiErr)
		return
	}
	if req.History == nil {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("missing required field",
				model.FieldError{Field: "history", Message: "history is required"}))
		return
	}

	g, warnings, err := provenance.Extract(req.History, req.Selection, s.tools, s.config.Layout)
	if err != nil {
		s.observeProvenance(err)
		respondErr(w, reqID, err)
		return
	}
	s.metrics.ObserveExtract(g)

	wf, err := s.storedFrom(g)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	if err := s.store.CreateWorkflow(r.Context(), wf); err != nil {
		respondErr(w, reqID, err)
		return
	}

	res := definition.Saved(g)
	s.logger.Info("workflow extracted", "id", wf.ID, "history_id", req.History.ID, "steps", wf.StepCount)
	wf.Definition = nil
	respondCreated(w, reqID, workflowResponse{Workflow: wf, Result: &res, Warnings: warnings})
}

func (s *Server) observeProvenance(err error) {
	var ambiguous *provenance.ProvenanceError
	if errors.As(err, &ambiguous) {
		s.metrics.ObserveProvenanceFailure()
	}
}
