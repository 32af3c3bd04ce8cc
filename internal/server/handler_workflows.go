package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/me/flowgraph/internal/definition"
	"github.com/me/flowgraph/internal/invoke"
	"github.com/me/flowgraph/internal/ordering"
	"github.com/me/flowgraph/pkg/model"
)

type workflowResponse struct {
	Workflow   *model.StoredWorkflow  `json:"workflow"`
	Result     *definition.SaveResult `json:"result,omitempty"`
	Definition *definition.Document   `json:"definition,omitempty"`
	Warnings   []string               `json:"warnings,omitempty"`
}

// storedFrom renders g losslessly for storage. Unknown tools are kept as
// they are so a later tool registry can still resolve them.
func (s *Server) storedFrom(g *model.Graph) (*model.StoredWorkflow, error) {
	def, err := json.Marshal(s.codec.Encode(g, nil))
	if err != nil {
		return nil, fmt.Errorf("encode definition: %w", err)
	}
	name := g.Name
	if name == "" {
		name = "Unnamed workflow"
	}
	now := time.Now().UTC()
	return &model.StoredWorkflow{
		Name:       name,
		HasCycles:  g.HasCycles,
		HasErrors:  g.HasErrors,
		StepCount:  g.Len(),
		Definition: def,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// buildFromBody decodes and builds the submitted workflow document.
func (s *Server) buildFromBody(w http.ResponseWriter, r *http.Request) (*model.Graph, error) {
	data, apiErr := readBody(w, r)
	if apiErr != nil {
		return nil, apiErr
	}
	doc, err := s.codec.Decode(data)
	if err != nil {
		return nil, model.NewValidationError(err.Error())
	}
	start := time.Now()
	g, err := s.codec.Build(doc, s.tools)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveSave(g, time.Since(start).Seconds())
	return g, nil
}

// loadWorkflow fetches a stored workflow and rebuilds its graph. With
// checkTools set, steps whose tool is no longer registered come back as
// invalid steps and the graph reports errors.
func (s *Server) loadWorkflow(ctx context.Context, id string, checkTools bool) (*model.StoredWorkflow, *model.Graph, error) {
	wf, err := s.store.GetWorkflow(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if wf == nil {
		return nil, nil, model.NewNotFoundError("workflow", id)
	}
	doc, err := s.codec.Decode(wf.Definition)
	if err != nil {
		return nil, nil, fmt.Errorf("stored workflow %s: %w", id, err)
	}
	g, err := s.codec.Build(doc, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("stored workflow %s: %w", id, err)
	}
	if checkTools && s.tools != nil {
		if g, err = s.codec.Build(s.codec.Encode(g, s.tools), nil); err != nil {
			return nil, nil, fmt.Errorf("stored workflow %s: %w", id, err)
		}
	}
	return wf, g, nil
}

// saveRevision stores g as the next revision of wf.
func (s *Server) saveRevision(ctx context.Context, wf *model.StoredWorkflow, g *model.Graph) (*model.StoredWorkflow, error) {
	next, err := s.storedFrom(g)
	if err != nil {
		return nil, err
	}
	next.ID = wf.ID
	next.CreatedAt = wf.CreatedAt
	if err := s.store.UpdateWorkflow(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	g, err := s.buildFromBody(w, r)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
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
	s.logger.Info("workflow saved", "id", wf.ID, "steps", wf.StepCount, "cycles", wf.HasCycles, "errors", wf.HasErrors)
	wf.Definition = nil
	respondCreated(w, reqID, workflowResponse{Workflow: wf, Result: &res})
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	opts, apiErr := listOptions(r)
	if apiErr != nil {
		respondError(w, reqID, http.StatusBadRequest, apiErr)
		return
	}
	workflows, total, err := s.store.ListWorkflows(r.Context(), opts)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	if workflows == nil {
		workflows = []*model.StoredWorkflow{}
	}
	respondList(w, reqID, workflows, model.NewPagination(total, opts))
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	wf, g, err := s.loadWorkflow(r.Context(), chi.URLParam(r, "id"), false)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	wf.Definition = nil
	respondOK(w, reqID, workflowResponse{Workflow: wf, Definition: s.codec.Encode(g, s.tools)})
}

func (s *Server) handleUpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	current, err := s.store.GetWorkflow(r.Context(), id)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	if current == nil {
		respondErr(w, reqID, model.NewNotFoundError("workflow", id))
		return
	}

	g, err := s.buildFromBody(w, r)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	wf, err := s.saveRevision(r.Context(), current, g)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}

	res := definition.Saved(g)
	s.logger.Info("workflow revised", "id", wf.ID, "revision", wf.Revision)
	wf.Definition = nil
	respondOK(w, reqID, workflowResponse{Workflow: wf, Result: &res})
}

func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	wf, err := s.store.GetWorkflow(r.Context(), id)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	if wf == nil {
		respondErr(w, reqID, model.NewNotFoundError("workflow", id))
		return
	}
	if err := s.store.DeleteWorkflow(r.Context(), id); err != nil {
		respondErr(w, reqID, err)
		return
	}
	s.logger.Info("workflow deleted", "id", id)
	respondOK(w, reqID, map[string]any{"deleted": true})
}

func (s *Server) handleTagOutputs(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req struct {
		Params map[string]any `json:"params"`
	}
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		respondError(w, reqID, http.StatusBadRequest, apiErr)
		return
	}

	wf, g, err := s.loadWorkflow(r.Context(), chi.URLParam(r, "id"), true)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	if err := invoke.TagOutputs(g, req.Params); err != nil {
		respondErr(w, reqID, err)
		return
	}
	next, err := s.saveRevision(r.Context(), wf, g)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}

	next.Definition = nil
	respondOK(w, reqID, workflowResponse{Workflow: next, Definition: s.codec.Encode(g, s.tools)})
}

func (s *Server) handleLayoutWorkflow(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	wf, g, err := s.loadWorkflow(r.Context(), chi.URLParam(r, "id"), false)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	if _, err := ordering.Layout(g, s.config.Layout); err != nil {
		respondErr(w, reqID, err)
		return
	}
	next, err := s.saveRevision(r.Context(), wf, g)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}

	next.Definition = nil
	respondOK(w, reqID, workflowResponse{Workflow: next, Definition: s.codec.Encode(g, s.tools)})
}
