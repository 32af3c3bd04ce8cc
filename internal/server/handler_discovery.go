package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "flowgraph API",
		Version:     "v1",
		Description: "Workflow graph engine: save, order, batch-run and rebuild workflows from history provenance",
		Endpoints: []endpointInfo{
			{"/api/v1/workflows", []string{"GET", "POST"}, "List or save workflow definitions (JSON or YAML)"},
			{"/api/v1/workflows/{id}", []string{"GET", "PUT", "DELETE"}, "Load, revise or delete a workflow"},
			{"/api/v1/workflows/{id}/run", []string{"POST"}, "Expand multi-valued inputs and queue one invocation per run"},
			{"/api/v1/workflows/{id}/invocations", []string{"GET"}, "List the invocations of a workflow"},
			{"/api/v1/workflows/{id}/outputs", []string{"POST"}, "Tag workflow outputs from <step>|otag|<output> keys"},
			{"/api/v1/workflows/{id}/layout", []string{"POST"}, "Lay the steps out by level"},
			{"/api/v1/histories/jobs", []string{"POST"}, "Summarize the jobs that produced a history"},
			{"/api/v1/histories/extract", []string{"POST"}, "Build and save a workflow from selected history jobs"},
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
			{"/metrics", []string{"GET"}, "Prometheus metrics"},
		},
	})
}
