package server

import (
	"net/http"
	"runtime"
	"time"
)

const version = "0.1.0"

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
	Scheduler string `json:"scheduler"`
	Tools     string `json:"tools"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	scheduler := "disabled"
	if s.scheduler != nil {
		scheduler = "enabled"
	}
	tools := "unchecked"
	if s.tools != nil {
		tools = "registry"
	}
	respondOK(w, reqID, healthResponse{
		Status:    "healthy",
		Version:   version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Scheduler: scheduler,
		Tools:     tools,
	})
}
