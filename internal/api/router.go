package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/machines", s.handleListMachines)
		r.Get("/events", s.handleListEvents)

		// Camera endpoints
		r.Route("/cameras", func(r chi.Router) {
			r.Get("/detect", s.handleDetectCameras)

			r.Route("/{key}", func(r chi.Router) {
				r.Get("/stream", s.handleCameraStream)
				r.Get("/snapshot", s.handleCameraSnapshot)
			})
		})

		// Gantry endpoints
		r.Route("/gantry", func(r chi.Router) {
			r.Post("/connect", s.handleGantryConnect)
			r.Get("/state", s.handleGantryState)
			r.Get("/pose", s.handleGantryPose)
			r.Post("/goto", s.handleGantryGoto)
			r.Post("/step", s.handleGantryStep)
			r.Post("/home", s.handleGantryHome)
			r.Post("/set_position", s.handleGantrySetPosition)
		})

		// Actuator endpoints
		r.Route("/actuator", func(r chi.Router) {
			r.Post("/connect", s.handleActuatorConnect)
			r.Post("/screw_cw", s.handleScrewCW)
			r.Post("/screw_ccw", s.handleScrewCCW)
			r.Post("/screw_stop", s.handleScrewStop)
			r.Post("/unlock", s.handleUnlock)
			r.Post("/cleanup", s.handleActuatorCleanup)
		})

		// Job endpoints
		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.handleListJobs)
			r.Post("/", s.handleAddJob)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetJob)
				r.Put("/", s.handleUpdateJob)
				r.Delete("/", s.handleDeleteJob)
				r.Post("/run", s.handleRunJob)
			})
		})

		// Tool metadata endpoints
		r.Route("/tools", func(r chi.Router) {
			r.Get("/", s.handleListTools)
			r.Put("/{name}", s.handleSetTool)
			r.Delete("/{name}", s.handleRemoveTool)
		})

		// WebSocket event stream
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

// handleListMachines returns the machine registry with connection state.
func (s *Server) handleListMachines(w http.ResponseWriter, _ *http.Request) {
	machines := make([]map[string]any, 0, 2)
	for _, name := range s.factory.MachineNames() {
		ctrl, ok := s.factory.Machine(name)
		if !ok {
			continue
		}
		actions := make([]string, 0, len(ctrl.Commands()))
		for action := range ctrl.Commands() {
			actions = append(actions, action)
		}
		machines = append(machines, map[string]any{
			"name":      name,
			"connected": ctrl.Connected(),
			"actions":   actions,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"machines": machines})
}
