package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/fabworks/cell-core/internal/audit"
	"github.com/fabworks/cell-core/internal/machine"
	"github.com/fabworks/cell-core/internal/machine/gantry"
)

// decodeParams decodes a JSON request body into command params.
// An empty body yields empty params; commands fill in their defaults.
func decodeParams(r *http.Request) (machine.Params, error) {
	p := machine.Params{}
	if r.Body == nil {
		return p, nil
	}
	err := json.NewDecoder(r.Body).Decode(&p)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return p, nil
}

// handleGantryConnect verifies the motion controller transport.
func (s *Server) handleGantryConnect(w http.ResponseWriter, r *http.Request) {
	g := s.factory.Gantry()
	err := g.Connect(r.Context())

	s.factory.Telemetry().Operation(g.Name(), "connect", err == nil)
	s.factory.RecordEvent(r.Context(), audit.Event{
		Category: audit.CategoryMotion,
		Subject:  g.Name(),
		Action:   "connect",
		Detail:   errDetail(err),
	})

	if err != nil {
		writeUnavailable(w, "gantry unreachable: "+err.Error())
		return
	}

	s.broadcastGantryState()
	writeJSON(w, http.StatusOK, map[string]any{"connected": true})
}

// handleGantryState returns the cached motion state without touching the wire.
func (s *Server) handleGantryState(w http.ResponseWriter, _ *http.Request) {
	g := s.factory.Gantry()
	writeJSON(w, http.StatusOK, map[string]any{
		"connected": g.Connected(),
		"moving":    g.Busy(),
		"state":     g.Snapshot(),
	})
}

// handleGantryPose queries the controller's live position report.
func (s *Server) handleGantryPose(w http.ResponseWriter, r *http.Request) {
	g := s.factory.Gantry()
	pose, err := g.Pose(r.Context())
	if err != nil {
		if errors.Is(err, gantry.ErrPoseUnavailable) {
			writeUnavailable(w, "pose report could not be parsed")
			return
		}
		writeUnavailable(w, "gantry unreachable: "+err.Error())
		return
	}

	s.factory.Telemetry().PoseSample(g.Name(), pose.X, pose.Y, pose.Z, pose.A)
	writeJSON(w, http.StatusOK, pose)
}

// handleGantryGoto starts a non-blocking absolute move.
func (s *Server) handleGantryGoto(w http.ResponseWriter, r *http.Request) {
	s.runMachineAction(w, r, "gantry", "goto", audit.CategoryMotion)
}

// handleGantryStep issues a synchronous relative move.
func (s *Server) handleGantryStep(w http.ResponseWriter, r *http.Request) {
	s.runMachineAction(w, r, "gantry", "step", audit.CategoryMotion)
}

// handleGantryHome runs the homing cycle.
func (s *Server) handleGantryHome(w http.ResponseWriter, r *http.Request) {
	s.runMachineAction(w, r, "gantry", "home", audit.CategoryMotion)
}

// handleGantrySetPosition redefines the logical origin.
func (s *Server) handleGantrySetPosition(w http.ResponseWriter, r *http.Request) {
	s.runMachineAction(w, r, "gantry", "set_position", audit.CategoryMotion)
}

// runMachineAction dispatches one command through a machine's command
// table, shared by the gantry and actuator endpoints so direct HTTP
// commands and stored jobs go through the same handlers.
func (s *Server) runMachineAction(w http.ResponseWriter, r *http.Request, machineName, action string, category audit.Category) {
	ctrl, ok := s.factory.Machine(machineName)
	if !ok {
		writeNotFound(w, "unknown machine "+machineName)
		return
	}

	params, err := decodeParams(r)
	if err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	handler, ok := ctrl.Commands()[action]
	if !ok {
		writeNotFound(w, "unknown action "+action)
		return
	}

	result, err := handler(r.Context(), params)

	s.factory.Telemetry().Operation(machineName, action, err == nil)
	s.factory.RecordEvent(r.Context(), audit.Event{
		Category: category,
		Subject:  machineName,
		Action:   action,
		Detail:   resultDetail(result, err),
	})

	if err != nil {
		writeMachineError(w, err)
		return
	}

	if machineName == "gantry" {
		s.broadcastGantryState()
	}
	writeJSON(w, http.StatusOK, result)
}

// broadcastGantryState pushes the current motion state to WebSocket
// subscribers and as retained MQTT state.
func (s *Server) broadcastGantryState() {
	g := s.factory.Gantry()
	state := map[string]any{
		"machine":   g.Name(),
		"connected": g.Connected(),
		"moving":    g.Busy(),
		"toolend":   g.CachedPose(),
	}
	if s.hub != nil {
		s.hub.Broadcast(ChannelMachineState, state)
	}
	s.factory.Telemetry().MachineState(g.Name(), state)
}

// writeMachineError maps machine command errors to HTTP responses.
func writeMachineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, machine.ErrBusy):
		writeConflict(w, "machine is busy")
	case errors.Is(err, machine.ErrNotConnected):
		writeConflict(w, "machine is not connected")
	case errors.Is(err, machine.ErrUnknownCommand):
		writeNotFound(w, err.Error())
	default:
		writeUnavailable(w, err.Error())
	}
}

// errDetail renders an error for an audit record ("" for success).
func errDetail(err error) string {
	if err != nil {
		return "error: " + err.Error()
	}
	return ""
}

// resultDetail renders a command outcome for an audit record.
func resultDetail(result machine.Result, err error) string {
	if err != nil {
		return "error: " + err.Error()
	}
	return result.Detail
}
