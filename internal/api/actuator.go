package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/fabworks/cell-core/internal/audit"
	"github.com/fabworks/cell-core/internal/machine"
	"github.com/fabworks/cell-core/internal/machine/actuator"
)

// handleActuatorConnect initialises the actuator output lines.
func (s *Server) handleActuatorConnect(w http.ResponseWriter, r *http.Request) {
	a := s.factory.Actuator()
	err := a.Connect(r.Context())

	s.factory.Telemetry().Operation(a.Name(), "connect", err == nil)
	s.factory.RecordEvent(r.Context(), audit.Event{
		Category: audit.CategoryActuator,
		Subject:  a.Name(),
		Action:   "connect",
		Detail:   errDetail(err),
	})

	if err != nil {
		writeUnavailable(w, "actuator outputs unavailable: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"connected": true})
}

// handleScrewCW drives the motor clockwise.
func (s *Server) handleScrewCW(w http.ResponseWriter, r *http.Request) {
	s.handleScrew(w, r, actuator.DirectionCW)
}

// handleScrewCCW drives the motor counter-clockwise.
func (s *Server) handleScrewCCW(w http.ResponseWriter, r *http.Request) {
	s.handleScrew(w, r, actuator.DirectionCCW)
}

// handleScrewStop stops the motor and releases the direction line.
func (s *Server) handleScrewStop(w http.ResponseWriter, r *http.Request) {
	s.handleScrew(w, r, actuator.DirectionStop)
}

// handleScrew runs one motor command with the direction fixed by the route.
func (s *Server) handleScrew(w http.ResponseWriter, r *http.Request, dir actuator.Direction) {
	params, err := decodeParams(r)
	if err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	a := s.factory.Actuator()
	duration := time.Duration(params.Float("duration", 0) * float64(time.Second))
	speed := params.Float("speed", 50)

	detail, err := a.Screw(dir, duration, speed)
	action := "screw_" + strings.ToLower(string(dir))

	s.factory.Telemetry().Operation(a.Name(), action, err == nil)
	s.factory.RecordEvent(r.Context(), audit.Event{
		Category: audit.CategoryActuator,
		Subject:  a.Name(),
		Action:   action,
		Detail:   resultDetail(machine.Result{Detail: detail}, err),
	})

	if err != nil {
		writeMachineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, machine.Result{Detail: detail})
}

// handleUnlock energizes the solenoid lock for the requested hold time.
func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	params, err := decodeParams(r)
	if err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	a := s.factory.Actuator()
	hold := time.Duration(params.Float("time_s", 10) * float64(time.Second))

	err = a.Unlock(hold)

	s.factory.Telemetry().Operation(a.Name(), "unlock", err == nil)
	s.factory.RecordEvent(r.Context(), audit.Event{
		Category: audit.CategoryActuator,
		Subject:  a.Name(),
		Action:   "unlock",
		Detail:   errDetail(err),
	})

	if err != nil {
		writeMachineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, machine.Result{Detail: "unlocked"})
}

// handleActuatorCleanup releases the output lines.
func (s *Server) handleActuatorCleanup(w http.ResponseWriter, r *http.Request) {
	a := s.factory.Actuator()
	err := a.Cleanup()

	s.factory.RecordEvent(r.Context(), audit.Event{
		Category: audit.CategoryActuator,
		Subject:  a.Name(),
		Action:   "cleanup",
		Detail:   errDetail(err),
	})

	if err != nil {
		writeInternalError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"connected": false})
}
