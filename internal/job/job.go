package job

import (
	"github.com/fabworks/cell-core/internal/machine"
)

// Job is a stored (machine, action, params) triple executable on demand.
type Job struct {
	ID      string         `json:"id"`
	Machine string         `json:"machine"`
	Action  string         `json:"action"`
	Params  machine.Params `json:"params"`
}

// Clone returns an independent copy of the job.
func (j Job) Clone() Job {
	j.Params = j.Params.Clone()
	return j
}

// Default machine and action for newly created jobs, matching the most
// common edit flow: operators add a job and immediately retarget it.
const (
	DefaultMachine = "gantry"
	DefaultAction  = "step"
)

// Templates maps machine name -> action -> default parameters used to
// pre-populate new jobs. Immutable at runtime; a missing entry is not an
// error, it just means no defaults.
type Templates map[string]map[string]machine.Params

// DefaultTemplates returns the built-in parameter templates for the
// cell's machines.
func DefaultTemplates() Templates {
	return Templates{
		"gantry": {
			"goto":         {"x": 0.0, "y": 0.0, "z": 0.0, "a": 0.0, "speed": 2000.0},
			"step":         {"x": 0.0, "y": 5.0, "z": 0.0, "a": 0.0, "speed": 1000.0},
			"home":         {},
			"set_position": {"x": 0.0, "y": 0.0, "z": 0.0, "a": 0.0},
		},
		"actuator": {
			"screw":  {"direction": "CW", "duration": 0.0, "speed": 50.0},
			"unlock": {"time_s": 10.0},
		},
	}
}

// Defaults returns a copy of the template parameters for (machineName,
// action), or empty params when no template exists.
func (t Templates) Defaults(machineName, action string) machine.Params {
	if actions, ok := t[machineName]; ok {
		if params, ok := actions[action]; ok {
			return params.Clone()
		}
	}
	return machine.Params{}
}
