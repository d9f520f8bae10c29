package factory

import (
	"github.com/fabworks/cell-core/internal/machine/gantry"
)

// Tool is the metadata for one tool the cell can pick up.
type Tool struct {
	Name   string      `json:"name"`
	Holder string      `json:"holder,omitempty"` // gantry holder slot the tool lives in
	Offset gantry.Pose `json:"offset"`           // toolend offset when attached
}

// stateDoc is the persisted aggregate document. It is written wholesale
// on every mutation and read once at startup.
type stateDoc struct {
	JobsFile  string          `json:"jobs_file"`
	PartsFile string          `json:"parts_file"`
	Machines  machinesDoc     `json:"machines"`
	Tools     map[string]Tool `json:"tools"`
}

// machinesDoc holds the per-machine persisted snapshots. The actuator is
// stateless between runs; only the gantry carries a snapshot.
type machinesDoc struct {
	Gantry gantry.State `json:"gantry"`
}
