package factory

import (
	"context"

	"github.com/fabworks/cell-core/internal/machine/gantry"
)

// Box is an axis-aligned bounding box obstacle in workspace coordinates.
type Box struct {
	MinX, MinY, MinZ float64
	MaxX, MaxY, MaxZ float64
}

// Planner computes collision-free gantry paths around box obstacles.
//
// The planning algorithm is an external collaborator; the factory only
// delegates to it. When no planner is wired, PlanPath returns
// ErrNoPlanner.
type Planner interface {
	PlanPath(ctx context.Context, start, goal gantry.Pose, obstacles []Box, workspace Box) ([]gantry.Pose, error)
}
