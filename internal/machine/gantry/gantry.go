package gantry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fabworks/cell-core/internal/machine"
)

// moveTimeout bounds a complete background move including the
// wait-for-motion-complete command. Long coordinated moves at low feed
// rates are legitimate, so this is generous.
const moveTimeout = 5 * time.Minute

// Logger defines the logging interface used by the Controller.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Pose is the logical toolend position of the gantry.
type Pose struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	A float64 `json:"a"`
}

// State is the gantry's persisted snapshot: the last known toolend pose
// and the named tool-holder and location layout of the workspace.
type State struct {
	Toolend   Pose            `json:"toolend"`
	Holders   map[string]Pose `json:"holders"`
	Locations map[string]Pose `json:"locations"`
}

// Controller drives a multi-axis positioner through a textual command
// protocol (G-code over an HTTP JSON envelope).
//
// Motion state machine: Idle -> Moving on Goto, back to Idle when the
// background move finishes, success or failure alike. A Goto while
// Moving is rejected with machine.ErrBusy and has no side effect.
//
// Thread Safety: all methods are safe for concurrent use. Wire commands
// are serialized by a mutex so two commands never interleave on the wire.
type Controller struct {
	sender Sender
	logger Logger

	// ioMu serializes command dispatch on the wire.
	ioMu sync.Mutex

	// mu guards the fields below.
	mu        sync.Mutex
	connected bool
	moving    bool
	toolend   Pose
	holders   map[string]Pose
	locations map[string]Pose

	// onMoveDone, if set, is called when a background move finishes.
	// Used by telemetry; never blocks motion completion semantics.
	onMoveDone func(pose Pose, err error)
}

// New creates a gantry controller over the given sender.
func New(sender Sender) *Controller {
	return &Controller{
		sender:    sender,
		logger:    noopLogger{},
		holders:   make(map[string]Pose),
		locations: make(map[string]Pose),
	}
}

// SetLogger sets the logger for the controller.
func (c *Controller) SetLogger(logger Logger) {
	c.logger = logger
}

// SetOnMoveDone registers a callback invoked after each background move.
func (c *Controller) SetOnMoveDone(cb func(pose Pose, err error)) {
	c.mu.Lock()
	c.onMoveDone = cb
	c.mu.Unlock()
}

// Name returns the machine registry name.
func (c *Controller) Name() string { return "gantry" }

// Connect verifies the controller is reachable by querying firmware
// identification. Idempotent: reconnecting an already connected
// controller just re-verifies the transport.
func (c *Controller) Connect(ctx context.Context) error {
	if _, err := c.Send(ctx, "M115"); err != nil {
		return fmt.Errorf("%w: %w", machine.ErrNotConnected, err)
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	c.logger.Info("gantry connected")
	return nil
}

// Connected reports whether Connect has succeeded.
func (c *Controller) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Busy reports whether a move is in flight.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.moving
}

// Send dispatches one command on the wire and returns the controller's
// textual reply. Concurrent callers are serialized; failures are logged
// and returned, never swallowed.
func (c *Controller) Send(ctx context.Context, script string) (string, error) {
	c.ioMu.Lock()
	defer c.ioMu.Unlock()

	result, err := c.sender.Send(ctx, script)
	if err != nil {
		c.logger.Error("gantry command failed", "script", script, "error", err)
		return "", err
	}
	c.logger.Debug("gantry command", "script", script, "result", result)
	return result, nil
}

// Home issues the homing cycle (G28).
func (c *Controller) Home(ctx context.Context) (string, error) {
	c.logger.Info("gantry homing")
	return c.Send(ctx, "G28")
}

// SetPosition redefines the logical origin (G92) without physical motion
// and updates the cached toolend pose.
func (c *Controller) SetPosition(ctx context.Context, x, y, z, a float64) (string, error) {
	c.logger.Info("gantry set position", "x", x, "y", y, "z", z, "a", a)
	result, err := c.Send(ctx, fmt.Sprintf("G92 X%g Y%g Z%g A%g", x, y, z, a))
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.toolend = Pose{X: x, Y: y, Z: z, A: a}
	c.mu.Unlock()
	return result, nil
}

// Pose queries the controller's position report (M114) and returns the
// parsed pose, updating the cached toolend on success only.
func (c *Controller) Pose(ctx context.Context) (Pose, error) {
	report, err := c.Send(ctx, "M114")
	if err != nil {
		return Pose{}, err
	}

	pose, err := parsePose(report)
	if err != nil {
		c.logger.Warn("gantry pose parse failed", "report", report, "error", err)
		return Pose{}, err
	}

	c.mu.Lock()
	c.toolend = pose
	c.mu.Unlock()
	return pose, nil
}

// CachedPose returns the last known toolend pose without touching the wire.
func (c *Controller) CachedPose() Pose {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.toolend
}

// Goto starts a non-blocking absolute move.
//
// If the gantry is idle it transitions to Moving and the move (absolute
// addressing, one combined move command, wait-for-motion-complete) runs
// on its own goroutine; the transition back to Idle is guaranteed on the
// move's exit path regardless of outcome. If a move is already in
// flight, machine.ErrBusy is returned and nothing changes.
func (c *Controller) Goto(x, y, z, a, speed float64) error {
	c.mu.Lock()
	if c.moving {
		c.mu.Unlock()
		c.logger.Warn("gantry goto rejected: already moving")
		return machine.ErrBusy
	}
	c.moving = true
	c.mu.Unlock()

	go c.executeMove(x, y, z, a, speed)
	return nil
}

// executeMove runs the actual motion sequence. The Moving flag is
// cleared on every exit path.
func (c *Controller) executeMove(x, y, z, a, speed float64) {
	ctx, cancel := context.WithTimeout(context.Background(), moveTimeout)
	defer cancel()

	var moveErr error
	defer func() {
		c.mu.Lock()
		c.moving = false
		if moveErr == nil {
			c.toolend = Pose{X: x, Y: y, Z: z, A: a}
		}
		cb := c.onMoveDone
		pose := c.toolend
		c.mu.Unlock()

		if cb != nil {
			cb(pose, moveErr)
		}
	}()

	steps := []string{
		"G90", // absolute addressing
		fmt.Sprintf("G1 X%g Y%g Z%g A%g F%g", x, y, z, a, speed),
		"M400", // wait for motion complete
	}
	for _, script := range steps {
		if _, err := c.Send(ctx, script); err != nil {
			moveErr = err
			c.logger.Error("gantry move failed", "script", script, "error", err)
			return
		}
	}

	c.logger.Info("gantry move complete", "x", x, "y", y, "z", z, "a", a)
}

// Step issues a synchronous relative move (G91 addressing).
//
// Absolute addressing is restored on every exit path, including a failed
// move command. If the transport itself is down the restore is best
// effort only; the failure is logged and the original error returned.
func (c *Controller) Step(ctx context.Context, dx, dy, dz, da, speed float64) (string, error) {
	if _, err := c.Send(ctx, "G91"); err != nil {
		return "", err
	}
	defer func() {
		if _, err := c.Send(ctx, "G90"); err != nil {
			c.logger.Error("gantry failed to restore absolute addressing", "error", err)
		}
	}()

	return c.Send(ctx, fmt.Sprintf("G1 X%g Y%g Z%g A%g F%g", dx, dy, dz, da, speed))
}

// Commands returns the gantry's command table.
func (c *Controller) Commands() machine.CommandSet {
	return machine.CommandSet{
		"goto": func(_ context.Context, p machine.Params) (machine.Result, error) {
			err := c.Goto(
				p.Float("x", 0), p.Float("y", 0), p.Float("z", 0), p.Float("a", 0),
				p.Float("speed", 2000),
			)
			if err != nil {
				return machine.Result{}, err
			}
			return machine.Result{Async: true, Detail: "move started"}, nil
		},
		"step": func(ctx context.Context, p machine.Params) (machine.Result, error) {
			result, err := c.Step(ctx,
				p.Float("x", 0), p.Float("y", 0), p.Float("z", 0), p.Float("a", 0),
				p.Float("speed", 1000),
			)
			return machine.Result{Detail: result}, err
		},
		"home": func(ctx context.Context, _ machine.Params) (machine.Result, error) {
			result, err := c.Home(ctx)
			return machine.Result{Detail: result}, err
		},
		"set_position": func(ctx context.Context, p machine.Params) (machine.Result, error) {
			result, err := c.SetPosition(ctx,
				p.Float("x", 0), p.Float("y", 0), p.Float("z", 0), p.Float("a", 0),
			)
			return machine.Result{Detail: result}, err
		},
	}
}

// Snapshot returns the persisted state for the factory aggregate.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return State{
		Toolend:   c.toolend,
		Holders:   clonePoses(c.holders),
		Locations: clonePoses(c.locations),
	}
}

// Restore applies a persisted snapshot. If the controller is connected,
// the logical origin is re-issued so the physical controller agrees with
// the restored pose.
func (c *Controller) Restore(ctx context.Context, st State) {
	c.mu.Lock()
	c.toolend = st.Toolend
	c.holders = clonePoses(st.Holders)
	c.locations = clonePoses(st.Locations)
	connected := c.connected
	c.mu.Unlock()

	if connected {
		if _, err := c.SetPosition(ctx, st.Toolend.X, st.Toolend.Y, st.Toolend.Z, st.Toolend.A); err != nil {
			c.logger.Warn("gantry restore: failed to re-issue origin", "error", err)
		}
	}
}

func clonePoses(in map[string]Pose) map[string]Pose {
	out := make(map[string]Pose, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
