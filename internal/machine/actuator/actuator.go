package actuator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fabworks/cell-core/internal/machine"
)

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

// Controller drives the screwdriver motor (direction + duty cycle) and
// the solenoid lock through a set of output lines.
//
// Unlike the gantry's non-blocking moves, Screw and Unlock are
// deliberately synchronous: screw and unlock operations are short and
// bounded, so the caller simply waits. There is no way to cancel an
// operation past its guard checks other than issuing STOP once control
// returns; that is a documented limitation, not a guarantee.
//
// Thread Safety: all methods are safe for concurrent use; output
// operations are serialized so two commands never interleave on the lines.
type Controller struct {
	out    Outputs
	logger Logger

	// opMu serializes output sequences (a screw run, an unlock hold).
	opMu sync.Mutex

	// mu guards connected.
	mu        sync.Mutex
	connected bool
}

// New creates an actuator controller over the given outputs.
func New(out Outputs) *Controller {
	return &Controller{
		out:    out,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the controller.
func (c *Controller) SetLogger(logger Logger) {
	c.logger = logger
}

// Name returns the machine registry name.
func (c *Controller) Name() string { return "actuator" }

// Connect initialises the output lines and starts the pulse-width
// generator at zero duty. Idempotent: reconnecting is a no-op.
func (c *Controller) Connect(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return nil
	}

	if err := c.out.Init(); err != nil {
		return fmt.Errorf("initialising outputs: %w", err)
	}
	c.connected = true
	c.logger.Info("actuator connected")
	return nil
}

// Connected reports whether Connect has succeeded.
func (c *Controller) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Screw drives the motor.
//
// STOP zeroes the duty cycle and releases the direction line regardless
// of prior state. CW/CCW set the direction line, clamp speed into
// [0, 100] and apply it as the duty cycle. A positive duration blocks
// for that long and then forces a STOP on the way out, even if an output
// operation failed mid-run.
func (c *Controller) Screw(dir Direction, duration time.Duration, speed float64) (string, error) {
	if !c.Connected() {
		return "", machine.ErrNotConnected
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	if dir == DirectionStop {
		c.logger.Info("actuator motor stop")
		return "STOP", c.forceStop()
	}

	if speed < 0 {
		speed = 0
	}
	if speed > 100 {
		speed = 100
	}

	c.logger.Info("actuator screw", "direction", dir, "speed", speed, "duration", duration)

	if err := c.out.SetDirection(dir); err != nil {
		return "", fmt.Errorf("setting direction: %w", err)
	}

	if duration > 0 {
		// Timed run: whatever happens below, the motor stops on exit.
		defer func() {
			if err := c.forceStop(); err != nil {
				c.logger.Error("actuator failed to stop motor", "error", err)
			}
		}()
	}

	if err := c.out.SetDuty(speed); err != nil {
		return "", fmt.Errorf("setting duty cycle: %w", err)
	}

	if duration > 0 {
		time.Sleep(duration)
		return fmt.Sprintf("%s %g%% for %s", dir, speed, duration), nil
	}
	return fmt.Sprintf("%s %g%%", dir, speed), nil
}

// forceStop zeroes the duty cycle and releases the direction line.
func (c *Controller) forceStop() error {
	if err := c.out.SetDuty(0); err != nil {
		return err
	}
	return c.out.SetDirection(DirectionStop)
}

// Unlock energizes the solenoid lock for the given duration.
//
// The de-energize step runs on every exit path, including a failure
// mid-hold: a lock left energized is the unsafe failure mode.
func (c *Controller) Unlock(duration time.Duration) error {
	if !c.Connected() {
		return machine.ErrNotConnected
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.logger.Info("actuator unlocking", "duration", duration)

	defer func() {
		if err := c.out.SetLock(false); err != nil {
			c.logger.Error("actuator failed to de-energize lock", "error", err)
		} else {
			c.logger.Info("actuator locked")
		}
	}()

	if err := c.out.SetLock(true); err != nil {
		return fmt.Errorf("energizing lock: %w", err)
	}
	time.Sleep(duration)
	return nil
}

// Cleanup stops the pulse-width generator and releases the output lines.
func (c *Controller) Cleanup() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil
	}

	c.connected = false
	if err := c.out.Close(); err != nil {
		return fmt.Errorf("releasing outputs: %w", err)
	}
	c.logger.Info("actuator cleaned up")
	return nil
}

// secondsParam converts a float seconds parameter to a duration.
func secondsParam(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Commands returns the actuator's command table.
func (c *Controller) Commands() machine.CommandSet {
	return machine.CommandSet{
		"screw": func(_ context.Context, p machine.Params) (machine.Result, error) {
			dir, err := ParseDirection(p.String("direction", string(DirectionStop)))
			if err != nil {
				return machine.Result{}, err
			}
			detail, err := c.Screw(dir, secondsParam(p.Float("duration", 0)), p.Float("speed", 50))
			return machine.Result{Detail: detail}, err
		},
		"unlock": func(_ context.Context, p machine.Params) (machine.Result, error) {
			err := c.Unlock(secondsParam(p.Float("time_s", 10)))
			return machine.Result{Detail: "unlocked"}, err
		},
	}
}
