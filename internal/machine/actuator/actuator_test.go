package actuator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fabworks/cell-core/internal/machine"
)

// ─── Mock Outputs ──────────────────────────────────────────────────

// faultyOutputs wraps SimOutputs and fails selected operations.
type faultyOutputs struct {
	*SimOutputs
	failDuty bool
	failLock bool
	lockOps  []bool
}

func (f *faultyOutputs) SetDuty(percent float64) error {
	if f.failDuty && percent > 0 {
		return errors.New("duty line fault")
	}
	return f.SimOutputs.SetDuty(percent)
}

func (f *faultyOutputs) SetLock(energized bool) error {
	f.lockOps = append(f.lockOps, energized)
	if f.failLock && energized {
		return errors.New("lock line fault")
	}
	return f.SimOutputs.SetLock(energized)
}

// ─── Test Helpers ──────────────────────────────────────────────────

func connectedController(t *testing.T, out Outputs) *Controller {
	t.Helper()
	c := New(out)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return c
}

// ─── Tests ─────────────────────────────────────────────────────────

func TestConnectIsIdempotent(t *testing.T) {
	out := NewSimOutputs()
	c := connectedController(t, out)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("second Connect: %v", err)
	}

	inits := 0
	for _, op := range out.Ops() {
		if op == "init" {
			inits++
		}
	}
	if inits != 1 {
		t.Errorf("outputs initialised %d times, want 1", inits)
	}
}

func TestScrewRequiresConnect(t *testing.T) {
	c := New(NewSimOutputs())

	if _, err := c.Screw(DirectionCW, 0, 50); !errors.Is(err, machine.ErrNotConnected) {
		t.Errorf("Screw before Connect = %v, want machine.ErrNotConnected", err)
	}
	if err := c.Unlock(time.Millisecond); !errors.Is(err, machine.ErrNotConnected) {
		t.Errorf("Unlock before Connect = %v, want machine.ErrNotConnected", err)
	}
}

func TestScrewContinuousRun(t *testing.T) {
	out := NewSimOutputs()
	c := connectedController(t, out)

	if _, err := c.Screw(DirectionCW, 0, 75); err != nil {
		t.Fatalf("Screw: %v", err)
	}

	dir, duty, _ := out.Snapshot()
	if dir != DirectionCW {
		t.Errorf("direction = %s, want CW", dir)
	}
	if duty != 75 {
		t.Errorf("duty = %g, want 75", duty)
	}
}

func TestScrewTimedRunForcesStop(t *testing.T) {
	out := NewSimOutputs()
	c := connectedController(t, out)

	start := time.Now()
	if _, err := c.Screw(DirectionCCW, 20*time.Millisecond, 60); err != nil {
		t.Fatalf("Screw: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("timed run returned after %v, want at least 20ms", elapsed)
	}

	dir, duty, _ := out.Snapshot()
	if duty != 0 {
		t.Errorf("duty = %g after timed run, want 0", duty)
	}
	if dir != DirectionStop {
		t.Errorf("direction = %s after timed run, want STOP", dir)
	}
}

func TestScrewStopClearsOutputs(t *testing.T) {
	out := NewSimOutputs()
	c := connectedController(t, out)

	if _, err := c.Screw(DirectionCW, 0, 100); err != nil {
		t.Fatalf("Screw: %v", err)
	}
	if _, err := c.Screw(DirectionStop, 0, 0); err != nil {
		t.Fatalf("stop: %v", err)
	}

	dir, duty, _ := out.Snapshot()
	if duty != 0 || dir != DirectionStop {
		t.Errorf("after stop: dir=%s duty=%g, want STOP/0", dir, duty)
	}
}

func TestScrewSpeedClamped(t *testing.T) {
	tests := []struct {
		speed float64
		want  float64
	}{
		{speed: -10, want: 0},
		{speed: 0, want: 0},
		{speed: 55.5, want: 55.5},
		{speed: 250, want: 100},
	}

	for _, tt := range tests {
		out := NewSimOutputs()
		c := connectedController(t, out)

		if _, err := c.Screw(DirectionCW, 0, tt.speed); err != nil {
			t.Fatalf("Screw(%g): %v", tt.speed, err)
		}
		if _, duty, _ := out.Snapshot(); duty != tt.want {
			t.Errorf("Screw(%g) duty = %g, want %g", tt.speed, duty, tt.want)
		}
	}
}

func TestScrewTimedRunStopsDespiteDutyFault(t *testing.T) {
	out := &faultyOutputs{SimOutputs: NewSimOutputs(), failDuty: true}
	c := connectedController(t, out)

	if _, err := c.Screw(DirectionCW, 10*time.Millisecond, 50); err == nil {
		t.Fatal("Screw should report the duty fault")
	}

	// The deferred stop still ran: direction released, duty zeroed.
	dir, duty, _ := out.Snapshot()
	if dir != DirectionStop || duty != 0 {
		t.Errorf("after fault: dir=%s duty=%g, want STOP/0", dir, duty)
	}
}

func TestUnlockHoldsThenLocks(t *testing.T) {
	out := NewSimOutputs()
	c := connectedController(t, out)

	start := time.Now()
	if err := c.Unlock(15 * time.Millisecond); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Errorf("Unlock returned after %v, want at least 15ms", elapsed)
	}

	if _, _, locked := out.Snapshot(); locked {
		t.Error("lock still energized after Unlock returned")
	}

	ops := out.Ops()
	var lockOps []string
	for _, op := range ops {
		if op == "lock=energized" || op == "lock=released" {
			lockOps = append(lockOps, op)
		}
	}
	want := []string{"lock=energized", "lock=released"}
	if len(lockOps) != 2 || lockOps[0] != want[0] || lockOps[1] != want[1] {
		t.Errorf("lock ops = %v, want %v", lockOps, want)
	}
}

func TestUnlockDeEnergizesAfterEnergizeFault(t *testing.T) {
	out := &faultyOutputs{SimOutputs: NewSimOutputs(), failLock: true}
	c := connectedController(t, out)

	if err := c.Unlock(time.Millisecond); err == nil {
		t.Fatal("Unlock should report the lock fault")
	}

	// De-energize ran on the error path.
	if len(out.lockOps) == 0 || out.lockOps[len(out.lockOps)-1] {
		t.Errorf("lock ops = %v, want trailing de-energize", out.lockOps)
	}
}

func TestCleanupReleasesOutputs(t *testing.T) {
	out := NewSimOutputs()
	c := connectedController(t, out)

	if err := c.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if c.Connected() {
		t.Error("controller still connected after Cleanup")
	}

	// Cleanup on a disconnected controller is a no-op.
	if err := c.Cleanup(); err != nil {
		t.Fatalf("second Cleanup: %v", err)
	}
}

func TestParseDirection(t *testing.T) {
	tests := []struct {
		in      string
		want    Direction
		wantErr bool
	}{
		{in: "CW", want: DirectionCW},
		{in: "cw", want: DirectionCW},
		{in: "ccw", want: DirectionCCW},
		{in: "Stop", want: DirectionStop},
		{in: "up", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseDirection(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrBadDirection) {
				t.Errorf("ParseDirection(%q) err = %v, want ErrBadDirection", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDirection(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDirection(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestCommandTable(t *testing.T) {
	out := NewSimOutputs()
	c := connectedController(t, out)
	commands := c.Commands()

	for _, action := range []string{"screw", "unlock"} {
		if _, ok := commands[action]; !ok {
			t.Errorf("command table missing %q", action)
		}
	}

	if _, err := commands["screw"](context.Background(), machine.Params{
		"direction": "cw",
		"speed":     80.0,
	}); err != nil {
		t.Fatalf("screw command: %v", err)
	}
	if dir, duty, _ := out.Snapshot(); dir != DirectionCW || duty != 80 {
		t.Errorf("screw command applied dir=%s duty=%g", dir, duty)
	}

	if _, err := commands["screw"](context.Background(), machine.Params{
		"direction": "sideways",
	}); !errors.Is(err, ErrBadDirection) {
		t.Errorf("bad direction err = %v, want ErrBadDirection", err)
	}
}
