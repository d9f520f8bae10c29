package actuator

import (
	"fmt"
	"strings"
	"sync"
)

// Direction selects the screwdriver motor's rotation.
type Direction string

const (
	DirectionCW   Direction = "CW"
	DirectionCCW  Direction = "CCW"
	DirectionStop Direction = "STOP"
)

// ParseDirection normalises a direction string.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToUpper(s)) {
	case DirectionCW:
		return DirectionCW, nil
	case DirectionCCW:
		return DirectionCCW, nil
	case DirectionStop:
		return DirectionStop, nil
	}
	return "", fmt.Errorf("%w: %q", ErrBadDirection, s)
}

// Outputs abstracts the actuator's physical output lines: a direction
// line, a pulse-width line for motor speed, and the solenoid lock line.
//
// Implementations: PeriphOutputs on hosts with GPIO capability,
// SimOutputs everywhere else. Both honour the same state transitions so
// control logic and tests behave identically without hardware.
type Outputs interface {
	// Init claims the lines and starts the pulse-width generator at zero
	// duty. Safe to call once.
	Init() error

	// SetDirection drives the direction line for CW/CCW. DirectionStop
	// releases it (all direction outputs low).
	SetDirection(d Direction) error

	// SetDuty applies a motor duty cycle in percent [0, 100].
	SetDuty(percent float64) error

	// SetLock energizes (true) or de-energizes (false) the solenoid lock.
	// De-energized is the safe, locked state.
	SetLock(energized bool) error

	// Close stops the pulse-width generator and releases all lines.
	Close() error
}

// SimOutputs is the degraded-mode Outputs used when the host has no GPIO
// capability. Operations are no-ops against hardware but faithfully
// track every state transition, and an ordered op log supports tests.
type SimOutputs struct {
	mu          sync.Mutex
	initialized bool
	closed      bool
	direction   Direction
	duty        float64
	lock        bool
	ops         []string
}

// NewSimOutputs creates simulated output lines.
func NewSimOutputs() *SimOutputs {
	return &SimOutputs{direction: DirectionStop}
}

func (s *SimOutputs) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = true
	s.closed = false
	s.duty = 0
	s.record("init")
	return nil
}

func (s *SimOutputs) SetDirection(d Direction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrOutputsNotInitialized
	}
	s.direction = d
	s.record("dir=" + string(d))
	return nil
}

func (s *SimOutputs) SetDuty(percent float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrOutputsNotInitialized
	}
	s.duty = percent
	s.record(fmt.Sprintf("duty=%g", percent))
	return nil
}

func (s *SimOutputs) SetLock(energized bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrOutputsNotInitialized
	}
	s.lock = energized
	if energized {
		s.record("lock=energized")
	} else {
		s.record("lock=released")
	}
	return nil
}

func (s *SimOutputs) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = false
	s.closed = true
	s.duty = 0
	s.direction = DirectionStop
	s.record("close")
	return nil
}

// Snapshot returns the current direction, duty and lock state.
func (s *SimOutputs) Snapshot() (Direction, float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direction, s.duty, s.lock
}

// Ops returns the ordered log of applied output operations.
func (s *SimOutputs) Ops() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.ops))
	copy(out, s.ops)
	return out
}

// record appends to the op log. Caller must hold s.mu.
func (s *SimOutputs) record(op string) {
	s.ops = append(s.ops, op)
}
