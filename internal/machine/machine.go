package machine

import (
	"context"
	"encoding/json"
)

// Params carries named arguments for a machine command, as stored on a
// job record or decoded from a request body.
type Params map[string]any

// Float returns the named parameter as a float64, or def if absent or
// not numeric. JSON decoding yields float64 for all numbers, but values
// set programmatically may be ints.
func (p Params) Float(key string, def float64) float64 {
	v, ok := p[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
	}
	return def
}

// String returns the named parameter as a string, or def if absent or
// not a string.
func (p Params) String(key, def string) string {
	if v, ok := p[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Clone returns a shallow copy of the params. Values are primitives in
// practice, so a shallow copy is enough to keep templates immutable.
func (p Params) Clone() Params {
	if p == nil {
		return Params{}
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Result is the outcome of a successfully dispatched command.
type Result struct {
	// Async reports that the command launched a background operation and
	// returned before completion (e.g. a gantry move). Callers must not
	// wait on it.
	Async bool `json:"async,omitempty"`

	// Detail is the controller's textual reply or a short summary of
	// what was done.
	Detail string `json:"detail,omitempty"`
}

// Handler executes one named command with the given params.
//
// Errors follow the package taxonomy: ErrBusy for policy rejections,
// ErrNotConnected when the controller has no transport, anything else
// for hardware or transport failures.
type Handler func(ctx context.Context, p Params) (Result, error)

// CommandSet is the closed set of commands a controller supports.
//
// Dispatch is an explicit table lookup, not reflection: an action a
// controller does not list simply does not exist for it.
type CommandSet map[string]Handler

// Controller is a machine that executes named commands.
//
// Implementations: gantry.Controller (multi-axis motion) and
// actuator.Controller (screwdriver motor and solenoid lock).
type Controller interface {
	// Name returns the machine's registry name (e.g. "gantry").
	Name() string

	// Connect establishes the transport or output lines. Idempotent.
	Connect(ctx context.Context) error

	// Connected reports whether Connect has succeeded.
	Connected() bool

	// Commands returns the controller's command table.
	Commands() CommandSet
}
