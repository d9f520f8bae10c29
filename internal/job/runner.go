package job

import (
	"context"
	"fmt"

	"github.com/fabworks/cell-core/internal/machine"
)

// Resolver resolves machine names to controllers. Implemented by the
// factory, which owns the machine registry.
type Resolver interface {
	Machine(name string) (machine.Controller, bool)
}

// Runner executes stored jobs against the cell's machines.
//
// Dispatch is a table lookup on the target controller's CommandSet: an
// action the controller does not list is a logged no-op, never arbitrary
// code execution. Asynchronous commands (gantry moves) return before
// completion; the caller persists immediately rather than waiting.
type Runner struct {
	store    *Store
	resolver Resolver
	logger   Logger
}

// NewRunner creates a runner over the given store and machine resolver.
func NewRunner(store *Store, resolver Resolver) *Runner {
	return &Runner{
		store:    store,
		resolver: resolver,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the runner.
func (r *Runner) SetLogger(logger Logger) {
	r.logger = logger
}

// Run executes the job with the given id.
//
// Failure modes:
//   - unknown job id: ErrJobNotFound
//   - machine not in the registry: ErrUnknownMachine, no state change
//   - action not in the machine's command table: machine.ErrUnknownCommand,
//     logged warning, no state change
//   - command failure: the command's own error; the job record is untouched
func (r *Runner) Run(ctx context.Context, id string) (machine.Result, error) {
	j, err := r.store.Get(id)
	if err != nil {
		return machine.Result{}, err
	}

	ctrl, ok := r.resolver.Machine(j.Machine)
	if !ok {
		r.logger.Warn("job targets unknown machine", "id", id, "machine", j.Machine)
		return machine.Result{}, fmt.Errorf("%w: %q", ErrUnknownMachine, j.Machine)
	}

	handler, ok := ctrl.Commands()[j.Action]
	if !ok {
		r.logger.Warn("job targets unknown action", "id", id, "machine", j.Machine, "action", j.Action)
		return machine.Result{}, fmt.Errorf("%w: %s.%s", machine.ErrUnknownCommand, j.Machine, j.Action)
	}

	r.logger.Info("running job", "id", id, "machine", j.Machine, "action", j.Action)

	result, err := handler(ctx, j.Params)
	if err != nil {
		r.logger.Warn("job command failed", "id", id, "machine", j.Machine, "action", j.Action, "error", err)
		return result, err
	}

	return result, nil
}
