package factory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fabworks/cell-core/internal/audit"
	"github.com/fabworks/cell-core/internal/camera"
	"github.com/fabworks/cell-core/internal/job"
	"github.com/fabworks/cell-core/internal/machine"
	"github.com/fabworks/cell-core/internal/machine/actuator"
	"github.com/fabworks/cell-core/internal/machine/gantry"
	"github.com/fabworks/cell-core/internal/telemetry"
)

// Logger defines the logging interface used by the Factory.
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

// filePermissions is the mode for the persisted aggregate state file.
const filePermissions = 0644

// Deps holds the dependencies required by the Factory.
type Deps struct {
	Gantry    *gantry.Controller
	Actuator  *actuator.Controller
	Cameras   *camera.Manager
	Jobs      *job.Store
	Planner   Planner               // optional: path planning collaborator
	Audit     *audit.Store          // optional: operation trail
	Telemetry *telemetry.Publisher  // nil-safe
	Logger    Logger
}

// Factory is the composition root for the manufacturing cell.
//
// It owns one controller per machine kind, the job store, the camera
// manager, and the tool metadata map, and it is the only writer of the
// aggregate state file. Every mutating operation persists the full
// aggregate before returning, so durable state always matches memory.
type Factory struct {
	gantry    *gantry.Controller
	actuator  *actuator.Controller
	cameras   *camera.Manager
	jobs      *job.Store
	runner    *job.Runner
	planner   Planner
	audit     *audit.Store
	telemetry *telemetry.Publisher
	logger    Logger

	mu        sync.Mutex
	savePath  string
	partsFile string
	tools     map[string]Tool
}

// New creates a factory over the given dependencies.
func New(deps Deps) (*Factory, error) {
	if deps.Gantry == nil || deps.Actuator == nil {
		return nil, fmt.Errorf("factory: gantry and actuator controllers are required")
	}
	if deps.Jobs == nil {
		return nil, fmt.Errorf("factory: job store is required")
	}

	f := &Factory{
		gantry:    deps.Gantry,
		actuator:  deps.Actuator,
		cameras:   deps.Cameras,
		jobs:      deps.Jobs,
		planner:   deps.Planner,
		audit:     deps.Audit,
		telemetry: deps.Telemetry,
		logger:    deps.Logger,
		tools:     make(map[string]Tool),
	}
	if f.logger == nil {
		f.logger = noopLogger{}
	}
	f.runner = job.NewRunner(deps.Jobs, f)
	return f, nil
}

// SetRunnerLogger forwards a logger to the embedded job runner.
func (f *Factory) SetRunnerLogger(logger job.Logger) {
	f.runner.SetLogger(logger)
}

// Machine resolves a machine name to its controller. Implements job.Resolver.
func (f *Factory) Machine(name string) (machine.Controller, bool) {
	switch name {
	case f.gantry.Name():
		return f.gantry, true
	case f.actuator.Name():
		return f.actuator, true
	}
	return nil, false
}

// MachineNames lists the machines in the registry.
func (f *Factory) MachineNames() []string {
	return []string{f.gantry.Name(), f.actuator.Name()}
}

// Gantry returns the motion controller.
func (f *Factory) Gantry() *gantry.Controller { return f.gantry }

// Actuator returns the actuator controller.
func (f *Factory) Actuator() *actuator.Controller { return f.actuator }

// Cameras returns the shared camera manager.
func (f *Factory) Cameras() *camera.Manager { return f.cameras }

// Jobs returns the job store.
func (f *Factory) Jobs() *job.Store { return f.jobs }

// Audit returns the audit store (may be nil).
func (f *Factory) Audit() *audit.Store { return f.audit }

// Load reads the aggregate state file and distributes the snapshots.
//
// A missing, empty, or corrupt file is tolerated: the machines keep
// their default state, the tool map starts empty, and the reason is
// logged. Embedded file paths in the document override the configured
// defaults so a relocated deployment keeps its sub-stores.
func (f *Factory) Load(ctx context.Context, stateFile, jobsFile, partsFile string) {
	f.mu.Lock()
	f.savePath = stateFile
	f.partsFile = partsFile
	f.mu.Unlock()

	var doc stateDoc
	loaded := false

	data, err := os.ReadFile(stateFile)
	switch {
	case err != nil:
		f.logger.Warn("factory state file not readable, using defaults", "path", stateFile, "error", err)
	case len(data) == 0:
		f.logger.Warn("factory state file is empty, using defaults", "path", stateFile)
	default:
		if err := json.Unmarshal(data, &doc); err != nil {
			f.logger.Warn("factory state file is not valid JSON, using defaults", "path", stateFile, "error", err)
		} else {
			loaded = true
		}
	}

	if loaded {
		if doc.JobsFile != "" {
			jobsFile = doc.JobsFile
		}
		if doc.PartsFile != "" {
			f.mu.Lock()
			f.partsFile = doc.PartsFile
			f.mu.Unlock()
		}
		if doc.Tools != nil {
			f.mu.Lock()
			f.tools = doc.Tools
			f.mu.Unlock()
		}
		f.gantry.Restore(ctx, doc.Machines.Gantry)
		f.logger.Info("factory state loaded", "path", stateFile, "tools", len(doc.Tools))
	}

	f.jobs.Load(jobsFile)
}

// Save serializes the full aggregate and overwrites the state file.
func (f *Factory) Save() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.save()
}

// save writes the aggregate document. Caller must hold f.mu.
func (f *Factory) save() error {
	if f.savePath == "" {
		return ErrNoSavePath
	}

	doc := stateDoc{
		JobsFile:  f.jobs.Path(),
		PartsFile: f.partsFile,
		Machines:  machinesDoc{Gantry: f.gantry.Snapshot()},
		Tools:     f.tools,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding factory state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.savePath), 0750); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	if err := os.WriteFile(f.savePath, data, filePermissions); err != nil {
		return fmt.Errorf("writing factory state: %w", err)
	}

	f.logger.Debug("factory state saved", "path", f.savePath)
	return nil
}

// AddJob creates a new job and persists the aggregate.
func (f *Factory) AddJob() (job.Job, error) {
	j, err := f.jobs.Add()
	if err != nil {
		return j, err
	}
	f.logger.Info("add job", "id", j.ID)
	return j, f.Save()
}

// UpdateJob overwrites a job and persists the aggregate.
func (f *Factory) UpdateJob(j job.Job) error {
	if err := f.jobs.Update(j); err != nil {
		return err
	}
	f.logger.Info("update job", "id", j.ID)
	return f.Save()
}

// DeleteJob removes a job and persists the aggregate. It reports whether
// the job existed.
func (f *Factory) DeleteJob(id string) (bool, error) {
	existed, err := f.jobs.Delete(id)
	if err != nil {
		return existed, err
	}
	f.logger.Info("delete job", "id", id, "existed", existed)
	return existed, f.Save()
}

// RunJob executes a stored job and persists the aggregate.
//
// Persistence records that the job was attempted, not that it succeeded:
// the aggregate is saved on the run's exit path whether or not the
// command failed. Asynchronous commands persist immediately without
// waiting for completion.
func (f *Factory) RunJob(ctx context.Context, id string) (machine.Result, error) {
	result, runErr := f.runner.Run(ctx, id)

	if j, err := f.jobs.Get(id); err == nil {
		f.recordAudit(ctx, audit.Event{
			Category: audit.CategoryJob,
			Subject:  id,
			Action:   j.Machine + "." + j.Action,
			Detail:   auditDetail(result.Detail, runErr),
		})
		f.telemetry.JobEvent(id, j.Machine, j.Action, runErr)
	}

	if err := f.Save(); err != nil {
		f.logger.Error("persisting after job run", "id", id, "error", err)
		if runErr == nil {
			return result, err
		}
	}
	return result, runErr
}

// Tools returns a copy of the tool metadata map.
func (f *Factory) Tools() map[string]Tool {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]Tool, len(f.tools))
	for k, v := range f.tools {
		out[k] = v
	}
	return out
}

// SetTool stores tool metadata and persists the aggregate.
func (f *Factory) SetTool(name string, t Tool) error {
	f.mu.Lock()
	t.Name = name
	f.tools[name] = t
	err := f.save()
	f.mu.Unlock()
	return err
}

// RemoveTool deletes tool metadata and persists the aggregate. It
// reports whether the tool existed.
func (f *Factory) RemoveTool(name string) (bool, error) {
	f.mu.Lock()
	_, existed := f.tools[name]
	delete(f.tools, name)
	err := f.save()
	f.mu.Unlock()
	return existed, err
}

// PlanPath delegates to the external path planner.
func (f *Factory) PlanPath(ctx context.Context, start, goal gantry.Pose, obstacles []Box, workspace Box) ([]gantry.Pose, error) {
	if f.planner == nil {
		return nil, ErrNoPlanner
	}
	return f.planner.PlanPath(ctx, start, goal, obstacles, workspace)
}

// RecordEvent appends to the audit trail, logging (not propagating) failures.
func (f *Factory) RecordEvent(ctx context.Context, e audit.Event) {
	f.recordAudit(ctx, e)
}

func (f *Factory) recordAudit(ctx context.Context, e audit.Event) {
	if f.audit == nil {
		return
	}
	if err := f.audit.Record(ctx, e); err != nil {
		f.logger.Warn("audit record failed", "category", e.Category, "error", err)
	}
}

// Telemetry returns the telemetry publisher (may be nil; nil is safe to use).
func (f *Factory) Telemetry() *telemetry.Publisher { return f.telemetry }

func auditDetail(detail string, err error) string {
	if err != nil {
		return "error: " + err.Error()
	}
	return detail
}
