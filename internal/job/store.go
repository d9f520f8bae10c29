package job

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
)

// Logger defines the logging interface used by the Store.
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

// filePermissions is the mode for the persisted jobs file.
const filePermissions = 0644

// Store holds the cell's job records in memory, backed by whole-file
// JSON persistence.
//
// Ids are monotonically assigned from a counter that is seeded past the
// highest loaded id and never decremented, so an id is never reused
// within a process lifetime even after deletion.
//
// Thread Safety: all methods are safe for concurrent use.
type Store struct {
	templates Templates
	logger    Logger

	mu      sync.Mutex
	path    string
	counter int
	jobs    map[string]Job
}

// NewStore creates an empty job store with the given templates.
func NewStore(templates Templates) *Store {
	return &Store{
		templates: templates,
		logger:    noopLogger{},
		jobs:      make(map[string]Job),
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// Load reads the jobs file at path into the store.
//
// A missing, empty, or corrupt file degrades to an empty store with a
// logged warning; startup never fails on bad job state. The id counter
// is seeded one past the highest numeric id found.
func (s *Store) Load(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.path = path
	s.jobs = make(map[string]Job)

	if path == "" {
		s.logger.Warn("jobs file path is empty, starting with no jobs")
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		s.logger.Warn("jobs file not readable, starting with no jobs", "path", path, "error", err)
		return
	}
	if len(data) == 0 {
		s.logger.Warn("jobs file is empty, starting with no jobs", "path", path)
		return
	}

	var loaded map[string]Job
	if err := json.Unmarshal(data, &loaded); err != nil {
		s.logger.Warn("jobs file is not valid JSON, starting with no jobs", "path", path, "error", err)
		return
	}

	for id, j := range loaded {
		j.ID = id
		if j.Params == nil {
			j.Params = map[string]any{}
		}
		s.jobs[id] = j
		if n, err := strconv.Atoi(id); err == nil && n >= s.counter {
			s.counter = n + 1
		}
	}

	s.logger.Info("jobs loaded", "path", path, "count", len(s.jobs))
}

// Path returns the persisted jobs file path.
func (s *Store) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Add creates a new job with the next id, pre-populated from the
// parameter template for the default machine and action.
//
// The job is stored in memory even if persistence fails; the error
// reports the failed write so the caller can surface it.
func (s *Store) Add() (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strconv.Itoa(s.counter)
	s.counter++

	j := Job{
		ID:      id,
		Machine: DefaultMachine,
		Action:  DefaultAction,
		Params:  s.templates.Defaults(DefaultMachine, DefaultAction),
	}
	s.jobs[id] = j

	err := s.save()
	s.logger.Info("job added", "id", id)
	return j.Clone(), err
}

// Update overwrites the job with the same id and persists.
//
// Numeric ids at or above the counter bump it so a later Add can never
// collide with an externally supplied id.
func (s *Store) Update(j Job) error {
	if j.ID == "" {
		return ErrInvalidJob
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if j.Params == nil {
		j.Params = map[string]any{}
	}
	s.jobs[j.ID] = j.Clone()
	if n, err := strconv.Atoi(j.ID); err == nil && n >= s.counter {
		s.counter = n + 1
	}

	err := s.save()
	s.logger.Info("job updated", "id", j.ID)
	return err
}

// Delete removes the job if present (no-op otherwise) and persists.
// It reports whether anything was removed.
func (s *Store) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.jobs[id]
	if existed {
		delete(s.jobs, id)
	}

	err := s.save()
	s.logger.Info("job deleted", "id", id, "existed", existed)
	return existed, err
}

// Get returns a copy of the job with the given id.
func (s *Store) Get(id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return j.Clone(), nil
}

// List returns copies of all jobs ordered by id (numeric ids first, in
// numeric order).
func (s *Store) List() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.Clone())
	}
	sort.Slice(out, func(i, k int) bool {
		ni, erri := strconv.Atoi(out[i].ID)
		nk, errk := strconv.Atoi(out[k].ID)
		switch {
		case erri == nil && errk == nil:
			return ni < nk
		case erri == nil:
			return true
		case errk == nil:
			return false
		default:
			return out[i].ID < out[k].ID
		}
	})
	return out
}

// Count returns the number of stored jobs.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Persist forces a write of the current state. Used by callers that
// mutated nothing but need the file refreshed (e.g. after a run).
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

// save writes the whole job map to the jobs file. Caller must hold s.mu.
func (s *Store) save() error {
	if s.path == "" {
		return ErrNoSavePath
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
		return fmt.Errorf("creating jobs directory: %w", err)
	}

	data, err := json.MarshalIndent(s.jobs, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding jobs: %w", err)
	}

	if err := os.WriteFile(s.path, data, filePermissions); err != nil {
		return fmt.Errorf("writing jobs file: %w", err)
	}
	return nil
}
