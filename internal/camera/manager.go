package camera

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"
)

// Logger defines the logging interface used by the Manager.
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

// Config contains Manager tuning knobs, mapped from config.yaml.
type Config struct {
	// ProbeRange is the half-open range [0, ProbeRange) of device
	// indices Probe attempts to open.
	ProbeRange int

	// Options is the fixed capture configuration for every session.
	Options Options

	// StopTimeout bounds the wait for a capture loop to exit on teardown.
	StopTimeout time.Duration

	// ReopenGrace is the delay after closing a device before the same
	// key may be reopened, letting the OS fully release the device.
	ReopenGrace time.Duration

	// RetryBackoff is the capture loop's sleep after a transient read failure.
	RetryBackoff time.Duration
}

// Manager shares exclusive capture devices between concurrent consumers.
//
// Each key ("0", "cam1", ...) maps to at most one live Session holding
// the open device and its capture goroutine. Reference counting decides
// when the device is physically opened and closed: the first Acquire
// opens it, the matching last Release closes it.
//
// Thread Safety: all methods are safe for concurrent use. The registry
// lock covers only session creation and removal; steady-state frame
// reads never take it for the duration of use.
type Manager struct {
	backend Backend
	cfg     Config
	logger  Logger

	mu         sync.Mutex
	sessions   map[string]*Session
	lastClosed map[string]time.Time
}

// NewManager creates a camera manager over the given backend.
func NewManager(backend Backend, cfg Config) *Manager {
	return &Manager{
		backend:    backend,
		cfg:        cfg,
		logger:     noopLogger{},
		sessions:   make(map[string]*Session),
		lastClosed: make(map[string]time.Time),
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// Acquire takes a reference on the session for key, creating it on first use.
//
// Creating a session opens the device through the backend and starts its
// capture loop. If the device cannot be opened the error wraps
// ErrDeviceUnavailable, no reference is taken, and no loop is started.
//
// A key being torn down concurrently is waited out: the new consumer
// gets a fresh session once the old device is closed and the reopen
// grace period has passed.
func (m *Manager) Acquire(ctx context.Context, key string) error {
	index, err := deviceIndex(key)
	if err != nil {
		return err
	}

	for {
		m.mu.Lock()
		if s, ok := m.sessions[key]; ok {
			m.mu.Unlock()
			if s.retain() {
				m.logger.Debug("camera session retained", "key", key, "refs", s.refCount())
				return nil
			}
			// Torn down between lookup and retain; wait for the device
			// to close, then start over.
			select {
			case <-s.done:
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		wait := m.reopenWait(key)
		m.mu.Unlock()

		if wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		return m.open(ctx, key, index)
	}
}

// open creates the session for key. Called without the registry lock;
// re-checks under the lock so two racing first-acquires open once.
func (m *Manager) open(ctx context.Context, key string, index int) error {
	m.mu.Lock()
	if s, ok := m.sessions[key]; ok {
		m.mu.Unlock()
		if s.retain() {
			return nil
		}
		return m.Acquire(ctx, key)
	}

	dev, err := m.backend.Open(index, m.cfg.Options)
	if err != nil {
		m.mu.Unlock()
		m.logger.Warn("camera open failed", "key", key, "index", index, "error", err)
		return fmt.Errorf("%w: index %d: %w", ErrDeviceUnavailable, index, err)
	}

	s := newSession(key, dev)
	loopCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	m.sessions[key] = s
	m.mu.Unlock()

	go s.run(loopCtx, m.cfg.RetryBackoff)

	m.logger.Info("camera session opened", "key", key, "index", index)
	return nil
}

// Release drops a reference on the session for key.
//
// When the count reaches zero the capture loop is signalled, joined with
// a bounded timeout, and the device is closed unconditionally. The
// session then leaves the registry and the key enters its reopen grace
// period. Releasing an unheld key returns ErrNotAcquired; the count
// never goes negative.
func (m *Manager) Release(key string) error {
	m.mu.Lock()
	s, ok := m.sessions[key]
	m.mu.Unlock()
	if !ok {
		return ErrNotAcquired
	}

	last, err := s.releaseRef()
	if err != nil {
		return err
	}
	if !last {
		m.logger.Debug("camera session released", "key", key, "refs", s.refCount())
		return nil
	}

	s.stop(m.cfg.StopTimeout)

	m.mu.Lock()
	delete(m.sessions, key)
	m.lastClosed[key] = time.Now()
	m.mu.Unlock()

	m.logger.Info("camera session closed", "key", key)
	return nil
}

// LatestFrame returns the newest captured JPEG for key.
//
// The returned buffer is complete and immutable; it may lag the sensor
// by one frame but is never partially written. ErrNoFrame means the
// session is alive but has not captured yet.
func (m *Manager) LatestFrame(key string) ([]byte, error) {
	m.mu.Lock()
	s, ok := m.sessions[key]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotAcquired
	}
	return s.latest()
}

// RefCount returns the live reference count for key (0 if no session).
func (m *Manager) RefCount(key string) int {
	m.mu.Lock()
	s, ok := m.sessions[key]
	m.mu.Unlock()
	if !ok {
		return 0
	}
	return s.refCount()
}

// Probe attempts to open each device index in [0, ProbeRange) and
// reports the ones that succeed, closing each immediately.
//
// Indices owned by live sessions are reported as available without
// being touched; probing must not disturb an acquired device.
func (m *Manager) Probe(ctx context.Context) []int {
	held := m.heldIndices()

	var available []int
	for i := 0; i < m.cfg.ProbeRange; i++ {
		if ctx.Err() != nil {
			break
		}
		if _, ok := held[i]; ok {
			available = append(available, i)
			continue
		}
		dev, err := m.backend.Open(i, m.cfg.Options)
		if err != nil {
			continue
		}
		_ = dev.Close()
		available = append(available, i)
	}
	return available
}

// heldIndices returns the device indices currently owned by sessions.
func (m *Manager) heldIndices() map[int]struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	held := make(map[int]struct{}, len(m.sessions))
	for key := range m.sessions {
		if idx, err := deviceIndex(key); err == nil {
			held[idx] = struct{}{}
		}
	}
	return held
}

// CloseAll tears down every live session regardless of reference count.
// Used on shutdown only; per-consumer accounting no longer matters once
// the process is exiting.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for key, s := range m.sessions {
		s.mu.Lock()
		if !s.stopped {
			s.stopped = true
			s.refs = 0
			sessions = append(sessions, s)
		}
		s.mu.Unlock()
		delete(m.sessions, key)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.stop(m.cfg.StopTimeout)
	}
}

// reopenWait returns how much of the reopen grace period remains for key.
// Caller must hold m.mu.
func (m *Manager) reopenWait(key string) time.Duration {
	closed, ok := m.lastClosed[key]
	if !ok {
		return 0
	}
	if wait := m.cfg.ReopenGrace - time.Since(closed); wait > 0 {
		return wait
	}
	return 0
}

// deviceIndex extracts the numeric device index from a camera key.
// Accepts bare indices ("0") and prefixed forms ("cam0", "video2").
func deviceIndex(key string) (int, error) {
	if n, err := strconv.Atoi(key); err == nil {
		return n, nil
	}
	trimmed := strings.TrimLeftFunc(key, func(r rune) bool { return !unicode.IsDigit(r) })
	if n, err := strconv.Atoi(trimmed); err == nil {
		return n, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidKey, key)
}
