package camera

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Session owns one open capture device plus the goroutine reading from it.
//
// Lifecycle: created by Manager.Acquire on first use of a key, torn down
// by the Release that drops the reference count to zero. The device
// handle belongs to the capture goroutine for the session's lifetime;
// the teardown path closes it unconditionally after a bounded join so a
// wedged read can never leak the device.
type Session struct {
	key string
	dev Device

	// frame holds the most recent complete JPEG. Replaced wholesale on
	// every successful read; readers may see a stale frame, never a
	// partial one.
	frame atomic.Pointer[[]byte]

	mu      sync.Mutex
	refs    int
	stopped bool

	cancel context.CancelFunc
	done   chan struct{}
}

func newSession(key string, dev Device) *Session {
	return &Session{
		key:  key,
		dev:  dev,
		refs: 1,
		done: make(chan struct{}),
	}
}

// retain increments the reference count.
// It reports false if the session is already tearing down, in which case
// the caller must wait for it to leave the registry and start fresh.
func (s *Session) retain() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.refs++
	return true
}

// releaseRef decrements the reference count.
// It reports whether this release dropped the count to zero, making the
// caller responsible for teardown. A second concurrent zero-crossing is
// impossible: the stopped flag flips under the same lock.
func (s *Session) releaseRef() (last bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.refs == 0 {
		return false, ErrNotAcquired
	}
	s.refs--
	if s.refs == 0 {
		s.stopped = true
		return true, nil
	}
	return false, nil
}

// refCount returns the current reference count.
func (s *Session) refCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs
}

// latest returns the most recently captured frame.
func (s *Session) latest() ([]byte, error) {
	if p := s.frame.Load(); p != nil {
		return *p, nil
	}
	return nil, ErrNoFrame
}

// run is the capture loop. One per session, started by Manager.Acquire.
//
// A failed read is transient: the device may be mid-timeout or briefly
// starved, so the loop backs off and retries rather than tearing down
// the session. Only cancellation ends the loop.
func (s *Session) run(ctx context.Context, retryBackoff time.Duration) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		buf, err := s.dev.ReadFrame()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryBackoff):
			}
			continue
		}

		s.frame.Store(&buf)
	}
}

// stop signals the capture loop, waits up to stopTimeout for it to exit,
// then closes the device. The close is unconditional: a loop stuck in a
// slow read must not keep the device handle alive past the session.
func (s *Session) stop(stopTimeout time.Duration) {
	s.cancel()

	select {
	case <-s.done:
	case <-time.After(stopTimeout):
	}

	_ = s.dev.Close()
}
