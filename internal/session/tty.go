package session

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/lockd/lockd/internal/engine"
)

// TTYPollInterval governs how often a tty session restats its device.
// Chosen well below any realistic idle threshold so mtime changes are
// observed promptly without busy-polling.
var TTYPollInterval = 5 * time.Second

// ttySession is the Session implementation for a character device whose
// access or modification time (whichever is later) is used as a proxy for
// keyboard/mouse activity (the mechanism ordinary getty-attached consoles
// expose).
type ttySession struct {
	handle engine.Handle
	path   string

	mu        sync.Mutex
	idleSince engine.IdleSince
	stopCh    chan struct{}
}

func newTTYSession(handle engine.Handle, spec engine.Spec) (engine.Module, error) {
	path := ""
	if len(spec.Args) > 0 {
		path = spec.Args[0]
	}
	return &ttySession{
		handle:    handle,
		path:      path,
		idleSince: engine.IdleAt(time.Now()),
	}, nil
}

// Start begins polling the device's access/modify times on its own goroutine.
func (s *ttySession) Start() error {
	s.mu.Lock()
	s.stopCh = make(chan struct{})
	stop := s.stopCh
	s.mu.Unlock()

	s.poll()
	go s.loop(stop)
	return nil
}

// Stop ends the polling goroutine.
func (s *ttySession) Stop() error {
	s.mu.Lock()
	stop := s.stopCh
	s.stopCh = nil
	s.mu.Unlock()
	if stop != nil {
		close(stop)
	}
	return nil
}

func (s *ttySession) loop(stop chan struct{}) {
	t := time.NewTicker(TTYPollInterval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			// poll's eventual Update() call requires the Event Loop
			// goroutine; the ticker fires on this goroutine instead, so
			// marshal onto the loop rather than calling poll directly.
			s.handle.Enqueue(func() { s.poll() })
		}
	}
}

// activityTime reports whichever of a character device's access or
// modify time is more recent: keystrokes update atime on most ttys,
// while some drivers only bump mtime, so the later of the two is the
// better activity proxy than either alone.
func activityTime(path string) (time.Time, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return time.Time{}, err
	}
	atime := time.Unix(st.Atim.Sec, st.Atim.Nsec)
	mtime := time.Unix(st.Mtim.Sec, st.Mtim.Nsec)
	if mtime.After(atime) {
		return mtime, nil
	}
	return atime, nil
}

func (s *ttySession) poll() {
	mtime, err := activityTime(s.path)
	if err != nil {
		// Device briefly gone (e.g. a hot-unplugged terminal): keep the
		// last known idle_since rather than guessing.
		return
	}

	s.mu.Lock()
	changed := !s.idleSince.IsFinite() || mtime.After(s.idleSince.At())
	if changed {
		s.idleSince = engine.IdleAt(mtime)
	}
	s.mu.Unlock()

	if changed {
		s.handle.Update()
	}
}

// GetIdleSince implements Session.
func (s *ttySession) GetIdleSince() engine.IdleSince {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idleSince
}

// Invalidate implements Session by forcing an immediate restat rather
// than waiting for the next poll tick.
func (s *ttySession) Invalidate() {
	s.poll()
}

// NewTTYFactory returns the engine.Factory for session.tty specs.
func NewTTYFactory() engine.Factory {
	return func(h engine.Handle, spec engine.Spec) (engine.Module, error) {
		return newTTYSession(h, spec)
	}
}
