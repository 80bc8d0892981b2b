package session

import (
	"sync"

	"github.com/lockd/lockd/internal/engine"
)

// remoteSession is the Session implementation for a session.remote spec:
// a synthetic session populated entirely by the Optional Peer Bus from a
// remote peer's reported idle timestamp, rather than by local
// measurement.
type remoteSession struct {
	mu        sync.Mutex
	idleSince engine.IdleSince
}

func newRemoteSession(engine.Handle, engine.Spec) (engine.Module, error) {
	return &remoteSession{idleSince: engine.IdlePlusInf()}, nil
}

// Start/Stop are no-ops: a remote session has no local resource to
// acquire, only a value the bus pushes in via SetIdle.
func (s *remoteSession) Start() error { return nil }
func (s *remoteSession) Stop() error  { return nil }

// GetIdleSince implements Session.
func (s *remoteSession) GetIdleSince() engine.IdleSince {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idleSince
}

// Invalidate implements Session. There is no local ground truth to
// re-acquire; the next value comes from the peer's next message frame.
func (s *remoteSession) Invalidate() {}

// SetIdle implements RemoteIdleSetter: the bus calls this on every
// "message" frame it receives for this session.
func (s *remoteSession) SetIdle(idle engine.IdleSince) {
	s.mu.Lock()
	s.idleSince = idle
	s.mu.Unlock()
}

// RemoteIdleSetter is implemented by session.remote instances so the
// Optional Peer Bus can push idle updates without the session package
// depending on the bus package.
type RemoteIdleSetter interface {
	SetIdle(engine.IdleSince)
}

// NewRemoteFactory returns the engine.Factory for session.remote specs.
func NewRemoteFactory() engine.Factory {
	return newRemoteSession
}
