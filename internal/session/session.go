// Package session implements the Session Abstraction: the
// per-attached-user-context module instances that contribute idle
// information and receive locking actions, plus the reusable per-session
// module launcher pattern.
package session

import (
	"github.com/lockd/lockd/internal/engine"
)

// Kind identifies the concrete session implementation named by the first
// positional element of a session Spec.
type Kind string

const (
	// KindX11 sessions are driven by the X11 screen-saver idle bridge.
	KindX11 Kind = "session.x11"
	// KindTTY sessions are driven by a TTY device's access/modify times.
	KindTTY Kind = "session.tty"
	// KindRemote sessions are synthetic, populated by the peer bus
	// from remote idle reports.
	KindRemote Kind = "session.remote"
)

// NewSpec builds the Spec identifying a session of kind k with the given
// identifier (an X display like ":0", a TTY device path, or a remote peer
// ID).
func NewSpec(k Kind, id string) engine.Spec {
	return engine.NewSpec(string(k), id)
}

// Session is the capability every attached-session module instance
// implements in addition to engine.Module.
type Session interface {
	engine.Module

	// GetIdleSince returns this session's current idle_since value, using
	// the same finite-or-sentinel representation as engine.IdleSince.
	GetIdleSince() engine.IdleSince

	// Invalidate forces the next GetIdleSince to reacquire ground truth
	// instead of serving a cached value.
	Invalidate()
}
