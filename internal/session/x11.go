package session

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lockd/lockd/internal/engine"
	"github.com/lockd/lockd/internal/modules"
)

// X11BridgePath is the external helper that watches an X display's
// screen-saver extension and reports idle transitions on stdout, one
// event per line, as "<unix-millis> <idle|active|wake-lock>". It is a documented
// external contract, not something this package implements.
var X11BridgePath = "xss-bridge"

// x11Session is the Session implementation for an X display, driven by
// X11BridgePath's stdout protocol via a Supervisor.
type x11Session struct {
	handle  engine.Handle
	display string
	sup     *modules.Supervisor

	mu         sync.Mutex
	idleSince  engine.IdleSince
	invalidate bool
}

func newX11Session(handle engine.Handle, spec engine.Spec) (engine.Module, error) {
	display := ""
	if len(spec.Args) > 0 {
		display = spec.Args[0]
	}
	s := &x11Session{handle: handle, display: display}
	s.idleSince = engine.IdleAt(time.Now())
	s.sup = modules.NewSupervisor(handle, s.onLine, s.onExit)
	return s, nil
}

// Start spawns the bridge for this display.
func (s *x11Session) Start() error {
	return s.sup.Start(X11BridgePath, "--display", s.display)
}

// Stop kills the bridge.
func (s *x11Session) Stop() error {
	return s.sup.Stop()
}

func (s *x11Session) onLine(line string) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return
	}
	ms, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return
	}
	at := time.UnixMilli(ms)

	s.mu.Lock()
	switch fields[1] {
	case "active":
		s.idleSince = engine.IdleAt(at)
	case "idle":
		s.idleSince = engine.IdleAt(at)
	case "wake-lock":
		s.idleSince = engine.IdlePlusInf()
	}
	s.mu.Unlock()

	s.handle.Update()
}

// onExit logs the bridge's exit. The session stays attached and in
// Running, and the bridge is not restarted; GetIdleSince keeps reporting
// the last value received. A fresh bridge is spawned only when the
// session is detached and attached again.
func (s *x11Session) onExit(err error) {
	s.handle.Logger().Warn().Err(err).Str("display", s.display).Msg("x11 idle bridge exited")
}

// GetIdleSince implements Session.
func (s *x11Session) GetIdleSince() engine.IdleSince {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idleSince
}

// Invalidate implements Session. The bridge is event-driven rather than
// polled, so there is no ground truth to re-acquire beyond waiting for
// its next report; Invalidate here only resets the cached value to "now"
// so a stale idle measurement from before an unlock does not immediately
// re-trigger idle-gated modules.
func (s *x11Session) Invalidate() {
	s.mu.Lock()
	s.idleSince = engine.IdleAt(time.Now())
	s.mu.Unlock()
}

// NewX11Factory returns the engine.Factory for session.x11 specs, for
// registration with the engine Registry.
func NewX11Factory() engine.Factory {
	return func(h engine.Handle, spec engine.Spec) (engine.Module, error) {
		return newX11Session(h, spec)
	}
}
