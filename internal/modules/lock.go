package modules

import (
	"strings"

	"github.com/lockd/lockd/internal/engine"
)

// Lock is the lock-screen module. Its Start drives the engine into the
// locked state and spawns the lock screen child; the child exiting is the
// edge that drives the engine back out.
type Lock struct {
	handle     engine.Handle
	helperPath string
	sup        *Supervisor
}

// NewLockFactory returns the engine.Factory for "lock" specs, bound to
// the lock-screen helper binary's path.
func NewLockFactory(helperPath string) engine.Factory {
	return func(h engine.Handle, spec engine.Spec) (engine.Module, error) {
		m := &Lock{handle: h, helperPath: helperPath}
		m.sup = NewSupervisor(h, nil, m.onExit)
		return m, nil
	}
}

// Start transitions the engine from unlocked to locked and spawns the
// lock-screen child.
func (m *Lock) Start() error {
	if err := m.sup.Start(m.helperPath); err != nil {
		return err
	}
	m.handle.Lock()
	return nil
}

// Stop kills the lock-screen child without itself touching the lock
// state — an explicit "unlock" transitions the engine first, and that
// reconciliation is what stops this module.
func (m *Lock) Stop() error {
	return m.sup.Stop()
}

// onExit is the "LOCKED → UNLOCKED on ... the lock-screen child exiting"
// edge.
func (m *Lock) onExit(err error) {
	m.handle.Logger().Info().Err(err).Msg("lock screen exited, unlocking")
	m.handle.Unlock()
}

// SocketCommand forwards directives (e.g. "dismiss") to the lock screen
// child's stdin, for the control socket's "module" command.
func (m *Lock) SocketCommand(args []string) (string, error) {
	if len(args) == 0 {
		return "", engine.NewUserError("lock: missing command")
	}
	if err := m.sup.WriteLine(strings.Join(args, " ")); err != nil {
		return "", err
	}
	return "ok", nil
}
