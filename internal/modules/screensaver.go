package modules

import (
	"github.com/lockd/lockd/internal/engine"
)

// ScreensaverCfg is the screen-saver configuration module the
// Configuration Host emits, bound to the earliest idle threshold.
// It owns the X screen-saver extension bridge helper,
// telling it how long to wait before the extension itself considers the
// session idle.
type ScreensaverCfg struct {
	handle     engine.Handle
	helperPath string
	threshold  string
	sup        *Supervisor
}

// NewScreensaverCfgFactory returns the engine.Factory for "screensaver-cfg"
// specs, bound to the helper binary's path (from Settings' HelperPaths).
func NewScreensaverCfgFactory(helperPath string) engine.Factory {
	return func(h engine.Handle, spec engine.Spec) (engine.Module, error) {
		threshold := ""
		if len(spec.Args) > 0 {
			threshold = spec.Args[0]
		}
		m := &ScreensaverCfg{handle: h, helperPath: helperPath, threshold: threshold}
		m.sup = NewSupervisor(h, nil, m.onExit)
		return m, nil
	}
}

// Start spawns the helper with the current threshold.
func (m *ScreensaverCfg) Start() error {
	return m.sup.Start(m.helperPath, "--timeout", m.threshold)
}

// Stop kills the helper.
func (m *ScreensaverCfg) Stop() error {
	return m.sup.Stop()
}

// Reconfigure implements Reconfigurer: the helper accepts a live timeout
// directive over stdin, so changing the threshold never needs a
// stop/start cycle.
func (m *ScreensaverCfg) Reconfigure(args []string) bool {
	if len(args) != 1 {
		return false
	}
	if err := m.sup.WriteLine("timeout " + args[0]); err != nil {
		return false
	}
	m.threshold = args[0]
	return true
}

func (m *ScreensaverCfg) onExit(err error) {
	m.handle.Logger().Warn().Err(err).Msg("screen-saver configuration helper exited unexpectedly")
}
