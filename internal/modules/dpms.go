package modules

import (
	"github.com/lockd/lockd/internal/engine"
)

// DPMSHelper is the per-session DPMS-toggle module a Launcher fans out
// over every attached session.x11 instance. Unlike ScreensaverCfg (one
// global helper parameterized by idle threshold), one DPMSHelper instance
// runs per attached display, since DPMS is an X-server-level setting that
// only makes sense scoped to a particular display.
type DPMSHelper struct {
	handle     engine.Handle
	helperPath string
	display    string
	args       []string
	sup        *Supervisor
}

// NewDPMSHelperFactory returns the engine.Factory for "dpms-helper"
// specs. It is meant to be reached only via a Launcher fanning
// "dpms-helper" out over session.x11 instances, whose emitted spec shape
// is (kind, display, ...userArgs) — the kind argument is discarded here
// since the display alone identifies which X server to target.
func NewDPMSHelperFactory(helperPath string) engine.Factory {
	return func(h engine.Handle, spec engine.Spec) (engine.Module, error) {
		if len(spec.Args) < 2 {
			return nil, engine.NewUserError("dpms-helper requires (kind, display, ...args)")
		}
		m := &DPMSHelper{
			handle:     h,
			helperPath: helperPath,
			display:    spec.Args[1],
			args:       append([]string(nil), spec.Args[2:]...),
		}
		m.sup = NewSupervisor(h, nil, m.onExit)
		return m, nil
	}
}

// Start spawns the helper scoped to this instance's display.
func (m *DPMSHelper) Start() error {
	args := append([]string{"--display", m.display}, m.args...)
	return m.sup.Start(m.helperPath, args...)
}

// Stop kills the helper.
func (m *DPMSHelper) Stop() error {
	return m.sup.Stop()
}

func (m *DPMSHelper) onExit(err error) {
	m.handle.Logger().Warn().Err(err).Str("display", m.display).Msg("dpms helper exited unexpectedly")
}
