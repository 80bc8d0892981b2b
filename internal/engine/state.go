package engine

// IdleProvider is implemented by the session registry and supplies the
// global idle measurement the Configurator, Idle Scheduler and lock
// selectors read. Kept as an interface (rather than engine importing the
// session package directly) so sessions can depend on the engine handle
// without creating an import cycle.
type IdleProvider interface {
	GlobalIdleSince() IdleSince
}

// State is the small system-state record: locked and sleeping flags plus,
// indirectly through Idle, per-session data. Only the Event Loop goroutine
// mutates State; selectors only read it.
type State struct {
	Locked   bool
	Sleeping bool
	Idle     IdleProvider
}

// GlobalIdleSince returns the system-wide idle measurement, or the
// wake-lock sentinel if no IdleProvider has been wired up yet. While
// Sleeping is true this always reads as −∞, regardless of any individual
// session's reported idle time: a system mid-suspend counts as maximally
// idle, so every idle threshold reads as reached.
func (s *State) GlobalIdleSince() IdleSince {
	if s.Sleeping {
		return IdleMinusInf()
	}
	if s.Idle == nil {
		return IdlePlusInf()
	}
	return s.Idle.GlobalIdleSince()
}
