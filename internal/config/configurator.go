package config

import (
	"fmt"
	"time"

	"github.com/lockd/lockd/internal/engine"
)

// Configurator is the per-evaluation record the user's top-level
// configuration function is handed. It accumulates the modules requested
// during one evaluation plus any idle thresholds queried, which implicitly
// require a wake-up when reached.
type Configurator struct {
	state *engine.State

	requested  []engine.Spec
	thresholds map[int]struct{}
}

// newConfigurator constructs a Configurator bound to the engine's current
// State snapshot. A fresh one is built for every reconciliation pass.
func newConfigurator(state *engine.State) *Configurator {
	return &Configurator{
		state:      state,
		thresholds: make(map[int]struct{}),
	}
}

// RunModule requests that the named module, with the given positional
// arguments, be part of Running for this evaluation.
func (c *Configurator) RunModule(name string, args ...string) {
	c.requested = append(c.requested, engine.NewSpec(name, args...))
}

// IsLocked reports the current lock state.
func (c *Configurator) IsLocked() bool {
	return c.state.Locked
}

// idleThresholdError is the panic value IsIdleFor raises for invalid
// input; the selector recovers it and reports it as a UserError.
type idleThresholdError struct {
	seconds int
}

func (e idleThresholdError) Error() string {
	return fmt.Sprintf("idle threshold must be a positive integer number of seconds, got %d", e.seconds)
}

// IsIdleFor reports whether the system has been idle for at least
// seconds. Querying a threshold registers it in the idle schedule so the
// scheduler and screen-saver configuration wake the engine when it is
// crossed, even if this call currently returns false.
func (c *Configurator) IsIdleFor(seconds int) bool {
	if seconds <= 0 {
		panic(idleThresholdError{seconds: seconds})
	}
	c.thresholds[seconds] = struct{}{}
	return c.state.GlobalIdleSince().IdleFor(time.Now(), time.Duration(seconds)*time.Second)
}
