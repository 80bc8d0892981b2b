package engine

import "github.com/rs/zerolog"

// Handle is the narrow capability surface injected into every module
// instance. No module holds a pointer to the Engine itself — only this
// handle — so the dependency graph between engine and modules stays
// one-directional.
type Handle interface {
	// Enqueue schedules f to run on the Event Loop goroutine. Safe to call
	// from any goroutine, including module worker threads.
	Enqueue(f func())

	// Update triggers a reconciliation pass. Safe to call re-entrantly from
	// within a module's Start/Stop; Update always observes the
	// then-current Wanted list. The returned error, if any, is the soft
	// aggregate described on Registry.Update.
	Update() error

	// Get returns (constructing if necessary) the instance for spec,
	// without affecting Running or Wanted.
	Get(spec Spec) (Module, error)

	// Lock transitions the engine into the locked state and reconciles.
	// It is idempotent if already locked.
	Lock()

	// Unlock transitions the engine out of the locked state, invalidates
	// all session idle caches, notifies unlock waiters, and reconciles.
	Unlock()

	// SetSleeping records the OS sleep-prepare state and reconciles.
	// While true, the global idle measurement reads as −∞, so every
	// idle-gated module, including the lock, starts regardless of
	// threshold.
	SetSleeping(sleeping bool)

	// Logger returns a logger scoped to the calling component.
	Logger() zerolog.Logger
}
