package engine

import (
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
)

// Registry is the Module Registry & Reconciler. It
// implements Handle so module instances can Enqueue/Update/Get/Lock/Unlock
// without holding a reference to the Registry itself.
//
// instances/running/wanted/factories are touched only from the Event Loop
// goroutine (AssertOnLoop checks this in Update, Lock, Unlock and
// SetSleeping; Get and RegisterFactory do not check it), so a starting or stopping module is free to call Update,
// Lock, Unlock or Get again re-entrantly without deadlocking on a mutex
// it would otherwise already hold — the whole call chain is just nested
// ordinary function calls on one goroutine. Only unlockWaiters, which
// callers from other goroutines append to, needs its own lock.
type Registry struct {
	log   zerolog.Logger
	loop  *Loop
	chain *SelectorChain
	state *State

	factories map[string]Factory
	instances map[string]Module // keyed by Spec.Key()
	running   []Spec            // historical start order; teardown is the reverse
	wanted    []Spec            // process-level: a re-entrant Update observes this

	invalidator sessionInvalidator

	waitersMu     sync.Mutex
	unlockWaiters []chan struct{}
}

// NewRegistry constructs a Registry bound to loop and chain, starting from
// an initial State (typically {Locked: false, Sleeping: false}).
func NewRegistry(log zerolog.Logger, loop *Loop, chain *SelectorChain, state *State) *Registry {
	return &Registry{
		log:       log,
		loop:      loop,
		chain:     chain,
		state:     state,
		factories: make(map[string]Factory),
		instances: make(map[string]Module),
	}
}

// RegisterFactory installs the Factory responsible for constructing
// instances of modules named name. Registering a name a second time
// replaces the factory (used by tests); production call sites register
// each built-in module exactly once at startup, before the loop runs.
func (r *Registry) RegisterFactory(name string, f Factory) {
	r.factories[name] = f
}

// Selectors exposes the chain so callers (the Configuration Host, the
// Session registry, per-session launchers) can install/remove selectors.
func (r *Registry) Selectors() *SelectorChain { return r.chain }

// State returns the live state record. Callers must only mutate it from
// the Event Loop goroutine.
func (r *Registry) State() *State { return r.state }

// ---- Handle implementation ----

func (r *Registry) Enqueue(f func()) { r.loop.Enqueue(f) }

func (r *Registry) Logger() zerolog.Logger { return r.log }

func (r *Registry) Lock() {
	r.loop.AssertOnLoop()
	if r.state.Locked {
		return
	}
	r.state.Locked = true
	_ = r.Update()
}

func (r *Registry) Unlock() {
	r.loop.AssertOnLoop()
	if !r.state.Locked {
		return
	}
	r.state.Locked = false
	r.invalidateSessions()
	r.notifyUnlockWaiters()
	_ = r.Update()
}

// SetSleeping implements Handle. It is the Sleep/Signal Integration
// component's entry point for both pre-sleep and post-sleep
// notifications.
func (r *Registry) SetSleeping(sleeping bool) {
	r.loop.AssertOnLoop()
	if r.state.Sleeping == sleeping {
		return
	}
	r.state.Sleeping = sleeping
	_ = r.Update()
}

// WaitUnlock returns a channel that is closed the next time Unlock runs.
// Used by callers (e.g. a CLI "unlock" command waiting for confirmation)
// that need to observe the transition rather than just trigger it. Safe
// to call from any goroutine.
func (r *Registry) WaitUnlock() <-chan struct{} {
	ch := make(chan struct{})
	r.waitersMu.Lock()
	r.unlockWaiters = append(r.unlockWaiters, ch)
	r.waitersMu.Unlock()
	return ch
}

func (r *Registry) notifyUnlockWaiters() {
	r.waitersMu.Lock()
	waiters := r.unlockWaiters
	r.unlockWaiters = nil
	r.waitersMu.Unlock()
	for _, ch := range waiters {
		close(ch)
	}
}

// sessionInvalidator is implemented by the session registry's selector
// target; wired via SetInvalidator so lock/unlock can force fresh idle
// measurement.
type sessionInvalidator interface {
	InvalidateAll()
}

// sessionInvalidatorFunc adapts a function to sessionInvalidator.
type sessionInvalidatorFunc func()

func (f sessionInvalidatorFunc) InvalidateAll() { f() }

func (r *Registry) invalidateSessions() {
	if r.invalidator != nil {
		r.invalidator.InvalidateAll()
	}
}

// SetInvalidator wires the session registry's invalidate-all hook. Called
// once at composition time.
func (r *Registry) SetInvalidator(inv func()) {
	r.invalidator = sessionInvalidatorFunc(inv)
}

// Get returns (constructing via the registered Factory if necessary) the
// instance for spec. Construction does not Start the module: an instance
// may exist fully constructed without having been started.
func (r *Registry) Get(spec Spec) (Module, error) {
	if inst, ok := r.instances[spec.Key()]; ok {
		return inst, nil
	}
	factory, ok := r.factories[spec.Name]
	if !ok {
		return nil, NewUserError("no module registered for %q", spec.Name)
	}
	inst, err := factory(r, spec)
	if err != nil {
		return nil, err
	}
	r.instances[spec.Key()] = inst
	return inst, nil
}

// CLICommand constructs (without starting) the module for spec and
// routes args to it, for the `lockctl module` out-of-daemon path — run as
// a standalone invocation with no Event Loop, so it does not go through
// Enqueue.
func (r *Registry) CLICommand(spec Spec, args []string) (string, error) {
	inst, err := r.Get(spec)
	if err != nil {
		return "", err
	}
	cmder, ok := inst.(CLICommander)
	if !ok {
		return "", NewUserError("module %q does not support CLI commands", spec.Name)
	}
	return cmder.CLICommand(args)
}

// SocketCommand routes args to the running instance for spec, for the
// control socket's "module" command. Called only from within an
// Enqueue'd task, so it runs on the Event Loop.
func (r *Registry) SocketCommand(spec Spec, args []string) (string, error) {
	inst, ok := r.instances[spec.Key()]
	if !ok {
		return "", NewUserError("module %q is not running", spec.Name)
	}
	cmder, ok := inst.(SocketCommander)
	if !ok {
		return "", NewUserError("module %q does not support socket commands", spec.Name)
	}
	return cmder.SocketCommand(args)
}

// Running returns a snapshot of the current Running list.
func (r *Registry) Running() []Spec {
	out := make([]Spec, len(r.running))
	copy(out, r.running)
	return out
}

// Wanted returns a snapshot of the Wanted list from the most recent pass.
func (r *Registry) Wanted() []Spec {
	out := make([]Spec, len(r.wanted))
	copy(out, r.wanted)
	return out
}

// Update is the reconciliation entry point. It is safe to
// call re-entrantly: because wanted is a Registry field rather than a
// local, a nested call observes the Wanted list as it stands at the
// moment of the nested call, and the outer call resumes against whatever
// state the nested call left behind. The returned error, if any, is a
// soft aggregate of every ModuleStopFailure/ModuleStartFailure observed
// during this pass — never fatal, always safe to ignore for a daemon
// that's driving itself from a timer or signal rather than a command.
func (r *Registry) Update() error {
	r.loop.AssertOnLoop()

	r.wanted = r.buildWanted()
	return r.reconcile()
}

func (r *Registry) buildWanted() []Spec {
	raw := r.chain.Build(r.state)
	return r.expandDependencies(raw)
}

// expandDependencies recursively prepends each spec's dependencies ahead
// of it, preserving first-occurrence order overall.
// Referencing a spec here counts as its "first reference" for lazy
// construction purposes even if it's never started.
func (r *Registry) expandDependencies(wanted []Spec) []Spec {
	var result []Spec
	seen := make(map[string]bool, len(wanted)*2)

	var visit func(s Spec)
	visit = func(s Spec) {
		if seen[s.Key()] {
			return
		}
		seen[s.Key()] = true

		inst, err := r.Get(s)
		if err != nil {
			// A spec the Configurator or a selector asked for but that
			// names no registered module is a user error; drop it rather
			// than aborting the whole reconciliation, isolating a single
			// bad request from the rest.
			r.log.Warn().Str("spec", s.String()).Err(err).Msg("dropping unresolvable spec from wanted set")
			return
		}
		if dp, ok := inst.(DependencyProvider); ok {
			for _, dep := range dp.Dependencies() {
				visit(dep)
			}
		}
		result = append(result, s)
	}

	for _, s := range wanted {
		visit(s)
	}
	return result
}

// reconcile performs the one-action-per-pass loop: each pass prefers a
// reconfigure, then a stop, then a start, capped at
// len(wanted)+len(running)+1 passes as a live-lock guard. Stop failures
// are logged and swallowed into a soft, aggregated error — a
// ModuleStopFailure never aborts reconciliation. Start failures abort only
// the spec that failed — it is
// dropped from this call's retry set so a persistently broken module
// doesn't spin the pass loop — and are aggregated into the same error so
// the caller (e.g. an explicit "lock" command) can see that its action
// didn't fully succeed.
func (r *Registry) reconcile() error {
	var errs error
	failedStarts := make(map[string]bool)
	maxPasses := len(r.wanted) + len(r.running) + 1

	for pass := 0; pass < maxPasses; pass++ {
		if r.tryReconfigure() {
			continue
		}
		if acted, err := r.tryStop(); acted {
			if err != nil {
				errs = multierror.Append(errs, err)
			}
			continue
		}
		if acted, err := r.tryStart(failedStarts); acted {
			if err != nil {
				errs = multierror.Append(errs, err)
			}
			continue
		}
		// No applicable action: this pass was a no-op, reconciliation is
		// stable.
		return errs
	}

	r.log.Warn().Int("passes", maxPasses).Msg("reconciliation hit its pass cap without converging")
	return errs
}

// tryReconfigure looks for a Wanted spec not in Running whose same-named
// Running counterpart can adopt the new parameters in place.
func (r *Registry) tryReconfigure() bool {
	for _, w := range r.wanted {
		if indexOf(r.running, w) >= 0 {
			continue
		}
		ri := indexOfName(r.running, w.Name)
		if ri < 0 {
			continue
		}
		old := r.running[ri]
		if indexOf(r.wanted, old) >= 0 {
			// old is itself still wanted verbatim; this isn't a
			// reconfigure candidate, it's a genuine stop+start.
			continue
		}
		inst, ok := r.instances[old.Key()]
		if !ok {
			continue
		}
		reconf, ok := inst.(Reconfigurer)
		if !ok {
			continue
		}
		if !reconf.Reconfigure(w.Args) {
			continue
		}

		delete(r.instances, old.Key())
		r.instances[w.Key()] = inst
		r.running[ri] = w
		r.log.Info().Str("old", old.String()).Str("new", w.String()).Msg("reconfigured module in place")
		return true
	}
	return false
}

// tryStop scans Running from the end backwards (reverse of start order)
// for the first spec no longer in Wanted.
func (r *Registry) tryStop() (acted bool, err error) {
	for i := len(r.running) - 1; i >= 0; i-- {
		s := r.running[i]
		if indexOf(r.wanted, s) >= 0 {
			continue
		}
		r.running = append(r.running[:i], r.running[i+1:]...)

		inst, ok := r.instances[s.Key()]
		delete(r.instances, s.Key())
		if !ok {
			return true, nil
		}
		if stopErr := inst.Stop(); stopErr != nil {
			wrapped := &ModuleStopFailure{Spec: s, Err: stopErr}
			r.log.Error().Str("spec", s.String()).Err(stopErr).Msg("module stop failed, continuing reconciliation")
			return true, wrapped
		}
		return true, nil
	}
	return false, nil
}

// tryStart scans Wanted in order for the first spec not yet in Running
// and not already known to have failed to start this call.
func (r *Registry) tryStart(failedStarts map[string]bool) (acted bool, err error) {
	for _, s := range r.wanted {
		if indexOf(r.running, s) >= 0 {
			continue
		}
		if failedStarts[s.Key()] {
			continue
		}
		inst, getErr := r.Get(s)
		if getErr != nil {
			failedStarts[s.Key()] = true
			continue
		}
		r.running = append(r.running, s)
		if startErr := inst.Start(); startErr != nil {
			r.log.Error().Str("spec", s.String()).Err(startErr).Msg("module start failed, aborting its enclosing action")
			if idx := indexOf(r.running, s); idx >= 0 {
				r.running = append(r.running[:idx], r.running[idx+1:]...)
			}
			delete(r.instances, s.Key())
			failedStarts[s.Key()] = true
			return true, &ModuleStartFailure{Spec: s, Err: startErr}
		}
		return true, nil
	}
	return false, nil
}
