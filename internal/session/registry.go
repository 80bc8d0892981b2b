package session

import (
	"sync"

	"github.com/lockd/lockd/internal/engine"
)

// Registry holds the set of session specs currently attached via the
// control socket's attach/detach commands and installs the "30-sessions"
// selector that keeps Running following that set. It also
// implements engine.IdleProvider so the engine's State can compute the
// global idle measurement, and the sessionInvalidator hook the Registry
// uses on lock/unlock.
type Registry struct {
	handle engine.Handle
	get    func(engine.Spec) (engine.Module, error)

	mu       sync.Mutex
	attached map[string]engine.Spec
}

// New constructs a session Registry. get is typically engine.Registry.Get;
// kept as a function rather than an *engine.Registry dependency so tests
// can supply a fake.
func New(handle engine.Handle, get func(engine.Spec) (engine.Module, error)) *Registry {
	return &Registry{
		handle:   handle,
		get:      get,
		attached: make(map[string]engine.Spec),
	}
}

// Install registers the "30-sessions" selector on chain. Call once at
// composition time.
func (r *Registry) Install(chain *engine.SelectorChain) {
	chain.Set("30-sessions", r.selector)
}

func (r *Registry) selector(_ *engine.State, wanted *[]engine.Spec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.attached {
		*wanted = append(*wanted, s)
	}
}

// Attach adds spec to the attached set and reconciles. Re-attaching an
// already-attached spec is a no-op.
func (r *Registry) Attach(spec engine.Spec) {
	r.mu.Lock()
	if _, ok := r.attached[spec.Key()]; ok {
		r.mu.Unlock()
		return
	}
	r.attached[spec.Key()] = spec
	r.mu.Unlock()
	r.handle.Update()
}

// Detach removes spec from the attached set and reconciles. Detaching an
// unattached spec is a no-op.
func (r *Registry) Detach(spec engine.Spec) {
	r.mu.Lock()
	if _, ok := r.attached[spec.Key()]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.attached, spec.Key())
	r.mu.Unlock()
	r.handle.Update()
}

// Attached returns a snapshot of the currently attached session specs.
func (r *Registry) Attached() []engine.Spec {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]engine.Spec, 0, len(r.attached))
	for _, s := range r.attached {
		out = append(out, s)
	}
	return out
}

// OfKind returns the attached specs whose Kind is k, for the per-session
// launcher pattern.
func (r *Registry) OfKind(k Kind) []engine.Spec {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []engine.Spec
	for _, s := range r.attached {
		if s.Name == string(k) {
			out = append(out, s)
		}
	}
	return out
}

// GlobalIdleSince implements engine.IdleProvider: the maximum (i.e. latest,
// "least idle") idle_since across every attached session that has a live
// instance. Sessions referenced but not yet started are treated as not
// idle (engine.IdleAt of their construction time), which is whatever
// GetIdleSince on their instance already reports, so no special case is
// needed here.
func (r *Registry) GlobalIdleSince() engine.IdleSince {
	specs := r.Attached()
	if len(specs) == 0 {
		// No attached sessions: nothing can be idle on behalf of, so
		// idle-gated modules should never fire. Model as the wake-lock
		// sentinel: a scheduler only runs while the idle measurement is
		// finite and the schedule non-empty.
		return engine.IdlePlusInf()
	}

	var result engine.IdleSince
	first := true
	for _, spec := range specs {
		inst, err := r.get(spec)
		if err != nil {
			continue
		}
		sess, ok := inst.(Session)
		if !ok {
			continue
		}
		v := sess.GetIdleSince()
		if first {
			result = v
			first = false
			continue
		}
		result = result.Max(v)
	}
	if first {
		return engine.IdlePlusInf()
	}
	return result
}

// InvalidateAll forces every attached session with a live instance to
// reacquire ground truth on next read. Used by Lock/Unlock transitions.
func (r *Registry) InvalidateAll() {
	for _, spec := range r.Attached() {
		inst, err := r.get(spec)
		if err != nil {
			continue
		}
		if sess, ok := inst.(Session); ok {
			sess.Invalidate()
		}
	}
}
