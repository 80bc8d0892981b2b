package session

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/lockd/lockd/internal/engine"
)

// Launcher implements the reusable per-session module launcher pattern:
// a module whose sole effect is installing a dynamically keyed selector
// that fans a helper module out over every currently attached session of
// a given Kind, and removing that selector on stop.
// A Launcher's own spec is (launcherName, kind, helperName, userArgs...).
type Launcher struct {
	chain    *engine.SelectorChain
	registry *Registry
	handle   engine.Handle

	id         string
	kind       Kind
	helperName string
	userArgs   []string
	key        string
}

func newLauncher(handle engine.Handle, chain *engine.SelectorChain, registry *Registry, spec engine.Spec) (engine.Module, error) {
	if len(spec.Args) < 2 {
		return nil, engine.NewUserError(fmt.Sprintf("per-session launcher %q requires (kind, helperName, ...args)", spec.Name))
	}
	return &Launcher{
		chain:      chain,
		registry:   registry,
		handle:     handle,
		id:         uuid.NewString(),
		kind:       Kind(spec.Args[0]),
		helperName: spec.Args[1],
		userArgs:   append([]string(nil), spec.Args[2:]...),
	}, nil
}

// NewLauncherFactory returns the engine.Factory for per-session launcher
// specs, bound to a selector chain and the session registry it fans over.
func NewLauncherFactory(chain *engine.SelectorChain, registry *Registry) engine.Factory {
	return func(h engine.Handle, spec engine.Spec) (engine.Module, error) {
		return newLauncher(h, chain, registry, spec)
	}
}

// Start installs the fan-out selector and triggers an immediate
// reconciliation so already-attached sessions get their helper right
// away, rather than waiting for the next attach/detach.
func (l *Launcher) Start() error {
	l.key = fmt.Sprintf("40-%s-%s-%s", l.id, l.kind, l.helperName)
	l.chain.Set(l.key, l.selector)
	l.handle.Update()
	return nil
}

// Stop removes the fan-out selector; the helpers it had been emitting
// fall out of Wanted on the next reconciliation, which the caller
// (engine's Reconciler) drives.
func (l *Launcher) Stop() error {
	l.chain.Remove(l.key)
	return nil
}

func (l *Launcher) selector(_ *engine.State, wanted *[]engine.Spec) {
	for _, s := range l.registry.OfKind(l.kind) {
		args := append([]string{string(l.kind), sessionID(s)}, l.userArgs...)
		*wanted = append(*wanted, engine.NewSpec(l.helperName, args...))
	}
}

// sessionID extracts the identifier positional argument from a session
// Spec built by NewSpec.
func sessionID(s engine.Spec) string {
	if len(s.Args) == 0 {
		return ""
	}
	return s.Args[0]
}
