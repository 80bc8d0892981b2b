// Package scheduler implements the Idle Scheduler: a single-shot timer
// module parameterized by the full idle schedule that wakes the engine at
// the next configured threshold.
package scheduler

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/lockd/lockd/internal/engine"
)

// IdleSource is what the scheduler needs from the session registry:
// the global idle measurement, and the ability to force every session to
// reacquire ground truth right as a threshold fires.
type IdleSource interface {
	GlobalIdleSince() engine.IdleSince
	InvalidateAll()
}

// Module is the scheduler. When the Configuration Host's "20-config"
// selector emits a different schedule, the running instance adopts the
// changed threshold set via Reconfigure rather than being re-created
// through a stop/start cycle (see DESIGN.md for why).
type Module struct {
	handle engine.Handle
	idle   IdleSource

	mu         sync.Mutex
	thresholds []int // sorted ascending
	timer      *time.Timer
	stopped    bool
}

// NewFactory returns the engine.Factory for "scheduler" specs, bound to
// the IdleSource (the session registry) it reads the current measurement
// from and invalidates on fire. Handle alone does not expose idle state,
// so it is supplied at composition time the same way the per-session
// launcher factory closes over the selector chain.
func NewFactory(idle IdleSource) engine.Factory {
	return func(h engine.Handle, spec engine.Spec) (engine.Module, error) {
		thresholds, err := parseThresholds(spec.Args)
		if err != nil {
			return nil, err
		}
		return &Module{handle: h, idle: idle, thresholds: thresholds}, nil
	}
}

func parseThresholds(args []string) ([]int, error) {
	out := make([]int, 0, len(args))
	for _, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil || n <= 0 {
			return nil, engine.NewUserError("scheduler: invalid idle threshold %q", a)
		}
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}

// Start schedules the first fire.
func (m *Module) Start() error {
	m.scheduleNext()
	return nil
}

// Stop cancels any pending timer.
func (m *Module) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	if m.timer != nil {
		m.timer.Stop()
	}
	return nil
}

// Reconfigure adopts a new threshold set in place and reschedules against
// it (see DESIGN.md for why reconfigure-in-place was chosen over a
// stop/start cycle). It only fails (returns false) on malformed args,
// which the Reconciler then treats as a stop/start instead.
func (m *Module) Reconfigure(args []string) bool {
	thresholds, err := parseThresholds(args)
	if err != nil {
		return false
	}
	m.mu.Lock()
	m.thresholds = thresholds
	m.mu.Unlock()
	m.scheduleNext()
	return true
}

// scheduleNext computes the nearest threshold strictly greater than the
// current idle time and arms a timer for the residual. A wake-lock
// (idle_since = +∞) suppresses scheduling entirely; Start/Reconfigure are
// still safe to call in that state, they simply leave no timer armed
// until the next Reconfigure or restart finds a finite measurement.
func (m *Module) scheduleNext() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}

	idle := m.idle.GlobalIdleSince()
	if !idle.IsFinite() {
		return
	}
	elapsed := idle.Elapsed(time.Now())

	next, ok := nearestAbove(m.thresholds, elapsed)
	if !ok {
		return
	}
	residual := next - elapsed
	if residual < 0 {
		residual = 0
	}

	m.timer = time.AfterFunc(residual, m.fire)
}

// nearestAbove returns the smallest threshold strictly greater than
// elapsed, as a Duration, or false if every threshold has already been
// passed.
func nearestAbove(thresholds []int, elapsed time.Duration) (time.Duration, bool) {
	for _, t := range thresholds {
		d := time.Duration(t) * time.Second
		if d > elapsed {
			return d, true
		}
	}
	return 0, false
}

// fire runs on the timer's own goroutine; it marshals onto the Event
// Loop per the Event Loop's single-writer invariant before touching
// shared state.
func (m *Module) fire() {
	m.handle.Enqueue(func() {
		m.idle.InvalidateAll()
		m.handle.Update()
		m.scheduleNext()
	})
}
