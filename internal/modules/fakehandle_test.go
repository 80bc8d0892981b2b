package modules

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/lockd/lockd/internal/engine"
)

// fakeHandle runs Enqueue'd tasks inline on whatever goroutine calls it
// (the Supervisor's watcher goroutine, in these tests), serialized by mu so
// concurrent onLine/onExit callbacks don't race the test's own assertions.
type fakeHandle struct {
	mu          sync.Mutex
	lines       []string
	err         error
	done        chan struct{}
	lockCalls   int
	unlockCalls int
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{done: make(chan struct{}, 1)}
}

func (h *fakeHandle) Enqueue(f func()) {
	if f != nil {
		f()
	}
}

func (h *fakeHandle) Update() error { return nil }
func (h *fakeHandle) Get(spec engine.Spec) (engine.Module, error) {
	return nil, engine.NewUserError("unsupported")
}
func (h *fakeHandle) Lock() {
	h.mu.Lock()
	h.lockCalls++
	h.mu.Unlock()
}

func (h *fakeHandle) Unlock() {
	h.mu.Lock()
	h.unlockCalls++
	h.mu.Unlock()
}
func (h *fakeHandle) SetSleeping(bool)       {}
func (h *fakeHandle) Logger() zerolog.Logger { return zerolog.Nop() }

func (h *fakeHandle) onLine(line string) {
	h.mu.Lock()
	h.lines = append(h.lines, line)
	h.mu.Unlock()
}

func (h *fakeHandle) onExit(err error) {
	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
	select {
	case h.done <- struct{}{}:
	default:
	}
}

func (h *fakeHandle) Lines() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.lines))
	copy(out, h.lines)
	return out
}

func (h *fakeHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *fakeHandle) LockCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lockCalls
}

func (h *fakeHandle) UnlockCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.unlockCalls
}
