package session

import (
	"github.com/rs/zerolog"

	"github.com/lockd/lockd/internal/engine"
)

// fakeHandle is a minimal engine.Handle for exercising session modules in
// isolation, without a live Event Loop or Registry. Enqueue runs its task
// inline — every caller in this package is already single-threaded in
// tests, and the production single-goroutine-ownership checks in
// engine.Loop don't apply to a handle that was never wired to one.
type fakeHandle struct {
	updates int
	locked  bool
}

func (h *fakeHandle) Enqueue(f func()) {
	if f != nil {
		f()
	}
}

func (h *fakeHandle) Update() error {
	h.updates++
	return nil
}

func (h *fakeHandle) Get(spec engine.Spec) (engine.Module, error) {
	return nil, engine.NewUserError("fakeHandle: Get not supported")
}

func (h *fakeHandle) Lock()   { h.locked = true }
func (h *fakeHandle) Unlock() { h.locked = false }

func (h *fakeHandle) SetSleeping(bool) {}

func (h *fakeHandle) Logger() zerolog.Logger { return zerolog.Nop() }
