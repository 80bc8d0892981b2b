package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockd/lockd/internal/engine"
)

type fakeSession struct {
	idle       engine.IdleSince
	invalidate int
}

func (s *fakeSession) Start() error { return nil }
func (s *fakeSession) Stop() error  { return nil }
func (s *fakeSession) GetIdleSince() engine.IdleSince {
	return s.idle
}
func (s *fakeSession) Invalidate() { s.invalidate++ }

func newTestRegistry(t *testing.T, instances map[string]*fakeSession) (*Registry, *fakeHandle) {
	t.Helper()
	h := &fakeHandle{}
	get := func(spec engine.Spec) (engine.Module, error) {
		inst, ok := instances[spec.Key()]
		if !ok {
			return nil, engine.NewUserError("no such fake session %q", spec.Key())
		}
		return inst, nil
	}
	return New(h, get), h
}

func TestGlobalIdleSinceNoSessionsIsPlusInf(t *testing.T) {
	reg, _ := newTestRegistry(t, nil)
	assert.True(t, reg.GlobalIdleSince().IsPlusInf())
}

func TestGlobalIdleSinceIsMaxAcrossSessions(t *testing.T) {
	now := time.Now()
	spec1 := NewSpec(KindX11, ":0")
	spec2 := NewSpec(KindTTY, "/dev/tty1")
	instances := map[string]*fakeSession{
		spec1.Key(): {idle: engine.IdleAt(now.Add(-time.Hour))},
		spec2.Key(): {idle: engine.IdleAt(now.Add(-time.Minute))},
	}
	reg, _ := newTestRegistry(t, instances)
	reg.Attach(spec1)
	reg.Attach(spec2)

	got := reg.GlobalIdleSince()

	require.True(t, got.IsFinite())
	assert.True(t, got.At().Equal(now.Add(-time.Minute)), "global idle_since must track the least-idle (most recently active) session")
}

func TestGlobalIdleSinceAnyWakeLockWins(t *testing.T) {
	spec1 := NewSpec(KindX11, ":0")
	spec2 := NewSpec(KindTTY, "/dev/tty1")
	instances := map[string]*fakeSession{
		spec1.Key(): {idle: engine.IdleAt(time.Now())},
		spec2.Key(): {idle: engine.IdlePlusInf()},
	}
	reg, _ := newTestRegistry(t, instances)
	reg.Attach(spec1)
	reg.Attach(spec2)

	assert.True(t, reg.GlobalIdleSince().IsPlusInf())
}

func TestAttachDetachAreIdempotentAndReconcile(t *testing.T) {
	spec := NewSpec(KindX11, ":0")
	instances := map[string]*fakeSession{spec.Key(): {idle: engine.IdlePlusInf()}}
	reg, h := newTestRegistry(t, instances)

	reg.Attach(spec)
	reg.Attach(spec)
	assert.Equal(t, 1, h.updates, "re-attaching an already-attached spec must be a no-op")
	assert.Len(t, reg.Attached(), 1)

	reg.Detach(spec)
	reg.Detach(spec)
	assert.Equal(t, 2, h.updates)
	assert.Empty(t, reg.Attached())
}

func TestOfKindFiltersByKind(t *testing.T) {
	x11 := NewSpec(KindX11, ":0")
	tty := NewSpec(KindTTY, "/dev/tty1")
	instances := map[string]*fakeSession{
		x11.Key(): {idle: engine.IdlePlusInf()},
		tty.Key(): {idle: engine.IdlePlusInf()},
	}
	reg, _ := newTestRegistry(t, instances)
	reg.Attach(x11)
	reg.Attach(tty)

	got := reg.OfKind(KindX11)

	require.Len(t, got, 1)
	assert.Equal(t, x11, got[0])
}

func TestInvalidateAllReachesEveryAttachedSession(t *testing.T) {
	spec1 := NewSpec(KindX11, ":0")
	spec2 := NewSpec(KindTTY, "/dev/tty1")
	s1 := &fakeSession{idle: engine.IdlePlusInf()}
	s2 := &fakeSession{idle: engine.IdlePlusInf()}
	instances := map[string]*fakeSession{spec1.Key(): s1, spec2.Key(): s2}
	reg, _ := newTestRegistry(t, instances)
	reg.Attach(spec1)
	reg.Attach(spec2)

	reg.InvalidateAll()

	assert.Equal(t, 1, s1.invalidate)
	assert.Equal(t, 1, s2.invalidate)
}

func TestSelectorEmitsAttachedSpecs(t *testing.T) {
	spec := NewSpec(KindX11, ":0")
	instances := map[string]*fakeSession{spec.Key(): {idle: engine.IdlePlusInf()}}
	reg, _ := newTestRegistry(t, instances)
	reg.Attach(spec)

	var wanted []engine.Spec
	reg.selector(&engine.State{}, &wanted)

	assert.Equal(t, []engine.Spec{spec}, wanted)
}
