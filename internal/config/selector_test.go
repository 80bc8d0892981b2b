package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockd/lockd/internal/engine"
)

func newTestHost(fn ConfigureFunc) *Host {
	return NewHost(zerolog.Nop(), fn)
}

func TestSelectorEmitsScreensaverCfgAtEarliestThreshold(t *testing.T) {
	h := newTestHost(func(c *Configurator) {
		c.IsIdleFor(300)
		c.IsIdleFor(60)
	})
	state := &engine.State{Idle: fixedIdleProvider{engine.IdleAt(time.Now())}}

	var wanted []engine.Spec
	h.selector(state, &wanted)

	require.NotEmpty(t, wanted)
	assert.Equal(t, engine.NewSpec("screensaver-cfg", "60"), wanted[0])
}

func TestSelectorEmitsSchedulerWithAllThresholdsWhenIdleFinite(t *testing.T) {
	h := newTestHost(func(c *Configurator) {
		c.IsIdleFor(60)
		c.IsIdleFor(300)
	})
	state := &engine.State{Idle: fixedIdleProvider{engine.IdleAt(time.Now())}}

	var wanted []engine.Spec
	h.selector(state, &wanted)

	found := false
	for _, s := range wanted {
		if s.Name == "scheduler" {
			found = true
			assert.Equal(t, []string{"60", "300"}, s.Args)
		}
	}
	assert.True(t, found)
}

func TestSelectorOmitsSchedulerWhenWakeLocked(t *testing.T) {
	h := newTestHost(func(c *Configurator) {
		c.IsIdleFor(60)
	})
	state := &engine.State{Idle: fixedIdleProvider{engine.IdlePlusInf()}}

	var wanted []engine.Spec
	h.selector(state, &wanted)

	for _, s := range wanted {
		assert.NotEqual(t, "scheduler", s.Name)
	}
}

func TestSelectorOmitsSchedulerWhenSleeping(t *testing.T) {
	h := newTestHost(func(c *Configurator) {
		c.IsIdleFor(60)
	})
	state := &engine.State{Sleeping: true, Idle: fixedIdleProvider{engine.IdleAt(time.Now())}}

	var wanted []engine.Spec
	h.selector(state, &wanted)

	for _, s := range wanted {
		assert.NotEqual(t, "scheduler", s.Name, "a −∞ (sleeping) idle measurement is not finite and must not emit a scheduler")
	}
}

func TestSelectorIncludesRequestedModules(t *testing.T) {
	h := newTestHost(func(c *Configurator) {
		c.RunModule("notify-osd", "120")
	})
	state := &engine.State{}

	var wanted []engine.Spec
	h.selector(state, &wanted)

	assert.Contains(t, wanted, engine.NewSpec("notify-osd", "120"))
}

func TestSelectorRecoversBadThresholdAsWarningNotPanic(t *testing.T) {
	h := newTestHost(func(c *Configurator) {
		c.IsIdleFor(-1)
	})
	state := &engine.State{}

	var wanted []engine.Spec
	assert.NotPanics(t, func() {
		h.selector(state, &wanted)
	})
	assert.Empty(t, wanted)
}
