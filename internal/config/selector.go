package config

import (
	"sort"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/lockd/lockd/internal/engine"
)

// Host owns the "20-config" selector: on every
// reconciliation it builds a fresh Configurator, runs the user's
// configuration function against it, and translates the result into the
// screen-saver configuration spec, the idle scheduler spec, and the
// user-requested modules.
type Host struct {
	log       zerolog.Logger
	configure ConfigureFunc
}

// NewHost constructs a Host. configure may be replaced later via
// SetConfigureFunc (used by the "reload" control-socket command to
// re-read the configuration file).
func NewHost(log zerolog.Logger, configure ConfigureFunc) *Host {
	return &Host{log: log, configure: configure}
}

// SetConfigureFunc swaps the active configuration function, for "reload".
func (h *Host) SetConfigureFunc(fn ConfigureFunc) {
	h.configure = fn
}

// Install registers the "20-config" selector on chain.
func (h *Host) Install(chain *engine.SelectorChain) {
	chain.Set("20-config", h.selector)
}

func (h *Host) selector(state *engine.State, wanted *[]engine.Spec) {
	c := newConfigurator(state)
	if err := h.runConfigure(c); err != nil {
		h.log.Warn().Err(err).Msg("user configuration rejected, running with no user modules this pass")
		c = newConfigurator(state)
	}

	if len(c.thresholds) > 0 {
		earliest := sortedThresholds(c.thresholds)[0]
		*wanted = append(*wanted, engine.NewSpec("screensaver-cfg", strconv.Itoa(earliest)))

		if state.GlobalIdleSince().IsFinite() {
			*wanted = append(*wanted, engine.NewSpec("scheduler", thresholdArgs(c.thresholds)...))
		}
	}

	*wanted = append(*wanted, c.requested...)
}

// runConfigure invokes configure, converting an idleThresholdError panic
// (IsIdleFor rejects non-positive input) into a returned UserError rather
// than crashing the Event Loop.
func (h *Host) runConfigure(c *Configurator) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if te, ok := r.(idleThresholdError); ok {
				err = engine.NewUserError("%s", te.Error())
				return
			}
			panic(r)
		}
	}()
	h.configure(c)
	return nil
}

func sortedThresholds(m map[int]struct{}) []int {
	out := make([]int, 0, len(m))
	for t := range m {
		out = append(out, t)
	}
	sort.Ints(out)
	return out
}

func thresholdArgs(m map[int]struct{}) []string {
	ints := sortedThresholds(m)
	out := make([]string, len(ints))
	for i, t := range ints {
		out[i] = strconv.Itoa(t)
	}
	return out
}
