package modules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockd/lockd/internal/engine"
)

func TestScreensaverCfgFactoryWiresSpecArgsAsThreshold(t *testing.T) {
	h := newFakeHandle()
	factory := NewScreensaverCfgFactory("/bin/sh")

	mod, err := factory(h, engine.NewSpec("screensaver-cfg", "60"))

	require.NoError(t, err)
	cfg := mod.(*ScreensaverCfg)
	assert.Equal(t, "60", cfg.threshold)
	assert.Equal(t, "/bin/sh", cfg.helperPath)
}

func TestScreensaverCfgStartPassesThreshold(t *testing.T) {
	h := newFakeHandle()
	cfg := &ScreensaverCfg{handle: h, helperPath: "/bin/sh", threshold: "60"}
	cfg.sup = NewSupervisor(h, h.onLine, h.onExit)
	// helperPath is sh itself here; "--timeout" lands as $0, the threshold as $1.
	require.NoError(t, cfg.sup.Start("/bin/sh", "-c", "echo \"timeout $1\"; sleep 5", "--", "60"))
	waitForLine(t, h, 1)
	assert.Equal(t, []string{"timeout 60"}, h.Lines())

	require.NoError(t, cfg.Stop())
}

func TestScreensaverCfgReconfigureWritesTimeoutLine(t *testing.T) {
	h := newFakeHandle()
	cfg := &ScreensaverCfg{handle: h, helperPath: "/bin/sh", threshold: "60"}
	cfg.sup = NewSupervisor(h, h.onLine, h.onExit)

	require.NoError(t, cfg.sup.Start("/bin/sh", "-c", "while read line; do echo \"got: $line\"; done"))

	ok := cfg.Reconfigure([]string{"120"})

	require.True(t, ok)
	assert.Equal(t, "120", cfg.threshold)
	waitForLine(t, h, 1)
	assert.Equal(t, []string{"got: timeout 120"}, h.Lines())

	require.NoError(t, cfg.Stop())
}

func TestScreensaverCfgReconfigureRejectsWrongArgCount(t *testing.T) {
	h := newFakeHandle()
	cfg := &ScreensaverCfg{handle: h, helperPath: "/bin/sh", threshold: "60"}
	cfg.sup = NewSupervisor(h, h.onLine, h.onExit)

	assert.False(t, cfg.Reconfigure(nil))
	assert.False(t, cfg.Reconfigure([]string{"1", "2"}))
	assert.Equal(t, "60", cfg.threshold)
}

func waitForLine(t *testing.T, h *fakeHandle, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(h.Lines()) >= n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d lines, got %v", n, h.Lines())
}
