package modules

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForDone(t *testing.T, h *fakeHandle) {
	t.Helper()
	select {
	case <-h.done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for onExit")
	}
}

func TestSupervisorStreamsLinesAndCleanExit(t *testing.T) {
	h := newFakeHandle()
	s := NewSupervisor(h, h.onLine, h.onExit)

	require.NoError(t, s.Start("/bin/sh", "-c", "echo one; echo two; exit 0"))
	waitForDone(t, h)

	assert.Equal(t, []string{"one", "two"}, h.Lines())
	assert.NoError(t, h.Err())
}

func TestSupervisorReportsNonZeroExit(t *testing.T) {
	h := newFakeHandle()
	s := NewSupervisor(h, h.onLine, h.onExit)

	require.NoError(t, s.Start("/bin/sh", "-c", "exit 3"))
	waitForDone(t, h)

	require.Error(t, h.Err())
	assert.True(t, strings.Contains(h.Err().Error(), "exit status 3"))
}

func TestSupervisorWriteLineBeforeStartErrors(t *testing.T) {
	h := newFakeHandle()
	s := NewSupervisor(h, h.onLine, h.onExit)

	err := s.WriteLine("hello")
	assert.Error(t, err)
}

func TestSupervisorWriteLineFeedsChildStdin(t *testing.T) {
	h := newFakeHandle()
	s := NewSupervisor(h, h.onLine, h.onExit)

	require.NoError(t, s.Start("/bin/sh", "-c", "read line; echo \"got: $line\""))
	require.NoError(t, s.WriteLine("ping"))
	waitForDone(t, h)

	assert.Equal(t, []string{"got: ping"}, h.Lines())
}

func TestSupervisorPidAndStop(t *testing.T) {
	h := newFakeHandle()
	s := NewSupervisor(h, h.onLine, h.onExit)

	assert.Equal(t, 0, s.Pid())

	require.NoError(t, s.Start("/bin/sh", "-c", "sleep 5"))
	assert.Greater(t, s.Pid(), 0)

	require.NoError(t, s.Stop())
	waitForDone(t, h)
	assert.Error(t, h.Err())
}
