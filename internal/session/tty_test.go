package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockd/lockd/internal/engine"
)

func TestTTYPollDetectsMtimeChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tty0")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	h := &fakeHandle{}
	s := &ttySession{handle: h, path: path, idleSince: engine.IdleAt(time.Now().Add(-time.Hour))}

	newer := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, newer, newer))

	s.poll()

	got := s.GetIdleSince()
	assert.True(t, got.At().Equal(newer))
	assert.Equal(t, 1, h.updates)
}

func TestTTYPollIgnoresMissingDevice(t *testing.T) {
	h := &fakeHandle{}
	original := engine.IdleAt(time.Now())
	s := &ttySession{handle: h, path: filepath.Join(t.TempDir(), "gone"), idleSince: original}

	s.poll()

	assert.Equal(t, original, s.GetIdleSince())
	assert.Equal(t, 0, h.updates)
}

func TestTTYInvalidateForcesImmediatePoll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tty1")
	mtime := time.Now().Add(5 * time.Minute)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	h := &fakeHandle{}
	s := &ttySession{handle: h, path: path, idleSince: engine.IdleAt(time.Now().Add(-time.Hour))}

	s.Invalidate()

	assert.True(t, s.GetIdleSince().At().Equal(mtime))
}
