package daemonutil

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRuntimeDirPrefersExplicitOverride(t *testing.T) {
	t.Setenv("RUNTIME_DIR", t.TempDir())
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	base := t.TempDir()
	dir, err := ResolveRuntimeDir(base)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "lockd"), dir)
}

func TestResolveRuntimeDirFallsBackToRuntimeDirEnv(t *testing.T) {
	base := t.TempDir()
	t.Setenv("RUNTIME_DIR", base)
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	dir, err := ResolveRuntimeDir("")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "lockd"), dir)
}

func TestResolveRuntimeDirFallsBackToXDGEnv(t *testing.T) {
	t.Setenv("RUNTIME_DIR", "")
	base := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", base)

	dir, err := ResolveRuntimeDir("")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "lockd"), dir)
}

func TestResolveRuntimeDirFallsBackToTmp(t *testing.T) {
	t.Setenv("RUNTIME_DIR", "")
	t.Setenv("XDG_RUNTIME_DIR", "")

	dir, err := ResolveRuntimeDir("")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/lockd-"+strconv.Itoa(os.Getuid()), "lockd"), dir)
	require.NoError(t, os.RemoveAll(dir))
}

func TestResolveRuntimeDirCreatesDirectory(t *testing.T) {
	base := t.TempDir()

	dir, err := ResolveRuntimeDir(base)

	require.NoError(t, err)
	info, statErr := os.Stat(dir)
	require.NoError(t, statErr)
	assert.True(t, info.IsDir())
}

func TestWriteAndRemovePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lockd.pid")

	require.NoError(t, WritePIDFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))

	require.NoError(t, RemovePIDFile(path))
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRemovePIDFileMissingIsNotAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.pid")
	assert.NoError(t, RemovePIDFile(path))
}
