// Package daemonutil holds small process-lifecycle helpers for component
// K (Daemon Bootstrap & Resource Tuning): runtime-directory resolution and
// PID file management.
package daemonutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// ResolveRuntimeDir resolves the runtime directory via an override chain:
// an explicit override (e.g. from Settings), else the RUNTIME_DIR
// environment variable, else $XDG_RUNTIME_DIR, else /tmp/lockd-$UID. The
// returned directory is the "lockd" subdirectory of that base, created
// with mode 0700 if it does not exist.
func ResolveRuntimeDir(override string) (string, error) {
	dir := override
	if dir == "" {
		dir = os.Getenv("RUNTIME_DIR")
	}
	if dir == "" {
		dir = os.Getenv("XDG_RUNTIME_DIR")
	}
	if dir == "" {
		dir = fmt.Sprintf("/tmp/lockd-%d", os.Getuid())
	}
	dir = filepath.Join(dir, "lockd")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("daemonutil: create runtime dir %s: %w", dir, err)
	}
	return dir, nil
}

// WritePIDFile writes the current process's PID, ASCII-encoded, to path.
func WritePIDFile(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

// RemovePIDFile removes path, ignoring a not-exist error (already cleaned
// up, e.g. by a prior crash-recovery pass).
func RemovePIDFile(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
