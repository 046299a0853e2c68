// Package pid keeps a single simulator running per host.
package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"codeberg.org/mutker/fansim/internal/errors"
)

const (
	pidFile = "fansim.pid"
)

// Path returns the default PID file location.
func Path() string {
	return filepath.Join(os.TempDir(), pidFile)
}

// Write writes the current process ID to the default PID file.
func Write() error {
	return WriteFile(Path())
}

// Remove removes the default PID file.
func Remove() error {
	return RemoveFile(Path())
}

// WriteFile writes the current process ID to path. It fails with
// ErrAlreadyRunning when path names a live process; stale or unreadable
// PID files are replaced.
func WriteFile(path string) error {
	errFactory := errors.New()

	if running, pid := isRunning(path); running {
		return errFactory.WithData(errors.ErrAlreadyRunning, struct {
			PID  int
			Path string
		}{
			PID:  pid,
			Path: path,
		})
	}

	err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o600)
	if err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

// RemoveFile removes the PID file at path. A missing file is not an error.
func RemoveFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.New().Wrap(errors.ErrInternal, err)
	}

	return nil
}

func isRunning(path string) (bool, int) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, 0
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return false, 0
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false, pid
	}

	return process.Signal(syscall.Signal(0)) == nil, pid
}
