// Package pid guards against running two daemons against the same PID
// file.
package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"codeberg.org/mutker/vitalsd/internal/errors"
)

// Write writes the current process ID to path. It fails with
// ErrAlreadyRunning if path names a live process. Stale or unreadable
// files are overwritten.
func Write(path string) error {
	errFactory := errors.New()

	if running, pid := alive(path); running {
		return errFactory.WithData(errors.ErrAlreadyRunning, pid)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

// Remove removes the PID file.
func Remove(path string) error {
	errFactory := errors.New()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	if err := os.Remove(path); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

func alive(path string) (bool, int) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, 0
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return false, 0
	}
	if pid == os.Getpid() {
		return false, pid
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false, pid
	}

	return process.Signal(syscall.Signal(0)) == nil, pid
}
