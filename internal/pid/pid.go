// Package pid guards against running two daemons with the same PID directory.
package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"codeberg.org/mutker/hoststat/internal/errors"
)

const (
	pidFile = "hoststat.pid"
)

type File struct {
	path string
}

// New returns the PID file inside dir. An empty dir means the OS temp dir.
func New(dir string) *File {
	if dir == "" {
		dir = os.TempDir()
	}
	return &File{path: filepath.Join(dir, pidFile)}
}

func (f *File) Path() string {
	return f.path
}

// Write records the current process ID. It fails with ErrAlreadyRunning when
// the file names a live process; a stale or unreadable file is replaced.
func (f *File) Write() error {
	errFactory := errors.New()

	if running, pid := f.running(); running {
		return errFactory.WithData(errors.ErrAlreadyRunning, struct {
			PID  int
			Path string
		}{
			PID:  pid,
			Path: f.path,
		})
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return errFactory.Wrap(errors.ErrWritePIDFile, err)
	}

	if err := os.WriteFile(f.path, []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		return errFactory.Wrap(errors.ErrWritePIDFile, err)
	}

	return nil
}

func (f *File) running() (bool, int) {
	bytes, err := os.ReadFile(f.path)
	if err != nil {
		return false, 0
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(bytes)))
	if err != nil || pid <= 0 {
		return false, 0
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false, 0
	}

	return process.Signal(syscall.Signal(0)) == nil, pid
}

// Remove removes the PID file.
func (f *File) Remove() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return errors.New().Wrap(errors.ErrInternal, err)
	}
	return nil
}
