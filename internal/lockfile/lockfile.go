// Package lockfile guards a CareRouter state directory against a second process
// writing the same SQLite record file.
//
// The lock is an flock on a file inside the directory, so the kernel drops it when the
// process exits for any reason.
package lockfile

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// FileName is the lock file created in the state directory.
const FileName = "carerouter.lock"

// DefaultDirPermissions is used when the state directory has to be created.
const DefaultDirPermissions = 0o755

// ErrHeld is wrapped by HeldError.
var ErrHeld = errors.New("state directory is locked by another CareRouter process")

// Lock is a held state-directory lock.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes the lock for dir, creating dir if needed. It fails immediately with a
// *HeldError when another process holds it.
func Acquire(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, FileName)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", path, err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		owner := ownerPID(f)
		f.Close()
		slog.Error("lockfile.Acquire: state directory already locked", "lock_path", path, "owner_pid", owner, "error", err)
		return nil, &HeldError{Path: path, OwnerPID: owner, Cause: err}
	}

	if err := writePID(f); err != nil {
		syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		f.Close()
		return nil, fmt.Errorf("failed to write lock file %s: %w", path, err)
	}

	slog.Info("lockfile.Acquire: state directory locked", "lock_path", path, "pid", os.Getpid())
	return &Lock{file: f, path: path}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Release drops the lock and removes the file. Calling it again is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	var errs []error
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		errs = append(errs, fmt.Errorf("unlock: %w", err))
	}
	if err := l.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close: %w", err))
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, fmt.Errorf("remove: %w", err))
	}
	l.file = nil
	slog.Debug("Lock.Release: state directory unlocked", "lock_path", l.path)
	return errors.Join(errs...)
}

// HeldError reports the lock file and, when readable, the pid of its owner.
type HeldError struct {
	Path     string
	OwnerPID int
	Cause    error
}

func (e *HeldError) Error() string {
	msg := fmt.Sprintf("%v (lock file %s", ErrHeld, e.Path)
	if e.OwnerPID > 0 {
		msg += fmt.Sprintf(", pid %d", e.OwnerPID)
	}
	return msg + "); stop the other process or point CARE_STATE_DIR elsewhere"
}

// Is matches ErrHeld.
func (e *HeldError) Is(target error) bool { return target == ErrHeld }

func (e *HeldError) Unwrap() error { return e.Cause }

func writePID(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.WriteAt([]byte("pid="+strconv.Itoa(os.Getpid())+"\n"), 0); err != nil {
		return err
	}
	return f.Sync()
}

// ownerPID reads the pid recorded by the current holder, or 0.
func ownerPID(f *os.File) int {
	buf := make([]byte, 64)
	n, _ := f.ReadAt(buf, 0)
	content := strings.TrimSpace(string(buf[:n]))
	pid, err := strconv.Atoi(strings.TrimPrefix(content, "pid="))
	if err != nil {
		return 0
	}
	return pid
}
