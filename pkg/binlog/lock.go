//go:build !windows

package binlog

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// DirLock holds an exclusive, advisory lock on a binlog subdirectory for
// the lifetime of the process that opened it, enforcing "one writer per
// subdirectory" across process restarts and accidental double-starts.
type DirLock struct {
	f *os.File
}

// LockDir opens (creating if needed) dir/.binlog.lock and takes a
// non-blocking exclusive flock on it. A directory already owned by
// another live process returns an error immediately rather than blocking.
func LockDir(dir string) (*DirLock, error) {
	path := filepath.Join(dir, ".binlog.lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("binlog: open lock file: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("binlog: %s is already locked by another writer: %w", dir, err)
	}
	return &DirLock{f: f}, nil
}

// Unlock releases the flock and closes the lock file. It is safe to call
// on a nil *DirLock.
func (l *DirLock) Unlock() error {
	if l == nil || l.f == nil {
		return nil
	}
	if err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN); err != nil {
		l.f.Close()
		return fmt.Errorf("binlog: unlock: %w", err)
	}
	return l.f.Close()
}
