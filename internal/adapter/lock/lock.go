package lock

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// ErrLocked is returned when another process holds the index lock.
var ErrLocked = errors.New("index is locked by another process")

// Lock is an exclusive advisory file lock guarding index writes.
// Locks are released on process exit, so a crashed indexer never
// leaves the index permanently locked.
type Lock struct {
	path string
	file *os.File
}

// Acquire takes the lock at path without blocking. It returns
// ErrLocked if another process already holds it.
func Acquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := lockFile(f); err != nil {
		f.Close()
		return nil, err
	}

	// Who holds the lock, for humans inspecting the file.
	if err := f.Truncate(0); err == nil {
		fmt.Fprintf(f, "%d %s\n", os.Getpid(), time.Now().Format(time.RFC3339))
		f.Sync()
	}

	return &Lock{path: path, file: f}, nil
}

// Release unlocks and removes the lock file.
func (l *Lock) Release() error {
	if l.file == nil {
		return nil
	}

	err := unlockFile(l.file)
	if cerr := l.file.Close(); err == nil {
		err = cerr
	}
	l.file = nil

	os.Remove(l.path)
	return err
}
