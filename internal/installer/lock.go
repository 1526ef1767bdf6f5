// File: internal/installer/lock.go
package installer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kvasirlabs/gatewright/api/schemas"
)

// lockFileName is the exclusive lock marker created in the target root.
// Only one install run may hold it; O_EXCL makes acquisition atomic.
const lockFileName = ".gatewright.lock"

type lockHandle struct {
	path string
}

// acquireLock takes the exclusive install lock for root. Contention
// yields a ConcurrentInstallError carrying the current holder. With force
// set, a pre-existing lock is treated as stale and removed first.
func acquireLock(root, runID string, force bool) (*lockHandle, error) {
	path := filepath.Join(root, lockFileName)

	if force {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("removing stale lock %s: %w", path, err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, fs.ErrExist) {
		holder, _ := os.ReadFile(path)
		return nil, &schemas.ConcurrentInstallError{Root: root, Holder: lockHolder(string(holder))}
	}
	if err != nil {
		return nil, fmt.Errorf("acquiring install lock %s: %w", path, err)
	}

	if _, err := fmt.Fprintf(f, "run=%s pid=%d\n", runID, os.Getpid()); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("writing install lock %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("closing install lock %s: %w", path, err)
	}
	return &lockHandle{path: path}, nil
}

// release removes the lock marker. Safe on every exit path; a lock that
// is already gone is not an error.
func (l *lockHandle) release() error {
	err := os.Remove(l.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("releasing install lock %s: %w", l.path, err)
	}
	return nil
}

func lockHolder(raw string) string {
	return strings.TrimSpace(raw)
}
