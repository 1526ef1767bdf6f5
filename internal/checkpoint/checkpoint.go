// File: internal/checkpoint/checkpoint.go
// Description: Records the pre-write state of every path an install run
// intends to touch and restores it on rollback. The write-after-checkpoint
// ordering is absolute: callers must Begin a path (and persist the
// journal) before writing to it.
package checkpoint

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/kvasirlabs/gatewright/api/schemas"
)

// Checkpointer snapshots files before mutation and performs best-effort
// rollback.
type Checkpointer struct {
	log *zap.Logger
}

// New creates a Checkpointer.
func New(logger *zap.Logger) *Checkpointer {
	return &Checkpointer{log: logger.Named("checkpoint")}
}

// Begin snapshots the current state of path. The full prior content is
// read into memory; artifacts here are small config files, never bulk
// data.
func (c *Checkpointer) Begin(path string) (schemas.Checkpoint, error) {
	cp := schemas.Checkpoint{Path: path}

	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cp, nil
	}
	if err != nil {
		return cp, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return cp, fmt.Errorf("refusing to checkpoint non-regular file %s", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return cp, fmt.Errorf("reading prior content of %s: %w", path, err)
	}
	cp.Existed = true
	cp.PriorContent = content
	cp.PriorMode = info.Mode().Perm()
	return cp, nil
}

// Rollback restores every path in the set to its checkpointed state, in
// reverse of checkpoint order. It continues past individual failures and
// collects them instead of stopping; partial rollback is reported, never
// silently swallowed. Rollback is idempotent: re-running it against an
// already-restored set is safe.
func (c *Checkpointer) Rollback(set schemas.CheckpointSet) schemas.RollbackReport {
	report := schemas.RollbackReport{Attempted: len(set)}

	for i := len(set) - 1; i >= 0; i-- {
		cp := set[i]
		if err := c.restore(cp); err != nil {
			c.log.Error("Failed to restore path during rollback",
				zap.String("path", cp.Path), zap.Error(err))
			report.Failures = append(report.Failures, schemas.RollbackFailure{
				Path:   cp.Path,
				Reason: err.Error(),
			})
			continue
		}
		c.log.Debug("Restored path", zap.String("path", cp.Path), zap.Bool("existed_before", cp.Existed))
	}
	return report
}

func (c *Checkpointer) restore(cp schemas.Checkpoint) error {
	if !cp.Existed {
		err := os.Remove(cp.Path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing created file: %w", err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(cp.Path), 0o755); err != nil {
		return fmt.Errorf("recreating parent directory: %w", err)
	}
	if err := os.WriteFile(cp.Path, cp.PriorContent, cp.PriorMode); err != nil {
		return fmt.Errorf("restoring prior content: %w", err)
	}
	// WriteFile only applies the mode on create; force it for files that
	// still existed with a different mode.
	if err := os.Chmod(cp.Path, cp.PriorMode); err != nil {
		return fmt.Errorf("restoring prior mode: %w", err)
	}
	return nil
}
