// File: internal/installer/installer.go
// Description: Orchestrates one install run: detect -> synthesize ->
// checkpoint -> write -> validate. Components are injected via interfaces,
// keeping the state machine decoupled and testable.
package installer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kvasirlabs/gatewright/api/schemas"
	"github.com/kvasirlabs/gatewright/internal/config"
)

// StackDetector inspects a target directory and produces its profile.
type StackDetector interface {
	Detect(ctx context.Context, root string) (schemas.ProjectProfile, error)
}

// ConfigSynthesizer produces the artifacts to install, without writing.
type ConfigSynthesizer interface {
	Synthesize(profile schemas.ProjectProfile, cfg config.InstallConfig) ([]schemas.GeneratedFile, []schemas.Advisory, error)
}

// Checkpointer records pre-write state and restores it on rollback.
type Checkpointer interface {
	Begin(path string) (schemas.Checkpoint, error)
	Rollback(set schemas.CheckpointSet) schemas.RollbackReport
	Persist(root, runID string, set schemas.CheckpointSet) error
	LoadJournal(root string) (string, schemas.CheckpointSet, error)
	Discard(root string) error
}

// Validator runs post-install smoke checks against written artifacts.
type Validator interface {
	Validate(ctx context.Context, root string, paths []string) map[string]schemas.ValidationOutcome
}

// Installer drives the install state machine for one target root at a
// time.
type Installer struct {
	cfg       *config.Config
	log       *zap.Logger
	detector  StackDetector
	synth     ConfigSynthesizer
	ckpt      Checkpointer
	validator Validator
}

// Options are the per-invocation settings of one run.
type Options struct {
	Root   string
	DryRun bool
	Force  bool
}

// New creates an Installer with its dependencies injected.
func New(
	cfg *config.Config,
	logger *zap.Logger,
	detector StackDetector,
	synthesizer ConfigSynthesizer,
	checkpointer Checkpointer,
	validator Validator,
) (*Installer, error) {
	if cfg == nil || logger == nil || detector == nil || synthesizer == nil || checkpointer == nil || validator == nil {
		return nil, fmt.Errorf("cannot initialize installer with nil dependencies")
	}
	return &Installer{
		cfg:       cfg,
		log:       logger.Named("installer"),
		detector:  detector,
		synth:     synthesizer,
		ckpt:      checkpointer,
		validator: validator,
	}, nil
}

// Run executes one install against opts.Root.
//
// Terminal outcomes: StatusCommitted (all writes landed, all smoke checks
// passed), StatusPartialFailure (writes landed but a smoke check failed,
// or rollback could not restore everything), StatusRolledBack (a write or
// cancellation mid-run undid the checkpoints taken so far). Detection,
// configuration, and lock errors return before any mutation, with a nil
// result status left empty.
//
// Validation failures deliberately do NOT roll back written files: a
// failing smoke check is usually a tool-availability problem, and undoing
// a long install behind the user's back would be worse than reporting.
func (ins *Installer) Run(ctx context.Context, opts Options) (*schemas.InstallResult, error) {
	result := &schemas.InstallResult{
		RunID:     uuid.New().String(),
		StartedAt: time.Now().UTC(),
	}
	defer func() { result.FinishedAt = time.Now().UTC() }()

	log := ins.log.With(zap.String("run_id", result.RunID), zap.String("root", opts.Root))
	log.Info("Starting install run", zap.Bool("dry_run", opts.DryRun))

	// -- Detecting --
	profile, err := ins.detector.Detect(ctx, opts.Root)
	if err != nil {
		return result, err
	}
	log.Info("Stack detected",
		zap.String("runtime", string(profile.Runtime)),
		zap.Any("frameworks", profile.Frameworks),
	)

	// -- Synthesizing --
	files, advisories, err := ins.synth.Synthesize(profile, ins.cfg.Install)
	if err != nil {
		return result, err
	}
	result.Advisories = advisories
	for _, adv := range advisories {
		log.Warn("Synthesis advisory", zap.String("path", adv.Path), zap.String("reason", adv.Reason))
	}

	if opts.DryRun {
		result.Plan = ins.plan(opts.Root, files)
		result.Status = schemas.StatusCommitted
		log.Info("Dry run complete, no files written", zap.Int("planned", len(result.Plan)))
		return result, nil
	}

	// -- Locking --
	lock, err := acquireLock(opts.Root, result.RunID, opts.Force)
	if err != nil {
		return result, err
	}
	defer func() {
		if err := lock.release(); err != nil {
			log.Error("Failed to release install lock", zap.Error(err))
		}
	}()

	// -- Checkpointing / Writing (interleaved per file) --
	var set schemas.CheckpointSet
	for _, gf := range files {
		target := filepath.Join(opts.Root, gf.Path)

		// Cancellation is handled exactly like a mid-writing failure:
		// roll back whatever has been checkpointed so far.
		if err := ctx.Err(); err != nil {
			return ins.rollBack(log, result, set, opts.Root, fmt.Errorf("install cancelled: %w", err))
		}

		action := planAction(target, gf)
		switch action {
		case schemas.PlanUnchanged:
			result.UnchangedPaths = append(result.UnchangedPaths, gf.Path)
			log.Debug("Artifact already up to date", zap.String("path", gf.Path))
			continue
		case schemas.PlanSkip:
			result.SkippedPaths = append(result.SkippedPaths, gf.Path)
			log.Debug("Existing file kept (create-only artifact)", zap.String("path", gf.Path))
			continue
		}

		cp, err := ins.ckpt.Begin(target)
		if err != nil {
			return ins.rollBack(log, result, set, opts.Root, &schemas.WriteError{Path: gf.Path, Err: err})
		}
		set = append(set, cp)
		// The journal must be durable before the write: if we die between
		// here and the write landing, the next invocation can restore.
		if err := ins.ckpt.Persist(opts.Root, result.RunID, set); err != nil {
			return ins.rollBack(log, result, set, opts.Root, &schemas.WriteError{Path: gf.Path, Err: err})
		}

		if err := writeFileAtomic(target, gf.Content, gf.FileMode); err != nil {
			return ins.rollBack(log, result, set, opts.Root, &schemas.WriteError{Path: gf.Path, Err: err})
		}
		result.WrittenPaths = append(result.WrittenPaths, gf.Path)
		log.Info("Wrote artifact", zap.String("path", gf.Path), zap.String("action", string(action)))
	}

	// -- Validating --
	result.Validation = ins.validator.Validate(ctx, opts.Root, result.WrittenPaths)

	if err := ins.ckpt.Discard(opts.Root); err != nil {
		log.Warn("Failed to discard recovery journal", zap.Error(err))
	}

	if result.ValidationFailed() {
		result.Status = schemas.StatusPartialFailure
		log.Warn("Install finished with failing smoke checks; written files were kept",
			zap.Int("written", len(result.WrittenPaths)))
		return result, nil
	}

	result.Status = schemas.StatusCommitted
	log.Info("Install committed",
		zap.Int("written", len(result.WrittenPaths)),
		zap.Int("unchanged", len(result.UnchangedPaths)),
		zap.Int("skipped", len(result.SkippedPaths)),
	)
	return result, nil
}

// ValidateOnly re-runs the smoke checks against the artifacts an install
// would manage, without mutating anything.
func (ins *Installer) ValidateOnly(ctx context.Context, root string) (map[string]schemas.ValidationOutcome, error) {
	profile, err := ins.detector.Detect(ctx, root)
	if err != nil {
		return nil, err
	}
	files, _, err := ins.synth.Synthesize(profile, ins.cfg.Install)
	if err != nil {
		return nil, err
	}

	var present []string
	for _, gf := range files {
		if _, err := os.Lstat(filepath.Join(root, gf.Path)); err == nil {
			present = append(present, gf.Path)
		}
	}
	return ins.validator.Validate(ctx, root, present), nil
}

// RollbackJournal replays the persisted recovery log of an interrupted
// run. The journal is discarded only when every path restored cleanly, so
// a partial restore can be retried.
func (ins *Installer) RollbackJournal(root string) (schemas.RollbackReport, error) {
	runID, set, err := ins.ckpt.LoadJournal(root)
	if errors.Is(err, fs.ErrNotExist) {
		return schemas.RollbackReport{}, fmt.Errorf("no recovery journal found for %s", root)
	}
	if err != nil {
		return schemas.RollbackReport{}, err
	}

	ins.log.Info("Rolling back from persisted journal",
		zap.String("root", root), zap.String("run_id", runID), zap.Int("checkpoints", len(set)))
	report := ins.ckpt.Rollback(set)
	if !report.Failed() {
		if err := ins.ckpt.Discard(root); err != nil {
			return report, err
		}
	}
	return report, nil
}

// rollBack is the shared mid-writing failure path. The returned error
// carries both the original cause and the rollback outcome.
func (ins *Installer) rollBack(log *zap.Logger, result *schemas.InstallResult, set schemas.CheckpointSet, root string, cause error) (*schemas.InstallResult, error) {
	log.Error("Install failed mid-write, rolling back", zap.Error(cause), zap.Int("checkpoints", len(set)))

	report := ins.ckpt.Rollback(set)
	result.Rollback = &report
	result.WrittenPaths = nil

	if report.Failed() {
		result.Status = schemas.StatusPartialFailure
		log.Error("Rollback incomplete; manual recovery needed",
			zap.Strings("failed_paths", report.FailedPaths()))
		// Keep the journal for a retry via `gatewright rollback`.
		return result, &schemas.RolledBackError{Cause: cause, Report: report}
	}

	result.Status = schemas.StatusRolledBack
	if err := ins.ckpt.Discard(root); err != nil {
		log.Warn("Failed to discard recovery journal after clean rollback", zap.Error(err))
	}
	return result, &schemas.RolledBackError{Cause: cause, Report: report}
}

// plan computes what a run would do without touching anything.
func (ins *Installer) plan(root string, files []schemas.GeneratedFile) []schemas.PlannedChange {
	changes := make([]schemas.PlannedChange, 0, len(files))
	for _, gf := range files {
		changes = append(changes, schemas.PlannedChange{
			Path:   gf.Path,
			Action: planAction(filepath.Join(root, gf.Path), gf),
		})
	}
	return changes
}

// planAction decides how one artifact relates to the current disk state.
// Identical content and mode means no write (and no checkpoint), which is
// what makes a repeated install a no-op.
func planAction(target string, gf schemas.GeneratedFile) schemas.PlanAction {
	info, err := os.Lstat(target)
	if err != nil {
		return schemas.PlanCreate
	}

	current, readErr := os.ReadFile(target)
	if readErr == nil && bytes.Equal(current, gf.Content) && info.Mode().Perm() == gf.FileMode {
		return schemas.PlanUnchanged
	}

	switch gf.Mode {
	case schemas.ModeCreate:
		return schemas.PlanSkip
	case schemas.ModeMergeIfExists:
		return schemas.PlanMerge
	default:
		return schemas.PlanOverwrite
	}
}

// writeFileAtomic writes content via a temp file in the target directory
// followed by a rename, so a crash mid-write never leaves a torn file.
func writeFileAtomic(target string, content []byte, mode fs.FileMode) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".gatewright-write-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { os.Remove(tmpName) }

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("setting file mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		cleanup()
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}
