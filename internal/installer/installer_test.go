// File: internal/installer/installer_test.go
package installer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kvasirlabs/gatewright/api/schemas"
	"github.com/kvasirlabs/gatewright/internal/checkpoint"
	"github.com/kvasirlabs/gatewright/internal/config"
	"github.com/kvasirlabs/gatewright/internal/detect"
	"github.com/kvasirlabs/gatewright/internal/synth"
	"github.com/kvasirlabs/gatewright/internal/validate"
)

// -- Mocks --

type mockDetector struct {
	profile schemas.ProjectProfile
	err     error
}

func (m *mockDetector) Detect(_ context.Context, root string) (schemas.ProjectProfile, error) {
	if m.err != nil {
		return schemas.ProjectProfile{}, m.err
	}
	p := m.profile
	p.Root = root
	return p, nil
}

type mockSynth struct {
	files      []schemas.GeneratedFile
	advisories []schemas.Advisory
	err        error
}

func (m *mockSynth) Synthesize(schemas.ProjectProfile, config.InstallConfig) ([]schemas.GeneratedFile, []schemas.Advisory, error) {
	return m.files, m.advisories, m.err
}

// -- Fixtures --

func newTestInstaller(t *testing.T) *Installer {
	t.Helper()
	return newInstallerWith(t, detect.New(zap.NewNop()), synth.New(zap.NewNop()))
}

func newInstallerWith(t *testing.T, d StackDetector, s ConfigSynthesizer) *Installer {
	t.Helper()
	cfg := config.NewDefaultConfig()
	logger := zap.NewNop()
	ins, err := New(cfg, logger, d, s,
		checkpoint.New(logger), validate.New(cfg.Validator, logger))
	require.NoError(t, err)
	return ins
}

func textFile(path, content string) schemas.GeneratedFile {
	return schemas.GeneratedFile{
		Path:     path,
		Content:  []byte(content),
		Mode:     schemas.ModeOverwrite,
		FileMode: 0o644,
	}
}

// -- Constructor Tests --

func TestNew_RejectsNilDependencies(t *testing.T) {
	cfg := config.NewDefaultConfig()
	logger := zap.NewNop()

	_, err := New(cfg, logger, nil, &mockSynth{}, checkpoint.New(logger), validate.New(cfg.Validator, logger))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil dependencies")
}

// -- Run Tests --

func TestRun_EmptyDirectoryCommitsBaseline(t *testing.T) {
	ins := newTestInstaller(t)
	root := t.TempDir()

	result, err := ins.Run(context.Background(), Options{Root: root})
	require.NoError(t, err)
	assert.Equal(t, schemas.StatusCommitted, result.Status)
	assert.NotEmpty(t, result.WrittenPaths)
	assert.False(t, result.ValidationFailed(), "baseline artifacts must pass their own smoke checks")

	// Baseline artifacts landed on disk.
	assert.FileExists(t, filepath.Join(root, ".editorconfig"))
	assert.FileExists(t, filepath.Join(root, ".github", "workflows", "quality-gate.yml"))

	hook := filepath.Join(root, ".gatewright", "hooks", "pre-commit")
	info, err := os.Stat(hook)
	require.NoError(t, err)
	assert.EqualValues(t, 0o755, info.Mode().Perm())

	// Terminal state leaves neither lock nor journal behind.
	assert.NoFileExists(t, filepath.Join(root, lockFileName))
	assert.NoFileExists(t, checkpoint.JournalPath(root))
}

func TestRun_SecondRunIsNoOp(t *testing.T) {
	ins := newTestInstaller(t)
	root := t.TempDir()

	first, err := ins.Run(context.Background(), Options{Root: root})
	require.NoError(t, err)
	require.Equal(t, schemas.StatusCommitted, first.Status)

	second, err := ins.Run(context.Background(), Options{Root: root})
	require.NoError(t, err)
	assert.Equal(t, schemas.StatusCommitted, second.Status)
	assert.Empty(t, second.WrittenPaths, "repeated install must not rewrite identical artifacts")
	assert.ElementsMatch(t, first.WrittenPaths, second.UnchangedPaths)
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	ins := newTestInstaller(t)
	root := t.TempDir()

	result, err := ins.Run(context.Background(), Options{Root: root, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, schemas.StatusCommitted, result.Status)
	assert.Empty(t, result.WrittenPaths)
	assert.NotEmpty(t, result.Plan)
	for _, change := range result.Plan {
		assert.Equal(t, schemas.PlanCreate, change.Action)
	}

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "dry run must leave the target untouched")
}

func TestRun_MidWriteFailureRollsBackEverything(t *testing.T) {
	root := t.TempDir()
	// Third artifact lands under a path whose parent is a regular file, so
	// its write fails after two files have already been committed.
	require.NoError(t, os.WriteFile(filepath.Join(root, "blocked"), []byte("in the way"), 0o644))

	s := &mockSynth{files: []schemas.GeneratedFile{
		textFile("one.txt", "1"),
		textFile("two.txt", "2"),
		textFile(filepath.Join("blocked", "nested.txt"), "3"),
		textFile("four.txt", "4"),
		textFile("five.txt", "5"),
	}}
	ins := newInstallerWith(t, &mockDetector{}, s)

	result, err := ins.Run(context.Background(), Options{Root: root})
	require.Error(t, err)

	var rbErr *schemas.RolledBackError
	require.True(t, errors.As(err, &rbErr), "expected a RolledBackError, got %T", err)
	assert.False(t, rbErr.Report.Failed())

	assert.Equal(t, schemas.StatusRolledBack, result.Status)
	assert.Empty(t, result.WrittenPaths)

	// Files written before the failure are gone again.
	assert.NoFileExists(t, filepath.Join(root, "one.txt"))
	assert.NoFileExists(t, filepath.Join(root, "two.txt"))
	// Files after the failure point were never attempted.
	assert.NoFileExists(t, filepath.Join(root, "four.txt"))
	assert.NoFileExists(t, filepath.Join(root, "five.txt"))

	// Clean rollback discards the journal and releases the lock.
	assert.NoFileExists(t, checkpoint.JournalPath(root))
	assert.NoFileExists(t, filepath.Join(root, lockFileName))
}

func TestRun_RollbackRestoresPriorContent(t *testing.T) {
	root := t.TempDir()
	prior := filepath.Join(root, "keep.txt")
	require.NoError(t, os.WriteFile(prior, []byte("original"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "blocked"), []byte("x"), 0o644))

	s := &mockSynth{files: []schemas.GeneratedFile{
		textFile("keep.txt", "overwritten"),
		textFile(filepath.Join("blocked", "nested.txt"), "boom"),
	}}
	ins := newInstallerWith(t, &mockDetector{}, s)

	_, err := ins.Run(context.Background(), Options{Root: root})
	require.Error(t, err)

	raw, err := os.ReadFile(prior)
	require.NoError(t, err)
	assert.Equal(t, "original", string(raw))
	info, err := os.Stat(prior)
	require.NoError(t, err)
	assert.EqualValues(t, 0o600, info.Mode().Perm())
}

func TestRun_ConcurrentInstallRefused(t *testing.T) {
	ins := newTestInstaller(t)
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, lockFileName), []byte("run=other pid=1\n"), 0o644))

	_, err := ins.Run(context.Background(), Options{Root: root})
	require.Error(t, err)

	var concErr *schemas.ConcurrentInstallError
	require.True(t, errors.As(err, &concErr), "expected a ConcurrentInstallError, got %T", err)
	assert.Equal(t, "run=other pid=1", concErr.Holder)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "a refused run must not touch the target")
}

func TestRun_ForceBreaksStaleLock(t *testing.T) {
	ins := newTestInstaller(t)
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, lockFileName), []byte("run=crashed pid=1\n"), 0o644))

	result, err := ins.Run(context.Background(), Options{Root: root, Force: true})
	require.NoError(t, err)
	assert.Equal(t, schemas.StatusCommitted, result.Status)
	assert.NoFileExists(t, filepath.Join(root, lockFileName))
}

func TestRun_CancelledContextRollsBack(t *testing.T) {
	root := t.TempDir()
	s := &mockSynth{files: []schemas.GeneratedFile{textFile("one.txt", "1")}}
	// The mock detector ignores the context, so cancellation is observed
	// inside the write loop.
	ins := newInstallerWith(t, &mockDetector{}, s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := ins.Run(ctx, Options{Root: root})
	require.Error(t, err)

	var rbErr *schemas.RolledBackError
	require.True(t, errors.As(err, &rbErr))
	assert.True(t, errors.Is(rbErr.Cause, context.Canceled))
	assert.Equal(t, schemas.StatusRolledBack, result.Status)
	assert.NoFileExists(t, filepath.Join(root, "one.txt"))
}

func TestRun_DetectionErrorsPropagateBeforeLocking(t *testing.T) {
	detErr := &schemas.DetectionError{Root: "/nowhere", Reason: "unreadable root"}
	ins := newInstallerWith(t, &mockDetector{err: detErr}, &mockSynth{})
	root := t.TempDir()

	_, err := ins.Run(context.Background(), Options{Root: root})
	require.Error(t, err)

	var target *schemas.DetectionError
	assert.True(t, errors.As(err, &target))
	assert.NoFileExists(t, filepath.Join(root, lockFileName))
}

func TestRun_ValidationFailureKeepsFiles(t *testing.T) {
	root := t.TempDir()
	// An empty artifact fails the text smoke check but writes fine.
	s := &mockSynth{files: []schemas.GeneratedFile{textFile("empty.txt", "")}}
	ins := newInstallerWith(t, &mockDetector{}, s)

	result, err := ins.Run(context.Background(), Options{Root: root})
	require.NoError(t, err, "validation failure is reported through status, not error")
	assert.Equal(t, schemas.StatusPartialFailure, result.Status)
	assert.True(t, result.ValidationFailed())
	assert.Nil(t, result.Rollback, "written files are kept on validation failure")
	assert.FileExists(t, filepath.Join(root, "empty.txt"))
}

// -- ValidateOnly Tests --

func TestValidateOnly_ChecksPresentArtifacts(t *testing.T) {
	ins := newTestInstaller(t)
	root := t.TempDir()

	result, err := ins.Run(context.Background(), Options{Root: root})
	require.NoError(t, err)

	outcomes, err := ins.ValidateOnly(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, outcomes, len(result.WrittenPaths))
	for path, outcome := range outcomes {
		assert.True(t, outcome.OK, "artifact %s failed: %s", path, outcome.Detail)
	}
}

func TestValidateOnly_SkipsAbsentArtifacts(t *testing.T) {
	ins := newTestInstaller(t)

	outcomes, err := ins.ValidateOnly(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, outcomes, "nothing installed, nothing to check")
}

// -- RollbackJournal Tests --

func TestRollbackJournal_MissingJournal(t *testing.T) {
	ins := newTestInstaller(t)

	_, err := ins.RollbackJournal(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no recovery journal found")
}

func TestRollbackJournal_RestoresInterruptedRun(t *testing.T) {
	ins := newTestInstaller(t)
	root := t.TempDir()
	ckpt := checkpoint.New(zap.NewNop())

	// Simulate a run that checkpointed, persisted, wrote, and then died
	// before reaching a terminal state.
	target := filepath.Join(root, "clobbered.txt")
	require.NoError(t, os.WriteFile(target, []byte("before"), 0o644))
	cp, err := ckpt.Begin(target)
	require.NoError(t, err)
	require.NoError(t, ckpt.Persist(root, "dead-run", schemas.CheckpointSet{cp}))
	require.NoError(t, os.WriteFile(target, []byte("after"), 0o644))

	report, err := ins.RollbackJournal(root)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Attempted)
	assert.False(t, report.Failed())

	raw, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "before", string(raw))
	assert.NoFileExists(t, checkpoint.JournalPath(root))
}
