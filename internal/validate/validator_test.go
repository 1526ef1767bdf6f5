// File: internal/validate/validator_test.go
package validate

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/kvasirlabs/gatewright/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testValidator() *Validator {
	return New(config.ValidateConfig{
		CheckTimeout: 5 * time.Second,
		Concurrency:  4,
	}, zap.NewNop())
}

func writeArtifact(t *testing.T, root, name, content string, mode os.FileMode) {
	t.Helper()
	path := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), mode))
}

func TestValidate_EmptyPathList(t *testing.T) {
	outcomes := testValidator().Validate(context.Background(), t.TempDir(), nil)
	assert.Empty(t, outcomes)
}

func TestValidate_ReportsOneOutcomePerPath(t *testing.T) {
	root := t.TempDir()
	writeArtifact(t, root, "good.json", `{"ok": true}`, 0o644)
	writeArtifact(t, root, "bad.json", `{ torn`, 0o644)
	writeArtifact(t, root, "workflow.yml", "name: ci\non: push\n", 0o644)

	outcomes := testValidator().Validate(context.Background(), root,
		[]string{"good.json", "bad.json", "workflow.yml", "missing.txt"})
	require.Len(t, outcomes, 4)

	assert.True(t, outcomes["good.json"].OK)
	assert.True(t, outcomes["workflow.yml"].OK)

	assert.False(t, outcomes["bad.json"].OK)
	assert.Contains(t, outcomes["bad.json"].Detail, "invalid JSON")

	assert.False(t, outcomes["missing.txt"].OK)
	assert.Contains(t, outcomes["missing.txt"].Detail, "unreadable")
}

func TestValidate_ArtifactKinds(t *testing.T) {
	root := t.TempDir()
	v := testValidator()

	t.Run("Properties", func(t *testing.T) {
		writeArtifact(t, root, "ok.properties", "# comment\nsonar.projectKey=demo\n\n", 0o644)
		writeArtifact(t, root, "bad.properties", "sonar.projectKey=demo\nnot a pair\n", 0o644)

		outcomes := v.Validate(context.Background(), root, []string{"ok.properties", "bad.properties"})
		assert.True(t, outcomes["ok.properties"].OK)
		assert.False(t, outcomes["bad.properties"].OK)
		assert.Contains(t, outcomes["bad.properties"].Detail, "line 2")
	})

	t.Run("Hook Scripts", func(t *testing.T) {
		writeArtifact(t, root, "hooks/pre-commit", "#!/bin/sh\nexit 0\n", 0o755)
		writeArtifact(t, root, "hooks/no-shebang", "exit 0\n", 0o755)
		writeArtifact(t, root, "hooks/not-exec", "#!/bin/sh\n", 0o644)

		outcomes := v.Validate(context.Background(), root,
			[]string{"hooks/pre-commit", "hooks/no-shebang", "hooks/not-exec"})
		assert.True(t, outcomes["hooks/pre-commit"].OK)
		assert.Equal(t, "missing shebang", outcomes["hooks/no-shebang"].Detail)
		assert.Equal(t, "not executable", outcomes["hooks/not-exec"].Detail)
	})

	t.Run("Plain Text", func(t *testing.T) {
		writeArtifact(t, root, ".editorconfig", "root = true\n", 0o644)
		writeArtifact(t, root, "empty.txt", "", 0o644)
		writeArtifact(t, root, "binary.txt", "\xff\xfe\x00", 0o644)

		outcomes := v.Validate(context.Background(), root,
			[]string{".editorconfig", "empty.txt", "binary.txt"})
		assert.True(t, outcomes[".editorconfig"].OK)
		assert.Equal(t, "empty file", outcomes["empty.txt"].Detail)
		assert.Equal(t, "not valid UTF-8", outcomes["binary.txt"].Detail)
	})
}

func TestValidate_CancelledContextReportsTimeouts(t *testing.T) {
	root := t.TempDir()
	writeArtifact(t, root, "fine.json", `{}`, 0o644)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A dead caller context means no check budget is left; every path is
	// still accounted for in the report.
	outcomes := testValidator().Validate(ctx, root, []string{"fine.json"})
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes["fine.json"].OK)
	assert.Equal(t, "timeout", outcomes["fine.json"].Detail)
}

func TestValidate_ConcurrencyLimitOfOne(t *testing.T) {
	root := t.TempDir()
	paths := make([]string, 0, 8)
	for _, name := range []string{"a.json", "b.json", "c.json", "d.json"} {
		writeArtifact(t, root, name, `{}`, 0o644)
		paths = append(paths, name)
	}

	v := New(config.ValidateConfig{CheckTimeout: 5 * time.Second, Concurrency: 1}, zap.NewNop())
	outcomes := v.Validate(context.Background(), root, paths)
	require.Len(t, outcomes, 4)
	for path, outcome := range outcomes {
		assert.True(t, outcome.OK, "path %s: %s", path, outcome.Detail)
	}
}
