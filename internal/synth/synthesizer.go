// File: internal/synth/synthesizer.go
// Description: Turns a ProjectProfile plus install options into the
// ordered set of GeneratedFile artifacts. Synthesis never writes; the
// installer owns all mutation. For a fixed profile, options, and on-disk
// state, the output is byte-identical on every call, which is what makes
// repeated installs produce no diffs.
package synth

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/kvasirlabs/gatewright/api/schemas"
	"github.com/kvasirlabs/gatewright/internal/config"
)

// Well-known artifact paths, relative to the target root.
const (
	PathEditorConfig = ".editorconfig"
	PathESLint       = ".eslintrc.json"
	PathPrettier     = ".prettierrc.json"
	PathVitest       = "vitest.config.ts"
	PathPlaywright   = "playwright.config.ts"
	PathWorkflow     = ".github/workflows/quality-gate.yml"
	PathSonar        = "sonar-project.properties"
	HookPreCommit    = "pre-commit"
)

// Synthesizer produces configuration artifacts for a detected stack.
type Synthesizer struct {
	log *zap.Logger
}

// New creates a Synthesizer.
func New(logger *zap.Logger) *Synthesizer {
	return &Synthesizer{log: logger.Named("synth")}
}

// Synthesize returns the artifacts to install, in a fixed order chosen for
// log readability. The artifacts are logically independent; none reads
// another's output.
func (s *Synthesizer) Synthesize(profile schemas.ProjectProfile, cfg config.InstallConfig) ([]schemas.GeneratedFile, []schemas.Advisory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, &schemas.ConfigurationError{Reason: err.Error()}
	}

	var files []schemas.GeneratedFile
	var advisories []schemas.Advisory

	// Baseline artifact, emitted for every stack including an empty one.
	files = append(files, schemas.GeneratedFile{
		Path:     PathEditorConfig,
		Content:  []byte(editorConfigTemplate),
		Mode:     schemas.ModeCreate,
		FileMode: 0o644,
	})

	if profile.Runtime == schemas.RuntimeNode {
		eslint, adv := s.mergedJSONArtifact(profile.Root, PathESLint, eslintOwnedConfig(profile))
		files = append(files, eslint)
		advisories = append(advisories, adv...)

		prettier, adv := s.mergedJSONArtifact(profile.Root, PathPrettier, prettierOwnedConfig())
		files = append(files, prettier)
		advisories = append(advisories, adv...)

		threshold := cfg.CoverageThreshold
		files = append(files, schemas.GeneratedFile{
			Path:     PathVitest,
			Content:  fmtVitest(threshold),
			Mode:     schemas.ModeCreate,
			FileMode: 0o644,
		})

		if cfg.E2EEnabled {
			files = append(files, schemas.GeneratedFile{
				Path:     PathPlaywright,
				Content:  []byte(playwrightConfigTemplate),
				Mode:     schemas.ModeCreate,
				FileMode: 0o644,
			})
		}
	}

	workflow, err := buildWorkflow(profile, cfg)
	if err != nil {
		return nil, nil, err
	}
	files = append(files, schemas.GeneratedFile{
		Path:     PathWorkflow,
		Content:  workflow,
		Mode:     schemas.ModeOverwrite,
		FileMode: 0o644,
	})

	files = append(files, schemas.GeneratedFile{
		Path:     filepath.Join(cfg.HookDir, HookPreCommit),
		Content:  renderPreCommitHook(profile.Runtime, cfg.PreCommitSteps),
		Mode:     schemas.ModeOverwrite,
		FileMode: 0o755,
	})

	if cfg.SonarProjectKey != "" {
		files = append(files, schemas.GeneratedFile{
			Path:     PathSonar,
			Content:  renderSonarProperties(cfg.SonarProjectKey, profile),
			Mode:     schemas.ModeCreate,
			FileMode: 0o644,
		})
	}

	s.log.Debug("Synthesis complete",
		zap.Int("artifacts", len(files)),
		zap.Int("advisories", len(advisories)),
	)
	return files, advisories, nil
}

// mergedJSONArtifact produces a merge-aware JSON artifact. When a prior
// file exists and parses, the synthesizer's owned keys are layered over it
// and every unrecognized key survives. When the prior file cannot be
// parsed, ownership boundaries are unknowable, so the artifact downgrades
// to create-only-if-absent and the caller gets a non-fatal advisory.
func (s *Synthesizer) mergedJSONArtifact(root, relPath string, owned map[string]any) (schemas.GeneratedFile, []schemas.Advisory) {
	gf := schemas.GeneratedFile{Path: relPath, Mode: schemas.ModeCreate, FileMode: 0o644}

	freshContent, err := marshalJSON(owned)
	if err != nil {
		// Owned tables are static maps of plain values; this cannot fail
		// for any input the synthesizer builds.
		panic(err)
	}
	gf.Content = freshContent

	existing, err := os.ReadFile(filepath.Join(root, relPath))
	if errors.Is(err, fs.ErrNotExist) {
		return gf, nil
	}
	if err != nil {
		s.log.Warn("Cannot read existing artifact, leaving it untouched",
			zap.String("path", relPath), zap.Error(err))
		return gf, []schemas.Advisory{{Path: relPath, Reason: "existing file unreadable; left untouched"}}
	}

	merged, err := mergeJSON(existing, owned)
	if err != nil {
		s.log.Warn("Existing artifact is not mergeable, leaving it untouched",
			zap.String("path", relPath), zap.Error(err))
		return gf, []schemas.Advisory{{Path: relPath, Reason: "existing file not a JSON object; left untouched"}}
	}

	gf.Content = merged
	gf.Mode = schemas.ModeMergeIfExists
	return gf, nil
}

func fmtVitest(threshold int) []byte {
	return []byte(fmt.Sprintf(vitestConfigTemplate, threshold, threshold, threshold, threshold))
}
