// File: internal/detect/detector.go
// Description: Inspects a target project directory and produces an
// immutable ProjectProfile. Detection never fails on an unrecognized
// stack; only an unreadable root is an error.
package detect

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"go.uber.org/zap"

	"github.com/kvasirlabs/gatewright/api/schemas"
)

// Detector maps well-known marker files and declared dependencies to
// framework and tooling tags. Markers are additive: a project may match
// any number of tags and their requirements are unioned downstream.
type Detector struct {
	log *zap.Logger
}

// New creates a Detector.
func New(logger *zap.Logger) *Detector {
	return &Detector{log: logger.Named("detect")}
}

// lint/format/test marker files, matched against top-level entries.
var toolingMarkers = map[string]schemas.ToolTag{
	".eslintrc":            schemas.ToolLintConfig,
	".eslintrc.json":       schemas.ToolLintConfig,
	".eslintrc.js":         schemas.ToolLintConfig,
	".eslintrc.cjs":        schemas.ToolLintConfig,
	"eslint.config.js":     schemas.ToolLintConfig,
	"eslint.config.mjs":    schemas.ToolLintConfig,
	".prettierrc":          schemas.ToolFormatConfig,
	".prettierrc.json":     schemas.ToolFormatConfig,
	".prettierrc.yaml":     schemas.ToolFormatConfig,
	"prettier.config.js":   schemas.ToolFormatConfig,
	"vitest.config.ts":     schemas.ToolTestRunner,
	"vitest.config.js":     schemas.ToolTestRunner,
	"jest.config.js":       schemas.ToolTestRunner,
	"jest.config.ts":       schemas.ToolTestRunner,
	"playwright.config.ts": schemas.ToolE2ERunner,
	"playwright.config.js": schemas.ToolE2ERunner,
}

// Detect inspects root and returns its profile. The returned profile is a
// snapshot; callers must treat it as immutable.
func (d *Detector) Detect(ctx context.Context, root string) (schemas.ProjectProfile, error) {
	profile := schemas.ProjectProfile{Root: root, Runtime: schemas.RuntimeUnknown}

	info, err := os.Stat(root)
	if err != nil {
		return profile, &schemas.DetectionError{Root: root, Reason: "unreadable root", Err: err}
	}
	if !info.IsDir() {
		return profile, &schemas.DetectionError{Root: root, Reason: "unreadable root: not a directory"}
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return profile, &schemas.DetectionError{Root: root, Reason: "unreadable root", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return profile, &schemas.DetectionError{Root: root, Reason: "cancelled", Err: err}
	}

	frameworks := map[schemas.FrameworkTag]bool{}
	tooling := map[schemas.ToolTag]bool{}

	for _, entry := range entries {
		name := entry.Name()
		if tag, ok := toolingMarkers[name]; ok {
			tooling[tag] = true
		}
		switch name {
		case "package.json":
			manifest, err := readNodeManifest(filepath.Join(root, name))
			if err != nil {
				// A corrupt manifest degrades to a generic node profile
				// rather than aborting detection.
				d.log.Warn("Unparseable package.json, ignoring declared dependencies",
					zap.String("root", root), zap.Error(err))
			} else {
				profile.Dependencies = manifest.allDependencies()
				for tag := range manifest.frameworkTags() {
					frameworks[tag] = true
				}
				for tag := range manifest.toolingTags() {
					tooling[tag] = true
				}
			}
			frameworks[schemas.TagNodeRuntime] = true
			profile.Runtime = schemas.RuntimeNode
		case "tsconfig.json":
			frameworks[schemas.TagTypeChecked] = true
		case "go.mod":
			frameworks[schemas.TagGoModule] = true
			frameworks[schemas.TagTypeChecked] = true
			if profile.Runtime == schemas.RuntimeUnknown {
				profile.Runtime = schemas.RuntimeGo
			}
		case "pyproject.toml", "requirements.txt":
			frameworks[schemas.TagPythonProject] = true
			if profile.Runtime == schemas.RuntimeUnknown {
				profile.Runtime = schemas.RuntimePython
			}
		case "Cargo.toml":
			frameworks[schemas.TagRustCrate] = true
			frameworks[schemas.TagTypeChecked] = true
			if profile.Runtime == schemas.RuntimeUnknown {
				profile.Runtime = schemas.RuntimeRust
			}
		case ".github":
			if hasWorkflowFiles(filepath.Join(root, ".github", "workflows")) {
				tooling[schemas.ToolCIWorkflow] = true
			}
		case ".husky":
			tooling[schemas.ToolGitHooks] = true
		}
	}

	profile.Git = detectGit(root)
	profile.Frameworks = sortedFrameworks(frameworks)
	profile.Tooling = sortedTooling(tooling)

	d.log.Debug("Detection complete",
		zap.String("root", root),
		zap.String("runtime", string(profile.Runtime)),
		zap.Int("frameworks", len(profile.Frameworks)),
		zap.Int("existing_tooling", len(profile.Tooling)),
	)
	return profile, nil
}

// detectGit records whether the root is a git work tree and which branch
// is checked out. Failures here are never fatal; a project without git
// still gets a baseline profile.
func detectGit(root string) schemas.GitMetadata {
	repo, err := git.PlainOpen(root)
	if err != nil {
		return schemas.GitMetadata{}
	}
	meta := schemas.GitMetadata{IsRepo: true, Branch: "main"}
	head, err := repo.Head()
	if err == nil && head.Name().IsBranch() {
		meta.Branch = head.Name().Short()
	}
	return meta
}

func hasWorkflowFiles(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		name := strings.ToLower(e.Name())
		if strings.HasSuffix(name, ".yml") || strings.HasSuffix(name, ".yaml") {
			return true
		}
	}
	return false
}

func sortedFrameworks(set map[schemas.FrameworkTag]bool) []schemas.FrameworkTag {
	tags := make([]schemas.FrameworkTag, 0, len(set))
	for tag := range set {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

func sortedTooling(set map[schemas.ToolTag]bool) []schemas.ToolTag {
	tags := make([]schemas.ToolTag, 0, len(set))
	for tag := range set {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}
