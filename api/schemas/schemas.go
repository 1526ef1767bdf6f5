// Package schemas defines the shared contracts between the gatewright
// components. Everything here is pure data; no package in api/schemas may
// import from internal/.
package schemas

import (
	"io/fs"
	"time"
)

// FrameworkTag identifies one detected technology capability of a target
// project. A project may carry any number of tags; tags never exclude each
// other and their configuration requirements are unioned downstream.
type FrameworkTag string

const (
	TagWebFullstack       FrameworkTag = "web-fullstack"
	TagComponentFramework FrameworkTag = "component-framework"
	TagComponentLibrary   FrameworkTag = "component-library"
	TagTypeChecked        FrameworkTag = "type-checked-language"
	TagNodeRuntime        FrameworkTag = "node-runtime"
	TagGoModule           FrameworkTag = "go-module"
	TagPythonProject      FrameworkTag = "python-project"
	TagRustCrate          FrameworkTag = "rust-crate"
)

// ToolTag marks quality-gate tooling the target project already carries.
type ToolTag string

const (
	ToolLintConfig   ToolTag = "lint-config"
	ToolFormatConfig ToolTag = "format-config"
	ToolTestRunner   ToolTag = "test-runner"
	ToolE2ERunner    ToolTag = "e2e-runner"
	ToolCIWorkflow   ToolTag = "ci-workflow"
	ToolGitHooks     ToolTag = "git-hooks"
)

// LanguageRuntime is the primary runtime of the target project.
type LanguageRuntime string

const (
	RuntimeNode    LanguageRuntime = "node"
	RuntimeGo      LanguageRuntime = "go"
	RuntimePython  LanguageRuntime = "python"
	RuntimeRust    LanguageRuntime = "rust"
	RuntimeUnknown LanguageRuntime = "unknown"
)

// GitMetadata carries the repository facts the synthesizer cares about.
type GitMetadata struct {
	IsRepo bool   `json:"is_repo"`
	Branch string `json:"branch,omitempty"`
}

// ProjectProfile is the immutable result of stack detection for one target
// directory. It is built once per install run and never mutated afterward;
// every downstream decision is a pure function of it.
type ProjectProfile struct {
	Root       string            `json:"root"`
	Frameworks []FrameworkTag    `json:"frameworks"`
	Runtime    LanguageRuntime   `json:"runtime"`
	Tooling    []ToolTag         `json:"tooling"`
	// Dependencies maps declared dependency names to version strings as
	// found in the project's manifests.
	Dependencies map[string]string `json:"dependencies,omitempty"`
	Git          GitMetadata       `json:"git"`
}

// HasFramework reports whether the profile carries the given tag.
func (p ProjectProfile) HasFramework(tag FrameworkTag) bool {
	for _, t := range p.Frameworks {
		if t == tag {
			return true
		}
	}
	return false
}

// HasTool reports whether the profile detected the given existing tooling.
func (p ProjectProfile) HasTool(tag ToolTag) bool {
	for _, t := range p.Tooling {
		if t == tag {
			return true
		}
	}
	return false
}

// WriteMode controls how the installer commits a generated file.
type WriteMode string

const (
	// ModeCreate writes the file only when it does not exist yet.
	ModeCreate WriteMode = "create"
	// ModeOverwrite unconditionally replaces the file.
	ModeOverwrite WriteMode = "overwrite"
	// ModeMergeIfExists means the content was produced by merging the
	// synthesizer's owned keys over a pre-existing file; the installer
	// commits it like an overwrite.
	ModeMergeIfExists WriteMode = "merge"
)

// GeneratedFile is an in-memory artifact produced by synthesis. It is pure
// data and has no side effects until the installer commits it.
type GeneratedFile struct {
	// Path is relative to the target root.
	Path     string
	Content  []byte
	Mode     WriteMode
	FileMode fs.FileMode
}

// Advisory is a non-fatal note produced during synthesis, for example when
// a merge had to be downgraded because an existing file was unparseable.
type Advisory struct {
	Path   string
	Reason string
}

// Checkpoint records the pre-write state of one path. A checkpoint must be
// durably recorded before the write to its path happens.
type Checkpoint struct {
	Path         string
	Existed      bool
	PriorContent []byte
	PriorMode    fs.FileMode
}

// CheckpointSet is the ordered sequence of checkpoints for one install run.
// It grows monotonically as files are about to be written and is either
// discarded (success) or consumed by rollback at run end.
type CheckpointSet []Checkpoint

// RollbackFailure describes one path rollback could not restore.
type RollbackFailure struct {
	Path   string
	Reason string
}

// RollbackReport is the best-effort outcome of rolling back a checkpoint
// set. Individual failures are collected, never thrown.
type RollbackReport struct {
	Attempted int
	Failures  []RollbackFailure
}

// Failed reports whether any path could not be restored.
func (r RollbackReport) Failed() bool { return len(r.Failures) > 0 }

// FailedPaths returns the paths rollback could not restore.
func (r RollbackReport) FailedPaths() []string {
	paths := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		paths = append(paths, f.Path)
	}
	return paths
}

// InstallStatus is the terminal state of an install run.
type InstallStatus string

const (
	StatusCommitted      InstallStatus = "committed"
	StatusRolledBack     InstallStatus = "rolled-back"
	StatusPartialFailure InstallStatus = "partial-failure"
)

// ValidationOutcome is the result of one post-install smoke check.
type ValidationOutcome struct {
	OK     bool
	Detail string
}

// PlanAction describes what an install run would do to one path.
type PlanAction string

const (
	PlanCreate    PlanAction = "create"
	PlanOverwrite PlanAction = "overwrite"
	PlanMerge     PlanAction = "merge"
	PlanUnchanged PlanAction = "unchanged"
	PlanSkip      PlanAction = "skip-existing"
)

// PlannedChange is one entry of a dry-run plan.
type PlannedChange struct {
	Path   string
	Action PlanAction
}

// InstallResult summarizes one install run.
type InstallResult struct {
	RunID      string
	Status     InstallStatus
	StartedAt  time.Time
	FinishedAt time.Time

	// WrittenPaths are the paths this run actually mutated, in write order.
	WrittenPaths []string
	// UnchangedPaths are planned paths whose on-disk state already matched
	// the generated artifact, so no checkpoint or write happened.
	UnchangedPaths []string
	// SkippedPaths are create-only artifacts left alone because a file
	// already existed.
	SkippedPaths []string

	Advisories []Advisory
	Validation map[string]ValidationOutcome
	Rollback   *RollbackReport

	// Plan is populated on dry runs instead of any mutation.
	Plan []PlannedChange
}

// ValidationFailed reports whether any smoke check failed.
func (r *InstallResult) ValidationFailed() bool {
	for _, outcome := range r.Validation {
		if !outcome.OK {
			return true
		}
	}
	return false
}
