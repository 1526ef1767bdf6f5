// File: internal/detect/manifest.go
package detect

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"

	"github.com/kvasirlabs/gatewright/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// nodeManifest is the subset of package.json detection cares about.
type nodeManifest struct {
	Name            string            `json:"name"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
	Scripts         map[string]string `json:"scripts"`
}

// dependencyTags maps declared package names to the framework tags they
// imply. Multiple matches union; no entry excludes another.
var dependencyTags = map[string]schemas.FrameworkTag{
	"next":             schemas.TagWebFullstack,
	"nuxt":             schemas.TagWebFullstack,
	"@sveltejs/kit":    schemas.TagWebFullstack,
	"react":            schemas.TagComponentFramework,
	"preact":           schemas.TagComponentFramework,
	"vue":              schemas.TagComponentFramework,
	"svelte":           schemas.TagComponentFramework,
	"storybook":        schemas.TagComponentLibrary,
	"@storybook/react": schemas.TagComponentLibrary,
	"typescript":       schemas.TagTypeChecked,
}

// dependencyTools maps declared package names to already-present tooling.
var dependencyTools = map[string]schemas.ToolTag{
	"eslint":           schemas.ToolLintConfig,
	"prettier":         schemas.ToolFormatConfig,
	"vitest":           schemas.ToolTestRunner,
	"jest":             schemas.ToolTestRunner,
	"@playwright/test": schemas.ToolE2ERunner,
	"husky":            schemas.ToolGitHooks,
}

func readNodeManifest(path string) (*nodeManifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var m nodeManifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &m, nil
}

// allDependencies flattens runtime and dev dependencies into one map of
// declared name to version string.
func (m *nodeManifest) allDependencies() map[string]string {
	if len(m.Dependencies) == 0 && len(m.DevDependencies) == 0 {
		return nil
	}
	deps := make(map[string]string, len(m.Dependencies)+len(m.DevDependencies))
	for name, version := range m.Dependencies {
		deps[name] = version
	}
	for name, version := range m.DevDependencies {
		deps[name] = version
	}
	return deps
}

func (m *nodeManifest) frameworkTags() map[schemas.FrameworkTag]bool {
	tags := map[schemas.FrameworkTag]bool{}
	for name := range m.allDependencies() {
		if tag, ok := dependencyTags[name]; ok {
			tags[tag] = true
		}
	}
	return tags
}

func (m *nodeManifest) toolingTags() map[schemas.ToolTag]bool {
	tags := map[schemas.ToolTag]bool{}
	for name := range m.allDependencies() {
		if tag, ok := dependencyTools[name]; ok {
			tags[tag] = true
		}
	}
	return tags
}
