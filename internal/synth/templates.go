// File: internal/synth/templates.go
// Static artifact templates and the owned-key tables for merged configs.
package synth

import (
	"fmt"
	"strings"

	"github.com/kvasirlabs/gatewright/api/schemas"
)

// editorConfigTemplate is the generic baseline every install emits, even
// for an empty or unrecognized project.
const editorConfigTemplate = `root = true

[*]
charset = utf-8
end_of_line = lf
insert_final_newline = true
indent_style = space
indent_size = 2
trim_trailing_whitespace = true
`

const vitestConfigTemplate = `import { defineConfig } from 'vitest/config'

export default defineConfig({
  test: {
    environment: 'node',
    coverage: {
      provider: 'v8',
      thresholds: {
        lines: %d,
        branches: %d,
        functions: %d,
        statements: %d,
      },
    },
  },
})
`

const playwrightConfigTemplate = `import { defineConfig } from '@playwright/test'

export default defineConfig({
  testDir: './e2e',
  fullyParallel: true,
  retries: 1,
  reporter: 'line',
  use: {
    trace: 'on-first-retry',
  },
})
`

// eslintOwnedConfig returns the keys the synthesizer owns in
// .eslintrc.json. Anything else found in an existing file is preserved.
func eslintOwnedConfig(profile schemas.ProjectProfile) map[string]any {
	cfg := map[string]any{
		"root": true,
		"env": map[string]any{
			"es2022": true,
			"node":   true,
		},
		"extends": []any{"eslint:recommended"},
	}
	if profile.HasFramework(schemas.TagTypeChecked) {
		cfg["parser"] = "@typescript-eslint/parser"
		cfg["extends"] = []any{"eslint:recommended", "plugin:@typescript-eslint/recommended"}
	}
	if profile.HasFramework(schemas.TagComponentFramework) {
		cfg["settings"] = map[string]any{
			"react": map[string]any{"version": "detect"},
		}
	}
	return cfg
}

// prettierOwnedConfig returns the keys the synthesizer owns in
// .prettierrc.json.
func prettierOwnedConfig() map[string]any {
	return map[string]any{
		"printWidth":    100,
		"semi":          false,
		"singleQuote":   true,
		"trailingComma": "all",
	}
}

// stepCommands maps a pre-commit step tag to the command used for each
// runtime. Unknown runtimes get a commented no-op so the generated hook
// stays runnable.
var stepCommands = map[schemas.LanguageRuntime]map[string]string{
	schemas.RuntimeNode: {
		"lint":      "npx eslint .",
		"format":    "npx prettier --check .",
		"typecheck": "npx tsc --noEmit",
		"test":      "npx vitest run",
	},
	schemas.RuntimeGo: {
		"lint":      "go vet ./...",
		"format":    "test -z \"$(gofmt -l .)\"",
		"typecheck": "go build ./...",
		"test":      "go test ./...",
	},
	schemas.RuntimePython: {
		"lint":      "ruff check .",
		"format":    "ruff format --check .",
		"typecheck": "mypy .",
		"test":      "pytest",
	},
	schemas.RuntimeRust: {
		"lint":      "cargo clippy -- -D warnings",
		"format":    "cargo fmt --check",
		"typecheck": "cargo check",
		"test":      "cargo test",
	},
}

// commandFor resolves the shell command for one step, falling back to a
// comment when the runtime has no mapping.
func commandFor(runtime schemas.LanguageRuntime, step string) string {
	if commands, ok := stepCommands[runtime]; ok {
		if cmd, ok := commands[step]; ok {
			return cmd
		}
	}
	return fmt.Sprintf(": # no %s step configured for runtime %q", step, runtime)
}

// renderPreCommitHook builds the pre-commit script from the configured
// step order. The script fails fast on the first failing gate.
func renderPreCommitHook(runtime schemas.LanguageRuntime, steps []string) []byte {
	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	b.WriteString("# Managed by gatewright. Edit gatewright.yaml instead of this file.\n")
	b.WriteString("set -e\n\n")
	for _, step := range steps {
		fmt.Fprintf(&b, "echo \"gatewright: %s\"\n", step)
		b.WriteString(commandFor(runtime, step) + "\n")
	}
	return []byte(b.String())
}

// renderSonarProperties emits the static SonarCloud project file. Project
// bootstrapping against the SonarCloud API is deliberately not done here.
func renderSonarProperties(projectKey string, profile schemas.ProjectProfile) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "sonar.projectKey=%s\n", projectKey)
	b.WriteString("sonar.sources=.\n")
	b.WriteString("sonar.sourceEncoding=UTF-8\n")
	if profile.Runtime == schemas.RuntimeNode {
		b.WriteString("sonar.exclusions=node_modules/**,dist/**,coverage/**\n")
	}
	return []byte(b.String())
}
