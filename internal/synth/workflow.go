// File: internal/synth/workflow.go
// The CI workflow is built as a typed document and marshalled with
// yaml.v3, never string-templated, so the emitted YAML is always valid.
package synth

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/kvasirlabs/gatewright/api/schemas"
	"github.com/kvasirlabs/gatewright/internal/config"
)

type workflowDoc struct {
	Name string       `yaml:"name"`
	On   workflowOn   `yaml:"on"`
	Jobs workflowJobs `yaml:"jobs"`
}

type workflowOn struct {
	Push        workflowBranches `yaml:"push"`
	PullRequest workflowBranches `yaml:"pull_request"`
}

type workflowBranches struct {
	Branches []string `yaml:"branches"`
}

type workflowJobs struct {
	Quality workflowJob `yaml:"quality"`
}

type workflowJob struct {
	RunsOn string            `yaml:"runs-on"`
	Env    map[string]string `yaml:"env,omitempty"`
	Steps  []workflowStep    `yaml:"steps"`
}

type workflowStep struct {
	Name string            `yaml:"name,omitempty"`
	Uses string            `yaml:"uses,omitempty"`
	With map[string]string `yaml:"with,omitempty"`
	Run  string            `yaml:"run,omitempty"`
}

// buildWorkflow renders the quality-gate workflow document for the
// detected stack. The trigger branch comes from the target's git
// metadata so generated CI matches the repository it lands in.
func buildWorkflow(profile schemas.ProjectProfile, cfg config.InstallConfig) ([]byte, error) {
	branch := profile.Git.Branch
	if branch == "" {
		branch = "main"
	}

	steps := []workflowStep{
		{Name: "Checkout", Uses: "actions/checkout@v4"},
	}
	switch profile.Runtime {
	case schemas.RuntimeNode:
		steps = append(steps,
			workflowStep{Name: "Setup Node", Uses: "actions/setup-node@v4", With: map[string]string{"node-version": "22"}},
			workflowStep{Name: "Install dependencies", Run: "npm ci"},
		)
	case schemas.RuntimeGo:
		steps = append(steps,
			workflowStep{Name: "Setup Go", Uses: "actions/setup-go@v5", With: map[string]string{"go-version": "stable"}},
		)
	case schemas.RuntimePython:
		steps = append(steps,
			workflowStep{Name: "Setup Python", Uses: "actions/setup-python@v5", With: map[string]string{"python-version": "3.12"}},
		)
	}

	for _, step := range cfg.PreCommitSteps {
		steps = append(steps, workflowStep{
			Name: fmt.Sprintf("Gate: %s", step),
			Run:  commandFor(profile.Runtime, step),
		})
	}

	if cfg.ComplianceFramework == "strict" && cfg.E2EEnabled && profile.Runtime == schemas.RuntimeNode {
		steps = append(steps, workflowStep{Name: "Gate: e2e", Run: "npx playwright test"})
	}
	if cfg.SonarProjectKey != "" {
		steps = append(steps, workflowStep{
			Name: "SonarCloud scan",
			Uses: "sonarsource/sonarcloud-github-action@v2",
		})
	}

	doc := workflowDoc{
		Name: "quality-gate",
		On: workflowOn{
			Push:        workflowBranches{Branches: []string{branch}},
			PullRequest: workflowBranches{Branches: []string{branch}},
		},
		Jobs: workflowJobs{
			Quality: workflowJob{
				RunsOn: "ubuntu-latest",
				Env: map[string]string{
					"COVERAGE_THRESHOLD": fmt.Sprintf("%d", cfg.CoverageThreshold),
				},
				Steps: steps,
			},
		},
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("marshaling workflow document: %w", err)
	}
	return out, nil
}
