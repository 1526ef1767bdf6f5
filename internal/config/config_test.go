// File: internal/config/config_test.go
package config

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	// Verify a few key defaults to ensure the mechanism works.
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, []string{"lint", "format", "test"}, cfg.Install.PreCommitSteps)
	assert.Equal(t, 80, cfg.Install.CoverageThreshold)
	assert.Equal(t, "basic", cfg.Install.ComplianceFramework)
	assert.False(t, cfg.Install.E2EEnabled)
	assert.Equal(t, ".gatewright/hooks", cfg.Install.HookDir)
	assert.Equal(t, 10*time.Second, cfg.Validator.CheckTimeout)
	assert.Equal(t, 4, cfg.Validator.Concurrency)
}

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, NewDefaultConfig().Validate())
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Install Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()

		invalidCoverage := *cfg
		invalidCoverage.Install.CoverageThreshold = 120
		err := invalidCoverage.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "coverage_threshold must be between 0 and 100")

		invalidCompliance := *cfg
		invalidCompliance.Install.ComplianceFramework = "paranoid"
		err = invalidCompliance.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "compliance_framework must be one of")

		invalidStep := *cfg
		invalidStep.Install.PreCommitSteps = []string{"lint", "deploy"}
		err = invalidStep.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), `unknown pre-commit step "deploy"`)

		emptyHookDir := *cfg
		emptyHookDir.Install.HookDir = ""
		err = emptyHookDir.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "hook_dir must not be empty")
	})

	t.Run("Validator Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()

		invalidTimeout := *cfg
		invalidTimeout.Validator.CheckTimeout = 0
		err := invalidTimeout.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "check_timeout must be a positive duration")

		invalidConcurrency := *cfg
		invalidConcurrency.Validator.Concurrency = -1
		err = invalidConcurrency.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "concurrency must be a positive integer")
	})
}

// -- Factory Function Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("Successful Load from YAML", func(t *testing.T) {
		yamlBytes := []byte(`
install:
  coverage_threshold: 65
  compliance_framework: strict
validate:
  concurrency: 2
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		err := v.ReadConfig(bytes.NewBuffer(yamlBytes))
		require.NoError(t, err)

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, 65, cfg.Install.CoverageThreshold)
		assert.Equal(t, "strict", cfg.Install.ComplianceFramework)
		assert.Equal(t, 2, cfg.Validator.Concurrency)
		// Check a default value was also loaded.
		assert.Equal(t, "info", cfg.Logger.Level)
	})

	t.Run("Validation Failure", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("install.coverage_threshold", 150) // Intentionally invalid

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
	})

	t.Run("Environment Variable Override", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.SetEnvPrefix("GATEWRIGHT")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()

		t.Setenv("GATEWRIGHT_INSTALL_COVERAGE_THRESHOLD", "95")
		t.Setenv("GATEWRIGHT_INSTALL_COMPLIANCE_FRAMEWORK", "custom")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, 95, cfg.Install.CoverageThreshold)
		assert.Equal(t, "custom", cfg.Install.ComplianceFramework)
	})
}
