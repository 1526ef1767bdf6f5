// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Install   InstallConfig  `mapstructure:"install" yaml:"install"`
	Validator ValidateConfig `mapstructure:"validate" yaml:"validate"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// InstallConfig carries the user-tunable knobs of an install run. It is
// loaded once and only read afterwards; synthesis is a pure function of it.
type InstallConfig struct {
	PreCommitSteps      []string `mapstructure:"pre_commit_steps" yaml:"pre_commit_steps"`
	CoverageThreshold   int      `mapstructure:"coverage_threshold" yaml:"coverage_threshold"`
	ComplianceFramework string   `mapstructure:"compliance_framework" yaml:"compliance_framework"`
	E2EEnabled          bool     `mapstructure:"e2e_enabled" yaml:"e2e_enabled"`
	SonarProjectKey     string   `mapstructure:"sonar_project_key" yaml:"sonar_project_key"`
	HookDir             string   `mapstructure:"hook_dir" yaml:"hook_dir"`
}

// ValidateConfig tunes the post-install smoke checks.
type ValidateConfig struct {
	CheckTimeout time.Duration `mapstructure:"check_timeout" yaml:"check_timeout"`
	Concurrency  int           `mapstructure:"concurrency" yaml:"concurrency"`
}

// Recognized enum values for InstallConfig fields.
var (
	knownSteps = map[string]bool{
		"lint":      true,
		"format":    true,
		"typecheck": true,
		"test":      true,
	}
	knownCompliance = map[string]bool{
		"basic":  true,
		"strict": true,
		"custom": true,
	}
)

// SetDefaults initializes default values for every recognized option.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "gatewright")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Install --
	v.SetDefault("install.pre_commit_steps", []string{"lint", "format", "test"})
	v.SetDefault("install.coverage_threshold", 80)
	v.SetDefault("install.compliance_framework", "basic")
	v.SetDefault("install.e2e_enabled", false)
	v.SetDefault("install.sonar_project_key", "")
	v.SetDefault("install.hook_dir", ".gatewright/hooks")

	// -- Validate --
	v.SetDefault("validate.check_timeout", "10s")
	v.SetDefault("validate.concurrency", 4)
}

// NewDefaultConfig creates a configuration struct populated with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a configuration instance from a viper object
// and validates it.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.Install.Validate(); err != nil {
		return fmt.Errorf("install configuration invalid: %w", err)
	}
	if err := c.Validator.Validate(); err != nil {
		return fmt.Errorf("validate configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the validator settings.
func (v *ValidateConfig) Validate() error {
	if v.CheckTimeout <= 0 {
		return fmt.Errorf("check_timeout must be a positive duration")
	}
	if v.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be a positive integer")
	}
	return nil
}

// Validate checks the install options.
func (i *InstallConfig) Validate() error {
	if i.CoverageThreshold < 0 || i.CoverageThreshold > 100 {
		return fmt.Errorf("coverage_threshold must be between 0 and 100")
	}
	if !knownCompliance[i.ComplianceFramework] {
		return fmt.Errorf("compliance_framework must be one of basic, strict, custom")
	}
	for _, step := range i.PreCommitSteps {
		if !knownSteps[step] {
			return fmt.Errorf("unknown pre-commit step %q", step)
		}
	}
	if i.HookDir == "" {
		return fmt.Errorf("hook_dir must not be empty")
	}
	return nil
}
