package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kvasirlabs/gatewright/api/schemas"
	"github.com/kvasirlabs/gatewright/internal/checkpoint"
	"github.com/kvasirlabs/gatewright/internal/config"
	"github.com/kvasirlabs/gatewright/internal/detect"
	"github.com/kvasirlabs/gatewright/internal/installer"
	"github.com/kvasirlabs/gatewright/internal/observability"
	"github.com/kvasirlabs/gatewright/internal/synth"
	"github.com/kvasirlabs/gatewright/internal/validate"
)

// Exit codes of the install command.
const (
	exitValidationFailed = 1
	exitConfigOrDetect   = 2
	exitRolledBack       = 3
)

// newInstallCmd creates and configures the `install` command.
func newInstallCmd() *cobra.Command {
	installCmd := &cobra.Command{
		Use:   "install [root]",
		Short: "Detects the target's stack and installs its quality gates",
		Args:  cobra.MaximumNArgs(1),
		// Bind flags to their viper keys here so command-line flags
		// correctly override config file and environment values.
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("install.coverage_threshold", cmd.Flags().Lookup("coverage-threshold")); err != nil {
				return err
			}
			if err := viper.BindPFlag("install.compliance_framework", cmd.Flags().Lookup("compliance")); err != nil {
				return err
			}
			if err := viper.BindPFlag("install.e2e_enabled", cmd.Flags().Lookup("e2e")); err != nil {
				return err
			}
			return viper.BindPFlag("install.sonar_project_key", cmd.Flags().Lookup("sonar-key"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := resolveConfig()
			if err != nil {
				return exitWith(exitConfigOrDetect, err)
			}

			root, err := targetRoot(args)
			if err != nil {
				return exitWith(exitConfigOrDetect, err)
			}

			dryRun, _ := cmd.Flags().GetBool("dry-run")
			force, _ := cmd.Flags().GetBool("force")

			ins, err := newInstaller(cfg, logger)
			if err != nil {
				return exitWith(exitConfigOrDetect, err)
			}

			result, err := ins.Run(ctx, installer.Options{Root: root, DryRun: dryRun, Force: force})
			if err != nil {
				return mapInstallError(result, err)
			}

			printResult(result)
			if result.Status == schemas.StatusPartialFailure {
				return exitWith(exitValidationFailed,
					fmt.Errorf("%d smoke check(s) failed; written files were kept (run `gatewright validate %s` after fixing tooling)",
						countFailures(result.Validation), root))
			}
			return nil
		},
	}

	installCmd.Flags().Bool("dry-run", false, "Report what would change without writing anything.")
	installCmd.Flags().Bool("force", false, "Remove a stale install lock before starting.")
	installCmd.Flags().Int("coverage-threshold", 0, "Coverage gate percentage. (Overrides config/env)")
	installCmd.Flags().String("compliance", "", "Compliance framework: basic, strict, custom. (Overrides config/env)")
	installCmd.Flags().Bool("e2e", false, "Emit end-to-end test configuration. (Overrides config/env)")
	installCmd.Flags().String("sonar-key", "", "SonarCloud project key to emit. (Overrides config/env)")

	return installCmd
}

// resolveConfig re-unmarshals the viper state after flag binding so the
// final precedence (flags > env > file > defaults) applies.
func resolveConfig() (*config.Config, error) {
	cfg, err := config.NewConfigFromViper(viper.GetViper())
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// targetRoot resolves the positional root argument, defaulting to the
// current directory.
func targetRoot(args []string) (string, error) {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving target root: %w", err)
	}
	return abs, nil
}

// newInstaller wires the concrete components together.
func newInstaller(cfg *config.Config, logger *zap.Logger) (*installer.Installer, error) {
	return installer.New(
		cfg,
		logger,
		detect.New(logger),
		synth.New(logger),
		checkpoint.New(logger),
		validate.New(cfg.Validator, logger),
	)
}

// mapInstallError translates the error taxonomy into exit codes and a
// recovery hint the user can act on.
func mapInstallError(result *schemas.InstallResult, err error) error {
	var detectionErr *schemas.DetectionError
	var configErr *schemas.ConfigurationError
	var concurrentErr *schemas.ConcurrentInstallError
	var rolledBack *schemas.RolledBackError

	switch {
	case errors.As(err, &detectionErr), errors.As(err, &configErr), errors.As(err, &concurrentErr):
		// Terminal before any mutation; nothing was touched.
		return exitWith(exitConfigOrDetect, fmt.Errorf("%w (no files were modified)", err))
	case errors.As(err, &rolledBack):
		if rolledBack.Report.Failed() {
			return exitWith(exitRolledBack,
				fmt.Errorf("%w; re-run `gatewright rollback` to retry restoring: %v",
					err, rolledBack.Report.FailedPaths()))
		}
		return exitWith(exitRolledBack, fmt.Errorf("%w (prior state was restored)", err))
	default:
		if result != nil && len(result.WrittenPaths) > 0 {
			return exitWith(exitRolledBack, fmt.Errorf("%w (touched: %v)", err, result.WrittenPaths))
		}
		return err
	}
}

func printResult(result *schemas.InstallResult) {
	if len(result.Plan) > 0 {
		fmt.Println("Dry run plan:")
		for _, change := range result.Plan {
			fmt.Printf("  %-14s %s\n", change.Action, change.Path)
		}
		return
	}

	fmt.Printf("Install %s (run %s)\n", result.Status, result.RunID)
	for _, p := range result.WrittenPaths {
		fmt.Printf("  wrote      %s\n", p)
	}
	for _, p := range result.UnchangedPaths {
		fmt.Printf("  unchanged  %s\n", p)
	}
	for _, p := range result.SkippedPaths {
		fmt.Printf("  kept       %s\n", p)
	}
	for _, adv := range result.Advisories {
		fmt.Printf("  advisory   %s: %s\n", adv.Path, adv.Reason)
	}
	printValidation(result.Validation)
}

func printValidation(outcomes map[string]schemas.ValidationOutcome) {
	if len(outcomes) == 0 {
		return
	}
	paths := make([]string, 0, len(outcomes))
	for p := range outcomes {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	fmt.Println("Validation:")
	for _, p := range paths {
		outcome := outcomes[p]
		if outcome.OK {
			fmt.Printf("  ok    %s\n", p)
		} else {
			fmt.Printf("  FAIL  %s: %s\n", p, outcome.Detail)
		}
	}
}

func countFailures(outcomes map[string]schemas.ValidationOutcome) int {
	n := 0
	for _, outcome := range outcomes {
		if !outcome.OK {
			n++
		}
	}
	return n
}
