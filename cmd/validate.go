package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kvasirlabs/gatewright/internal/observability"
)

// newValidateCmd creates the `validate` command, which re-runs the
// post-install smoke checks without mutating the target.
func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [root]",
		Short: "Re-runs the smoke checks against installed quality gates",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()

			cfg, err := resolveConfig()
			if err != nil {
				return exitWith(exitConfigOrDetect, err)
			}
			root, err := targetRoot(args)
			if err != nil {
				return exitWith(exitConfigOrDetect, err)
			}

			ins, err := newInstaller(cfg, logger)
			if err != nil {
				return exitWith(exitConfigOrDetect, err)
			}

			outcomes, err := ins.ValidateOnly(cmd.Context(), root)
			if err != nil {
				return exitWith(exitConfigOrDetect, err)
			}

			printValidation(outcomes)
			if n := countFailures(outcomes); n > 0 {
				return exitWith(exitValidationFailed, fmt.Errorf("%d smoke check(s) failed", n))
			}
			fmt.Println("All smoke checks passed.")
			return nil
		},
	}
}
