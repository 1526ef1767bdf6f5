package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kvasirlabs/gatewright/internal/observability"
)

// newRollbackCmd creates the `rollback` command, which replays the
// persisted recovery journal of an interrupted install.
func newRollbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback [root]",
		Short: "Restores the target from the last persisted install journal",
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

			report, err := ins.RollbackJournal(root)
			if err != nil {
				return exitWith(exitValidationFailed, err)
			}
			if report.Failed() {
				return exitWith(exitValidationFailed,
					fmt.Errorf("rollback incomplete, %d of %d paths failed: %v",
						len(report.Failures), report.Attempted, report.FailedPaths()))
			}

			fmt.Printf("Restored %d path(s) from journal.\n", report.Attempted)
			return nil
		},
	}
}
