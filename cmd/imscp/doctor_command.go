package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"imscp/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, ledger and SCORM runtime",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cfg)
			failed := preflight.Failed(results)

			if ctx.JSONMode() {
				if err := writeJSON(cmd, map[string]any{
					"config": ctx.configPath,
					"checks": results,
					"ok":     len(failed) == 0,
				}); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderSectionHeader("Environment", colorize) {
					fmt.Fprintln(out, line)
				}
				for _, result := range results {
					fmt.Fprintln(out, renderCheck(result, colorize))
				}
			}
			if len(failed) > 0 {
				return fmt.Errorf("%d of %d checks failed", len(failed), len(results))
			}
			return nil
		},
	}
}
