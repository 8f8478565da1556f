package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"imscp/internal/config"
)

func newExtractCommand(ctx *commandContext) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "extract <package.zip|dir>",
		Short: "Print the normalized package description as JSON",
		Long: `Parse a content package and print its identifier, metadata, resolved
organizations and problems as JSON.

With --out the archive is unpacked into that directory and left in place;
otherwise it is unpacked into a staging run that is removed afterwards.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			workDir := ""
			if strings.TrimSpace(outDir) != "" {
				if workDir, err = config.ExpandPath(outDir); err != nil {
					return fmt.Errorf("resolve output path: %w", err)
				}
			}
			pkg, err := ctx.loadPackage(cmd.Context(), cfg, logger, args[0], workDir)
			if err != nil {
				return err
			}
			defer pkg.Close()
			return writeJSON(cmd, pkg.Result)
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Directory to unpack the archive into")
	return cmd
}
