package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"imscp/internal/bundle"
	"imscp/internal/manifest"
	"imscp/internal/textutil"
)

func newInspectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <package.zip|dir>",
		Short: "Show the item tree, resolved resources and problems of a package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			pkg, err := ctx.loadPackage(cmd.Context(), cfg, logger, args[0], "")
			if err != nil {
				return err
			}
			defer pkg.Close()

			if ctx.JSONMode() {
				return writeJSON(cmd, pkg.Result)
			}
			renderInspect(cmd, pkg.Result)
			return nil
		},
	}
}

func renderInspect(cmd *cobra.Command, result *manifest.Result) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	items := 0
	for _, root := range result.Organizations {
		items += root.Count()
	}
	fmt.Fprint(out, renderKeyValues([][2]string{
		{"Package", result.Identifier},
		{"Directory", result.Dir},
		{"Organizations", strconv.Itoa(len(result.Organizations))},
		{"Items", strconv.Itoa(items)},
		{"Leaves", strconv.Itoa(len(result.Leaves()))},
		{"Problems", strconv.Itoa(len(result.Problems))},
	}))
	fmt.Fprintln(out)

	rows := make([][]string, 0)
	for org, root := range result.Organizations {
		root.Walk(func(path string, node *manifest.Item) {
			depth := 0
			if path != "" {
				depth = strings.Count(path, "/") + 1
			}
			title := strings.Repeat("  ", depth) + textutil.Truncate(node.Title, 48)
			files := ""
			entry := ""
			if node.IsLeaf() && path != "" {
				files = strconv.Itoa(len(node.Files))
				entry = node.IndexFile
			}
			rows = append(rows, []string{bundle.Key(org, path), node.Identifier, title, node.Type, entry, files})
		})
	}
	fmt.Fprint(out, renderTable(
		[]string{"Key", "Identifier", "Title", "Type", "Entry", "Files"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
	))

	if len(result.Problems) > 0 {
		fmt.Fprintln(out)
		renderProblems(out, result.Problems, colorize)
	}
}
