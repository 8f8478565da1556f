package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"imscp/internal/ledger"
	"imscp/internal/textutil"
)

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect recorded bundles",
	}

	ledgerCmd.AddCommand(newLedgerListCommand(ctx))
	ledgerCmd.AddCommand(newLedgerPruneCommand(ctx))
	ledgerCmd.AddCommand(newLedgerClearCommand(ctx))

	return ledgerCmd
}

// withLedger opens the configured ledger for the duration of fn.
func (c *commandContext) withLedger(fn func(*ledger.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := ledger.Open(cfg)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func newLedgerListCommand(ctx *commandContext) *cobra.Command {
	var digest string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded bundles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLedger(func(store *ledger.Store) error {
				entries, err := store.List(cmd.Context(), strings.TrimSpace(digest))
				if err != nil {
					return err
				}
				if entries == nil {
					entries = []*ledger.Entry{}
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, entries)
				}

				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "No bundles recorded")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					rows = append(rows, []string{
						textutil.Truncate(e.PackageDigest, 12),
						e.ItemKey,
						textutil.Truncate(e.Title, 32),
						e.Mode,
						filepath.Base(e.ZipPath),
						humanize.Time(e.UpdatedAt),
					})
				}
				fmt.Fprint(out, renderTable(
					[]string{"Package", "Key", "Title", "Mode", "Bundle", "Updated"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&digest, "digest", "", "Only show bundles of the package with this SHA-256")
	return cmd
}

func newLedgerPruneCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Forget bundles whose zip no longer exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLedger(func(store *ledger.Store) error {
				removed, err := store.PruneMissing(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{"removed": removed})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d ledger entries\n", removed)
				return nil
			})
		},
	}
}

func newLedgerClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every ledger entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLedger(func(store *ledger.Store) error {
				removed, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{"removed": removed})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d ledger entries\n", removed)
				return nil
			})
		},
	}
}
