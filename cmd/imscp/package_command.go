package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"imscp/internal/bundle"
	"imscp/internal/config"
	"imscp/internal/ledger"
	"imscp/internal/logging"
	"imscp/internal/preflight"
	"imscp/internal/staging"
	"imscp/internal/textutil"
	"imscp/internal/topic"
)

type packageFlags struct {
	mode        string
	workers     int
	outputDir   string
	parentID    string
	nodeOptions string
}

type packageOutput struct {
	Package  string         `json:"package"`
	Archive  string         `json:"archive,omitempty"`
	Digest   string         `json:"digest"`
	RunID    string         `json:"run_id"`
	Problems int            `json:"problems"`
	Report   *bundle.Report `json:"report"`
	Topics   []*topic.Node  `json:"topics"`
}

func newPackageCommand(ctx *commandContext) *cobra.Command {
	var flags packageFlags

	cmd := &cobra.Command{
		Use:   "package <package.zip|dir>",
		Short: "Build one offline bundle per web content leaf",
		Long: `Build a self-contained zip for every webcontent leaf of a package, record
the bundles in the ledger and print the resulting topic tree.

copy mode copies each leaf's resolved files (SCORM SCOs get the runtime
bridge); redirect mode writes an entry page that opens the leaf inside the
original archive, which must then be served under zip_content_prefix.`,
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
			return runPackage(cmd, ctx, cfg, logger, args[0], flags)
		},
	}

	cmd.Flags().StringVar(&flags.mode, "mode", "", "Packaging mode: copy or redirect (default from config)")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "Concurrent bundle workers (default from config)")
	cmd.Flags().StringVarP(&flags.outputDir, "output", "o", "", "Bundle output directory (default paths.output_dir)")
	cmd.Flags().StringVar(&flags.parentID, "parent-id", "", "Prefix for every topic source id")
	cmd.Flags().StringVar(&flags.nodeOptions, "node-options", "", "JSON object attached to each html5 node")
	return cmd
}

func runPackage(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, logger *slog.Logger, target string, flags packageFlags) error {
	opts, err := builderOptions(cfg, flags)
	if err != nil {
		return err
	}
	var nodeOptions map[string]any
	if strings.TrimSpace(flags.nodeOptions) != "" {
		if err := json.Unmarshal([]byte(flags.nodeOptions), &nodeOptions); err != nil {
			return fmt.Errorf("parse --node-options: %w", err)
		}
	}

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	for _, check := range []preflight.Result{
		preflight.CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		preflight.CheckDirectoryAccess("Output directory", opts.OutputDir),
	} {
		if !check.Passed {
			return fmt.Errorf("preflight %s: %s", strings.ToLower(check.Name), check.Detail)
		}
	}
	if scormCheck := preflight.CheckScormFromConfig(cfg); !scormCheck.Passed {
		logging.WarnWithContext(logger, "scorm runtime unavailable", "scorm_runtime_missing",
			logging.String("detail", scormCheck.Detail),
			logging.String(logging.FieldImpact, "SCO bundles are built without the runtime bridge"),
			logging.String(logging.FieldErrorHint, "run 'imscp doctor' for details"),
		)
	}

	lock, err := staging.LockOutput(opts.OutputDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	runID := uuid.NewString()
	runCtx := logging.WithRunID(cmd.Context(), runID)
	logger = logging.WithContext(runCtx, logger)

	pkg, err := ctx.loadPackage(runCtx, cfg, logger, target, "")
	if err != nil {
		return err
	}
	defer pkg.Close()

	digest, err := packageDigest(pkg, cfg)
	if err != nil {
		return err
	}
	if fatal := pkg.Result.Problems.Fatal(); len(fatal) > 0 {
		logging.WarnWithContext(logger, "package has unresolved problems", "package_problems",
			logging.Int("problems", len(fatal)),
			logging.String(logging.FieldImpact, "affected leaves may be skipped or incomplete"),
			logging.String(logging.FieldErrorHint, "run 'imscp inspect' to list them"),
		)
	}

	if pkg.run != nil {
		opts.TempDir = pkg.run.Dir
	}
	packager, err := ctx.archiveService(logger)
	if err != nil {
		return err
	}
	builder, err := bundle.NewBuilder(opts, packager, logger)
	if err != nil {
		return err
	}
	report, err := builder.Build(runCtx, bundle.Source{Result: pkg.Result, Archive: pkg.Archive})
	if err != nil {
		return err
	}
	topics := topic.Build(pkg.Result, report, topic.Options{ParentID: flags.parentID, NodeOptions: nodeOptions})

	if err := recordBundles(cmd, cfg, digest, pkg.Result.Identifier, report, topics); err != nil {
		return err
	}

	if ctx.JSONMode() {
		if err := writeJSON(cmd, packageOutput{
			Package:  pkg.Result.Identifier,
			Archive:  pkg.Archive,
			Digest:   digest,
			RunID:    runID,
			Problems: len(pkg.Result.Problems),
			Report:   report,
			Topics:   topics,
		}); err != nil {
			return err
		}
	} else {
		renderPackageReport(cmd, report, topics)
	}
	if len(report.Failures) > 0 {
		return fmt.Errorf("%d of %d bundles failed", len(report.Failures), len(report.Failures)+len(report.Bundles))
	}
	return nil
}

func builderOptions(cfg *config.Config, flags packageFlags) (bundle.Options, error) {
	modeValue := cfg.Packaging.Mode
	if strings.TrimSpace(flags.mode) != "" {
		modeValue = flags.mode
	}
	mode, err := bundle.ParseMode(modeValue)
	if err != nil {
		return bundle.Options{}, err
	}
	workers := cfg.Packaging.Workers
	if flags.workers > 0 {
		workers = flags.workers
	}
	outputDir := cfg.Paths.OutputDir
	if strings.TrimSpace(flags.outputDir) != "" {
		if outputDir, err = config.ExpandPath(flags.outputDir); err != nil {
			return bundle.Options{}, fmt.Errorf("resolve output path: %w", err)
		}
	}
	return bundle.Options{
		Mode:             mode,
		Workers:          workers,
		TaskTimeout:      cfg.TaskTimeout(),
		OutputDir:        outputDir,
		ZipContentPrefix: cfg.Packaging.ZipContentPrefix,
		ScormSupport:     cfg.Packaging.ScormSupport,
		ScormAPIPath:     cfg.Packaging.ScormAPIPath,
		Exclude:          cfg.Packaging.Exclude,
	}, nil
}

func packageDigest(pkg *loadedPackage, cfg *config.Config) (string, error) {
	if pkg.Archive != "" {
		return ledger.DigestFile(pkg.Archive)
	}
	return ledger.DigestFile(filepath.Join(pkg.Result.Dir, cfg.Manifest.Filename))
}

func recordBundles(cmd *cobra.Command, cfg *config.Config, digest, packageID string, report *bundle.Report, topics []*topic.Node) error {
	if len(report.Bundles) == 0 {
		return nil
	}
	sourceIDs := map[string]string{}
	for _, tree := range topics {
		tree.Walk(func(_ int, node *topic.Node) {
			sourceIDs[node.Key] = node.SourceID
		})
	}

	store, err := ledger.Open(cfg)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer store.Close()

	var errs []error
	for _, b := range report.Bundles {
		key := bundle.Key(b.Organization, b.Path)
		_, err := store.Record(cmd.Context(), ledger.Entry{
			PackageDigest: digest,
			PackageID:     packageID,
			ItemKey:       key,
			ItemID:        b.ItemID,
			SourceID:      sourceIDs[key],
			Title:         b.Title,
			Mode:          string(b.Mode),
			ZipPath:       b.ZipPath,
			DependencyZip: b.DependencyZip,
		})
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func renderPackageReport(cmd *cobra.Command, report *bundle.Report, topics []*topic.Node) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	if len(report.Bundles) > 0 {
		rows := make([][]string, 0, len(report.Bundles))
		for _, b := range report.Bundles {
			rows = append(rows, []string{
				bundle.Key(b.Organization, b.Path),
				textutil.Truncate(b.Title, 40),
				filepath.Base(b.ZipPath),
				strconv.Itoa(b.Files),
				yesNo(b.Scorm),
			})
		}
		fmt.Fprint(out, renderTable(
			[]string{"Key", "Title", "Bundle", "Files", "SCORM"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
		))
	}
	for _, s := range report.Skipped {
		fmt.Fprintln(out, renderStatusLine(bundle.Key(s.Organization, s.Path), statusWarn, "skipped: "+s.Reason, colorize))
	}
	for _, f := range report.Failures {
		fmt.Fprintln(out, renderStatusLine(bundle.Key(f.Organization, f.Path), statusError, f.Err.Error(), colorize))
	}

	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Topic tree", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, tree := range topics {
		fmt.Fprint(out, renderTopicTree(tree))
	}
}

func renderTopicTree(root *topic.Node) string {
	var b strings.Builder
	root.Walk(func(depth int, node *topic.Node) {
		marker := "+"
		if node.Kind == topic.KindHTML5 {
			marker = "-"
		}
		fmt.Fprintf(&b, "%s%s %s [%s]\n", strings.Repeat("  ", depth), marker, node.Title, node.SourceID)
	})
	return b.String()
}
