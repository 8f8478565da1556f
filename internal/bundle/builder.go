package bundle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"imscp/internal/logging"
	"imscp/internal/manifest"
)

// ErrNoEntryPoint reports a webcontent leaf without an href to open.
var ErrNoEntryPoint = errors.New("leaf has no entry point")

// Packager writes a directory into a content-addressed zip.
type Packager interface {
	CreatePredictable(ctx context.Context, srcDir, outDir string) (string, error)
}

// Source is a parsed package ready for bundling.
type Source struct {
	Result *manifest.Result
	// Archive is the original package zip; required in redirect mode.
	Archive string
}

// Builder produces bundles for every resolved leaf of a package.
type Builder struct {
	opts     Options
	packager Packager
	logger   *slog.Logger
}

// NewBuilder validates opts and constructs a Builder.
func NewBuilder(opts Options, packager Packager, logger *slog.Logger) (*Builder, error) {
	if packager == nil {
		return nil, errors.New("bundle packager is required")
	}
	if err := opts.normalize(); err != nil {
		return nil, err
	}
	return &Builder{
		opts:     opts,
		packager: packager,
		logger:   logging.NewComponentLogger(logger, "bundle"),
	}, nil
}

type task struct {
	org  int
	path string
	item *manifest.Item
}

type outcome struct {
	bundle  *Bundle
	failure *Failure
	skip    *Skip
}

// Build bundles every leaf of src concurrently. Per-leaf problems land in the
// Report; only a cancelled context or invalid input returns an error.
func (b *Builder) Build(ctx context.Context, src Source) (*Report, error) {
	if src.Result == nil {
		return nil, errors.New("bundle source has no parsed result")
	}
	if b.opts.Mode == ModeRedirect && src.Archive == "" {
		return nil, errors.New("redirect mode requires the original package archive")
	}
	if err := os.MkdirAll(b.opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	tasks := collectTasks(src.Result)
	ctx = logging.WithPackage(ctx, src.Result.Identifier)
	logger := logging.WithContext(ctx, b.logger)
	logger.Info("bundling package",
		logging.Int("leaves", len(tasks)),
		logging.String("mode", string(b.opts.Mode)),
		logging.Int("workers", b.opts.Workers),
		logging.String(logging.FieldEventType, "bundle_start"),
	)

	started := time.Now()
	outcomes := make([]outcome, len(tasks))
	sampler := logging.NewProgressSampler(len(tasks), 25)
	var (
		progressMu sync.Mutex
		done       int
	)

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(b.opts.Workers)
	for i, t := range tasks {
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = b.runTask(gctx, src, t)

			progressMu.Lock()
			done++
			if sampler.ShouldLog(done) {
				logger.Info("bundling progress",
					logging.Int("done", done),
					logging.Int("total", len(tasks)),
					logging.String("percent", fmt.Sprintf("%.0f%%", sampler.Percent(done))),
					logging.String(logging.FieldEventType, "bundle_progress"),
				)
			}
			progressMu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("build bundles: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("build bundles: %w", err)
	}

	report := &Report{Bundles: []Bundle{}, Failures: []Failure{}, Skipped: []Skip{}}
	for _, out := range outcomes {
		switch {
		case out.bundle != nil:
			report.Bundles = append(report.Bundles, *out.bundle)
		case out.failure != nil:
			report.Failures = append(report.Failures, *out.failure)
		case out.skip != nil:
			report.Skipped = append(report.Skipped, *out.skip)
		}
	}
	logger.Info("bundling complete",
		logging.Int("bundles", len(report.Bundles)),
		logging.Int("failures", len(report.Failures)),
		logging.Int("skipped", len(report.Skipped)),
		logging.Duration("elapsed", time.Since(started)),
		logging.String(logging.FieldEventType, "bundle_complete"),
	)
	return report, nil
}

func collectTasks(result *manifest.Result) []task {
	var tasks []task
	for org, root := range result.Organizations {
		root.Walk(func(path string, node *manifest.Item) {
			if node.IsLeaf() && path != "" {
				tasks = append(tasks, task{org: org, path: path, item: node})
			}
		})
	}
	return tasks
}

func (b *Builder) runTask(ctx context.Context, src Source, t task) outcome {
	ctx = logging.WithItem(ctx, t.item.Identifier)
	logger := logging.WithContext(ctx, b.logger)

	if t.item.IdentifierRef == "" || t.item.Type == "" {
		return outcome{skip: &Skip{Organization: t.org, Path: t.path, ItemID: t.item.Identifier, Reason: "leaf does not reference a resource"}}
	}
	if !t.item.IsWebContent() {
		logging.WarnWithContext(logger, "leaf skipped; content type not supported", "unsupported_content_type",
			logging.String("type", t.item.Type),
			logging.String(logging.FieldImpact, "no bundle produced for this item"),
			logging.String(logging.FieldErrorHint, "only webcontent resources can be packaged"),
		)
		return outcome{skip: &Skip{Organization: t.org, Path: t.path, ItemID: t.item.Identifier, Reason: fmt.Sprintf("unsupported content type %q", t.item.Type)}}
	}

	if b.opts.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.opts.TaskTimeout)
		defer cancel()
	}

	bundle, err := b.buildLeaf(ctx, src, t, logger)
	if err != nil {
		logging.ErrorWithContext(logger, "bundle failed", "bundle_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect the package with 'imscp inspect' for unresolved files"),
		)
		return outcome{failure: &Failure{Organization: t.org, Path: t.path, ItemID: t.item.Identifier, Err: err}}
	}
	logger.Info("bundle written",
		logging.String("bundle", filepath.Base(bundle.ZipPath)),
		logging.Int("files", bundle.Files),
		logging.Bool("scorm", bundle.Scorm),
		logging.String(logging.FieldEventType, "bundle_written"),
	)
	return outcome{bundle: bundle}
}

func (b *Builder) buildLeaf(ctx context.Context, src Source, t task, logger *slog.Logger) (*Bundle, error) {
	workDir, err := os.MkdirTemp(b.opts.TempDir, "bundle-*")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			logger.Debug("work dir cleanup failed", logging.String("dir", workDir), logging.Error(err))
		}
	}()

	bundle := &Bundle{
		Organization: t.org,
		Path:         t.path,
		ItemID:       t.item.Identifier,
		Title:        t.item.Title,
		Mode:         b.opts.Mode,
	}
	switch b.opts.Mode {
	case ModeRedirect:
		err = b.stageRedirect(src, t.item, workDir, bundle)
	default:
		err = b.stageCopy(ctx, src.Result.Dir, t.item, workDir, bundle, logger)
	}
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	zipPath, err := b.packager.CreatePredictable(ctx, workDir, b.opts.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("write bundle zip: %w", err)
	}
	bundle.ZipPath = zipPath
	return bundle, nil
}
