package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"imscp/internal/config"
	"imscp/internal/manifest"
	"imscp/internal/staging"
)

// loadedPackage is a parsed package plus the staging run backing it.
type loadedPackage struct {
	Result *manifest.Result
	// Archive is the source zip; empty when a directory was given.
	Archive string
	run     *staging.Run
}

func (p *loadedPackage) Close() error {
	if p == nil || p.run == nil {
		return nil
	}
	return p.run.Close()
}

// loadPackage parses target, extracting it into a fresh staging run first
// when it is a zip archive. workDir overrides the extraction directory.
func (c *commandContext) loadPackage(ctx context.Context, cfg *config.Config, logger *slog.Logger, target, workDir string) (*loadedPackage, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("open package: %w", err)
	}
	parser, err := c.parser(logger)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		result, err := parser.ExtractFromDir(target)
		if err != nil {
			return nil, err
		}
		return &loadedPackage{Result: result}, nil
	}

	absArchive, err := filepath.Abs(target)
	if err != nil {
		return nil, fmt.Errorf("resolve archive path: %w", err)
	}
	extractor, err := c.archiveService(logger)
	if err != nil {
		return nil, err
	}

	pkg := &loadedPackage{Archive: absArchive}
	if workDir == "" {
		run, err := staging.Begin(cfg.Paths.StagingDir, filepath.Base(target))
		if err != nil {
			return nil, err
		}
		pkg.run = run
		workDir = run.Path("package")
	}
	result, err := parser.ExtractFromZip(ctx, extractor, absArchive, workDir)
	if err != nil {
		_ = pkg.Close()
		return nil, err
	}
	pkg.Result = result
	return pkg, nil
}
