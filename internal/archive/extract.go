package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"imscp/internal/fileutil"
	"imscp/internal/logging"
)

var (
	// ErrUnsafePath is returned for entries that would escape the destination.
	ErrUnsafePath = errors.New("archive entry escapes destination")
	// ErrLimitExceeded is returned when an archive exceeds the configured limits.
	ErrLimitExceeded = errors.New("archive exceeds extraction limits")
)

// Limits bounds a single extraction. Zero values disable the corresponding check.
type Limits struct {
	MaxFiles int
	MaxBytes int64
	Timeout  time.Duration
}

// Service extracts and creates zip archives.
type Service struct {
	limits Limits
	logger *slog.Logger
}

// New constructs a Service with the given limits.
func New(limits Limits, logger *slog.Logger) *Service {
	return &Service{limits: limits, logger: logging.NewComponentLogger(logger, "archive")}
}

// Extract unpacks archivePath into destDir.
func (s *Service) Extract(ctx context.Context, archivePath, destDir string) (err error) {
	if s.limits.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.limits.Timeout)
		defer cancel()
	}

	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer func() {
		if closeErr := reader.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if err := s.checkLimits(reader.File); err != nil {
		return err
	}

	absDest, err := filepath.Abs(destDir)
	if err != nil {
		return fmt.Errorf("resolve destination: %w", err)
	}
	if err := os.MkdirAll(absDest, 0o755); err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	started := time.Now()
	var written int64
	files := 0
	for _, file := range reader.File {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("extract %s: %w", filepath.Base(archivePath), err)
		}
		name := strings.TrimSuffix(file.Name, "/")
		if name == "" {
			continue
		}
		destPath, err := fileutil.ContainedPath(absDest, name)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrUnsafePath, file.Name)
		}

		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(destPath, 0o755); err != nil {
				return fmt.Errorf("create directory: %w", err)
			}
			continue
		}
		if !file.Mode().IsRegular() {
			logging.WarnWithContext(s.logger, "skipping non-regular archive entry", "archive_entry_skipped",
				logging.String("entry", file.Name),
				logging.String("mode", file.Mode().String()),
				logging.String(logging.FieldImpact, "entry not extracted"),
				logging.String(logging.FieldErrorHint, "symlinks and devices are not supported inside packages"),
			)
			continue
		}

		budget := int64(-1)
		if s.limits.MaxBytes > 0 {
			budget = s.limits.MaxBytes - written
		}
		n, err := extractFile(ctx, file, destPath, budget)
		written += n
		if err != nil {
			return fmt.Errorf("extract %s: %w", file.Name, err)
		}
		files++
	}

	s.logger.Debug("archive extracted",
		logging.String("archive", archivePath),
		logging.Int("files", files),
		logging.Int64("bytes", written),
		logging.Duration("elapsed", time.Since(started)),
		logging.String(logging.FieldEventType, "archive_extracted"),
	)
	return nil
}

// checkLimits rejects archives whose central directory already declares too
// many entries or too many uncompressed bytes.
func (s *Service) checkLimits(files []*zip.File) error {
	if s.limits.MaxFiles > 0 && len(files) > s.limits.MaxFiles {
		return fmt.Errorf("%w: %d entries (max %d)", ErrLimitExceeded, len(files), s.limits.MaxFiles)
	}
	if s.limits.MaxBytes <= 0 {
		return nil
	}
	var declared uint64
	for _, file := range files {
		declared += file.UncompressedSize64
	}
	if declared > uint64(s.limits.MaxBytes) {
		return fmt.Errorf("%w: %d bytes declared (max %d)", ErrLimitExceeded, declared, s.limits.MaxBytes)
	}
	return nil
}

// extractFile copies one entry to destPath. A non-negative budget caps the
// bytes written, guarding against entries that lie about their size.
func extractFile(ctx context.Context, file *zip.File, destPath string, budget int64) (n int64, err error) {
	rc, err := file.Open()
	if err != nil {
		return 0, err
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return 0, err
	}
	out, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	var src io.Reader = &contextReader{ctx: ctx, r: rc}
	if budget >= 0 {
		src = io.LimitReader(src, budget+1)
	}
	n, err = io.Copy(out, src)
	if err != nil {
		return n, err
	}
	if budget >= 0 && n > budget {
		return n, ErrLimitExceeded
	}
	return n, nil
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// Entries lists the file names stored in archivePath.
func Entries(archivePath string) ([]string, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer reader.Close()

	names := make([]string, 0, len(reader.File))
	for _, file := range reader.File {
		if !file.FileInfo().IsDir() {
			names = append(names, file.Name)
		}
	}
	return names, nil
}
