package archive

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/zip"

	"imscp/internal/logging"
)

// predictableModTime is stamped on every entry so archive bytes depend only
// on file names and contents.
var predictableModTime = time.Date(2015, time.October, 21, 7, 28, 0, 0, time.UTC)

// CreatePredictable zips srcDir into outDir and returns the archive path. The
// file is named "<sha256 of contents>.zip"; an existing file with the same
// name is left in place since its contents are identical.
func (s *Service) CreatePredictable(ctx context.Context, srcDir, outDir string) (string, error) {
	var buf bytes.Buffer
	if err := WritePredictable(ctx, srcDir, &buf); err != nil {
		return "", err
	}
	sum := sha256.Sum256(buf.Bytes())
	name := hex.EncodeToString(sum[:]) + ".zip"

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	target := filepath.Join(outDir, name)
	if _, err := os.Stat(target); err == nil {
		s.logger.Debug("bundle archive already present",
			logging.String("bundle", name),
			logging.String(logging.FieldEventType, "archive_reused"),
		)
		return target, nil
	}

	tmp, err := os.CreateTemp(outDir, ".bundle-*.zip")
	if err != nil {
		return "", fmt.Errorf("create temp archive: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close archive: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("publish archive: %w", err)
	}
	return target, nil
}

// WritePredictable writes a deterministic zip of srcDir to w: entries sorted
// by slash path, directories omitted, fixed timestamp and 0644 permissions.
func WritePredictable(ctx context.Context, srcDir string, w io.Writer) (err error) {
	var paths []string
	walkErr := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.Type().IsRegular() {
			rel, relErr := filepath.Rel(srcDir, path)
			if relErr != nil {
				return fmt.Errorf("relative path: %w", relErr)
			}
			paths = append(paths, filepath.ToSlash(rel))
		}
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("walk %s: %w", srcDir, walkErr)
	}
	sort.Strings(paths)

	zw := zip.NewWriter(w)
	defer func() {
		if closeErr := zw.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	for _, rel := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		header := &zip.FileHeader{
			Name:     rel,
			Method:   zip.Deflate,
			Modified: predictableModTime,
		}
		header.SetMode(0o644)
		entry, err := zw.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("create zip entry %s: %w", rel, err)
		}
		if err := copyInto(entry, filepath.Join(srcDir, filepath.FromSlash(rel))); err != nil {
			return fmt.Errorf("write zip entry %s: %w", rel, err)
		}
	}
	return nil
}

func copyInto(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}
