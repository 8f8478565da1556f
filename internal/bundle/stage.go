package bundle

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"imscp/internal/fileutil"
	"imscp/internal/logging"
	"imscp/internal/manifest"
	"imscp/internal/scorm"
)

// IndexName is the entry page every bundle opens with.
const IndexName = "index.html"

var redirectPage = template.Must(template.New("redirect").Parse(`<!DOCTYPE html>
<html>
  <head>
    <title>{{.Title}}</title>
    <meta http-equiv="refresh" content="0; url={{.URL}}" />
  </head>
  <body>
  </body>
</html>
`))

// splitHref separates a package-relative href from its ?query or #fragment.
func splitHref(href string) (string, string) {
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		return href[:i], href[i:]
	}
	return href, ""
}

// cleanRel normalizes a package-relative path ("./a/../b.html" -> "b.html").
func cleanRel(rel string) string {
	return strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(rel, "\\", "/")), "/")
}

func entryHref(item *manifest.Item) string {
	if item.IndexFile != "" {
		return item.IndexFile
	}
	return item.Href
}

func writeRedirect(dest, title, url string) error {
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	if err := redirectPage.Execute(f, struct{ Title, URL string }{title, url}); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// stageRedirect writes an index.html forwarding into the original archive as
// served under ZipContentPrefix.
func (b *Builder) stageRedirect(src Source, item *manifest.Item, workDir string, bundle *Bundle) error {
	href := entryHref(item)
	if strings.TrimSpace(href) == "" {
		return ErrNoEntryPoint
	}
	file, suffix := splitHref(href)
	url := b.opts.ZipContentPrefix + "/" + filepath.Base(src.Archive) + "/" + cleanRel(file) + suffix
	if err := writeRedirect(filepath.Join(workDir, IndexName), item.Title, url); err != nil {
		return fmt.Errorf("write entry page: %w", err)
	}
	bundle.Entry = url
	bundle.DependencyZip = src.Archive
	bundle.Files = 1
	return nil
}

// stageCopy assembles the leaf's closure under workDir, preserving the
// package layout. A root-level entry page is copied to index.html; a nested
// one gets an index.html redirect so its relative links keep working.
func (b *Builder) stageCopy(ctx context.Context, pkgDir string, item *manifest.Item, workDir string, bundle *Bundle, logger *slog.Logger) error {
	href := entryHref(item)
	if strings.TrimSpace(href) == "" {
		return ErrNoEntryPoint
	}
	entryFile, suffix := splitHref(href)
	entry := cleanRel(entryFile)
	if entry == "" {
		return ErrNoEntryPoint
	}
	entrySrc, err := fileutil.ContainedPath(pkgDir, entry)
	if err != nil {
		return fmt.Errorf("entry point %q: %w", href, err)
	}
	if _, err := os.Stat(entrySrc); err != nil {
		return fmt.Errorf("entry point %q: %w", href, err)
	}

	copied := map[string]bool{}
	for _, raw := range append([]string{entry}, item.Files...) {
		if err := ctx.Err(); err != nil {
			return err
		}
		file, _ := splitHref(raw)
		rel := cleanRel(file)
		if rel == "" || copied[rel] {
			continue
		}
		copied[rel] = true
		if rel != entry && b.opts.excluded(rel) {
			bundle.Excluded++
			continue
		}
		srcPath, err := fileutil.ContainedPath(pkgDir, rel)
		if err != nil {
			return fmt.Errorf("resource file %q: %w", raw, err)
		}
		destPath, err := fileutil.ContainedPath(workDir, rel)
		if err != nil {
			return fmt.Errorf("resource file %q: %w", raw, err)
		}
		info, err := os.Stat(srcPath)
		if errors.Is(err, fs.ErrNotExist) {
			bundle.Missing = append(bundle.Missing, rel)
			continue
		}
		if err != nil {
			return fmt.Errorf("stat %s: %w", rel, err)
		}
		if info.IsDir() {
			continue
		}
		if err := fileutil.CopyFileVerified(srcPath, destPath); err != nil {
			return fmt.Errorf("copy %s: %w", rel, err)
		}
		bundle.Files++
	}
	if len(bundle.Missing) > 0 {
		logging.WarnWithContext(logger, "resource files missing from package", "bundle_files_missing",
			logging.Strings("missing", bundle.Missing),
			logging.String(logging.FieldImpact, "bundle may render incompletely"),
			logging.String(logging.FieldErrorHint, "the manifest lists files the archive does not contain"),
		)
	}

	page := filepath.Join(workDir, IndexName)
	if path.Dir(entry) == "." {
		if entry != IndexName {
			if err := fileutil.CopyFile(entrySrc, page); err != nil {
				return fmt.Errorf("copy entry page: %w", err)
			}
		}
		bundle.Entry = IndexName
	} else {
		if err := writeRedirect(page, item.Title, entry+suffix); err != nil {
			return fmt.Errorf("write entry page: %w", err)
		}
		page = filepath.Join(workDir, filepath.FromSlash(entry))
		bundle.Entry = entry + suffix
	}

	if b.opts.ScormSupport && item.NeedsScorm() {
		if err := scorm.Apply(b.opts.Transformer, page, filepath.Dir(page), b.opts.ScormAPIPath); err != nil {
			if !errors.Is(err, scorm.ErrRuntimeMissing) {
				return fmt.Errorf("add scorm support: %w", err)
			}
			logging.WarnWithContext(logger, "scorm bridge skipped; runtime not configured", "scorm_runtime_missing",
				logging.Error(err),
				logging.String(logging.FieldImpact, "SCO progress will not be tracked"),
				logging.String(logging.FieldErrorHint, "set packaging.scorm_api_path to a scormAPI.js file"),
			)
		} else {
			bundle.Scorm = true
		}
	}
	return nil
}
