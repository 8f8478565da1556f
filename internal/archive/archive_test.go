package archive_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"

	"imscp/internal/archive"
)

func writeZip(t *testing.T, entries map[string]string, order ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "package.zip")
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range order {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create entry: %v", err)
		}
		if _, err := w.Write([]byte(entries[name])); err != nil {
			t.Fatalf("write entry: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write zip: %v", err)
	}
	return path
}

func TestExtractWritesTree(t *testing.T) {
	zipPath := writeZip(t, map[string]string{
		"imsmanifest.xml": "<manifest/>",
		"content/":        "",
		"content/a.html":  "<html></html>",
		"content/js/b.js": "var b;",
	}, "imsmanifest.xml", "content/", "content/a.html", "content/js/b.js")

	dest := filepath.Join(t.TempDir(), "out")
	svc := archive.New(archive.Limits{}, nil)
	if err := svc.Extract(context.Background(), zipPath, dest); err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	for name, want := range map[string]string{"imsmanifest.xml": "<manifest/>", "content/js/b.js": "var b;"} {
		got, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(name)))
		if err != nil || string(got) != want {
			t.Fatalf("unexpected %s: %q err=%v", name, got, err)
		}
	}

	names, err := archive.Entries(zipPath)
	if err != nil {
		t.Fatalf("Entries returned error: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"imsmanifest.xml", "content/a.html", "content/js/b.js"}) {
		t.Fatalf("unexpected entries %v", names)
	}
}

func TestExtractRejectsTraversal(t *testing.T) {
	zipPath := writeZip(t, map[string]string{"../escape.txt": "x"}, "../escape.txt")
	root := t.TempDir()
	err := archive.New(archive.Limits{}, nil).Extract(context.Background(), zipPath, filepath.Join(root, "dest"))
	if !errors.Is(err, archive.ErrUnsafePath) {
		t.Fatalf("expected ErrUnsafePath, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(root, "escape.txt")); !os.IsNotExist(statErr) {
		t.Fatal("entry escaped destination")
	}
}

func TestExtractEnforcesLimits(t *testing.T) {
	zipPath := writeZip(t, map[string]string{
		"a.txt": strings.Repeat("a", 100),
		"b.txt": strings.Repeat("b", 100),
	}, "a.txt", "b.txt")

	tests := []struct {
		name   string
		limits archive.Limits
	}{
		{name: "files", limits: archive.Limits{MaxFiles: 1}},
		{name: "bytes", limits: archive.Limits{MaxBytes: 150}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := archive.New(tc.limits, nil).Extract(context.Background(), zipPath, t.TempDir())
			if !errors.Is(err, archive.ErrLimitExceeded) {
				t.Fatalf("expected ErrLimitExceeded, got %v", err)
			}
		})
	}

	if err := archive.New(archive.Limits{MaxFiles: 2, MaxBytes: 200}, nil).Extract(context.Background(), zipPath, t.TempDir()); err != nil {
		t.Fatalf("expected archive within limits to extract, got %v", err)
	}
}

func TestExtractHonoursCancellation(t *testing.T) {
	zipPath := writeZip(t, map[string]string{"a.txt": "a"}, "a.txt")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := archive.New(archive.Limits{}, nil).Extract(ctx, zipPath, t.TempDir())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestExtractMissingArchive(t *testing.T) {
	err := archive.New(archive.Limits{}, nil).Extract(context.Background(), filepath.Join(t.TempDir(), "nope.zip"), t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "open archive") {
		t.Fatalf("expected open error, got %v", err)
	}
}

func populate(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}
}

func TestCreatePredictableIsDeterministic(t *testing.T) {
	files := map[string]string{"index.html": "<p>hi</p>", "js/app.js": "1", "css/site.css": "body{}"}
	first, second := t.TempDir(), t.TempDir()
	populate(t, first, files)
	populate(t, second, files)

	outDir := t.TempDir()
	svc := archive.New(archive.Limits{}, nil)
	a, err := svc.CreatePredictable(context.Background(), first, outDir)
	if err != nil {
		t.Fatalf("CreatePredictable returned error: %v", err)
	}
	b, err := svc.CreatePredictable(context.Background(), second, outDir)
	if err != nil {
		t.Fatalf("CreatePredictable returned error: %v", err)
	}
	if a != b {
		t.Fatalf("expected identical archive names, got %s and %s", a, b)
	}
	if len(filepath.Base(a)) != 64+len(".zip") {
		t.Fatalf("expected sha256 file name, got %s", filepath.Base(a))
	}

	names, err := archive.Entries(a)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(names, []string{"css/site.css", "index.html", "js/app.js"}) {
		t.Fatalf("expected sorted entries, got %v", names)
	}

	reader, err := zip.OpenReader(a)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()
	for _, f := range reader.File {
		if f.Mode().Perm() != 0o644 {
			t.Fatalf("expected fixed permissions, got %v for %s", f.Mode(), f.Name)
		}
		if f.Modified.Year() != 2015 {
			t.Fatalf("expected fixed timestamp, got %v for %s", f.Modified, f.Name)
		}
	}

	populate(t, second, map[string]string{"index.html": "<p>changed</p>"})
	c, err := svc.CreatePredictable(context.Background(), second, outDir)
	if err != nil {
		t.Fatal(err)
	}
	if c == a {
		t.Fatal("expected different contents to produce a different name")
	}
}
