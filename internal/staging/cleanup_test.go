package staging

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"imscp/internal/logging"
)

func TestCleanStaleInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := CleanStale(context.Background(), dir, time.Hour, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestCleanStaleRemovesOldDirectories(t *testing.T) {
	tmpDir := t.TempDir()

	oldDir := filepath.Join(tmpDir, "run-old")
	if err := os.Mkdir(oldDir, 0o755); err != nil {
		t.Fatalf("create old dir: %v", err)
	}
	oldTime := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(oldDir, oldTime, oldTime); err != nil {
		t.Fatalf("set old time: %v", err)
	}

	recentDir := filepath.Join(tmpDir, "run-recent")
	if err := os.Mkdir(recentDir, 0o755); err != nil {
		t.Fatalf("create recent dir: %v", err)
	}

	result := CleanStale(context.Background(), tmpDir, time.Hour, logging.NewNop())

	if len(result.Removed) != 1 || result.Removed[0] != oldDir {
		t.Fatalf("expected %s removed, got %v", oldDir, result.Removed)
	}
	if _, err := os.Stat(oldDir); !os.IsNotExist(err) {
		t.Error("old directory should have been removed")
	}
	if _, err := os.Stat(recentDir); err != nil {
		t.Error("recent directory should still exist")
	}
}

func TestCleanStaleIgnoresFiles(t *testing.T) {
	tmpDir := t.TempDir()

	oldFile := filepath.Join(tmpDir, "old-file.txt")
	if err := os.WriteFile(oldFile, []byte("test"), 0o644); err != nil {
		t.Fatalf("create file: %v", err)
	}
	oldTime := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(oldFile, oldTime, oldTime); err != nil {
		t.Fatalf("set old time: %v", err)
	}

	result := CleanStale(context.Background(), tmpDir, time.Hour, logging.NewNop())
	if len(result.Removed) != 0 {
		t.Errorf("expected no removals for files, got %d", len(result.Removed))
	}
	if _, err := os.Stat(oldFile); err != nil {
		t.Error("file should not have been removed")
	}
}

func TestCleanStaleSkipsActiveRuns(t *testing.T) {
	tmpDir := t.TempDir()

	run, err := Begin(tmpDir, "Course Package.zip")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(run.Dir), "run-course_package.zip-") {
		t.Fatalf("unexpected run dir name %s", run.Dir)
	}

	result := CleanStale(context.Background(), tmpDir, 0, logging.NewNop())
	if len(result.Removed) != 0 || len(result.Skipped) != 1 {
		t.Fatalf("expected active run to be skipped, got %+v", result)
	}

	if err := run.Keep(); err != nil {
		t.Fatalf("Keep: %v", err)
	}
	result = CleanStale(context.Background(), tmpDir, 0, logging.NewNop())
	if len(result.Removed) != 1 {
		t.Fatalf("expected released run to be removed, got %+v", result)
	}
}

func TestRunCloseRemovesDirectory(t *testing.T) {
	run, err := Begin(t.TempDir(), "pkg")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := os.WriteFile(run.Path("file.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := run.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(run.Dir); !os.IsNotExist(err) {
		t.Fatal("run directory should be removed")
	}
	if _, err := Begin("  ", "pkg"); err == nil {
		t.Fatal("expected empty staging dir to be rejected")
	}
}

func TestLockOutputIsExclusive(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bundles")

	first, err := LockOutput(dir)
	if err != nil {
		t.Fatalf("LockOutput: %v", err)
	}
	if _, err := LockOutput(dir); !errors.Is(err, ErrOutputLocked) {
		t.Fatalf("expected ErrOutputLocked, got %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	second, err := LockOutput(dir)
	if err != nil {
		t.Fatalf("expected lock after release, got %v", err)
	}
	_ = second.Release()
}

func TestListDirectoriesInvalidPaths(t *testing.T) {
	for _, path := range []string{"", "/nonexistent/path/12345"} {
		dirs, err := ListDirectories(path)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", path, err)
		}
		if dirs != nil {
			t.Errorf("expected nil for path %q, got %v", path, dirs)
		}
	}
}

func TestListDirectories(t *testing.T) {
	tmpDir := t.TempDir()

	dir1 := filepath.Join(tmpDir, "run-1")
	if err := os.Mkdir(dir1, 0o755); err != nil {
		t.Fatalf("create dir1: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "not-a-dir.txt"), []byte("test"), 0o644); err != nil {
		t.Fatalf("create file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir1, "data.bin"), []byte("12345"), 0o644); err != nil {
		t.Fatalf("create inner file: %v", err)
	}
	run, err := Begin(tmpDir, "live")
	if err != nil {
		t.Fatal(err)
	}
	defer run.Close()

	dirs, err := ListDirectories(tmpDir)
	if err != nil {
		t.Fatalf("ListDirectories: %v", err)
	}
	if len(dirs) != 2 {
		t.Fatalf("expected 2 directories, got %d", len(dirs))
	}
	for _, d := range dirs {
		switch d.Path {
		case dir1:
			if d.Size != 5 || d.Active {
				t.Errorf("unexpected dir1 info %+v", d)
			}
		case run.Dir:
			if !d.Active {
				t.Errorf("expected live run to be active: %+v", d)
			}
		default:
			t.Errorf("unexpected directory %s", d.Path)
		}
	}
}
