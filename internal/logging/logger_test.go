package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"imscp/internal/config"
	"imscp/internal/logging"
)

func TestConsoleLoggerRendersSubjectAndDetails(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := logging.WithItem(logging.WithPackage(context.Background(), "course-1"), "ITEM-7")
	logging.WithContext(ctx, logging.NewComponentLogger(logger, "bundle")).Info("bundle written",
		logging.String("bundle", "abc.zip"),
		logging.String(logging.FieldEventType, "bundle_written"),
	)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(content)
	for _, want := range []string{"INFO [bundle] course-1 · ITEM-7 - bundle written", "event_type: bundle_written", "bundle: abc.zip"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got %q", want, out)
		}
	}
	if strings.Contains(out, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", out)
	}
	if strings.Index(out, "event_type") > strings.Index(out, "bundle: abc.zip") {
		t.Fatalf("expected event_type promoted ahead of other details, got %q", out)
	}
}

func TestJSONLoggerFiltersLevel(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "warn", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", logging.Int("count", 2))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one record, got %d: %q", len(lines), content)
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record["level"] != "warn" || record["msg"] != "shown" || record["count"] != float64(2) {
		t.Fatalf("unexpected record %v", record)
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", record)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewFromConfigWritesJSONFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "logs")
	cfg.Logging.Level = "debug"

	logger, err := logging.NewFromConfig(&cfg, io.Discard)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Debug("debug message", logging.String(logging.FieldEventType, "sample"))

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, logging.LogFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), `"event_type":"sample"`) {
		t.Fatalf("expected JSON record in log file, got %q", content)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logging.WarnWithContext(logger, "resource skipped", "resource_skipped",
		logging.String(logging.FieldImpact, "item omitted"),
	)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record[logging.FieldEventType] != "resource_skipped" {
		t.Fatalf("expected event_type, got %v", record)
	}
	if record[logging.FieldImpact] != "item omitted" {
		t.Fatalf("expected caller impact preserved, got %v", record)
	}
	if record[logging.FieldErrorHint] == "" || record[logging.FieldErrorHint] == nil {
		t.Fatalf("expected default error hint, got %v", record)
	}

	logging.WarnWithContext(nil, "ignored", "noop")
}

func TestTeeHandlerDuplicatesRecords(t *testing.T) {
	var a, b bytes.Buffer
	logger := slog.New(logging.TeeHandler(
		slog.NewTextHandler(&a, nil),
		nil,
		slog.NewTextHandler(&b, &slog.HandlerOptions{Level: slog.LevelError}),
	)).With(logging.String(logging.FieldComponent, "tee"))

	logger.Info("first")
	logger.Error("second")

	if !strings.Contains(a.String(), "first") || !strings.Contains(a.String(), "second") {
		t.Fatalf("expected both records in first handler, got %q", a.String())
	}
	if strings.Contains(b.String(), "first") || !strings.Contains(b.String(), "component=tee") {
		t.Fatalf("expected only error records with attrs in second handler, got %q", b.String())
	}
}

func TestContextFields(t *testing.T) {
	if fields := logging.ContextFields(context.Background()); len(fields) != 0 {
		t.Fatalf("expected no fields, got %v", fields)
	}
	ctx := logging.WithRunID(logging.WithPackage(context.Background(), " pkg "), "run-1")
	fields := logging.ContextFields(ctx)
	if len(fields) != 2 || fields[0].Value.String() != "pkg" || fields[1].Key != logging.FieldRunID {
		t.Fatalf("unexpected fields %v", fields)
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.log")
	fresh := filepath.Join(dir, "fresh.log")
	keep := filepath.Join(dir, "keep.log")
	other := filepath.Join(dir, "old.txt")
	for _, path := range []string{old, fresh, keep, other} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().AddDate(0, 0, -10)
	for _, path := range []string{old, keep, other} {
		if err := os.Chtimes(path, past, past); err != nil {
			t.Fatal(err)
		}
	}

	removed := logging.CleanupOldLogs(logging.NewNop(), 3, logging.RetentionTarget{Dir: dir, Pattern: "*.log", Exclude: []string{keep}})
	if removed != 1 {
		t.Fatalf("expected one removal, got %d", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatal("expected old log removed")
	}
	for _, path := range []string{fresh, keep, other} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s to remain: %v", path, err)
		}
	}
	if got := logging.CleanupOldLogs(nil, 0, logging.RetentionTarget{Dir: dir}); got != 0 {
		t.Fatalf("expected retention disabled, got %d", got)
	}
}

func TestProgressSampler(t *testing.T) {
	sampler := logging.NewProgressSampler(8, 25)
	var logged []int
	for done := 0; done <= 8; done++ {
		if sampler.ShouldLog(done) {
			logged = append(logged, done)
		}
	}
	want := []int{0, 2, 4, 6, 8}
	if len(logged) != len(want) {
		t.Fatalf("got %v want %v", logged, want)
	}
	for i := range want {
		if logged[i] != want[i] {
			t.Fatalf("got %v want %v", logged, want)
		}
	}
	if sampler.ShouldLog(8) {
		t.Fatal("expected completion to log once")
	}
}
