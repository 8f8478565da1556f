package bundle_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"

	"imscp/internal/archive"
	"imscp/internal/bundle"
	"imscp/internal/logging"
	"imscp/internal/manifest"
)

const packageManifest = `<?xml version="1.0" encoding="UTF-8"?>
<manifest identifier="PKG-1"
  xmlns="http://www.imsglobal.org/xsd/imscp_v1p1"
  xmlns:adlcp="http://www.adlnet.org/xsd/adlcp_rootv1p2">
  <organizations default="ORG-1">
    <organization identifier="ORG-1">
      <title>Course</title>
      <item identifier="ITEM-1" identifierref="RES-1">
        <title>Lesson A</title>
      </item>
      <item identifier="ITEM-2" identifierref="RES-2">
        <title>Lesson B</title>
      </item>
      <item identifier="ITEM-3" identifierref="RES-3">
        <title>Quiz</title>
      </item>
      <item identifier="ITEM-4">
        <title>Placeholder</title>
      </item>
    </organization>
  </organizations>
  <resources>
    <resource identifier="RES-1" type="webcontent" href="a.html" adlcp:scormtype="sco">
      <file href="a.html"/>
      <file href="js/app.js"/>
      <file href="raw/source.psd"/>
      <dependency identifierref="SHARED"/>
    </resource>
    <resource identifier="RES-2" type="webcontent" href="lessons/b.html#start">
      <file href="lessons/b.html"/>
      <file href="lessons/missing.png"/>
      <dependency identifierref="SHARED"/>
    </resource>
    <resource identifier="RES-3" type="imsqti_xmlv1p2" href="quiz.xml">
      <file href="quiz.xml"/>
    </resource>
    <resource identifier="SHARED" type="webcontent">
      <file href="css/"/>
      <file href="css/site.css"/>
    </resource>
  </resources>
</manifest>
`

func writePackage(t *testing.T) *manifest.Result {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		manifest.DefaultFilename: packageManifest,
		"a.html":                 `<html><head><title>A</title></head><body>a</body></html>`,
		"js/app.js":              "var app;",
		"raw/source.psd":         "psd",
		"lessons/b.html":         `<html><head></head><body>b</body></html>`,
		"css/site.css":           "body{}",
		"quiz.xml":               "<quiz/>",
	}
	for name, body := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	parser := manifest.NewParser(manifest.Options{Logger: logging.NewNop()})
	result, err := parser.ExtractFromDir(dir)
	if err != nil {
		t.Fatalf("ExtractFromDir returned error: %v", err)
	}
	return result
}

func readZip(t *testing.T, path string) map[string]string {
	t.Helper()
	reader, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open bundle %s: %v", path, err)
	}
	defer reader.Close()
	out := make(map[string]string, len(reader.File))
	for _, f := range reader.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		var sb strings.Builder
		buf := make([]byte, 512)
		for {
			n, readErr := rc.Read(buf)
			sb.Write(buf[:n])
			if readErr != nil {
				break
			}
		}
		_ = rc.Close()
		out[f.Name] = sb.String()
	}
	return out
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func newBuilder(t *testing.T, opts bundle.Options) *bundle.Builder {
	t.Helper()
	if opts.OutputDir == "" {
		opts.OutputDir = t.TempDir()
	}
	opts.TempDir = t.TempDir()
	builder, err := bundle.NewBuilder(opts, archive.New(archive.Limits{}, nil), logging.NewNop())
	if err != nil {
		t.Fatalf("NewBuilder returned error: %v", err)
	}
	return builder
}

func TestBuildCopyMode(t *testing.T) {
	result := writePackage(t)
	runtime := filepath.Join(t.TempDir(), "scormAPI.js")
	if err := os.WriteFile(runtime, []byte("window.API = {};"), 0o644); err != nil {
		t.Fatal(err)
	}
	builder := newBuilder(t, bundle.Options{
		Mode:         bundle.ModeCopy,
		Workers:      3,
		ScormSupport: true,
		ScormAPIPath: runtime,
		Exclude:      []string{"**/*.psd"},
	})

	report, err := builder.Build(context.Background(), bundle.Source{Result: result})
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if len(report.Bundles) != 2 || len(report.Failures) != 0 || len(report.Skipped) != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}

	first, ok := report.Lookup(0, "0")
	if !ok {
		t.Fatal("expected bundle for first leaf")
	}
	if first.ItemID != "ITEM-1" || first.Entry != "index.html" || !first.Scorm || first.Excluded != 1 {
		t.Fatalf("unexpected first bundle: %+v", first)
	}
	contents := readZip(t, first.ZipPath)
	for _, name := range []string{"index.html", "a.html", "js/app.js", "css/site.css", "le-scorm/scormAPI.js", "le-scorm/scorm_handlers.js"} {
		if _, ok := contents[name]; !ok {
			t.Fatalf("expected %s in bundle, got %v", name, keys(contents))
		}
	}
	if _, ok := contents["raw/source.psd"]; ok {
		t.Fatal("excluded file was bundled")
	}
	if !strings.Contains(contents["index.html"], "le-scorm/scormAPI.js") {
		t.Fatalf("expected scorm scripts in entry page, got %s", contents["index.html"])
	}

	second, ok := report.Lookup(0, "1")
	if !ok {
		t.Fatal("expected bundle for second leaf")
	}
	if second.Entry != "lessons/b.html#start" || second.Scorm {
		t.Fatalf("unexpected second bundle: %+v", second)
	}
	if !reflect.DeepEqual(second.Missing, []string{"lessons/missing.png"}) {
		t.Fatalf("unexpected missing list %v", second.Missing)
	}
	contents = readZip(t, second.ZipPath)
	if !strings.Contains(contents["index.html"], "url=lessons/b.html#start") {
		t.Fatalf("expected redirect stub to nested entry, got %s", contents["index.html"])
	}
	if contents["lessons/b.html"] != `<html><head></head><body>b</body></html>` {
		t.Fatalf("expected nested entry copied verbatim, got %q", contents["lessons/b.html"])
	}

	reasons := []string{report.Skipped[0].Reason, report.Skipped[1].Reason}
	if !strings.Contains(reasons[0], "imsqti_xmlv1p2") || !strings.Contains(reasons[1], "does not reference") {
		t.Fatalf("unexpected skip reasons %v", reasons)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	result := writePackage(t)
	outDir := t.TempDir()
	opts := bundle.Options{OutputDir: outDir, Workers: 2}

	a, err := newBuilder(t, opts).Build(context.Background(), bundle.Source{Result: result})
	if err != nil {
		t.Fatal(err)
	}
	b, err := newBuilder(t, opts).Build(context.Background(), bundle.Source{Result: result})
	if err != nil {
		t.Fatal(err)
	}
	for i := range a.Bundles {
		if a.Bundles[i].ZipPath != b.Bundles[i].ZipPath {
			t.Fatalf("expected stable zip names, got %s and %s", a.Bundles[i].ZipPath, b.Bundles[i].ZipPath)
		}
	}
}

func TestBuildRedirectMode(t *testing.T) {
	result := writePackage(t)
	builder := newBuilder(t, bundle.Options{Mode: bundle.ModeRedirect, ZipContentPrefix: "/content/"})

	if _, err := builder.Build(context.Background(), bundle.Source{Result: result}); err == nil {
		t.Fatal("expected redirect mode without archive to fail")
	}

	report, err := builder.Build(context.Background(), bundle.Source{Result: result, Archive: "/srv/packages/course.zip"})
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	second, ok := report.Lookup(0, "1")
	if !ok {
		t.Fatal("expected bundle for second leaf")
	}
	if second.Entry != "/content/course.zip/lessons/b.html#start" || second.DependencyZip != "/srv/packages/course.zip" {
		t.Fatalf("unexpected redirect bundle: %+v", second)
	}
	contents := readZip(t, second.ZipPath)
	if len(contents) != 1 || !strings.Contains(contents["index.html"], "url=/content/course.zip/lessons/b.html#start") {
		t.Fatalf("unexpected redirect bundle contents %v", contents)
	}
}

type failingPackager struct{}

func (failingPackager) CreatePredictable(context.Context, string, string) (string, error) {
	return "", errors.New("disk full")
}

func TestBuildRecordsFailures(t *testing.T) {
	result := writePackage(t)
	builder, err := bundle.NewBuilder(bundle.Options{OutputDir: t.TempDir(), TempDir: t.TempDir()}, failingPackager{}, logging.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	report, err := builder.Build(context.Background(), bundle.Source{Result: result})
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if len(report.Failures) != 2 || len(report.Bundles) != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if !strings.Contains(report.Failures[0].Error(), "organization[0]/0") {
		t.Fatalf("unexpected failure text %q", report.Failures[0].Error())
	}

	payload, err := json.Marshal(report.Failures[0])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(payload), `"error":"write bundle zip: disk full"`) || !strings.Contains(string(payload), `"item_id":"ITEM-1"`) {
		t.Fatalf("unexpected failure json %s", payload)
	}
}

func TestBuildHonoursCancellation(t *testing.T) {
	result := writePackage(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newBuilder(t, bundle.Options{}).Build(ctx, bundle.Source{Result: result})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewBuilderValidatesOptions(t *testing.T) {
	tests := []struct {
		name string
		opts bundle.Options
	}{
		{name: "output dir", opts: bundle.Options{}},
		{name: "mode", opts: bundle.Options{OutputDir: "/tmp", Mode: "symlink"}},
		{name: "exclude", opts: bundle.Options{OutputDir: "/tmp", Exclude: []string{"[oops"}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := bundle.NewBuilder(tc.opts, failingPackager{}, nil); err == nil {
				t.Fatal("expected error")
			}
		})
	}
	if _, err := bundle.NewBuilder(bundle.Options{OutputDir: "/tmp"}, nil, nil); err == nil {
		t.Fatal("expected missing packager to be rejected")
	}
}

func TestParseMode(t *testing.T) {
	for input, want := range map[string]bundle.Mode{"": bundle.ModeCopy, " Copy ": bundle.ModeCopy, "REDIRECT": bundle.ModeRedirect} {
		got, err := bundle.ParseMode(input)
		if err != nil || got != want {
			t.Fatalf("ParseMode(%q) = %q, %v", input, got, err)
		}
	}
	if _, err := bundle.ParseMode("link"); err == nil {
		t.Fatal("expected unknown mode to fail")
	}
}
