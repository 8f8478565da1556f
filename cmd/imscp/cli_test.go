package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"imscp/internal/config"
	"imscp/internal/manifest"
	"imscp/internal/testsupport"
)

const cliManifest = `<?xml version="1.0" encoding="UTF-8"?>
<manifest identifier="COURSE" xmlns="http://www.imsglobal.org/xsd/imscp_v1p1">
  <organizations default="ORG">
    <organization identifier="ORG">
      <title>Course</title>
      <item identifier="UNIT">
        <title>Unit 1</title>
        <item identifier="LESSON-1" identifierref="RES-1">
          <title>Lesson 1</title>
        </item>
        <item identifier="LESSON-2" identifierref="RES-2">
          <title>Lesson 2</title>
        </item>
      </item>
      <item identifier="BROKEN" identifierref="NOPE">
        <title>Broken</title>
      </item>
    </organization>
  </organizations>
  <resources>
    <resource identifier="RES-1" type="webcontent" href="one.html">
      <file href="one.html"/>
    </resource>
    <resource identifier="RES-2" type="webcontent" href="two/index.html">
      <file href="two/index.html"/>
      <file href="two/style.css"/>
    </resource>
  </resources>
</manifest>
`

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	archive    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithScormRuntime())
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))

	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	configPath := filepath.Join(base, "config.toml")
	testsupport.WriteText(t, configPath, string(data))

	archive := filepath.Join(base, "course.zip")
	testsupport.WriteZip(t, archive, map[string]string{
		manifest.DefaultFilename: cliManifest,
		"one.html":               "<html><head></head><body>one</body></html>",
		"two/index.html":         "<html><head></head><body>two</body></html>",
		"two/style.css":          "body{}",
	})

	return &cliTestEnv{cfg: cfg, configPath: configPath, archive: archive}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--log-level", "error"}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func TestConfigInitShowAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	out, _, err = runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, env.cfg.Paths.StagingDir)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}
}

func TestInspectJSON(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"--json", "inspect", env.archive}, env.configPath)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	var result struct {
		Identifier    string            `json:"identifier"`
		Organizations []json.RawMessage `json:"organizations"`
		Problems      []json.RawMessage `json:"problems"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode inspect output: %v\n%s", err, out)
	}
	if result.Identifier != "COURSE" || len(result.Organizations) != 1 {
		t.Fatalf("unexpected inspect result %+v", result)
	}
	if len(result.Problems) == 0 {
		t.Fatal("expected the dangling reference to be reported")
	}

	dirs, err := os.ReadDir(env.cfg.Paths.StagingDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(dirs) != 0 {
		t.Fatalf("expected staging run to be removed, found %d entries", len(dirs))
	}
}

func TestInspectTable(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"inspect", env.archive}, env.configPath)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	requireContains(t, out, "COURSE")
	requireContains(t, out, "organization[0]/0/1")
	requireContains(t, out, "Problems")
	requireContains(t, out, "Items")
}

func TestPackageRecordsLedger(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"--json", "package", env.archive, "--parent-id", "lib"}, env.configPath)
	if err != nil {
		t.Fatalf("package: %v", err)
	}
	var payload struct {
		Package string `json:"package"`
		Digest  string `json:"digest"`
		Report  struct {
			Bundles []struct {
				ZipPath string `json:"zip_path"`
			} `json:"bundles"`
			Skipped []json.RawMessage `json:"skipped"`
		} `json:"report"`
		Topics []struct {
			SourceID string `json:"source_id"`
			Children []struct {
				SourceID string `json:"source_id"`
				Children []struct {
					Kind     string `json:"kind"`
					SourceID string `json:"source_id"`
				} `json:"children"`
			} `json:"children"`
		} `json:"topics"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode package output: %v\n%s", err, out)
	}
	if payload.Package != "COURSE" || len(payload.Digest) != 64 {
		t.Fatalf("unexpected package header %+v", payload)
	}
	if len(payload.Report.Bundles) != 2 {
		t.Fatalf("expected 2 bundles, got %d", len(payload.Report.Bundles))
	}
	for _, b := range payload.Report.Bundles {
		if _, err := os.Stat(b.ZipPath); err != nil {
			t.Fatalf("bundle zip missing: %v", err)
		}
	}
	if len(payload.Topics) != 1 || payload.Topics[0].SourceID != "lib-ORG" {
		t.Fatalf("unexpected topic roots %+v", payload.Topics)
	}
	unit := payload.Topics[0].Children[0]
	if unit.SourceID != "lib-ORG-UNIT" || len(unit.Children) != 2 || unit.Children[0].Kind != "html5" {
		t.Fatalf("unexpected unit node %+v", unit)
	}

	// A second run refreshes the ledger rows instead of adding new ones.
	if _, _, err := runCLI(t, []string{"--json", "package", env.archive}, env.configPath); err != nil {
		t.Fatalf("package again: %v", err)
	}
	out, _, err = runCLI(t, []string{"--json", "ledger", "list", "--digest", payload.Digest}, env.configPath)
	if err != nil {
		t.Fatalf("ledger list: %v", err)
	}
	var entries []struct {
		ItemKey  string `json:"item_key"`
		SourceID string `json:"source_id"`
	}
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode ledger output: %v\n%s", err, out)
	}
	if len(entries) != 2 || entries[0].ItemKey != "organization[0]/0/0" {
		t.Fatalf("unexpected ledger entries %+v", entries)
	}
	if entries[0].SourceID != "ORG-UNIT-LESSON-1" {
		t.Fatalf("expected source id from the latest run, got %q", entries[0].SourceID)
	}

	out, _, err = runCLI(t, []string{"ledger", "prune"}, env.configPath)
	if err != nil {
		t.Fatalf("ledger prune: %v", err)
	}
	requireContains(t, out, "Pruned 0 ledger entries")
}

func TestPackageRedirectModeRequiresArchive(t *testing.T) {
	env := setupCLITestEnv(t)
	dir := t.TempDir()
	testsupport.WriteTree(t, dir, map[string]string{
		manifest.DefaultFilename: cliManifest,
		"one.html":               "one",
	})

	if _, _, err := runCLI(t, []string{"package", dir, "--mode", "redirect"}, env.configPath); err == nil {
		t.Fatal("expected redirect mode to reject a directory package")
	}
	if _, _, err := runCLI(t, []string{"package", env.archive, "--mode", "bogus"}, env.configPath); err == nil {
		t.Fatal("expected invalid mode to fail")
	}
}

func TestStagingListAndClean(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteText(t, filepath.Join(env.cfg.Paths.StagingDir, "run-old", "package", "x.html"), "x")

	out, _, err := runCLI(t, []string{"--json", "staging", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("staging list: %v", err)
	}
	requireContains(t, out, `"name": "run-old"`)

	out, _, err = runCLI(t, []string{"staging", "clean", "--all"}, env.configPath)
	if err != nil {
		t.Fatalf("staging clean: %v", err)
	}
	requireContains(t, out, "Removed 1 staging directories")

	out, _, err = runCLI(t, []string{"staging", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("staging list: %v", err)
	}
	requireContains(t, out, "No staging directories found")
}

func TestDoctor(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"doctor"}, env.configPath)
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	requireContains(t, out, "SCORM runtime")
}
