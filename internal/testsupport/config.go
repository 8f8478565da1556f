package testsupport

import (
	"path/filepath"
	"testing"

	"imscp/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.OutputDir = filepath.Join(base, "bundles")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.LedgerPath = filepath.Join(base, "ledger.db")
	cfgVal.Packaging.Workers = 2

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithPackagingMode overrides packaging.mode on the test config.
func WithPackagingMode(mode string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Packaging.Mode = mode
	}
}

// WithScormRuntime writes a stub scormAPI.js and points the config at it.
func WithScormRuntime() ConfigOption {
	return func(b *configBuilder) {
		path := filepath.Join(b.baseDir, "runtime", "scormAPI.js")
		WriteText(b.t, path, "window.API = {};")
		b.cfg.Packaging.ScormAPIPath = path
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}
