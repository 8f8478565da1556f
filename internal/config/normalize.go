package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeManifest()
	if err := c.normalizePackaging(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.LedgerPath, err = expandPath(c.Paths.LedgerPath); err != nil {
		return fmt.Errorf("paths.ledger_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeManifest() {
	c.Manifest.Filename = strings.TrimSpace(c.Manifest.Filename)
	if c.Manifest.Filename == "" {
		c.Manifest.Filename = defaultManifestFilename
	}
	c.Manifest.BaseMode = strings.ToLower(strings.TrimSpace(c.Manifest.BaseMode))
	if c.Manifest.BaseMode == "" {
		c.Manifest.BaseMode = defaultBaseMode
	}
}

func (c *Config) normalizePackaging() error {
	c.Packaging.Mode = strings.ToLower(strings.TrimSpace(c.Packaging.Mode))
	if c.Packaging.Mode == "" {
		c.Packaging.Mode = defaultPackagingMode
	}
	if c.Packaging.Workers <= 0 {
		c.Packaging.Workers = defaultPackagingWorkers
	}
	if c.Packaging.TaskTimeoutSeconds < 0 {
		c.Packaging.TaskTimeoutSeconds = 0
	}
	c.Packaging.ZipContentPrefix = strings.TrimRight(strings.TrimSpace(c.Packaging.ZipContentPrefix), "/")
	if c.Packaging.ZipContentPrefix == "" {
		c.Packaging.ZipContentPrefix = defaultZipContentPrefix
	}
	var err error
	if c.Packaging.ScormAPIPath, err = expandPath(strings.TrimSpace(c.Packaging.ScormAPIPath)); err != nil {
		return fmt.Errorf("packaging.scorm_api_path: %w", err)
	}
	patterns := make([]string, 0, len(c.Packaging.Exclude))
	for _, pattern := range c.Packaging.Exclude {
		if trimmed := strings.TrimSpace(pattern); trimmed != "" {
			patterns = append(patterns, trimmed)
		}
	}
	c.Packaging.Exclude = patterns
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	if value, ok := os.LookupEnv(envLogLevel); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
