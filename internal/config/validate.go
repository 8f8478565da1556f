package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateManifest(); err != nil {
		return err
	}
	if err := c.validateExtraction(); err != nil {
		return err
	}
	if err := c.validatePackaging(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	return nil
}

func (c *Config) validateManifest() error {
	switch c.Manifest.BaseMode {
	case "join", "dot", "ignore":
	default:
		return fmt.Errorf("manifest.base_mode: unsupported value %q (want join, dot or ignore)", c.Manifest.BaseMode)
	}
	if strings.ContainsAny(c.Manifest.Filename, `/\`) {
		return fmt.Errorf("manifest.filename must be a bare file name, got %q", c.Manifest.Filename)
	}
	return nil
}

func (c *Config) validateExtraction() error {
	if c.Extraction.TimeoutSeconds < 0 {
		return errors.New("extraction.timeout_seconds must be non-negative")
	}
	if c.Extraction.MaxFiles < 0 {
		return errors.New("extraction.max_files must be non-negative")
	}
	if c.Extraction.MaxBytes < 0 {
		return errors.New("extraction.max_bytes must be non-negative")
	}
	return nil
}

func (c *Config) validatePackaging() error {
	switch c.Packaging.Mode {
	case "copy", "redirect":
	default:
		return fmt.Errorf("packaging.mode: unsupported value %q (want copy or redirect)", c.Packaging.Mode)
	}
	if c.Packaging.Workers > 64 {
		return errors.New("packaging.workers must be at most 64")
	}
	if !strings.HasPrefix(c.Packaging.ZipContentPrefix, "/") {
		return fmt.Errorf("packaging.zip_content_prefix must start with '/', got %q", c.Packaging.ZipContentPrefix)
	}
	for _, pattern := range c.Packaging.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("packaging.exclude: invalid glob %q", pattern)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}
