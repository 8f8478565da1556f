package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"imscp/internal/archive"
	"imscp/internal/config"
	"imscp/internal/logging"
	"imscp/internal/manifest"
)

type commandContext struct {
	configFlag   *string
	jsonFlag     *bool
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string, jsonFlag *bool, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		jsonFlag:     jsonFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.Logging.Level = strings.ToLower(strings.TrimSpace(*c.logLevelFlag))
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

// JSONMode reports whether --json was passed.
func (c *commandContext) JSONMode() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// ensureLogger builds the process logger on first use. Console records go to
// the command's stderr; a JSON copy is appended to the configured log dir.
func (c *commandContext) ensureLogger(errOut io.Writer) (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		logger, err := logging.NewFromConfig(cfg, errOut)
		if err != nil {
			c.loggerErr = fmt.Errorf("init logger: %w", err)
			return
		}
		logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, logging.RetentionTarget{
			Dir:     cfg.Paths.LogDir,
			Pattern: "*.log",
			Exclude: []string{logging.LogFileName},
		})
		c.logger = logger
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) parser(logger *slog.Logger) (*manifest.Parser, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	mode, err := manifest.ParseBaseMode(cfg.Manifest.BaseMode)
	if err != nil {
		return nil, err
	}
	return manifest.NewParser(manifest.Options{
		Filename:        cfg.Manifest.Filename,
		BaseMode:        mode,
		RecoverEncoding: cfg.Manifest.RecoverEncoding,
		Logger:          logger,
	}), nil
}

func (c *commandContext) archiveService(logger *slog.Logger) (*archive.Service, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return archive.New(archive.Limits{
		MaxFiles: cfg.Extraction.MaxFiles,
		MaxBytes: cfg.Extraction.MaxBytes,
		Timeout:  cfg.ExtractionTimeout(),
	}, logger), nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
