package config

const (
	defaultConfigPath       = "~/.config/imscp/config.toml"
	projectConfigName       = "imscp.toml"
	defaultStagingDir       = "~/.local/share/imscp/staging"
	defaultOutputDir        = "~/.local/share/imscp/bundles"
	defaultLogDir           = "~/.local/share/imscp/logs"
	defaultLedgerPath       = "~/.local/share/imscp/ledger.db"
	defaultManifestFilename = "imsmanifest.xml"
	defaultBaseMode         = "join"
	defaultExtractTimeout   = 300
	defaultExtractMaxFiles  = 20000
	defaultExtractMaxBytes  = int64(2) << 30
	defaultPackagingMode    = "copy"
	defaultPackagingWorkers = 4
	defaultTaskTimeout      = 120
	defaultZipContentPrefix = "/zipcontent"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 30
	envLogLevel             = "IMSCP_LOG_LEVEL"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			OutputDir:  defaultOutputDir,
			LogDir:     defaultLogDir,
			LedgerPath: defaultLedgerPath,
		},
		Manifest: Manifest{
			Filename:        defaultManifestFilename,
			BaseMode:        defaultBaseMode,
			RecoverEncoding: true,
		},
		Extraction: Extraction{
			TimeoutSeconds: defaultExtractTimeout,
			MaxFiles:       defaultExtractMaxFiles,
			MaxBytes:       defaultExtractMaxBytes,
		},
		Packaging: Packaging{
			Mode:               defaultPackagingMode,
			Workers:            defaultPackagingWorkers,
			TaskTimeoutSeconds: defaultTaskTimeout,
			ZipContentPrefix:   defaultZipContentPrefix,
			ScormSupport:       true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
