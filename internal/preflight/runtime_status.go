package preflight

import (
	"errors"
	"strings"

	"imscp/internal/config"
	"imscp/internal/scorm"
)

// CheckScormFromConfig evaluates whether SCO bundles will get the runtime bridge.
func CheckScormFromConfig(cfg *config.Config) Result {
	const name = "SCORM runtime"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if !cfg.Packaging.ScormSupport {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	if cfg.Packaging.Mode == "redirect" {
		return Result{Name: name, Passed: true, Detail: "Not used in redirect mode"}
	}
	path := strings.TrimSpace(cfg.Packaging.ScormAPIPath)
	if err := scorm.CheckRuntime(path); err != nil {
		if errors.Is(err, scorm.ErrRuntimeMissing) && path == "" {
			return Result{Name: name, Detail: "packaging.scorm_api_path not set; SCO bundles will lack progress tracking"}
		}
		return Result{Name: name, Detail: err.Error()}
	}
	return CheckFileReadable(name, path)
}
