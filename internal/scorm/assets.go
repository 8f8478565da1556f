package scorm

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"imscp/internal/fileutil"
)

//go:embed assets/scorm_handlers.js
var handlersJS []byte

// ErrRuntimeMissing reports that no scormAPI.js runtime is configured or readable.
var ErrRuntimeMissing = errors.New("scorm runtime not available")

// CheckRuntime verifies that apiPath names a readable runtime script.
func CheckRuntime(apiPath string) error {
	if apiPath == "" {
		return fmt.Errorf("%w: packaging.scorm_api_path is empty", ErrRuntimeMissing)
	}
	info, err := os.Stat(apiPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRuntimeMissing, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrRuntimeMissing, apiPath)
	}
	return nil
}

// InstallAssets writes the handler script and copies the runtime at apiPath
// into destDir/AssetDir.
func InstallAssets(destDir, apiPath string) error {
	if err := CheckRuntime(apiPath); err != nil {
		return err
	}
	dir := filepath.Join(destDir, AssetDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create scorm asset dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, HandlersScript), handlersJS, 0o644); err != nil {
		return fmt.Errorf("write scorm handlers: %w", err)
	}
	if err := fileutil.CopyFile(apiPath, filepath.Join(dir, APIScript)); err != nil {
		return fmt.Errorf("copy scorm runtime: %w", err)
	}
	return nil
}

// Apply injects the scripts into the page at indexPath and installs the
// assets in destDir.
func Apply(t HTMLTransformer, indexPath, destDir, apiPath string) error {
	if err := InstallAssets(destDir, apiPath); err != nil {
		return err
	}
	data, err := os.ReadFile(indexPath)
	if err != nil {
		return fmt.Errorf("read entry page: %w", err)
	}
	out, err := t.Transform(data)
	if err != nil {
		return err
	}
	if err := os.WriteFile(indexPath, out, 0o644); err != nil {
		return fmt.Errorf("write entry page: %w", err)
	}
	return nil
}
