package bundle

import (
	"fmt"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"imscp/internal/scorm"
)

// Mode selects how a leaf becomes a bundle.
type Mode string

const (
	// ModeCopy copies the leaf's files into a self-contained zip.
	ModeCopy Mode = "copy"
	// ModeRedirect writes an entry page pointing into the original archive.
	ModeRedirect Mode = "redirect"
)

// ParseMode validates a configured packaging mode; empty selects ModeCopy.
func ParseMode(value string) (Mode, error) {
	switch mode := Mode(strings.ToLower(strings.TrimSpace(value))); mode {
	case "":
		return ModeCopy, nil
	case ModeCopy, ModeRedirect:
		return mode, nil
	default:
		return "", fmt.Errorf("unsupported packaging mode %q (want copy or redirect)", value)
	}
}

// Options configures a Builder.
type Options struct {
	Mode        Mode
	Workers     int
	TaskTimeout time.Duration
	// OutputDir receives the finished zips.
	OutputDir string
	// TempDir hosts per-leaf work directories; empty uses the system default.
	TempDir          string
	ZipContentPrefix string
	ScormSupport     bool
	ScormAPIPath     string
	// Exclude lists doublestar patterns matched against package-relative paths.
	Exclude     []string
	Transformer scorm.HTMLTransformer
}

func (o *Options) normalize() error {
	if o.Mode == "" {
		o.Mode = ModeCopy
	}
	if _, err := ParseMode(string(o.Mode)); err != nil {
		return err
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if strings.TrimSpace(o.OutputDir) == "" {
		return fmt.Errorf("bundle output directory must be set")
	}
	o.ZipContentPrefix = strings.TrimRight(o.ZipContentPrefix, "/")
	if o.ZipContentPrefix == "" {
		o.ZipContentPrefix = "/zipcontent"
	}
	for _, pattern := range o.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}
	if o.Transformer == nil {
		o.Transformer = scorm.Injector{}
	}
	return nil
}

func (o *Options) excluded(rel string) bool {
	for _, pattern := range o.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}
