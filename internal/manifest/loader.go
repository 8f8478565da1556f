package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/beevik/etree"
	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/htmlindex"

	"imscp/internal/logging"
)

// DefaultFilename is the manifest file name at the package root.
const DefaultFilename = "imsmanifest.xml"

// Document is a parsed manifest together with the namespace declarations
// found on its root element.
type Document struct {
	Path       string
	Root       *etree.Element
	Namespaces map[string]string
	// Recovered reports that the raw bytes had to be transcoded before parsing.
	Recovered       bool
	DetectedCharset string
}

var xmlDeclEncoding = regexp.MustCompile(`^(\s*<\?xml[^>]*?encoding\s*=\s*["'])([^"']+)(["'])`)

// LoadDocument reads and parses the manifest in dir. When recoverEncoding is
// set, a failed strict parse is retried after detecting the real byte encoding.
func LoadDocument(dir, filename string, recoverEncoding bool, logger *slog.Logger) (*Document, error) {
	if strings.TrimSpace(filename) == "" {
		filename = DefaultFilename
	}
	path := filepath.Join(dir, filename)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, path)
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseDocument(path, data, recoverEncoding, logger)
}

// ParseDocument parses raw manifest bytes. path is informational.
func ParseDocument(path string, data []byte, recoverEncoding bool, logger *slog.Logger) (*Document, error) {
	root, parseErr := parseTree(data)
	if parseErr == nil {
		return newDocument(path, root), nil
	}
	if !recoverEncoding {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedXML, path, parseErr)
	}

	recoded, charset, err := recodeToDeclared(data)
	if err != nil {
		logging.WarnWithContext(logger, "manifest encoding recovery failed", "manifest_encoding_recovery_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "re-export the package with a correct xml encoding declaration"),
			logging.String(logging.FieldImpact, "package cannot be parsed"),
		)
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedXML, path, parseErr)
	}
	root, err = parseTree(recoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedXML, path, parseErr)
	}
	if logger != nil {
		logger.Info("manifest parsed after encoding recovery",
			logging.String("path", path),
			logging.String("detected_charset", charset),
			logging.String(logging.FieldEventType, "manifest_encoding_recovered"),
		)
	}
	doc := newDocument(path, root)
	doc.Recovered = true
	doc.DetectedCharset = charset
	return doc, nil
}

func newDocument(path string, root *etree.Element) *Document {
	return &Document{
		Path:       path,
		Root:       root,
		Namespaces: namespaceMap(root),
	}
}

// recodeToDeclared detects the actual byte encoding, decodes with it and
// re-encodes to the encoding named in the XML declaration. Undeclared or
// unsupported declarations are treated as UTF-8, in which case the
// declaration is rewritten so the parser does not re-apply a decoder.
func recodeToDeclared(data []byte) ([]byte, string, error) {
	result, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil {
		return nil, "", fmt.Errorf("detect encoding: %w", err)
	}
	detected, err := htmlindex.Get(result.Charset)
	if err != nil {
		return nil, result.Charset, fmt.Errorf("detected charset %q unsupported: %w", result.Charset, err)
	}
	decoded, err := detected.NewDecoder().Bytes(data)
	if err != nil {
		return nil, result.Charset, fmt.Errorf("decode as %s: %w", result.Charset, err)
	}

	declared := declaredEncoding(decoded)
	if declared == "" || isUTF8Label(declared) {
		return setDeclaredEncoding(decoded, "UTF-8"), result.Charset, nil
	}
	target, err := htmlindex.Get(declared)
	if err != nil {
		return setDeclaredEncoding(decoded, "UTF-8"), result.Charset, nil
	}
	encoded, err := target.NewEncoder().Bytes(decoded)
	if err != nil {
		return nil, result.Charset, fmt.Errorf("encode as declared %s: %w", declared, err)
	}
	return encoded, result.Charset, nil
}

func declaredEncoding(data []byte) string {
	match := xmlDeclEncoding.FindSubmatch(data)
	if match == nil {
		return ""
	}
	return strings.TrimSpace(string(match[2]))
}

func setDeclaredEncoding(data []byte, encoding string) []byte {
	if !xmlDeclEncoding.Match(data) {
		return data
	}
	var buf bytes.Buffer
	loc := xmlDeclEncoding.FindSubmatchIndex(data)
	buf.Write(data[:loc[4]])
	buf.WriteString(encoding)
	buf.Write(data[loc[5]:])
	return buf.Bytes()
}

func isUTF8Label(label string) bool {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "utf-8", "utf8":
		return true
	}
	return false
}
