package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Error kinds reported by the parser. Package level failures are returned
// directly; per-item kinds arrive wrapped in a Problem.
var (
	ErrManifestNotFound       = errors.New("manifest not found")
	ErrMalformedXML           = errors.New("malformed manifest xml")
	ErrEmptyTitle             = errors.New("empty title")
	ErrUnresolvedReference    = errors.New("unresolved resource reference")
	ErrUnsupportedContentType = errors.New("unsupported content type")
	ErrDependencyCycle        = errors.New("dependency cycle detected")
	ErrDuplicateResource      = errors.New("duplicate resource identifier")
)

// Severity ranks a problem for callers deciding what to abort on.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Problem is a structured per-item issue found while walking or resolving.
type Problem struct {
	Kind     error    `json:"-"`
	Severity Severity `json:"severity"`
	ItemID   string   `json:"item_id,omitempty"`
	Path     string   `json:"path"`
	Detail   string   `json:"detail"`
}

func (p Problem) Error() string {
	var b strings.Builder
	b.WriteString(p.Path)
	if p.ItemID != "" {
		b.WriteString(" (")
		b.WriteString(p.ItemID)
		b.WriteByte(')')
	}
	b.WriteString(": ")
	if p.Kind != nil {
		b.WriteString(p.Kind.Error())
	}
	if p.Detail != "" {
		b.WriteString(": ")
		b.WriteString(p.Detail)
	}
	return b.String()
}

func (p Problem) Unwrap() error { return p.Kind }

// KindName is the stable label used in logs and JSON output.
func (p Problem) KindName() string {
	switch {
	case errors.Is(p.Kind, ErrEmptyTitle):
		return "empty_title"
	case errors.Is(p.Kind, ErrUnresolvedReference):
		return "unresolved_resource_reference"
	case errors.Is(p.Kind, ErrUnsupportedContentType):
		return "unsupported_content_type"
	case errors.Is(p.Kind, ErrDependencyCycle):
		return "dependency_cycle"
	case errors.Is(p.Kind, ErrDuplicateResource):
		return "duplicate_resource"
	default:
		return "unknown"
	}
}

type problemJSON struct {
	Kind     string   `json:"kind"`
	Severity Severity `json:"severity"`
	ItemID   string   `json:"item_id,omitempty"`
	Path     string   `json:"path"`
	Detail   string   `json:"detail,omitempty"`
}

// Problems is an ordered list of per-item issues.
type Problems []Problem

// Fatal returns only error-severity problems.
func (ps Problems) Fatal() Problems {
	var out Problems
	for _, p := range ps {
		if p.Severity == SeverityError {
			out = append(out, p)
		}
	}
	return out
}

// OfKind filters problems whose kind matches target.
func (ps Problems) OfKind(target error) Problems {
	var out Problems
	for _, p := range ps {
		if errors.Is(p.Kind, target) {
			out = append(out, p)
		}
	}
	return out
}

// Err joins error-severity problems into a single error, or nil.
func (ps Problems) Err() error {
	fatal := ps.Fatal()
	if len(fatal) == 0 {
		return nil
	}
	errs := make([]error, len(fatal))
	for i, p := range fatal {
		errs[i] = p
	}
	return fmt.Errorf("%d manifest problem(s): %w", len(fatal), errors.Join(errs...))
}

// MarshalJSON reports each problem with its kind label.
func (ps Problems) MarshalJSON() ([]byte, error) {
	return json.Marshal(ps.view())
}

func (ps Problems) view() []problemJSON {
	out := make([]problemJSON, len(ps))
	for i, p := range ps {
		out[i] = problemJSON{
			Kind:     p.KindName(),
			Severity: p.Severity,
			ItemID:   p.ItemID,
			Path:     p.Path,
			Detail:   p.Detail,
		}
	}
	return out
}
