package manifest

import (
	"fmt"
	"log/slog"
	"path"
	"strings"

	"imscp/internal/logging"
)

// BaseMode selects how a resource's xml:base prefixes its file paths.
type BaseMode string

const (
	// BaseJoin joins base and href as clean slash paths.
	BaseJoin BaseMode = "join"
	// BaseDot prefixes "./" + base verbatim, as some exporters expect.
	BaseDot BaseMode = "dot"
	// BaseIgnore uses hrefs as declared.
	BaseIgnore BaseMode = "ignore"
)

// ParseBaseMode validates a configured base mode; empty selects BaseJoin.
func ParseBaseMode(value string) (BaseMode, error) {
	switch mode := BaseMode(strings.ToLower(strings.TrimSpace(value))); mode {
	case "":
		return BaseJoin, nil
	case BaseJoin, BaseDot, BaseIgnore:
		return mode, nil
	default:
		return "", fmt.Errorf("unsupported base mode %q (want join, dot or ignore)", value)
	}
}

// Apply prefixes href with base according to the mode.
func (m BaseMode) Apply(base, href string) string {
	switch m {
	case BaseIgnore:
		return href
	case BaseDot:
		return "./" + base + href
	default:
		if base == "" {
			return href
		}
		return path.Join(base, href)
	}
}

// Resolver attaches resource data to the leaves of walked item trees.
type Resolver struct {
	catalog  *Catalog
	baseMode BaseMode
	logger   *slog.Logger
}

// NewResolver constructs a resolver over a read-only catalog.
func NewResolver(catalog *Catalog, mode BaseMode, logger *slog.Logger) *Resolver {
	if mode == "" {
		mode = BaseJoin
	}
	return &Resolver{
		catalog:  catalog,
		baseMode: mode,
		logger:   logging.NewComponentLogger(logger, "resolver"),
	}
}

// Resolve returns a resolved copy of root; the input tree is left untouched.
// Per-item failures are collected and never stop the pass.
func (r *Resolver) Resolve(root *Item, locator string) (*Item, Problems) {
	var problems Problems
	resolved := root.Clone()
	r.resolveItem(resolved, locator, &problems)
	return resolved, problems
}

func (r *Resolver) resolveItem(item *Item, locator string, problems *Problems) {
	if !item.IsLeaf() {
		for i, child := range item.Children {
			r.resolveItem(child, fmt.Sprintf("%s/item[%d]", locator, i), problems)
		}
		return
	}
	if item.IdentifierRef == "" {
		return
	}

	res, ok := r.catalog.Lookup(item.IdentifierRef)
	if !ok {
		*problems = append(*problems, Problem{
			Kind:     ErrUnresolvedReference,
			Severity: SeverityError,
			ItemID:   item.Identifier,
			Path:     locator,
			Detail:   fmt.Sprintf("identifierref %q has no matching resource", item.IdentifierRef),
		})
		return
	}
	mergeResource(item, res)

	if res.Type != ContentTypeWebContent {
		logging.WarnWithContext(r.logger, "leaf resource type not supported; item left unresolved", "unsupported_content_type",
			logging.String(logging.FieldItemID, item.Identifier),
			logging.String("resource", res.Identifier),
			logging.String("type", res.Type),
			logging.String(logging.FieldImpact, "item will not be packaged"),
		)
		*problems = append(*problems, Problem{
			Kind:     ErrUnsupportedContentType,
			Severity: SeverityWarning,
			ItemID:   item.Identifier,
			Path:     locator,
			Detail:   fmt.Sprintf("resource %q has type %q", res.Identifier, res.Type),
		})
		return
	}

	if res.Href != "" {
		item.IndexFile = r.baseMode.Apply(res.Base, res.Href)
	}
	visiting := map[string]bool{res.Identifier: true}
	trail := []string{res.Identifier}
	item.Files = r.closure(res, visiting, trail, item, locator, problems)
}

// Closure returns the transitive file set of res, following dependencies.
func (r *Resolver) Closure(res *Resource) ([]string, Problems) {
	var problems Problems
	item := &Item{Identifier: res.Identifier}
	files := r.closure(res, map[string]bool{res.Identifier: true}, []string{res.Identifier}, item, "resources", &problems)
	return files, problems
}

// closure walks dependency edges depth first. visiting holds the resources on
// the current path only, so a resource reachable through two independent
// paths contributes twice while a revisit on the same path is truncated.
func (r *Resolver) closure(res *Resource, visiting map[string]bool, trail []string, item *Item, locator string, problems *Problems) []string {
	files := make([]string, 0, len(res.Files))
	for _, href := range res.Files {
		if isDirectoryMarker(href) {
			continue
		}
		files = append(files, r.baseMode.Apply(res.Base, href))
	}

	for _, dep := range res.Dependencies {
		if visiting[dep] {
			cycle := strings.Join(append(append([]string(nil), trail...), dep), " -> ")
			if r.logger != nil {
				r.logger.Info("dependency cycle truncated",
					logging.String(logging.FieldItemID, item.Identifier),
					logging.String("cycle", cycle),
					logging.String(logging.FieldEventType, "dependency_cycle"),
				)
			}
			*problems = append(*problems, Problem{
				Kind:     ErrDependencyCycle,
				Severity: SeverityInfo,
				ItemID:   item.Identifier,
				Path:     locator,
				Detail:   cycle,
			})
			continue
		}
		target, ok := r.catalog.Lookup(dep)
		if !ok {
			*problems = append(*problems, Problem{
				Kind:     ErrUnresolvedReference,
				Severity: SeverityError,
				ItemID:   item.Identifier,
				Path:     locator,
				Detail:   fmt.Sprintf("resource %q depends on missing resource %q", res.Identifier, dep),
			})
			continue
		}
		visiting[dep] = true
		files = append(files, r.closure(target, visiting, append(trail, dep), item, locator, problems)...)
		delete(visiting, dep)
	}
	return files
}

// mergeResource copies resource fields onto a leaf. Metadata categories the
// item declares itself win; the resource fills in the ones it lacks.
func mergeResource(item *Item, res *Resource) {
	item.Type = res.Type
	item.Href = res.Href
	item.ScormType = res.ScormType
	item.Base = res.Base
	for key, value := range res.Attributes {
		item.setAttribute(key, value)
	}
	for category, value := range res.Metadata {
		if _, ok := item.Metadata[category]; ok {
			continue
		}
		if item.Metadata == nil {
			item.Metadata = Metadata{}
		}
		item.Metadata[category] = value
	}
}

func isDirectoryMarker(href string) bool {
	href = strings.TrimSpace(href)
	return href == "" || strings.HasSuffix(href, "/")
}
