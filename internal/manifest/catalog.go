package manifest

import (
	"fmt"
	"path"
	"strings"

	"github.com/beevik/etree"
)

// Resource is one <resource> definition.
type Resource struct {
	Identifier   string
	Type         string
	Href         string
	ScormType    string
	Base         string
	Files        []string
	Dependencies []string
	// Metadata holds the LOM categories of the resource's own <metadata>.
	Metadata Metadata
	// Attributes holds the remaining attributes keyed by local name.
	Attributes map[string]string
}

// Catalog indexes resources by identifier. It is read-only once built and
// safe for concurrent readers.
type Catalog struct {
	byID  map[string]*Resource
	order []string
}

// Lookup returns the resource with the given identifier.
func (c *Catalog) Lookup(id string) (*Resource, bool) {
	if c == nil {
		return nil, false
	}
	res, ok := c.byID[id]
	return res, ok
}

// Len returns the number of indexed resources.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}

// Identifiers returns resource identifiers in document order, which is
// also the order duplicates are resolved in.
func (c *Catalog) Identifiers() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.order...)
}

// BuildCatalog indexes the <resource> children of a <resources> element. A
// base declared on <resources> is joined as a directory in front of every
// relative resource base.
// Duplicate identifiers keep the first definition and are reported.
func BuildCatalog(resources *etree.Element) (*Catalog, Problems) {
	catalog := &Catalog{byID: make(map[string]*Resource)}
	if resources == nil {
		return catalog, nil
	}
	var problems Problems
	containerBase := xmlBase(resources)

	for i, elem := range childrenNamed(resources, "resource") {
		res := parseResource(elem, containerBase)
		if res.Identifier == "" {
			continue
		}
		if _, exists := catalog.byID[res.Identifier]; exists {
			problems = append(problems, Problem{
				Kind:     ErrDuplicateResource,
				Severity: SeverityWarning,
				ItemID:   res.Identifier,
				Path:     fmt.Sprintf("resources/resource[%d]", i),
				Detail:   "identifier already defined; keeping the first definition",
			})
			continue
		}
		catalog.byID[res.Identifier] = res
		catalog.order = append(catalog.order, res.Identifier)
	}
	return catalog, problems
}

func parseResource(elem *etree.Element, containerBase string) *Resource {
	res := &Resource{}
	for _, attr := range elem.Attr {
		if isNamespaceDecl(attr) {
			continue
		}
		switch attr.Key {
		case "identifier":
			res.Identifier = attr.Value
		case "type":
			res.Type = attr.Value
		case "href":
			res.Href = attr.Value
		case "scormtype", "scormType":
			res.ScormType = attr.Value
		case "base":
			res.Base = attr.Value
		default:
			if res.Attributes == nil {
				res.Attributes = make(map[string]string)
			}
			res.Attributes[attr.Key] = attr.Value
		}
	}
	if containerBase != "" && !isAbsoluteRef(res.Base) {
		res.Base = joinBase(containerBase, res.Base)
	}
	if meta := firstChild(elem, "metadata"); meta != nil {
		res.Metadata = ExtractMetadata(meta)
	}
	for _, file := range childrenNamed(elem, "file") {
		res.Files = append(res.Files, attrValue(file, "href"))
	}
	for _, dep := range childrenNamed(elem, "dependency") {
		if ref := strings.TrimSpace(attrValue(dep, "identifierref")); ref != "" {
			res.Dependencies = append(res.Dependencies, ref)
		}
	}
	return res
}

// joinBase treats both bases as directories. The result keeps a trailing
// slash so prefix-style base modes still see a directory.
func joinBase(container, base string) string {
	joined := path.Join(container, base)
	if joined == "." {
		return ""
	}
	if !strings.HasSuffix(joined, "/") {
		joined += "/"
	}
	return joined
}

func isAbsoluteRef(ref string) bool {
	return strings.HasPrefix(ref, "/") || strings.Contains(ref, "://")
}
