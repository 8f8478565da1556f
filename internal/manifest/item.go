package manifest

import (
	"maps"
	"strconv"
)

// ContentTypeWebContent is the resource type that can be bundled.
const ContentTypeWebContent = "webcontent"

// ScormTypeSCO marks a sharable content object needing the runtime bridge.
const ScormTypeSCO = "sco"

// Item is one node of an organization tree: the <organization> root or an
// <item>. Leaves carry resolved resource fields after resolution; internal
// nodes carry Children. A node is a leaf exactly when Children is empty.
type Item struct {
	Identifier    string `json:"identifier"`
	IdentifierRef string `json:"identifierref,omitempty"`
	Title         string `json:"title,omitempty"`

	Type      string `json:"type,omitempty"`
	Href      string `json:"href,omitempty"`
	ScormType string `json:"scormtype,omitempty"`
	Base      string `json:"base,omitempty"`

	IndexFile string   `json:"index_file,omitempty"`
	Files     []string `json:"files,omitempty"`

	Metadata Metadata `json:"metadata,omitempty"`
	// Attributes holds attributes without a dedicated field, keyed by local name.
	Attributes map[string]string `json:"attributes,omitempty"`
	Children   []*Item           `json:"children,omitempty"`
}

// IsLeaf reports whether the item has no children.
func (it *Item) IsLeaf() bool { return len(it.Children) == 0 }

// IsWebContent reports whether the resolved resource type is webcontent.
func (it *Item) IsWebContent() bool { return it.Type == ContentTypeWebContent }

// NeedsScorm reports whether the resolved resource is a SCORM SCO.
func (it *Item) NeedsScorm() bool { return it.ScormType == ScormTypeSCO }

// Leaves returns leaf items in document order.
func (it *Item) Leaves() []*Item {
	var out []*Item
	it.Walk(func(_ string, node *Item) {
		if node.IsLeaf() {
			out = append(out, node)
		}
	})
	return out
}

// Walk visits the tree depth first, passing each node's positional path.
func (it *Item) Walk(fn func(path string, node *Item)) {
	it.walk("", fn)
}

func (it *Item) walk(path string, fn func(string, *Item)) {
	fn(path, it)
	for i, child := range it.Children {
		child.walk(childPath(path, i), fn)
	}
}

// Count returns the number of nodes below it, excluding it.
func (it *Item) Count() int {
	n := 0
	for _, child := range it.Children {
		n += 1 + child.Count()
	}
	return n
}

// Clone deep copies the subtree.
func (it *Item) Clone() *Item {
	if it == nil {
		return nil
	}
	clone := *it
	if it.Files != nil {
		clone.Files = append([]string(nil), it.Files...)
	}
	if it.Metadata != nil {
		clone.Metadata = maps.Clone(it.Metadata)
	}
	if it.Attributes != nil {
		clone.Attributes = maps.Clone(it.Attributes)
	}
	if it.Children != nil {
		clone.Children = make([]*Item, len(it.Children))
		for i, child := range it.Children {
			clone.Children[i] = child.Clone()
		}
	}
	return &clone
}

// setAttribute routes a namespace-stripped attribute to its field or the
// overflow map.
func (it *Item) setAttribute(name, value string) {
	switch name {
	case "identifier":
		it.Identifier = value
	case "identifierref":
		it.IdentifierRef = value
	case "type":
		it.Type = value
	case "href":
		it.Href = value
	case "scormtype":
		it.ScormType = value
	case "base":
		it.Base = value
	default:
		if it.Attributes == nil {
			it.Attributes = make(map[string]string)
		}
		it.Attributes[name] = value
	}
}

func childPath(parent string, index int) string {
	if parent == "" {
		return strconv.Itoa(index)
	}
	return parent + "/" + strconv.Itoa(index)
}
