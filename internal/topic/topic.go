package topic

import (
	"strconv"

	"github.com/google/uuid"

	"imscp/internal/bundle"
	"imscp/internal/manifest"
)

// Kind distinguishes containers from playable leaves.
type Kind string

const (
	KindTopic Kind = "topic"
	KindHTML5 Kind = "html5"
)

// Preset labels a file attached to an html5 node.
type Preset string

const (
	// PresetHTML5Zip is the bundle the renderer opens.
	PresetHTML5Zip Preset = "html5_zip"
	// PresetHTML5DependencyZip is the original package a redirect bundle loads from.
	PresetHTML5DependencyZip Preset = "html5_dependency_zip"
)

// File is a zip attached to a node.
type File struct {
	Path   string `json:"path"`
	Preset Preset `json:"preset"`
}

// Node is one entry of the curation tree.
type Node struct {
	ID       uuid.UUID      `json:"id"`
	Kind     Kind           `json:"kind"`
	// Key is the positional key shared with bundle.Report entries.
	Key      string         `json:"key"`
	SourceID string         `json:"source_id"`
	Title    string         `json:"title"`
	Files    []File         `json:"files,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
	Children []*Node        `json:"children,omitempty"`
}

// Walk visits n and its descendants depth first.
func (n *Node) Walk(fn func(depth int, node *Node)) {
	n.walk(0, fn)
}

func (n *Node) walk(depth int, fn func(int, *Node)) {
	fn(depth, n)
	for _, child := range n.Children {
		child.walk(depth+1, fn)
	}
}

// Count returns how many nodes of kind exist in the subtree rooted at n.
func (n *Node) Count(kind Kind) int {
	total := 0
	n.Walk(func(_ int, node *Node) {
		if node.Kind == kind {
			total++
		}
	})
	return total
}

// Options configures tree conversion.
type Options struct {
	// ParentID prefixes every source id.
	ParentID string
	// NodeOptions is attached to each html5 node for the renderer.
	NodeOptions map[string]any
}

var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("imscp:topic"))

// NodeID derives a stable id for a node from its package and position.
func NodeID(pkg string, org int, path string) uuid.UUID {
	return uuid.NewSHA1(namespace, []byte(pkg+"/"+bundle.Key(org, path)))
}

// Build converts each organization of result into a topic tree. Leaves
// without a bundle in report are omitted.
func Build(result *manifest.Result, report *bundle.Report, opts Options) []*Node {
	trees := make([]*Node, 0, len(result.Organizations))
	for org, root := range result.Organizations {
		id := root.Identifier
		if id == "" {
			id = "organization" + strconv.Itoa(org+1)
		}
		c := converter{pkg: result.Identifier, org: org, report: report, opts: opts}
		if node := c.convert(root, "", sourceID(opts.ParentID, id)); node != nil {
			trees = append(trees, node)
		}
	}
	return trees
}

type converter struct {
	pkg    string
	org    int
	report *bundle.Report
	opts   Options
}

func sourceID(parent, id string) string {
	if parent == "" {
		return id
	}
	return parent + "-" + id
}

func (c converter) convert(item *manifest.Item, path, source string) *Node {
	if item.IsLeaf() && path != "" {
		return c.leaf(item, path, source)
	}
	node := &Node{
		ID:       NodeID(c.pkg, c.org, path),
		Kind:     KindTopic,
		Key:      bundle.Key(c.org, path),
		SourceID: source,
		Title:    item.Title,
	}
	for i, child := range item.Children {
		id := child.Identifier
		if id == "" {
			id = "item" + strconv.Itoa(i+1)
		}
		childPath := strconv.Itoa(i)
		if path != "" {
			childPath = path + "/" + childPath
		}
		if converted := c.convert(child, childPath, sourceID(source, id)); converted != nil {
			node.Children = append(node.Children, converted)
		}
	}
	return node
}

func (c converter) leaf(item *manifest.Item, path, source string) *Node {
	b, ok := c.report.Lookup(c.org, path)
	if !ok {
		return nil
	}
	node := &Node{
		ID:       NodeID(c.pkg, c.org, path),
		Kind:     KindHTML5,
		Key:      bundle.Key(c.org, path),
		SourceID: source,
		Title:    item.Title,
		Files:    []File{{Path: b.ZipPath, Preset: PresetHTML5Zip}},
	}
	if b.DependencyZip != "" {
		node.Files = append(node.Files, File{Path: b.DependencyZip, Preset: PresetHTML5DependencyZip})
	}
	if len(c.opts.NodeOptions) > 0 {
		node.Options = c.opts.NodeOptions
	}
	return node
}
