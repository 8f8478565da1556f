package scorm

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	// AssetDir is the bundle-relative directory holding the SCORM scripts.
	AssetDir = "le-scorm"
	// APIScript is the runtime file name inside AssetDir.
	APIScript = "scormAPI.js"
	// HandlersScript is the persistence handler file name inside AssetDir.
	HandlersScript = "scorm_handlers.js"
)

// HTMLTransformer rewrites an HTML document.
type HTMLTransformer interface {
	Transform(doc []byte) ([]byte, error)
}

// Injector adds the SCORM runtime and handler scripts to a page's head.
type Injector struct{}

// Transform parses doc and inserts the two script tags. Hot Potatoes quizzes
// define their own SCORM hooks in head, so the scripts go after them; every
// other page gets them first. Documents that already reference the runtime
// are returned unchanged.
func (Injector) Transform(doc []byte) ([]byte, error) {
	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	head := findElement(root, atom.Head)
	if head == nil {
		return nil, fmt.Errorf("parse html: document has no head")
	}
	if referencesRuntime(head) {
		return doc, nil
	}

	api := scriptNode(AssetDir + "/" + APIScript)
	handlers := scriptNode(AssetDir + "/" + HandlersScript)
	if IsHotPotatoes(root) {
		head.AppendChild(api)
		head.AppendChild(handlers)
	} else {
		first := head.FirstChild
		head.InsertBefore(api, first)
		head.InsertBefore(handlers, first)
	}

	var out bytes.Buffer
	if err := html.Render(&out, root); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return out.Bytes(), nil
}

// IsHotPotatoes reports whether the document's author meta tag names Hot Potatoes.
func IsHotPotatoes(root *html.Node) bool {
	var found bool
	walk(root, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.DataAtom != atom.Meta {
			return true
		}
		if strings.EqualFold(attr(n, "name"), "author") {
			found = strings.Contains(attr(n, "content"), "Hot Potatoes")
			return false
		}
		return true
	})
	return found
}

func referencesRuntime(head *html.Node) bool {
	for c := head.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Script && attr(c, "src") == AssetDir+"/"+APIScript {
			return true
		}
	}
	return false
}

func scriptNode(src string) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Script,
		Data:     "script",
		Attr:     []html.Attribute{{Key: "src", Val: src}},
	}
}

func findElement(root *html.Node, a atom.Atom) *html.Node {
	var result *html.Node
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == a {
			result = n
			return false
		}
		return true
	})
	return result
}

// walk visits nodes depth first until fn returns false.
func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}
