package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/text/encoding/htmlindex"
)

const (
	prefixXML   = "xml"
	prefixXMLNS = "xmlns"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// parseTree reads raw XML into an etree document and returns its root
// element. Input must be well formed and carry exactly one root element.
func parseTree(data []byte) (*etree.Element, error) {
	doc := etree.NewDocument()
	doc.ReadSettings = etree.ReadSettings{
		CharsetReader: charsetReader,
		ValidateInput: true,
	}
	if err := doc.ReadFromBytes(bytes.TrimPrefix(data, utf8BOM)); err != nil {
		return nil, err
	}
	roots := doc.ChildElements()
	switch len(roots) {
	case 0:
		return nil, errors.New("document has no root element")
	case 1:
		return roots[0], nil
	default:
		return nil, fmt.Errorf("multiple root elements")
	}
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", label, err)
	}
	return enc.NewDecoder().Reader(input), nil
}

func isNamespaceDecl(attr etree.Attr) bool {
	return attr.Space == prefixXMLNS || (attr.Space == "" && attr.Key == prefixXMLNS)
}

// attrValue returns the attribute with the given local name in any
// namespace. Namespace declarations never match.
func attrValue(e *etree.Element, local string) string {
	if e == nil {
		return ""
	}
	for _, attr := range e.Attr {
		if !isNamespaceDecl(attr) && attr.Key == local {
			return attr.Value
		}
	}
	return ""
}

// xmlBase returns the xml:base declared on e.
func xmlBase(e *etree.Element) string {
	for _, attr := range e.Attr {
		if attr.Space == prefixXML && attr.Key == "base" {
			return attr.Value
		}
	}
	return ""
}

// firstChild returns the first child element with the given local name.
func firstChild(e *etree.Element, local string) *etree.Element {
	if e == nil {
		return nil
	}
	for _, c := range e.ChildElements() {
		if c.Tag == local {
			return c
		}
	}
	return nil
}

// childrenNamed returns every child element with the given local name in
// document order.
func childrenNamed(e *etree.Element, local string) []*etree.Element {
	if e == nil {
		return nil
	}
	var out []*etree.Element
	for _, c := range e.ChildElements() {
		if c.Tag == local {
			out = append(out, c)
		}
	}
	return out
}

// innerText concatenates every character data token below e in document
// order. Comments and processing instructions are skipped; e's own tail is
// not included.
func innerText(e *etree.Element) string {
	var b strings.Builder
	writeText(&b, e)
	return b.String()
}

func writeText(b *strings.Builder, e *etree.Element) {
	for _, tok := range e.Child {
		switch t := tok.(type) {
		case *etree.CharData:
			b.WriteString(t.Data)
		case *etree.Element:
			writeText(b, t)
		}
	}
}

// ownText concatenates the character data directly inside e: its leading
// text plus the tails of its child elements.
func ownText(e *etree.Element) string {
	var b strings.Builder
	for _, tok := range e.Child {
		if cd, ok := tok.(*etree.CharData); ok {
			b.WriteString(cd.Data)
		}
	}
	return b.String()
}

// namespaceMap collects the prefix to URI declarations on an element. The
// default namespace is reported under the empty prefix.
func namespaceMap(e *etree.Element) map[string]string {
	out := make(map[string]string)
	if e == nil {
		return out
	}
	for _, attr := range e.Attr {
		switch {
		case attr.Space == prefixXMLNS:
			out[attr.Key] = attr.Value
		case attr.Space == "" && attr.Key == prefixXMLNS:
			out[""] = attr.Value
		}
	}
	return out
}
