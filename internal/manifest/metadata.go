package manifest

import (
	"strings"

	"github.com/beevik/etree"
)

// LOM categories recognised under a <lom> container.
const (
	CategoryGeneral     = "general"
	CategoryRights      = "rights"
	CategoryEducational = "educational"
	CategoryLifecycle   = "lifecycle"
)

var lomCategories = []string{CategoryGeneral, CategoryRights, CategoryEducational, CategoryLifecycle}

const langstringTag = "langstring"

// Metadata maps a LOM category name to its converted subtree.
type Metadata map[string]Value

// Category returns the subtree for name, if extracted.
func (m Metadata) Category(name string) (Value, bool) {
	v, ok := m[name]
	return v, ok
}

// ExtractMetadata converts the LOM categories found in a <metadata> element.
// The input is never modified. Namespace prefixes are dropped and langstring
// wrappers are replaced by their text so that manifests which differ only in
// those respects yield identical results. Unknown structure yields an empty
// mapping.
func ExtractMetadata(elem *etree.Element) Metadata {
	out := Metadata{}
	if elem == nil {
		return out
	}
	work := elem.Copy()
	stripNamespaces(work)
	flattenLangstrings(work)

	for _, category := range lomCategories {
		sub := work.FindElement("lom/" + category)
		if sub == nil || len(sub.ChildElements()) == 0 {
			continue
		}
		out[category] = elementValue(sub)
	}
	return out
}

func stripNamespaces(e *etree.Element) {
	e.Space = ""
	if len(e.Attr) > 0 {
		kept := e.Attr[:0]
		for _, attr := range e.Attr {
			if isNamespaceDecl(attr) {
				continue
			}
			attr.Space = ""
			kept = append(kept, attr)
		}
		e.Attr = kept
	}
	for _, c := range e.ChildElements() {
		stripNamespaces(c)
	}
}

// flattenLangstrings replaces every descendant langstring element with a
// text token holding its full text, so the text joins the character data
// around it.
func flattenLangstrings(e *etree.Element) {
	for i := 0; i < len(e.Child); i++ {
		c, ok := e.Child[i].(*etree.Element)
		if !ok {
			continue
		}
		if c.Tag != langstringTag {
			flattenLangstrings(c)
			continue
		}
		text := innerText(c)
		e.RemoveChildAt(i)
		e.InsertChildAt(i, etree.NewText(text))
	}
}

// elementValue converts an element using xmltodict conventions: attributes as
// "@name", children by local name with repeats collapsed into lists, and
// character data as a bare string or "#text" when mixed with other keys.
func elementValue(e *etree.Element) Value {
	var b objectBuilder
	for _, attr := range e.Attr {
		if isNamespaceDecl(attr) {
			continue
		}
		b.add("@"+attr.Key, Text(attr.Value))
	}
	for _, c := range e.ChildElements() {
		b.add(c.Tag, elementValue(c))
	}
	data := strings.TrimSpace(ownText(e))

	if b.empty() {
		if data == "" {
			return Null()
		}
		return Text(data)
	}
	if data != "" {
		b.add("#text", Text(data))
	}
	return b.value()
}
