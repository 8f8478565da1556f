package manifest

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// WalkItems converts an <organization> or <item> element into an Item tree.
// locator names the element in problem reports, e.g. "organization[0]".
// Empty titles are reported per item and never stop the walk.
func WalkItems(elem *etree.Element, locator string) (*Item, Problems) {
	var problems Problems
	item := walkItem(elem, locator, &problems)
	return item, problems
}

func walkItem(elem *etree.Element, locator string, problems *Problems) *Item {
	item := &Item{}
	for _, attr := range elem.Attr {
		if isNamespaceDecl(attr) {
			continue
		}
		item.setAttribute(attr.Key, attr.Value)
	}

	if titleElem := firstChild(elem, "title"); titleElem != nil {
		title := titleText(titleElem)
		if title == "" {
			*problems = append(*problems, Problem{
				Kind:     ErrEmptyTitle,
				Severity: SeverityError,
				ItemID:   item.Identifier,
				Path:     locator,
				Detail:   "title element has no text content",
			})
		} else {
			item.Title = title
		}
	}

	if metaElem := firstChild(elem, "metadata"); metaElem != nil {
		item.Metadata = ExtractMetadata(metaElem)
	}

	for i, sub := range childrenNamed(elem, "item") {
		childLocator := fmt.Sprintf("%s/item[%d]", locator, i)
		item.Children = append(item.Children, walkItem(sub, childLocator, problems))
	}
	return item
}

// titleText joins every text run inside a title, including text that follows
// inline markup such as <br/>, then collapses whitespace runs to one space.
func titleText(elem *etree.Element) string {
	return strings.Join(strings.Fields(innerText(elem)), " ")
}
