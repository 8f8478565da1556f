package manifest

import (
	"encoding/json"
	"testing"

	"github.com/beevik/etree"
)

func mustParse(t *testing.T, raw string) *etree.Element {
	t.Helper()
	root, err := parseTree([]byte(raw))
	if err != nil {
		t.Fatalf("parseTree returned error: %v", err)
	}
	return root
}

func TestExtractMetadataIgnoresNamespacePrefixes(t *testing.T) {
	prefixed := mustParse(t, `<metadata xmlns:lom="http://ltsc.ieee.org/xsd/LOM">
  <lom:lom>
    <lom:general>
      <lom:title><lom:langstring xml:lang="en">Intro</lom:langstring></lom:title>
      <lom:keyword>maps</lom:keyword>
      <lom:keyword>gis</lom:keyword>
    </lom:general>
    <lom:rights><lom:cost>no</lom:cost></lom:rights>
  </lom:lom>
</metadata>`)
	plain := mustParse(t, `<metadata>
  <lom>
    <general>
      <title><langstring lang="en">Intro</langstring></title>
      <keyword>maps</keyword>
      <keyword>gis</keyword>
    </general>
    <rights><cost>no</cost></rights>
  </lom>
</metadata>`)

	a, err := json.Marshal(ExtractMetadata(prefixed))
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(ExtractMetadata(plain))
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Fatalf("expected identical metadata:\n%s\n%s", a, b)
	}
	want := `{"general":{"title":"Intro","keyword":["maps","gis"]},"rights":{"cost":"no"}}`
	if string(a) != want {
		t.Fatalf("unexpected metadata json:\n got %s\nwant %s", a, want)
	}
}

func TestExtractMetadataFlattensLangstring(t *testing.T) {
	elem := mustParse(t, `<metadata><lom><general>
  <title><langstring lang="en">Hello</langstring> World</title>
  <description>Before <langstring>middle</langstring></description>
</general></lom></metadata>`)

	meta := ExtractMetadata(elem)
	general, ok := meta.Category(CategoryGeneral)
	if !ok {
		t.Fatal("expected general category")
	}
	title, _ := general.Get("title")
	if title.Kind() != KindText || title.Text() != "Hello World" {
		t.Fatalf("expected flattened title %q, got %#v", "Hello World", title)
	}
	desc, _ := general.Get("description")
	if desc.Text() != "Before middle" {
		t.Fatalf("expected %q, got %q", "Before middle", desc.Text())
	}
}

func TestExtractMetadataDoesNotMutateInput(t *testing.T) {
	elem := mustParse(t, `<metadata xmlns:m="urn:x"><m:lom><m:general><m:title><m:langstring>A</m:langstring></m:title></m:general></m:lom></metadata>`)
	_ = ExtractMetadata(elem)

	title := elem.FindElement("m:lom/m:general/m:title")
	if title == nil {
		t.Fatal("input lost its prefixed elements")
	}
	kids := title.ChildElements()
	if len(kids) != 1 || kids[0].Space != "m" || kids[0].Tag != langstringTag {
		t.Fatalf("input langstring was modified: %+v", kids)
	}
	if namespaceMap(elem)["m"] != "urn:x" {
		t.Fatal("input namespace declaration was removed")
	}
}

func TestExtractMetadataKeepsCommentsOutOfText(t *testing.T) {
	elem := mustParse(t, `<metadata><lom><general><title>Hel<!-- note -->lo</title></general></lom></metadata>`)
	general, _ := ExtractMetadata(elem).Category(CategoryGeneral)
	title, ok := general.Path("title")
	if !ok || title.Text() != "Hello" {
		t.Fatalf("expected comment to be skipped, got %#v", title)
	}
}

func TestExtractMetadataSkipsEmptyAndUnknownCategories(t *testing.T) {
	elem := mustParse(t, `<metadata><schema>IMS</schema><lom>
  <general/>
  <technical><format>text/html</format></technical>
  <educational><difficulty>easy</difficulty></educational>
</lom></metadata>`)
	meta := ExtractMetadata(elem)
	if _, ok := meta[CategoryGeneral]; ok {
		t.Fatal("expected empty general to be skipped")
	}
	if _, ok := meta["technical"]; ok {
		t.Fatal("expected unknown category to be skipped")
	}
	if len(meta) != 1 {
		t.Fatalf("expected only educational, got %v", meta)
	}

	if got := ExtractMetadata(nil); len(got) != 0 {
		t.Fatalf("expected empty mapping for nil element, got %v", got)
	}
}

func TestElementValueConventions(t *testing.T) {
	elem := mustParse(t, `<lifecycle>
  <version source="LOM">1.0</version>
  <status/>
  <contribute><role>author</role>note</contribute>
</lifecycle>`)

	value := elementValue(elem)
	version, _ := value.Get("version")
	if v, _ := version.Get("@source"); v.Text() != "LOM" {
		t.Fatalf("expected @source attribute, got %#v", version)
	}
	if v, _ := version.Get("#text"); v.Text() != "1.0" {
		t.Fatalf("expected #text for mixed element, got %#v", version)
	}
	status, _ := value.Get("status")
	if status.Kind() != KindNull {
		t.Fatalf("expected null for empty element, got %#v", status)
	}
	text, ok := value.Path("contribute", "#text")
	if !ok || text.Text() != "note" {
		t.Fatalf("expected tail text collected as #text, got %#v", text)
	}
}

func TestValueEqualRespectsOrder(t *testing.T) {
	a := Object(Field{Key: "x", Value: Text("1")}, Field{Key: "y", Value: List(Text("2"), Null())})
	b := Object(Field{Key: "x", Value: Text("1")}, Field{Key: "y", Value: List(Text("2"), Null())})
	c := Object(Field{Key: "y", Value: List(Text("2"), Null())}, Field{Key: "x", Value: Text("1")})
	if !a.Equal(b) {
		t.Fatal("expected equal values")
	}
	if a.Equal(c) {
		t.Fatal("expected field order to matter")
	}
	encoded, err := json.Marshal(c)
	if err != nil {
		t.Fatal(err)
	}
	if string(encoded) != `{"y":["2",null],"x":"1"}` {
		t.Fatalf("unexpected encoding %s", encoded)
	}
}
