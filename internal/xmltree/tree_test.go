package xmltree

import (
	"errors"
	"strings"
	"testing"

	"github.com/starford/xflkit/internal/apperr"
)

const sample = `<?xml version="1.0" encoding="UTF-8"?>
<DOMDocument xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns="http://ns.adobe.com/xfl/2008/" frameRate="24">
  <timelines>
    <DOMTimeline name="Scene 1"/>
  </timelines>
  <characters> a &amp; b</characters>
</DOMDocument>
`

func TestParse_Structure(t *testing.T) {
	tree, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	root := tree.Root()
	if tree.Name(root) != "DOMDocument" {
		t.Fatalf("root = %q", tree.Name(root))
	}
	if v, _ := tree.Attr(root, "xmlns:xsi"); v != "http://www.w3.org/2001/XMLSchema-instance" {
		t.Errorf("xmlns:xsi = %q", v)
	}
	tl := tree.Child(tree.Child(root, "timelines"), "DOMTimeline")
	if tl == NoNode || tree.AttrOr(tl, "name", "") != "Scene 1" {
		t.Errorf("timeline lookup failed")
	}
	if got := tree.Text(tree.Child(root, "characters")); got != " a & b" {
		t.Errorf("text = %q", got)
	}
	if tree.Parent(tl) != tree.Child(root, "timelines") {
		t.Error("parent handle mismatch")
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	tree, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	data, err := tree.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	again, err := Parse(strings.NewReader(string(data)))
	if err != nil {
		t.Fatalf("re-Parse: %v\n%s", err, data)
	}
	if again.Len() != tree.Len() {
		t.Errorf("node count = %d, want %d", again.Len(), tree.Len())
	}
	if again.AttrOr(again.Root(), "frameRate", "") != "24" {
		t.Error("attribute lost in round trip")
	}
	if !strings.Contains(string(data), `<DOMTimeline name="Scene 1"/>`) {
		t.Errorf("self-closing element not emitted:\n%s", data)
	}
}

func TestParse_Malformed(t *testing.T) {
	for _, in := range []string{"", "<a><b></a>", "<a></a><b/>", "<a>"} {
		if _, err := Parse(strings.NewReader(in)); !errors.Is(err, apperr.ErrMalformedInput) {
			t.Errorf("Parse(%q) err = %v, want ErrMalformedInput", in, err)
		}
	}
}

func TestSetAndDelAttr(t *testing.T) {
	tree := New()
	id := tree.NewElement("DOMLayer")
	tree.SetAttr(id, "name", "a")
	tree.SetAttr(id, "color", "#fff")
	tree.SetAttr(id, "name", "b")
	if attrs := tree.Attrs(id); len(attrs) != 2 || attrs[0].Value != "b" {
		t.Errorf("attrs = %+v", attrs)
	}
	tree.DelAttr(id, "name")
	if _, ok := tree.Attr(id, "name"); ok {
		t.Error("name should be deleted")
	}
}

func TestCopySubtree(t *testing.T) {
	src, err := Parse(strings.NewReader(`<FillStyle index="1"><SolidColor color="#FF0000"/></FillStyle>`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	dst := New()
	root := dst.NewElement("fills")
	dst.Append(root, dst.CopySubtree(src, src.Root()))
	fill := dst.Child(root, "FillStyle")
	if dst.AttrOr(fill, "index", "") != "1" {
		t.Fatal("copied attributes missing")
	}
	if dst.AttrOr(dst.Child(fill, "SolidColor"), "color", "") != "#FF0000" {
		t.Error("copied child missing")
	}
}
