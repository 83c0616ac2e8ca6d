package library

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"

	"github.com/starford/xflkit/internal/apperr"
	"github.com/starford/xflkit/internal/timeline"
	"github.com/starford/xflkit/internal/xmltree"
)

const docListing = `<DOMDocument xmlns="http://ns.adobe.com/xfl/2008/">
  <folders>
    <DOMFolderItem name="Props" itemID="f-1" isExpanded="true"/>
  </folders>
  <media>
    <DOMBitmapItem name="Props/face.png" href="face.png" itemID="b-1" quality="50"/>
    <DOMSoundItem name="step.wav" itemID="s-1" format="22kHz 16bit Mono" sampleCount="4410"/>
    <DOMVideoItem name="intro.flv"/>
  </media>
  <symbols>
    <Include href="Props/Ball.xml" loadImmediate="true"/>
  </symbols>
</DOMDocument>`

const ballXML = `<DOMSymbolItem name="Props/Ball" itemID="y-1" lastModified="1">
  <timeline>
    <DOMTimeline name="Ball">
      <layers>
        <DOMLayer name="L">
          <frames>
            <DOMFrame index="0" soundName="step.wav">
              <elements>
                <DOMBitmapInstance libraryItemName="Props/face.png"/>
              </elements>
            </DOMFrame>
          </frames>
        </DOMLayer>
      </layers>
    </DOMTimeline>
  </timeline>
</DOMSymbolItem>`

func decodeListing(t *testing.T, files map[string]string) *Library {
	t.Helper()
	tree, err := xmltree.Parse(strings.NewReader(docListing))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	read := func(href string) ([]byte, error) {
		s, ok := files[href]
		if !ok {
			return nil, fmt.Errorf("read %s: %w", href, fs.ErrNotExist)
		}
		return []byte(s), nil
	}
	l, err := Decode(tree, tree.Root(), read)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return l
}

func TestDecode_Listing(t *testing.T) {
	l := decodeListing(t, map[string]string{"Props/Ball.xml": ballXML})
	if l.Len() != 4 {
		t.Fatalf("len = %d, names = %v", l.Len(), l.Names())
	}
	snd, err := l.Item("step.wav")
	if err != nil {
		t.Fatal(err)
	}
	if s := snd.(*SoundItem); s.SampleCount != 4410 || s.Href != "step.wav" || s.ID() != "s-1" {
		t.Errorf("sound = %+v", s)
	}
	ball, _ := l.Item("Props/Ball")
	sym := ball.(*SymbolItem)
	if sym.ID() != "y-1" || sym.SymbolType != "movie clip" {
		t.Errorf("symbol = %+v", sym)
	}

	// References inside the symbol are bound to their items.
	if err := l.RenameItem("Props/face.png", "Props/smile.png"); err != nil {
		t.Fatal(err)
	}
	inst := sym.Timeline.Layers()[0].Frames()[0].Elements[0].(*timeline.Instance)
	if inst.LibraryItemName != "Props/smile.png" {
		t.Errorf("reference = %q", inst.LibraryItemName)
	}
}

func TestDecode_MissingDescriptor(t *testing.T) {
	tree, _ := xmltree.Parse(strings.NewReader(docListing))
	read := func(string) ([]byte, error) { return nil, fs.ErrNotExist }
	if _, err := Decode(tree, tree.Root(), read); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("err = %v", err)
	}
}

func TestDecode_DuplicateName(t *testing.T) {
	doc := `<DOMDocument><media><DOMBitmapItem name="a.png"/><DOMBitmapItem name="a.png"/></media></DOMDocument>`
	tree, _ := xmltree.Parse(strings.NewReader(doc))
	_, err := Decode(tree, tree.Root(), nil)
	if !errors.Is(err, apperr.ErrMalformedInput) {
		t.Errorf("err = %v", err)
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	l := decodeListing(t, map[string]string{"Props/Ball.xml": ballXML})
	mustAdd(t, l, "graphic", "Props/New")

	out := xmltree.New()
	doc := out.NewElement("DOMDocument")
	l.Encode(out, doc)
	raw, err := out.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	text := string(raw)
	for _, want := range []string{
		`isExpanded="true"`,
		`quality="50"`,
		`loadImmediate="true"`,
		`href="Props/New.xml"`,
		`<DOMVideoItem name="intro.flv"/>`,
		`sampleCount="4410"`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("listing lacks %s:\n%s", want, text)
		}
	}

	ball, _ := l.Item("Props/Ball")
	desc, err := EncodeSymbol(ball.(*SymbolItem)).Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(desc), `lastModified="1"`) || !strings.Contains(string(desc), `libraryItemName="Props/face.png"`) {
		t.Errorf("descriptor:\n%s", desc)
	}

	newSym, _ := l.Item("Props/New")
	desc, _ = EncodeSymbol(newSym.(*SymbolItem)).Bytes()
	for _, want := range []string{`xmlns="` + NamespaceXFL + `"`, `symbolType="graphic"`, `<DOMLayer name="Layer 1">`} {
		if !strings.Contains(string(desc), want) {
			t.Errorf("new descriptor lacks %s:\n%s", want, desc)
		}
	}
}
