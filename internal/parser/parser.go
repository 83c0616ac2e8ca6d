// Package parser scans XFL descriptors without building a document model.
// It extracts what the index and the importer need: an item's identity, the
// library names it references, and the item listing of a DOMDocument.
package parser

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/starford/xflkit/internal/apperr"
)

// Kind is the library kind of a listed item.
type Kind string

const (
	KindSymbol Kind = "symbol"
	KindBitmap Kind = "bitmap"
	KindSound  Kind = "sound"
	KindFolder Kind = "folder"
)

// Result holds the output of scanning a symbol descriptor.
type Result struct {
	Name       string
	ItemID     string
	SymbolType string
	// References lists libraryItemName and soundName values in first-use
	// order, without repeats.
	References []string
	// Text is the characters of every text run, space separated.
	Text string
}

// Parse scans a DOMSymbolItem descriptor.
func Parse(data []byte) (*Result, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	r := &Result{}
	seen := make(map[string]struct{})
	addRef := func(name string) {
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		r.References = append(r.References, name)
	}

	var text []string
	inChars := false
	root := true
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parser: %w: %w", apperr.ErrMalformedInput, err)
		}
		switch tk := tok.(type) {
		case xml.StartElement:
			if root {
				if tk.Name.Local != "DOMSymbolItem" {
					return nil, fmt.Errorf("parser: root <%s> is not a symbol: %w", tk.Name.Local, apperr.ErrMalformedInput)
				}
				r.Name = attr(tk, "name")
				r.ItemID = attr(tk, "itemID")
				r.SymbolType = attr(tk, "symbolType")
				if r.SymbolType == "" {
					r.SymbolType = "movie clip"
				}
				root = false
				continue
			}
			addRef(attr(tk, "libraryItemName"))
			if tk.Name.Local == "DOMFrame" {
				addRef(attr(tk, "soundName"))
			}
			inChars = tk.Name.Local == "characters"
		case xml.EndElement:
			inChars = false
		case xml.CharData:
			if inChars {
				if s := strings.TrimSpace(string(tk)); s != "" {
					text = append(text, s)
				}
			}
		}
	}
	if root {
		return nil, fmt.Errorf("parser: empty descriptor: %w", apperr.ErrMalformedInput)
	}
	r.Text = strings.Join(text, " ")
	return r, nil
}

func attr(se xml.StartElement, name string) string {
	for _, a := range se.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// Entry is one item listed by a DOMDocument.
type Entry struct {
	Name string
	Kind Kind
	// Href is the file under LIBRARY/ that holds the item. Folders have none.
	Href string
}

// Listing maps qualified item names to their entries.
type Listing map[string]Entry

// ParseDocument scans the folders, media and symbols sections of a
// DOMDocument. Symbol names come from the descriptor file name.
func ParseDocument(data []byte) (Listing, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	out := make(Listing)
	var stack []string
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parser: document: %w: %w", apperr.ErrMalformedInput, err)
		}
		switch tk := tok.(type) {
		case xml.StartElement:
			if len(stack) == 0 && tk.Name.Local != "DOMDocument" {
				return nil, fmt.Errorf("parser: root <%s> is not a document: %w", tk.Name.Local, apperr.ErrMalformedInput)
			}
			if len(stack) == 2 {
				section := stack[1]
				switch {
				case section == "folders" && tk.Name.Local == "DOMFolderItem":
					name := attr(tk, "name")
					out[name] = Entry{Name: name, Kind: KindFolder}
				case section == "media" && tk.Name.Local == "DOMBitmapItem":
					e := mediaEntry(tk, KindBitmap)
					out[e.Name] = e
				case section == "media" && tk.Name.Local == "DOMSoundItem":
					e := mediaEntry(tk, KindSound)
					out[e.Name] = e
				case section == "symbols" && tk.Name.Local == "Include":
					href := attr(tk, "href")
					name := strings.TrimSuffix(href, path.Ext(href))
					out[name] = Entry{Name: name, Kind: KindSymbol, Href: href}
				}
			}
			stack = append(stack, tk.Name.Local)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		}
	}
	return out, nil
}

func mediaEntry(se xml.StartElement, kind Kind) Entry {
	name := attr(se, "name")
	href := attr(se, "href")
	if href == "" {
		href = name
	}
	return Entry{Name: name, Kind: kind, Href: href}
}
