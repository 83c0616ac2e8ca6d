package library

import (
	"bytes"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"strings"

	"github.com/starford/xflkit/internal/apperr"
	"github.com/starford/xflkit/internal/timeline"
	"github.com/starford/xflkit/internal/xmltree"
)

// XFL namespace declarations written on new descriptors.
const (
	NamespaceXFL = "http://ns.adobe.com/xfl/2008/"
	NamespaceXSI = "http://www.w3.org/2001/XMLSchema-instance"
)

const defaultSymbolType = "movie clip"

// decodeSymbol builds a symbol from a DOMSymbolItem descriptor.
func decodeSymbol(data []byte, logger *slog.Logger) (*SymbolItem, error) {
	tree, err := xmltree.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	root := tree.Root()
	if tree.Name(root) != "DOMSymbolItem" {
		return nil, fmt.Errorf("library: descriptor root <%s>: %w", tree.Name(root), apperr.ErrMalformedInput)
	}
	s := &SymbolItem{
		itemBase:   itemBase{name: tree.AttrOr(root, "name", ""), id: tree.AttrOr(root, "itemID", "")},
		SymbolType: tree.AttrOr(root, "symbolType", defaultSymbolType),
		src:        tree,
		root:       root,
	}
	if tl := tree.Child(tree.Child(root, "timeline"), "DOMTimeline"); tl != xmltree.NoNode {
		s.Timeline, err = timeline.Decode(tree, tl, logger)
		if err != nil {
			return nil, fmt.Errorf("library: symbol %q: %w", s.name, err)
		}
	} else {
		s.Timeline = timeline.New(path.Base(s.name))
		_, _ = s.Timeline.AddNewLayer("Layer 1", "normal")
	}
	return s, nil
}

// Decode builds a library from the folders, media and symbols sections of
// the DOMDocument element doc. readFile loads a file relative to LIBRARY/.
// References inside symbol timelines are bound once every item is known.
func Decode(tree *xmltree.Tree, doc xmltree.NodeID, readFile func(href string) ([]byte, error), opts ...Option) (*Library, error) {
	l := New(opts...)
	l.src = tree

	add := func(it Item) error {
		b := it.base()
		if b.id == "" {
			b.id = newID()
		}
		if err := ValidateName(b.name); err != nil {
			return fmt.Errorf("library: decode: %w: %w", apperr.ErrMalformedInput, err)
		}
		if l.ItemExists(b.name) {
			return fmt.Errorf("library: decode: duplicate item %q: %w", b.name, apperr.ErrMalformedInput)
		}
		if err := l.ensureFolders(parentOf(b.name)); err != nil {
			return fmt.Errorf("library: decode: %w: %w", apperr.ErrMalformedInput, err)
		}
		l.insert(it)
		return nil
	}

	for _, id := range tree.ChildrenNamed(tree.Child(doc, "folders"), "DOMFolderItem") {
		name := tree.AttrOr(id, "name", "")
		if existing, ok := l.items[name]; ok && existing.Kind() == KindFolder {
			existing.base().node = id // created as an ancestor first
			continue
		}
		f := &FolderItem{itemBase{name: name, id: tree.AttrOr(id, "itemID", ""), node: id}}
		if err := add(f); err != nil {
			return nil, err
		}
	}

	for _, id := range tree.Children(tree.Child(doc, "media")) {
		name := tree.AttrOr(id, "name", "")
		b := itemBase{name: name, id: tree.AttrOr(id, "itemID", ""), node: id}
		href := tree.AttrOr(id, "href", name)
		var it Item
		switch tree.Name(id) {
		case "DOMBitmapItem":
			it = &BitmapItem{itemBase: b, Href: href}
		case "DOMSoundItem":
			n, err := strconv.Atoi(tree.AttrOr(id, "sampleCount", "0"))
			if err != nil {
				return nil, fmt.Errorf("library: sound %q: sampleCount: %w", name, apperr.ErrMalformedInput)
			}
			it = &SoundItem{itemBase: b, Href: href, Format: tree.AttrOr(id, "format", ""), SampleCount: n}
		default:
			l.logger.Warn("library: keeping unsupported media entry",
				slog.String("element", tree.Name(id)), slog.String("name", name))
			l.extraMedia = append(l.extraMedia, id)
			continue
		}
		if err := add(it); err != nil {
			return nil, err
		}
	}

	for _, id := range tree.ChildrenNamed(tree.Child(doc, "symbols"), "Include") {
		href := tree.AttrOr(id, "href", "")
		data, err := readFile(href)
		if err != nil {
			return nil, fmt.Errorf("library: symbol %q: %w", href, err)
		}
		s, err := decodeSymbol(data, l.logger)
		if err != nil {
			return nil, err
		}
		// The descriptor path is authoritative for the qualified name.
		s.name = strings.TrimSuffix(href, ".xml")
		s.node = id
		if s.id == "" {
			s.id = tree.AttrOr(id, "itemID", "")
		}
		if err := add(s); err != nil {
			return nil, err
		}
	}

	for s := range l.Symbols() {
		for _, name := range l.BindTimeline(s.Timeline) {
			l.logger.Warn("library: unresolved reference",
				slog.String("symbol", s.Name()), slog.String("item", name))
		}
	}
	return l, nil
}

// elem adds name under parent with the unmodeled attributes of from.
func elem(out *xmltree.Tree, parent xmltree.NodeID, name string, src *xmltree.Tree, from xmltree.NodeID) xmltree.NodeID {
	id := out.AddChild(parent, name)
	out.CopyAttrs(id, src, from)
	return id
}

// Encode writes the folders, media and symbols sections under the
// DOMDocument element doc of out.
func (l *Library) Encode(out *xmltree.Tree, doc xmltree.NodeID) {
	var folders, media, symbols xmltree.NodeID
	section := func(h *xmltree.NodeID, name string) xmltree.NodeID {
		if *h == xmltree.NoNode {
			*h = out.AddChild(doc, name)
		}
		return *h
	}
	for _, it := range l.order {
		b := it.base()
		switch v := it.(type) {
		case *FolderItem:
			id := elem(out, section(&folders, "folders"), "DOMFolderItem", l.src, b.node)
			out.SetAttr(id, "name", b.name)
			out.SetAttr(id, "itemID", b.id)
		case *BitmapItem:
			id := elem(out, section(&media, "media"), "DOMBitmapItem", l.src, b.node)
			out.SetAttr(id, "name", b.name)
			out.SetAttr(id, "itemID", b.id)
			out.SetAttr(id, "href", v.Href)
		case *SoundItem:
			id := elem(out, section(&media, "media"), "DOMSoundItem", l.src, b.node)
			out.SetAttr(id, "name", b.name)
			out.SetAttr(id, "itemID", b.id)
			out.SetAttr(id, "href", v.Href)
			if v.Format != "" {
				out.SetAttr(id, "format", v.Format)
			}
			out.SetAttr(id, "sampleCount", strconv.Itoa(v.SampleCount))
		case *SymbolItem:
			id := elem(out, section(&symbols, "symbols"), "Include", l.src, b.node)
			out.SetAttr(id, "href", v.Href())
			out.SetAttr(id, "itemID", b.id)
			if _, ok := out.Attr(id, "loadImmediate"); !ok {
				out.SetAttr(id, "loadImmediate", "false")
			}
		}
	}
	for _, id := range l.extraMedia {
		out.Append(section(&media, "media"), out.CopySubtree(l.src, id))
	}
}

// EncodeSymbol renders the DOMSymbolItem descriptor of s.
func EncodeSymbol(s *SymbolItem) *xmltree.Tree {
	out := xmltree.New()
	root := out.NewElement("DOMSymbolItem")
	if s.src != nil {
		out.CopyAttrs(root, s.src, s.root)
	} else {
		out.SetAttr(root, "xmlns:xsi", NamespaceXSI)
		out.SetAttr(root, "xmlns", NamespaceXFL)
	}
	out.SetAttr(root, "name", s.name)
	out.SetAttr(root, "itemID", s.id)
	if s.SymbolType == "" || s.SymbolType == defaultSymbolType {
		out.DelAttr(root, "symbolType")
	} else {
		out.SetAttr(root, "symbolType", s.SymbolType)
	}
	for _, c := range s.src.Children(s.root) {
		if s.src.Name(c) != "timeline" {
			out.Append(root, out.CopySubtree(s.src, c))
		}
	}
	holder := out.AddChild(root, "timeline")
	out.Append(holder, s.Timeline.Encode(out))
	return out
}
