package library

import (
	"fmt"
	"strings"

	"github.com/starford/xflkit/internal/apperr"
	"github.com/starford/xflkit/internal/timeline"
	"github.com/starford/xflkit/internal/xmltree"
)

// Kind distinguishes item variants.
type Kind uint8

const (
	KindFolder Kind = iota + 1
	KindSymbol
	KindBitmap
	KindSound
)

func (k Kind) String() string {
	switch k {
	case KindFolder:
		return "folder"
	case KindSymbol:
		return "symbol"
	case KindBitmap:
		return "bitmap"
	case KindSound:
		return "sound"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Item is a library entry: *FolderItem, *SymbolItem, *BitmapItem or
// *SoundItem. The set is closed.
type Item interface {
	// Name is the slash-qualified library path.
	Name() string
	// ID is stable across renames.
	ID() string
	Kind() Kind
	base() *itemBase
}

type itemBase struct {
	name string
	id   string
	// node is the item's listing element in the document arena.
	node xmltree.NodeID
}

func (b *itemBase) Name() string    { return b.name }
func (b *itemBase) ID() string      { return b.id }
func (b *itemBase) base() *itemBase { return b }

// FolderItem groups items. It has no payload.
type FolderItem struct{ itemBase }

func (*FolderItem) Kind() Kind { return KindFolder }

// SymbolItem is a reusable symbol with its own timeline.
type SymbolItem struct {
	itemBase
	// SymbolType is "movie clip", "graphic" or "button".
	SymbolType string
	Timeline   *timeline.Timeline

	// src is the descriptor arena the symbol was decoded from.
	src  *xmltree.Tree
	root xmltree.NodeID
}

func (*SymbolItem) Kind() Kind { return KindSymbol }

// Href is the descriptor file name under LIBRARY/.
func (s *SymbolItem) Href() string { return s.name + ".xml" }

// BitmapItem is an imported image.
type BitmapItem struct {
	itemBase
	// Href is the media file under LIBRARY/.
	Href string
}

func (*BitmapItem) Kind() Kind { return KindBitmap }

// SoundItem is an imported audio clip.
type SoundItem struct {
	itemBase
	Href        string
	Format      string
	SampleCount int
}

func (*SoundItem) Kind() Kind { return KindSound }

var (
	_ Item = (*FolderItem)(nil)
	_ Item = (*SymbolItem)(nil)
	_ Item = (*BitmapItem)(nil)
	_ Item = (*SoundItem)(nil)
)

// itemTypes maps AddNewItem type strings to the symbol type they create.
var itemTypes = map[string]string{
	"movie clip": "movie clip",
	"graphic":    "graphic",
	"button":     "button",
}

// unsupportedTypes are item kinds of the format this model does not build.
var unsupportedTypes = map[string]bool{
	"screen":    true,
	"video":     true,
	"font":      true,
	"component": true,
}

// ValidateName checks a qualified item name: non-empty slash-separated
// segments with no "." or ".." segment.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("library: empty item name: %w", apperr.ErrInvalidArgument)
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("library: item name %q: %w", name, apperr.ErrInvalidArgument)
		}
	}
	return nil
}

func parentOf(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[:i]
	}
	return ""
}

func join(folder, leaf string) string {
	if folder == "" {
		return leaf
	}
	return folder + "/" + leaf
}

// within reports whether name lies inside folder.
func within(name, folder string) bool {
	return strings.HasPrefix(name, folder+"/")
}
