package library

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/starford/xflkit/internal/apperr"
)

var (
	bitmapExts = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp"}
	soundExts  = []string{".wav", ".mp3", ".aif", ".aiff"}
)

// KindForFile maps a file extension to the item kind it imports as.
func KindForFile(name string) (Kind, bool) {
	ext := strings.ToLower(path.Ext(name))
	switch {
	case ext == ".xml":
		return KindSymbol, true
	case slices.Contains(bitmapExts, ext):
		return KindBitmap, true
	case slices.Contains(soundExts, ext):
		return KindSound, true
	}
	return 0, false
}

type importOptions struct {
	name      string
	copyOnly  bool
	overwrite bool
}

// ImportOption configures ImportItem.
type ImportOption func(*importOptions)

// AsName imports under the given qualified name instead of one derived from
// the file.
func AsName(name string) ImportOption { return func(o *importOptions) { o.name = name } }

// CopyOnly copies the file into the library folder without registering an
// item. It requires a store-backed library.
func CopyOnly() ImportOption { return func(o *importOptions) { o.copyOnly = true } }

// AllowOverwrite replaces an existing item of the same kind. The replaced
// item's ID carries over so live references stay bound.
func AllowOverwrite() ImportOption { return func(o *importOptions) { o.overwrite = true } }

// ImportItem reads a symbol descriptor (.xml) or a media file and adds it to
// the library. A symbol keeps the name recorded in its descriptor unless
// AsName is given. With CopyOnly the returned item is nil.
func (l *Library) ImportItem(filePath string, opts ...ImportOption) (Item, error) {
	var o importOptions
	for _, opt := range opts {
		opt(&o)
	}
	kind, ok := KindForFile(filePath)
	if !ok {
		return nil, fmt.Errorf("library: import %s: unsupported file type: %w", filePath, apperr.ErrInvalidArgument)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("library: import %s: %w: %w", filePath, apperr.ErrIO, err)
	}

	base := filepath.Base(filePath)
	var it Item
	switch kind {
	case KindSymbol:
		s, err := decodeSymbol(data, l.logger)
		if err != nil {
			return nil, fmt.Errorf("library: import %s: %w", filePath, err)
		}
		if s.name == "" {
			s.name = strings.TrimSuffix(base, filepath.Ext(base))
		}
		it = s
	case KindBitmap:
		it = &BitmapItem{itemBase: itemBase{name: base}, Href: base}
	case KindSound:
		it = &SoundItem{
			itemBase: itemBase{name: base},
			Href:     base,
			Format:   strings.TrimPrefix(strings.ToLower(filepath.Ext(base)), "."),
		}
	}
	b := it.base()
	if o.name != "" {
		b.name = o.name
		if kind != KindSymbol {
			setHref(it, o.name)
		}
	}
	if err := ValidateName(b.name); err != nil {
		return nil, err
	}

	if o.copyOnly {
		if l.store == nil {
			return nil, fmt.Errorf("library: copy %s: no backing store: %w", filePath, apperr.ErrInvalidOperation)
		}
		if err := l.store.Write(FilePath(it), data); err != nil {
			return nil, fmt.Errorf("library: copy %s: %w", filePath, err)
		}
		return nil, nil
	}

	existing, exists := l.items[b.name]
	if exists && !o.overwrite {
		return nil, fmt.Errorf("library: import %q: %w", b.name, apperr.ErrAlreadyExists)
	}
	if exists && existing.Kind() != kind {
		return nil, fmt.Errorf("library: import %q: replaces a %s with a %s: %w", b.name, existing.Kind(), kind, apperr.ErrInvalidOperation)
	}
	if err := l.ensureFolders(parentOf(b.name)); err != nil {
		return nil, err
	}
	if l.store != nil {
		if err := l.store.Write(FilePath(it), data); err != nil {
			return nil, fmt.Errorf("library: import %q: %w", b.name, err)
		}
	}

	if exists {
		b.id = existing.ID()
		b.node = existing.base().node
		if s, ok := existing.(*SymbolItem); ok {
			s.Timeline.Release()
		}
		l.items[b.name] = it
		l.order[slices.Index(l.order, existing)] = it
	} else {
		b.id = newID()
		l.insert(it)
	}
	if s, ok := it.(*SymbolItem); ok {
		s.Timeline.Name = path.Base(s.name)
		l.BindTimeline(s.Timeline)
	}
	return it, nil
}
