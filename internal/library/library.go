// Package library implements the document library: a foldered, uniquely
// named store of symbols and media.
//
// Structural edits publish on the library's bus. Renames notify receivers of
// the item (and of every descendant of a renamed folder); removals notify and
// then forget the item's receivers. When the library is backed by a
// storage.Provider, descriptor and media files under LIBRARY/ follow the
// edits.
package library

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"maps"
	"path"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/xflkit/internal/apperr"
	"github.com/starford/xflkit/internal/bus"
	"github.com/starford/xflkit/internal/storage"
	"github.com/starford/xflkit/internal/timeline"
	"github.com/starford/xflkit/internal/xmltree"
)

// Root is the package folder holding descriptor and media files.
const Root = "LIBRARY"

// Library maps qualified names to items.
type Library struct {
	items  map[string]Item
	order  []Item
	bus    *bus.Bus
	store  storage.Provider
	logger *slog.Logger

	// src is the document arena the listing was decoded from.
	src        *xmltree.Tree
	extraMedia []xmltree.NodeID
}

// Option configures a Library.
type Option func(*Library)

// WithBus publishes on b instead of a private bus.
func WithBus(b *bus.Bus) Option { return func(l *Library) { l.bus = b } }

// WithStore backs the library's files with p.
func WithStore(p storage.Provider) Option { return func(l *Library) { l.store = p } }

// WithLogger sets the logger. A nil logger discards.
func WithLogger(lg *slog.Logger) Option { return func(l *Library) { l.logger = lg } }

// New returns an empty library.
func New(opts ...Option) *Library {
	l := &Library{items: make(map[string]Item)}
	for _, o := range opts {
		o(l)
	}
	if l.logger == nil {
		l.logger = slog.New(slog.DiscardHandler)
	}
	if l.bus == nil {
		l.bus = bus.New(l.logger)
	}
	return l
}

// Bus returns the bus structural edits are published on.
func (l *Library) Bus() *bus.Bus { return l.bus }

// Store returns the backing provider, or nil for an in-memory library.
func (l *Library) Store() storage.Provider { return l.store }

// SetStore rebinds the library to p. Later edits move files in p.
func (l *Library) SetStore(p storage.Provider) { l.store = p }

// Len returns the number of items, folders included.
func (l *Library) Len() int { return len(l.items) }

// ItemExists reports whether name is taken.
func (l *Library) ItemExists(name string) bool {
	_, ok := l.items[name]
	return ok
}

// Item returns the item called name.
func (l *Library) Item(name string) (Item, error) {
	it, ok := l.items[name]
	if !ok {
		return nil, fmt.Errorf("library: item %q: %w", name, apperr.ErrNotFound)
	}
	return it, nil
}

// Items returns a copy of the name to item mapping.
func (l *Library) Items() map[string]Item { return maps.Clone(l.items) }

// Names returns item names in insertion order.
func (l *Library) Names() []string {
	out := make([]string, len(l.order))
	for i, it := range l.order {
		out[i] = it.Name()
	}
	return out
}

// All yields items in insertion order.
func (l *Library) All() iter.Seq[Item] {
	return func(yield func(Item) bool) {
		for _, it := range slices.Clone(l.order) {
			if !yield(it) {
				return
			}
		}
	}
}

// Symbols yields every symbol item in insertion order.
func (l *Library) Symbols() iter.Seq[*SymbolItem] {
	return func(yield func(*SymbolItem) bool) {
		for it := range l.All() {
			if s, ok := it.(*SymbolItem); ok && !yield(s) {
				return
			}
		}
	}
}

func newID() string { return uuid.NewString() }

func (l *Library) insert(it Item) {
	l.items[it.Name()] = it
	l.order = append(l.order, it)
}

func (l *Library) drop(it Item) {
	delete(l.items, it.Name())
	l.order = slices.DeleteFunc(l.order, func(x Item) bool { return x == it })
}

// ensureFolders creates every missing folder on the way to folder.
func (l *Library) ensureFolders(folder string) error {
	if folder == "" {
		return nil
	}
	var chain []string
	for f := folder; f != ""; f = parentOf(f) {
		chain = append(chain, f)
	}
	for _, f := range slices.Backward(chain) {
		if it, ok := l.items[f]; ok {
			if it.Kind() != KindFolder {
				return fmt.Errorf("library: %q is a %s, not a folder: %w", f, it.Kind(), apperr.ErrInvalidOperation)
			}
			continue
		}
		l.insert(&FolderItem{itemBase{name: f, id: newID()}})
	}
	return nil
}

// descendants returns the items inside folder, in insertion order.
func (l *Library) descendants(folder string) []Item {
	var out []Item
	for _, it := range l.order {
		if within(it.Name(), folder) {
			out = append(out, it)
		}
	}
	return out
}

func newSymbol(name, symbolType string) *SymbolItem {
	tl := timeline.New(path.Base(name))
	_, _ = tl.AddNewLayer("Layer 1", "normal")
	return &SymbolItem{
		itemBase:   itemBase{name: name, id: newID()},
		SymbolType: symbolType,
		Timeline:   tl,
	}
}

// AddNewItem creates an empty item of the given type. Symbol types are
// "movie clip", "graphic" and "button"; "folder" creates a folder.
func (l *Library) AddNewItem(typ, name string) (Item, error) {
	symbolType, ok := itemTypes[typ]
	switch {
	case typ == "folder":
		return l.NewFolder(name)
	case unsupportedTypes[typ]:
		return nil, fmt.Errorf("library: add %q: item type %q: %w", name, typ, apperr.ErrUnimplemented)
	case !ok:
		return nil, fmt.Errorf("library: add %q: item type %q: %w", name, typ, apperr.ErrInvalidArgument)
	}
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if l.ItemExists(name) {
		return nil, fmt.Errorf("library: add %q: %w", name, apperr.ErrAlreadyExists)
	}
	if err := l.ensureFolders(parentOf(name)); err != nil {
		return nil, err
	}
	s := newSymbol(name, symbolType)
	l.insert(s)
	return s, nil
}

// NewFolder creates a folder and any missing ancestors.
func (l *Library) NewFolder(name string) (*FolderItem, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if l.ItemExists(name) {
		return nil, fmt.Errorf("library: new folder %q: %w", name, apperr.ErrAlreadyExists)
	}
	if err := l.ensureFolders(name); err != nil {
		return nil, err
	}
	return l.items[name].(*FolderItem), nil
}

// FilePath returns the package path of the file backing it, or "" for
// folders.
func FilePath(it Item) string {
	switch v := it.(type) {
	case *SymbolItem:
		return Root + "/" + v.Href()
	case *BitmapItem:
		return Root + "/" + v.Href
	case *SoundItem:
		return Root + "/" + v.Href
	}
	return ""
}

type rename struct {
	it       Item
	from, to string
	href     string // new media href, if it follows the name
}

// planHref returns the media href after renaming from to to. Media whose
// href mirrors the item name keep doing so.
func planHref(it Item, from, to string) string {
	var href string
	switch v := it.(type) {
	case *BitmapItem:
		href = v.Href
	case *SoundItem:
		href = v.Href
	default:
		return ""
	}
	if href == from {
		return to
	}
	return href
}

func setHref(it Item, href string) {
	switch v := it.(type) {
	case *BitmapItem:
		v.Href = href
	case *SoundItem:
		v.Href = href
	}
}

// RenameItem moves an item to a new qualified name. Renaming a folder
// re-qualifies everything inside it. The folder part of newName must
// already exist; MoveToFolder creates missing folders.
func (l *Library) RenameItem(oldName, newName string) error {
	if parent := parentOf(newName); parent != "" {
		it, ok := l.items[parent]
		if !ok {
			return fmt.Errorf("library: rename %q to %q: folder %q: %w", oldName, newName, parent, apperr.ErrNotFound)
		}
		if it.Kind() != KindFolder {
			return fmt.Errorf("library: rename %q to %q: %q is not a folder: %w", oldName, newName, parent, apperr.ErrInvalidOperation)
		}
	}
	return l.rename(oldName, newName)
}

func (l *Library) rename(oldName, newName string) error {
	it, err := l.Item(oldName)
	if err != nil {
		return err
	}
	if err := ValidateName(newName); err != nil {
		return err
	}
	if oldName == newName {
		return nil
	}
	if l.ItemExists(newName) {
		return fmt.Errorf("library: rename %q to %q: %w", oldName, newName, apperr.ErrAlreadyExists)
	}
	if it.Kind() == KindFolder && within(newName, oldName) {
		return fmt.Errorf("library: move folder %q into itself: %w", oldName, apperr.ErrInvalidOperation)
	}

	plan := []rename{{it: it, from: oldName, to: newName}}
	if it.Kind() == KindFolder {
		for _, d := range l.descendants(oldName) {
			to := newName + strings.TrimPrefix(d.Name(), oldName)
			if l.ItemExists(to) {
				return fmt.Errorf("library: rename %q to %q: %w", d.Name(), to, apperr.ErrAlreadyExists)
			}
			plan = append(plan, rename{it: d, from: d.Name(), to: to})
		}
	}
	for i := range plan {
		plan[i].href = planHref(plan[i].it, plan[i].from, plan[i].to)
	}
	if err := l.moveFiles(plan); err != nil {
		return err
	}

	for _, m := range plan {
		delete(l.items, m.from)
		m.it.base().name = m.to
		l.items[m.to] = m.it
		if m.href != "" {
			setHref(m.it, m.href)
		}
		if s, ok := m.it.(*SymbolItem); ok {
			s.Timeline.Name = path.Base(m.to)
		}
		l.bus.Publish(bus.Event{
			Kind:    bus.Renamed,
			ItemID:  m.it.ID(),
			Name:    m.to,
			OldName: m.from,
			NewName: m.to,
			Item:    m.it,
		})
	}
	return nil
}

// moveFiles renames backing files for a rename plan, undoing completed
// moves when one fails.
func (l *Library) moveFiles(plan []rename) error {
	if l.store == nil {
		return nil
	}
	type done struct{ from, to string }
	var moved []done
	for _, m := range plan {
		from := FilePath(m.it)
		var to string
		switch m.it.(type) {
		case *SymbolItem:
			to = Root + "/" + m.to + ".xml"
		case *BitmapItem, *SoundItem:
			to = Root + "/" + m.href
		}
		if from == "" || from == to || !l.store.Exists(from) {
			continue
		}
		if err := l.store.Move(from, to); err != nil {
			for _, d := range slices.Backward(moved) {
				_ = l.store.Move(d.to, d.from)
			}
			return fmt.Errorf("library: rename %q: %w", m.from, err)
		}
		moved = append(moved, done{from, to})
	}
	return nil
}

// MoveToFolder re-qualifies name under folder, keeping its last segment.
// An empty folder moves the item to the library root.
func (l *Library) MoveToFolder(folder, name string) error {
	if _, err := l.Item(name); err != nil {
		return err
	}
	if folder != "" {
		if err := ValidateName(folder); err != nil {
			return err
		}
		if it, ok := l.items[folder]; ok && it.Kind() != KindFolder {
			return fmt.Errorf("library: move %q: %q is not a folder: %w", name, folder, apperr.ErrInvalidArgument)
		}
	}
	target := join(folder, path.Base(name))
	if target == name {
		return nil
	}
	if l.ItemExists(target) {
		return fmt.Errorf("library: move %q to %q: %w", name, folder, apperr.ErrAlreadyExists)
	}
	if err := l.ensureFolders(folder); err != nil {
		return err
	}
	return l.rename(name, target)
}

// RemoveItem deletes an item. Removing a folder removes its contents too.
// Receivers are notified before the item's registry entry is dropped.
func (l *Library) RemoveItem(name string) error {
	it, err := l.Item(name)
	if err != nil {
		return err
	}
	victims := []Item{it}
	if it.Kind() == KindFolder {
		victims = append(l.descendants(name), it)
	}
	var errs []error
	for _, v := range victims {
		l.drop(v)
		if s, ok := v.(*SymbolItem); ok {
			s.Timeline.Release()
		}
		if p := FilePath(v); l.store != nil && p != "" {
			if err := l.store.Delete(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, err)
			}
		}
		l.bus.Publish(bus.Event{Kind: bus.Removed, ItemID: v.ID(), Name: v.Name(), Item: v})
		l.bus.Forget(v.ID())
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("library: remove %q: %w", name, err)
	}
	return nil
}

// BindTimeline subscribes every reference in t to the item it names and
// returns the names that did not resolve.
func (l *Library) BindTimeline(t *timeline.Timeline) []string {
	var missing []string
	for _, f := range t.Keyframes() {
		for _, e := range f.Elements {
			r, ok := e.(timeline.Reference)
			if !ok {
				continue
			}
			if it, ok := l.items[r.ItemName()]; ok {
				r.Bind(l.bus, it.ID())
			} else {
				missing = append(missing, r.ItemName())
			}
		}
		if f.SoundName == "" {
			continue
		}
		if it, ok := l.items[f.SoundName]; ok {
			f.BindSound(l.bus, it.ID())
		} else {
			missing = append(missing, f.SoundName)
		}
	}
	return missing
}
