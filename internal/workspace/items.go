package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"time"

	"github.com/starford/xflkit/internal/apperr"
	"github.com/starford/xflkit/internal/importer"
	"github.com/starford/xflkit/internal/index"
	"github.com/starford/xflkit/internal/library"
)

// TimelineInfo summarizes one document timeline.
type TimelineInfo struct {
	Name   string `json:"name"`
	Layers int    `json:"layers"`
	Frames int    `json:"frames"`
}

// Summary describes the open document.
type Summary struct {
	Path            string         `json:"path"`
	FrameRate       float64        `json:"frame_rate"`
	Width           int            `json:"width"`
	Height          int            `json:"height"`
	CurrentTimeline int            `json:"current_timeline"`
	Timelines       []TimelineInfo `json:"timelines"`
	Items           int            `json:"items"`
}

// ItemDetail is the full representation of a library item.
type ItemDetail struct {
	Name       string   `json:"name"`
	Kind       string   `json:"kind"`
	ID         string   `json:"id"`
	File       string   `json:"file,omitempty"`
	SymbolType string   `json:"symbol_type,omitempty"`
	References []string `json:"references"`
	Dependents []string `json:"dependents"`
	Usage      int      `json:"usage"`
}

// ItemListItem is a lightweight item in a list response.
type ItemListItem struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	SymbolType string    `json:"symbol_type"`
	Checksum   string    `json:"checksum"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ImportResult reports what an import added.
type ImportResult struct {
	Imported []string `json:"imported"`
	Skipped  []string `json:"skipped"`
}

// Summary returns the document's stage settings, timelines and item count.
func (s *Service) Summary(_ context.Context) *Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := &Summary{
		Path:            s.doc.Path,
		FrameRate:       s.doc.FrameRate,
		Width:           s.doc.Width,
		Height:          s.doc.Height,
		CurrentTimeline: s.doc.CurrentTimelineIndex(),
		Timelines:       make([]TimelineInfo, len(s.doc.Timelines)),
		Items:           s.doc.Library.Len(),
	}
	for i, tl := range s.doc.Timelines {
		out.Timelines[i] = TimelineInfo{Name: tl.Name, Layers: tl.GetLayerCount(), Frames: tl.GetFrameCount()}
	}
	return out
}

// ListItems returns indexed symbols, paginated, optionally filtered by
// symbol type.
func (s *Service) ListItems(_ context.Context, limit, offset int, symbolType string) ([]ItemListItem, int, error) {
	rows, total, err := s.db.ListItems(limit, offset, symbolType)
	if err != nil {
		return nil, 0, err
	}
	items := make([]ItemListItem, len(rows))
	for i, r := range rows {
		items[i] = ItemListItem{
			Name:       r.Name,
			Path:       r.Path,
			SymbolType: r.SymbolType,
			Checksum:   r.Checksum,
			UpdatedAt:  r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Names returns every library name in insertion order.
func (s *Service) Names(_ context.Context) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Library.Names()
}

// GetItem describes the item name.
func (s *Service) GetItem(_ context.Context, name string) (*ItemDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detail(name)
}

func (s *Service) detail(name string) (*ItemDetail, error) {
	it, err := s.doc.Library.Item(name)
	if err != nil {
		return nil, err
	}
	d := &ItemDetail{
		Name:       it.Name(),
		Kind:       it.Kind().String(),
		ID:         it.ID(),
		File:       library.FilePath(it),
		References: []string{},
		Dependents: []string{},
		Usage:      s.doc.Usage(name),
	}
	if sym, ok := it.(*library.SymbolItem); ok {
		d.SymbolType = sym.SymbolType
		d.References = nonNil(sym.Timeline.ReferencedNames())
	}
	if s.db != nil {
		deps, err := s.db.Dependents(name)
		if err != nil {
			return nil, err
		}
		d.Dependents = nonNil(deps)
	}
	return d, nil
}

// Dependents returns the symbols whose timelines reference name.
func (s *Service) Dependents(_ context.Context, name string) ([]string, error) {
	deps, err := s.db.Dependents(name)
	if err != nil {
		return nil, err
	}
	return nonNil(deps), nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// AddItem creates an empty symbol of typ, or a folder when typ is "folder".
func (s *Service) AddItem(_ context.Context, typ, name string) (*ItemDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.doc.Library.AddNewItem(typ, name); err != nil {
		return nil, err
	}
	if err := s.persist(); err != nil {
		return nil, err
	}
	return s.detail(name)
}

// RenameItem renames an item. Placements of it follow the new name.
func (s *Service) RenameItem(_ context.Context, oldName, newName string) (*ItemDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.doc.Library.RenameItem(oldName, newName); err != nil {
		return nil, err
	}
	if err := s.persist(); err != nil {
		return nil, err
	}
	return s.detail(newName)
}

// MoveItem moves name into folder; an empty folder moves it to the root.
func (s *Service) MoveItem(_ context.Context, name, folder string) (*ItemDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.doc.Library.MoveToFolder(folder, name); err != nil {
		return nil, err
	}
	if err := s.persist(); err != nil {
		return nil, err
	}
	moved := path.Base(name)
	if folder != "" {
		moved = folder + "/" + moved
	}
	return s.detail(moved)
}

// RemoveItem deletes an item and every placement of it. It returns the
// number of placements dropped.
func (s *Service) RemoveItem(_ context.Context, name string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.doc.RemoveItem(name)
	if err != nil {
		return 0, err
	}
	if err := s.persist(); err != nil {
		return n, err
	}
	return n, nil
}

// ImportFile adds the media file or symbol descriptor at file. An empty
// asName keeps the name derived from the file.
func (s *Service) ImportFile(_ context.Context, file, asName string, overwrite bool) (*ItemDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var opts []library.ImportOption
	if asName != "" {
		opts = append(opts, library.AsName(asName))
	}
	if overwrite {
		opts = append(opts, library.AllowOverwrite())
	}
	it, err := s.doc.Library.ImportItem(file, opts...)
	if err != nil {
		return nil, err
	}
	if sym, ok := it.(*library.SymbolItem); ok {
		for _, missing := range s.doc.Library.BindTimeline(sym.Timeline) {
			s.logger.Warn("workspace: unresolved reference",
				slog.String("item", sym.Name()), slog.String("missing", missing))
		}
	}
	if err := s.persist(); err != nil {
		return nil, err
	}
	return s.detail(it.Name())
}

// ImportFrom copies name and everything it depends on from the XFL folder or
// .fla at source.
func (s *Service) ImportFrom(ctx context.Context, source, name string) (*ImportResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := requireName(name); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	plan, err := s.resolver.Import(source, name, s.doc.Library)
	if err != nil {
		return nil, err
	}
	if err := s.persist(); err != nil {
		return nil, err
	}
	return &ImportResult{Imported: plan.Names(), Skipped: nonNil(plan.Skipped)}, nil
}

// PlanImport reports what ImportFrom would add without changing the library.
func (s *Service) PlanImport(_ context.Context, source, name string) (*ImportResult, error) {
	if err := requireName(name); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	plan, err := s.resolver.Resolve(source, name, s.doc.Library)
	if err != nil {
		return nil, err
	}
	return &ImportResult{Imported: plan.Names(), Skipped: nonNil(plan.Skipped)}, nil
}

// Media returns the bytes of the bitmap or sound name and its package path.
func (s *Service) Media(_ context.Context, name string) (data []byte, file string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, err := s.doc.Library.Item(name)
	if err != nil {
		return nil, "", err
	}
	switch it.(type) {
	case *library.BitmapItem, *library.SoundItem:
	default:
		return nil, "", fmt.Errorf("workspace: %q is a %s, not media: %w", name, it.Kind(), apperr.ErrInvalidArgument)
	}
	file = library.FilePath(it)
	data, err = s.store.Read(file)
	if err != nil {
		return nil, "", err
	}
	return data, file, nil
}

func requireName(name string) error {
	if name == "" {
		return fmt.Errorf("workspace: item name is required: %w", apperr.ErrInvalidArgument)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return slices.Clip(s)
}
