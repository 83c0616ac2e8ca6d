// Package importer copies a library item and everything it depends on from
// a foreign XFL package into a destination library.
//
// Resolution walks symbol descriptors depth first. Every libraryItemName and
// soundName inside a symbol's timeline is a dependency; symbols are followed,
// media are leaves. The closure is imported dependencies first, and a missing
// file anywhere in it fails the whole import before anything is copied.
package importer

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/xflkit/internal/apperr"
	"github.com/starford/xflkit/internal/library"
	"github.com/starford/xflkit/internal/parser"
)

// Resolver imports items across documents.
type Resolver struct {
	scratchDir string
	logger     *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithScratchDir sets where .fla packages are extracted. Defaults to
// os.TempDir().
func WithScratchDir(dir string) Option { return func(r *Resolver) { r.scratchDir = dir } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(r *Resolver) { r.logger = l } }

// New returns a Resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{}
	for _, o := range opts {
		o(r)
	}
	if r.scratchDir == "" {
		r.scratchDir = os.TempDir()
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	return r
}

// Plan is a resolved import.
type Plan struct {
	// Items lists the entries to import, dependencies before dependents.
	// The requested item is last.
	Items []parser.Entry
	// Skipped lists referenced names the destination already holds.
	Skipped []string
}

// Names returns the qualified names in import order.
func (p *Plan) Names() []string {
	out := make([]string, len(p.Items))
	for i, e := range p.Items {
		out[i] = e.Name
	}
	return out
}

// Resolve computes the import closure of name in the package at source
// without changing dst.
func (r *Resolver) Resolve(source, name string, dst *library.Library) (*Plan, error) {
	var plan *Plan
	err := r.withPackage(source, func(root string) error {
		var err error
		plan, err = r.resolve(root, name, dst)
		return err
	})
	return plan, err
}

// Import copies name and its dependencies from the package at source into
// dst. On failure dst is left as it was.
func (r *Resolver) Import(source, name string, dst *library.Library) (*Plan, error) {
	var plan *Plan
	err := r.withPackage(source, func(root string) error {
		var err error
		if plan, err = r.resolve(root, name, dst); err != nil {
			return err
		}
		return r.apply(root, plan, dst)
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info("import: done",
		slog.String("item", name),
		slog.Int("imported", len(plan.Items)),
		slog.Int("skipped", len(plan.Skipped)))
	return plan, nil
}

// withPackage runs fn on the package folder of source. A .fla archive is
// extracted to a fresh scratch folder that is removed when fn returns.
func (r *Resolver) withPackage(source string, fn func(root string) error) error {
	info, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("import: open %s: %w: %w", source, apperr.ErrIO, err)
	}
	if info.IsDir() {
		return fn(source)
	}
	if !strings.EqualFold(filepath.Ext(source), ".fla") {
		return fmt.Errorf("import: open %s: not an XFL folder or .fla: %w", source, apperr.ErrInvalidArgument)
	}

	scratch := filepath.Join(r.scratchDir, "xflkit-import-"+uuid.NewString())
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			r.logger.Warn("import: scratch cleanup failed",
				slog.String("dir", scratch), slog.String("error", err.Error()))
		}
	}()
	if err := extract(source, scratch); err != nil {
		return err
	}
	return fn(scratch)
}

func extract(archive, dir string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("import: open %s: %w: %w", archive, apperr.ErrIO, err)
	}
	defer zr.Close()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("import: scratch: %w: %w", apperr.ErrIO, err)
	}
	for _, f := range zr.File {
		if !filepath.IsLocal(f.Name) {
			return fmt.Errorf("import: archive entry %q escapes the package: %w", f.Name, apperr.ErrMalformedInput)
		}
		if f.FileInfo().IsDir() {
			continue
		}
		if err := extractFile(f, filepath.Join(dir, filepath.FromSlash(f.Name))); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("import: extract %s: %w: %w", f.Name, apperr.ErrIO, err)
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("import: extract %s: %w: %w", f.Name, apperr.ErrIO, err)
	}
	defer rc.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("import: extract %s: %w: %w", f.Name, apperr.ErrIO, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("import: extract %s: %w: %w", f.Name, apperr.ErrIO, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("import: extract %s: %w: %w", f.Name, apperr.ErrIO, err)
	}
	return nil
}

// itemFile is the on-disk path of an entry's backing file.
func itemFile(root string, e parser.Entry) string {
	return filepath.Join(root, library.Root, filepath.FromSlash(e.Href))
}

func (r *Resolver) resolve(root, name string, dst *library.Library) (*Plan, error) {
	data, err := os.ReadFile(filepath.Join(root, "DOMDocument.xml"))
	if err != nil {
		return nil, fmt.Errorf("import: read document: %w: %w", apperr.ErrIO, err)
	}
	listing, err := parser.ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}
	target, ok := listing[name]
	if !ok {
		return nil, fmt.Errorf("import: %q: %w", name, apperr.ErrNotFound)
	}
	if target.Kind == parser.KindFolder {
		return nil, fmt.Errorf("import: %q is a folder: %w", name, apperr.ErrInvalidArgument)
	}
	if dst.ItemExists(name) {
		return nil, fmt.Errorf("import: %q: %w", name, apperr.ErrAlreadyExists)
	}

	plan := &Plan{}
	visited := make(map[string]bool)
	var visit func(name, from string) error
	visit = func(name, from string) error {
		if visited[name] {
			return nil
		}
		visited[name] = true
		e, ok := listing[name]
		if !ok {
			return fmt.Errorf("import: %q referenced by %q is not in the source library: %w", name, from, apperr.ErrMissingDependency)
		}
		file := itemFile(root, e)
		if e.Kind == parser.KindSymbol {
			data, err := os.ReadFile(file)
			if errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("import: %q: %s: %w", name, e.Href, apperr.ErrMissingDependency)
			}
			if err != nil {
				return fmt.Errorf("import: %q: %w: %w", name, apperr.ErrIO, err)
			}
			res, err := parser.Parse(data)
			if err != nil {
				return fmt.Errorf("import: %q: %w", name, err)
			}
			for _, ref := range res.References {
				if dst.ItemExists(ref) {
					if !slices.Contains(plan.Skipped, ref) {
						plan.Skipped = append(plan.Skipped, ref)
					}
					continue
				}
				if err := visit(ref, name); err != nil {
					return err
				}
			}
		} else if _, err := os.Stat(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("import: %q: %s: %w", name, e.Href, apperr.ErrMissingDependency)
			}
			return fmt.Errorf("import: %q: %w: %w", name, apperr.ErrIO, err)
		}
		plan.Items = append(plan.Items, e)
		return nil
	}
	if err := visit(name, ""); err != nil {
		return nil, err
	}
	r.logger.Debug("import: resolved",
		slog.String("item", name), slog.Any("closure", plan.Names()))
	return plan, nil
}

// apply imports every planned entry, removing what it added if any step
// fails.
func (r *Resolver) apply(root string, plan *Plan, dst *library.Library) error {
	before := make(map[string]bool)
	for _, n := range dst.Names() {
		before[n] = true
	}
	var symbols []*library.SymbolItem
	for _, e := range plan.Items {
		it, err := dst.ImportItem(itemFile(root, e), library.AsName(e.Name))
		if err != nil {
			r.rollback(dst, before)
			return fmt.Errorf("import: %q: %w", e.Name, err)
		}
		if s, ok := it.(*library.SymbolItem); ok {
			symbols = append(symbols, s)
		}
	}
	// Cyclic references only resolve once the whole closure is present.
	for _, s := range symbols {
		dst.BindTimeline(s.Timeline)
	}
	return nil
}

func (r *Resolver) rollback(dst *library.Library, before map[string]bool) {
	added := slices.DeleteFunc(dst.Names(), func(n string) bool { return before[n] })
	for _, n := range slices.Backward(added) {
		if !dst.ItemExists(n) {
			continue
		}
		if err := dst.RemoveItem(n); err != nil {
			r.logger.Warn("import: rollback failed", slog.String("item", n), slog.String("error", err.Error()))
		}
	}
}
