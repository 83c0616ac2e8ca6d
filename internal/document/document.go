// Package document composes timelines and a library into an XFL document
// and moves it between memory and its two package forms: an XFL folder and a
// zipped .fla archive.
package document

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/starford/xflkit/internal/apperr"
	"github.com/starford/xflkit/internal/library"
	"github.com/starford/xflkit/internal/storage"
	"github.com/starford/xflkit/internal/timeline"
	"github.com/starford/xflkit/internal/xmltree"
)

// DocumentFile is the package path of the document descriptor.
const DocumentFile = "DOMDocument.xml"

// Stage defaults for new documents.
const (
	DefaultFrameRate = 24
	DefaultWidth     = 550
	DefaultHeight    = 400
)

// Document is one open XFL document.
type Document struct {
	FrameRate float64
	Width     int
	Height    int
	Timelines []*timeline.Timeline
	Library   *library.Library
	// Path is the folder or .fla the document was opened from.
	Path string

	current int
	logger  *slog.Logger

	src  *xmltree.Tree
	node xmltree.NodeID
	// pkg is the package the document was read from; media bytes are
	// copied from it on save.
	pkg fs.FS
}

type options struct {
	logger    *slog.Logger
	store     storage.Provider
	frameRate float64
	width     int
	height    int
}

// Option configures New, Open and Load.
type Option func(*options)

// WithLogger sets the logger used for load warnings.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithStore backs the library with p so item edits move package files.
func WithStore(p storage.Provider) Option { return func(o *options) { o.store = p } }

// WithFrameRate sets the frame rate of a new document.
func WithFrameRate(r float64) Option { return func(o *options) { o.frameRate = r } }

// WithStage sets the stage size of a new document.
func WithStage(width, height int) Option {
	return func(o *options) { o.width, o.height = width, height }
}

func buildOptions(opts []Option) options {
	o := options{frameRate: DefaultFrameRate, width: DefaultWidth, height: DefaultHeight}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// New returns an empty document: one timeline "Scene 1" holding one normal
// layer "Layer 1" of one frame.
func New(opts ...Option) *Document {
	o := buildOptions(opts)
	tl := timeline.New("Scene 1")
	_, _ = tl.AddNewLayer("Layer 1", "normal")
	_ = tl.SetCurrentLayer(0)
	return &Document{
		FrameRate: o.frameRate,
		Width:     o.width,
		Height:    o.height,
		Timelines: []*timeline.Timeline{tl},
		Library:   library.New(library.WithLogger(o.logger), library.WithStore(o.store)),
		logger:    o.logger,
	}
}

// Open loads an XFL folder or a .fla archive.
func Open(p string, opts ...Option) (*Document, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("document: open %s: %w: %w", p, apperr.ErrIO, err)
	}
	var pkg fs.FS
	switch {
	case info.IsDir():
		pkg = os.DirFS(p)
	case strings.EqualFold(filepath.Ext(p), ".fla"):
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("document: open %s: %w: %w", p, apperr.ErrIO, err)
		}
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, fmt.Errorf("document: open %s: %w: %w", p, apperr.ErrMalformedInput, err)
		}
		pkg = zr
	default:
		return nil, fmt.Errorf("document: open %s: not an XFL folder or .fla: %w", p, apperr.ErrInvalidArgument)
	}
	d, err := Load(pkg, opts...)
	if err != nil {
		return nil, err
	}
	d.Path = p
	return d, nil
}

// Load reads a document from the package rooted at pkg.
func Load(pkg fs.FS, opts ...Option) (*Document, error) {
	o := buildOptions(opts)
	data, err := fs.ReadFile(pkg, DocumentFile)
	if err != nil {
		return nil, fmt.Errorf("document: read %s: %w: %w", DocumentFile, apperr.ErrIO, err)
	}
	tree, err := xmltree.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("document: %w", err)
	}
	root := tree.Root()
	if tree.Name(root) != "DOMDocument" {
		return nil, fmt.Errorf("document: root <%s>: %w", tree.Name(root), apperr.ErrMalformedInput)
	}

	d := &Document{
		logger: o.logger,
		src:    tree,
		node:   root,
		pkg:    pkg,
	}
	if d.FrameRate, err = strconv.ParseFloat(tree.AttrOr(root, "frameRate", "24"), 64); err != nil {
		return nil, fmt.Errorf("document: frameRate: %w", apperr.ErrMalformedInput)
	}
	if d.Width, err = strconv.Atoi(tree.AttrOr(root, "width", "550")); err != nil {
		return nil, fmt.Errorf("document: width: %w", apperr.ErrMalformedInput)
	}
	if d.Height, err = strconv.Atoi(tree.AttrOr(root, "height", "400")); err != nil {
		return nil, fmt.Errorf("document: height: %w", apperr.ErrMalformedInput)
	}
	current, err := strconv.Atoi(tree.AttrOr(root, "currentTimeline", "1"))
	if err != nil {
		return nil, fmt.Errorf("document: currentTimeline: %w", apperr.ErrMalformedInput)
	}

	read := func(href string) ([]byte, error) {
		b, err := fs.ReadFile(pkg, path.Join(library.Root, href))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", apperr.ErrIO, err)
		}
		return b, nil
	}
	d.Library, err = library.Decode(tree, root, read,
		library.WithLogger(o.logger), library.WithStore(o.store))
	if err != nil {
		return nil, fmt.Errorf("document: %w", err)
	}

	for _, id := range tree.ChildrenNamed(tree.Child(root, "timelines"), "DOMTimeline") {
		tl, err := timeline.Decode(tree, id, o.logger)
		if err != nil {
			return nil, fmt.Errorf("document: %w", err)
		}
		for _, name := range d.Library.BindTimeline(tl) {
			o.logger.Warn("document: unresolved reference",
				slog.String("timeline", tl.Name), slog.String("item", name))
		}
		d.Timelines = append(d.Timelines, tl)
	}
	if len(d.Timelines) == 0 {
		return nil, fmt.Errorf("document: no timelines: %w", apperr.ErrMalformedInput)
	}
	d.current = min(max(current-1, 0), len(d.Timelines)-1)
	return d, nil
}

// CurrentTimeline returns the timeline being edited.
func (d *Document) CurrentTimeline() *timeline.Timeline { return d.Timelines[d.current] }

// CurrentTimelineIndex returns the index of the timeline being edited.
func (d *Document) CurrentTimelineIndex() int { return d.current }

// SetCurrentTimeline selects the timeline being edited.
func (d *Document) SetCurrentTimeline(i int) error {
	if i < 0 || i >= len(d.Timelines) {
		return fmt.Errorf("document: timeline %d of %d: %w", i, len(d.Timelines), apperr.ErrOutOfRange)
	}
	d.current = i
	return nil
}

// Timeline returns timeline i.
func (d *Document) Timeline(i int) (*timeline.Timeline, error) {
	if i < 0 || i >= len(d.Timelines) {
		return nil, fmt.Errorf("document: timeline %d of %d: %w", i, len(d.Timelines), apperr.ErrOutOfRange)
	}
	return d.Timelines[i], nil
}

// Close drops every library binding held by the document's content.
func (d *Document) Close() {
	for _, tl := range d.Timelines {
		tl.Release()
	}
	for s := range d.Library.Symbols() {
		s.Timeline.Release()
	}
}
