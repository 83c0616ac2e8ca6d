package document

import (
	"fmt"

	"github.com/starford/xflkit/internal/apperr"
	"github.com/starford/xflkit/internal/library"
	"github.com/starford/xflkit/internal/timeline"
)

type placement struct {
	timeline  int
	layer     int
	frame     int
	x, y      float64
	haveLayer bool
	haveFrame bool
}

// PlaceOption configures AddItemToDocument.
type PlaceOption func(*placement)

// InTimeline targets document timeline i instead of the current one.
func InTimeline(i int) PlaceOption {
	return func(p *placement) { p.timeline = i }
}

// AtFrame targets the given frame of the given layer instead of the current layer and
// playhead.
func AtFrame(layer, frame int) PlaceOption {
	return func(p *placement) {
		p.layer, p.frame = layer, frame
		p.haveLayer, p.haveFrame = true, true
	}
}

// At sets the stage position of the placed instance.
func At(x, y float64) PlaceOption { return func(p *placement) { p.x, p.y = x, y } }

// AddItemToDocument places the library item name on a keyframe. Symbols
// become symbol instances and bitmaps become bitmap instances. Sounds attach
// to the frame and return a nil element. The placement is bound to the item
// so later renames and removals reach it.
func (d *Document) AddItemToDocument(name string, opts ...PlaceOption) (timeline.Element, error) {
	p := placement{timeline: d.current}
	for _, opt := range opts {
		opt(&p)
	}
	it, err := d.Library.Item(name)
	if err != nil {
		return nil, err
	}
	tl, err := d.Timeline(p.timeline)
	if err != nil {
		return nil, err
	}
	if !p.haveLayer {
		_, p.layer = tl.CurrentLayer()
		p.layer = max(p.layer, 0)
	}
	if !p.haveFrame {
		p.frame = tl.CurrentFrame()
	}
	layer, err := tl.Layer(p.layer)
	if err != nil {
		return nil, err
	}
	f, err := layer.GetFrame(p.frame)
	if err != nil {
		return nil, err
	}

	b := d.Library.Bus()
	switch v := it.(type) {
	case *library.SymbolItem:
		e := timeline.NewSymbolInstance(name, p.x, p.y)
		e.SymbolType = v.SymbolType
		e.Bind(b, v.ID())
		f.AddElement(e)
		return e, nil
	case *library.BitmapItem:
		e := timeline.NewInstance(name, p.x, p.y)
		e.Tag = "DOMBitmapInstance"
		e.Bind(b, v.ID())
		f.AddElement(e)
		return e, nil
	case *library.SoundItem:
		f.SetSound(name, b, v.ID())
		return nil, nil
	}
	return nil, fmt.Errorf("document: place %q: a %s cannot be placed: %w", name, it.Kind(), apperr.ErrInvalidArgument)
}

// RemoveItem removes name from the library and drops every reference to it
// from the document and symbol timelines. It returns the number of
// references dropped.
func (d *Document) RemoveItem(name string) (int, error) {
	if err := d.Library.RemoveItem(name); err != nil {
		return 0, err
	}
	n := 0
	for _, tl := range d.Timelines {
		n += tl.PruneDangling()
	}
	for s := range d.Library.Symbols() {
		n += s.Timeline.PruneDangling()
	}
	return n, nil
}

// Usage returns how many placements in the document reference name.
func (d *Document) Usage(name string) int {
	n := 0
	count := func(tl *timeline.Timeline) {
		for _, f := range tl.Keyframes() {
			if f.SoundName == name {
				n++
			}
		}
	}
	for _, tl := range d.Timelines {
		count(tl)
	}
	for s := range d.Library.Symbols() {
		count(s.Timeline)
	}
	d.Walk(func(_ *timeline.Timeline, _ *timeline.Frame, e timeline.Element) bool {
		if r, ok := e.(timeline.Reference); ok && r.ItemName() == name {
			n++
		}
		return true
	})
	return n
}
