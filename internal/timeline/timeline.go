// Package timeline implements layered keyframe timelines.
//
// A Timeline stacks Layers (index 0 is the top of the z-order). Each Layer is
// a sparse, sorted run of Frames; a Frame is a keyframe that governs every
// frame up to the next keyframe. Every layer of a timeline covers exactly
// GetFrameCount() frames after every mutating operation.
package timeline

import (
	"fmt"

	"github.com/starford/xflkit/internal/apperr"
	"github.com/starford/xflkit/internal/xmltree"
)

// Timeline is an ordered stack of layers sharing one frame axis.
type Timeline struct {
	Name string

	layers       []*Layer
	currentFrame int

	// src is the arena this timeline was decoded from; node handles held by
	// layers, frames and elements point into it.
	src  *xmltree.Tree
	node xmltree.NodeID
}

// New returns a timeline with no layers.
func New(name string) *Timeline {
	return &Timeline{Name: name, node: xmltree.NoNode}
}

// GetFrameCount returns the longest layer extent.
func (t *Timeline) GetFrameCount() int {
	n := 0
	for _, l := range t.layers {
		n = max(n, l.GetFrameCount())
	}
	return n
}

// GetLayerCount returns the number of layers.
func (t *Timeline) GetLayerCount() int { return len(t.layers) }

// Layers returns the layers in stacking order. The slice must not be modified.
func (t *Timeline) Layers() []*Layer { return t.layers }

// Layer returns the layer at index i.
func (t *Timeline) Layer(i int) (*Layer, error) {
	if i < 0 || i >= len(t.layers) {
		return nil, fmt.Errorf("timeline: layer %d of %d: %w", i, len(t.layers), apperr.ErrOutOfRange)
	}
	return t.layers[i], nil
}

// AddNewLayer appends a layer of the given type with a single empty
// keyframe spanning the whole timeline.
func (t *Timeline) AddNewLayer(name, layerType string) (*Layer, error) {
	typ, err := ParseLayerType(layerType)
	if err != nil {
		return nil, err
	}
	l := newLayer(name, typ, t.GetFrameCount())
	t.layers = append(t.layers, l)
	return l, nil
}

// SetCurrentLayer makes layer i the only current layer.
func (t *Timeline) SetCurrentLayer(i int) error {
	if _, err := t.Layer(i); err != nil {
		return err
	}
	for j, l := range t.layers {
		l.Current = j == i
	}
	return nil
}

// SetSelectedLayer selects layer i. Without appendSel the previous
// selection is replaced.
func (t *Timeline) SetSelectedLayer(i int, appendSel bool) error {
	if _, err := t.Layer(i); err != nil {
		return err
	}
	for j, l := range t.layers {
		if j == i {
			l.Selected = true
		} else if !appendSel {
			l.Selected = false
		}
	}
	return nil
}

// CurrentLayer returns the current layer and its index, or nil and -1.
func (t *Timeline) CurrentLayer() (*Layer, int) {
	for i, l := range t.layers {
		if l.Current {
			return l, i
		}
	}
	return nil, -1
}

// SelectedLayers returns the indices of selected layers.
func (t *Timeline) SelectedLayers() []int {
	var out []int
	for i, l := range t.layers {
		if l.Selected {
			out = append(out, i)
		}
	}
	return out
}

// CurrentFrame returns the playhead position.
func (t *Timeline) CurrentFrame() int { return t.currentFrame }

// SetCurrentFrame moves the playhead.
func (t *Timeline) SetCurrentFrame(n int) error {
	if n < 0 || n >= max(t.GetFrameCount(), 1) {
		return fmt.Errorf("timeline: current frame %d of %d: %w", n, t.GetFrameCount(), apperr.ErrOutOfRange)
	}
	t.currentFrame = n
	return nil
}

// InsertFrames adds n frames at position at in every layer.
func (t *Timeline) InsertFrames(at, n int) error {
	total := t.GetFrameCount()
	if n < 1 {
		return fmt.Errorf("timeline: insert %d frames: %w", n, apperr.ErrInvalidArgument)
	}
	if at < 0 || at > total {
		return fmt.Errorf("timeline: insert at %d of %d: %w", at, total, apperr.ErrOutOfRange)
	}
	for _, l := range t.layers {
		l.insertFrames(at, n)
	}
	return nil
}

// RemoveFrames deletes frames [at, at+n) from every layer. A timeline keeps
// at least one frame.
func (t *Timeline) RemoveFrames(at, n int) error {
	total := t.GetFrameCount()
	if n < 1 {
		return fmt.Errorf("timeline: remove %d frames: %w", n, apperr.ErrInvalidArgument)
	}
	if at < 0 || at+n > total {
		return fmt.Errorf("timeline: remove [%d, %d) of %d: %w", at, at+n, total, apperr.ErrOutOfRange)
	}
	if n >= total {
		return fmt.Errorf("timeline: remove all %d frames: %w", total, apperr.ErrInvalidOperation)
	}
	for _, l := range t.layers {
		l.removeFrames(at, n)
	}
	if t.currentFrame >= t.GetFrameCount() {
		t.currentFrame = t.GetFrameCount() - 1
	}
	return nil
}

// Pad lengthens every short layer to the timeline's frame count. A layer
// never covers fewer than one frame.
func (t *Timeline) Pad() {
	total := max(t.GetFrameCount(), 1)
	for _, l := range t.layers {
		l.padTo(total)
	}
}

// Release drops every library binding held by the timeline's content.
func (t *Timeline) Release() {
	for _, l := range t.layers {
		l.release()
	}
}
