package workspace

import (
	"context"
	"fmt"

	"github.com/starford/xflkit/internal/apperr"
	"github.com/starford/xflkit/internal/document"
	"github.com/starford/xflkit/internal/timeline"
)

// ElementInfo describes one element of a frame.
type ElementInfo struct {
	Type     string  `json:"type"`
	Item     string  `json:"item,omitempty"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Text     string  `json:"text,omitempty"`
	Edges    int     `json:"edges,omitempty"`
	Dangling bool    `json:"dangling,omitempty"`
}

// FrameInfo describes the keyframe governing one frame of a layer.
type FrameInfo struct {
	Timeline   int           `json:"timeline"`
	Layer      int           `json:"layer"`
	Frame      int           `json:"frame"`
	StartFrame int           `json:"start_frame"`
	Duration   int           `json:"duration"`
	Keyframe   bool          `json:"keyframe"`
	Sound      string        `json:"sound,omitempty"`
	Elements   []ElementInfo `json:"elements"`
}

// LayerInfo describes one layer.
type LayerInfo struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Frames    int    `json:"frames"`
	Keyframes []int  `json:"keyframes"`
}

func describe(e timeline.Element) ElementInfo {
	switch v := e.(type) {
	case *timeline.SymbolInstance:
		return ElementInfo{Type: "symbol", Item: v.LibraryItemName, X: v.Matrix.TX, Y: v.Matrix.TY, Dangling: v.Dangling()}
	case *timeline.Instance:
		return ElementInfo{Type: "bitmap", Item: v.LibraryItemName, X: v.Matrix.TX, Y: v.Matrix.TY, Dangling: v.Dangling()}
	case *timeline.Shape:
		return ElementInfo{Type: "shape", X: v.Matrix.TX, Y: v.Matrix.TY, Edges: len(v.Edges)}
	case *timeline.Text:
		return ElementInfo{Type: "text", X: v.Matrix.TX, Y: v.Matrix.TY, Text: v.String()}
	}
	return ElementInfo{Type: fmt.Sprintf("%T", e)}
}

func (s *Service) layer(tl, layer int) (*timeline.Layer, error) {
	t, err := s.doc.Timeline(tl)
	if err != nil {
		return nil, err
	}
	return t.Layer(layer)
}

// Layers lists the layers of timeline tl.
func (s *Service) Layers(_ context.Context, tl int) ([]LayerInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.doc.Timeline(tl)
	if err != nil {
		return nil, err
	}
	out := make([]LayerInfo, len(t.Layers()))
	for i, l := range t.Layers() {
		out[i] = LayerInfo{
			Index:     i,
			Name:      l.Name,
			Type:      l.Type.String(),
			Frames:    l.GetFrameCount(),
			Keyframes: l.KeyframeIndices(),
		}
	}
	return out, nil
}

// Frame describes frame n of a layer.
func (s *Service) Frame(_ context.Context, tl, layer, n int) (*FrameInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame(tl, layer, n)
}

func (s *Service) frame(tl, layer, n int) (*FrameInfo, error) {
	l, err := s.layer(tl, layer)
	if err != nil {
		return nil, err
	}
	f, err := l.GetFrame(n)
	if err != nil {
		return nil, err
	}
	out := &FrameInfo{
		Timeline:   tl,
		Layer:      layer,
		Frame:      n,
		StartFrame: f.StartFrame(),
		Duration:   f.Duration(),
		Keyframe:   f.StartFrame() == n,
		Sound:      f.SoundName,
		Elements:   make([]ElementInfo, len(f.Elements)),
	}
	for i, e := range f.Elements {
		out.Elements[i] = describe(e)
	}
	return out, nil
}

// AddLayer appends a layer to timeline tl.
func (s *Service) AddLayer(_ context.Context, tl int, name, layerType string) (*LayerInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.doc.Timeline(tl)
	if err != nil {
		return nil, err
	}
	l, err := t.AddNewLayer(name, layerType)
	if err != nil {
		return nil, err
	}
	if err := s.persist(); err != nil {
		return nil, err
	}
	return &LayerInfo{
		Index:     t.GetLayerCount() - 1,
		Name:      l.Name,
		Type:      l.Type.String(),
		Frames:    l.GetFrameCount(),
		Keyframes: l.KeyframeIndices(),
	}, nil
}

// InsertFrames inserts n frames at frame at on every layer of timeline tl.
func (s *Service) InsertFrames(_ context.Context, tl, at, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.doc.Timeline(tl)
	if err != nil {
		return err
	}
	if err := t.InsertFrames(at, n); err != nil {
		return err
	}
	return s.persist()
}

// RemoveFrames removes n frames starting at frame at from every layer of
// timeline tl.
func (s *Service) RemoveFrames(_ context.Context, tl, at, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.doc.Timeline(tl)
	if err != nil {
		return err
	}
	if err := t.RemoveFrames(at, n); err != nil {
		return err
	}
	return s.persist()
}

// ConvertToKeyframes makes every frame in [start, end] of a layer a keyframe.
// changed is false when they already were.
func (s *Service) ConvertToKeyframes(_ context.Context, tl, layer, start, end int) (changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.layer(tl, layer)
	if err != nil {
		return false, err
	}
	if changed, err = l.ConvertToKeyframes(start, end); err != nil || !changed {
		return changed, err
	}
	return true, s.persist()
}

// ClearKeyframe merges keyframe n of a layer into the one before it.
func (s *Service) ClearKeyframe(_ context.Context, tl, layer, n int) (changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.layer(tl, layer)
	if err != nil {
		return false, err
	}
	if changed, err = l.ClearKeyframe(n); err != nil || !changed {
		return changed, err
	}
	return true, s.persist()
}

// ShapePaths decodes the edges of element i of frame n into path command
// strings.
func (s *Service) ShapePaths(_ context.Context, tl, layer, n, i int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.layer(tl, layer)
	if err != nil {
		return nil, err
	}
	f, err := l.GetFrame(n)
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= len(f.Elements) {
		return nil, fmt.Errorf("workspace: element %d of %d: %w", i, len(f.Elements), apperr.ErrOutOfRange)
	}
	shape, ok := f.Elements[i].(*timeline.Shape)
	if !ok {
		return nil, fmt.Errorf("workspace: element %d is not a shape: %w", i, apperr.ErrInvalidArgument)
	}
	paths, err := shape.Paths()
	if err != nil {
		return nil, err
	}
	return nonNil(paths), nil
}

// Placement targets one frame of one layer of one timeline.
type Placement struct {
	Timeline int
	Layer    int
	Frame    int
	X, Y     float64
}

// Place adds the library item name to the frame p targets and returns the
// resulting frame.
func (s *Service) Place(_ context.Context, name string, p Placement) (*FrameInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.doc.AddItemToDocument(name,
		document.InTimeline(p.Timeline),
		document.AtFrame(p.Layer, p.Frame),
		document.At(p.X, p.Y))
	if err != nil {
		return nil, err
	}
	if err := s.persist(); err != nil {
		return nil, err
	}
	return s.frame(p.Timeline, p.Layer, p.Frame)
}
