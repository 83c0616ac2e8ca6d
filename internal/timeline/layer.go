package timeline

import (
	"fmt"
	"slices"

	"github.com/starford/xflkit/internal/apperr"
	"github.com/starford/xflkit/internal/xmltree"
)

// LayerType is the role of a layer. A layer has exactly one type.
type LayerType uint8

const (
	LayerNormal LayerType = iota
	LayerGuide
	LayerFolder
	LayerMask
)

var layerTypeNames = map[string]LayerType{
	"normal": LayerNormal,
	"guide":  LayerGuide,
	"folder": LayerFolder,
	"mask":   LayerMask,
}

// ParseLayerType maps the file's layerType string to a LayerType.
func ParseLayerType(s string) (LayerType, error) {
	t, ok := layerTypeNames[s]
	if !ok {
		return 0, fmt.Errorf("timeline: layer type %q: %w", s, apperr.ErrInvalidArgument)
	}
	return t, nil
}

func (t LayerType) String() string {
	for name, v := range layerTypeNames {
		if v == t {
			return name
		}
	}
	return fmt.Sprintf("LayerType(%d)", uint8(t))
}

// Layer is an ordered run of frames covering [0, GetFrameCount()) with no
// gaps or overlaps. Frames are sorted by strictly increasing StartFrame.
type Layer struct {
	Name     string
	Type     LayerType
	Color    string
	Locked   bool
	Hidden   bool
	Current  bool
	Selected bool

	frames []*Frame
	node   xmltree.NodeID
}

func newLayer(name string, typ LayerType, frameCount int) *Layer {
	if frameCount < 1 {
		frameCount = 1
	}
	return &Layer{
		Name:   name,
		Type:   typ,
		frames: []*Frame{newFrame(0, frameCount)},
		node:   xmltree.NoNode,
	}
}

// Frames returns the keyframes in order. The slice must not be modified.
func (l *Layer) Frames() []*Frame { return l.frames }

// GetFrameCount returns the total number of frames covered by the layer.
func (l *Layer) GetFrameCount() int {
	if len(l.frames) == 0 {
		return 0
	}
	return l.frames[len(l.frames)-1].End()
}

// KeyframeIndices returns the StartFrame of every keyframe.
func (l *Layer) KeyframeIndices() []int {
	out := make([]int, len(l.frames))
	for i, f := range l.frames {
		out[i] = f.start
	}
	return out
}

// search returns the position of the span containing n.
func (l *Layer) search(n int) (int, error) {
	if n < 0 || n >= l.GetFrameCount() {
		return 0, fmt.Errorf("timeline: frame %d of %d: %w", n, l.GetFrameCount(), apperr.ErrOutOfRange)
	}
	i, found := slices.BinarySearchFunc(l.frames, n, func(f *Frame, n int) int {
		return f.start - n
	})
	if !found {
		i-- // n is a continuation of the preceding keyframe
	}
	return i, nil
}

// GetFrame returns the keyframe whose span contains frame n.
func (l *Layer) GetFrame(n int) (*Frame, error) {
	i, err := l.search(n)
	if err != nil {
		return nil, err
	}
	return l.frames[i], nil
}

// IsKeyframe reports whether n is the StartFrame of a keyframe.
func (l *Layer) IsKeyframe(n int) bool {
	_, found := slices.BinarySearchFunc(l.frames, n, func(f *Frame, n int) int {
		return f.start - n
	})
	return found
}

// ClearKeyframe merges the keyframe starting at index into its predecessor.
// It reports false without changing anything when index is a continuation
// frame. The first keyframe has no predecessor and cannot be cleared.
func (l *Layer) ClearKeyframe(index int) (bool, error) {
	i, err := l.search(index)
	if err != nil {
		return false, err
	}
	f := l.frames[i]
	if f.start != index {
		return false, nil
	}
	if i == 0 {
		return false, fmt.Errorf("timeline: clear keyframe 0 of %q: %w", l.Name, apperr.ErrInvalidOperation)
	}
	prev := l.frames[i-1]
	prev.duration += f.duration
	f.release()
	l.frames = slices.Delete(l.frames, i, i+1)
	return true, nil
}

// ConvertToKeyframes makes every frame in [start, end] a keyframe, splitting
// the enclosing span and copying its elements. It reports whether any new
// keyframe was created.
func (l *Layer) ConvertToKeyframes(start, end int) (bool, error) {
	if start > end {
		return false, fmt.Errorf("timeline: keyframe range [%d, %d]: %w", start, end, apperr.ErrInvalidArgument)
	}
	if _, err := l.search(start); err != nil {
		return false, err
	}
	if _, err := l.search(end); err != nil {
		return false, err
	}

	created := false
	for n := start; n <= end; n++ {
		i, _ := l.search(n)
		f := l.frames[i]
		if f.start == n {
			continue
		}
		split := newFrame(n, f.End()-n)
		split.Elements = f.copyContent()
		// Unmodeled frame attributes (labels, tween settings) carry over.
		split.node = f.node
		f.duration = n - f.start
		l.frames = slices.Insert(l.frames, i+1, split)
		created = true
	}
	return created, nil
}

// insertFrames lengthens the span containing at by n frames. at may equal
// the frame count to lengthen the last span. Timeline.InsertFrames validates
// the range and applies it to every layer.
func (l *Layer) insertFrames(at, n int) {
	i := len(l.frames) - 1
	if at < l.GetFrameCount() {
		i, _ = l.search(at)
	}
	l.frames[i].duration += n
	for _, f := range l.frames[i+1:] {
		f.start += n
	}
}

// removeFrames deletes frames [at, at+n). Keyframes whose span vanishes are
// dropped. Callers guarantee the range leaves at least one frame.
func (l *Layer) removeFrames(at, n int) {
	shift := func(x int) int {
		switch {
		case x <= at:
			return x
		case x <= at+n:
			return at
		default:
			return x - n
		}
	}
	kept := l.frames[:0]
	for _, f := range l.frames {
		s, e := shift(f.start), shift(f.End())
		if e <= s {
			f.release()
			continue
		}
		f.start, f.duration = s, e-s
		kept = append(kept, f)
	}
	clear(l.frames[len(kept):])
	l.frames = kept
}

// padTo lengthens the last span so the layer covers total frames.
func (l *Layer) padTo(total int) {
	if len(l.frames) == 0 {
		l.frames = []*Frame{newFrame(0, total)}
		return
	}
	if c := l.GetFrameCount(); c < total {
		l.frames[len(l.frames)-1].duration += total - c
	}
}

func (l *Layer) release() {
	for _, f := range l.frames {
		f.release()
	}
}
