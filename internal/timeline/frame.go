package timeline

import (
	"slices"

	"github.com/starford/xflkit/internal/bus"
	"github.com/starford/xflkit/internal/xmltree"
)

// Frame is a keyframe together with the continuation frames it governs:
// [StartFrame(), End()). Its position and length change only through the
// owning Layer and Timeline.
type Frame struct {
	Elements  []Element
	SoundName string
	// InPoint and OutPoint trim the sound, in 44kHz samples. Zero means untrimmed.
	InPoint  int
	OutPoint int

	start    int
	duration int
	sound    ref
	node     xmltree.NodeID
}

func newFrame(start, duration int) *Frame {
	return &Frame{start: start, duration: duration, node: xmltree.NoNode}
}

// StartFrame is the index of the keyframe.
func (f *Frame) StartFrame() int { return f.start }

// Duration is the number of frames this keyframe spans.
func (f *Frame) Duration() int { return f.duration }

// End returns the first frame index after the span.
func (f *Frame) End() int { return f.start + f.duration }

// Contains reports whether frame n falls inside the span.
func (f *Frame) Contains(n int) bool { return n >= f.start && n < f.End() }

// IsEmpty holds when the frame has no elements and no sound.
func (f *Frame) IsEmpty() bool { return len(f.Elements) == 0 && f.SoundName == "" }

// AddElement appends e on top of the frame's stacking order.
func (f *Frame) AddElement(e Element) { f.Elements = append(f.Elements, e) }

// SetSound attaches a sound item and binds it to the item's events.
// A nil bus leaves the reference unbound.
func (f *Frame) SetSound(name string, b *bus.Bus, itemID string) {
	f.sound.release()
	f.SoundName = name
	if b != nil {
		f.sound.bind(b, itemID, &f.SoundName)
	}
}

// BindSound binds the existing sound reference to itemID's events.
func (f *Frame) BindSound(b *bus.Bus, itemID string) { f.sound.bind(b, itemID, &f.SoundName) }

// SoundDangling reports whether the sound's item was removed.
func (f *Frame) SoundDangling() bool { return f.SoundName != "" && f.sound.dangling }

// ClearSound drops the sound reference and its trim markers.
func (f *Frame) ClearSound() {
	f.sound.release()
	f.sound.dangling = false
	f.SoundName = ""
	f.InPoint, f.OutPoint = 0, 0
}

// PruneDangling removes references to removed items and returns how many
// were dropped.
func (f *Frame) PruneDangling() int {
	n := 0
	f.Elements = slices.DeleteFunc(f.Elements, func(e Element) bool {
		r, ok := e.(Reference)
		if ok && r.Dangling() {
			e.release()
			n++
			return true
		}
		return false
	})
	if f.SoundDangling() {
		f.ClearSound()
		n++
	}
	return n
}

// copyContent returns elements cloned for a new keyframe.
func (f *Frame) copyContent() []Element {
	if len(f.Elements) == 0 {
		return nil
	}
	out := make([]Element, len(f.Elements))
	for i, e := range f.Elements {
		out[i] = e.clone()
	}
	return out
}

func (f *Frame) release() {
	for _, e := range f.Elements {
		e.release()
	}
	f.Elements = nil
	f.sound.release()
}
