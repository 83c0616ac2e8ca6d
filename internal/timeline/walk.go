package timeline

import "iter"

// Keyframes yields every keyframe of every layer, top layer first.
func (t *Timeline) Keyframes() iter.Seq2[*Layer, *Frame] {
	return func(yield func(*Layer, *Frame) bool) {
		for _, l := range t.layers {
			for _, f := range l.frames {
				if !yield(l, f) {
					return
				}
			}
		}
	}
}

// Walk calls fn for every element placed on the timeline. Returning false
// stops the walk.
func (t *Timeline) Walk(fn func(f *Frame, e Element) bool) {
	for _, f := range t.Keyframes() {
		for _, e := range f.Elements {
			if !fn(f, e) {
				return
			}
		}
	}
}

// ReferencedNames lists library names used by instances and frame sounds,
// in first-use order without repeats.
func (t *Timeline) ReferencedNames() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, f := range t.Keyframes() {
		for _, e := range f.Elements {
			if r, ok := e.(Reference); ok {
				add(r.ItemName())
			}
		}
		add(f.SoundName)
	}
	return out
}

// PruneDangling drops every reference whose item was removed and returns how
// many were dropped.
func (t *Timeline) PruneDangling() int {
	n := 0
	for _, f := range t.Keyframes() {
		n += f.PruneDangling()
	}
	return n
}
