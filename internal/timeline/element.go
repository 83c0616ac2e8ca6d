package timeline

import (
	"github.com/starford/xflkit/internal/bus"
	"github.com/starford/xflkit/internal/edge"
	"github.com/starford/xflkit/internal/xmltree"
)

// Element is placed content of a frame: *Shape, *Instance, *SymbolInstance
// or *Text. The set is closed.
type Element interface {
	isElement()
	clone() Element
	release()
}

// Reference is an element bound to a library item by name.
type Reference interface {
	Element
	ItemName() string
	Bind(b *bus.Bus, itemID string)
	Dangling() bool
}

var (
	_ Reference = (*Instance)(nil)
	_ Reference = (*SymbolInstance)(nil)
	_ Element   = (*Shape)(nil)
	_ Element   = (*Text)(nil)
)

// Matrix is a 2D affine placement.
type Matrix struct {
	A, B, C, D float64
	TX, TY     float64
}

// Identity returns the identity matrix.
func Identity() Matrix { return Matrix{A: 1, D: 1} }

// ref ties an element to a library item through a bus subscription.
type ref struct {
	sub      *bus.Subscription
	dangling bool
}

func (r *ref) handler(name *string) bus.Handler {
	return func(ev bus.Event) {
		switch ev.Kind {
		case bus.Renamed:
			*name = ev.NewName
		case bus.Removed:
			r.dangling = true
		}
	}
}

func (r *ref) bind(b *bus.Bus, itemID string, name *string) {
	r.release()
	r.dangling = false
	r.sub = b.Subscribe(itemID, r.handler(name))
}

func (r *ref) cloneInto(dst *ref, name *string) {
	dst.dangling = r.dangling
	if r.sub != nil {
		dst.sub = r.sub.Rebind(dst.handler(name))
	}
}

func (r *ref) release() {
	if r.sub != nil {
		r.sub.Close()
		r.sub = nil
	}
}

// Instance places a library item (bitmap, video, sound clip) by name.
type Instance struct {
	LibraryItemName string
	Matrix          Matrix
	// Tag is the element name used on save; DOMBitmapInstance when empty.
	Tag string

	ref  ref
	node xmltree.NodeID
}

// NewInstance returns an unbound instance of name at (x, y).
func NewInstance(name string, x, y float64) *Instance {
	m := Identity()
	m.TX, m.TY = x, y
	return &Instance{LibraryItemName: name, Matrix: m, node: xmltree.NoNode}
}

func (*Instance) isElement() {}

// ItemName returns the referenced library name.
func (i *Instance) ItemName() string { return i.LibraryItemName }

// Bind subscribes the instance to rename/remove events of itemID.
func (i *Instance) Bind(b *bus.Bus, itemID string) { i.ref.bind(b, itemID, &i.LibraryItemName) }

// Dangling reports whether the referenced item was removed.
func (i *Instance) Dangling() bool { return i.ref.dangling }

func (i *Instance) release() { i.ref.release() }

func (i *Instance) clone() Element {
	c := &Instance{LibraryItemName: i.LibraryItemName, Matrix: i.Matrix, Tag: i.Tag, node: i.node}
	i.ref.cloneInto(&c.ref, &c.LibraryItemName)
	return c
}

// SymbolInstance places a symbol item.
type SymbolInstance struct {
	Instance
	SymbolType string
	Loop       string
	FirstFrame int
}

// NewSymbolInstance returns an unbound symbol instance of name at (x, y).
func NewSymbolInstance(name string, x, y float64) *SymbolInstance {
	return &SymbolInstance{Instance: *NewInstance(name, x, y)}
}

func (s *SymbolInstance) clone() Element {
	c := &SymbolInstance{
		Instance:   Instance{LibraryItemName: s.LibraryItemName, Matrix: s.Matrix, Tag: s.Tag, node: s.node},
		SymbolType: s.SymbolType,
		Loop:       s.Loop,
		FirstFrame: s.FirstFrame,
	}
	s.ref.cloneInto(&c.ref, &c.LibraryItemName)
	return c
}

// Style is a fill or stroke style. Styles decoded from a file keep their
// subtree in the source arena; new styles are solid colors.
type Style struct {
	Index int
	Color string

	node xmltree.NodeID
}

// NewSolidStyle returns a solid-color style.
func NewSolidStyle(index int, color string) Style {
	return Style{Index: index, Color: color, node: xmltree.NoNode}
}

// Edge is one edges record of a shape.
type Edge struct {
	FillStyle0  int
	FillStyle1  int
	StrokeStyle int
	Edges       string

	node xmltree.NodeID
}

// Segments decodes the edge string. An empty string has no segments.
func (e Edge) Segments() ([]edge.Segment, error) {
	if e.Edges == "" {
		return nil, nil
	}
	return edge.DecodeAll(e.Edges)
}

// Shape is raw vector content.
type Shape struct {
	Fills   []Style
	Strokes []Style
	Edges   []Edge
	Matrix  Matrix

	node xmltree.NodeID
}

// NewShape returns an empty shape.
func NewShape() *Shape { return &Shape{Matrix: Identity(), node: xmltree.NoNode} }

func (*Shape) isElement() {}
func (*Shape) release()   {}

func (s *Shape) clone() Element {
	c := *s
	c.Fills = append([]Style(nil), s.Fills...)
	c.Strokes = append([]Style(nil), s.Strokes...)
	c.Edges = append([]Edge(nil), s.Edges...)
	return &c
}

// Paths decodes every edge record into path command strings.
func (s *Shape) Paths() ([]string, error) {
	var out []string
	for _, e := range s.Edges {
		segs, err := e.Segments()
		if err != nil {
			return nil, err
		}
		out = append(out, edge.EncodeAll(segs)...)
	}
	return out, nil
}

// TextKind selects the text element flavor.
type TextKind uint8

const (
	StaticText TextKind = iota
	DynamicText
	InputText
)

// TextAttrs styles one run.
type TextAttrs struct {
	Bold      bool
	Italic    bool
	Face      string
	Size      float64
	FillColor string
}

// TextRun is a span of characters sharing attributes.
type TextRun struct {
	Characters string
	Attrs      TextAttrs

	node xmltree.NodeID
}

// Text is a text field.
type Text struct {
	Kind   TextKind
	Runs   []TextRun
	Matrix Matrix
	Width  float64
	Height float64

	node xmltree.NodeID
}

// NewText returns a static text element holding one run.
func NewText(characters string, attrs TextAttrs) *Text {
	return &Text{
		Runs:   []TextRun{{Characters: characters, Attrs: attrs}},
		Matrix: Identity(),
		node:   xmltree.NoNode,
	}
}

func (*Text) isElement() {}
func (*Text) release()   {}

func (t *Text) clone() Element {
	c := *t
	c.Runs = append([]TextRun(nil), t.Runs...)
	return &c
}

// String returns the concatenated characters of every run.
func (t *Text) String() string {
	var s string
	for _, r := range t.Runs {
		s += r.Characters
	}
	return s
}
