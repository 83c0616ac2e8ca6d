package timeline

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/starford/xflkit/internal/apperr"
	"github.com/starford/xflkit/internal/xmltree"
)

// Element names used by the XFL timeline markup.
const (
	tagTimeline       = "DOMTimeline"
	tagLayer          = "DOMLayer"
	tagFrame          = "DOMFrame"
	tagShape          = "DOMShape"
	tagSymbolInstance = "DOMSymbolInstance"
	tagBitmapInstance = "DOMBitmapInstance"
	tagStaticText     = "DOMStaticText"
	tagDynamicText    = "DOMDynamicText"
	tagInputText      = "DOMInputText"
)

var instanceTags = map[string]bool{
	tagBitmapInstance:         true,
	"DOMVideoInstance":        true,
	"DOMCompiledClipInstance": true,
}

var textTags = map[string]TextKind{
	tagStaticText:  StaticText,
	tagDynamicText: DynamicText,
	tagInputText:   InputText,
}

// decoder reads attributes and keeps the first conversion error.
type decoder struct {
	tree   *xmltree.Tree
	logger *slog.Logger
	err    error
}

func (d *decoder) fail(id xmltree.NodeID, name, value string) {
	if d.err == nil {
		d.err = fmt.Errorf("timeline: <%s %s=%q>: %w", d.tree.Name(id), name, value, apperr.ErrMalformedInput)
	}
}

func (d *decoder) intAttr(id xmltree.NodeID, name string, def int) int {
	v, ok := d.tree.Attr(id, name)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		d.fail(id, name, v)
		return def
	}
	return n
}

func (d *decoder) floatAttr(id xmltree.NodeID, name string, def float64) float64 {
	v, ok := d.tree.Attr(id, name)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		d.fail(id, name, v)
		return def
	}
	return f
}

func (d *decoder) boolAttr(id xmltree.NodeID, name string, def bool) bool {
	v, ok := d.tree.Attr(id, name)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		d.fail(id, name, v)
		return def
	}
	return b
}

// Decode builds a timeline from the DOMTimeline element id of tree. The
// tree is retained so Encode can carry attributes the model does not cover.
// Unknown element kinds are skipped with a warning.
func Decode(tree *xmltree.Tree, id xmltree.NodeID, logger *slog.Logger) (*Timeline, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if tree.Name(id) != tagTimeline {
		return nil, fmt.Errorf("timeline: decode: expected <%s>, got <%s>: %w", tagTimeline, tree.Name(id), apperr.ErrMalformedInput)
	}
	d := &decoder{tree: tree, logger: logger}
	t := &Timeline{
		Name: tree.AttrOr(id, "name", ""),
		src:  tree,
		node: id,
	}
	for _, lid := range tree.ChildrenNamed(tree.Child(id, "layers"), tagLayer) {
		l, err := d.layer(lid)
		if err != nil {
			return nil, err
		}
		t.layers = append(t.layers, l)
	}
	// At most one layer is current; the first one marked wins.
	if _, i := t.CurrentLayer(); i >= 0 {
		for _, l := range t.layers[i+1:] {
			l.Current = false
		}
	}
	current := d.intAttr(id, "currentFrame", 0)
	if d.err != nil {
		return nil, d.err
	}
	t.Pad()
	t.currentFrame = min(max(current, 0), max(t.GetFrameCount()-1, 0))
	return t, nil
}

func (d *decoder) layer(id xmltree.NodeID) (*Layer, error) {
	tree := d.tree
	l := &Layer{
		Name:     tree.AttrOr(id, "name", ""),
		Color:    tree.AttrOr(id, "color", ""),
		Locked:   d.boolAttr(id, "locked", false),
		Hidden:   !d.boolAttr(id, "visible", true),
		Current:  d.boolAttr(id, "current", false),
		Selected: d.boolAttr(id, "isSelected", false),
		node:     id,
	}
	if s, ok := tree.Attr(id, "layerType"); ok {
		typ, err := ParseLayerType(s)
		if err != nil {
			return nil, fmt.Errorf("timeline: layer %q: %w: %w", l.Name, apperr.ErrMalformedInput, err)
		}
		l.Type = typ
	}

	for _, fid := range tree.ChildrenNamed(tree.Child(id, "frames"), tagFrame) {
		idx, ok := tree.Attr(fid, "index")
		start, err := strconv.Atoi(idx)
		if !ok || err != nil || start < 0 {
			return nil, fmt.Errorf("timeline: layer %q: frame index %q: %w", l.Name, idx, apperr.ErrMalformedInput)
		}
		f := newFrame(start, max(d.intAttr(fid, "duration", 1), 1))
		f.node = fid
		f.SoundName = tree.AttrOr(fid, "soundName", "")
		f.InPoint = d.intAttr(fid, "inPoint44", 0)
		f.OutPoint = d.intAttr(fid, "outPoint44", 0)
		for _, eid := range tree.Children(tree.Child(fid, "elements")) {
			if e := d.element(eid); e != nil {
				f.Elements = append(f.Elements, e)
			}
		}
		l.frames = append(l.frames, f)
	}

	slices.SortStableFunc(l.frames, func(a, b *Frame) int { return cmp.Compare(a.start, b.start) })
	for i, f := range l.frames {
		if i > 0 && l.frames[i-1].start == f.start {
			return nil, fmt.Errorf("timeline: layer %q: duplicate keyframe %d: %w", l.Name, f.start, apperr.ErrMalformedInput)
		}
	}
	// Spans are derived from keyframe positions so the layer has no gaps.
	if len(l.frames) > 0 && l.frames[0].start != 0 {
		first := newFrame(0, l.frames[0].start)
		l.frames = slices.Insert(l.frames, 0, first)
	}
	for i := 0; i+1 < len(l.frames); i++ {
		l.frames[i].duration = l.frames[i+1].start - l.frames[i].start
	}
	return l, nil
}

func (d *decoder) matrix(id xmltree.NodeID) Matrix {
	m := d.tree.Child(d.tree.Child(id, "matrix"), "Matrix")
	if m == xmltree.NoNode {
		return Identity()
	}
	return Matrix{
		A:  d.floatAttr(m, "a", 1),
		B:  d.floatAttr(m, "b", 0),
		C:  d.floatAttr(m, "c", 0),
		D:  d.floatAttr(m, "d", 1),
		TX: d.floatAttr(m, "tx", 0),
		TY: d.floatAttr(m, "ty", 0),
	}
}

func (d *decoder) element(id xmltree.NodeID) Element {
	tree := d.tree
	name := tree.Name(id)
	switch {
	case name == tagShape:
		return d.shape(id)
	case name == tagSymbolInstance:
		return &SymbolInstance{
			Instance:   d.instance(id),
			SymbolType: tree.AttrOr(id, "symbolType", ""),
			Loop:       tree.AttrOr(id, "loop", ""),
			FirstFrame: d.intAttr(id, "firstFrame", 0),
		}
	case instanceTags[name]:
		in := d.instance(id)
		return &in
	}
	if kind, ok := textTags[name]; ok {
		return d.text(id, kind)
	}
	d.logger.Warn("skipping unsupported element", slog.String("element", name))
	return nil
}

func (d *decoder) instance(id xmltree.NodeID) Instance {
	return Instance{
		LibraryItemName: d.tree.AttrOr(id, "libraryItemName", ""),
		Matrix:          d.matrix(id),
		Tag:             d.tree.Name(id),
		node:            id,
	}
}

// solidColor finds the first SolidColor below id.
func solidColor(tree *xmltree.Tree, id xmltree.NodeID) xmltree.NodeID {
	for _, c := range tree.Children(id) {
		if tree.Name(c) == "SolidColor" {
			return c
		}
		if found := solidColor(tree, c); found != xmltree.NoNode {
			return found
		}
	}
	return xmltree.NoNode
}

func (d *decoder) styles(id xmltree.NodeID, tag string) []Style {
	var out []Style
	for _, sid := range d.tree.ChildrenNamed(id, tag) {
		out = append(out, Style{
			Index: d.intAttr(sid, "index", len(out)+1),
			Color: d.tree.AttrOr(solidColor(d.tree, sid), "color", "#000000"),
			node:  sid,
		})
	}
	return out
}

func (d *decoder) shape(id xmltree.NodeID) *Shape {
	tree := d.tree
	s := &Shape{
		Fills:   d.styles(tree.Child(id, "fills"), "FillStyle"),
		Strokes: d.styles(tree.Child(id, "strokes"), "StrokeStyle"),
		Matrix:  d.matrix(id),
		node:    id,
	}
	for _, eid := range tree.ChildrenNamed(tree.Child(id, "edges"), "Edge") {
		s.Edges = append(s.Edges, Edge{
			FillStyle0:  d.intAttr(eid, "fillStyle0", 0),
			FillStyle1:  d.intAttr(eid, "fillStyle1", 0),
			StrokeStyle: d.intAttr(eid, "strokeStyle", 0),
			Edges:       tree.AttrOr(eid, "edges", ""),
			node:        eid,
		})
	}
	return s
}

func (d *decoder) text(id xmltree.NodeID, kind TextKind) *Text {
	tree := d.tree
	t := &Text{
		Kind:   kind,
		Matrix: d.matrix(id),
		Width:  d.floatAttr(id, "width", 0),
		Height: d.floatAttr(id, "height", 0),
		node:   id,
	}
	for _, rid := range tree.ChildrenNamed(tree.Child(id, "textRuns"), "DOMTextRun") {
		a := tree.Child(tree.Child(rid, "textAttrs"), "DOMTextAttrs")
		t.Runs = append(t.Runs, TextRun{
			Characters: tree.Text(tree.Child(rid, "characters")),
			Attrs: TextAttrs{
				Bold:      d.boolAttr(a, "bold", false),
				Italic:    d.boolAttr(a, "italic", false),
				Face:      tree.AttrOr(a, "face", ""),
				Size:      d.floatAttr(a, "size", 12),
				FillColor: tree.AttrOr(a, "fillColor", "#000000"),
			},
			node: rid,
		})
	}
	return t
}

// encoder writes the model into out, copying unmodeled attributes and
// children from src.
type encoder struct {
	out *xmltree.Tree
	src *xmltree.Tree
}

func (e *encoder) elem(parent xmltree.NodeID, name string, from xmltree.NodeID) xmltree.NodeID {
	var id xmltree.NodeID
	if parent == xmltree.NoNode {
		id = e.out.NewElement(name)
	} else {
		id = e.out.AddChild(parent, name)
	}
	e.out.CopyAttrs(id, e.src, from)
	return id
}

// extras copies every child of from whose name is not modeled.
func (e *encoder) extras(dst, from xmltree.NodeID, modeled ...string) {
	for _, c := range e.src.Children(from) {
		if slices.Contains(modeled, e.src.Name(c)) {
			continue
		}
		e.out.Append(dst, e.out.CopySubtree(e.src, c))
	}
}

func (e *encoder) setString(id xmltree.NodeID, name, v, def string) {
	if v == def {
		e.out.DelAttr(id, name)
		return
	}
	e.out.SetAttr(id, name, v)
}

func (e *encoder) setInt(id xmltree.NodeID, name string, v, def int) {
	e.setString(id, name, strconv.Itoa(v), strconv.Itoa(def))
}

func (e *encoder) setFloat(id xmltree.NodeID, name string, v, def float64) {
	e.setString(id, name, formatFloat(v), formatFloat(def))
}

func (e *encoder) setBool(id xmltree.NodeID, name string, v, def bool) {
	e.setString(id, name, strconv.FormatBool(v), strconv.FormatBool(def))
}

func formatFloat(f float64) string {
	if f == 0 {
		return "0"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Encode writes the timeline into out as a detached DOMTimeline element and
// returns its handle. In an empty out the element becomes the root. Attributes and children that the model does not cover
// are copied from the tree the timeline was decoded from.
func (t *Timeline) Encode(out *xmltree.Tree) xmltree.NodeID {
	e := &encoder{out: out, src: t.src}
	id := e.elem(xmltree.NoNode, tagTimeline, t.node)
	out.SetAttr(id, "name", t.Name)
	e.setInt(id, "currentFrame", t.currentFrame, 0)
	e.extras(id, t.node, "layers")

	layers := out.AddChild(id, "layers")
	for _, l := range t.layers {
		e.layer(layers, l)
	}
	return id
}

func (e *encoder) layer(parent xmltree.NodeID, l *Layer) {
	id := e.elem(parent, tagLayer, l.node)
	e.out.SetAttr(id, "name", l.Name)
	e.setString(id, "color", l.Color, "")
	e.setString(id, "layerType", l.Type.String(), LayerNormal.String())
	e.setBool(id, "locked", l.Locked, false)
	e.setBool(id, "visible", !l.Hidden, true)
	e.setBool(id, "current", l.Current, false)
	e.setBool(id, "isSelected", l.Selected, false)
	e.extras(id, l.node, "frames")

	frames := e.out.AddChild(id, "frames")
	for _, f := range l.frames {
		e.frame(frames, f)
	}
}

func (e *encoder) frame(parent xmltree.NodeID, f *Frame) {
	id := e.elem(parent, tagFrame, f.node)
	e.out.SetAttr(id, "index", strconv.Itoa(f.start))
	e.setInt(id, "duration", f.duration, 1)
	e.setString(id, "soundName", f.SoundName, "")
	e.setInt(id, "inPoint44", f.InPoint, 0)
	e.setInt(id, "outPoint44", f.OutPoint, 0)
	e.extras(id, f.node, "elements")

	elements := e.out.AddChild(id, "elements")
	for _, el := range f.Elements {
		e.element(elements, el)
	}
}

func (e *encoder) matrix(parent xmltree.NodeID, m Matrix) {
	if m == Identity() {
		return
	}
	id := e.out.AddChild(e.out.AddChild(parent, "matrix"), "Matrix")
	e.setFloat(id, "a", m.A, 1)
	e.setFloat(id, "b", m.B, 0)
	e.setFloat(id, "c", m.C, 0)
	e.setFloat(id, "d", m.D, 1)
	e.setFloat(id, "tx", m.TX, 0)
	e.setFloat(id, "ty", m.TY, 0)
}

func (e *encoder) element(parent xmltree.NodeID, el Element) {
	switch v := el.(type) {
	case *Shape:
		e.shape(parent, v)
	case *SymbolInstance:
		id := e.instance(parent, &v.Instance, tagSymbolInstance)
		e.setString(id, "symbolType", v.SymbolType, "")
		e.setString(id, "loop", v.Loop, "")
		e.setInt(id, "firstFrame", v.FirstFrame, 0)
	case *Instance:
		tag := v.Tag
		if tag == "" {
			tag = tagBitmapInstance
		}
		e.instance(parent, v, tag)
	case *Text:
		e.text(parent, v)
	}
}

func (e *encoder) instance(parent xmltree.NodeID, in *Instance, tag string) xmltree.NodeID {
	id := e.elem(parent, tag, in.node)
	e.out.SetAttr(id, "libraryItemName", in.LibraryItemName)
	e.extras(id, in.node, "matrix")
	e.matrix(id, in.Matrix)
	return id
}

func (e *encoder) style(parent xmltree.NodeID, tag string, s Style) {
	id := e.out.CopySubtree(e.src, s.node)
	if id != xmltree.NoNode {
		e.out.Append(parent, id)
	} else {
		id = e.out.AddChild(parent, tag)
		fill := id
		if tag == "StrokeStyle" {
			stroke := e.out.AddChild(id, "SolidStroke")
			e.out.SetAttr(stroke, "scaleMode", "normal")
			e.out.SetAttr(stroke, "weight", "1")
			fill = e.out.AddChild(stroke, "fill")
		}
		e.out.AddChild(fill, "SolidColor")
	}
	e.out.SetAttr(id, "index", strconv.Itoa(s.Index))
	if c := solidColor(e.out, id); c != xmltree.NoNode {
		e.out.SetAttr(c, "color", s.Color)
	}
}

func (e *encoder) shape(parent xmltree.NodeID, s *Shape) {
	id := e.elem(parent, tagShape, s.node)
	e.extras(id, s.node, "matrix", "fills", "strokes", "edges")
	e.matrix(id, s.Matrix)
	if len(s.Fills) > 0 {
		fills := e.out.AddChild(id, "fills")
		for _, st := range s.Fills {
			e.style(fills, "FillStyle", st)
		}
	}
	if len(s.Strokes) > 0 {
		strokes := e.out.AddChild(id, "strokes")
		for _, st := range s.Strokes {
			e.style(strokes, "StrokeStyle", st)
		}
	}
	if len(s.Edges) > 0 {
		edges := e.out.AddChild(id, "edges")
		for _, ed := range s.Edges {
			eid := e.elem(edges, "Edge", ed.node)
			e.setInt(eid, "fillStyle0", ed.FillStyle0, 0)
			e.setInt(eid, "fillStyle1", ed.FillStyle1, 0)
			e.setInt(eid, "strokeStyle", ed.StrokeStyle, 0)
			e.setString(eid, "edges", ed.Edges, "")
		}
	}
}

func (e *encoder) text(parent xmltree.NodeID, t *Text) {
	tag := tagStaticText
	for name, kind := range textTags {
		if kind == t.Kind {
			tag = name
		}
	}
	id := e.elem(parent, tag, t.node)
	e.setFloat(id, "width", t.Width, 0)
	e.setFloat(id, "height", t.Height, 0)
	e.extras(id, t.node, "matrix", "textRuns")
	e.matrix(id, t.Matrix)

	runs := e.out.AddChild(id, "textRuns")
	for _, r := range t.Runs {
		rid := e.elem(runs, "DOMTextRun", r.node)
		e.out.SetText(e.out.AddChild(rid, "characters"), r.Characters)
		srcAttrs := e.src.Child(e.src.Child(r.node, "textAttrs"), "DOMTextAttrs")
		a := e.elem(e.out.AddChild(rid, "textAttrs"), "DOMTextAttrs", srcAttrs)
		e.setBool(a, "bold", r.Attrs.Bold, false)
		e.setBool(a, "italic", r.Attrs.Italic, false)
		e.setString(a, "face", r.Attrs.Face, "")
		e.setFloat(a, "size", r.Attrs.Size, 12)
		e.setString(a, "fillColor", r.Attrs.FillColor, "#000000")
	}
}
