// Package xmltree holds an XML document as a flat arena of nodes addressed by
// NodeID. Model objects keep NodeIDs into the arena they were decoded from so
// attributes they do not model survive a save.
package xmltree

import "slices"

// NodeID addresses a node inside one Tree.
type NodeID int32

// NoNode is the zero handle. Slot 0 of every arena is reserved so zero-valued
// handles never address a real node.
const NoNode NodeID = 0

// Attr is one attribute, name kept with its prefix ("xmlns:xsi").
type Attr struct {
	Name  string
	Value string
}

type node struct {
	name     string
	attrs    []Attr
	children []NodeID
	parent   NodeID
	text     string
}

// Tree is an arena of element nodes. The first root appended becomes Root.
type Tree struct {
	nodes []node
	root  NodeID
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{nodes: make([]node, 1, 64), root: NoNode}
}

func (t *Tree) valid(id NodeID) bool {
	return t != nil && id > NoNode && int(id) < len(t.nodes)
}

// NewElement allocates a detached element. The first element allocated in an
// empty tree becomes the root.
func (t *Tree) NewElement(name string) NodeID {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, node{name: name, parent: NoNode})
	if t.root == NoNode {
		t.root = id
	}
	return id
}

// AddChild allocates an element named name under parent.
func (t *Tree) AddChild(parent NodeID, name string) NodeID {
	id := t.NewElement(name)
	t.Append(parent, id)
	return id
}

// Append attaches child under parent.
func (t *Tree) Append(parent, child NodeID) {
	if !t.valid(parent) || !t.valid(child) {
		return
	}
	t.nodes[parent].children = append(t.nodes[parent].children, child)
	t.nodes[child].parent = parent
}

// Root returns the document element.
func (t *Tree) Root() NodeID {
	if t == nil {
		return NoNode
	}
	return t.root
}

// Len returns the number of nodes in the arena.
func (t *Tree) Len() int { return len(t.nodes) - 1 }

// Name returns the element name.
func (t *Tree) Name(id NodeID) string {
	if !t.valid(id) {
		return ""
	}
	return t.nodes[id].name
}

// Parent returns the parent of id, or NoNode for a root.
func (t *Tree) Parent(id NodeID) NodeID {
	if !t.valid(id) {
		return NoNode
	}
	return t.nodes[id].parent
}

// Attrs returns the attributes of id in document order.
func (t *Tree) Attrs(id NodeID) []Attr {
	if !t.valid(id) {
		return nil
	}
	return t.nodes[id].attrs
}

// Attr returns the value of the named attribute.
func (t *Tree) Attr(id NodeID, name string) (string, bool) {
	for _, a := range t.Attrs(id) {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// AttrOr returns the named attribute or def when absent.
func (t *Tree) AttrOr(id NodeID, name, def string) string {
	if v, ok := t.Attr(id, name); ok {
		return v
	}
	return def
}

// SetAttr replaces the named attribute in place, or appends it.
func (t *Tree) SetAttr(id NodeID, name, value string) {
	if !t.valid(id) {
		return
	}
	n := &t.nodes[id]
	for i := range n.attrs {
		if n.attrs[i].Name == name {
			n.attrs[i].Value = value
			return
		}
	}
	n.attrs = append(n.attrs, Attr{Name: name, Value: value})
}

// DelAttr removes the named attribute if present.
func (t *Tree) DelAttr(id NodeID, name string) {
	if !t.valid(id) {
		return
	}
	n := &t.nodes[id]
	n.attrs = slices.DeleteFunc(n.attrs, func(a Attr) bool { return a.Name == name })
}

// Children returns the child elements of id.
func (t *Tree) Children(id NodeID) []NodeID {
	if !t.valid(id) {
		return nil
	}
	return t.nodes[id].children
}

// Child returns the first child named name, or NoNode.
func (t *Tree) Child(id NodeID, name string) NodeID {
	for _, c := range t.Children(id) {
		if t.nodes[c].name == name {
			return c
		}
	}
	return NoNode
}

// ChildrenNamed returns every child named name.
func (t *Tree) ChildrenNamed(id NodeID, name string) []NodeID {
	var out []NodeID
	for _, c := range t.Children(id) {
		if t.nodes[c].name == name {
			out = append(out, c)
		}
	}
	return out
}

// Text returns the character data directly under id.
func (t *Tree) Text(id NodeID) string {
	if !t.valid(id) {
		return ""
	}
	return t.nodes[id].text
}

// SetText replaces the character data of id.
func (t *Tree) SetText(id NodeID, text string) {
	if !t.valid(id) {
		return
	}
	t.nodes[id].text = text
}

// CopyAttrs copies every attribute of src's node srcID onto dst.
// A nil src or NoNode copies nothing.
func (t *Tree) CopyAttrs(dst NodeID, src *Tree, srcID NodeID) {
	for _, a := range src.Attrs(srcID) {
		t.SetAttr(dst, a.Name, a.Value)
	}
}

// CopySubtree deep-copies srcID from src into t and returns the new handle,
// detached.
func (t *Tree) CopySubtree(src *Tree, srcID NodeID) NodeID {
	if !src.valid(srcID) {
		return NoNode
	}
	sn := src.nodes[srcID]
	id := t.NewElement(sn.name)
	t.nodes[id].attrs = slices.Clone(sn.attrs)
	t.nodes[id].text = sn.text
	for _, c := range sn.children {
		t.Append(id, t.CopySubtree(src, c))
	}
	return id
}
