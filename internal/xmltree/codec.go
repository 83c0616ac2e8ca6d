package xmltree

import (
	"bufio"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/starford/xflkit/internal/apperr"
)

const header = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

// Parse reads an XML document into a new arena. Prefixes are kept as written
// so namespace declarations round-trip unchanged.
func Parse(r io.Reader) (*Tree, error) {
	dec := xml.NewDecoder(r)
	t := New()
	var stack []NodeID
	var text strings.Builder

	for {
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("xmltree: parse: %w: %w", apperr.ErrMalformedInput, err)
		}
		switch tk := tok.(type) {
		case xml.StartElement:
			if len(stack) == 0 && t.root != NoNode {
				return nil, fmt.Errorf("xmltree: parse: multiple root elements: %w", apperr.ErrMalformedInput)
			}
			id := t.NewElement(qualified(tk.Name))
			for _, a := range tk.Attr {
				t.nodes[id].attrs = append(t.nodes[id].attrs, Attr{Name: qualified(a.Name), Value: a.Value})
			}
			if len(stack) > 0 {
				t.flushText(stack[len(stack)-1], &text, false)
				t.Append(stack[len(stack)-1], id)
			}
			stack = append(stack, id)
		case xml.EndElement:
			if len(stack) == 0 || t.nodes[stack[len(stack)-1]].name != qualified(tk.Name) {
				return nil, fmt.Errorf("xmltree: parse: unexpected </%s>: %w", qualified(tk.Name), apperr.ErrMalformedInput)
			}
			top := stack[len(stack)-1]
			t.flushText(top, &text, len(t.nodes[top].children) == 0)
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				text.Write(tk)
			}
		}
	}
	if len(stack) != 0 {
		return nil, fmt.Errorf("xmltree: parse: unclosed <%s>: %w", t.nodes[stack[len(stack)-1]].name, apperr.ErrMalformedInput)
	}
	if t.root == NoNode {
		return nil, fmt.Errorf("xmltree: parse: no root element: %w", apperr.ErrMalformedInput)
	}
	return t, nil
}

// flushText attaches pending character data to id. Blank text is layout
// between child elements and is dropped unless keepBlank is set for a leaf.
func (t *Tree) flushText(id NodeID, text *strings.Builder, keepBlank bool) {
	s := text.String()
	text.Reset()
	if s == "" || (!keepBlank && strings.TrimSpace(s) == "") {
		return
	}
	t.nodes[id].text += s
}

// Encode writes the tree rooted at Root with an XML declaration and two-space
// indentation.
func (t *Tree) Encode(w io.Writer) error {
	if t.Root() == NoNode {
		return fmt.Errorf("xmltree: encode: empty tree: %w", apperr.ErrInvalidArgument)
	}
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(header); err != nil {
		return err
	}
	if err := t.encodeNode(bw, t.root, 0); err != nil {
		return err
	}
	return bw.Flush()
}

// Bytes encodes the tree into memory.
func (t *Tree) Bytes() ([]byte, error) {
	var b strings.Builder
	if err := t.Encode(&b); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func (t *Tree) encodeNode(w *bufio.Writer, id NodeID, depth int) error {
	n := t.nodes[id]
	indent := strings.Repeat("  ", depth)
	w.WriteString(indent)
	w.WriteByte('<')
	w.WriteString(n.name)
	for _, a := range n.attrs {
		w.WriteByte(' ')
		w.WriteString(a.Name)
		w.WriteString(`="`)
		w.WriteString(escape(a.Value))
		w.WriteByte('"')
	}
	switch {
	case len(n.children) == 0 && n.text == "":
		w.WriteString("/>\n")
	case len(n.children) == 0:
		w.WriteByte('>')
		w.WriteString(escape(n.text))
		w.WriteString("</")
		w.WriteString(n.name)
		w.WriteString(">\n")
	default:
		w.WriteString(">\n")
		if n.text != "" {
			w.WriteString(indent + "  ")
			w.WriteString(escape(n.text))
			w.WriteByte('\n')
		}
		for _, c := range n.children {
			if err := t.encodeNode(w, c, depth+1); err != nil {
				return err
			}
		}
		w.WriteString(indent)
		w.WriteString("</")
		w.WriteString(n.name)
		_, err := w.WriteString(">\n")
		return err
	}
	return nil
}
