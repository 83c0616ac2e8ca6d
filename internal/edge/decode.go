// Package edge converts the XFL edge mini-language to point lists and back.
//
// An edge string is a stream of commands (! move, / or | line, [ and ]
// quadratic curve) followed by coordinates. Coordinates are decimal twips or
// #-prefixed signed 24.8 fixed-point hex twips. Decoded coordinates are in
// output units (twips / 20).
package edge

import (
	"fmt"
	"iter"
	"math"

	"github.com/starford/xflkit/internal/apperr"
)

// PointKind tags how a point was reached.
type PointKind uint8

const (
	// OnCurve is a segment start or a line-to destination.
	OnCurve PointKind = iota
	// Control is the control point of a quadratic curve.
	Control
	// CurveEnd is the destination of a quadratic curve.
	CurveEnd
)

// Point is a decoded coordinate.
type Point struct {
	X, Y float64
	Kind PointKind
}

const epsilon = 1e-9

// Equal reports whether p and q share coordinates, ignoring Kind.
func (p Point) Equal(q Point) bool {
	return math.Abs(p.X-q.X) < epsilon && math.Abs(p.Y-q.Y) < epsilon
}

// Segment is one connected run of points.
// Closed is set when the stream moved back to the segment's first point.
type Segment struct {
	Points []Point
	Closed bool
}

// Decoder yields the segments of one edge string. It is single-pass:
// once Next returns false it keeps returning false.
type Decoder struct {
	sc      scanner
	started bool
	done    bool
	err     error

	cur Point
	seg []Point
}

// NewDecoder returns a decoder over edges.
func NewDecoder(edges string) *Decoder {
	return &Decoder{sc: scanner{src: edges}}
}

// Err returns the first decoding error, if any.
func (d *Decoder) Err() error { return d.err }

func (d *Decoder) fail(err error) (Segment, bool) {
	d.err = err
	d.done = true
	d.seg = nil
	return Segment{}, false
}

// flush hands out the pending segment if it draws anything.
func (d *Decoder) flush(closed bool) (Segment, bool) {
	seg := d.seg
	d.seg = nil
	if len(seg) < 2 {
		return Segment{}, false
	}
	return Segment{Points: seg, Closed: closed}, true
}

// ensureSegment opens a segment at the current point when a drawing command
// follows a closed or flushed segment.
func (d *Decoder) ensureSegment() {
	if d.seg == nil {
		d.seg = []Point{{X: d.cur.X, Y: d.cur.Y, Kind: OnCurve}}
	}
}

// Next decodes up to the end of the next segment.
func (d *Decoder) Next() (Segment, bool) {
	if d.done {
		return Segment{}, false
	}
	for {
		tok, err := d.sc.next()
		if err != nil {
			return d.fail(err)
		}
		if !d.started {
			if tok.kind != tokCommand || tok.cmd != '!' {
				return d.fail(fmt.Errorf("edge: stream must start with a move-to: %w", apperr.ErrMalformedInput))
			}
			d.started = true
		}

		switch tok.kind {
		case tokEOF:
			d.done = true
			return d.flush(false)

		case tokNumber:
			return d.fail(fmt.Errorf("edge: coordinate without command at offset %d: %w", tok.pos, apperr.ErrMalformedInput))

		case tokCommand:
			switch tok.cmd {
			case '!':
				p, err := d.sc.point()
				if err != nil {
					return d.fail(err)
				}
				switch {
				case d.seg == nil:
					d.cur = p
					d.seg = []Point{p}
				case p.Equal(d.cur):
					// Moving to where we already are changes nothing.
				case len(d.seg) > 1 && p.Equal(d.seg[0]):
					d.cur = p
					if s, ok := d.flush(true); ok {
						return s, true
					}
				default:
					d.cur = p
					s, ok := d.flush(false)
					d.seg = []Point{p}
					if ok {
						return s, true
					}
				}

			case '/', '|':
				p, err := d.sc.point()
				if err != nil {
					return d.fail(err)
				}
				d.ensureSegment()
				p.Kind = OnCurve
				d.seg = append(d.seg, p)
				d.cur = p

			case ']':
				return d.fail(fmt.Errorf("edge: curve destination without control point at offset %d: %w", tok.pos, apperr.ErrMalformedInput))

			case '[':
				ctrl, err := d.sc.point()
				if err != nil {
					return d.fail(err)
				}
				// "[c ]d" carries the destination behind its own marker;
				// "[c d" carries it inline.
				d.sc.peekCommand(']')
				dest, err := d.sc.point()
				if err != nil {
					return d.fail(err)
				}
				d.ensureSegment()
				ctrl.Kind = Control
				dest.Kind = CurveEnd
				d.seg = append(d.seg, ctrl, dest)
				d.cur = dest
			}
		}
	}
}

// Segments returns a single-use sequence over the segments of edges.
// A decoding error is yielded once, as the final pair.
func Segments(edges string) iter.Seq2[Segment, error] {
	d := NewDecoder(edges)
	return func(yield func(Segment, error) bool) {
		for {
			s, ok := d.Next()
			if !ok {
				break
			}
			if !yield(s, nil) {
				return
			}
		}
		if err := d.Err(); err != nil {
			yield(Segment{}, err)
		}
	}
}

// DecodeAll decodes every segment of edges.
func DecodeAll(edges string) ([]Segment, error) {
	var out []Segment
	for s, err := range Segments(edges) {
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
