package edge

import (
	"strconv"
	"strings"
)

func formatNumber(v float64) string {
	if v == 0 {
		return "0" // avoid "-0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writePoint(b *strings.Builder, p Point) {
	b.WriteString(formatNumber(p.X))
	b.WriteByte(' ')
	b.WriteString(formatNumber(p.Y))
}

// Encode renders seg as path commands: M, L and Q, with repeated command
// letters omitted. A Z is appended when the segment is closed or ends where
// it starts.
func Encode(seg Segment) string {
	if len(seg.Points) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("M ")
	writePoint(&b, seg.Points[0])

	last := byte('M')
	pts := seg.Points[1:]
	for i := 0; i < len(pts); i++ {
		p := pts[i]
		cmd := byte('L')
		if p.Kind == Control && i+1 < len(pts) {
			cmd = 'Q'
		}
		b.WriteByte(' ')
		if cmd != last {
			b.WriteByte(cmd)
			b.WriteByte(' ')
			last = cmd
		}
		writePoint(&b, p)
		if cmd == 'Q' {
			i++
			b.WriteByte(' ')
			writePoint(&b, pts[i])
		}
	}

	first, end := seg.Points[0], seg.Points[len(seg.Points)-1]
	if seg.Closed || (len(seg.Points) > 1 && first.Equal(end)) {
		b.WriteString(" Z")
	}
	return b.String()
}

// EncodeAll renders every segment, one path command string per segment.
func EncodeAll(segs []Segment) []string {
	out := make([]string, 0, len(segs))
	for _, s := range segs {
		out = append(out, Encode(s))
	}
	return out
}

func writeTwips(b *strings.Builder, p Point) {
	b.WriteString(formatNumber(p.X * unitsPerPixel))
	b.WriteByte(' ')
	b.WriteString(formatNumber(p.Y * unitsPerPixel))
}

// Marshal writes segments back into the edge mini-language using decimal
// twips. Closed segments end with a move back to their first point.
func Marshal(segs []Segment) string {
	var b strings.Builder
	for _, seg := range segs {
		if len(seg.Points) == 0 {
			continue
		}
		b.WriteByte('!')
		writeTwips(&b, seg.Points[0])
		pts := seg.Points[1:]
		for i := 0; i < len(pts); i++ {
			if pts[i].Kind == Control && i+1 < len(pts) {
				b.WriteByte('[')
				writeTwips(&b, pts[i])
				b.WriteByte(' ')
				writeTwips(&b, pts[i+1])
				i++
				continue
			}
			b.WriteByte('|')
			writeTwips(&b, pts[i])
		}
		if seg.Closed {
			b.WriteByte('!')
			writeTwips(&b, seg.Points[0])
		}
	}
	return b.String()
}
