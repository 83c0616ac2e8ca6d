package edge

import (
	"errors"
	"strings"
	"testing"

	"github.com/starford/xflkit/internal/apperr"
)

func TestDecode_ClosedTriangle(t *testing.T) {
	segs, err := DecodeAll("! 0 0 | 20 0 | 20 20 ! 0 0")
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	if len(segs) != 1 {
		t.Fatalf("len(segs) = %d, want 1", len(segs))
	}
	want := []Point{{0, 0, OnCurve}, {1, 0, OnCurve}, {1, 1, OnCurve}}
	got := segs[0].Points
	if len(got) != len(want) {
		t.Fatalf("points = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("point %d = %v, want %v", i, got[i], want[i])
		}
	}
	if !segs[0].Closed {
		t.Error("segment should be closed")
	}
}

func TestDecode_MustStartWithMove(t *testing.T) {
	for _, in := range []string{"|20 0", "20 0", "", "S2|0 0"} {
		_, err := DecodeAll(in)
		if !errors.Is(err, apperr.ErrMalformedInput) {
			t.Errorf("DecodeAll(%q) err = %v, want ErrMalformedInput", in, err)
		}
	}
}

func TestDecode_MoveToSamePointIsAbsorbed(t *testing.T) {
	segs, err := DecodeAll("!0 0|20 0!20 0|40 0")
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	if len(segs) != 1 || len(segs[0].Points) != 3 {
		t.Fatalf("segs = %+v, want one segment of 3 points", segs)
	}
}

func TestDecode_MoveElsewhereStartsNewSegment(t *testing.T) {
	segs, err := DecodeAll("!0 0|20 0!100 100|120 100")
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("len(segs) = %d, want 2", len(segs))
	}
	if segs[1].Points[0] != (Point{5, 5, OnCurve}) {
		t.Errorf("second segment starts at %v", segs[1].Points[0])
	}
}

func TestDecode_FixedPointHex(t *testing.T) {
	// 0x1400 / 256 = 20 twips = 1 unit; 0xFFFFEC00 is -20 twips;
	// 0xA80 / 256 = 10.5 twips.
	segs, err := DecodeAll("!#14.00 0|#FFFFEC.00 #A.80")
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	pts := segs[0].Points
	if !pts[0].Equal(Point{X: 1, Y: 0}) {
		t.Errorf("first point = %v, want (1,0)", pts[0])
	}
	if !pts[1].Equal(Point{X: -1, Y: 0.525}) {
		t.Errorf("second point = %v, want (-1,0.525)", pts[1])
	}
}

func TestDecode_SelectionHintsSkipped(t *testing.T) {
	segs, err := DecodeAll("!0 0S2|20 0S12|20 20")
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	if len(segs) != 1 || len(segs[0].Points) != 3 {
		t.Fatalf("segs = %+v", segs)
	}
}

func TestDecode_QuadTagsPoints(t *testing.T) {
	for _, in := range []string{"!0 0[20 0 20 20", "!0 0[20 0]20 20"} {
		segs, err := DecodeAll(in)
		if err != nil {
			t.Fatalf("DecodeAll(%q): %v", in, err)
		}
		pts := segs[0].Points
		if len(pts) != 3 || pts[1].Kind != Control || pts[2].Kind != CurveEnd {
			t.Errorf("DecodeAll(%q) points = %+v", in, pts)
		}
	}
}

func TestDecode_LoneCurveDestination(t *testing.T) {
	for _, in := range []string{"!0 0]20 0 40 0", "!0 0[20 0]40 0]60 0 80 0"} {
		if _, err := DecodeAll(in); !errors.Is(err, apperr.ErrMalformedInput) {
			t.Errorf("DecodeAll(%q): err = %v, want ErrMalformedInput", in, err)
		}
	}
}

func TestDecode_TruncatedCoordinate(t *testing.T) {
	_, err := DecodeAll("!0 0|20")
	if !errors.Is(err, apperr.ErrMalformedInput) {
		t.Errorf("err = %v, want ErrMalformedInput", err)
	}
}

func TestDecoder_NotRestartable(t *testing.T) {
	d := NewDecoder("!0 0|20 0")
	if _, ok := d.Next(); !ok {
		t.Fatal("expected one segment")
	}
	if _, ok := d.Next(); ok {
		t.Fatal("expected exhaustion")
	}
	if _, ok := d.Next(); ok {
		t.Fatal("exhausted decoder must stay exhausted")
	}
}

func TestEncode_CompressesRepeatedCommands(t *testing.T) {
	seg := Segment{Points: []Point{{0, 0, OnCurve}, {1, 0, OnCurve}, {1, 1, OnCurve}}}
	got := Encode(seg)
	if got != "M 0 0 L 1 0 1 1" {
		t.Errorf("Encode = %q", got)
	}
}

func TestEncode_ClosesWhenEndsAtStart(t *testing.T) {
	seg := Segment{Points: []Point{{0, 0, OnCurve}, {1, 0, OnCurve}, {0, 0, OnCurve}}}
	if got := Encode(seg); !strings.HasSuffix(got, " Z") {
		t.Errorf("Encode = %q, want closing command", got)
	}
}

func TestEncode_Quad(t *testing.T) {
	seg := Segment{Points: []Point{{0, 0, OnCurve}, {1, 0, Control}, {1, 1, CurveEnd}, {2, 2, OnCurve}}}
	got := Encode(seg)
	if got != "M 0 0 Q 1 0 1 1 L 2 2" {
		t.Errorf("Encode = %q", got)
	}
}

func TestRoundTrip_ClosedSegmentKeepsClose(t *testing.T) {
	segs, err := DecodeAll("!0 0|20 0|20 20|0 0")
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	if got := Encode(segs[0]); !strings.HasSuffix(got, "Z") {
		t.Errorf("Encode = %q, want closing command", got)
	}
}

func TestMarshal_DecodesToSameValues(t *testing.T) {
	in := []Segment{{
		Points: []Point{{0, 0, OnCurve}, {1.5, 0, OnCurve}, {2, 1, Control}, {3, 3, CurveEnd}},
		Closed: true,
	}}
	out, err := DecodeAll(Marshal(in))
	if err != nil {
		t.Fatalf("DecodeAll(Marshal): %v", err)
	}
	if len(out) != 1 || !out[0].Closed || len(out[0].Points) != 4 {
		t.Fatalf("out = %+v", out)
	}
	for i, p := range in[0].Points {
		if !p.Equal(out[0].Points[i]) || p.Kind != out[0].Points[i].Kind {
			t.Errorf("point %d = %v, want %v", i, out[0].Points[i], p)
		}
	}
}
