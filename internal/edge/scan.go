package edge

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/starford/xflkit/internal/apperr"
)

// Units per output unit. Coordinates in edge strings are twips.
const unitsPerPixel = 20

// Fixed-point coordinates carry 8 fractional bits.
const fixedScale = 256

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokCommand
	tokNumber
)

type token struct {
	kind tokenKind
	cmd  byte
	num  float64
	pos  int
}

// scanner splits an edge string into command and number tokens.
// Selection hints (S followed by digits) and whitespace are skipped.
type scanner struct {
	src string
	pos int
}

func isCommand(c byte) bool {
	switch c {
	case '!', '/', '|', '[', ']':
		return true
	}
	return false
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func (s *scanner) next() (token, error) {
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			s.pos++
		case c == 'S':
			s.pos++
			for s.pos < len(s.src) && isDigit(s.src[s.pos]) {
				s.pos++
			}
		case isCommand(c):
			s.pos++
			return token{kind: tokCommand, cmd: c, pos: s.pos - 1}, nil
		case c == '#':
			return s.fixed()
		case c == '-' || c == '.' || isDigit(c):
			return s.decimal()
		default:
			return token{}, fmt.Errorf("edge: unexpected %q at offset %d: %w", c, s.pos, apperr.ErrMalformedInput)
		}
	}
	return token{kind: tokEOF, pos: s.pos}, nil
}

func (s *scanner) decimal() (token, error) {
	start := s.pos
	if s.src[s.pos] == '-' {
		s.pos++
	}
	for s.pos < len(s.src) && (isDigit(s.src[s.pos]) || s.src[s.pos] == '.') {
		s.pos++
	}
	v, err := strconv.ParseFloat(s.src[start:s.pos], 64)
	if err != nil {
		return token{}, fmt.Errorf("edge: bad number %q at offset %d: %w", s.src[start:s.pos], start, apperr.ErrMalformedInput)
	}
	return token{kind: tokNumber, num: v / unitsPerPixel, pos: start}, nil
}

// fixed parses #II.FF: the hex digits of both parts are concatenated and read
// as a signed 32-bit value carrying 8 fractional bits.
func (s *scanner) fixed() (token, error) {
	start := s.pos
	s.pos++ // '#'
	intStart := s.pos
	for s.pos < len(s.src) && isHexDigit(s.src[s.pos]) {
		s.pos++
	}
	intPart := s.src[intStart:s.pos]
	frac := ""
	if s.pos < len(s.src) && s.src[s.pos] == '.' {
		s.pos++
		fracStart := s.pos
		for s.pos < len(s.src) && isHexDigit(s.src[s.pos]) {
			s.pos++
		}
		frac = s.src[fracStart:s.pos]
	}
	if intPart == "" || len(frac) > 2 || len(intPart)+2 > 8 {
		return token{}, fmt.Errorf("edge: bad fixed-point number %q at offset %d: %w", s.src[start:s.pos], start, apperr.ErrMalformedInput)
	}
	frac += strings.Repeat("0", 2-len(frac))
	raw, err := strconv.ParseUint(intPart+frac, 16, 32)
	if err != nil {
		return token{}, fmt.Errorf("edge: bad fixed-point number %q at offset %d: %w", s.src[start:s.pos], start, apperr.ErrMalformedInput)
	}
	v := float64(int32(uint32(raw))) / fixedScale / unitsPerPixel
	return token{kind: tokNumber, num: v, pos: start}, nil
}

// number consumes the next token and requires it to be numeric.
func (s *scanner) number() (float64, error) {
	tok, err := s.next()
	if err != nil {
		return 0, err
	}
	if tok.kind != tokNumber {
		return 0, fmt.Errorf("edge: expected coordinate at offset %d: %w", tok.pos, apperr.ErrMalformedInput)
	}
	return tok.num, nil
}

func (s *scanner) point() (Point, error) {
	x, err := s.number()
	if err != nil {
		return Point{}, err
	}
	y, err := s.number()
	if err != nil {
		return Point{}, err
	}
	return Point{X: x, Y: y}, nil
}

// peekCommand reports whether the next token is the command c, without
// consuming anything else.
func (s *scanner) peekCommand(c byte) bool {
	save := s.pos
	tok, err := s.next()
	if err == nil && tok.kind == tokCommand && tok.cmd == c {
		return true
	}
	s.pos = save
	return false
}
