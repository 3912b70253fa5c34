package triarii

import (
	"fmt"
	"strconv"
	"strings"
)

// Color identifies a side.
type Color int8

const (
	White Color = iota
	Black
)

func (c Color) String() string {
	if c == White {
		return "white"
	}
	return "black"
}

// Opponent returns the other side.
func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

func (c Color) letter() byte {
	if c == White {
		return 'w'
	}
	return 'b'
}

// ParseColor accepts "white"/"black" and the single-letter forms.
func ParseColor(s string) (Color, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w":
		return White, nil
	case "black", "b":
		return Black, nil
	}
	return White, fmt.Errorf("unknown color %q", s)
}

// Pin tells which side, if any, pins the other on a square.
type Pin int8

const (
	PinBlack Pin = -1 // black pins white
	PinNone  Pin = 0
	PinWhite Pin = 1 // white pins black
)

func pinOf(c Color) Pin {
	if c == White {
		return PinWhite
	}
	return PinBlack
}

// Square is the content of one cell. The zero value is the empty cell.
type Square struct {
	White int
	Black int
	Pin   Pin
}

// Empty reports whether no pieces are on the square.
func (s Square) Empty() bool { return s.White == 0 && s.Black == 0 }

// Count returns how many pieces of c are on the square.
func (s Square) Count(c Color) int {
	if c == White {
		return s.White
	}
	return s.Black
}

func (s *Square) setCount(c Color, n int) {
	if c == White {
		s.White = n
	} else {
		s.Black = n
	}
}

// PinnedBy reports whether c holds the pin on this square.
func (s Square) PinnedBy(c Color) bool { return s.Pin != PinNone && s.Pin == pinOf(c) }

// Owner returns the primary side of the square: the pinner, or the only side
// present. ok is false for an empty square.
func (s Square) Owner() (c Color, ok bool) {
	switch {
	case s.Pin == PinWhite:
		return White, true
	case s.Pin == PinBlack:
		return Black, true
	case s.White > 0:
		return White, true
	case s.Black > 0:
		return Black, true
	}
	return White, false
}

// String returns the square code, "_" for the empty square.
func (s Square) String() string {
	if code, ok := FormatSquare(s); ok {
		return code
	}
	return "_"
}

// ParseSquare decodes a square code. The empty string is the empty square.
//
//	"6b"    six black pieces
//	"3wP1b" three white pieces pinning one black piece
func ParseSquare(code string) (Square, error) {
	if code == "" {
		return Square{}, nil
	}
	pinner, pinned, pinnedForm := strings.Cut(code, "P")
	n, c, err := parseStack(pinner)
	if err != nil {
		return Square{}, fmt.Errorf("%w: %q", ErrMalformedSquare, code)
	}
	var sq Square
	sq.setCount(c, n)
	if !pinnedForm {
		return sq, nil
	}
	m, pc, err := parseStack(pinned)
	if err != nil || pc == c {
		return Square{}, fmt.Errorf("%w: %q", ErrMalformedSquare, code)
	}
	sq.setCount(pc, m)
	sq.Pin = pinOf(c)
	return sq, nil
}

func parseStack(s string) (int, Color, error) {
	if len(s) < 2 {
		return 0, White, ErrMalformedSquare
	}
	var c Color
	switch s[len(s)-1] {
	case 'w':
		c = White
	case 'b':
		c = Black
	default:
		return 0, White, ErrMalformedSquare
	}
	digits := s[:len(s)-1]
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, White, ErrMalformedSquare
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 {
		return 0, White, ErrMalformedSquare
	}
	return n, c, nil
}

// FormatSquare encodes a square. ok is false for the empty square, which has
// no code of its own.
func FormatSquare(s Square) (code string, ok bool) {
	if s.Empty() {
		return "", false
	}
	if s.Pin == PinNone {
		if s.White != 0 {
			return strconv.Itoa(s.White) + "w", true
		}
		return strconv.Itoa(s.Black) + "b", true
	}
	pinner := White
	if s.Pin == PinBlack {
		pinner = Black
	}
	pinned := pinner.Opponent()
	return strconv.Itoa(s.Count(pinner)) + string(pinner.letter()) + "P" +
		strconv.Itoa(s.Count(pinned)) + string(pinned.letter()), true
}
