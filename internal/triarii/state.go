package triarii

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MaxPieces marks a turn on which no action has been taken yet. It is larger
// than any stack and serializes as "MAX".
const MaxPieces = math.MaxInt32

// PiecesPerSide is the number of pieces each side starts with.
const PiecesPerSide = 36

const (
	sectionSep = "//"
	cellSep    = "/"
	emptyCell  = "_"
	maxToken   = "MAX"
)

// GameState is one position plus the turn bookkeeping. It is a value: the
// engine returns new states and never modifies the ones it is given.
type GameState struct {
	Board          Board
	WhiteInEndzone int
	BlackInEndzone int
	WhiteToMove    bool
	// PiecesRemaining is the unstacking budget left this turn, MaxPieces
	// before the first action.
	PiecesRemaining int
	FirstAction     bool
}

// NewGame returns the starting position, white to move.
func NewGame() GameState {
	return GameState{
		Board:           InitialBoard(),
		WhiteToMove:     true,
		PiecesRemaining: MaxPieces,
		FirstAction:     true,
	}
}

// Mover returns the side to move.
func (s GameState) Mover() Color {
	if s.WhiteToMove {
		return White
	}
	return Black
}

// Endzone returns the endzone count of c.
func (s GameState) Endzone(c Color) int {
	if c == White {
		return s.WhiteInEndzone
	}
	return s.BlackInEndzone
}

// Acted reports whether the side to move has taken an action this turn.
func (s GameState) Acted() bool { return s.PiecesRemaining != MaxPieces }

// Total returns the pieces of c on the board and in its endzone.
func (s GameState) Total(c Color) int { return s.Board.Count(c) + s.Endzone(c) }

// Encode serializes the state:
//
//	//c/c/c/c/c/c//...six rows...//white,black,whiteToMove,remaining|MAX,firstAction//
//
// Empty cells are written as "_".
func (s GameState) Encode() string {
	var b strings.Builder
	b.WriteString(sectionSep)
	writeBoard(&b, &s.Board)
	b.WriteString(strconv.Itoa(s.WhiteInEndzone))
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(s.BlackInEndzone))
	b.WriteByte(',')
	b.WriteString(strconv.FormatBool(s.WhiteToMove))
	b.WriteByte(',')
	if s.PiecesRemaining == MaxPieces {
		b.WriteString(maxToken)
	} else {
		b.WriteString(strconv.Itoa(s.PiecesRemaining))
	}
	b.WriteByte(',')
	b.WriteString(strconv.FormatBool(s.FirstAction))
	b.WriteString(sectionSep)
	return b.String()
}

func writeBoard(b *strings.Builder, board *Board) {
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if code, ok := FormatSquare(board[r][c]); ok {
				b.WriteString(code)
			} else {
				b.WriteString(emptyCell)
			}
			b.WriteString(cellSep)
		}
		b.WriteString(cellSep)
	}
}

func (s GameState) String() string { return s.Encode() }

// DecodeState parses a string produced by Encode.
func DecodeState(code string) (GameState, error) {
	parts := strings.Split(strings.TrimSpace(code), sectionSep)
	if len(parts) != Size+3 || parts[0] != "" || parts[Size+2] != "" {
		return GameState{}, fmt.Errorf("%w: expected %d rows and a trailer between %q separators", ErrMalformedState, Size, sectionSep)
	}
	var s GameState
	for r := 0; r < Size; r++ {
		cells := strings.Split(parts[r+1], cellSep)
		if len(cells) != Size {
			return GameState{}, fmt.Errorf("%w: row %d has %d cells", ErrMalformedState, r, len(cells))
		}
		for c, cell := range cells {
			if cell == emptyCell {
				continue
			}
			if cell == "" {
				return GameState{}, fmt.Errorf("%w: row %d col %d is blank", ErrMalformedState, r, c)
			}
			sq, err := ParseSquare(cell)
			if err != nil {
				return GameState{}, fmt.Errorf("%w: row %d col %d: %v", ErrMalformedState, r, c, err)
			}
			s.Board[r][c] = sq
		}
	}

	fields := strings.Split(parts[Size+1], ",")
	if len(fields) != 5 {
		return GameState{}, fmt.Errorf("%w: trailer has %d fields", ErrMalformedState, len(fields))
	}
	var err error
	if s.WhiteInEndzone, err = parseCount(fields[0]); err != nil {
		return GameState{}, fmt.Errorf("%w: white endzone: %v", ErrMalformedState, err)
	}
	if s.BlackInEndzone, err = parseCount(fields[1]); err != nil {
		return GameState{}, fmt.Errorf("%w: black endzone: %v", ErrMalformedState, err)
	}
	if s.WhiteToMove, err = parseBool(fields[2]); err != nil {
		return GameState{}, fmt.Errorf("%w: side to move: %v", ErrMalformedState, err)
	}
	if strings.EqualFold(strings.TrimSpace(fields[3]), maxToken) {
		s.PiecesRemaining = MaxPieces
	} else if s.PiecesRemaining, err = parseCount(fields[3]); err != nil {
		return GameState{}, fmt.Errorf("%w: pieces remaining: %v", ErrMalformedState, err)
	}
	if s.FirstAction, err = parseBool(fields[4]); err != nil {
		return GameState{}, fmt.Errorf("%w: first action: %v", ErrMalformedState, err)
	}
	return s, nil
}

func parseCount(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative value %d", n)
	}
	return n, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", s)
}

// RepetitionKey is the part of a position compared for repetition: board,
// endzone counts and side to move. Turn bookkeeping is left out.
func (s GameState) RepetitionKey() string {
	var b strings.Builder
	writeBoard(&b, &s.Board)
	b.WriteString(strconv.Itoa(s.WhiteInEndzone))
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(s.BlackInEndzone))
	b.WriteByte(',')
	b.WriteString(strconv.FormatBool(s.WhiteToMove))
	return b.String()
}
