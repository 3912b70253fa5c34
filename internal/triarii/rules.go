package triarii

import "fmt"

// Move is one stacking or unstacking step.
type Move struct {
	From  Coord
	Dir   Direction
	Count int
}

// Selection is the pending selected cell shared between clients. The zero
// value means nothing is selected.
type Selection struct {
	Cell   Coord
	Active bool
}

// Select returns a selection of c.
func Select(c Coord) Selection { return Selection{Cell: c, Active: true} }

// String returns "row,col", or "" when nothing is selected.
func (s Selection) String() string {
	if !s.Active {
		return ""
	}
	return s.Cell.String()
}

// ParseSelection reads the String form.
func ParseSelection(s string) (Selection, error) {
	if s == "" {
		return Selection{}, nil
	}
	c, err := ParseCoord(s)
	if err != nil {
		return Selection{}, err
	}
	if !c.OnBoard() {
		return Selection{}, fmt.Errorf("%w: selection %s", ErrOutOfBounds, c)
	}
	return Select(c), nil
}

// MoveResult is the outcome of an accepted move.
type MoveResult struct {
	State GameState
	// Selection is where the next unstacking step must start, inactive when
	// the turn ended.
	Selection Selection
	To        Coord
	Moved     int
	Consumed  int
	Endzone   bool
	TurnEnded bool
}

// CanSelect reports whether the side to move may pick a new cell. Once an
// unstacking sequence has started it is bound to its last destination.
func CanSelect(s GameState) bool { return s.FirstAction }

// CheckContinuation rejects a mid-turn move that does not start where the
// previous step ended.
func CheckContinuation(s GameState, sel Selection, from Coord) error {
	if s.FirstAction {
		return nil
	}
	if !sel.Active || sel.Cell != from {
		return fmt.Errorf("%w: unstacking must continue from %s", ErrInvalidMove, sel)
	}
	return nil
}

// destination resolves where a step from c lands for mover. endzone is set
// when the step leaves the board into the mover's scoring endzone.
func destination(from Coord, d Direction, mover Color) (to Coord, endzone bool, err error) {
	to = from.Step(d)
	if to.Col < 0 || to.Col >= Size {
		return to, false, fmt.Errorf("%w: column %d", ErrOutOfBounds, to.Col)
	}
	switch {
	case to.Row == -1 && mover == White, to.Row == Size && mover == Black:
		return to, true, nil
	case to.Row < 0 || to.Row >= Size:
		return to, false, fmt.Errorf("%w: %s cannot leave past its own home row", ErrOutOfBounds, mover)
	}
	return to, false, nil
}

// ApplyMove validates mv against s and returns the next state.
func ApplyMove(s GameState, mv Move, p Policy) (MoveResult, error) {
	if mv.Count < 1 {
		return MoveResult{}, ErrZeroMove
	}
	if !mv.From.OnBoard() {
		return MoveResult{}, fmt.Errorf("%w: source %s", ErrOutOfBounds, mv.From)
	}
	mover := s.Mover()
	to, endzone, err := destination(mv.From, mv.Dir, mover)
	if err != nil {
		return MoveResult{}, err
	}

	count := mv.Count
	if count > s.PiecesRemaining {
		count = s.PiecesRemaining
	}

	var dst Square
	if !endzone {
		dst = s.Board.At(to)
	}
	tr, err := Transfer(count, s.Board.At(mv.From), dst, mover, s.FirstAction, p)
	if err != nil {
		return MoveResult{}, err
	}

	next := s
	next.Board.Set(mv.From, tr.Source)
	if endzone {
		if mover == White {
			next.WhiteInEndzone += tr.Moved
		} else {
			next.BlackInEndzone += tr.Moved
		}
	} else {
		next.Board.Set(to, tr.Dest)
	}

	res := MoveResult{
		To:       to,
		Moved:    tr.Moved,
		Consumed: tr.Consumed,
		Endzone:  endzone,
	}
	remaining := tr.Moved - tr.Consumed
	if tr.TurnEnds || remaining < 1 || endzone {
		res.State = endTurn(next)
		res.TurnEnded = true
		return res, nil
	}
	next.PiecesRemaining = remaining
	next.FirstAction = false
	res.State = next
	res.Selection = Select(to)
	return res, nil
}

// EndTurn passes the rest of the turn. At least one action must have been
// taken.
func EndTurn(s GameState) (GameState, error) {
	if !s.Acted() {
		return s, ErrNoMoveMade
	}
	return endTurn(s), nil
}

func endTurn(s GameState) GameState {
	s.WhiteToMove = !s.WhiteToMove
	s.PiecesRemaining = MaxPieces
	s.FirstAction = true
	return s
}
