package triarii

// Outcome is the game result as seen after a committed state.
type Outcome int

const (
	Ongoing Outcome = iota
	WhiteWins
	BlackWins
	Draw
)

func (o Outcome) String() string {
	switch o {
	case WhiteWins:
		return "white"
	case BlackWins:
		return "black"
	case Draw:
		return "draw"
	}
	return "ongoing"
}

// Decided reports whether the game is over.
func (o Outcome) Decided() bool { return o != Ongoing }

// Winner returns the winning side, ok false for a draw or ongoing game.
func (o Outcome) Winner() (c Color, ok bool) {
	switch o {
	case WhiteWins:
		return White, true
	case BlackWins:
		return Black, true
	}
	return White, false
}

// WinFor returns the outcome in which c wins.
func WinFor(c Color) Outcome {
	if c == White {
		return WhiteWins
	}
	return BlackWins
}

// Reason explains a decided outcome.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonEndzone     Reason = "endzone"
	ReasonFourOrFewer Reason = "four_or_fewer"
	ReasonRepetition  Reason = "repetition"
	ReasonResignation Reason = "resignation"
)

// Verdict is the evaluator's answer.
type Verdict struct {
	Outcome Outcome
	Reason  Reason
}

// EndzoneWinner returns the side whose endzone count reached the target.
// mover is checked first.
func EndzoneWinner(s GameState, mover Color, p Policy) (Color, bool) {
	p = p.withDefaults()
	for _, c := range [2]Color{mover, mover.Opponent()} {
		if s.Endzone(c) >= p.EndzoneTarget {
			return c, true
		}
	}
	return White, false
}

// ViolatesFourOrFewer reports whether c has no stack of at most
// p.SmallStack pieces that the opponent can reach from its side of the board.
//
// The search walks orthogonally from the opponent's home corner (or its whole
// home row with SeedEdge) through empty cells and cells held by the opponent.
// Stacks primarily held by c stop the walk; reaching a small one satisfies
// the rule.
func ViolatesFourOrFewer(b Board, c Color, p Policy) bool {
	p = p.withDefaults()

	var visited [Size][Size]bool
	var stack []Coord
	push := func(at Coord) {
		if at.OnBoard() && !visited[at.Row][at.Col] {
			visited[at.Row][at.Col] = true
			stack = append(stack, at)
		}
	}

	home := 0 // black's home row, the opponent of white
	corner := Coord{Row: 0, Col: 0}
	if c == Black {
		home = Size - 1
		corner = Coord{Row: Size - 1, Col: Size - 1}
	}
	if p.Seed == SeedEdge {
		for col := 0; col < Size; col++ {
			push(Coord{Row: home, Col: col})
		}
	} else {
		push(corner)
	}

	for len(stack) > 0 {
		at := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		sq := b.At(at)
		if owner, ok := sq.Owner(); ok && owner == c {
			if sq.Count(c) <= p.SmallStack {
				return false
			}
			continue
		}
		push(Coord{Row: at.Row - 1, Col: at.Col})
		push(Coord{Row: at.Row + 1, Col: at.Col})
		push(Coord{Row: at.Row, Col: at.Col - 1})
		push(Coord{Row: at.Row, Col: at.Col + 1})
	}
	return true
}

// IsThreefoldRepetition reports whether the last entry of history, a list of
// encoded states, occurs at least three times by RepetitionKey. Entries that
// do not decode are compared verbatim.
func IsThreefoldRepetition(history []string) bool {
	if len(history) < 3 {
		return false
	}
	key := repetitionKeyOf(history[len(history)-1])
	seen := 0
	for _, code := range history {
		if repetitionKeyOf(code) == key {
			seen++
			if seen >= 3 {
				return true
			}
		}
	}
	return false
}

func repetitionKeyOf(code string) string {
	s, err := DecodeState(code)
	if err != nil {
		return code
	}
	return s.RepetitionKey()
}

// Evaluate checks the terminal conditions after mover committed s. history
// holds the encoded states of the game including s.
//
// Order: endzone target, Four or Fewer (mover first, so a self-inflicted
// violation loses), threefold repetition.
func Evaluate(s GameState, mover Color, history []string, p Policy) Verdict {
	if c, ok := EndzoneWinner(s, mover, p); ok {
		return Verdict{Outcome: WinFor(c), Reason: ReasonEndzone}
	}
	for _, c := range [2]Color{mover, mover.Opponent()} {
		if ViolatesFourOrFewer(s.Board, c, p) {
			return Verdict{Outcome: WinFor(c.Opponent()), Reason: ReasonFourOrFewer}
		}
	}
	if IsThreefoldRepetition(history) {
		return Verdict{Outcome: Draw, Reason: ReasonRepetition}
	}
	return Verdict{Outcome: Ongoing}
}
