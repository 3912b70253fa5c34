package triarii

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFourOrFewerInitialBoard(t *testing.T) {
	b := InitialBoard()
	for _, seed := range []SeedMode{SeedCorner, SeedEdge} {
		p := DefaultPolicy()
		p.Seed = seed
		require.False(t, ViolatesFourOrFewer(b, White, p))
		require.False(t, ViolatesFourOrFewer(b, Black, p))
	}
}

func TestFourOrFewerOnlyLargeStacks(t *testing.T) {
	var b Board
	b[3][3] = Square{White: 6}
	b[2][0] = Square{White: 5}
	b[0][5] = Square{Black: 2}

	p := DefaultPolicy()
	require.True(t, ViolatesFourOrFewer(b, White, p))
	require.False(t, ViolatesFourOrFewer(b, Black, p))
}

func TestFourOrFewerWalledOffSmallStack(t *testing.T) {
	var b Board
	b[0][5] = Square{White: 2}
	b[0][4] = Square{White: 6}
	b[1][5] = Square{White: 6}
	b[5][0] = Square{Black: 1}

	corner := DefaultPolicy()
	require.True(t, ViolatesFourOrFewer(b, White, corner))

	edge := DefaultPolicy()
	edge.Seed = SeedEdge
	require.False(t, ViolatesFourOrFewer(b, White, edge))
}

func TestFourOrFewerPinnedStacks(t *testing.T) {
	var b Board
	// white's only small stack is pinned under black: black owns the square
	b[4][4] = Square{White: 2, Black: 6, Pin: PinBlack}
	b[5][5] = Square{Black: 1}
	require.True(t, ViolatesFourOrFewer(b, White, DefaultPolicy()))

	// a small white pinner counts, measured by its own pieces
	b[4][4] = Square{White: 3, Black: 1, Pin: PinWhite}
	require.False(t, ViolatesFourOrFewer(b, White, DefaultPolicy()))
}

func TestFourOrFewerThreshold(t *testing.T) {
	var b Board
	b[2][2] = Square{Black: 5}
	b[0][0] = Square{White: 1}

	p := DefaultPolicy()
	require.True(t, ViolatesFourOrFewer(b, Black, p))
	p.SmallStack = 5
	require.False(t, ViolatesFourOrFewer(b, Black, p))
}

func TestIsThreefoldRepetition(t *testing.T) {
	a := NewGame()
	moved, err := ApplyMove(a, Move{From: Coord{5, 0}, Dir: Up, Count: 6}, DefaultPolicy())
	require.NoError(t, err)

	mid := a
	mid.PiecesRemaining = 2
	mid.FirstAction = false

	history := []string{a.Encode(), moved.State.Encode(), a.Encode(), moved.State.Encode(), mid.Encode()}
	require.True(t, IsThreefoldRepetition(history))
	require.False(t, IsThreefoldRepetition(history[:4]))
	require.False(t, IsThreefoldRepetition(nil))
}

func TestEvaluate(t *testing.T) {
	p := DefaultPolicy()

	t.Run("ongoing", func(t *testing.T) {
		s := NewGame()
		v := Evaluate(s, White, []string{s.Encode()}, p)
		require.Equal(t, Ongoing, v.Outcome)
		require.False(t, v.Outcome.Decided())
	})

	t.Run("endzone", func(t *testing.T) {
		s := mustDecode(t, initialCode)
		s.Board[5][0] = Square{}
		s.WhiteInEndzone = 6
		v := Evaluate(s, White, nil, p)
		require.Equal(t, Verdict{Outcome: WhiteWins, Reason: ReasonEndzone}, v)
		c, ok := v.Outcome.Winner()
		require.True(t, ok)
		require.Equal(t, White, c)
	})

	t.Run("four or fewer", func(t *testing.T) {
		var s GameState
		s.Board[3][3] = Square{White: 6}
		s.Board[0][5] = Square{Black: 2}
		v := Evaluate(s, Black, nil, p)
		require.Equal(t, Verdict{Outcome: BlackWins, Reason: ReasonFourOrFewer}, v)
	})

	t.Run("mover judged first", func(t *testing.T) {
		var s GameState
		s.Board[3][3] = Square{White: 6}
		s.Board[2][2] = Square{Black: 7}
		require.Equal(t, BlackWins, Evaluate(s, White, nil, p).Outcome)
		require.Equal(t, WhiteWins, Evaluate(s, Black, nil, p).Outcome)
	})

	t.Run("repetition", func(t *testing.T) {
		s := NewGame()
		code := s.Encode()
		v := Evaluate(s, Black, []string{code, code, code}, p)
		require.Equal(t, Verdict{Outcome: Draw, Reason: ReasonRepetition}, v)
	})
}

func TestErrorCode(t *testing.T) {
	_, err := ApplyMove(NewGame(), Move{From: Coord{5, 0}, Dir: Left, Count: 1}, DefaultPolicy())
	require.Equal(t, "out_of_bounds", ErrorCode(err))
	require.True(t, IsRuleError(err))
	require.Equal(t, "", ErrorCode(nil))
	require.False(t, IsRuleError(errors.New("redis: connection refused")))
}
