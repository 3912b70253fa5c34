package match

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/park285/triarii/internal/results"
	"github.com/park285/triarii/internal/store"
	"github.com/park285/triarii/internal/triarii"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, _ := newTestManagerWithStore(t)
	return m
}

func newTestManagerWithStore(t *testing.T) (*Manager, *store.Store) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	rdb, err := store.Open(context.Background(), fmt.Sprintf("redis://%s/0", mr.Addr()))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	st := store.New(rdb)
	t.Cleanup(func() { _ = st.Close() })
	return NewManager(st, triarii.DefaultPolicy()), st
}

// seedState commits s as the latest position of game id.
func seedState(t *testing.T, st *store.Store, id string, s triarii.GameState) {
	t.Helper()
	_, _, err := st.Update(context.Background(), id, func(_ *store.Meta, _ []store.StateEntry) (*store.StateEntry, error) {
		return &store.StateEntry{Code: s.Encode(), At: time.Now()}, nil
	})
	if err != nil {
		t.Fatalf("seed state: %v", err)
	}
}

type seats struct {
	id    string
	white Seat
	black Seat
}

func startGame(t *testing.T, m *Manager) seats {
	t.Helper()
	ctx := context.Background()
	g, host, err := m.Create(ctx, "ana", "white")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if g.Status != store.StatusWaiting || host.Color != triarii.White {
		t.Fatalf("unexpected create result %+v %+v", g, host)
	}
	g, guest, err := m.Join(ctx, g.ID, "bo")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if g.Status != store.StatusActive || guest.Color != triarii.Black || g.BlackName != "bo" {
		t.Fatalf("unexpected join result %+v %+v", g, guest)
	}
	return seats{id: g.ID, white: host, black: guest}
}

func at(r, c int) triarii.Coord { return triarii.Coord{Row: r, Col: c} }

func TestCreateJoinSeats(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	s := startGame(t, m)

	if _, _, err := m.Join(ctx, s.id, "late"); !errors.Is(err, ErrSeatTaken) {
		t.Fatalf("expected ErrSeatTaken, got %v", err)
	}
	if _, _, err := m.Join(ctx, "nope", "x"); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("expected ErrGameNotFound, got %v", err)
	}
	if _, _, err := m.Create(ctx, "x", "green"); !errors.Is(err, ErrInvalidArgs) {
		t.Fatalf("expected ErrInvalidArgs, got %v", err)
	}

	g, host, err := m.Create(ctx, "", "black")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if host.Color != triarii.Black || g.BlackName != "black" {
		t.Fatalf("unexpected seat %+v name %q", host, g.BlackName)
	}
	if _, _, err := m.Move(ctx, g.ID, host.Token, triarii.Move{From: at(3, 0), Dir: triarii.Up, Count: 2}); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}
	_, guest, err := m.Join(ctx, g.ID, "w")
	if err != nil || guest.Color != triarii.White {
		t.Fatalf("Join: %+v %v", guest, err)
	}
}

func TestMoveAuthorization(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	s := startGame(t, m)
	mv := triarii.Move{From: at(3, 0), Dir: triarii.Up, Count: 2}

	if _, _, err := m.Move(ctx, s.id, "bogus", mv); !errors.Is(err, ErrBadToken) {
		t.Fatalf("expected ErrBadToken, got %v", err)
	}
	if _, _, err := m.Move(ctx, s.id, s.black.Token, triarii.Move{From: at(2, 1), Dir: triarii.Down, Count: 2}); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("expected ErrNotYourTurn, got %v", err)
	}
	if _, _, err := m.Move(ctx, s.id, s.white.Token, triarii.Move{From: at(5, 0), Dir: triarii.Down, Count: 1}); !errors.Is(err, triarii.ErrOutOfBounds) {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}

	g, res, err := m.Move(ctx, s.id, s.white.Token, mv)
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if !res.TurnEnded || g.State.WhiteToMove || g.Version != 2 {
		t.Fatalf("whole-stack first move should end the turn: %+v version=%d", res, g.Version)
	}
	if got := g.State.Board.At(at(2, 0)); got.White != 2 {
		t.Fatalf("destination = %+v", got)
	}
}

func TestUnstackingSequence(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	s := startGame(t, m)
	tok := s.white.Token

	if _, err := m.EndTurn(ctx, s.id, tok); !errors.Is(err, triarii.ErrNoMoveMade) {
		t.Fatalf("expected ErrNoMoveMade, got %v", err)
	}
	g, err := m.Select(ctx, s.id, tok, at(5, 0))
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if g.Selection != triarii.Select(at(5, 0)) || g.Version != 1 {
		t.Fatalf("selection not recorded or history grew: %+v v=%d", g.Selection, g.Version)
	}

	g, res, err := m.Move(ctx, s.id, tok, triarii.Move{From: at(5, 0), Dir: triarii.Up, Count: 3})
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if res.TurnEnded || g.State.PiecesRemaining != 2 || g.Selection != triarii.Select(at(4, 0)) {
		t.Fatalf("unexpected unstacking state %+v sel=%v", g.State, g.Selection)
	}

	if _, err := m.Select(ctx, s.id, tok, at(5, 2)); !errors.Is(err, ErrSelectionLocked) {
		t.Fatalf("expected ErrSelectionLocked, got %v", err)
	}
	if _, _, err := m.Move(ctx, s.id, tok, triarii.Move{From: at(5, 2), Dir: triarii.Up, Count: 1}); !errors.Is(err, triarii.ErrInvalidMove) {
		t.Fatalf("expected ErrInvalidMove off the selection, got %v", err)
	}

	g, err = m.EndTurn(ctx, s.id, tok)
	if err != nil {
		t.Fatalf("EndTurn: %v", err)
	}
	if g.State.WhiteToMove || !g.State.FirstAction || g.Selection.Active {
		t.Fatalf("turn not passed: %+v", g.State)
	}

	hist, err := m.History(ctx, s.id)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 3 || hist[1].Selected != "4,0" {
		t.Fatalf("unexpected history %+v", hist)
	}
}

func TestResignArchivesResult(t *testing.T) {
	m := newTestManager(t)
	repo := results.NewMemoryRepository()
	m.AttachRepository(repo)
	ctx := context.Background()
	s := startGame(t, m)

	if _, _, err := m.Move(ctx, s.id, s.white.Token, triarii.Move{From: at(3, 0), Dir: triarii.Up, Count: 2}); err != nil {
		t.Fatalf("Move: %v", err)
	}
	g, err := m.Resign(ctx, s.id, s.white.Token)
	if err != nil {
		t.Fatalf("Resign: %v", err)
	}
	if !g.Finished() || g.Outcome != triarii.BlackWins || g.Reason != triarii.ReasonResignation {
		t.Fatalf("unexpected result %+v", g)
	}
	if _, _, err := m.Move(ctx, s.id, s.black.Token, triarii.Move{From: at(2, 1), Dir: triarii.Down, Count: 2}); !errors.Is(err, ErrGameOver) {
		t.Fatalf("expected ErrGameOver, got %v", err)
	}

	rec, err := repo.Get(ctx, s.id)
	if err != nil {
		t.Fatalf("archive Get: %v", err)
	}
	if rec.Outcome != "black" || rec.Reason != "resignation" || rec.Moves != 1 || len(rec.States) != 2 {
		t.Fatalf("unexpected archive %+v", rec)
	}
	if rec.WhiteName != "ana" || rec.BlackName != "bo" {
		t.Fatalf("names not archived: %+v", rec)
	}
}

func TestWatchStreamsSnapshots(t *testing.T) {
	m := newTestManager(t)
	s := startGame(t, m)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := m.Watch(ctx, s.id)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	first := <-ch
	if first == nil || first.Version != 1 {
		t.Fatalf("unexpected first snapshot %+v", first)
	}
	if _, _, err := m.Move(ctx, s.id, s.white.Token, triarii.Move{From: at(3, 0), Dir: triarii.Up, Count: 2}); err != nil {
		t.Fatalf("Move: %v", err)
	}
	select {
	case g := <-ch:
		if g == nil || g.Version != 2 || g.State.WhiteToMove {
			t.Fatalf("unexpected update %+v", g)
		}
	case <-ctx.Done():
		t.Fatalf("no update received")
	}

	if _, err := m.Watch(ctx, "missing"); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("expected ErrGameNotFound, got %v", err)
	}
}

func TestMoveIntoEndzoneFinishesGame(t *testing.T) {
	m, st := newTestManagerWithStore(t)
	repo := results.NewMemoryRepository()
	m.AttachRepository(repo)
	ctx := context.Background()
	s := startGame(t, m)

	target := m.Policy().EndzoneTarget
	near := triarii.NewGame()
	near.Board.Set(at(0, 0), triarii.Square{White: 1})
	near.WhiteInEndzone = target - 1
	seedState(t, st, s.id, near)

	g, res, err := m.Move(ctx, s.id, s.white.Token, triarii.Move{From: at(0, 0), Dir: triarii.Up, Count: 1})
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if !res.Endzone || !res.TurnEnded {
		t.Fatalf("expected a turn-ending endzone step, got %+v", res)
	}
	if g.Status != store.StatusFinished || g.Outcome != triarii.WhiteWins || g.Reason != triarii.ReasonEndzone {
		t.Fatalf("unexpected verdict status=%s outcome=%s reason=%q", g.Status, g.Outcome, g.Reason)
	}
	if g.State.WhiteInEndzone != target {
		t.Fatalf("white endzone = %d, want %d", g.State.WhiteInEndzone, target)
	}

	rec, err := repo.Get(ctx, s.id)
	if err != nil {
		t.Fatalf("archive Get: %v", err)
	}
	if rec.Outcome != "white" || rec.Reason != "endzone" || rec.WhiteEndzone != target || rec.FinalCode != g.Code {
		t.Fatalf("unexpected archive %+v", rec)
	}

	if _, _, err := m.Move(ctx, s.id, s.black.Token, triarii.Move{From: at(2, 1), Dir: triarii.Down, Count: 2}); !errors.Is(err, ErrGameOver) {
		t.Fatalf("expected ErrGameOver, got %v", err)
	}
	if _, err := m.EndTurn(ctx, s.id, s.white.Token); !errors.Is(err, ErrGameOver) {
		t.Fatalf("expected ErrGameOver on EndTurn, got %v", err)
	}
}

func TestShuttleMovesDrawByRepetition(t *testing.T) {
	m := newTestManager(t)
	repo := results.NewMemoryRepository()
	m.AttachRepository(repo)
	ctx := context.Background()
	s := startGame(t, m)

	// Each side slides a whole two-stack sideways and back. The starting
	// position recurs after every fourth move.
	cycle := []struct {
		tok string
		mv  triarii.Move
	}{
		{s.white.Token, triarii.Move{From: at(3, 0), Dir: triarii.Right, Count: 2}},
		{s.black.Token, triarii.Move{From: at(2, 1), Dir: triarii.Left, Count: 2}},
		{s.white.Token, triarii.Move{From: at(3, 1), Dir: triarii.Left, Count: 2}},
		{s.black.Token, triarii.Move{From: at(2, 0), Dir: triarii.Right, Count: 2}},
	}

	var g *Game
	for i := 0; i < 2*len(cycle); i++ {
		step := cycle[i%len(cycle)]
		var (
			res triarii.MoveResult
			err error
		)
		g, res, err = m.Move(ctx, s.id, step.tok, step.mv)
		if err != nil {
			t.Fatalf("move %d: %v", i+1, err)
		}
		if !res.TurnEnded {
			t.Fatalf("move %d should end the turn: %+v", i+1, res)
		}
		if last := i == 2*len(cycle)-1; !last && g.Finished() {
			t.Fatalf("game ended early on move %d: %s %q", i+1, g.Outcome, g.Reason)
		}
	}
	if g.Status != store.StatusFinished || g.Outcome != triarii.Draw || g.Reason != triarii.ReasonRepetition {
		t.Fatalf("unexpected verdict status=%s outcome=%s reason=%q", g.Status, g.Outcome, g.Reason)
	}
	if g.State.RepetitionKey() != triarii.NewGame().RepetitionKey() {
		t.Fatalf("final position is not the starting one: %s", g.Code)
	}

	rec, err := repo.Get(ctx, s.id)
	if err != nil {
		t.Fatalf("archive Get: %v", err)
	}
	if rec.Outcome != "draw" || rec.Reason != "repetition" || rec.Moves != 2*len(cycle) {
		t.Fatalf("unexpected archive %+v", rec)
	}
	if _, _, err := m.Move(ctx, s.id, s.white.Token, cycle[0].mv); !errors.Is(err, ErrGameOver) {
		t.Fatalf("expected ErrGameOver, got %v", err)
	}
}

func TestEndTurnRepetitionDraw(t *testing.T) {
	m, st := newTestManagerWithStore(t)
	ctx := context.Background()
	s := startGame(t, m)

	// A side that has acted can pass without changing the board, so
	// alternating acted positions and EndTurn repeat the same position.
	acted := func(whiteToMove bool) triarii.GameState {
		g := triarii.NewGame()
		g.Board.Set(at(3, 0), triarii.Square{})
		g.Board.Set(at(3, 1), triarii.Square{White: 2})
		g.WhiteToMove = whiteToMove
		g.PiecesRemaining = 1
		g.FirstAction = false
		return g
	}
	turns := []struct {
		whiteToMove bool
		tok         string
		draw        bool
	}{
		{true, s.white.Token, false},
		{false, s.black.Token, false},
		{true, s.white.Token, true},
	}
	for i, turn := range turns {
		seedState(t, st, s.id, acted(turn.whiteToMove))
		g, err := m.EndTurn(ctx, s.id, turn.tok)
		if err != nil {
			t.Fatalf("EndTurn %d: %v", i+1, err)
		}
		if g.Finished() != turn.draw {
			t.Fatalf("EndTurn %d finished=%v, want %v (%s %q)", i+1, g.Finished(), turn.draw, g.Outcome, g.Reason)
		}
		if turn.draw && (g.Outcome != triarii.Draw || g.Reason != triarii.ReasonRepetition) {
			t.Fatalf("unexpected verdict %s %q", g.Outcome, g.Reason)
		}
	}
}
