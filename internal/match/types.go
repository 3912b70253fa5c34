package match

import (
	"time"

	"github.com/park285/triarii/internal/store"
	"github.com/park285/triarii/internal/triarii"
)

// Game is a read view of one stored game.
type Game struct {
	ID        string
	Status    store.Status
	WhiteName string
	BlackName string
	State     triarii.GameState
	Code      string
	Selection triarii.Selection
	Outcome   triarii.Outcome
	Reason    triarii.Reason
	Policy    triarii.Policy
	// Version counts committed states, the starting position included.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Finished reports whether the game is decided.
func (g *Game) Finished() bool { return g != nil && g.Status == store.StatusFinished }

// Seat is a player's claim on one colour. The token authorizes every
// later action.
type Seat struct {
	Color triarii.Color
	Token string
}

var (
	ErrGameNotFound    = errf("game not found")
	ErrInvalidArgs     = errf("invalid arguments")
	ErrSeatTaken       = errf("both seats are taken")
	ErrBadToken        = errf("token does not match a seat in this game")
	ErrNotStarted      = errf("waiting for an opponent")
	ErrNotYourTurn     = errf("not your turn")
	ErrGameOver        = errf("game already finished")
	ErrSelectionLocked = errf("selection is locked while unstacking")
	ErrConflict        = errf("concurrent update, try again")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }
