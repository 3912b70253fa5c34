package results

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("result not found")

// Record is a finished game as archived.
type Record struct {
	GameID       string     `json:"game_id"`
	WhiteName    string     `json:"white_name"`
	BlackName    string     `json:"black_name"`
	Outcome      string     `json:"outcome"`
	Reason       string     `json:"reason"`
	FinalCode    string     `json:"final_code"`
	WhiteEndzone int        `json:"white_endzone"`
	BlackEndzone int        `json:"black_endzone"`
	Moves        int        `json:"moves"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      time.Time  `json:"ended_at"`
	DurationMS   int64      `json:"duration_ms"`
	States       []StateRow `json:"states,omitempty"`
}

// StateRow is one archived state, Seq 0 being the starting position.
type StateRow struct {
	Seq      int       `json:"seq"`
	Code     string    `json:"code"`
	Selected string    `json:"selected,omitempty"`
	At       time.Time `json:"at"`
}

// Repository archives finished games. SaveResult is an upsert keyed by game
// id; Recent omits the state log.
type Repository interface {
	SaveResult(ctx context.Context, r *Record) error
	Recent(ctx context.Context, limit int) ([]Record, error)
	Get(ctx context.Context, gameID string) (*Record, error)
	Close() error
}

func durationMS(r *Record) int64 {
	d := r.EndedAt.Sub(r.StartedAt).Milliseconds()
	if d < 0 {
		return 0
	}
	return d
}
