package store

import (
	"time"

	"github.com/park285/triarii/internal/triarii"
)

// Status is the lifecycle of a game record.
type Status string

const (
	StatusWaiting  Status = "WAITING"
	StatusActive   Status = "ACTIVE"
	StatusFinished Status = "FINISHED"
)

// Meta is stored as JSON under triarii:game:<id>.
type Meta struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	WhiteName  string `json:"white_name,omitempty"`
	WhiteToken string `json:"white_token,omitempty"`
	BlackName  string `json:"black_name,omitempty"`
	BlackToken string `json:"black_token,omitempty"`

	Policy triarii.Policy `json:"policy"`

	// Selected is the pending selection ("row,col" or empty). It lives on
	// the meta so that selection changes do not grow the state log.
	Selected string `json:"selected,omitempty"`
	// Version counts committed states, the initial one included.
	Version int64 `json:"version"`

	Outcome string `json:"outcome,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// StateEntry is one element of triarii:game:<id>:states.
type StateEntry struct {
	Code     string    `json:"code"`
	Selected string    `json:"selected,omitempty"`
	At       time.Time `json:"at"`
}

// Codes returns the encoded states of entries in order.
func Codes(entries []StateEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Code
	}
	return out
}

var (
	ErrNotFound = errf("game not found or expired")
	ErrExists   = errf("game id already in use")
	ErrConflict = errf("concurrent update, retry budget exhausted")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }
