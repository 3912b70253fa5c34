package triariidto

import "time"

type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Snapshot is the public view of a game. Board holds square codes by row,
// "_" for empty squares.
type Snapshot struct {
	ID             string     `json:"id"`
	Status         string     `json:"status"`
	White          string     `json:"white,omitempty"`
	Black          string     `json:"black,omitempty"`
	Code           string     `json:"code"`
	Board          [][]string `json:"board"`
	WhiteInEndzone int        `json:"white_in_endzone"`
	BlackInEndzone int        `json:"black_in_endzone"`
	EndzoneTarget  int        `json:"endzone_target"`
	ToMove         string     `json:"to_move"`
	// PiecesRemaining is nil until the side to move has acted.
	PiecesRemaining *int      `json:"pieces_remaining,omitempty"`
	FirstAction     bool      `json:"first_action"`
	Selected        *Coord    `json:"selected,omitempty"`
	Outcome         string    `json:"outcome"`
	Reason          string    `json:"reason,omitempty"`
	Version         int64     `json:"version"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type SeatResponse struct {
	Game  Snapshot `json:"game"`
	Token string   `json:"token"`
	Color string   `json:"color"`
}

type HistoryEntry struct {
	Seq      int       `json:"seq"`
	Code     string    `json:"code"`
	Selected string    `json:"selected,omitempty"`
	At       time.Time `json:"at"`
}

type HistoryResponse struct {
	ID      string         `json:"id"`
	Entries []HistoryEntry `json:"entries"`
}

type MoveResponse struct {
	Game      Snapshot `json:"game"`
	To        Coord    `json:"to"`
	Moved     int      `json:"moved"`
	Consumed  int      `json:"consumed"`
	Endzone   bool     `json:"endzone"`
	TurnEnded bool     `json:"turn_ended"`
	// Message is a readable summary, set when the move decided the game.
	Message string `json:"message,omitempty"`
}
