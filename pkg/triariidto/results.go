package triariidto

import "time"

type ResultSummary struct {
	GameID     string    `json:"game_id"`
	White      string    `json:"white"`
	Black      string    `json:"black"`
	Outcome    string    `json:"outcome"`
	Reason     string    `json:"reason"`
	Message    string    `json:"message,omitempty"`
	Moves      int       `json:"moves"`
	EndedAt    time.Time `json:"ended_at"`
	DurationMS int64     `json:"duration_ms"`
}

type ResultsResponse struct {
	Results []ResultSummary `json:"results"`
}
