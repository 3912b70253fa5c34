package httpapi

import (
	"github.com/park285/triarii/internal/match"
	"github.com/park285/triarii/internal/results"
	"github.com/park285/triarii/internal/store"
	"github.com/park285/triarii/internal/triarii"
	"github.com/park285/triarii/pkg/triariidto"
)

func snapshotFrom(g *match.Game) triariidto.Snapshot {
	st := g.State
	out := triariidto.Snapshot{
		ID:             g.ID,
		Status:         string(g.Status),
		White:          g.WhiteName,
		Black:          g.BlackName,
		Code:           g.Code,
		Board:          make([][]string, triarii.Size),
		WhiteInEndzone: st.WhiteInEndzone,
		BlackInEndzone: st.BlackInEndzone,
		EndzoneTarget:  g.Policy.EndzoneTarget,
		ToMove:         st.Mover().String(),
		FirstAction:    st.FirstAction,
		Outcome:        g.Outcome.String(),
		Reason:         string(g.Reason),
		Version:        g.Version,
		UpdatedAt:      g.UpdatedAt,
	}
	if out.EndzoneTarget == 0 {
		out.EndzoneTarget = triarii.DefaultPolicy().EndzoneTarget
	}
	for row := range st.Board {
		out.Board[row] = make([]string, triarii.Size)
		for col, sq := range st.Board[row] {
			out.Board[row][col] = sq.String()
		}
	}
	if st.Acted() {
		n := st.PiecesRemaining
		out.PiecesRemaining = &n
	}
	if g.Selection.Active {
		out.Selected = &triariidto.Coord{Row: g.Selection.Cell.Row, Col: g.Selection.Cell.Col}
	}
	return out
}

func historyFrom(id string, entries []store.StateEntry) triariidto.HistoryResponse {
	out := triariidto.HistoryResponse{ID: id, Entries: make([]triariidto.HistoryEntry, len(entries))}
	for i, e := range entries {
		out.Entries[i] = triariidto.HistoryEntry{Seq: i, Code: e.Code, Selected: e.Selected, At: e.At}
	}
	return out
}

func (s *Server) summaryFrom(r results.Record) triariidto.ResultSummary {
	return triariidto.ResultSummary{
		GameID:     r.GameID,
		White:      r.WhiteName,
		Black:      r.BlackName,
		Outcome:    r.Outcome,
		Reason:     r.Reason,
		Message:    s.resultMessage(r.Outcome, r.Reason),
		Moves:      r.Moves,
		EndedAt:    r.EndedAt,
		DurationMS: r.DurationMS,
	}
}

func (s *Server) resultMessage(outcome, reason string) string {
	if outcome == "" || outcome == triarii.Ongoing.String() {
		return ""
	}
	fallback := outcome
	if reason != "" {
		fallback += " (" + reason + ")"
	}
	if s.msgs == nil {
		return fallback
	}
	return s.msgs.RenderOr("results."+outcome+"."+reason, nil, fallback)
}
