package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/park285/triarii/internal/match"
	"github.com/park285/triarii/internal/obslog"
	"github.com/park285/triarii/internal/render"
	"github.com/park285/triarii/internal/results"
	"github.com/park285/triarii/internal/store"
	"github.com/park285/triarii/internal/triarii"
	"github.com/park285/triarii/pkg/triariidto"
)

func gameID(r *http.Request) string { return strings.TrimSpace(chi.URLParam(r, "id")) }

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req triariidto.CreateRequest
	if err := decodeBody(r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	g, seat, err := s.games.Create(r.Context(), req.Name, req.Color)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, triariidto.SeatResponse{Game: snapshotFrom(g), Token: seat.Token, Color: seat.Color.String()})
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req triariidto.JoinRequest
	if err := decodeBody(r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	g, seat, err := s.games.Join(r.Context(), gameID(r), req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, triariidto.SeatResponse{Game: snapshotFrom(g), Token: seat.Token, Color: seat.Color.String()})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	g, err := s.games.Snapshot(r.Context(), gameID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotFrom(g))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := gameID(r)
	h, err := s.games.History(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, historyFrom(id, h))
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req triariidto.SelectRequest
	if err := decodeBody(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	at := triarii.Coord{Row: req.Row, Col: req.Col}
	g, err := s.games.Select(r.Context(), gameID(r), tokenFrom(r.Context()), at)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotFrom(g))
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req triariidto.MoveRequest
	if err := decodeBody(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	dir, err := triarii.ParseDirection(req.Dir)
	if err != nil {
		s.writeError(w, r, badRequest("%v", err))
		return
	}
	mv := triarii.Move{From: triarii.Coord{Row: req.From.Row, Col: req.From.Col}, Dir: dir, Count: req.Count}
	g, res, err := s.games.Move(r.Context(), gameID(r), tokenFrom(r.Context()), mv)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := triariidto.MoveResponse{
		Game:      snapshotFrom(g),
		To:        triariidto.Coord{Row: res.To.Row, Col: res.To.Col},
		Moved:     res.Moved,
		Consumed:  res.Consumed,
		Endzone:   res.Endzone,
		TurnEnded: res.TurnEnded,
	}
	if g.Finished() {
		resp.Message = s.resultMessage(g.Outcome.String(), string(g.Reason))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEndTurn(w http.ResponseWriter, r *http.Request) {
	g, err := s.games.EndTurn(r.Context(), gameID(r), tokenFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotFrom(g))
}

func (s *Server) handleResign(w http.ResponseWriter, r *http.Request) {
	g, err := s.games.Resign(r.Context(), gameID(r), tokenFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotFrom(g))
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	g, err := s.games.Snapshot(r.Context(), gameID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	opts := render.Options{
		Selected:      g.Selection,
		EndzoneTarget: g.Policy.EndzoneTarget,
		Header:        s.boardHeader(g),
		Status:        s.statusLine(g),
	}
	png, err := s.renderer.RenderPNG(r.Context(), g.State, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		obslog.L().Warn("board_write_error", zap.String("game_id", g.ID), zap.Error(err))
	}
}

func (s *Server) boardHeader(g *match.Game) string {
	data := map[string]any{"White": orDash(g.WhiteName), "Black": orDash(g.BlackName)}
	return s.msgs.RenderOr("board.header", data, "Triarii")
}

func (s *Server) statusLine(g *match.Game) string {
	if g.Finished() {
		return s.resultMessage(g.Outcome.String(), string(g.Reason))
	}
	if g.Status == store.StatusWaiting {
		return s.msgs.RenderOr("status.waiting", nil, "Waiting for opponent")
	}
	data := map[string]any{"Color": titleColor(g.State.Mover()), "Remaining": 0}
	if g.State.Acted() {
		data["Remaining"] = g.State.PiecesRemaining
	}
	return s.msgs.RenderOr("status.to_move", data, render.TurnLine(g.State))
}

func titleColor(c triarii.Color) string {
	if c == triarii.White {
		return "White"
	}
	return "Black"
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	limit := s.limit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, r, badRequest("limit must be a positive integer"))
			return
		}
		limit = min(n, s.limit)
	}
	list, err := s.results.Recent(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := triariidto.ResultsResponse{Results: make([]triariidto.ResultSummary, 0, len(list))}
	for _, rec := range list {
		out.Results = append(out.Results, s.summaryFrom(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	rec, err := s.results.Get(r.Context(), gameID(r))
	if errors.Is(err, results.ErrNotFound) {
		s.writeError(w, r, match.ErrGameNotFound)
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
