package match

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/triarii/internal/obslog"
	"github.com/park285/triarii/internal/results"
	"github.com/park285/triarii/internal/store"
	"github.com/park285/triarii/internal/triarii"
)

// Manager runs games on top of the Redis store. Every state change goes
// through store.Update, so concurrent submissions for one game serialize on
// the WATCHed keys.
type Manager struct {
	store  *store.Store
	repo   results.Repository
	policy triarii.Policy
	now    func() time.Time
}

func NewManager(st *store.Store, policy triarii.Policy) *Manager {
	return &Manager{store: st, policy: policy, now: time.Now}
}

// AttachRepository wires the archive for finished games.
func (m *Manager) AttachRepository(r results.Repository) {
	if m != nil {
		m.repo = r
	}
}

// Policy is the rule policy given to new games.
func (m *Manager) Policy() triarii.Policy { return m.policy }

// Create opens a game and seats the creator. color is white, black or
// random (empty means random).
func (m *Manager) Create(ctx context.Context, name, color string) (*Game, Seat, error) {
	c, err := parseColorChoice(color)
	if err != nil {
		return nil, Seat{}, err
	}
	now := m.now()
	seat := Seat{Color: c, Token: uuid.NewString()}
	meta := &store.Meta{
		ID:        uuid.NewString(),
		Status:    store.StatusWaiting,
		CreatedAt: now,
		UpdatedAt: now,
		Policy:    m.policy,
	}
	sit(meta, seat, playerName(name, c))
	first := store.StateEntry{Code: triarii.NewGame().Encode(), At: now}
	if err := m.store.CreateGame(ctx, meta, first); err != nil {
		return nil, Seat{}, translate(err)
	}
	obslog.L().Info("game_create",
		zap.String("game_id", meta.ID),
		zap.String("color", c.String()),
		zap.String("name", playerName(name, c)),
	)
	g, err := view(meta, first)
	if err != nil {
		return nil, Seat{}, err
	}
	return g, seat, nil
}

// Join takes the free seat of a waiting game.
func (m *Manager) Join(ctx context.Context, id, name string) (*Game, Seat, error) {
	var seat Seat
	meta, history, err := m.store.Update(ctx, id, func(meta *store.Meta, _ []store.StateEntry) (*store.StateEntry, error) {
		switch meta.Status {
		case store.StatusFinished:
			return nil, ErrGameOver
		case store.StatusActive:
			return nil, ErrSeatTaken
		}
		c := triarii.White
		if meta.WhiteToken != "" {
			c = triarii.Black
		}
		seat = Seat{Color: c, Token: uuid.NewString()}
		sit(meta, seat, playerName(name, c))
		meta.Status = store.StatusActive
		meta.UpdatedAt = m.now()
		return nil, nil
	})
	if err != nil {
		return nil, Seat{}, translate(err)
	}
	obslog.L().Info("game_join",
		zap.String("game_id", meta.ID),
		zap.String("color", seat.Color.String()),
	)
	g, err := m.commit(ctx, meta, history)
	if err != nil {
		return nil, Seat{}, err
	}
	return g, seat, nil
}

// Snapshot returns the current view of a game.
func (m *Manager) Snapshot(ctx context.Context, id string) (*Game, error) {
	meta, err := m.store.LoadMeta(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	latest, err := m.store.Latest(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return view(meta, latest)
}

// History returns the full state log.
func (m *Manager) History(ctx context.Context, id string) ([]store.StateEntry, error) {
	h, err := m.store.States(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return h, nil
}

// Select records the pending selection of the side to move. It is refused
// once an unstacking sequence has started.
func (m *Manager) Select(ctx context.Context, id, token string, at triarii.Coord) (*Game, error) {
	meta, history, err := m.store.Update(ctx, id, func(meta *store.Meta, history []store.StateEntry) (*store.StateEntry, error) {
		state, _, err := turnOf(meta, history, token)
		if err != nil {
			return nil, err
		}
		if !triarii.CanSelect(state) {
			return nil, ErrSelectionLocked
		}
		if !at.OnBoard() {
			return nil, fmt.Errorf("%w: selection %s", triarii.ErrOutOfBounds, at)
		}
		meta.Selected = triarii.Select(at).String()
		meta.UpdatedAt = m.now()
		return nil, nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return m.commit(ctx, meta, history)
}

// Move applies one stacking or unstacking step for the side to move.
func (m *Manager) Move(ctx context.Context, id, token string, mv triarii.Move) (*Game, triarii.MoveResult, error) {
	var (
		res     triarii.MoveResult
		verdict triarii.Verdict
		mover   triarii.Color
	)
	meta, history, err := m.store.Update(ctx, id, func(meta *store.Meta, history []store.StateEntry) (*store.StateEntry, error) {
		state, color, err := turnOf(meta, history, token)
		if err != nil {
			return nil, err
		}
		sel, err := triarii.ParseSelection(meta.Selected)
		if err != nil {
			sel = triarii.Selection{}
		}
		if err := triarii.CheckContinuation(state, sel, mv.From); err != nil {
			return nil, err
		}
		r, err := triarii.ApplyMove(state, mv, meta.Policy)
		if err != nil {
			return nil, err
		}
		now := m.now()
		entry := &store.StateEntry{Code: r.State.Encode(), Selected: r.Selection.String(), At: now}
		codes := append(store.Codes(history), entry.Code)
		v := triarii.Evaluate(r.State, color, codes, meta.Policy)

		meta.Selected = entry.Selected
		meta.UpdatedAt = now
		conclude(meta, v)
		res, verdict, mover = r, v, color
		return entry, nil
	})
	if err != nil {
		return nil, triarii.MoveResult{}, translate(err)
	}
	obslog.L().Info("game_move",
		zap.String("game_id", meta.ID),
		zap.String("color", mover.String()),
		zap.String("from", mv.From.String()),
		zap.String("dir", mv.Dir.String()),
		zap.Int("count", mv.Count),
		zap.Int("moved", res.Moved),
		zap.Int("consumed", res.Consumed),
		zap.Bool("endzone", res.Endzone),
		zap.Bool("turn_ended", res.TurnEnded),
	)
	m.finish(ctx, meta, history, verdict)
	g, err := m.commit(ctx, meta, history)
	if err != nil {
		return nil, triarii.MoveResult{}, err
	}
	return g, res, nil
}

// EndTurn passes the rest of the turn of the side to move.
func (m *Manager) EndTurn(ctx context.Context, id, token string) (*Game, error) {
	var verdict triarii.Verdict
	meta, history, err := m.store.Update(ctx, id, func(meta *store.Meta, history []store.StateEntry) (*store.StateEntry, error) {
		state, color, err := turnOf(meta, history, token)
		if err != nil {
			return nil, err
		}
		next, err := triarii.EndTurn(state)
		if err != nil {
			return nil, err
		}
		now := m.now()
		entry := &store.StateEntry{Code: next.Encode(), At: now}
		codes := append(store.Codes(history), entry.Code)
		verdict = triarii.Evaluate(next, color, codes, meta.Policy)

		meta.Selected = ""
		meta.UpdatedAt = now
		conclude(meta, verdict)
		return entry, nil
	})
	if err != nil {
		return nil, translate(err)
	}
	obslog.L().Info("game_end_turn", zap.String("game_id", meta.ID), zap.Int64("version", meta.Version))
	m.finish(ctx, meta, history, verdict)
	return m.commit(ctx, meta, history)
}

// Resign concedes the game for the holder of token, on either turn.
func (m *Manager) Resign(ctx context.Context, id, token string) (*Game, error) {
	var verdict triarii.Verdict
	meta, history, err := m.store.Update(ctx, id, func(meta *store.Meta, _ []store.StateEntry) (*store.StateEntry, error) {
		if err := requireActive(meta); err != nil {
			return nil, err
		}
		color, err := seatOf(meta, token)
		if err != nil {
			return nil, err
		}
		verdict = triarii.Verdict{Outcome: triarii.WinFor(color.Opponent()), Reason: triarii.ReasonResignation}
		meta.Selected = ""
		meta.UpdatedAt = m.now()
		conclude(meta, verdict)
		return nil, nil
	})
	if err != nil {
		return nil, translate(err)
	}
	obslog.L().Info("game_resign", zap.String("game_id", meta.ID), zap.String("winner", meta.Outcome))
	m.finish(ctx, meta, history, verdict)
	return m.commit(ctx, meta, history)
}

// Watch streams snapshots of a game: the current one first, then one per
// committed change, until ctx is done.
func (m *Manager) Watch(ctx context.Context, id string) (<-chan *Game, error) {
	if _, err := m.store.LoadMeta(ctx, id); err != nil {
		return nil, translate(err)
	}
	updates, closeSub, err := m.store.Subscribe(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make(chan *Game, 4)
	go func() {
		defer close(out)
		defer func() { _ = closeSub() }()
		send := func() bool {
			g, err := m.Snapshot(ctx, id)
			if err != nil {
				obslog.L().Warn("game_watch_snapshot_error", zap.String("game_id", id), zap.Error(err))
				return !errors.Is(err, ErrGameNotFound)
			}
			select {
			case out <- g:
				return true
			case <-ctx.Done():
				return false
			}
		}
		if !send() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-updates:
				if !ok || !send() {
					return
				}
			}
		}
	}()
	return out, nil
}

// commit publishes the change and returns the committed view.
func (m *Manager) commit(ctx context.Context, meta *store.Meta, history []store.StateEntry) (*Game, error) {
	if len(history) == 0 {
		return nil, ErrGameNotFound
	}
	if err := m.store.Publish(ctx, meta.ID, []byte(strconv.FormatInt(meta.Version, 10))); err != nil {
		obslog.L().Warn("game_publish_error", zap.String("game_id", meta.ID), zap.Error(err))
	}
	return view(meta, history[len(history)-1])
}

func (m *Manager) finish(ctx context.Context, meta *store.Meta, history []store.StateEntry, v triarii.Verdict) {
	if !v.Outcome.Decided() {
		return
	}
	obslog.L().Info("game_finish",
		zap.String("game_id", meta.ID),
		zap.String("outcome", v.Outcome.String()),
		zap.String("reason", string(v.Reason)),
	)
	_ = m.persistIfFinal(ctx, meta, history)
}

// persistIfFinal saves the final result to the archive if one is attached.
func (m *Manager) persistIfFinal(ctx context.Context, meta *store.Meta, history []store.StateEntry) error {
	if m == nil || m.repo == nil || meta == nil || meta.Status != store.StatusFinished {
		return nil
	}
	rec := &results.Record{
		GameID:    meta.ID,
		WhiteName: meta.WhiteName,
		BlackName: meta.BlackName,
		Outcome:   meta.Outcome,
		Reason:    meta.Reason,
		StartedAt: meta.CreatedAt,
		EndedAt:   meta.UpdatedAt,
	}
	if n := len(history); n > 0 {
		rec.FinalCode = history[n-1].Code
		rec.Moves = n - 1
		if s, err := triarii.DecodeState(rec.FinalCode); err == nil {
			rec.WhiteEndzone, rec.BlackEndzone = s.WhiteInEndzone, s.BlackInEndzone
		}
	}
	rec.States = make([]results.StateRow, len(history))
	for i, e := range history {
		rec.States[i] = results.StateRow{Seq: i, Code: e.Code, Selected: e.Selected, At: e.At}
	}
	if err := m.repo.SaveResult(ctx, rec); err != nil {
		obslog.L().Error("game_result_persist_error", zap.String("game_id", meta.ID), zap.String("outcome", meta.Outcome), zap.Error(err))
		return err
	}
	obslog.L().Info("game_result_persist", zap.String("game_id", meta.ID), zap.String("outcome", meta.Outcome), zap.String("reason", meta.Reason))
	return nil
}

// Helpers

func conclude(meta *store.Meta, v triarii.Verdict) {
	if !v.Outcome.Decided() {
		return
	}
	meta.Status = store.StatusFinished
	meta.Outcome = v.Outcome.String()
	meta.Reason = string(v.Reason)
	meta.Selected = ""
}

func requireActive(meta *store.Meta) error {
	switch meta.Status {
	case store.StatusWaiting:
		return ErrNotStarted
	case store.StatusFinished:
		return ErrGameOver
	}
	return nil
}

func seatOf(meta *store.Meta, token string) (triarii.Color, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return triarii.White, ErrBadToken
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(meta.WhiteToken)) == 1 {
		return triarii.White, nil
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(meta.BlackToken)) == 1 {
		return triarii.Black, nil
	}
	return triarii.White, ErrBadToken
}

// turnOf checks that token holds the side to move and returns the latest
// state.
func turnOf(meta *store.Meta, history []store.StateEntry, token string) (triarii.GameState, triarii.Color, error) {
	if err := requireActive(meta); err != nil {
		return triarii.GameState{}, triarii.White, err
	}
	color, err := seatOf(meta, token)
	if err != nil {
		return triarii.GameState{}, color, err
	}
	if len(history) == 0 {
		return triarii.GameState{}, color, ErrGameNotFound
	}
	state, err := triarii.DecodeState(history[len(history)-1].Code)
	if err != nil {
		return triarii.GameState{}, color, err
	}
	if state.Mover() != color {
		return state, color, ErrNotYourTurn
	}
	return state, color, nil
}

func sit(meta *store.Meta, seat Seat, name string) {
	if seat.Color == triarii.White {
		meta.WhiteToken, meta.WhiteName = seat.Token, name
		return
	}
	meta.BlackToken, meta.BlackName = seat.Token, name
}

func playerName(name string, c triarii.Color) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	return c.String()
}

func parseColorChoice(s string) (triarii.Color, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w":
		return triarii.White, nil
	case "black", "b":
		return triarii.Black, nil
	case "", "random":
		if n, err := rand.Int(rand.Reader, big.NewInt(2)); err == nil && n.Int64() == 1 {
			return triarii.Black, nil
		}
		return triarii.White, nil
	}
	return triarii.White, fmt.Errorf("%w: color %q", ErrInvalidArgs, s)
}

func parseOutcome(s string) triarii.Outcome {
	switch s {
	case "white":
		return triarii.WhiteWins
	case "black":
		return triarii.BlackWins
	case "draw":
		return triarii.Draw
	}
	return triarii.Ongoing
}

func view(meta *store.Meta, latest store.StateEntry) (*Game, error) {
	state, err := triarii.DecodeState(latest.Code)
	if err != nil {
		return nil, fmt.Errorf("game %s: %w", meta.ID, err)
	}
	sel, err := triarii.ParseSelection(meta.Selected)
	if err != nil {
		sel = triarii.Selection{}
	}
	return &Game{
		ID:        meta.ID,
		Status:    meta.Status,
		WhiteName: meta.WhiteName,
		BlackName: meta.BlackName,
		State:     state,
		Code:      latest.Code,
		Selection: sel,
		Outcome:   parseOutcome(meta.Outcome),
		Reason:    triarii.Reason(meta.Reason),
		Policy:    meta.Policy,
		Version:   meta.Version,
		CreatedAt: meta.CreatedAt,
		UpdatedAt: meta.UpdatedAt,
	}, nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return ErrGameNotFound
	case errors.Is(err, store.ErrConflict):
		return ErrConflict
	}
	return err
}
