package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS triarii_games (
	game_id       TEXT PRIMARY KEY,
	white_name    TEXT NOT NULL DEFAULT '',
	black_name    TEXT NOT NULL DEFAULT '',
	outcome       TEXT NOT NULL,
	reason        TEXT NOT NULL DEFAULT '',
	final_code    TEXT NOT NULL,
	white_endzone INT NOT NULL DEFAULT 0,
	black_endzone INT NOT NULL DEFAULT 0,
	moves         INT NOT NULL DEFAULT 0,
	started_at    TIMESTAMPTZ NOT NULL,
	ended_at      TIMESTAMPTZ NOT NULL,
	duration_ms   BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS triarii_games_ended_at_idx ON triarii_games (ended_at DESC);
CREATE TABLE IF NOT EXISTS triarii_game_states (
	id       BIGSERIAL PRIMARY KEY,
	game_id  TEXT NOT NULL REFERENCES triarii_games (game_id) ON DELETE CASCADE,
	seq      INT NOT NULL,
	code     TEXT NOT NULL,
	selected TEXT NOT NULL DEFAULT '',
	at       TIMESTAMPTZ NOT NULL,
	UNIQUE (game_id, seq)
);`

// Postgres stores results in triarii_games and the state log in
// triarii_game_states.
type Postgres struct {
	db *sql.DB
}

var _ Repository = (*Postgres)(nil)

func NewPostgres(databaseURL string) (*Postgres, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

// EnsureSchema creates the tables when missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// SaveResult upserts the game row and replaces its state log.
func (p *Postgres) SaveResult(ctx context.Context, r *Record) (err error) {
	if p == nil || p.db == nil || r == nil {
		return nil
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const q = `INSERT INTO triarii_games (
		game_id, white_name, black_name, outcome, reason, final_code,
		white_endzone, black_endzone, moves, started_at, ended_at, duration_ms
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	ON CONFLICT (game_id) DO UPDATE SET
		white_name=EXCLUDED.white_name,
		black_name=EXCLUDED.black_name,
		outcome=EXCLUDED.outcome,
		reason=EXCLUDED.reason,
		final_code=EXCLUDED.final_code,
		white_endzone=EXCLUDED.white_endzone,
		black_endzone=EXCLUDED.black_endzone,
		moves=EXCLUDED.moves,
		started_at=EXCLUDED.started_at,
		ended_at=EXCLUDED.ended_at,
		duration_ms=EXCLUDED.duration_ms`
	if _, err = tx.ExecContext(ctx, q,
		r.GameID, r.WhiteName, r.BlackName, r.Outcome, r.Reason, r.FinalCode,
		r.WhiteEndzone, r.BlackEndzone, r.Moves, r.StartedAt, r.EndedAt, durationMS(r),
	); err != nil {
		return fmt.Errorf("upsert game %s: %w", r.GameID, err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM triarii_game_states WHERE game_id = $1`, r.GameID); err != nil {
		return fmt.Errorf("clear states %s: %w", r.GameID, err)
	}
	if len(r.States) > 0 {
		stmt, perr := tx.PrepareContext(ctx, pq.CopyIn("triarii_game_states", "game_id", "seq", "code", "selected", "at"))
		if perr != nil {
			err = perr
			return fmt.Errorf("copy states %s: %w", r.GameID, err)
		}
		for _, s := range r.States {
			if _, err = stmt.ExecContext(ctx, r.GameID, s.Seq, s.Code, s.Selected, s.At); err != nil {
				_ = stmt.Close()
				return fmt.Errorf("copy state %d: %w", s.Seq, err)
			}
		}
		if _, err = stmt.ExecContext(ctx); err != nil {
			_ = stmt.Close()
			return fmt.Errorf("flush states %s: %w", r.GameID, err)
		}
		if err = stmt.Close(); err != nil {
			return err
		}
	}
	return tx.Commit()
}

const selectGame = `SELECT game_id, white_name, black_name, outcome, reason, final_code,
	white_endzone, black_endzone, moves, started_at, ended_at, duration_ms
	FROM triarii_games`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var r Record
	err := row.Scan(
		&r.GameID, &r.WhiteName, &r.BlackName, &r.Outcome, &r.Reason, &r.FinalCode,
		&r.WhiteEndzone, &r.BlackEndzone, &r.Moves, &r.StartedAt, &r.EndedAt, &r.DurationMS,
	)
	return r, err
}

// Recent returns the latest finished games, newest first.
func (p *Postgres) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := p.db.QueryContext(ctx, selectGame+` ORDER BY ended_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("select results: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0, limit)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Get returns one game with its state log.
func (p *Postgres) Get(ctx context.Context, gameID string) (*Record, error) {
	r, err := scanRecord(p.db.QueryRowContext(ctx, selectGame+` WHERE game_id = $1`, strings.TrimSpace(gameID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select result %s: %w", gameID, err)
	}

	rows, err := p.db.QueryContext(ctx,
		`SELECT seq, code, selected, at FROM triarii_game_states WHERE game_id = $1 ORDER BY seq`, r.GameID)
	if err != nil {
		return nil, fmt.Errorf("select states %s: %w", gameID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var s StateRow
		if err := rows.Scan(&s.Seq, &s.Code, &s.Selected, &s.At); err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}
		r.States = append(r.States, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &r, nil
}
