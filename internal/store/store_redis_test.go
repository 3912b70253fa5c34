package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/park285/triarii/internal/triarii"
)

func newTestStore(t *testing.T, opts ...Option) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	rdb, err := Open(context.Background(), fmt.Sprintf("redis://%s/0", mr.Addr()))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	s := New(rdb, opts...)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func seedGame(t *testing.T, s *Store, id string) {
	t.Helper()
	meta := &Meta{ID: id, Status: StatusWaiting, CreatedAt: time.Now(), Policy: triarii.DefaultPolicy()}
	first := StateEntry{Code: triarii.NewGame().Encode(), At: time.Now()}
	if err := s.CreateGame(context.Background(), meta, first); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
}

func TestCreateLoadAndTTL(t *testing.T) {
	s, mr := newTestStore(t, WithTTL(2*time.Hour))
	ctx := context.Background()
	seedGame(t, s, "g1")

	m, err := s.LoadMeta(ctx, "g1")
	if err != nil {
		t.Fatalf("LoadMeta: %v", err)
	}
	if m.Version != 1 || m.Status != StatusWaiting {
		t.Fatalf("unexpected meta %+v", m)
	}
	if m.Policy != triarii.DefaultPolicy() {
		t.Fatalf("policy not persisted: %+v", m.Policy)
	}
	if ttl := mr.TTL("triarii:game:g1"); ttl != 2*time.Hour {
		t.Fatalf("meta ttl = %v", ttl)
	}
	if ttl := mr.TTL("triarii:game:g1:states"); ttl != 2*time.Hour {
		t.Fatalf("states ttl = %v", ttl)
	}

	meta := &Meta{ID: "g1"}
	if err := s.CreateGame(ctx, meta, StateEntry{}); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if _, err := s.LoadMeta(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAppendStatesAndLatest(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	seedGame(t, s, "g2")

	n, err := s.AppendState(ctx, "g2", StateEntry{Code: "second", Selected: "1,1"})
	if err != nil || n != 2 {
		t.Fatalf("AppendState: n=%d err=%v", n, err)
	}
	states, err := s.States(ctx, "g2")
	if err != nil {
		t.Fatalf("States: %v", err)
	}
	if len(states) != 2 || states[0].Code != triarii.NewGame().Encode() {
		t.Fatalf("unexpected states %+v", states)
	}
	latest, err := s.Latest(ctx, "g2")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.Code != "second" || latest.Selected != "1,1" {
		t.Fatalf("unexpected latest %+v", latest)
	}
	if got := Codes(states); got[1] != "second" {
		t.Fatalf("Codes = %v", got)
	}
	if _, err := s.Latest(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateAppendsAndBumpsVersion(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	seedGame(t, s, "g3")

	m, hist, err := s.Update(ctx, "g3", func(m *Meta, history []StateEntry) (*StateEntry, error) {
		if len(history) != 1 {
			return nil, fmt.Errorf("history len %d", len(history))
		}
		m.Status = StatusActive
		m.Selected = "2,3"
		return &StateEntry{Code: "next"}, nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if m.Version != 2 || m.Status != StatusActive || len(hist) != 2 {
		t.Fatalf("unexpected result meta=%+v len=%d", m, len(hist))
	}

	// meta-only update keeps the log
	m, hist, err = s.Update(ctx, "g3", func(m *Meta, _ []StateEntry) (*StateEntry, error) {
		m.Selected = ""
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if m.Version != 2 || len(hist) != 2 || m.Selected != "" {
		t.Fatalf("meta-only update changed log: %+v len=%d", m, len(hist))
	}

	sentinel := errors.New("refused")
	if _, _, err := s.Update(ctx, "g3", func(*Meta, []StateEntry) (*StateEntry, error) { return nil, sentinel }); !errors.Is(err, sentinel) {
		t.Fatalf("expected mutation error, got %v", err)
	}
	if _, _, err := s.Update(ctx, "nope", func(*Meta, []StateEntry) (*StateEntry, error) { return nil, nil }); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateRetriesThenConflicts(t *testing.T) {
	s, _ := newTestStore(t, WithRetries(3))
	ctx := context.Background()
	seedGame(t, s, "g4")

	calls := 0
	// Every attempt writes the watched key from outside the transaction.
	_, _, err := s.Update(ctx, "g4", func(m *Meta, _ []StateEntry) (*StateEntry, error) {
		calls++
		if _, err := s.AppendState(ctx, "g4", StateEntry{Code: "interloper"}); err != nil {
			return nil, err
		}
		return &StateEntry{Code: "mine"}, nil
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}

	// A single lost race is absorbed by the retry.
	calls = 0
	m, _, err := s.Update(ctx, "g4", func(m *Meta, _ []StateEntry) (*StateEntry, error) {
		calls++
		if calls == 1 {
			if _, err := s.AppendState(ctx, "g4", StateEntry{Code: "interloper"}); err != nil {
				return nil, err
			}
		}
		m.Selected = "0,0"
		return nil, nil
	})
	if err != nil || calls != 2 || m.Selected != "0,0" {
		t.Fatalf("retry failed: calls=%d err=%v", calls, err)
	}
}

func TestPublishSubscribe(t *testing.T) {
	s, _ := newTestStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, closeFn, err := s.Subscribe(ctx, "g5")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer func() { _ = closeFn() }()

	if err := s.Publish(ctx, "g5", []byte("7")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	select {
	case msg := <-ch:
		if string(msg) != "7" {
			t.Fatalf("unexpected payload %q", msg)
		}
	case <-ctx.Done():
		t.Fatalf("no message received")
	}
}

func TestParseRedisURL(t *testing.T) {
	opts, err := parseRedisURL("redis://:secret@localhost:6380/2")
	if err != nil {
		t.Fatalf("parseRedisURL: %v", err)
	}
	if opts.Addr != "localhost:6380" || opts.Password != "secret" || opts.DB != 2 {
		t.Fatalf("unexpected options %+v", opts)
	}
	if opts, err := parseRedisURL("rediss://host:6379"); err != nil || opts.TLSConfig == nil {
		t.Fatalf("rediss should enable TLS: %v", err)
	}
	if _, err := parseRedisURL("http://host"); err == nil {
		t.Fatalf("expected scheme error")
	}
}
