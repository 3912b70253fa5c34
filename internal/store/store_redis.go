package store

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/triarii/internal/obslog"
)

const (
	defaultTTL     = 24 * time.Hour
	defaultRetries = 5
)

// Store keeps game records in Redis: a JSON meta key, an append-only list of
// encoded states and a pub/sub channel for update notifications.
type Store struct {
	rdb     *redis.Client
	ttl     time.Duration
	retries int
}

type Option func(*Store)

// WithTTL sets the expiry refreshed on every write.
func WithTTL(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithRetries bounds the optimistic transaction attempts of Update.
func WithRetries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.retries = n
		}
	}
}

func New(rdb *redis.Client, opts ...Option) *Store {
	s := &Store{rdb: rdb, ttl: defaultTTL, retries: defaultRetries}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open connects to a redis:// or rediss:// URL and pings it.
func Open(ctx context.Context, redisURL string) (*redis.Client, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error { return s.rdb.Ping(ctx).Err() }

func (s *Store) keyMeta(id string) string    { return "triarii:game:" + strings.TrimSpace(id) }
func (s *Store) keyStates(id string) string  { return s.keyMeta(id) + ":states" }
func (s *Store) keyUpdates(id string) string { return s.keyMeta(id) + ":updates" }

// CreateGame stores a new record with its initial state. ErrExists when the
// id is taken.
func (s *Store) CreateGame(ctx context.Context, meta *Meta, first StateEntry) error {
	if meta == nil || strings.TrimSpace(meta.ID) == "" {
		return fmt.Errorf("create game: missing id")
	}
	metaK, statesK := s.keyMeta(meta.ID), s.keyStates(meta.ID)
	meta.Version = 1
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	entryRaw, err := json.Marshal(first)
	if err != nil {
		return err
	}
	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, metaK).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrExists
		}
		pipe := tx.TxPipeline()
		pipe.Set(ctx, metaK, raw, s.ttl)
		pipe.Del(ctx, statesK)
		pipe.RPush(ctx, statesK, entryRaw)
		pipe.Expire(ctx, statesK, s.ttl)
		_, err = pipe.Exec(ctx)
		return err
	}, metaK)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrExists
	}
	return err
}

func (s *Store) LoadMeta(ctx context.Context, id string) (*Meta, error) {
	raw, err := s.rdb.Get(ctx, s.keyMeta(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var m Meta
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode meta %s: %w", id, err)
	}
	return &m, nil
}

// SaveMeta overwrites the meta without a transaction. Writers racing with
// Update should use Update instead.
func (s *Store) SaveMeta(ctx context.Context, meta *Meta) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.keyMeta(meta.ID), raw, s.ttl).Err(); err != nil {
		return err
	}
	// companion TTL
	_ = s.rdb.Expire(ctx, s.keyStates(meta.ID), s.ttl).Err()
	return nil
}

// AppendState pushes e onto the state log and returns the new length.
func (s *Store) AppendState(ctx context.Context, id string, e StateEntry) (int64, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return 0, err
	}
	n, err := s.rdb.RPush(ctx, s.keyStates(id), raw).Result()
	if err != nil {
		return 0, err
	}
	_ = s.rdb.Expire(ctx, s.keyStates(id), s.ttl).Err()
	return n, nil
}

// States returns the whole state log, oldest first.
func (s *Store) States(ctx context.Context, id string) ([]StateEntry, error) {
	out, err := readStates(ctx, s.rdb, s.keyStates(id))
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// Latest returns the newest state.
func (s *Store) Latest(ctx context.Context, id string) (StateEntry, error) {
	raw, err := s.rdb.LIndex(ctx, s.keyStates(id), -1).Bytes()
	if err == redis.Nil {
		return StateEntry{}, ErrNotFound
	}
	if err != nil {
		return StateEntry{}, err
	}
	var e StateEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return StateEntry{}, fmt.Errorf("decode state of %s: %w", id, err)
	}
	return e, nil
}

func readStates(ctx context.Context, c redis.Cmdable, key string) ([]StateEntry, error) {
	raws, err := c.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]StateEntry, 0, len(raws))
	for i, raw := range raws {
		var e StateEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("decode state %d: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Mutation edits m in place after inspecting the state log. A non-nil entry
// is appended in the same transaction. It may run more than once.
type Mutation func(m *Meta, history []StateEntry) (*StateEntry, error)

// Update runs fn inside a WATCH/MULTI transaction on the game keys and
// returns the committed meta and state log. Lost races are retried; once the
// budget is spent the result is ErrConflict.
func (s *Store) Update(ctx context.Context, id string, fn Mutation) (*Meta, []StateEntry, error) {
	metaK, statesK := s.keyMeta(id), s.keyStates(id)
	for attempt := 1; attempt <= s.retries; attempt++ {
		var (
			committed *Meta
			history   []StateEntry
		)
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, metaK).Bytes()
			if err == redis.Nil {
				return ErrNotFound
			}
			if err != nil {
				return err
			}
			var cur Meta
			if err := json.Unmarshal(raw, &cur); err != nil {
				return fmt.Errorf("decode meta %s: %w", id, err)
			}
			hist, err := readStates(ctx, tx, statesK)
			if err != nil {
				return err
			}
			entry, err := fn(&cur, hist)
			if err != nil {
				return err
			}
			var entryRaw []byte
			if entry != nil {
				if entryRaw, err = json.Marshal(entry); err != nil {
					return err
				}
				cur.Version++
				hist = append(hist, *entry)
			}
			newRaw, err := json.Marshal(&cur)
			if err != nil {
				return err
			}
			pipe := tx.TxPipeline()
			pipe.Set(ctx, metaK, newRaw, s.ttl)
			if entryRaw != nil {
				pipe.RPush(ctx, statesK, entryRaw)
			}
			pipe.Expire(ctx, statesK, s.ttl)
			if _, err := pipe.Exec(ctx); err != nil {
				return err
			}
			committed, history = &cur, hist
			return nil
		}, metaK, statesK)
		if err == nil {
			return committed, history, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, nil, err
		}
		obslog.L().Debug("store_update_retry", zap.String("game_id", id), zap.Int("attempt", attempt))
	}
	return nil, nil, ErrConflict
}

// Publish notifies subscribers of id.
func (s *Store) Publish(ctx context.Context, id string, payload []byte) error {
	return s.rdb.Publish(ctx, s.keyUpdates(id), payload).Err()
}

// Subscribe listens on the update channel of id until ctx is done or the
// returned close function is called.
func (s *Store) Subscribe(ctx context.Context, id string) (<-chan []byte, func() error, error) {
	ps := s.rdb.Subscribe(ctx, s.keyUpdates(id))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", id, err)
	}
	out := make(chan []byte, 8)
	go func() {
		defer close(out)
		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, ps.Close, nil
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("redis db %q: %w", p, err)
		}
		db = n
	}
	pass, _ := u.User.Password()
	opts := &redis.Options{Addr: u.Host, Password: pass, DB: db}
	if u.Scheme == "rediss" {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts, nil
}
