package client

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/triarii/internal/obslog"
	"github.com/park285/triarii/pkg/triariidto"
)

const (
	watchDialTimeout  = 10 * time.Second
	watchReconnectMax = 5
)

// WatchURL is the WebSocket endpoint of a game.
func (c *Client) WatchURL(id string) string {
	base := c.baseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + gamePath(id, "/ws")
}

// Watch streams snapshots of a game. The channel closes when the server ends
// the stream normally (the game finished), when ctx is done, or after the
// reconnect budget is spent.
func (c *Client) Watch(ctx context.Context, id string) (<-chan triariidto.Snapshot, error) {
	conn, err := c.dialWatch(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make(chan triariidto.Snapshot, 4)
	go func() {
		defer close(out)
		for {
			done := c.pump(ctx, conn, out)
			_ = conn.Close(websocket.StatusNormalClosure, "")
			if done {
				return
			}
			var ok bool
			if conn, ok = c.reconnect(ctx, id); !ok {
				return
			}
		}
	}()
	return out, nil
}

// reconnect redials after one outage. Each outage gets the full attempt
// budget.
func (c *Client) reconnect(ctx context.Context, id string) (*websocket.Conn, bool) {
	for attempt := 1; attempt <= watchReconnectMax; attempt++ {
		if sleepWithContext(ctx, backoffDuration(attempt)) != nil {
			return nil, false
		}
		conn, err := c.dialWatch(ctx, id)
		if err == nil {
			return conn, true
		}
		obslog.L().Debug("watch_reconnect_failed", zap.String("game_id", id), zap.Int("attempt", attempt), zap.Error(err))
	}
	obslog.L().Warn("watch_reconnect_exhausted", zap.String("game_id", id))
	return nil, false
}

// pump forwards snapshots until the connection ends. It reports whether the
// stream is over for good.
func (c *Client) pump(ctx context.Context, conn *websocket.Conn, out chan<- triariidto.Snapshot) bool {
	for {
		var snap triariidto.Snapshot
		if err := wsjson.Read(ctx, conn, &snap); err != nil {
			if ctx.Err() != nil {
				return true
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusPolicyViolation:
				return true
			}
			return false
		}
		select {
		case out <- snap:
		case <-ctx.Done():
			return true
		}
	}
}

func (c *Client) dialWatch(ctx context.Context, id string) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, watchDialTimeout)
	defer cancel()
	conn, resp, err := websocket.Dial(dialCtx, c.WatchURL(id), &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      c.buildHeaders(),
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, &triariidto.Error{Code: "game_not_found", Message: "game not found", Status: resp.StatusCode}
		}
		return nil, err
	}
	return conn, nil
}

func (c *Client) buildHeaders() http.Header {
	h := http.Header{}
	if c.headers == nil {
		return h
	}
	for k, v := range c.headers() {
		if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
			h.Set(k, v)
		}
	}
	return h
}

// IsNotFound reports whether err is a missing-game API error.
func IsNotFound(err error) bool {
	var e *triariidto.Error
	return errors.As(err, &e) && e.Code == "game_not_found"
}
