package httpapi

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/triarii/internal/obslog"
)

const wsWriteTimeout = 5 * time.Second

// handleWatch streams snapshots over a WebSocket until the game finishes or
// the client goes away.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	id := gameID(r)
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	updates, err := s.games.Watch(ctx, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  originHosts(s.origins),
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.String("game_id", id), zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "unexpected close")

	// clients only listen; CloseRead handles their control frames
	ctx = conn.CloseRead(ctx)
	obslog.L().Info("ws_watch_open", zap.String("game_id", id))

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		case g, ok := <-updates:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "stream ended")
				return
			}
			wctx, wcancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := wsjson.Write(wctx, conn, snapshotFrom(g))
			wcancel()
			if err != nil {
				obslog.L().Debug("ws_write_error", zap.String("game_id", id), zap.Error(err))
				return
			}
			if g.Finished() {
				_ = conn.Close(websocket.StatusNormalClosure, "game over")
				return
			}
		}
	}
}

// originHosts turns configured origins into the host patterns the websocket
// handshake matches against. An empty list allows any origin.
func originHosts(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
			continue
		}
		out = append(out, o)
	}
	return out
}
