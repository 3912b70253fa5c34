package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/park285/triarii/internal/match"
	"github.com/park285/triarii/internal/obslog"
	"github.com/park285/triarii/internal/triarii"
	"github.com/park285/triarii/pkg/triariidto"
)

const maxBody = 1 << 16

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		obslog.L().Warn("http_write_error", zap.Error(err))
	}
}

func writeRaw(w http.ResponseWriter, status int, code, msg string, retryable bool) {
	writeJSON(w, status, triariidto.Error{Code: code, Message: msg, Retryable: retryable})
}

// classify maps an error to its HTTP status and catalog code.
func classify(err error) (status int, code string, retryable bool) {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, match.ErrInvalidArgs):
		return http.StatusBadRequest, "bad_request", false
	case errors.Is(err, match.ErrGameNotFound):
		return http.StatusNotFound, "game_not_found", false
	case errors.Is(err, match.ErrBadToken):
		return http.StatusForbidden, "bad_token", false
	case errors.Is(err, match.ErrNotYourTurn):
		return http.StatusForbidden, "not_your_turn", false
	case errors.Is(err, match.ErrSeatTaken):
		return http.StatusForbidden, "seat_taken", false
	case errors.Is(err, match.ErrNotStarted):
		return http.StatusConflict, "not_started", false
	case errors.Is(err, match.ErrGameOver):
		return http.StatusConflict, "game_over", false
	case errors.Is(err, match.ErrConflict):
		return http.StatusConflict, "conflict", true
	case errors.Is(err, match.ErrSelectionLocked):
		return http.StatusUnprocessableEntity, "selection_locked", false
	}
	if c := triarii.ErrorCode(err); c != "" {
		if c == "malformed_state" || c == "malformed_square" {
			return http.StatusInternalServerError, c, false
		}
		return http.StatusUnprocessableEntity, c, false
	}
	return http.StatusInternalServerError, "internal", false
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, retryable := classify(err)
	var data map[string]any
	if code == "bad_request" {
		data = map[string]any{"Detail": err.Error()}
	}
	fallback := err.Error()
	if status == http.StatusInternalServerError {
		obslog.L().Error("http_internal_error", zap.String("path", r.URL.Path), zap.Error(err))
		fallback = "internal error"
	}
	msg := fallback
	if s.msgs != nil {
		msg = s.msgs.RenderOr("errors."+code, data, fallback)
	}
	writeRaw(w, status, code, msg, retryable)
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched
// when optional is set.
func decodeBody(r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return badRequest("invalid JSON: %v", err)
	}
	return nil
}
