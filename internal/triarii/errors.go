package triarii

import "errors"

// Engine errors. Every entry point fails with one of these (possibly wrapped
// with detail) on the first violated precondition and leaves its input intact.
var (
	ErrInvalidMove     = errors.New("invalid move")
	ErrOutOfBounds     = errors.New("illegal move (out of bounds)")
	ErrIllegalStacking = errors.New("opponent cannot be stacked")
	ErrNoMoveMade      = errors.New("no move made")
	ErrZeroMove        = errors.New("must move at least one piece")

	ErrMalformedSquare = errors.New("malformed square code")
	ErrMalformedState  = errors.New("malformed state code")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrInvalidMove, "invalid_move"},
	{ErrOutOfBounds, "out_of_bounds"},
	{ErrIllegalStacking, "illegal_stacking"},
	{ErrNoMoveMade, "no_move_made"},
	{ErrZeroMove, "zero_move"},
	{ErrMalformedSquare, "malformed_square"},
	{ErrMalformedState, "malformed_state"},
}

// ErrorCode returns the stable snake_case code of an engine error, or "" when
// err does not wrap one.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return ""
}

// IsRuleError reports whether err is a recoverable engine rejection.
func IsRuleError(err error) bool { return ErrorCode(err) != "" }
