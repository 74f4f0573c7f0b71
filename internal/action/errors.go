// internal/action/errors.go
package action

import (
	"fmt"

	"github.com/k-sakQA/Othello-for-Android/api/schemas"
)

// ErrorCode is a string type used for structured error reporting from the
// resolver and executor. Codes identify contract violations by the caller
// (planner output or route data); none of them is worth retrying.
type ErrorCode string

const (
	// ErrCodeUnresolvableTarget: a tap/input target carries no usable coordinate form.
	ErrCodeUnresolvableTarget ErrorCode = "UNRESOLVABLE_TARGET"
	// ErrCodeMissingInputText: an input action without text.
	ErrCodeMissingInputText ErrorCode = "MISSING_INPUT_TEXT"
	// ErrCodeUnsupportedAction: a tag outside the executable action set.
	ErrCodeUnsupportedAction ErrorCode = "UNSUPPORTED_ACTION"
)

// Error is a coded action failure. Two Errors match under errors.Is when their
// codes are equal, so the package-level sentinels can be used for checks.
type Error struct {
	Code    ErrorCode
	Action  schemas.ActionKind
	Message string
}

var (
	ErrUnresolvableTarget = &Error{Code: ErrCodeUnresolvableTarget}
	ErrMissingInputText   = &Error{Code: ErrCodeMissingInputText}
	ErrUnsupportedAction  = &Error{Code: ErrCodeUnsupportedAction}
)

func newError(code ErrorCode, kind schemas.ActionKind, format string, args ...any) *Error {
	return &Error{Code: code, Action: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	switch {
	case e.Action != "" && e.Message != "":
		return fmt.Sprintf("%s (%s): %s", e.Code, e.Action, e.Message)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	default:
		return string(e.Code)
	}
}

// Is matches on the error code only.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}
