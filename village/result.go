package village

import (
	"github.com/goliatone/go-errors"
)

// Result is the structured outcome returned to callers that must not see raw
// errors, such as the login handler.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// OK returns a successful Result.
func OK() Result {
	return Result{Success: true}
}

// ResultFromError maps err onto a failed Result. A nil err yields OK.
func ResultFromError(err error) Result {
	if err == nil {
		return OK()
	}

	var e *errors.Error
	if errors.As(err, &e) {
		return Result{Success: false, Error: e.Message, Code: e.TextCode}
	}
	return Result{Success: false, Error: err.Error()}
}
