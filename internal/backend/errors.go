// ABOUTME: Error type for failed downstream REST calls
// ABOUTME: Carries the operation, HTTP status, and the backend's own message

package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error describes a downstream call that did not produce a usable result.
// Status is 0 for transport-level failures (connection refused, timeout).
type Error struct {
	Op      string // e.g. "get equipment"
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("could not %s: %s (status %d)", e.Op, e.Message, e.Status)
	}
	return fmt.Sprintf("could not %s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status of a backend error, or 0 if err is not
// a backend error or never received a response.
func StatusCode(err error) int {
	var be *Error
	if errors.As(err, &be) {
		return be.Status
	}
	return 0
}

// isAbsence reports whether a lookup failure should read as "nothing there".
// Authorization failures are folded in with not-found; callers log the
// status so the two stay distinguishable in the logs.
func isAbsence(err error) bool {
	switch StatusCode(err) {
	case http.StatusNotFound, http.StatusUnauthorized, http.StatusForbidden:
		return true
	}
	return false
}

// errorBody covers the error shapes the backend emits: {"message": "..."},
// {"message": ["a", "b"]} from validation pipes, and {"error": "..."}.
type errorBody struct {
	Message json.RawMessage `json:"message"`
	Error   string          `json:"error"`
}

// extractMessage pulls a human-readable message out of an error response body.
func extractMessage(status int, body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		if len(eb.Message) > 0 {
			var s string
			if json.Unmarshal(eb.Message, &s) == nil && s != "" {
				return s
			}
			var list []string
			if json.Unmarshal(eb.Message, &list) == nil && len(list) > 0 {
				return strings.Join(list, "; ")
			}
		}
		if eb.Error != "" {
			return eb.Error
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "request failed"
}
