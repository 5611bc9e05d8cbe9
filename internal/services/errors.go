package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	// ErrSessionExpired is returned by every authenticated call answered with 401.
	// The session has already been cleared when it is returned.
	ErrSessionExpired = errors.New("session expired")

	// ErrNotAuthenticated is returned when a call needs a token and none is stored.
	ErrNotAuthenticated = errors.New("not logged in")

	// ErrNoConversation is returned when sending without a current conversation.
	ErrNoConversation = errors.New("no current conversation")
)

// APIError is a non-2xx backend response.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("backend returned %d", e.StatusCode)
}

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// newAPIError consumes resp's body and builds an APIError from it. The detail comes
// from the first of the JSON fields detail, message or error, falling back to the raw body.
func newAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{StatusCode: resp.StatusCode, Detail: errorDetail(body)}
}

func errorDetail(body []byte) string {
	if detail := jsonDetail(body); detail != "" {
		return detail
	}
	return strings.TrimSpace(string(body))
}

// jsonDetail returns the first non-empty string among the detail, message and error
// fields of a JSON object body.
func jsonDetail(body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	for _, key := range []string{"detail", "message", "error"} {
		if s, ok := payload[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
