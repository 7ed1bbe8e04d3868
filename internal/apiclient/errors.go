package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrAuthExpired matches an APIError whose unauthorized response ended the
// current session. A rejected login, or a late rejection of a token from an
// earlier session, does not match.
var ErrAuthExpired = errors.New("authentication expired")

// APIError is returned for transport failures and non-2xx responses.
// StatusCode is zero when no response was received.
type APIError struct {
	StatusCode int
	Detail     string
	Err        error

	authExpired bool
}

func (e *APIError) Error() string {
	switch {
	case e.StatusCode == 0:
		return fmt.Sprintf("network error: %v", e.Err)
	case e.Detail != "":
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("api error %d: %v", e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("api error %d", e.StatusCode)
	}
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrAuthExpired) match expired sessions
func (e *APIError) Is(target error) bool {
	return target == ErrAuthExpired && e.authExpired
}

// IsTransport reports whether the request never got a response
func (e *APIError) IsTransport() bool {
	return e.StatusCode == 0
}

// DetailOr returns the server-provided detail carried by err, or fallback
func DetailOr(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return fallback
}

// parseDetail extracts the "detail" field of an error body. The backend
// sends either a string or a list of validation errors with "msg" fields.
func parseDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		return s
	}

	var list []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &list); err == nil {
		msgs := make([]string, 0, len(list))
		for _, item := range list {
			if item.Msg != "" {
				msgs = append(msgs, item.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}

	return ""
}
