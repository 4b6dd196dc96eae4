package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// AuthError is returned for any 401 response. Subscribers registered with
// OnUnauthorized have already been notified when the caller sees it.
type AuthError struct {
	Method string
	Path   string
	Detail string
}

func (e *AuthError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("unauthorized (401) on %s %s: %s", e.Method, e.Path, e.Detail)
	}
	return fmt.Sprintf("unauthorized (401) on %s %s", e.Method, e.Path)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// Error is a non-2xx, non-401 backend response.
type Error struct {
	Method string
	Path   string
	Status int

	// Detail is the backend's human-readable reason, empty when the body
	// carried none.
	Detail string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api error (%d) on %s %s: %s", e.Status, e.Method, e.Path, e.Detail)
	}
	return fmt.Sprintf("api error (%d) on %s %s: %s",
		e.Status, e.Method, e.Path, http.StatusText(e.Status))
}

// AsError returns the *Error in err's chain, if any.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// Detail returns the backend's reason carried by err, if any.
func Detail(err error) string {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Detail
	}
	if apiErr, ok := AsError(err); ok {
		return apiErr.Detail
	}
	return ""
}

// errorBody is the backend's error envelope. Detail is either a string or
// a list of validation errors.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

type validationError struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

// parseDetail extracts a readable reason from an error response body.
func parseDetail(body []byte) string {
	var env errorBody
	if err := json.Unmarshal(body, &env); err != nil || len(env.Detail) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(env.Detail, &text); err == nil {
		return text
	}

	var list []validationError
	if err := json.Unmarshal(env.Detail, &list); err == nil {
		msgs := make([]string, 0, len(list))
		for _, v := range list {
			if v.Msg == "" {
				continue
			}
			if field := fieldName(v.Loc); field != "" {
				msgs = append(msgs, field+": "+v.Msg)
			} else {
				msgs = append(msgs, v.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}

	return ""
}

// fieldName returns the last string element of a validation location,
// e.g. "email" for ["body", "email"].
func fieldName(loc []any) string {
	for i := len(loc) - 1; i >= 0; i-- {
		if s, ok := loc[i].(string); ok && s != "body" && s != "query" {
			return s
		}
	}
	return ""
}
