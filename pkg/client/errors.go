package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// FieldError is one entry of a request validation failure.
type FieldError struct {
	Loc  []interface{} `json:"loc"`
	Msg  string        `json:"msg"`
	Type string        `json:"type"`
}

// Field is the last element of Loc, usually the field name.
func (f FieldError) Field() string {
	if len(f.Loc) == 0 {
		return ""
	}
	return fmt.Sprint(f.Loc[len(f.Loc)-1])
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	// Detail is the server's message; for validation failures it joins the field messages.
	Detail string
	Fields []FieldError
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Detail)
}

// IsValidation reports whether the server rejected the request body.
func (e *APIError) IsValidation() bool {
	return len(e.Fields) > 0
}

// parseError builds an APIError from an error response body. The detail
// field is either a string or a list of field errors.
func parseError(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status}
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		e.Detail = payload.Message
		if e.Detail == "" {
			e.Detail = http.StatusText(status)
		}
		return e
	}

	var text string
	if err := json.Unmarshal(payload.Detail, &text); err == nil {
		e.Detail = text
		return e
	}
	if err := json.Unmarshal(payload.Detail, &e.Fields); err == nil {
		msgs := make([]string, 0, len(e.Fields))
		for _, f := range e.Fields {
			if name := f.Field(); name != "" {
				msgs = append(msgs, name+": "+f.Msg)
			} else {
				msgs = append(msgs, f.Msg)
			}
		}
		e.Detail = strings.Join(msgs, "; ")
		return e
	}
	e.Detail = string(payload.Detail)
	return e
}
