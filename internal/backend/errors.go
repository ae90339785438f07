package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnavailable is returned when no usable response was obtained: network failure,
// timeout, an open circuit breaker, or a 5xx from the server.
var ErrUnavailable = errors.New("backend unavailable")

// StatusError is a non-2xx response with whatever code and message the body carried.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.Status)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Message)
}

// Unwrap lets errors.Is(err, ErrUnavailable) match server-side failures.
func (e *StatusError) Unwrap() error {
	if e.Status >= 500 {
		return ErrUnavailable
	}
	return nil
}

// IsClientError reports whether status is a 4xx.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}

type errorBody struct {
	StatusCode json.RawMessage `json:"statusCode"`
	Code       string          `json:"code"`
	Message    string          `json:"message"`
	Msg        string          `json:"msg"`
	Error      *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseStatusError builds a StatusError from a response. Bodies are tried as
// {"error":{code,message}}, then flat {code|statusCode, message|msg}; anything else is
// kept as a truncated raw message.
func ParseStatusError(resp *Response) *StatusError {
	out := &StatusError{Status: resp.Status}

	var body errorBody
	if json.Unmarshal(resp.Body, &body) == nil {
		if body.Error != nil {
			out.Code = body.Error.Code
			out.Message = body.Error.Message
			return out
		}
		out.Code = body.Code
		if out.Code == "" && len(body.StatusCode) > 0 {
			out.Code = strings.Trim(string(body.StatusCode), `"`)
		}
		out.Message = body.Message
		if out.Message == "" {
			out.Message = body.Msg
		}
		return out
	}

	msg := strings.TrimSpace(string(resp.Body))
	if len(msg) > 256 {
		msg = msg[:256]
	}
	out.Message = msg
	return out
}
