package moltbook

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/cpunion/molt-bot/pkg/types"
)

// Error kinds. Every error returned by Client wraps exactly one of them.
var (
	// ErrTransient covers timeouts, connection failures, 5xx and 429. Retried
	// at the next poll cycle.
	ErrTransient = errors.New("transient network error")
	// ErrClientRejection is a 4xx other than 403, 409 and 410. The post is skipped.
	ErrClientRejection = errors.New("request rejected")
	// ErrAuthorizationDenied is a 403; the server message is kept.
	ErrAuthorizationDenied = errors.New("authorization denied")
	// ErrMalformedResponse is a body that does not match any accepted shape.
	ErrMalformedResponse = errors.New("malformed response")
)

// APIError describes a failed API call.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
	Kind       error

	// Challenge is set when the server attached a verification challenge to
	// the rejection.
	Challenge *types.Challenge
}

func (e *APIError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Op)
	sb.WriteString(": ")
	sb.WriteString(e.Kind.Error())
	if e.StatusCode != 0 {
		fmt.Fprintf(&sb, " (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	return sb.String()
}

func (e *APIError) Unwrap() error {
	return e.Kind
}

// Retryable reports whether err is worth retrying on a later cycle.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

func kindForStatus(status int) error {
	switch {
	case status == http.StatusForbidden:
		return ErrAuthorizationDenied
	case status == http.StatusTooManyRequests, status >= 500:
		return ErrTransient
	default:
		return ErrClientRejection
	}
}

func statusError(op string, status int, body []byte) *APIError {
	return &APIError{
		Op:         op,
		StatusCode: status,
		Message:    serverMessage(body),
		Kind:       kindForStatus(status),
		Challenge:  extractChallenge(body),
	}
}

func transportError(op string, err error) *APIError {
	return &APIError{Op: op, Message: err.Error(), Kind: ErrTransient}
}

func malformed(op string, err error) *APIError {
	return &APIError{Op: op, Message: err.Error(), Kind: ErrMalformedResponse}
}

// serverMessage pulls a human readable message out of an error body.
func serverMessage(body []byte) string {
	var payload struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
		Hint    string          `json:"hint"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		msg := strings.TrimSpace(string(body))
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return msg
	}

	parts := make([]string, 0, 3)
	var errText string
	if json.Unmarshal(payload.Error, &errText) == nil && errText != "" {
		parts = append(parts, errText)
	}
	if payload.Message != "" && payload.Message != errText {
		parts = append(parts, payload.Message)
	}
	if payload.Hint != "" {
		parts = append(parts, "hint: "+payload.Hint)
	}
	return strings.Join(parts, "; ")
}
