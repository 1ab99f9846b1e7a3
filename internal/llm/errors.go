package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// Error is a classified backend failure.
type Error struct {
	Op         string // generate or embed
	StatusCode int    // HTTP status reported by the API, 0 when unknown
	Transient  bool   // Retrying may succeed
	Err        error
}

func (e *Error) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("llm %s failed (%s, status %d): %v", e.Op, kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("llm %s failed (%s): %v", e.Op, kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsTransient reports whether err is a backend failure worth retrying.
func IsTransient(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Transient
}

// classify wraps a raw SDK or transport error.
//
// Rate limiting, timeouts and 5xx responses are transient. Authentication,
// malformed requests and exhausted daily or billing quotas are permanent.
// Cancellation by the caller is never transient.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	out := &Error{Op: op, Err: err}

	if code, message, ok := apiError(err); ok {
		out.StatusCode = code
		switch {
		case code == http.StatusTooManyRequests:
			out.Transient = !quotaExhausted(message)
		case code == http.StatusRequestTimeout, code >= 500:
			out.Transient = true
		}
		return out
	}

	if errors.Is(err, context.Canceled) {
		return out
	}
	if errors.Is(err, context.DeadlineExceeded) {
		out.Transient = true
		return out
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		// Connection resets and refused connections are worth another try too.
		out.Transient = true
	}
	return out
}

func apiError(err error) (int, string, bool) {
	var value genai.APIError
	if errors.As(err, &value) {
		return value.Code, value.Message, true
	}
	var ptr *genai.APIError
	if errors.As(err, &ptr) && ptr != nil {
		return ptr.Code, ptr.Message, true
	}
	return 0, "", false
}

func quotaExhausted(message string) bool {
	m := strings.ToLower(message)
	return strings.Contains(m, "billing") || strings.Contains(m, "per day") || strings.Contains(m, "perday")
}
