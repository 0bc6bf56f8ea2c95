package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a gateway failure. The string value is the wire-visible
// error code in the JSON envelope.
type Kind string

const (
	// KindInvalidRoute marks requests outside the route whitelist. Permanent.
	KindInvalidRoute Kind = "NOT_FOUND"
	// KindBadInput marks malformed request bodies. Permanent until the client fixes input.
	KindBadInput Kind = "BAD_INPUT"
	// KindTimeout marks upstream calls aborted by the deadline. Transient.
	KindTimeout Kind = "TIMEOUT"
	// KindUpstreamFailure marks 5xx responses from the origin. Transient.
	KindUpstreamFailure Kind = "UPSTREAM_ERROR"
	// KindProxyError marks internal failures during transform or forward. Transient.
	KindProxyError Kind = "PROXY_ERROR"
)

// Status returns the client-facing HTTP status for the kind. The origin's own
// 5xx status is never passed through verbatim.
func (k Kind) Status() int {
	switch k {
	case KindInvalidRoute:
		return http.StatusNotFound
	case KindBadInput:
		return http.StatusBadRequest
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindUpstreamFailure, KindProxyError:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// Transient reports whether the client may usefully retry.
func (k Kind) Transient() bool {
	switch k {
	case KindTimeout, KindUpstreamFailure, KindProxyError:
		return true
	}
	return false
}

// LogType returns the classification string recorded in log entries.
func (k Kind) LogType() string {
	switch k {
	case KindInvalidRoute:
		return "invalid_route"
	case KindBadInput:
		return "bad_input"
	case KindTimeout:
		return "timeout"
	case KindUpstreamFailure:
		return "upstream_5xx"
	case KindProxyError:
		return "proxy_error"
	}
	return "unknown"
}

// GatewayError is a classified failure raised anywhere in the request pipeline.
type GatewayError struct {
	Kind    Kind
	Message string
	// UpstreamStatus holds the origin status for KindUpstreamFailure; it is
	// logged but never exposed to the client.
	UpstreamStatus int
	underlying     error
}

func (e *GatewayError) Error() string {
	if e.underlying != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.underlying)
	}
	return e.Message
}

func (e *GatewayError) Unwrap() error { return e.underlying }

// InvalidRoute creates a NOT_FOUND error for a rejected route.
func InvalidRoute(reason string) *GatewayError {
	return &GatewayError{Kind: KindInvalidRoute, Message: reason}
}

// BadInput creates a BAD_INPUT error for a malformed request body.
func BadInput(reason string) *GatewayError {
	return &GatewayError{Kind: KindBadInput, Message: reason}
}

// Timeout creates a TIMEOUT error for an aborted upstream call.
func Timeout(err error) *GatewayError {
	return &GatewayError{Kind: KindTimeout, Message: "upstream did not respond in time", underlying: err}
}

// Upstream creates an UPSTREAM_ERROR for an origin 5xx response.
func Upstream(status int) *GatewayError {
	return &GatewayError{
		Kind:           KindUpstreamFailure,
		Message:        "upstream reported a temporary issue",
		UpstreamStatus: status,
	}
}

// Classify wraps an arbitrary pipeline error, separating cancellations from
// other internal failures.
func Classify(err error) *GatewayError {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Timeout(err)
	}
	return &GatewayError{Kind: KindProxyError, Message: "proxy failed to complete the request", underlying: err}
}

// Envelope is the JSON error body returned to API callers. API callers always
// receive valid JSON, never an empty body.
type Envelope struct {
	OK      bool     `json:"ok"`
	Code    Kind     `json:"code"`
	Message string   `json:"message"`
	CorrID  string   `json:"corrId"`
	Valid   []string `json:"validActions,omitempty"`
}

// WriteJSON writes the envelope with the kind's status code.
func (e Envelope) WriteJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(e.Code.Status())
	json.NewEncoder(w).Encode(e)
}
