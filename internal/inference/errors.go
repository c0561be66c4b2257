package inference

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/sony/gobreaker/v2"
	"google.golang.org/genai"
)

// Kind classifies a backend failure.
type Kind int

const (
	// KindOther is any failure not covered by a more specific kind.
	KindOther Kind = iota
	// KindCredential means the backend rejected the account's credential.
	KindCredential
	// KindQuota means the backend reported its own quota exhaustion.
	KindQuota
	// KindTransport covers timeouts, network errors, 5xx and an open breaker.
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindCredential:
		return "credential"
	case KindQuota:
		return "quota"
	case KindTransport:
		return "transport"
	default:
		return "other"
	}
}

// Op names the backend operation that failed.
type Op string

const (
	OpUpload   Op = "upload"
	OpGenerate Op = "generate"
)

// Error is the structured failure returned by Client.
type Error struct {
	Kind    Kind
	Op      Op
	Message string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("inference %s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or KindOther if err is not an *Error.
func KindOf(err error) Kind {
	var ierr *Error
	if errors.As(err, &ierr) {
		return ierr.Kind
	}
	return KindOther
}

// classify maps a raw failure to an *Error. Status signals from the SDK
// (HTTP code and RPC status) are used first; matching on message text is a
// best-effort last resort for errors that carry nothing else.
func classify(op Op, err error) *Error {
	var ierr *Error
	if errors.As(err, &ierr) {
		return ierr
	}

	e := &Error{Kind: KindOther, Op: op, Message: err.Error(), Err: err}

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		e.Kind = KindTransport
		e.Message = "backend unavailable: circuit breaker open"
		return e
	case errors.Is(err, context.DeadlineExceeded):
		e.Kind = KindTransport
		e.Message = "backend call timed out"
		return e
	case errors.Is(err, context.Canceled):
		e.Kind = KindTransport
		e.Message = "backend call canceled"
		return e
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		e.Message = apiErr.Message
		e.Kind = kindFromStatus(apiErr.Code, apiErr.Status, apiErr.Message)
		return e
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		e.Kind = KindTransport
		return e
	}

	e.Kind = kindFromText(err.Error())
	return e
}

func kindFromStatus(code int, status, message string) Kind {
	switch {
	case code == http.StatusUnauthorized || status == "UNAUTHENTICATED":
		return KindCredential
	case code == http.StatusTooManyRequests || status == "RESOURCE_EXHAUSTED":
		return KindQuota
	case code == http.StatusForbidden || status == "PERMISSION_DENIED":
		return KindCredential
	case code >= http.StatusInternalServerError:
		return KindTransport
	}
	// Gemini reports a bad key as 400 INVALID_ARGUMENT; only the text tells.
	return kindFromText(message)
}

func kindFromText(msg string) Kind {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "api key"), strings.Contains(lower, "api_key"):
		return KindCredential
	case strings.Contains(lower, "quota"), strings.Contains(lower, "resource_exhausted"):
		return KindQuota
	default:
		return KindOther
	}
}
