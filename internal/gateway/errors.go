package gateway

import (
	"errors"
	"fmt"
)

// Kind is the caller-facing failure category.
type Kind int

const (
	KindUpstreamUnavailable Kind = iota
	KindInvalidInput
	KindUnauthorized
	KindNotFound
	KindQuotaExceeded
	KindUpstreamAttachmentFailure
	KindUpstreamCredentialFailure
	KindUpstreamQuotaFailure
)

var kindNames = map[Kind]string{
	KindUpstreamUnavailable:       "upstream_unavailable",
	KindInvalidInput:              "invalid_input",
	KindUnauthorized:              "unauthorized",
	KindNotFound:                  "not_found",
	KindQuotaExceeded:             "quota_exceeded",
	KindUpstreamAttachmentFailure: "upstream_attachment_failure",
	KindUpstreamCredentialFailure: "upstream_credential_failure",
	KindUpstreamQuotaFailure:      "upstream_quota_failure",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is returned by every Controller operation on failure. Message is
// safe to show to callers; Err holds the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string

	// Set for KindQuotaExceeded.
	CallsMade int
	MaxCalls  int

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind carried by err. Anything that is not an *Error is
// treated as KindUpstreamUnavailable.
func KindOf(err error) Kind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return KindUpstreamUnavailable
}

// AsError extracts the *Error from err, if any.
func AsError(err error) (*Error, bool) {
	var gerr *Error
	ok := errors.As(err, &gerr)
	return gerr, ok
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// Caller-facing messages.
const (
	msgUnauthorized       = "Unauthorized"
	msgNotFound           = "User not found"
	msgInternal           = "Internal server error"
	msgKeyRequired        = "User key is required"
	msgPromptRequired     = "Prompt is required"
	msgQuotaExceeded      = "API call limit exceeded"
	msgNoImage            = "No image file provided"
	msgUploadFailed       = "Failed to upload image to Gemini"
	msgInvalidCredential  = "Invalid API key configuration"
	msgBackendQuota       = "Gemini API quota exceeded"
	msgBackendUnavailable = "Inference backend unavailable"
)
