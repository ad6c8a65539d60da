package protocol

import (
	"fmt"
)

// EnvelopeErrorKind describes why an envelope could not be parsed.
type EnvelopeErrorKind string

const (
	// EnvelopeMissingHeader means the envelope was empty.
	EnvelopeMissingHeader EnvelopeErrorKind = "missing envelope header"
	// EnvelopeInvalidHeader means the envelope header was not a JSON object.
	EnvelopeInvalidHeader EnvelopeErrorKind = "invalid envelope header"
	// EnvelopeInvalidItemHeader means an item header was not a JSON object.
	EnvelopeInvalidItemHeader EnvelopeErrorKind = "invalid item header"
	// EnvelopeUnexpectedEOF means an item's length exceeded the remaining data.
	EnvelopeUnexpectedEOF EnvelopeErrorKind = "unexpected end of file"
	// EnvelopeMissingNewline means an item's payload was not followed by a newline.
	EnvelopeMissingNewline EnvelopeErrorKind = "missing newline after item payload"
)

// EnvelopeError is returned by ParseEnvelope.
type EnvelopeError struct {
	Kind   EnvelopeErrorKind
	Detail string
}

func (e EnvelopeError) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Is allows errors.Is to match on the error kind alone.
func (e EnvelopeError) Is(target error) bool {
	t, ok := target.(EnvelopeError)
	return ok && t.Kind == e.Kind
}

// AuthError is returned when a request's authentication information cannot be parsed.
type AuthError struct {
	Reason string
}

func (e AuthError) Error() string {
	return "invalid authentication: " + e.Reason
}

func errMissingAuth() error { return AuthError{Reason: "missing authorization information"} }

func errBadAuthHeader(h string) error {
	return AuthError{Reason: fmt.Sprintf("malformed authorization header %q", h)}
}

func errBadPublicKey() error { return AuthError{Reason: "invalid public key"} }

// DSNError is returned by ParseDSN.
type DSNError struct {
	Reason string
}

func (e DSNError) Error() string {
	return "invalid DSN: " + e.Reason
}
