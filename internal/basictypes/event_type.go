package basictypes

import (
	"fmt"
	"strings"
)

// EventType is the type of an event payload, as found in the "type" attribute of the event.
type EventType string

const (
	// EventTypeDefault is used for events without an explicit type, such as log messages.
	EventTypeDefault EventType = "default"
	// EventTypeError is an event with an exception or a stack trace.
	EventTypeError EventType = "error"
	// EventTypeCSP is a Content-Security-Policy violation report.
	EventTypeCSP EventType = "csp"
	// EventTypeHPKP is an HTTP Public Key Pinning violation report.
	EventTypeHPKP EventType = "hpkp"
	// EventTypeExpectCT is an Expect-CT report.
	EventTypeExpectCT EventType = "expectct"
	// EventTypeExpectStaple is an Expect-Staple report.
	EventTypeExpectStaple EventType = "expectstaple"
	// EventTypeTransaction is a performance monitoring transaction.
	EventTypeTransaction EventType = "transaction"
)

// ParseEventType returns the event type with the given name. Names are case-insensitive.
func ParseEventType(s string) (EventType, error) {
	switch t := EventType(strings.ToLower(s)); t {
	case EventTypeDefault, EventTypeError, EventTypeCSP, EventTypeHPKP, EventTypeExpectCT,
		EventTypeExpectStaple, EventTypeTransaction:
		return t, nil
	}
	return "", fmt.Errorf("invalid event type %q", s)
}

func (t EventType) String() string { return string(t) }

// DataCategory returns the category used for rate limiting events of this type.
func (t EventType) DataCategory() DataCategory {
	switch t {
	case EventTypeDefault:
		return DataCategoryDefault
	case EventTypeError:
		return DataCategoryError
	case EventTypeTransaction:
		return DataCategoryTransaction
	case EventTypeCSP, EventTypeHPKP, EventTypeExpectCT, EventTypeExpectStaple:
		return DataCategorySecurity
	default:
		return DataCategoryDefault
	}
}
