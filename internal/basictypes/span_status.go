package basictypes

import (
	"fmt"
)

// SpanStatus is the status of a trace span, following the OpenTelemetry/gRPC status names.
type SpanStatus string

//nolint:revive // the names speak for themselves
const (
	SpanStatusOK                 SpanStatus = "ok"
	SpanStatusCancelled          SpanStatus = "cancelled"
	SpanStatusUnknown            SpanStatus = "unknown"
	SpanStatusInvalidArgument    SpanStatus = "invalid_argument"
	SpanStatusDeadlineExceeded   SpanStatus = "deadline_exceeded"
	SpanStatusNotFound           SpanStatus = "not_found"
	SpanStatusAlreadyExists      SpanStatus = "already_exists"
	SpanStatusPermissionDenied   SpanStatus = "permission_denied"
	SpanStatusResourceExhausted  SpanStatus = "resource_exhausted"
	SpanStatusFailedPrecondition SpanStatus = "failed_precondition"
	SpanStatusAborted            SpanStatus = "aborted"
	SpanStatusOutOfRange         SpanStatus = "out_of_range"
	SpanStatusUnimplemented      SpanStatus = "unimplemented"
	SpanStatusInternalError      SpanStatus = "internal_error"
	SpanStatusUnavailable        SpanStatus = "unavailable"
	SpanStatusDataLoss           SpanStatus = "data_loss"
	SpanStatusUnauthenticated    SpanStatus = "unauthenticated"
)

var spanStatusAliases = map[string]SpanStatus{ //nolint:gochecknoglobals
	"success":       SpanStatusOK,
	"canceled":      SpanStatusCancelled,
	"unknown_error": SpanStatusUnknown,
	"failure":       SpanStatusInternalError,
}

var allSpanStatuses = []SpanStatus{ //nolint:gochecknoglobals
	SpanStatusOK, SpanStatusCancelled, SpanStatusUnknown, SpanStatusInvalidArgument,
	SpanStatusDeadlineExceeded, SpanStatusNotFound, SpanStatusAlreadyExists, SpanStatusPermissionDenied,
	SpanStatusResourceExhausted, SpanStatusFailedPrecondition, SpanStatusAborted, SpanStatusOutOfRange,
	SpanStatusUnimplemented, SpanStatusInternalError, SpanStatusUnavailable, SpanStatusDataLoss,
	SpanStatusUnauthenticated,
}

// ParseSpanStatus accepts the canonical names and a few common aliases.
func ParseSpanStatus(s string) (SpanStatus, error) {
	for _, st := range allSpanStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	if st, ok := spanStatusAliases[s]; ok {
		return st, nil
	}
	return "", fmt.Errorf("invalid span status %q", s)
}

// SpanStatusFromHTTPCode maps an HTTP response status to the closest span status.
func SpanStatusFromHTTPCode(code int) SpanStatus {
	switch {
	case code < 400:
		return SpanStatusOK
	case code == 400:
		return SpanStatusInvalidArgument
	case code == 401:
		return SpanStatusUnauthenticated
	case code == 403:
		return SpanStatusPermissionDenied
	case code == 404:
		return SpanStatusNotFound
	case code == 409:
		return SpanStatusAlreadyExists
	case code == 429:
		return SpanStatusResourceExhausted
	case code == 499:
		return SpanStatusCancelled
	case code < 500:
		return SpanStatusInvalidArgument
	case code == 501:
		return SpanStatusUnimplemented
	case code == 503:
		return SpanStatusUnavailable
	case code == 504:
		return SpanStatusDeadlineExceeded
	default:
		return SpanStatusInternalError
	}
}

func (s SpanStatus) String() string { return string(s) }
