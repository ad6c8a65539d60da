package upstream

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/eventrelay/relay/internal/quotas"
)

// ErrorKind classifies an UpstreamError.
type ErrorKind string

//nolint:revive
const (
	ErrorKindSendFailed    ErrorKind = "could not send request to upstream"
	ErrorKindRateLimited   ErrorKind = "upstream rate limited the request"
	ErrorKindResponseError ErrorKind = "upstream request returned error"
	ErrorKindPayloadFailed ErrorKind = "failed to read or write payload"
	ErrorKindAuthDenied    ErrorKind = "relay is not authenticated with upstream"
)

// UpstreamError is returned for every failed upstream request.
type UpstreamError struct { //nolint:revive
	Kind       ErrorKind
	StatusCode int
	Header     http.Header
	Err        error
}

func (e UpstreamError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s (status %d)", e.Kind, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e UpstreamError) Unwrap() error { return e.Err }

// Is matches another UpstreamError of the same kind, so errors.Is(err, UpstreamError{Kind: k})
// tests the kind.
func (e UpstreamError) Is(target error) bool {
	var other UpstreamError
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// IsNetworkError returns true for failures that indicate the upstream is unreachable rather than
// rejecting the request.
func (e UpstreamError) IsNetworkError() bool {
	return e.Kind == ErrorKindSendFailed || e.StatusCode >= 500
}

// RateLimits returns the limits carried by a 429 response. X-Sentry-Rate-Limits is preferred;
// otherwise Retry-After produces a limit on everything.
func (e UpstreamError) RateLimits(scoping quotas.Scoping, now time.Time) quotas.RateLimits {
	if e.Kind != ErrorKindRateLimited {
		return quotas.RateLimits{}
	}
	if h := e.Header.Get(quotas.RateLimitsHeader); h != "" {
		return quotas.ParseRateLimitsHeader(h, scoping, now)
	}
	var ret quotas.RateLimits
	ret.Add(quotas.RateLimit{
		Scope:      quotas.GlobalScope,
		RetryAfter: quotas.ParseRetryAfter(e.Header.Get(quotas.RetryAfterHeader), now),
	})
	return ret
}

func errSendFailed(err error) error {
	return UpstreamError{Kind: ErrorKindSendFailed, Err: err}
}

func errPayloadFailed(err error) error {
	return UpstreamError{Kind: ErrorKindPayloadFailed, Err: err}
}

func errRateLimited(resp *http.Response) error {
	return UpstreamError{Kind: ErrorKindRateLimited, StatusCode: resp.StatusCode, Header: resp.Header}
}

func errResponse(resp *http.Response, detail string) error {
	var err error
	if detail != "" {
		err = errors.New(detail)
	}
	return UpstreamError{Kind: ErrorKindResponseError, StatusCode: resp.StatusCode, Header: resp.Header, Err: err}
}

func errAuthDenied(err error) error {
	return UpstreamError{Kind: ErrorKindAuthDenied, Err: err}
}

func errMissingCredentials() error {
	return errAuthDenied(errors.New("no credentials configured; run \"relay credentials generate\""))
}

func errRelayIDMismatch(expected, got string) error {
	return errAuthDenied(fmt.Errorf("upstream confirmed relay ID %q but we registered as %q", got, expected))
}
