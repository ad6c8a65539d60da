package processor

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/eventrelay/relay/internal/outcomes"
	"github.com/eventrelay/relay/internal/quotas"
)

const (
	logMsgForwardFailed      = "Failed to forward envelope for project %s: %s"
	logMsgBadClientReport    = "Ignoring invalid client report: %s"
	logMsgBadMetrics         = "Ignoring invalid metrics item: %s"
	logMsgMergeFailed        = "Failed to aggregate metric buckets: %s"
	logMsgQuotaCheckFailed   = "Failed to check quotas for project %s: %s"
	logMsgInvalidProfile     = "Dropping invalid profile: %s"
	logMsgFlushNoProject     = "Dropping %d metric buckets of project %s whose state is not cached"
	logMsgFlushFailed        = "Failed to send metric buckets of project %s: %s"
	logMsgDrainingQueue      = "Processing %d queued envelopes before shutdown"
	logMsgUnknownItemDropped = "Dropping item of unknown type %q in processing mode"
)

// Rejection is the reason an envelope was not accepted. It carries the HTTP status the client
// receives.
type Rejection struct {
	Status     int
	Reason     string
	Detail     string
	RateLimits quotas.RateLimits
}

func (r Rejection) Error() string {
	return r.Detail
}

// Is matches another Rejection with the same status.
func (r Rejection) Is(target error) bool {
	var other Rejection
	if errors.As(target, &other) {
		return other.Status == r.Status
	}
	return false
}

// ErrRateLimited matches rejections because of rate limits with errors.Is.
var ErrRateLimited = Rejection{Status: http.StatusTooManyRequests} //nolint:gochecknoglobals

// ErrQueueFull matches rejections because the processing queue is full with errors.Is.
var ErrQueueFull = Rejection{Status: http.StatusServiceUnavailable} //nolint:gochecknoglobals

func errTooLarge(what string, size, limit int64) error {
	return Rejection{Status: http.StatusRequestEntityTooLarge, Reason: outcomes.ReasonTooLarge,
		Detail: fmt.Sprintf("%s exceeds size limit (%d > %d bytes)", what, size, limit)}
}

func errProjectState(err error) error {
	return Rejection{Status: http.StatusServiceUnavailable, Reason: outcomes.ReasonProjectStateFailed,
		Detail: fmt.Sprintf("could not get project state: %s", err)}
}

func errProjectRejected(err error, invalid bool) Rejection {
	reason := outcomes.ReasonProjectID
	if invalid {
		reason = outcomes.ReasonProjectStateFailed
	}
	return Rejection{Status: http.StatusForbidden, Reason: reason, Detail: err.Error()}
}

func errOriginNotAllowed(origin string) error {
	return Rejection{Status: http.StatusForbidden, Reason: reasonCORS,
		Detail: fmt.Sprintf("origin %s is not allowed", origin)}
}

func errRateLimited(limits quotas.RateLimits) error {
	return Rejection{Status: http.StatusTooManyRequests, Detail: "event submission rejected due to rate limits",
		RateLimits: limits}
}

func errQueueFull() error {
	return Rejection{Status: http.StatusServiceUnavailable, Reason: outcomes.ReasonInternal,
		Detail: "event buffer is full"}
}
