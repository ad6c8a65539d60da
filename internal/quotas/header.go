package quotas

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/eventrelay/relay/internal/basictypes"
)

const (
	// RateLimitsHeader carries structured rate limits.
	RateLimitsHeader = "X-Sentry-Rate-Limits"
	// RetryAfterHeader is the standard HTTP header, used when no structured limits are present.
	RetryAfterHeader = "Retry-After"

	defaultRetryAfterSeconds = 60

	// MaxRetryAfter caps the delay taken from an upstream header.
	MaxRetryAfter = 24 * time.Hour
)

// ParseRateLimitsHeader parses the X-Sentry-Rate-Limits header. The scope IDs are filled in from
// the scoping of the request that received the header. Malformed entries are skipped.
//
// Each entry has the form "retry_after:categories:scope:reason_code", where categories are
// separated by semicolons and everything after retry_after is optional.
func ParseRateLimitsHeader(header string, scoping Scoping, now time.Time) RateLimits {
	var ret RateLimits
	item := ItemScoping{Scoping: scoping}
	for _, entry := range strings.Split(header, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		delay, ok := parseRetryDelay(parts[0])
		if !ok {
			continue
		}
		limit := RateLimit{
			Scope:      ScopeForItem(ScopeOrganization, item),
			RetryAfter: RetryAfterFromDuration(now, delay),
		}
		if len(parts) > 1 && parts[1] != "" {
			for _, name := range strings.Split(parts[1], ";") {
				if c := basictypes.ParseDataCategory(name); c != basictypes.DataCategoryUnknown {
					limit.Categories = append(limit.Categories, c)
				}
			}
			if len(limit.Categories) == 0 {
				// only unknown categories; this limit does not apply to us
				continue
			}
		}
		if len(parts) > 2 && parts[2] != "" {
			scope := ParseQuotaScope(parts[2])
			if scope == ScopeUnknown {
				scope = ScopeOrganization
			}
			limit.Scope = ScopeForItem(scope, item)
		}
		if len(parts) > 3 {
			limit.ReasonCode = ReasonCode(parts[3])
		}
		ret.Add(limit)
	}
	return ret
}

// ParseRetryAfter parses the Retry-After header as a number of seconds, falling back to a
// default when it is missing or malformed.
func ParseRetryAfter(header string, now time.Time) RetryAfter {
	if delay, ok := parseRetryDelay(strings.TrimSpace(header)); ok {
		return RetryAfterFromDuration(now, delay)
	}
	return RetryAfterFromSecs(now, defaultRetryAfterSeconds)
}

// parseRetryDelay parses a non-negative, finite number of seconds, capped at MaxRetryAfter.
func parseRetryDelay(s string) (time.Duration, bool) {
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) || secs < 0 {
		return 0, false
	}
	if secs >= MaxRetryAfter.Seconds() {
		return MaxRetryAfter, true
	}
	return time.Duration(secs * float64(time.Second)), true
}

// FormatRateLimitsHeader renders limits in the X-Sentry-Rate-Limits format. Expired limits are
// omitted.
func FormatRateLimitsHeader(limits RateLimits, now time.Time) string {
	entries := make([]string, 0, len(limits.limits))
	for _, l := range limits.limits {
		if l.RetryAfter.Expired(now) {
			continue
		}
		names := make([]string, 0, len(l.Categories))
		for _, c := range l.Categories {
			names = append(names, c.String())
		}
		entry := strconv.FormatUint(l.RetryAfter.RemainingSeconds(now), 10) + ":" +
			strings.Join(names, ";") + ":" + string(l.Scope.Kind)
		if l.ReasonCode != "" {
			entry += ":" + string(l.ReasonCode)
		}
		entries = append(entries, entry)
	}
	return strings.Join(entries, ", ")
}
