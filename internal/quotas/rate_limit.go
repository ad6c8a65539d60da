package quotas

import (
	"sort"
	"time"

	"github.com/eventrelay/relay/internal/basictypes"
)

// RetryAfter is the instant after which a rate limit expires.
type RetryAfter struct {
	when time.Time
}

// RetryAfterFromDuration creates a RetryAfter that expires d after now.
func RetryAfterFromDuration(now time.Time, d time.Duration) RetryAfter {
	return RetryAfter{when: now.Add(d)}
}

// RetryAfterFromSecs creates a RetryAfter from a number of seconds.
func RetryAfterFromSecs(now time.Time, secs uint64) RetryAfter {
	return RetryAfterFromDuration(now, time.Duration(secs)*time.Second)
}

// When returns the expiry instant.
func (r RetryAfter) When() time.Time { return r.when }

// Remaining returns the time until expiry, or zero if it has expired.
func (r RetryAfter) Remaining(now time.Time) time.Duration {
	if d := r.when.Sub(now); d > 0 {
		return d
	}
	return 0
}

// RemainingSeconds rounds the remaining time up to whole seconds.
func (r RetryAfter) RemainingSeconds(now time.Time) uint64 {
	d := r.Remaining(now)
	return uint64((d + time.Second - 1) / time.Second)
}

// Expired returns true once the instant has passed.
func (r RetryAfter) Expired(now time.Time) bool {
	return !r.when.After(now)
}

// RateLimitScope identifies the entity a rate limit was applied to.
type RateLimitScope struct {
	Kind QuotaScope
	ID   string
}

// GlobalScope is the scope of rate limits that apply to everything, such as a 429 response
// from upstream without further information.
var GlobalScope = RateLimitScope{Kind: ScopeOrganization} //nolint:gochecknoglobals

// ScopeForItem returns the rate limit scope of an item at the given quota scope.
func ScopeForItem(scope QuotaScope, item ItemScoping) RateLimitScope {
	return RateLimitScope{Kind: scope, ID: item.ScopeID(scope)}
}

// RateLimit is an active limitation of data categories within a scope.
type RateLimit struct {
	// Categories is the list of limited categories. Empty means all categories.
	Categories []basictypes.DataCategory
	Scope      RateLimitScope
	ReasonCode ReasonCode
	RetryAfter RetryAfter
}

// RateLimitFromQuota creates the rate limit that results from exhausting a quota.
func RateLimitFromQuota(q Quota, item ItemScoping, retryAfter RetryAfter) RateLimit {
	return RateLimit{
		Categories: append([]basictypes.DataCategory(nil), q.Categories...),
		Scope:      ScopeForItem(q.Scope, item),
		ReasonCode: q.ReasonCode,
		RetryAfter: retryAfter,
	}
}

// Matches returns true if the rate limit applies to the item.
func (r RateLimit) Matches(item ItemScoping) bool {
	if !item.MatchesCategories(r.Categories) {
		return false
	}
	if r.Scope.ID == "" {
		return true
	}
	return r.Scope.ID == item.ScopeID(r.Scope.Kind)
}

func (r RateLimit) sameTarget(other RateLimit) bool {
	if r.Scope != other.Scope || len(r.Categories) != len(other.Categories) {
		return false
	}
	a, b := sortedCategories(r.Categories), sortedCategories(other.Categories)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sortedCategories(c []basictypes.DataCategory) []basictypes.DataCategory {
	ret := append([]basictypes.DataCategory(nil), c...)
	sort.Slice(ret, func(i, j int) bool { return ret[i] < ret[j] })
	return ret
}

// RateLimits is a collection of rate limits. The zero value is empty and ready to use.
type RateLimits struct {
	limits []RateLimit
}

// Add inserts a limit. A limit with the same scope and categories as an existing one is merged,
// keeping the later expiry.
func (r *RateLimits) Add(limit RateLimit) {
	for i, existing := range r.limits {
		if existing.sameTarget(limit) {
			if limit.RetryAfter.when.After(existing.RetryAfter.when) {
				r.limits[i] = limit
			}
			return
		}
	}
	r.limits = append(r.limits, limit)
}

// Merge adds all limits of another collection.
func (r *RateLimits) Merge(other RateLimits) {
	for _, l := range other.limits {
		r.Add(l)
	}
}

// IsLimited returns true if the collection holds any limit.
func (r RateLimits) IsLimited() bool {
	return len(r.limits) != 0
}

// Limits returns the limits in insertion order.
func (r RateLimits) Limits() []RateLimit {
	return r.limits
}

// Clean removes expired limits.
func (r *RateLimits) Clean(now time.Time) {
	kept := r.limits[:0]
	for _, l := range r.limits {
		if !l.RetryAfter.Expired(now) {
			kept = append(kept, l)
		}
	}
	r.limits = kept
}

// CheckWithQuotas returns the active limits that apply to the item. Quotas with a limit of zero
// are treated as active limits as well, since they reject everything.
func (r RateLimits) CheckWithQuotas(quotas []Quota, item ItemScoping, now time.Time) RateLimits {
	var ret RateLimits
	for _, q := range quotas {
		if q.RejectsAll() && q.Matches(item) {
			ret.Add(RateLimitFromQuota(q, item, RetryAfterFromSecs(now, 60)))
		}
	}
	for _, l := range r.limits {
		if !l.RetryAfter.Expired(now) && l.Matches(item) {
			ret.Add(l)
		}
	}
	return ret
}

// Check returns the active limits that apply to the item.
func (r RateLimits) Check(item ItemScoping, now time.Time) RateLimits {
	return r.CheckWithQuotas(nil, item, now)
}

// Longest returns the limit that expires last.
func (r RateLimits) Longest() (RateLimit, bool) {
	if len(r.limits) == 0 {
		return RateLimit{}, false
	}
	longest := r.limits[0]
	for _, l := range r.limits[1:] {
		if l.RetryAfter.when.After(longest.RetryAfter.when) {
			longest = l
		}
	}
	return longest, true
}
