package quotas

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// gracePeriod keeps counters around a little longer than their window, so that clock skew between
// Relay instances does not reset them early.
const gracePeriod = 60 * time.Second

// RateLimiter counts usage against quotas.
type RateLimiter interface {
	// IsRateLimited checks all quotas that apply to the item and, unless one of them is exhausted,
	// consumes quantity from each. The returned limits are empty if the item was accepted.
	//
	// With overLimitOnly, an item is only rejected if the quota was already exhausted before it,
	// so that a single large item can go over the limit once.
	IsRateLimited(ctx context.Context, quotas []Quota, item ItemScoping, quantity int, overLimitOnly bool) (RateLimits, error)
}

// trackedQuota is a quota that applies to an item, with its counter key and window.
type trackedQuota struct {
	quota      Quota
	key        string
	limit      uint64
	expiry     time.Time
	retryAfter RetryAfter
}

// prepareQuotas sorts the applicable quotas into those that reject everything and those that must
// be counted.
func prepareQuotas(
	prefix string,
	quotas []Quota,
	item ItemScoping,
	now time.Time,
) (rejected RateLimits, tracked []trackedQuota) {
	for _, q := range quotas {
		if !q.IsValid() || !q.Matches(item) {
			continue
		}
		if q.RejectsAll() {
			window := uint64(defaultRetryAfterSeconds)
			if q.Window != nil && *q.Window > 0 {
				window = *q.Window
			}
			rejected.Add(RateLimitFromQuota(q, item, RetryAfterFromSecs(now, window)))
			continue
		}
		if !q.IsTrackable() {
			continue
		}
		window := int64(*q.Window)
		slot := now.Unix() / window
		windowEnd := time.Unix((slot+1)*window, 0)
		tracked = append(tracked, trackedQuota{
			quota:      q,
			key:        quotaKey(prefix, q, item, slot),
			limit:      *q.Limit,
			expiry:     windowEnd.Add(gracePeriod),
			retryAfter: RetryAfterFromDuration(now, windowEnd.Sub(now)),
		})
	}
	return rejected, tracked
}

// quotaKey builds the counter key. The organization ID is a hash tag, so that all counters of one
// organization live in the same Redis Cluster slot and can be updated by one script.
func quotaKey(prefix string, q Quota, item ItemScoping, slot int64) string {
	return fmt.Sprintf("%squota:%s{%d}%s:%d", prefix, q.ID, item.OrganizationID, item.ScopeID(q.Scope), slot)
}

func isOverLimit(current, quantity, limit uint64, overLimitOnly bool) bool {
	if overLimitOnly {
		return current >= limit
	}
	return current+quantity > limit
}

// InMemoryRateLimiter counts usage in process memory. It is used when Relay is not configured
// with Redis, so limits are only enforced per instance.
type InMemoryRateLimiter struct {
	clock    clock.Clock
	counters map[string]*memoryCounter
	lock     sync.Mutex
}

type memoryCounter struct {
	count  uint64
	expiry time.Time
}

// NewInMemoryRateLimiter creates an InMemoryRateLimiter. If clk is nil, the system clock is used.
func NewInMemoryRateLimiter(clk clock.Clock) *InMemoryRateLimiter {
	if clk == nil {
		clk = clock.New()
	}
	return &InMemoryRateLimiter{clock: clk, counters: make(map[string]*memoryCounter)}
}

// IsRateLimited implements RateLimiter.
func (m *InMemoryRateLimiter) IsRateLimited(
	ctx context.Context,
	quotas []Quota,
	item ItemScoping,
	quantity int,
	overLimitOnly bool,
) (RateLimits, error) {
	now := m.clock.Now()
	rejected, tracked := prepareQuotas("", quotas, item, now)
	if rejected.IsLimited() || len(tracked) == 0 {
		return rejected, nil
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	m.purgeExpired(now)

	var limits RateLimits
	for _, t := range tracked {
		var current uint64
		if c := m.counters[t.key]; c != nil {
			current = c.count
		}
		if isOverLimit(current, uint64(quantity), t.limit, overLimitOnly) {
			limits.Add(RateLimitFromQuota(t.quota, item, t.retryAfter))
		}
	}
	if limits.IsLimited() {
		return limits, nil
	}
	for _, t := range tracked {
		c := m.counters[t.key]
		if c == nil {
			c = &memoryCounter{expiry: t.expiry}
			m.counters[t.key] = c
		}
		c.count += uint64(quantity)
	}
	return limits, nil
}

func (m *InMemoryRateLimiter) purgeExpired(now time.Time) {
	for k, c := range m.counters {
		if !c.expiry.After(now) {
			delete(m.counters, k)
		}
	}
}
