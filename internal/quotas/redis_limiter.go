package quotas

import (
	"context"
	"strconv"

	"github.com/benbjohnson/clock"
	goredis "github.com/go-redis/redis/v8"
)

// isRateLimitedScript checks all counters first and only increments them if none is exhausted,
// so that a rejected item does not consume quota.
//
// KEYS: one counter per quota.
// ARGV: four values per quota: limit, expiry (unix seconds), quantity, over-limit-only flag.
const isRateLimitedScript = `
local results = {}
local failed = false
for i = 1, #KEYS do
	local base = (i - 1) * 4
	local limit = tonumber(ARGV[base + 1])
	local quantity = tonumber(ARGV[base + 3])
	local current = tonumber(redis.call("GET", KEYS[i]) or "0")
	local rejected
	if ARGV[base + 4] == "1" then
		rejected = current >= limit
	else
		rejected = current + quantity > limit
	end
	if rejected then
		failed = true
		results[i] = 1
	else
		results[i] = 0
	end
end
if not failed then
	for i = 1, #KEYS do
		local base = (i - 1) * 4
		local quantity = tonumber(ARGV[base + 3])
		if quantity > 0 then
			redis.call("INCRBY", KEYS[i], quantity)
			redis.call("EXPIREAT", KEYS[i], tonumber(ARGV[base + 2]))
		end
	end
end
return results
`

// RedisRateLimiter counts usage in Redis so that limits are shared by all Relay instances.
type RedisRateLimiter struct {
	client goredis.UniversalClient
	script *goredis.Script
	prefix string
	clock  clock.Clock
}

// NewRedisRateLimiter creates a RedisRateLimiter. Keys are prefixed with prefix. If clk is nil,
// the system clock is used.
func NewRedisRateLimiter(client goredis.UniversalClient, prefix string, clk clock.Clock) *RedisRateLimiter {
	if clk == nil {
		clk = clock.New()
	}
	return &RedisRateLimiter{
		client: client,
		script: goredis.NewScript(isRateLimitedScript),
		prefix: prefix,
		clock:  clk,
	}
}

// IsRateLimited implements RateLimiter.
func (r *RedisRateLimiter) IsRateLimited(
	ctx context.Context,
	quotas []Quota,
	item ItemScoping,
	quantity int,
	overLimitOnly bool,
) (RateLimits, error) {
	now := r.clock.Now()
	rejected, tracked := prepareQuotas(r.prefix, quotas, item, now)
	if rejected.IsLimited() || len(tracked) == 0 {
		return rejected, nil
	}

	keys := make([]string, 0, len(tracked))
	args := make([]interface{}, 0, len(tracked)*4)
	overFlag := "0"
	if overLimitOnly {
		overFlag = "1"
	}
	for _, t := range tracked {
		keys = append(keys, t.key)
		args = append(args,
			strconv.FormatUint(t.limit, 10),
			strconv.FormatInt(t.expiry.Unix(), 10),
			strconv.Itoa(quantity),
			overFlag,
		)
	}

	result, err := r.script.Run(ctx, r.client, keys, args...).Slice()
	if err != nil {
		return RateLimits{}, RateLimitingError{Err: err}
	}
	var limits RateLimits
	for i, v := range result {
		if n, ok := v.(int64); ok && n == 1 && i < len(tracked) {
			limits.Add(RateLimitFromQuota(tracked[i].quota, item, tracked[i].retryAfter))
		}
	}
	return limits, nil
}
