package quotas

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/eventrelay/relay/internal/basictypes"
)

func TestParseRateLimitsHeader(t *testing.T) {
	limits := ParseRateLimitsHeader("60:transaction:key, 2700:default;error;security:organization:my_reason", testScoping, testNow)
	require.Len(t, limits.Limits(), 2)

	first := limits.Limits()[0]
	assert.Equal(t, []basictypes.DataCategory{basictypes.DataCategoryTransaction}, first.Categories)
	assert.Equal(t, RateLimitScope{Kind: ScopeKey, ID: "17"}, first.Scope)
	assert.Equal(t, uint64(60), first.RetryAfter.RemainingSeconds(testNow))

	second := limits.Limits()[1]
	assert.Equal(t, []basictypes.DataCategory{basictypes.DataCategoryDefault, basictypes.DataCategoryError,
		basictypes.DataCategorySecurity}, second.Categories)
	assert.Equal(t, RateLimitScope{Kind: ScopeOrganization, ID: "42"}, second.Scope)
	assert.Equal(t, ReasonCode("my_reason"), second.ReasonCode)
}

func TestParseRateLimitsHeaderEdgeCases(t *testing.T) {
	limits := ParseRateLimitsHeader("42::organization", testScoping, testNow)
	require.Len(t, limits.Limits(), 1)
	assert.Empty(t, limits.Limits()[0].Categories)

	limits = ParseRateLimitsHeader("42:foobar:organization", testScoping, testNow)
	assert.False(t, limits.IsLimited())

	limits = ParseRateLimitsHeader("invalid, ,60", testScoping, testNow)
	require.Len(t, limits.Limits(), 1)
	assert.Equal(t, ScopeOrganization, limits.Limits()[0].Scope.Kind)

	limits = ParseRateLimitsHeader("12.5:error:project", testScoping, testNow)
	require.Len(t, limits.Limits(), 1)
	assert.Equal(t, uint64(13), limits.Limits()[0].RetryAfter.RemainingSeconds(testNow))
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, uint64(30), ParseRetryAfter("30", testNow).RemainingSeconds(testNow))
	assert.Equal(t, uint64(defaultRetryAfterSeconds), ParseRetryAfter("", testNow).RemainingSeconds(testNow))
	assert.Equal(t, uint64(defaultRetryAfterSeconds), ParseRetryAfter("soon", testNow).RemainingSeconds(testNow))
}

func TestRetryDelaysMustBeFiniteAndAreCapped(t *testing.T) {
	maxSecs := uint64(MaxRetryAfter / time.Second)
	for _, tc := range []struct {
		value    string
		expected uint64
	}{
		{"NaN", defaultRetryAfterSeconds},
		{"Inf", defaultRetryAfterSeconds},
		{"-Inf", defaultRetryAfterSeconds},
		{"infinity", defaultRetryAfterSeconds},
		{"1e400", defaultRetryAfterSeconds},
		{"-5", defaultRetryAfterSeconds},
		{"1e300", maxSecs},
		{"9223372036854775807", maxSecs},
		{"86401", maxSecs},
		{"86399", 86399},
	} {
		t.Run(tc.value, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseRetryAfter(tc.value, testNow).RemainingSeconds(testNow))

			limits := ParseRateLimitsHeader(tc.value+":error:project", testScoping, testNow)
			if tc.expected == defaultRetryAfterSeconds {
				assert.False(t, limits.IsLimited())
			} else {
				require.Len(t, limits.Limits(), 1)
				assert.Equal(t, tc.expected, limits.Limits()[0].RetryAfter.RemainingSeconds(testNow))
			}
		})
	}
}

func TestFormatRateLimitsHeader(t *testing.T) {
	var limits RateLimits
	limits.Add(RateLimit{Categories: []basictypes.DataCategory{basictypes.DataCategoryTransaction},
		Scope: RateLimitScope{Kind: ScopeKey, ID: "17"}, RetryAfter: RetryAfterFromSecs(testNow, 42)})
	limits.Add(RateLimit{Scope: RateLimitScope{Kind: ScopeOrganization, ID: "42"}, ReasonCode: "my_reason",
		RetryAfter: RetryAfterFromSecs(testNow, 10)})
	limits.Add(RateLimit{Scope: RateLimitScope{Kind: ScopeProject, ID: "21"}, RetryAfter: RetryAfterFromSecs(testNow, 0)})

	assert.Equal(t, "42:transaction:key, 10::organization:my_reason", FormatRateLimitsHeader(limits, testNow))
}

func TestRateLimitsHeaderRoundTrip(t *testing.T) {
	categories := basictypes.AllDataCategories()
	scopes := []QuotaScope{ScopeOrganization, ScopeProject, ScopeKey}
	rapid.Check(t, func(t *rapid.T) {
		var limits RateLimits
		n := rapid.IntRange(0, 5).Draw(t, "n")
		for i := 0; i < n; i++ {
			cats := rapid.SliceOfNDistinct(rapid.SampledFrom(categories), 0, 3,
				func(c basictypes.DataCategory) basictypes.DataCategory { return c }).Draw(t, "categories")
			scope := rapid.SampledFrom(scopes).Draw(t, "scope")
			reason := rapid.StringMatching(`[a-z_]{0,8}`).Draw(t, "reason")
			secs := rapid.Uint64Range(1, 3600).Draw(t, "secs")
			limits.Add(RateLimit{
				Categories: cats,
				Scope:      ScopeForItem(scope, ItemScoping{Scoping: testScoping}),
				ReasonCode: ReasonCode(reason),
				RetryAfter: RetryAfterFromSecs(testNow, secs),
			})
		}

		parsed := ParseRateLimitsHeader(FormatRateLimitsHeader(limits, testNow), testScoping, testNow)
		if len(parsed.Limits()) != len(limits.Limits()) {
			t.Fatalf("expected %d limits, got %d", len(limits.Limits()), len(parsed.Limits()))
		}
		for i, l := range limits.Limits() {
			p := parsed.Limits()[i]
			if !l.sameTarget(p) || l.ReasonCode != p.ReasonCode ||
				l.RetryAfter.RemainingSeconds(testNow) != p.RetryAfter.RemainingSeconds(testNow) {
				t.Fatalf("limit %d changed: %+v became %+v", i, l, p)
			}
		}
	})
}

func TestRetryAfterIsNotNegative(t *testing.T) {
	assert.Equal(t, time.Duration(0), RetryAfterFromSecs(testNow, 0).Remaining(testNow.Add(time.Second)))
}
