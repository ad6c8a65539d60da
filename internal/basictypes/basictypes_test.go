package basictypes

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataCategoryNames(t *testing.T) {
	for _, c := range AllDataCategories() {
		assert.Equal(t, c, ParseDataCategory(c.String()))
		assert.Equal(t, c, DataCategoryFromValue(int(c)))
	}
	assert.Equal(t, DataCategoryUnknown, ParseDataCategory("nope"))
	assert.Equal(t, "unknown", DataCategoryUnknown.String())
	assert.Equal(t, DataCategoryUnknown, DataCategoryFromValue(999))
}

func TestDataCategoryJSON(t *testing.T) {
	var cats []DataCategory
	require.NoError(t, json.Unmarshal([]byte(`["error", 2, "whatever"]`), &cats))
	assert.Equal(t, []DataCategory{DataCategoryError, DataCategoryTransaction, DataCategoryUnknown}, cats)

	data, err := json.Marshal([]DataCategory{DataCategorySpan})
	require.NoError(t, err)
	assert.Equal(t, `["span"]`, string(data))
}

func TestEventTypeCategory(t *testing.T) {
	et, err := ParseEventType("CSP")
	require.NoError(t, err)
	assert.Equal(t, DataCategorySecurity, et.DataCategory())
	assert.Equal(t, DataCategoryTransaction, EventTypeTransaction.DataCategory())

	_, err = ParseEventType("bogus")
	assert.Error(t, err)
}

func TestProjectKey(t *testing.T) {
	k, err := ParseProjectKey("A94AE32BE2584E0BBD7A4CBB95971FEE")
	require.NoError(t, err)
	assert.Equal(t, ProjectKey("a94ae32be2584e0bbd7a4cbb95971fee"), k)

	_, err = ParseProjectKey("short")
	assert.Equal(t, ErrInvalidProjectKey, err)
	_, err = ParseProjectKey("z94ae32be2584e0bbd7a4cbb95971fee")
	assert.Equal(t, ErrInvalidProjectKey, err)
}

func TestProjectID(t *testing.T) {
	id, err := ParseProjectID("42")
	require.NoError(t, err)
	assert.Equal(t, ProjectID(42), id)
	_, err = ParseProjectID("0")
	assert.Error(t, err)
	_, err = ParseProjectID("x")
	assert.Error(t, err)
}

func TestUnixTimestamp(t *testing.T) {
	ts := UnixTimestampFromTime(time.Date(2020, 1, 1, 0, 0, 0, 500, time.UTC))
	assert.Equal(t, UnixTimestamp(1577836800), ts)
	assert.Equal(t, "1577836800", ts.String())
	assert.Equal(t, UnixTimestamp(1577836810), ts.Add(10*time.Second))
	assert.Equal(t, UnixTimestamp(0), UnixTimestampFromTime(time.Unix(-5, 0)))
}

func TestMetricUnit(t *testing.T) {
	u, err := ParseMetricUnit("millisecond")
	require.NoError(t, err)
	assert.Equal(t, UnitFamilyDuration, u.Family())

	u, err = ParseMetricUnit("")
	require.NoError(t, err)
	assert.True(t, u.IsNone())
	assert.Equal(t, "none", u.String())

	u, err = ParseMetricUnit("widgets")
	require.NoError(t, err)
	assert.Equal(t, UnitFamilyCustom, u.Family())

	_, err = ParseMetricUnit("way_too_long_for_a_unit")
	assert.Equal(t, ErrInvalidMetricUnit, err)
	_, err = ParseMetricUnit("bad-unit")
	assert.Equal(t, ErrInvalidMetricUnit, err)
}

func TestSpanStatus(t *testing.T) {
	s, err := ParseSpanStatus("canceled")
	require.NoError(t, err)
	assert.Equal(t, SpanStatusCancelled, s)
	assert.Equal(t, SpanStatusNotFound, SpanStatusFromHTTPCode(404))
	assert.Equal(t, SpanStatusOK, SpanStatusFromHTTPCode(204))
	assert.Equal(t, SpanStatusInternalError, SpanStatusFromHTTPCode(500))
	_, err = ParseSpanStatus("meh")
	assert.Error(t, err)
}

func TestGlob(t *testing.T) {
	g := NewGlob("d:spans/exclusive_time*@millisecond")
	assert.True(t, g.IsMatch("d:spans/exclusive_time@millisecond"))
	assert.True(t, g.IsMatch("d:spans/exclusive_time_light@millisecond"))
	assert.False(t, g.IsMatch("d:spans/duration@millisecond"))

	copied := g
	assert.True(t, copied.IsMatch("d:spans/exclusive_time@millisecond"))

	assert.True(t, NewGlob("foo/**").IsMatch("foo/bar/baz"))
	assert.False(t, NewGlob("foo/*").IsMatch("foo/bar/baz"))
	assert.False(t, NewGlob("[").IsMatch("["))

	_, err := CompileGlob("[")
	assert.Error(t, err)

	assert.True(t, IsGlobMatch("1.0/beta", "1.*", false))
	assert.False(t, IsGlobMatch("1.0/beta", "1.*", true))
}

func TestGlobJSON(t *testing.T) {
	var patterns GlobPatterns
	require.NoError(t, json.Unmarshal([]byte(`["a*", "b*"]`), &patterns))
	assert.True(t, patterns.IsMatch("bob"))
	assert.False(t, patterns.IsMatch("carl"))

	data, err := json.Marshal(patterns)
	require.NoError(t, err)
	assert.Equal(t, `["a*","b*"]`, string(data))
}
