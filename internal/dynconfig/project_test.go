package dynconfig

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventrelay/relay/internal/basictypes"
	"github.com/eventrelay/relay/internal/protocol"
	"github.com/eventrelay/relay/internal/quotas"
)

const (
	testKey      = basictypes.ProjectKey("e12d836b15bb49d7bbf99e64295d995b")
	testOtherKey = basictypes.ProjectKey("a2d836b15bb49d7bbf99e64295d995bb")
)

const testStateJSON = `{
	"projectId": 42,
	"disabled": false,
	"slug": "my-project",
	"publicKeys": [{"publicKey": "e12d836b15bb49d7bbf99e64295d995b", "numericId": 7}],
	"organizationId": 3,
	"rev": "abc",
	"lastFetch": "2023-06-01T12:00:00Z",
	"config": {
		"allowedDomains": ["example.com"],
		"trustedRelays": [],
		"features": ["projects:span-metrics-extraction"],
		"quotas": [{"id": "q", "scope": "project", "limit": 10, "window": 60, "categories": ["error"]}],
		"filterSettings": {"localhost": {"isEnabled": true}, "releases": {"releases": ["1.*"]}}
	}
}`

func TestParseProjectState(t *testing.T) {
	state, err := ParseProjectState([]byte(testStateJSON))
	require.NoError(t, err)

	assert.Equal(t, basictypes.ProjectID(42), state.ProjectID)
	assert.Equal(t, uint64(3), state.OrganizationID)
	assert.False(t, state.IsMissing())
	assert.True(t, state.Config.Features.Has(FeatureSpanMetricsExtraction))
	require.Len(t, state.Config.Quotas, 1)
	assert.Equal(t, quotas.ScopeProject, state.Config.Quotas[0].Scope)
	assert.Equal(t, []basictypes.DataCategory{basictypes.DataCategoryError}, state.Config.Quotas[0].Categories)

	assert.Equal(t, quotas.Scoping{OrganizationID: 3, ProjectID: 42, ProjectKey: testKey, KeyID: 7}, state.Scoping(testKey))

	fetched := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.False(t, state.IsExpired(time.Minute, fetched.Add(30*time.Second)))
	assert.True(t, state.IsExpired(time.Minute, fetched.Add(time.Minute)))
}

func TestCheckRequest(t *testing.T) {
	state, err := ParseProjectState([]byte(testStateJSON))
	require.NoError(t, err)

	assert.NoError(t, state.CheckRequest(testKey, 42))
	assert.NoError(t, state.CheckRequest(testKey, 0))
	assert.True(t, errors.Is(state.CheckRequest(testOtherKey, 42), ErrProjectRejected))
	assert.True(t, errors.Is(state.CheckRequest(testKey, 43), ErrProjectRejected))

	assert.True(t, MissingProjectState().IsMissing())
	assert.Error(t, MissingProjectState().CheckRequest(testKey, 0))
	assert.False(t, InvalidProjectState().IsMissing())
	assert.Error(t, InvalidProjectState().CheckRequest(testKey, 0))
}

func TestSanitizeAddsSpanMetrics(t *testing.T) {
	state, err := ParseProjectState([]byte(testStateJSON))
	require.NoError(t, err)
	state.Sanitize()
	require.NotNil(t, state.Config.MetricExtraction)
	assert.True(t, state.Config.MetricExtraction.SpanMetricsExtended)
}

func TestIsOriginAllowed(t *testing.T) {
	config := DefaultProjectConfig()
	assert.True(t, config.IsOriginAllowed("https://anything.net"))

	config.AllowedDomains = []string{"example.com", "*.example.org"}
	assert.True(t, config.IsOriginAllowed(""))
	assert.True(t, config.IsOriginAllowed("https://example.com"))
	assert.True(t, config.IsOriginAllowed("https://www.example.org"))
	assert.False(t, config.IsOriginAllowed("https://example.net"))
}

func TestFilterSettings(t *testing.T) {
	var f FilterSettings
	f.Localhost.IsEnabled = true
	f.WebCrawlers.IsEnabled = true
	f.Releases.Releases = []string{"1.*"}
	f.ErrorMessages.Patterns = []string{"*connectionerror*"}

	for name, tc := range map[string]struct {
		event    string
		reason   FilterReason
		filtered bool
	}{
		"plain":      {`{"message":"hello"}`, "", false},
		"localhost":  {`{"request":{"url":"http://localhost:8000/x"}}`, FilterLocalhost, true},
		"loopback":   {`{"user":{"ip_address":"127.0.0.1"}}`, FilterLocalhost, true},
		"crawler":    {`{"request":{"headers":[["User-Agent","Googlebot/2.1"]]}}`, FilterWebCrawlers, true},
		"release":    {`{"release":"1.2.3"}`, FilterReleaseVersion, true},
		"release 2":  {`{"release":"2.0.0"}`, "", false},
		"exception":  {`{"exception":{"values":[{"type":"ConnectionError","value":"timed out"}]}}`, FilterErrorMessage, true},
		"logentry":   {`{"logentry":{"formatted":"ConnectionError in handler"}}`, FilterErrorMessage, true},
		"no message": {`{"exception":{"values":[{"type":"ValueError"}]}}`, "", false},
	} {
		t.Run(name, func(t *testing.T) {
			event, err := protocol.ParseObject([]byte(tc.event))
			require.NoError(t, err)
			reason, filtered := f.ShouldFilter(event)
			assert.Equal(t, tc.filtered, filtered)
			assert.Equal(t, tc.reason, reason)
		})
	}
}
