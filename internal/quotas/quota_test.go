package quotas

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventrelay/relay/internal/basictypes"
)

var testScoping = Scoping{ //nolint:gochecknoglobals
	OrganizationID: 42,
	ProjectID:      21,
	ProjectKey:     "a94ae32be2584e0bbd7a4cbb95971fee",
	KeyID:          17,
}

func TestParseQuotaJSON(t *testing.T) {
	var q Quota
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "o",
		"categories": ["error", "transaction"],
		"scope": "organization",
		"scopeId": "42",
		"limit": 100,
		"window": 60,
		"reasonCode": "get_lost"
	}`), &q))
	assert.Equal(t, Quota{
		ID:         "o",
		Categories: []basictypes.DataCategory{basictypes.DataCategoryError, basictypes.DataCategoryTransaction},
		Scope:      ScopeOrganization,
		ScopeID:    "42",
		Limit:      Uint64(100),
		Window:     Uint64(60),
		ReasonCode: "get_lost",
	}, q)
	assert.True(t, q.IsValid())
	assert.True(t, q.IsTrackable())

	require.NoError(t, json.Unmarshal([]byte(`{"scope":"galaxy"}`), &q))
	assert.Equal(t, ScopeUnknown, q.Scope)
}

func TestQuotaValidity(t *testing.T) {
	assert.False(t, Quota{Scope: ScopeUnknown}.IsValid())
	assert.False(t, Quota{Scope: ScopeProject, Categories: []basictypes.DataCategory{basictypes.DataCategoryUnknown}}.IsValid())
	assert.False(t, Quota{ID: "q", Scope: ScopeProject, Limit: Uint64(10)}.IsValid())
	assert.True(t, Quota{Scope: ScopeProject, Limit: Uint64(0)}.IsValid())
	assert.True(t, Quota{Scope: ScopeProject}.IsValid())
}

func TestQuotaMatches(t *testing.T) {
	item := testScoping.Item(basictypes.DataCategoryError)

	assert.True(t, Quota{Scope: ScopeOrganization}.Matches(item))
	assert.True(t, Quota{Scope: ScopeOrganization, ScopeID: "42"}.Matches(item))
	assert.False(t, Quota{Scope: ScopeOrganization, ScopeID: "43"}.Matches(item))
	assert.True(t, Quota{Scope: ScopeProject, ScopeID: "21"}.Matches(item))
	assert.True(t, Quota{Scope: ScopeKey, ScopeID: "17"}.Matches(item))
	assert.False(t, Quota{Scope: ScopeKey, ScopeID: "17",
		Categories: []basictypes.DataCategory{basictypes.DataCategoryTransaction}}.Matches(item))
}

func TestRejectsAll(t *testing.T) {
	assert.True(t, Quota{Limit: Uint64(0)}.RejectsAll())
	assert.False(t, Quota{Limit: Uint64(1)}.RejectsAll())
	assert.False(t, Quota{}.RejectsAll())
	assert.False(t, Quota{Limit: Uint64(1), Window: Uint64(10)}.IsTrackable())
}
