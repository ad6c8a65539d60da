package dynconfig

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventrelay/relay/internal/protocol"
)

func testSpan(t *testing.T) protocol.Object {
	obj, err := protocol.ParseObject([]byte(`{"span":{"op":"db","data":{"mobile":true,"http.status_code":"200"}}}`))
	require.NoError(t, err)
	return obj
}

func TestEqCondition(t *testing.T) {
	span := testSpan(t)
	assert.True(t, EqCondition("span.data.mobile", true).Matches(span))
	assert.False(t, EqCondition("span.data.mobile", false).Matches(span))
	assert.True(t, EqCondition(`span.data.http\.status_code`, "200").Matches(span))
	assert.True(t, EqCondition("span.op", protocol.Array{"http", "db"}).Matches(span))
	assert.False(t, EqCondition("span.op", "DB").Matches(span))
	assert.True(t, EqCondition("span.missing", nil).Matches(span))

	c := EqCondition("span.op", "DB")
	c.IgnoreCase = true
	assert.True(t, c.Matches(span))
}

func TestCombinedConditions(t *testing.T) {
	span := testSpan(t)
	yes := EqCondition("span.op", "db")
	no := EqCondition("span.op", "http")

	assert.True(t, AndCondition(yes, yes).Matches(span))
	assert.False(t, AndCondition(yes, no).Matches(span))
	assert.True(t, AndCondition().Matches(span))
	assert.True(t, OrCondition(no, yes).Matches(span))
	assert.False(t, OrCondition().Matches(span))
	assert.True(t, NotCondition(no).Matches(span))
	assert.False(t, NotCondition(yes).Matches(span))
}

func TestConditionJSON(t *testing.T) {
	input := `{"op":"and","inner":[` +
		`{"op":"eq","name":"span.op","value":["db","http"],"options":{"ignoreCase":true}},` +
		`{"op":"not","inner":{"op":"eq","name":"span.data.mobile","value":true}}]}`
	var c RuleCondition
	require.NoError(t, json.Unmarshal([]byte(input), &c))
	assert.Equal(t, OpAnd, c.Op)
	require.Len(t, c.Inner, 2)
	assert.True(t, c.Inner[0].IgnoreCase)
	assert.Equal(t, protocol.Array{"db", "http"}, c.Inner[0].Value)
	assert.Equal(t, OpNot, c.Inner[1].Op)
	assert.True(t, c.IsSupported())

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, input, string(data))
}

func TestUnknownConditionNeverMatches(t *testing.T) {
	var c RuleCondition
	require.NoError(t, json.Unmarshal([]byte(`{"op":"glob","name":"x","value":["*"]}`), &c))
	assert.False(t, c.IsSupported())
	assert.False(t, c.Matches(protocol.Object{"x": "y"}))
	assert.False(t, OrCondition(c).IsSupported())
}
