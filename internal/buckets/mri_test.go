package buckets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventrelay/relay/internal/basictypes"
)

func TestParseMRI(t *testing.T) {
	for input, expected := range map[string]string{
		"c:custom/foo@none":                   "c:custom/foo@none",
		"c:foo":                               "c:custom/foo@none",
		"d:transactions/duration@millisecond": "d:transactions/duration@millisecond",
		"d:spans/exclusive_time@millisecond":  "d:spans/exclusive_time@millisecond",
		"s:sessions/user":                     "s:sessions/user@none",
		"g:custom/foo-bar@byte":               "g:custom/foo_bar@byte",
		"c:whatever/foo":                      "c:unsupported/foo@none",
		"m:custom/legacy":                     "d:custom/legacy@none",
		"c:custom/my.metric@percent":          "c:custom/my.metric@percent",
	} {
		t.Run(input, func(t *testing.T) {
			mri, err := ParseMRI(input)
			require.NoError(t, err)
			assert.Equal(t, expected, mri.String())
		})
	}

	for _, input := range []string{"", "foo", "x:custom/foo", "c:custom/1foo", "c:custom/@none", "c:custom/foo@not-a-unit"} {
		_, err := ParseMRI(input)
		assert.Error(t, err, input)
	}
}

func TestParseMRIFields(t *testing.T) {
	mri := MustParseMRI("d:transactions/duration@millisecond")
	assert.Equal(t, MetricTypeDistribution, mri.Type)
	assert.Equal(t, NamespaceTransactions, mri.Namespace)
	assert.Equal(t, "duration", mri.Name)
	assert.Equal(t, basictypes.UnitFamilyDuration, mri.Unit.Family())
}

func TestParseMetricValue(t *testing.T) {
	v, err := ParseMetricValue("1.5")
	require.NoError(t, err)
	assert.Equal(t, MetricValue(1.5), v)
	assert.Equal(t, "1.5", v.String())

	for _, input := range []string{"", "nan", "inf", "-Inf", "x"} {
		_, err := ParseMetricValue(input)
		assert.Error(t, err, input)
	}
}

func TestParseSetValue(t *testing.T) {
	assert.Equal(t, SetValue(42), ParseSetValue("42"))
	assert.Equal(t, SetValue(0x3610a686), ParseSetValue("hello"))
	assert.Equal(t, ParseSetValue("hello"), ParseSetValue("hello"))
}
