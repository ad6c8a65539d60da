package buckets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeCounter(t *testing.T) {
	v := NewCounterValue(1)
	require.NoError(t, v.Merge(NewCounterValue(41)))
	assert.Equal(t, MetricValue(42), v.Counter())
	assert.Equal(t, 1, v.Len())
}

func TestMergeDistributionKeepsValuesSorted(t *testing.T) {
	v := NewDistributionValue(3, 1)
	require.NoError(t, v.Merge(NewDistributionValue(2, 1)))
	assert.Equal(t, []MetricValue{1, 1, 2, 3}, v.Distribution())
	assert.Equal(t, 4, v.Len())
}

func TestMergeSet(t *testing.T) {
	v := NewSetValue(1, 2)
	require.NoError(t, v.Merge(NewSetValue(2, 3)))
	assert.Equal(t, []SetValue{1, 2, 3}, v.Set())
}

func TestMergeGauge(t *testing.T) {
	v := NewGaugeBucketValue(NewGaugeValue(5))
	require.NoError(t, v.Merge(NewGaugeBucketValue(NewGaugeValue(1))))
	require.NoError(t, v.Merge(NewGaugeBucketValue(NewGaugeValue(3))))
	assert.Equal(t, GaugeValue{Last: 3, Min: 1, Max: 5, Sum: 9, Count: 3}, v.Gauge())
	assert.Equal(t, MetricValue(3), v.Gauge().Avg())
}

func TestMergeMismatchedTypes(t *testing.T) {
	v := NewCounterValue(1)
	err := v.Merge(NewSetValue(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, AggregateMetricsError{Kind: InvalidTypes})
	assert.Equal(t, MetricValue(1), v.Counter())
}

func TestCloneDoesNotShareState(t *testing.T) {
	v := NewSetValue(1)
	c := v.Clone()
	require.NoError(t, c.Merge(NewSetValue(2)))
	assert.Equal(t, []SetValue{1}, v.Set())
	assert.Equal(t, []SetValue{1, 2}, c.Set())
}
