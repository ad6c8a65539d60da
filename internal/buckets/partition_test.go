package buckets

import (
	"encoding/json"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestPartitionBucketsByName(t *testing.T) {
	buckets, err := ParseBuckets([]byte("a:1|c\nb:2|c\nc:3|c\nb:4|c\nc:5|c\nb:6|c"), 5000)
	require.NoError(t, err)

	partitions := PartitionBy(buckets, func(b Bucket) string { return b.Name })
	require.Len(t, partitions, 3)

	expected := [][]string{
		{`{"timestamp":5000,"width":0,"name":"c:custom/a@none","type":"c","value":1.0}`},
		{
			`{"timestamp":5000,"width":0,"name":"c:custom/b@none","type":"c","value":2.0}`,
			`{"timestamp":5000,"width":0,"name":"c:custom/b@none","type":"c","value":4.0}`,
			`{"timestamp":5000,"width":0,"name":"c:custom/b@none","type":"c","value":6.0}`,
		},
		{
			`{"timestamp":5000,"width":0,"name":"c:custom/c@none","type":"c","value":3.0}`,
			`{"timestamp":5000,"width":0,"name":"c:custom/c@none","type":"c","value":5.0}`,
		},
	}
	for i, p := range partitions {
		part := buckets[p.Start:p.End]
		require.Len(t, part, len(expected[i]))
		for j, b := range part {
			data, err := json.Marshal(b)
			require.NoError(t, err)
			assert.JSONEq(t, expected[i][j], string(data))
		}
	}
}

func TestPartitionReverseOrderedKeys(t *testing.T) {
	items := make([]int, 100)
	for i := range items {
		items[i] = 99 - i
	}
	partitions := PartitionBy(items, func(i int) int { return i })
	require.Len(t, partitions, 100)
	for i, p := range partitions {
		assert.Equal(t, Partition[int]{Key: i, Start: i, End: i + 1}, p)
		assert.Equal(t, i, items[i])
	}
}

func TestPartitionRanges(t *testing.T) {
	items := []string{"a", "b", "c", "b", "a", "b"}
	partitions := PartitionBy(items, func(s string) string { return s })
	assert.Equal(t, []Partition[string]{
		{Key: "a", Start: 0, End: 2},
		{Key: "b", Start: 2, End: 5},
		{Key: "c", Start: 5, End: 6},
	}, partitions)
	assert.Equal(t, []string{"a", "a", "b", "b", "b", "c"}, items)
}

func TestPartitionEmpty(t *testing.T) {
	assert.Empty(t, PartitionBy([]int(nil), func(i int) int { return i }))
}

func TestPartitionProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		type item struct {
			key, seq int
		}
		keys := rapid.SliceOf(rapid.IntRange(0, 10)).Draw(t, "keys")
		items := make([]item, len(keys))
		for i, k := range keys {
			items[i] = item{key: k, seq: i}
		}
		partitions := PartitionBy(items, func(i item) int { return i.key })

		covered := 0
		for n, p := range partitions {
			if p.Start != covered {
				t.Fatalf("partition %d starts at %d, expected %d", n, p.Start, covered)
			}
			if p.Len() <= 0 {
				t.Fatalf("partition %d is empty", n)
			}
			if n > 0 && partitions[n-1].Key >= p.Key {
				t.Fatalf("partition keys not strictly ascending")
			}
			for i := p.Start; i < p.End; i++ {
				if items[i].key != p.Key {
					t.Fatalf("item %d has key %d in partition %d", i, items[i].key, p.Key)
				}
				if i > p.Start && items[i-1].seq >= items[i].seq {
					t.Fatalf("relative order not preserved in partition %d", p.Key)
				}
			}
			covered = p.End
		}
		if covered != len(items) {
			t.Fatalf("partitions cover %d of %d items", covered, len(items))
		}
		if !sort.SliceIsSorted(items, func(i, j int) bool { return items[i].key < items[j].key }) {
			t.Fatalf("items not sorted")
		}
	})
}
