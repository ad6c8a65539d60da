package buckets

import (
	"sort"

	"golang.org/x/exp/constraints"
)

// Partition is a contiguous range of items that share the same key.
type Partition[K constraints.Ordered] struct {
	Key   K
	Start int
	End   int
}

// Len returns the number of items in the partition.
func (p Partition[K]) Len() int { return p.End - p.Start }

// PartitionBy sorts items in place by the given key and returns the ranges of items that share a
// key, in ascending key order. Items with equal keys keep their relative order. The returned
// ranges index into items, so callers can slice the same backing array without copying.
func PartitionBy[T any, K constraints.Ordered](items []T, key func(T) K) []Partition[K] {
	if len(items) == 0 {
		return nil
	}
	keys := make([]K, len(items))
	for i, item := range items {
		keys[i] = key(item)
	}
	sort.Stable(keyedSlice[T, K]{items: items, keys: keys})

	var ret []Partition[K]
	start := 0
	for i := 1; i <= len(items); i++ {
		if i == len(items) || keys[i] != keys[start] {
			ret = append(ret, Partition[K]{Key: keys[start], Start: start, End: i})
			start = i
		}
	}
	return ret
}

type keyedSlice[T any, K constraints.Ordered] struct {
	items []T
	keys  []K
}

func (s keyedSlice[T, K]) Len() int           { return len(s.items) }
func (s keyedSlice[T, K]) Less(i, j int) bool { return s.keys[i] < s.keys[j] }
func (s keyedSlice[T, K]) Swap(i, j int) {
	s.items[i], s.items[j] = s.items[j], s.items[i]
	s.keys[i], s.keys[j] = s.keys[j], s.keys[i]
}
