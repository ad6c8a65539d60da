package metrics

import (
	"fmt"
	"sync"

	"go.opencensus.io/stats/view"
)

var (
	registerViewsOnce sync.Once //nolint:gochecknoglobals
	registerViewsErr  error     //nolint:gochecknoglobals
)

var timerBuckets = view.Distribution(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000) //nolint:gochecknoglobals

func allCounters() []Counter {
	return []Counter{
		Requests, EnvelopesAccepted, EnvelopesRejected, ItemsProcessed,
		BucketsMerged, BucketsFlushed, BucketsDropped,
		UpstreamRequests, ProjectCacheHits, ProjectCacheMisses, ProjectFetches,
		OutcomesEmitted,
	}
}

func allTimers() []Timer {
	return []Timer{RequestDuration, UpstreamRequestDuration}
}

func allGauges() []Gauge {
	return []Gauge{
		ProjectCacheSize,
		MemoryHeapAlloc, MemoryHeapInUse, MemorySys, MemoryAllocs, MemoryFrees, Goroutines,
	}
}

func getViews() []*view.View {
	var views []*view.View
	for _, c := range allCounters() {
		views = append(views, &view.View{Measure: c.measure, Aggregation: view.Sum(), TagKeys: c.keys})
	}
	for _, t := range allTimers() {
		views = append(views, &view.View{Measure: t.measure, Aggregation: timerBuckets, TagKeys: t.keys})
	}
	for _, g := range allGauges() {
		views = append(views, &view.View{Measure: g.measure, Aggregation: view.LastValue(), TagKeys: g.keys})
	}
	return views
}

func registerViews() error {
	registerViewsOnce.Do(func() {
		if err := view.Register(getViews()...); err != nil {
			registerViewsErr = fmt.Errorf("error registering metrics views: %w", err)
		}
	})
	return registerViewsErr
}
