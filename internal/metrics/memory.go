package metrics

import (
	"context"
	"runtime"
)

// MemoryStats is a snapshot of the process's memory usage.
type MemoryStats struct {
	HeapAlloc  uint64
	HeapInUse  uint64
	Sys        uint64
	Mallocs    uint64
	Frees      uint64
	Goroutines int
}

// ReadMemoryStats reads the current memory statistics from the runtime.
func ReadMemoryStats() MemoryStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return MemoryStats{
		HeapAlloc:  ms.HeapAlloc,
		HeapInUse:  ms.HeapInuse,
		Sys:        ms.Sys,
		Mallocs:    ms.Mallocs,
		Frees:      ms.Frees,
		Goroutines: runtime.NumGoroutine(),
	}
}

// UsedRatio is the fraction of memory obtained from the OS that is in use by the heap.
func (s MemoryStats) UsedRatio() float64 {
	if s.Sys == 0 {
		return 0
	}
	return float64(s.HeapInUse) / float64(s.Sys)
}

func collectMemoryStats(ctx context.Context) MemoryStats {
	s := ReadMemoryStats()
	MemoryHeapAlloc.Set(ctx, int64(s.HeapAlloc))
	MemoryHeapInUse.Set(ctx, int64(s.HeapInUse))
	MemorySys.Set(ctx, int64(s.Sys))
	MemoryAllocs.Set(ctx, int64(s.Mallocs))
	MemoryFrees.Set(ctx, int64(s.Frees))
	Goroutines.Set(ctx, int64(s.Goroutines))
	return s
}
