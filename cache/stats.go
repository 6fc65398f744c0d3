package cache

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v4/mem"
)

// Window tags the time span a Statistics snapshot summarizes.
type Window string

const (
	Window1m  Window = "1m"
	Window5m  Window = "5m"
	Window15m Window = "15m"
	Window1h  Window = "1h"
	WindowAll Window = "all-time"
)

// LatencyStats summarizes a latency distribution for one operation type.
type LatencyStats struct {
	Average time.Duration
	P50     time.Duration
	P95     time.Duration
	P99     time.Duration
	Max     time.Duration
}

// Statistics is an immutable snapshot of a cache's health. Produced on
// demand; never mutated after construction.
type Statistics struct {
	Namespace  string
	CapturedAt time.Time
	Window     Window

	Hits    int64
	Misses  int64
	HitRate float64
	// MissRate is 1 - HitRate when any access happened, else 0.
	MissRate float64

	Size        int64
	MaxSize     int64
	FillPercent float64

	Evictions    int64
	EvictionRate float64 // evictions per second over the snapshot window

	GetLatency    LatencyStats
	PutLatency    LatencyStats
	RemoveLatency LatencyStats

	// Throughput in operations per second over the snapshot window.
	GetThroughput    float64
	PutThroughput    float64
	RemoveThroughput float64

	// Optional system memory figures, zero when unavailable.
	MemoryUsedBytes  uint64
	MemoryTotalBytes uint64
}

// EmptyStatistics returns the snapshot used when a real one cannot be
// produced: monitoring always gets something.
func EmptyStatistics(namespace string) *Statistics {
	return &Statistics{
		Namespace:  namespace,
		CapturedAt: time.Now(),
		Window:     WindowAll,
	}
}

const latencySamples = 512

// latencyRing keeps the most recent operation latencies for percentile
// estimation plus running totals for average and throughput.
type latencyRing struct {
	mu      sync.Mutex
	samples [latencySamples]time.Duration
	next    int
	full    bool
	count   int64
	total   time.Duration
	max     time.Duration
}

func (r *latencyRing) record(d time.Duration) {
	r.mu.Lock()
	r.samples[r.next] = d
	r.next++
	if r.next == latencySamples {
		r.next = 0
		r.full = true
	}
	r.count++
	r.total += d
	if d > r.max {
		r.max = d
	}
	r.mu.Unlock()
}

func (r *latencyRing) snapshot(elapsed time.Duration) (LatencyStats, float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.next
	if r.full {
		n = latencySamples
	}
	if n == 0 {
		return LatencyStats{}, 0
	}

	sorted := make([]time.Duration, n)
	copy(sorted, r.samples[:n])
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	pct := func(p float64) time.Duration {
		idx := int(p * float64(n-1))
		return sorted[idx]
	}

	stats := LatencyStats{
		Average: r.total / time.Duration(r.count),
		P50:     pct(0.50),
		P95:     pct(0.95),
		P99:     pct(0.99),
		Max:     r.max,
	}

	throughput := 0.0
	if elapsed > 0 {
		throughput = float64(r.count) / elapsed.Seconds()
	}
	return stats, throughput
}

// statsRecorder is the client-side bookkeeping both backends feed. All
// counters are atomic; latency rings carry their own lock.
type statsRecorder struct {
	start     time.Time
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	getLat    latencyRing
	putLat    latencyRing
	removeLat latencyRing
}

func newStatsRecorder() *statsRecorder {
	return &statsRecorder{start: time.Now()}
}

func (s *statsRecorder) hit()     { s.hits.Add(1) }
func (s *statsRecorder) miss()    { s.misses.Add(1) }
func (s *statsRecorder) evicted() { s.evictions.Add(1) }

func (s *statsRecorder) observeGet(start time.Time)    { s.getLat.record(time.Since(start)) }
func (s *statsRecorder) observePut(start time.Time)    { s.putLat.record(time.Since(start)) }
func (s *statsRecorder) observeRemove(start time.Time) { s.removeLat.record(time.Since(start)) }

// snapshot builds a Statistics value. size and maxSize come from the
// backend; memory figures are best-effort and missing on error.
func (s *statsRecorder) snapshot(size, maxSize int64) *Statistics {
	elapsed := time.Since(s.start)
	hits := s.hits.Load()
	misses := s.misses.Load()
	evictions := s.evictions.Load()

	stats := &Statistics{
		CapturedAt: time.Now(),
		Window:     WindowAll,
		Hits:       hits,
		Misses:     misses,
		Size:       size,
		MaxSize:    maxSize,
		Evictions:  evictions,
	}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
		stats.MissRate = 1 - stats.HitRate
	}
	if maxSize > 0 {
		stats.FillPercent = float64(size) / float64(maxSize) * 100
	}
	if elapsed > 0 {
		stats.EvictionRate = float64(evictions) / elapsed.Seconds()
	}

	stats.GetLatency, stats.GetThroughput = s.getLat.snapshot(elapsed)
	stats.PutLatency, stats.PutThroughput = s.putLat.snapshot(elapsed)
	stats.RemoveLatency, stats.RemoveThroughput = s.removeLat.snapshot(elapsed)

	if vm, err := mem.VirtualMemory(); err == nil {
		stats.MemoryUsedBytes = vm.Used
		stats.MemoryTotalBytes = vm.Total
	}
	return stats
}
