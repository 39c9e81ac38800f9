// Package stats aggregates per-file apply results for summaries.
package stats

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/asynkron/patchkit/pkg/patch"
)

// Recorder collects apply results. Implementations must be safe for
// concurrent use because results arrive from several workers.
type Recorder interface {
	// Record adds a single file result.
	Record(res patch.Result)
	// Snapshot returns the totals collected so far.
	Snapshot() Snapshot
	// Reset clears all totals (useful for testing).
	Reset()
}

// Snapshot is a point-in-time view of collected results.
type Snapshot struct {
	Files     int64
	Added     int64
	Modified  int64
	Deleted   int64
	Failed    int64
	Hunks     int64
	Bytes     int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

// Succeeded returns the number of files patched without error.
func (s Snapshot) Succeeded() int64 {
	return s.Files - s.Failed
}

// InMemory is a thread-safe in-memory Recorder.
type InMemory struct {
	mu       sync.RWMutex
	snapshot Snapshot

	// For tracking min/max durations
	minTime atomic.Int64 // nanoseconds
	maxTime atomic.Int64 // nanoseconds
}

// NewInMemory creates an empty recorder.
func NewInMemory() *InMemory {
	r := &InMemory{}
	// Initialize min time to a large value so the first measurement sets it
	r.minTime.Store(int64(time.Hour))
	return r
}

func (r *InMemory) Record(res patch.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snapshot.Files++
	r.snapshot.Hunks += int64(res.Hunks)
	r.snapshot.Bytes += int64(res.Bytes)
	r.snapshot.TotalTime += res.Duration
	switch res.Status {
	case patch.StatusAdded:
		r.snapshot.Added++
	case patch.StatusModified:
		r.snapshot.Modified++
	case patch.StatusDeleted:
		r.snapshot.Deleted++
	default:
		r.snapshot.Failed++
	}

	durNanos := int64(res.Duration)
	for {
		oldMin := r.minTime.Load()
		if durNanos >= oldMin || r.minTime.CompareAndSwap(oldMin, durNanos) {
			break
		}
	}
	for {
		oldMax := r.maxTime.Load()
		if durNanos <= oldMax || r.maxTime.CompareAndSwap(oldMax, durNanos) {
			break
		}
	}
}

func (r *InMemory) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := r.snapshot
	if snapshot.Files == 0 {
		return snapshot
	}
	snapshot.MinTime = time.Duration(r.minTime.Load())
	snapshot.MaxTime = time.Duration(r.maxTime.Load())
	return snapshot
}

func (r *InMemory) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snapshot = Snapshot{}
	r.minTime.Store(int64(time.Hour))
	r.maxTime.Store(0)
}
