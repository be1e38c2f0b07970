package openvdb

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus; the server package ships one.
type MetricsCollector interface {
	// RecordUpsert is called after each batch upsert. count is the number of
	// records submitted, applied the number that were stored.
	RecordUpsert(count, applied int, duration time.Duration)

	// RecordQuery is called after each query. err is nil if successful.
	RecordQuery(topK int, duration time.Duration, err error)

	// RecordDelete is called after each vector delete.
	RecordDelete(duration time.Duration, err error)

	// RecordWALAppend is called after each WAL append.
	RecordWALAppend(duration time.Duration, err error)

	// RecordSnapshot is called after each snapshot attempt.
	RecordSnapshot(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordUpsert(int, int, time.Duration)  {}
func (NoopMetricsCollector) RecordQuery(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordDelete(time.Duration, error)     {}
func (NoopMetricsCollector) RecordWALAppend(time.Duration, error)  {}
func (NoopMetricsCollector) RecordSnapshot(time.Duration, error)   {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and tests without external dependencies.
type BasicMetricsCollector struct {
	UpsertCount        atomic.Int64
	UpsertItems        atomic.Int64
	UpsertFailed       atomic.Int64
	QueryCount         atomic.Int64
	QueryErrors        atomic.Int64
	QueryTotalNanos    atomic.Int64
	DeleteCount        atomic.Int64
	DeleteErrors       atomic.Int64
	WALAppendCount     atomic.Int64
	WALAppendErrors    atomic.Int64
	SnapshotCount      atomic.Int64
	SnapshotErrors     atomic.Int64
	SnapshotTotalNanos atomic.Int64
}

// RecordUpsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordUpsert(count, applied int, _ time.Duration) {
	b.UpsertCount.Add(1)
	b.UpsertItems.Add(int64(count))
	b.UpsertFailed.Add(int64(count - applied))
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(_ int, duration time.Duration, err error) {
	b.QueryCount.Add(1)
	b.QueryTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.QueryErrors.Add(1)
	}
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(_ time.Duration, err error) {
	b.DeleteCount.Add(1)
	if err != nil {
		b.DeleteErrors.Add(1)
	}
}

// RecordWALAppend implements MetricsCollector.
func (b *BasicMetricsCollector) RecordWALAppend(_ time.Duration, err error) {
	b.WALAppendCount.Add(1)
	if err != nil {
		b.WALAppendErrors.Add(1)
	}
}

// RecordSnapshot implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSnapshot(duration time.Duration, err error) {
	b.SnapshotCount.Add(1)
	b.SnapshotTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SnapshotErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		UpsertCount:      b.UpsertCount.Load(),
		UpsertItems:      b.UpsertItems.Load(),
		UpsertFailed:     b.UpsertFailed.Load(),
		QueryCount:       b.QueryCount.Load(),
		QueryErrors:      b.QueryErrors.Load(),
		QueryAvgNanos:    avg(b.QueryTotalNanos.Load(), b.QueryCount.Load()),
		DeleteCount:      b.DeleteCount.Load(),
		DeleteErrors:     b.DeleteErrors.Load(),
		WALAppendCount:   b.WALAppendCount.Load(),
		WALAppendErrors:  b.WALAppendErrors.Load(),
		SnapshotCount:    b.SnapshotCount.Load(),
		SnapshotErrors:   b.SnapshotErrors.Load(),
		SnapshotAvgNanos: avg(b.SnapshotTotalNanos.Load(), b.SnapshotCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	UpsertCount      int64
	UpsertItems      int64
	UpsertFailed     int64
	QueryCount       int64
	QueryErrors      int64
	QueryAvgNanos    int64
	DeleteCount      int64
	DeleteErrors     int64
	WALAppendCount   int64
	WALAppendErrors  int64
	SnapshotCount    int64
	SnapshotErrors   int64
	SnapshotAvgNanos int64
}
