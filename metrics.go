package gribdex

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    filesCounter     prometheus.Counter
//	    resolveHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordFileIndexed(records int, err error) {
//	    p.filesCounter.Inc()
//	    // ... record error state, record count, etc.
//	}
type MetricsCollector interface {
	// RecordFileIndexed is called after each sidecar file is ingested.
	// records is the number of entries taken from the file, err is nil
	// if the file was committed.
	RecordFileIndexed(records int, err error)

	// RecordBuild is called once per completed index build.
	// files is the number of sidecars seen, skipped the number lost to
	// errors, duration the total build time.
	RecordBuild(files, skipped int, duration time.Duration)

	// RecordResolve is called after each resolution.
	// ranges and missing are the result sizes, duration the time taken,
	// err is nil if successful.
	RecordResolve(ranges, missing int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordFileIndexed(int, error)                 {}
func (NoopMetricsCollector) RecordBuild(int, int, time.Duration)          {}
func (NoopMetricsCollector) RecordResolve(int, int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	FilesIndexed      atomic.Int64
	FileErrors        atomic.Int64
	RecordsIndexed    atomic.Int64
	BuildCount        atomic.Int64
	BuildTotalNanos   atomic.Int64
	ResolveCount      atomic.Int64
	ResolveErrors     atomic.Int64
	ResolveTotalNanos atomic.Int64
	RangesResolved    atomic.Int64
	MissingKeys       atomic.Int64
}

// RecordFileIndexed implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFileIndexed(records int, err error) {
	if err != nil {
		b.FileErrors.Add(1)
		return
	}
	b.FilesIndexed.Add(1)
	b.RecordsIndexed.Add(int64(records))
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(files, skipped int, duration time.Duration) {
	b.BuildCount.Add(1)
	b.BuildTotalNanos.Add(duration.Nanoseconds())
}

// RecordResolve implements MetricsCollector.
func (b *BasicMetricsCollector) RecordResolve(ranges, missing int, duration time.Duration, err error) {
	b.ResolveCount.Add(1)
	b.ResolveTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ResolveErrors.Add(1)
		return
	}
	b.RangesResolved.Add(int64(ranges))
	b.MissingKeys.Add(int64(missing))
}
