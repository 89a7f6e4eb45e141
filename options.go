package gribdex

import (
	"github.com/atmolab/gribdex/codec"
	"github.com/atmolab/gribdex/idx"
	"github.com/atmolab/gribdex/manifest"
)

type options struct {
	logger           *Logger
	metrics          MetricsCollector
	fetchConcurrency int64
	fetchRate        float64
	rowPolicy        idx.RowPolicy
	codec            codec.Codec
	compression      string
}

func defaultOptions() *options {
	return &options{
		logger:           NoopLogger(),
		metrics:          NoopMetricsCollector{},
		fetchConcurrency: 32,
		rowPolicy:        idx.Warn,
		codec:            codec.Default,
		compression:      manifest.CompressionZstd,
	}
}

// Option configures build and load behavior.
type Option func(*options)

// WithLogger configures structured logging. If nil is passed, logging
// is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// builds and resolutions. Pass nil to disable metrics collection.
func WithMetricsCollector(m MetricsCollector) Option {
	return func(o *options) {
		if m == nil {
			m = NoopMetricsCollector{}
		}
		o.metrics = m
	}
}

// WithFetchConcurrency bounds the number of sidecar fetches in flight
// during a build. Values below 1 are treated as 1.
func WithFetchConcurrency(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = 1
		}
		o.fetchConcurrency = int64(n)
	}
}

// WithFetchRateLimit caps the request rate against the archive bucket
// in requests per second. Public open-data buckets throttle aggressive
// clients; a limit below their threshold is faster than retrying 503s.
// Zero disables the limit.
func WithFetchRateLimit(rps float64) Option {
	return func(o *options) {
		if rps < 0 {
			rps = 0
		}
		o.fetchRate = rps
	}
}

// WithRowPolicy decides what happens to malformed sidecar rows during a
// build: drop silently, log and continue, or abort the file they belong
// to. The default is idx.Warn.
func WithRowPolicy(p idx.RowPolicy) Option {
	return func(o *options) {
		o.rowPolicy = p
	}
}

// WithCodec configures the codec used for snapshot payloads.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithCompression selects the snapshot payload compression:
// manifest.CompressionNone, CompressionZstd or CompressionLZ4.
// The default is zstd.
func WithCompression(name string) Option {
	return func(o *options) {
		if name == "" {
			name = manifest.CompressionNone
		}
		o.compression = name
	}
}
