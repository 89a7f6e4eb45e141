// This file implements the index build: run discovery, concurrent
// sidecar ingestion and schema drift detection, ending in a frozen
// Index.
package gribdex

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/atmolab/gribdex/blobstore"
	"github.com/atmolab/gribdex/coords"
	"github.com/atmolab/gribdex/dataset"
	"github.com/atmolab/gribdex/drift"
	"github.com/atmolab/gribdex/idx"
	"github.com/atmolab/gribdex/internal/fetch"
	"github.com/atmolab/gribdex/manifest"
)

// ErrNoRuns is returned when run discovery finds no reference datetimes
// in the archive.
var ErrNoRuns = errors.New("no model runs discovered")

// Build indexes the archive described by desc, reading sidecar files
// from store. It discovers the available model runs, partitions them
// into schema epochs, ingests every sidecar with bounded concurrency
// and returns a frozen Index.
//
// Malformed rows and unreadable files follow the configured RowPolicy:
// a bad row or a lost file costs its own entries, never the build.
func Build(ctx context.Context, store blobstore.Store, desc *dataset.Descriptor, opts ...Option) (*Index, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger.WithDataset(desc.Name)
	buildStart := time.Now()

	scheme, err := desc.NewPathScheme()
	if err != nil {
		return nil, err
	}
	ctrl := fetch.NewController(fetch.Config{
		MaxInFlight:    o.fetchConcurrency,
		RequestsPerSec: o.fetchRate,
	})

	runs, err := discoverRuns(ctx, store, scheme, desc)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNoRuns
	}

	// Probes land on existing runs, so detection spans first to last
	// run; the final epoch is then stretched to cover the last run's
	// own cycle.
	endExclusive := runs[len(runs)-1].Add(desc.CycleInterval())
	var epochs []manifest.Epoch
	if len(runs) == 1 {
		epochs = []manifest.Epoch{{Start: runs[0], End: endExclusive}}
	} else {
		prober := drift.NewStoreProber(store, scheme, desc.IdxSuffix, ctrl, o.rowPolicy, logger.Logger)
		detector := drift.NewDetector(prober, drift.Config{
			Granularity: desc.CycleInterval(),
			Concurrency: int(o.fetchConcurrency),
			Logger:      logger.Logger,
		})
		epochs, err = detector.Detect(ctx, runs[0], runs[len(runs)-1])
		if len(epochs) == 0 {
			return nil, fmt.Errorf("schema drift detection: %w", err)
		}
		if err != nil {
			// Partial detection still partitions the window; the failed
			// probes only cost boundary precision.
			logger.WarnContext(ctx, "schema drift detection incomplete", "error", err)
		}
		epochs[len(epochs)-1].End = endExclusive
	}

	builder := manifest.NewBuilder(coords.NewRegistry())
	var mu sync.Mutex // guards builder and skipped
	var files, skipped int

	suffix := desc.IdxSuffix
	if suffix == "" {
		suffix = ".idx"
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, run := range runs {
		prefix := scheme.RunPrefix(run)
		names, err := store.List(ctx, prefix)
		if err != nil {
			return nil, &TransportError{Op: "list", Path: prefix, Err: err}
		}
		for _, name := range names {
			if !strings.HasSuffix(name, suffix) {
				continue
			}
			files++
			g.Go(func() error {
				if err := ctrl.Acquire(gctx); err != nil {
					return err
				}
				defer ctrl.Release()

				entries, err := ingestFile(gctx, store, scheme, name, o.rowPolicy, logger)
				if err != nil {
					// An unreadable or aborted file costs its own
					// entries only.
					logger.LogFileIndexed(gctx, name, 0, err)
					o.metrics.RecordFileIndexed(0, err)
					mu.Lock()
					skipped++
					mu.Unlock()
					return nil
				}
				logger.LogFileIndexed(gctx, name, len(entries.entries), nil)
				o.metrics.RecordFileIndexed(len(entries.entries), nil)

				// Per-file commit: all of a file's entries land in one
				// critical section.
				mu.Lock()
				defer mu.Unlock()
				pathIdx := builder.PathIndex(entries.path)
				for _, e := range entries.entries {
					loc := manifest.Location{PathIndex: pathIdx, Offset: e.Offset, Length: e.Length}
					if err := builder.Insert(e.Key, loc); err != nil {
						return fmt.Errorf("index %s: %w", name, err)
					}
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	m := builder.Freeze(epochs)
	logger.LogBuild(ctx, len(runs), files, m.Len(), skipped)
	o.metrics.RecordBuild(files, skipped, time.Since(buildStart))

	return &Index{
		manifest:    m,
		rules:       desc.Rules(),
		logger:      o.logger,
		metrics:     o.metrics,
		codec:       o.codec,
		compression: o.compression,
	}, nil
}

// fileEntries is one sidecar file's parsed content, staged for a single
// commit into the manifest builder.
type fileEntries struct {
	path    string
	entries []fileEntry
}

type fileEntry struct {
	Key    coords.Key
	Offset uint64
	Length uint32
}

func ingestFile(ctx context.Context, store blobstore.Store, scheme dataset.PathScheme, name string, policy idx.RowPolicy, logger *Logger) (*fileEntries, error) {
	fc, err := scheme.ParseIdxPath(name)
	if err != nil {
		return nil, err
	}

	// The sidecar's own size says nothing about the GRIB file it
	// describes, so the last message's length stays "to end of file".
	data, _, err := blobstore.Fetch(ctx, store, name)
	if err != nil {
		return nil, &TransportError{Op: "get", Path: name, Err: err}
	}

	out := &fileEntries{path: fc.Path}
	for rec, err := range idx.Scan(data, fc) {
		if err != nil {
			var rowErr *idx.RowError
			switch {
			case errors.As(err, &rowErr) && policy == idx.Skip:
			case errors.As(err, &rowErr) && policy == idx.Warn:
				logger.WarnContext(ctx, "malformed sidecar row", "error", err)
			default:
				return nil, err
			}
			continue
		}
		out.entries = append(out.entries, fileEntry{
			Key:    rec.Key(fc),
			Offset: rec.Offset,
			Length: rec.Length,
		})
	}
	return out, nil
}

// discoverRuns lists the bucket two levels deep and parses the prefixes
// into reference datetimes, clipped to the descriptor's declared span.
func discoverRuns(ctx context.Context, store blobstore.Store, scheme dataset.PathScheme, desc *dataset.Descriptor) ([]time.Time, error) {
	days, err := store.ListPrefixes(ctx, "")
	if err != nil {
		return nil, &TransportError{Op: "list", Path: "/", Err: err}
	}

	span := desc.ReferenceDatetimes
	var runs []time.Time
	for _, day := range days {
		hours, err := store.ListPrefixes(ctx, day)
		if err != nil {
			return nil, &TransportError{Op: "list", Path: day, Err: err}
		}
		for _, hour := range hours {
			t, err := scheme.ParseRunPrefix(hour)
			if err != nil {
				// Buckets hold stray folders alongside the runs.
				continue
			}
			if t.Before(span.Start) {
				continue
			}
			if span.End != nil && t.After(*span.End) {
				continue
			}
			runs = append(runs, t)
		}
	}
	slices.SortFunc(runs, func(a, b time.Time) int { return a.Compare(b) })
	return runs, nil
}
