package drift

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/atmolab/gribdex/blobstore"
	"github.com/atmolab/gribdex/dataset"
	"github.com/atmolab/gribdex/idx"
	"github.com/atmolab/gribdex/internal/fetch"
)

// StoreProber snapshots a reference datetime by listing the run's prefix
// in the archive bucket and parsing every sidecar file found there.
// Fetches go through the shared controller so that detection and the
// main indexing pass together stay under the configured limits.
type StoreProber struct {
	store  blobstore.Store
	scheme dataset.PathScheme
	suffix string
	ctrl   *fetch.Controller
	policy idx.RowPolicy
	logger *slog.Logger
}

// NewStoreProber creates a prober over the given store. suffix selects
// the sidecar files out of the run's listing (usually ".idx"). ctrl may
// be nil for unbounded fetching; logger may be nil.
func NewStoreProber(store blobstore.Store, scheme dataset.PathScheme, suffix string, ctrl *fetch.Controller, policy idx.RowPolicy, logger *slog.Logger) *StoreProber {
	if suffix == "" {
		suffix = ".idx"
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &StoreProber{
		store:  store,
		scheme: scheme,
		suffix: suffix,
		ctrl:   ctrl,
		policy: policy,
		logger: logger,
	}
}

// Probe implements Prober.
func (p *StoreProber) Probe(ctx context.Context, t time.Time) (*Snapshot, error) {
	prefix := p.scheme.RunPrefix(t)
	names, err := p.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}

	var sidecars []string
	for _, name := range names {
		if strings.HasSuffix(name, p.suffix) {
			sidecars = append(sidecars, name)
		}
	}
	if len(sidecars) == 0 {
		return nil, fmt.Errorf("no %s files under %s: %w", p.suffix, prefix, blobstore.ErrNotFound)
	}

	snap := NewSnapshot()
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range sidecars {
		g.Go(func() error {
			if err := p.ctrl.Acquire(gctx); err != nil {
				return err
			}
			defer p.ctrl.Release()

			part, err := p.snapshotFile(gctx, name)
			if err != nil {
				return err
			}
			mu.Lock()
			snap.Merge(part)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

func (p *StoreProber) snapshotFile(ctx context.Context, name string) (*Snapshot, error) {
	fc, err := p.scheme.ParseIdxPath(name)
	if err != nil {
		// Buckets hold stray non-forecast files alongside the runs.
		p.logger.DebugContext(ctx, "skipping unrecognized sidecar path", "path", name)
		return nil, nil
	}

	data, _, err := blobstore.Fetch(ctx, p.store, name)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", name, err)
	}

	part := NewSnapshot()
	for rec, err := range idx.Scan(data, fc) {
		if err != nil {
			var rowErr *idx.RowError
			switch {
			case errors.As(err, &rowErr) && p.policy == idx.Skip:
			case errors.As(err, &rowErr) && p.policy == idx.Warn:
				p.logger.WarnContext(ctx, "malformed sidecar row", "error", err)
			default:
				return nil, err
			}
			continue
		}
		part.AddKey(rec.Key(fc))
	}
	return part, nil
}
