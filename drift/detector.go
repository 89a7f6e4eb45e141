package drift

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/atmolab/gribdex/coords"
	"github.com/atmolab/gribdex/manifest"
)

// Prober produces the label snapshot for a single reference datetime,
// typically by fetching and parsing that model run's sidecar files.
type Prober interface {
	Probe(ctx context.Context, t time.Time) (*Snapshot, error)
}

// ProbeFunc adapts a function to the Prober interface.
type ProbeFunc func(ctx context.Context, t time.Time) (*Snapshot, error)

func (f ProbeFunc) Probe(ctx context.Context, t time.Time) (*Snapshot, error) {
	return f(ctx, t)
}

// Config holds detection parameters.
type Config struct {
	// Granularity is the archive's cycle interval: the smallest spacing
	// between reference datetimes, and therefore the finest resolution a
	// boundary can be located at.
	Granularity time.Duration

	// Concurrency bounds in-flight probes per round. If 0, defaults to 4.
	Concurrency int

	// Logger receives per-round progress. If nil, logging is disabled.
	Logger *slog.Logger
}

// Detector locates the reference datetimes where an archive's schema
// changed: members added, variables retired, levels renamed. Archives
// run for decades and drift several times, sometimes back and forth, so
// detection probes an explicit worklist of candidate intervals instead
// of a single binary search, splitting every interval whose endpoint
// snapshots differ until boundaries are pinned to cycle granularity.
//
// The tradeoff is deliberate: an interval whose endpoints agree is
// accepted as uniform without interior probes, so a change that fully
// reverts inside it goes undetected. Pinning such intervals would mean
// probing every cycle in the archive.
type Detector struct {
	prober Prober
	cfg    Config
	logger *slog.Logger
}

// NewDetector creates a detector over the given prober.
func NewDetector(prober Prober, cfg Config) *Detector {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Detector{
		prober: prober,
		cfg:    cfg,
		logger: logger,
	}
}

// interval is a candidate window whose interior may hide a boundary.
type interval struct {
	a, b time.Time
}

// Detect partitions [start, end) into epochs of uniform schema. The
// returned epochs are ordered, gap-free and non-overlapping; each
// carries dimension overrides for the dimensions whose label sets vary
// across the window. Probe failures abandon the affected interval but
// never discard boundaries found elsewhere: on partial failure both
// epochs and a joined error are returned.
func (d *Detector) Detect(ctx context.Context, start, end time.Time) ([]manifest.Epoch, error) {
	if d.cfg.Granularity <= 0 {
		return nil, errors.New("granularity must be positive")
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("empty window [%v, %v)", start, end)
	}

	snapshots := make(map[int64]*Snapshot)
	failed := make(map[int64]struct{})
	var probeErrs []error

	worklist := []interval{{a: start, b: end}}
	var boundaries []time.Time

	for round := 0; len(worklist) > 0; round++ {
		// Probe every uncached endpoint of this round's intervals, many
		// in flight, then merge the results single-threaded.
		var want []time.Time
		seen := make(map[int64]struct{})
		for _, iv := range worklist {
			for _, t := range []time.Time{iv.a, iv.b} {
				k := t.Unix()
				if _, ok := snapshots[k]; ok {
					continue
				}
				if _, ok := failed[k]; ok {
					continue
				}
				if _, ok := seen[k]; ok {
					continue
				}
				seen[k] = struct{}{}
				want = append(want, t)
			}
		}

		type probeResult struct {
			t    time.Time
			snap *Snapshot
			err  error
		}
		results := make([]probeResult, len(want))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(d.cfg.Concurrency)
		for i, t := range want {
			g.Go(func() error {
				snap, err := d.prober.Probe(gctx, t)
				results[i] = probeResult{t: t, snap: snap, err: err}
				return nil
			})
		}
		_ = g.Wait()
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for _, r := range results {
			if r.err != nil {
				failed[r.t.Unix()] = struct{}{}
				probeErrs = append(probeErrs, fmt.Errorf("probe %s: %w", r.t.Format(time.RFC3339), r.err))
				d.logger.WarnContext(ctx, "schema probe failed",
					"reference_datetime", r.t.Format(time.RFC3339),
					"error", r.err,
				)
				continue
			}
			snapshots[r.t.Unix()] = r.snap
		}

		d.logger.DebugContext(ctx, "drift detection round",
			"round", round,
			"intervals", len(worklist),
			"probes", len(want),
		)

		var next []interval
		for _, iv := range worklist {
			sa, okA := snapshots[iv.a.Unix()]
			sb, okB := snapshots[iv.b.Unix()]
			if !okA || !okB {
				// A failed endpoint leaves this interval undecidable.
				continue
			}
			if sa.Equal(sb) {
				continue
			}
			if iv.b.Sub(iv.a) <= d.cfg.Granularity {
				boundaries = append(boundaries, iv.b)
				continue
			}
			half := (iv.b.Sub(iv.a) / 2).Truncate(d.cfg.Granularity)
			if half < d.cfg.Granularity {
				half = d.cfg.Granularity
			}
			mid := iv.a.Add(half)
			next = append(next, interval{a: iv.a, b: mid}, interval{a: mid, b: iv.b})
		}
		worklist = next
	}

	epochs := d.buildEpochs(start, end, boundaries, snapshots)

	d.logger.InfoContext(ctx, "drift detection completed",
		"window_start", start.Format(time.RFC3339),
		"window_end", end.Format(time.RFC3339),
		"epochs", len(epochs),
		"failed_probes", len(probeErrs),
	)
	return epochs, errors.Join(probeErrs...)
}

// buildEpochs turns sorted boundaries into a gap-free partition of
// [start, end) and attaches dimension overrides where label sets vary
// between epochs.
func (d *Detector) buildEpochs(start, end time.Time, boundaries []time.Time, snapshots map[int64]*Snapshot) []manifest.Epoch {
	slices.SortFunc(boundaries, func(a, b time.Time) int { return a.Compare(b) })
	boundaries = slices.CompactFunc(boundaries, func(a, b time.Time) bool { return a.Equal(b) })
	// A boundary at the window end would only open a zero-width epoch.
	boundaries = slices.DeleteFunc(boundaries, func(t time.Time) bool { return !t.Before(end) })

	starts := append([]time.Time{start}, boundaries...)
	epochs := make([]manifest.Epoch, len(starts))
	for i, s := range starts {
		e := end
		if i+1 < len(starts) {
			e = starts[i+1]
		}
		epochs[i] = manifest.Epoch{Start: s, End: e}
	}

	// A dimension gets overrides only when its label set is not uniform
	// across the window.
	for _, dim := range coords.Dimensions() {
		if dim == coords.DimReferenceTime {
			continue
		}
		uniform := true
		var first []string
		for i, e := range epochs {
			snap, ok := snapshots[e.Start.Unix()]
			if !ok {
				continue
			}
			if i == 0 || first == nil {
				first = snap.Labels(dim)
				continue
			}
			if !slices.Equal(first, snap.Labels(dim)) {
				uniform = false
				break
			}
		}
		if uniform {
			continue
		}
		for i := range epochs {
			snap, ok := snapshots[epochs[i].Start.Unix()]
			if !ok {
				continue
			}
			if epochs[i].Overrides == nil {
				epochs[i].Overrides = make(map[string][]string)
			}
			epochs[i].Overrides[dim.String()] = slices.Clone(snap.Labels(dim))
		}
	}
	return epochs
}
