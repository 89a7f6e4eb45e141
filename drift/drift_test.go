package drift

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmolab/gribdex/blobstore"
	"github.com/atmolab/gribdex/coords"
	"github.com/atmolab/gribdex/dataset"
	"github.com/atmolab/gribdex/idx"
)

// gefsReforecastBoundary is when the GEFS v12 upgrade grew the ensemble
// from 21 to 31 members.
var gefsUpgrade = time.Date(2020, 9, 23, 12, 0, 0, 0, time.UTC)

// memberSnapshot builds a snapshot with n perturbed members plus control.
func memberSnapshot(perturbed int) *Snapshot {
	s := NewSnapshot()
	s.Add(coords.DimMember, coords.Control().String())
	for i := 1; i <= perturbed; i++ {
		s.Add(coords.DimMember, coords.Perturbed(uint16(i)).String())
	}
	s.Add(coords.DimVariable, "TMP")
	s.Add(coords.DimLevel, "2 m above ground")
	s.Add(coords.DimStep, "f006")
	return s
}

// upgradeProber answers with 21 members before the upgrade instant and
// 31 from it onward.
func upgradeProber(probes *atomic.Int64) Prober {
	return ProbeFunc(func(_ context.Context, t time.Time) (*Snapshot, error) {
		if probes != nil {
			probes.Add(1)
		}
		if t.Before(gefsUpgrade) {
			return memberSnapshot(20), nil
		}
		return memberSnapshot(30), nil
	})
}

func TestDetector_SingleBoundary(t *testing.T) {
	cycle := 6 * time.Hour

	tests := []struct {
		name       string
		start, end time.Time
	}{
		{
			name:  "wide window",
			start: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "narrow window",
			start: gefsUpgrade.Add(-2 * cycle),
			end:   gefsUpgrade.Add(2 * cycle),
		},
		{
			name:  "boundary at window edge",
			start: gefsUpgrade.Add(-cycle),
			end:   gefsUpgrade.Add(cycle),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector(upgradeProber(nil), Config{Granularity: cycle})

			epochs, err := d.Detect(context.Background(), tt.start, tt.end)
			require.NoError(t, err)
			require.Len(t, epochs, 2)

			assert.True(t, epochs[0].Start.Equal(tt.start))
			assert.True(t, epochs[0].End.Equal(gefsUpgrade))
			assert.True(t, epochs[1].Start.Equal(gefsUpgrade))
			assert.True(t, epochs[1].End.Equal(tt.end))

			// Only the member dimension varies, so only it is overridden.
			require.Contains(t, epochs[0].Overrides, "ensemble_member")
			assert.Len(t, epochs[0].Overrides["ensemble_member"], 21)
			assert.Len(t, epochs[1].Overrides["ensemble_member"], 31)
			assert.NotContains(t, epochs[0].Overrides, "variable")
		})
	}
}

func TestDetector_UniformWindow(t *testing.T) {
	var probes atomic.Int64
	d := NewDetector(upgradeProber(&probes), Config{Granularity: 6 * time.Hour})

	start := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	epochs, err := d.Detect(context.Background(), start, end)
	require.NoError(t, err)
	require.Len(t, epochs, 1)
	assert.Empty(t, epochs[0].Overrides)

	// Equal endpoints settle the whole year with two probes.
	assert.Equal(t, int64(2), probes.Load())
}

func TestDetector_TwoBoundaries(t *testing.T) {
	cycle := 6 * time.Hour
	b1 := time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)
	b2 := time.Date(2020, 9, 1, 0, 0, 0, 0, time.UTC)

	// Variables appear in March and levels change in September.
	prober := ProbeFunc(func(_ context.Context, t time.Time) (*Snapshot, error) {
		s := memberSnapshot(20)
		if !t.Before(b1) {
			s.Add(coords.DimVariable, "RH")
		}
		if !t.Before(b2) {
			s.Add(coords.DimLevel, "850 mb")
		}
		return s, nil
	})

	d := NewDetector(prober, Config{Granularity: cycle})
	epochs, err := d.Detect(context.Background(),
		time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, epochs, 3)

	assert.True(t, epochs[0].End.Equal(b1))
	assert.True(t, epochs[1].End.Equal(b2))

	// Gap-free: each epoch starts where the previous one ends.
	for i := 1; i < len(epochs); i++ {
		assert.True(t, epochs[i].Start.Equal(epochs[i-1].End))
	}

	assert.Contains(t, epochs[1].Overrides, "variable")
	assert.Contains(t, epochs[2].Overrides, "vertical_level")
	assert.NotContains(t, epochs[0].Overrides, "ensemble_member")
}

func TestDetector_ChangeAtWindowEnd(t *testing.T) {
	cycle := 6 * time.Hour
	start := gefsUpgrade.Add(-8 * cycle)
	end := gefsUpgrade

	// The only differing cycle is the exclusive end itself, so no epoch
	// inside [start, end) ever sees the upgraded schema.
	d := NewDetector(ProbeFunc(func(_ context.Context, t time.Time) (*Snapshot, error) {
		if t.Before(end) {
			return memberSnapshot(20), nil
		}
		return memberSnapshot(30), nil
	}), Config{Granularity: cycle})

	epochs, err := d.Detect(context.Background(), start, end)
	require.NoError(t, err)
	require.Len(t, epochs, 1)
	assert.True(t, epochs[0].Start.Equal(start))
	assert.True(t, epochs[0].End.Equal(end))
	for _, e := range epochs {
		assert.True(t, e.Start.Before(e.End), "no zero-width epoch")
	}
}

func TestDetector_ProbeFailureStillReturnsPartition(t *testing.T) {
	cycle := 6 * time.Hour
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	// The first midpoint of [start, end).
	broken := start.Add(end.Sub(start) / 2)

	prober := ProbeFunc(func(_ context.Context, t time.Time) (*Snapshot, error) {
		if t.Equal(broken) {
			return nil, fmt.Errorf("fetch %s: %w", dataset.GEFS{}.RunPrefix(t), errors.New("503 slow down"))
		}
		if t.Before(gefsUpgrade) {
			return memberSnapshot(20), nil
		}
		return memberSnapshot(30), nil
	})

	d := NewDetector(prober, Config{Granularity: cycle})
	epochs, err := d.Detect(context.Background(), start, end)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")

	// The undecidable interval is abandoned, not fatal: the result is
	// still an ordered, gap-free partition of the window.
	require.NotEmpty(t, epochs)
	assert.True(t, epochs[0].Start.Equal(start))
	assert.True(t, epochs[len(epochs)-1].End.Equal(end))
	for i := 1; i < len(epochs); i++ {
		assert.True(t, epochs[i].Start.Equal(epochs[i-1].End))
	}
}

func TestDetector_EmptyWindow(t *testing.T) {
	d := NewDetector(upgradeProber(nil), Config{Granularity: 6 * time.Hour})
	_, err := d.Detect(context.Background(), gefsUpgrade, gefsUpgrade)
	assert.Error(t, err)
}

func TestSnapshot_Equal(t *testing.T) {
	a := memberSnapshot(20)
	b := memberSnapshot(20)
	c := memberSnapshot(30)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))

	// Insertion order must not matter.
	d := NewSnapshot()
	d.Add(coords.DimLevel, "850 mb")
	d.Add(coords.DimLevel, "surface")
	e := NewSnapshot()
	e.Add(coords.DimLevel, "surface")
	e.Add(coords.DimLevel, "850 mb")
	assert.True(t, d.Equal(e))
}

func TestSnapshot_Merge(t *testing.T) {
	a := NewSnapshot()
	a.Add(coords.DimVariable, "TMP")
	b := NewSnapshot()
	b.Add(coords.DimVariable, "HGT")
	b.Add(coords.DimVariable, "TMP")

	a.Merge(b)
	assert.Equal(t, []string{"HGT", "TMP"}, a.Labels(coords.DimVariable))
	assert.Equal(t, 2, a.Len())
}

func TestStoreProber(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	store.Put("gefs.20170101/00/gec00.t00z.pgrb2aanl.idx", []byte(
		"1:0:d=2017010100:HGT:10 mb:anl:ENS=low-res ctl\n"+
			"2:50487:d=2017010100:TMP:2 m above ground:anl:ENS=low-res ctl\n"))
	store.Put("gefs.20170101/00/gep01.t00z.pgrb2aanl.idx", []byte(
		"1:0:d=2017010100:HGT:10 mb:anl:ENS=+1\n"))
	store.Put("gefs.20170101/00/checksums.txt", []byte("not a sidecar"))

	prober := NewStoreProber(store, dataset.GEFS{}, ".idx", nil, idx.Warn, nil)

	snap, err := prober.Probe(ctx, time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, []string{"c00", "p01"}, snap.Labels(coords.DimMember))
	assert.Equal(t, []string{"HGT", "TMP"}, snap.Labels(coords.DimVariable))
	assert.Equal(t, []string{"2 m above ground", "10 mb"}, snap.Labels(coords.DimLevel))
	assert.Equal(t, []string{"f000"}, snap.Labels(coords.DimStep))
}

func TestStoreProber_EmptyRun(t *testing.T) {
	store := blobstore.NewMemoryStore()
	prober := NewStoreProber(store, dataset.GEFS{}, ".idx", nil, idx.Skip, nil)

	_, err := prober.Probe(context.Background(), time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
