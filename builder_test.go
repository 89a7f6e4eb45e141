package gribdex_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmolab/gribdex"
	"github.com/atmolab/gribdex/blobstore"
	"github.com/atmolab/gribdex/coords"
	"github.com/atmolab/gribdex/dataset"
	"github.com/atmolab/gribdex/idx"
)

const fixtureDescriptor = `
name: gefs-test
dataset_id: noaa-gefs
path_scheme: gefs
bucket_url: s3://noaa-gefs-pds
idx_suffix: .idx
reference_datetimes:
  start: 2017-01-01T00:00:00Z
  number_of_daily_cycles: 4
ensemble_members:
  control: true
  perturbed:
    start: 1
    end: 1
forecast_steps:
  - start_hour: 0
    end_hour: 0
    step_duration_in_hours: 6
`

// controlSidecar is one control-member analysis file: two TMP levels and
// one RH level.
func controlSidecar(day string) []byte {
	return []byte(
		"1:0:d=" + day + ":TMP:2 m above ground:anl:ENS=low-res ctl\n" +
			"2:50487:d=" + day + ":TMP:850 mb:anl:ENS=low-res ctl\n" +
			"3:70653:d=" + day + ":RH:850 mb:anl:ENS=low-res ctl\n")
}

func loadDescriptor(t *testing.T) *dataset.Descriptor {
	t.Helper()
	desc, err := dataset.Load([]byte(fixtureDescriptor))
	require.NoError(t, err)
	return desc
}

// fixtureStore holds two runs of the same schema.
func fixtureStore() *blobstore.MemoryStore {
	store := blobstore.NewMemoryStore()
	store.Put("gefs.20170101/00/gec00.t00z.pgrb2aanl.idx", controlSidecar("2017010100"))
	store.Put("gefs.20170101/06/gec00.t06z.pgrb2aanl.idx", controlSidecar("2017010106"))
	return store
}

func TestBuild_IndexesArchive(t *testing.T) {
	ctx := context.Background()
	ix, err := gribdex.Build(ctx, fixtureStore(), loadDescriptor(t))
	require.NoError(t, err)

	assert.Equal(t, 6, ix.Manifest().Len())

	reg := ix.Registry()
	assert.Equal(t, 2, reg.Len(coords.DimReferenceTime))
	assert.Equal(t, []string{"c00"}, reg.Labels(coords.DimMember))
	assert.Equal(t, []string{"RH", "TMP"}, reg.Labels(coords.DimVariable))
	assert.Equal(t, []string{"2 m above ground", "850 mb"}, reg.Labels(coords.DimLevel))
}

func TestBuild_ResolveAcrossRuns(t *testing.T) {
	ctx := context.Background()
	ix, err := gribdex.Build(ctx, fixtureStore(), loadDescriptor(t))
	require.NoError(t, err)

	tmp, ok := ix.Registry().IndexOf(coords.DimVariable, "TMP")
	require.True(t, ok)

	// TMP at both levels for both runs: 2 files x 2 ranges, nothing
	// missing.
	res, err := ix.Resolve(ctx, gribdex.Selection{Variables: []int{tmp}})
	require.NoError(t, err)
	assert.Empty(t, res.Missing)
	assert.Equal(t, 4, res.NumRanges())
	require.Len(t, res.Ranges, 2)

	for path, ranges := range res.Ranges {
		require.Len(t, ranges, 2, path)
		// Ordered by offset within each file.
		assert.Less(t, ranges[0].Offset, ranges[1].Offset)
	}

	// The last message of each file runs to end of file.
	rh, ok := ix.Registry().IndexOf(coords.DimVariable, "RH")
	require.True(t, ok)
	res, err = ix.Resolve(ctx, gribdex.Selection{Variables: []int{rh}})
	require.NoError(t, err)
	for _, ranges := range res.Ranges {
		for _, r := range ranges {
			assert.Equal(t, uint64(70653), r.Offset)
			assert.Equal(t, uint32(0), r.Length)
		}
	}

	// RH was never published at 2 m above ground.
	assert.Len(t, res.Missing, 2)
	for _, k := range res.Missing {
		assert.Equal(t, "RH", k.Variable)
		assert.Equal(t, "2 m above ground", k.Level)
	}
}

func TestBuild_SchemaDrift(t *testing.T) {
	ctx := context.Background()
	store := fixtureStore()
	// The second run grows the ensemble by one perturbed member.
	store.Put("gefs.20170101/06/gep01.t06z.pgrb2aanl.idx", controlSidecar("2017010106"))

	ix, err := gribdex.Build(ctx, store, loadDescriptor(t))
	require.NoError(t, err)

	epochs := ix.Manifest().Epochs()
	require.Len(t, epochs, 2)
	assert.Equal(t, 6, epochs[1].Start.UTC().Hour())
	assert.Contains(t, epochs[0].Overrides, "ensemble_member")
	assert.Equal(t, []string{"c00"}, epochs[0].Overrides["ensemble_member"])
	assert.Equal(t, []string{"c00", "p01"}, epochs[1].Overrides["ensemble_member"])

	// p01 exists in the second run and is schema-missing in the first.
	reg := ix.Registry()
	p01, ok := reg.IndexOf(coords.DimMember, "p01")
	require.True(t, ok)
	tmp, _ := reg.IndexOf(coords.DimVariable, "TMP")

	res, err := ix.Resolve(ctx, gribdex.Selection{
		Members:   []int{p01},
		Variables: []int{tmp},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.NumRanges())
	require.Len(t, res.Missing, 2)
	for _, k := range res.Missing {
		assert.Equal(t, 0, k.ReferenceTime.UTC().Hour())
	}
}

func TestBuild_NoRuns(t *testing.T) {
	_, err := gribdex.Build(context.Background(), blobstore.NewMemoryStore(), loadDescriptor(t))
	assert.ErrorIs(t, err, gribdex.ErrNoRuns)
}

func TestBuild_BadRowCostsOnlyItself(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	store.Put("gefs.20170101/00/gec00.t00z.pgrb2aanl.idx", []byte(
		"1:0:d=2017010100:TMP:2 m above ground:anl\n"+
			"garbage line\n"+
			"3:70653:d=2017010100:RH:850 mb:anl\n"))

	ix, err := gribdex.Build(ctx, store, loadDescriptor(t), gribdex.WithRowPolicy(idx.Skip))
	require.NoError(t, err)
	assert.Equal(t, 2, ix.Manifest().Len())
}

func TestBuild_AbortFilePolicySkipsWholeFile(t *testing.T) {
	ctx := context.Background()
	store := fixtureStore()
	store.Put("gefs.20170101/00/gec00.t00z.pgrb2aanl.idx", []byte(
		"1:0:d=2017010100:TMP:2 m above ground:anl\n"+
			"garbage line\n"))

	ix, err := gribdex.Build(ctx, store, loadDescriptor(t), gribdex.WithRowPolicy(idx.AbortFile))
	require.NoError(t, err)

	// Only the clean second run's file survives.
	assert.Equal(t, 3, ix.Manifest().Len())
	assert.Equal(t, []string{"gefs.20170101/06/gec00.t06z.pgrb2aanl"}, pathsOf(ix))
}

func TestBuild_TransportFailureSkipsFile(t *testing.T) {
	ctx := context.Background()
	store := fixtureStore()
	store.FailWith("gefs.20170101/00/gec00.t00z.pgrb2aanl.idx", errors.New("503 slow down"))

	ix, err := gribdex.Build(ctx, store, loadDescriptor(t))
	require.NoError(t, err)
	assert.Equal(t, 3, ix.Manifest().Len())
}

func pathsOf(ix *gribdex.Index) []string {
	return ix.Manifest().Paths()
}
