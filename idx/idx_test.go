package idx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmolab/gribdex/coords"
)

const gefsIdxFixture = `1:0:d=2017010100:HGT:10 mb:anl:ENS=low-res ctl
2:50487:d=2017010100:TMP:10 mb:anl:ENS=low-res ctl
3:70653:d=2017010100:RH:10 mb:anl:ENS=low-res ctl
4:81565:d=2017010100:UGRD:10 mb:anl:ENS=low-res ctl
`

func fixtureContext() FileContext {
	return FileContext{
		Path:          "gefs.20170101/00/gec00.t00z.pgrb2aanl",
		ReferenceTime: time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC),
		Member:        coords.Control(),
		Size:          100000,
	}
}

func collect(t *testing.T, data string, fc FileContext) ([]Record, []error) {
	t.Helper()
	var recs []Record
	var errs []error
	for rec, err := range Scan([]byte(data), fc) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		recs = append(recs, rec)
	}
	return recs, errs
}

func TestScan_GEFSFixture(t *testing.T) {
	recs, errs := collect(t, gefsIdxFixture, fixtureContext())
	require.Empty(t, errs)
	require.Len(t, recs, 4)

	require.Equal(t, Record{Variable: "HGT", Level: "10 mb", Offset: 0, Length: 50487}, recs[0])
	require.Equal(t, Record{Variable: "TMP", Level: "10 mb", Offset: 50487, Length: 20166}, recs[1])
	require.Equal(t, Record{Variable: "RH", Level: "10 mb", Offset: 70653, Length: 10912}, recs[2])
	// Last message runs to end of file.
	require.Equal(t, Record{Variable: "UGRD", Level: "10 mb", Offset: 81565, Length: 18435}, recs[3])
}

func TestScan_UnknownFileSize(t *testing.T) {
	fc := fixtureContext()
	fc.Size = 0

	recs, errs := collect(t, gefsIdxFixture, fc)
	require.Empty(t, errs)
	require.Len(t, recs, 4)
	assert.Zero(t, recs[3].Length, "unknown file size leaves the tail length open")
}

func TestScan_MalformedRowIsScopedToThatRow(t *testing.T) {
	data := `1:0:d=2017010100:HGT:10 mb:anl
2:not-a-number:d=2017010100:TMP:10 mb:anl
3:70653:d=2017010100:RH:10 mb:anl
`
	recs, errs := collect(t, data, fixtureContext())

	require.Len(t, errs, 1)
	var rowErr *RowError
	require.ErrorAs(t, errs[0], &rowErr)
	assert.Equal(t, 2, rowErr.Row)
	assert.ErrorIs(t, rowErr, errBadOffset)

	// Surviving rows still pair up for length derivation.
	require.Len(t, recs, 2)
	assert.Equal(t, uint32(70653), recs[0].Length)
}

func TestScan_BackwardsOffsetIsScopedToThatRow(t *testing.T) {
	data := `1:50487:d=2017010100:HGT:10 mb:anl
2:100:d=2017010100:TMP:10 mb:anl
3:70653:d=2017010100:RH:10 mb:anl
`
	recs, errs := collect(t, data, fixtureContext())

	require.Len(t, errs, 1)
	var rowErr *RowError
	require.ErrorAs(t, errs[0], &rowErr)
	assert.Equal(t, 2, rowErr.Row)
	assert.ErrorIs(t, rowErr, errOffsetOrder)

	// The first row's length comes from the next well-ordered offset, not
	// from a wrapped subtraction against the bad one.
	require.Len(t, recs, 2)
	assert.Equal(t, Record{Variable: "HGT", Level: "10 mb", Offset: 50487, Length: 20166}, recs[0])
	assert.Equal(t, uint64(70653), recs[1].Offset)
}

func TestScan_BlankLinesDoNotShiftRowNumbers(t *testing.T) {
	data := `1:0:d=2017010100:HGT:10 mb:anl

2:not-a-number:d=2017010100:TMP:10 mb:anl

3:70653:d=2017010100:RH:10 mb:anl
`
	recs, errs := collect(t, data, fixtureContext())

	require.Len(t, errs, 1)
	var rowErr *RowError
	require.ErrorAs(t, errs[0], &rowErr)
	assert.Equal(t, 2, rowErr.Row, "row numbering matches the provider's message numbering")
	require.Len(t, recs, 2)
}

func TestScan_ToleratesMissingAndExtraFields(t *testing.T) {
	data := `1:0:d=2017010100:HGT:10 mb
2:50487:d=2017010100:TMP:10 mb:anl:ENS=low-res ctl:extra:fields
3:60000:d=2017010100
`
	recs, errs := collect(t, data, fixtureContext())
	require.Len(t, recs, 2)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], errTooFewFields)
}

func TestScan_Restartable(t *testing.T) {
	seq := Scan([]byte(gefsIdxFixture), fixtureContext())

	count := func() int {
		n := 0
		for _, err := range seq {
			require.NoError(t, err)
			n++
		}
		return n
	}
	require.Equal(t, 4, count())
	require.Equal(t, 4, count())
}

func TestScan_EarlyBreak(t *testing.T) {
	n := 0
	for rec, err := range Scan([]byte(gefsIdxFixture), fixtureContext()) {
		require.NoError(t, err)
		require.Equal(t, "HGT", rec.Variable)
		n++
		break
	}
	require.Equal(t, 1, n)
}

func TestRecord_Key(t *testing.T) {
	fc := fixtureContext()
	fc.Step = 6 * time.Hour

	rec := Record{Variable: "TMP", Level: "850 mb", Offset: 10, Length: 20}
	k := rec.Key(fc)

	assert.Equal(t, fc.ReferenceTime, k.ReferenceTime)
	assert.Equal(t, coords.Control(), k.Member)
	assert.Equal(t, 6*time.Hour, k.Step)
	assert.Equal(t, "TMP", k.Variable)
	assert.Equal(t, "850 mb", k.Level)
}
