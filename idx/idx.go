// Package idx parses GRIB sidecar (.idx) files: the provider-published
// plain-text table of contents giving byte offsets of the GRIB messages
// inside one binary file.
//
// The wgrib-style row grammar used by NOAA providers is colon-delimited:
//
//	1:0:d=2017010100:HGT:10 mb:anl:ENS=low-res ctl
//
// One row per message. The message length is not stored in the file; it is
// the gap to the next row's offset, or to end-of-file for the last row.
package idx

import (
	"bufio"
	"bytes"
	"iter"
	"strconv"
	"strings"
	"time"

	"github.com/atmolab/gribdex/coords"
)

// FileContext carries the coordinates derived from the sidecar file's name
// rather than its body: which model run, ensemble member and forecast step
// the file belongs to. Providers encode these in the path, and the path is
// authoritative where the two disagree.
type FileContext struct {
	// Path of the GRIB file the sidecar describes (not the .idx itself).
	Path string

	ReferenceTime time.Time
	Member        coords.EnsembleMember
	Step          time.Duration

	// Size of the GRIB file in bytes, when known. Zero means unknown, in
	// which case the last record's Length is zero ("to end of file").
	Size int64
}

// Record is one parsed sidecar row: one GRIB message.
type Record struct {
	Variable string
	Level    string
	Offset   uint64
	// Length in bytes. Zero means "to end of file" for the final message
	// of a file whose size is unknown.
	Length uint32
}

// Key combines the row with its file context into a full coordinate key.
func (r Record) Key(fc FileContext) coords.Key {
	return coords.Key{
		ReferenceTime: fc.ReferenceTime,
		Member:        fc.Member,
		Step:          fc.Step,
		Variable:      r.Variable,
		Level:         r.Level,
	}
}

// Scan lazily parses one sidecar file's bytes into records.
//
// The sequence is restartable: each range over it re-parses from the top.
// A malformed row yields a *RowError for that row only and parsing
// continues with the next row; the caller's RowPolicy decides whether to
// skip or abort. Lengths are derived with a one-record lookahead buffer,
// so the whole file is never materialized.
func Scan(data []byte, fc FileContext) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		sc := bufio.NewScanner(bytes.NewReader(data))

		var (
			pending    Record
			hasPending bool
			row        int
		)
		flush := func(nextOffset uint64) bool {
			if !hasPending {
				return true
			}
			pending.Length = uint32(nextOffset - pending.Offset)
			hasPending = false
			return yield(pending, nil)
		}

		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			row++
			rec, err := parseRow(line)
			if err != nil {
				if !yield(Record{}, &RowError{Path: fc.Path, Row: row, Line: line, cause: err}) {
					return
				}
				continue
			}
			if hasPending && rec.Offset < pending.Offset {
				// Offsets must be non-decreasing; the bad row fails alone
				// and the pending length waits for the next ordered row.
				if !yield(Record{}, &RowError{Path: fc.Path, Row: row, Line: line, cause: errOffsetOrder}) {
					return
				}
				continue
			}
			if !flush(rec.Offset) {
				return
			}
			pending, hasPending = rec, true
		}
		if err := sc.Err(); err != nil {
			yield(Record{}, &RowError{Path: fc.Path, Row: row, cause: err})
			return
		}
		if hasPending {
			if fc.Size > int64(pending.Offset) {
				pending.Length = uint32(uint64(fc.Size) - pending.Offset)
			}
			yield(pending, nil)
		}
	}
}

// parseRow splits a wgrib-style row. Offsets and the variable/level pair
// are required; the message number, date, step and member fields are
// tolerated but unused (the file name is authoritative for those), and
// trailing extra fields are ignored.
func parseRow(line string) (Record, error) {
	fields := strings.Split(line, ":")
	if len(fields) < 5 {
		return Record{}, errTooFewFields
	}
	off, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return Record{}, errBadOffset
	}
	variable := strings.TrimSpace(fields[3])
	level := strings.TrimSpace(fields[4])
	if variable == "" || level == "" {
		return Record{}, errEmptyField
	}
	return Record{Variable: variable, Level: level, Offset: off}, nil
}
