package manifest

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/atmolab/gribdex/codec"
	"github.com/atmolab/gribdex/coords"
)

// Snapshot is the serializable form of a published index: the per-dimension
// ordered label sets, the drift epochs, the deduplicated path table and the
// key-sorted entry table. It is the document other tooling reads.
type Snapshot struct {
	Dimensions map[string][]string `json:"dimensions"`
	Epochs     []Epoch             `json:"epochs"`
	Paths      []string            `json:"paths"`
	Entries    []SnapshotEntry     `json:"entries"`
}

// SnapshotEntry is one key-to-location row, keyed by canonical labels.
type SnapshotEntry struct {
	ReferenceTime string `json:"reference_datetime"`
	Member        string `json:"ensemble_member"`
	Step          string `json:"forecast_step"`
	Variable      string `json:"variable"`
	Level         string `json:"vertical_level"`
	PathIndex     int    `json:"path_index"`
	Offset        uint64 `json:"offset"`
	Length        uint32 `json:"length"`
}

// Snapshot captures the manifest as a serializable document. Entries come
// out in key order.
func (m *Manifest) Snapshot() *Snapshot {
	dims := make(map[string][]string, coords.NumDimensions)
	for _, dim := range coords.Dimensions() {
		dims[dim.String()] = m.registry.Labels(dim)
	}
	entries := make([]SnapshotEntry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, SnapshotEntry{
			ReferenceTime: e.Key.Label(coords.DimReferenceTime),
			Member:        e.Key.Label(coords.DimMember),
			Step:          e.Key.Label(coords.DimStep),
			Variable:      e.Key.Variable,
			Level:         e.Key.Level,
			PathIndex:     e.Location.PathIndex,
			Offset:        e.Location.Offset,
			Length:        e.Location.Length,
		})
	}
	return &Snapshot{
		Dimensions: dims,
		Epochs:     m.epochs,
		Paths:      m.paths,
		Entries:    entries,
	}
}

// Restore rebuilds a frozen manifest from a snapshot document.
func Restore(s *Snapshot) (*Manifest, error) {
	reg := coords.NewRegistry()
	b := NewBuilder(reg)
	b.paths = append(b.paths, s.Paths...)
	for i, p := range s.Paths {
		b.pathIndex[p] = i
	}
	for i, se := range s.Entries {
		key, err := se.key()
		if err != nil {
			return nil, fmt.Errorf("snapshot entry %d: %w", i, err)
		}
		if se.PathIndex < 0 || se.PathIndex >= len(s.Paths) {
			return nil, fmt.Errorf("snapshot entry %d: path index %d outside table of %d", i, se.PathIndex, len(s.Paths))
		}
		loc := Location{PathIndex: se.PathIndex, Offset: se.Offset, Length: se.Length}
		if err := b.Insert(key, loc); err != nil {
			return nil, fmt.Errorf("snapshot entry %d: %w", i, err)
		}
	}
	// Dimension label sets are derivable from the entries; the document
	// carries them for external readers. Cross-check cardinality so a
	// truncated document fails loudly instead of resolving wrong ranges.
	for _, dim := range coords.Dimensions() {
		if want, ok := s.Dimensions[dim.String()]; ok && len(want) != reg.Len(dim) {
			return nil, fmt.Errorf("snapshot dimension %s: %d labels declared, %d observed", dim, len(want), reg.Len(dim))
		}
	}
	return b.Freeze(s.Epochs), nil
}

func (se SnapshotEntry) key() (coords.Key, error) {
	refTime, err := coords.ParseReferenceTime(se.ReferenceTime)
	if err != nil {
		return coords.Key{}, err
	}
	member, err := coords.ParseMember(se.Member)
	if err != nil {
		return coords.Key{}, err
	}
	step, err := coords.ParseStep(se.Step)
	if err != nil {
		return coords.Key{}, err
	}
	return coords.Key{
		ReferenceTime: refTime,
		Member:        member,
		Step:          step,
		Variable:      se.Variable,
		Level:         se.Level,
	}, nil
}

// Compression names accepted by Encode/Decode.
const (
	CompressionNone = "none"
	CompressionZstd = "zstd"
	CompressionLZ4  = "lz4"
)

var snapshotMagic = [4]byte{'G', 'D', 'X', 'S'}

const snapshotVersion = 1

// ErrBadSnapshot is returned when encoded snapshot bytes are not a
// snapshot or are damaged.
var ErrBadSnapshot = errors.New("malformed manifest snapshot")

// Encode serializes the snapshot with a self-describing header: magic,
// format version, codec name and compression name, then the compressed
// payload. A nil codec uses codec.Default; an empty compression means
// none.
func Encode(s *Snapshot, c codec.Codec, compression string) ([]byte, error) {
	if c == nil {
		c = codec.Default
	}
	if compression == "" {
		compression = CompressionNone
	}
	payload, err := c.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	payload, err = compress(payload, compression)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Write(snapshotMagic[:])
	buf.WriteByte(snapshotVersion)
	writeString(&buf, c.Name())
	writeString(&buf, compression)
	buf.Write(payload)
	return buf.Bytes(), nil
}

// Decode parses bytes produced by Encode, selecting codec and compression
// from the header.
func Decode(data []byte) (*Snapshot, error) {
	r := bytes.NewReader(data)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil || magic != snapshotMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrBadSnapshot)
	}
	version, err := r.ReadByte()
	if err != nil || version != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadSnapshot, version)
	}
	codecName, err := readString(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	compression, err := readString(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	c, ok := codec.ByName(codecName)
	if !ok {
		return nil, fmt.Errorf("%w: unknown codec %q", ErrBadSnapshot, codecName)
	}

	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	payload, err = decompress(payload, compression)
	if err != nil {
		return nil, err
	}

	var s Snapshot
	if err := c.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	return &s, nil
}

func compress(payload []byte, compression string) ([]byte, error) {
	switch compression {
	case CompressionNone:
		return payload, nil
	case CompressionZstd:
		w, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer w.Close()
		return w.EncodeAll(payload, nil), nil
	case CompressionLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(payload); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown compression %q", compression)
	}
}

func decompress(payload []byte, compression string) ([]byte, error) {
	switch compression {
	case CompressionNone:
		return payload, nil
	case CompressionZstd:
		r, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer r.Close()
		out, err := r.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
		}
		return out, nil
	case CompressionLZ4:
		out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(payload)))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown compression %q", ErrBadSnapshot, compression)
	}
}

func writeString(buf *bytes.Buffer, s string) {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(s)))
	buf.Write(lenBuf[:n])
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return "", err
	}
	if n > 256 {
		return "", errors.New("implausible string length")
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
