// Package sparseindex implements the every-Nth-key sampled index built
// alongside each run file: one (Key, ordinal) sample per granule, used to
// narrow a point/range query to a small candidate window without reading
// the whole run.
package sparseindex

import (
	"encoding/binary"
	"sort"

	"github.com/chessdb/chessdb/chesskey"
)

// DefaultGranularity is the default number of entries between samples
// (spec: "a single integer, default around 1024").
const DefaultGranularity = 1024

// Sample is one sparse-index record: a key and the ordinal position in
// the run it was sampled from.
type Sample struct {
	Key     chesskey.Key
	Ordinal int64
}

// Index is the in-memory sparse index for one run: ascending samples
// taken every Granularity-th entry, in CompareLessWithoutReverseMove
// order (the run itself is fully ordered, so every Nth sample is too).
type Index struct {
	Granularity int
	Samples     []Sample
	NumEntries  int64 // total entries in the run this index describes
}

// Builder accumulates samples while a run is being written, one call per
// entry in ascending run order.
type Builder struct {
	granularity int
	samples     []Sample
	count       int64
}

// NewBuilder starts a builder sampling every granularity-th entry.
func NewBuilder(granularity int) *Builder {
	if granularity <= 0 {
		granularity = DefaultGranularity
	}
	return &Builder{granularity: granularity}
}

// Observe records the next entry's key at its ordinal position, sampling
// it if it falls on a granule boundary (including the very first entry,
// so a run of exactly one element gets exactly one sample).
func (b *Builder) Observe(key chesskey.Key) {
	if b.count%int64(b.granularity) == 0 {
		b.samples = append(b.samples, Sample{Key: key, Ordinal: b.count})
	}
	b.count++
}

// Build finalizes the index.
func (b *Builder) Build() Index {
	return Index{Granularity: b.granularity, Samples: b.samples, NumEntries: b.count}
}

// EqualRange returns [begin, end) — a window over the run's ordinal
// positions guaranteed to contain every entry equal to k under
// CompareLessWithoutReverseMove. It binary-searches the samples for the
// highest sample <= k and the lowest sample > k, then widens by one
// granule on each side to cover entries the sparse sampling skipped.
func (idx Index) EqualRange(k chesskey.Key) (begin, end int64) {
	n := len(idx.Samples)
	if n == 0 {
		return 0, idx.NumEntries
	}

	// lo = first sample index with Key > k (upper_bound).
	lo := sort.Search(n, func(i int) bool {
		return chesskey.LessWithoutReverseMove(k, idx.Samples[i].Key)
	})
	// hi = first sample index with Key >= k is lo-1's successor; we want
	// the highest sample <= k, i.e. lo-1.
	highestLE := lo - 1

	if highestLE < 0 {
		begin = 0
	} else {
		begin = idx.Samples[highestLE].Ordinal
	}
	if lo >= n {
		end = idx.NumEntries
	} else {
		end = idx.Samples[lo].Ordinal
	}

	// Widen by one granule at each end: the match may start before the
	// sampled ordinal (if it's not itself a sample) or extend past the
	// next sample's ordinal.
	begin -= int64(idx.Granularity)
	if begin < 0 {
		begin = 0
	}
	end += int64(idx.Granularity)
	if end > idx.NumEntries {
		end = idx.NumEntries
	}
	return begin, end
}

// Record is the fixed 24-byte on-disk record (Key 16 bytes +
// ordinal 8 bytes, little-endian) used by the index sidecar file.
type Record struct {
	Key     chesskey.Key
	Ordinal uint64
}

const RecordSize = 24

func EncodeRecord(r Record) []byte {
	out := make([]byte, RecordSize)
	kb := r.Key.Bytes()
	copy(out[:16], kb[:])
	binary.LittleEndian.PutUint64(out[16:24], r.Ordinal)
	return out
}

func DecodeRecord(b []byte) Record {
	var kb [16]byte
	copy(kb[:], b[:16])
	ordinal := binary.LittleEndian.Uint64(b[16:24])
	return Record{Key: chesskey.KeyFromBytes(kb), Ordinal: ordinal}
}

// ToRecords converts an Index's samples into on-disk Records.
func (idx Index) ToRecords() []Record {
	out := make([]Record, len(idx.Samples))
	for i, s := range idx.Samples {
		out[i] = Record{Key: s.Key, Ordinal: uint64(s.Ordinal)}
	}
	return out
}

// FromRecords rebuilds an Index from its on-disk records plus the run's
// total entry count (recovered independently, from the run file's size).
func FromRecords(granularity int, records []Record, numEntries int64) Index {
	samples := make([]Sample, len(records))
	for i, r := range records {
		samples[i] = Sample{Key: r.Key, Ordinal: int64(r.Ordinal)}
	}
	return Index{Granularity: granularity, Samples: samples, NumEntries: numEntries}
}
