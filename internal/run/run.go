// Package run implements the immutable on-disk run file: a sorted,
// deduplicated array of chesskey.Entry plus its sparse key index
// sidecar, and the per-run query scan (spec §4.6).
package run

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/chessdb/chessdb/chesskey"
	"github.com/chessdb/chessdb/internal/filestore"
	"github.com/chessdb/chessdb/internal/queryengine"
	"github.com/chessdb/chessdb/internal/runmeta"
	"github.com/chessdb/chessdb/internal/sparseindex"
)

// EntryCodec is the fixed 24-byte little-endian on-disk encoding for
// chesskey.Entry.
var EntryCodec = filestore.Codec[chesskey.Entry]{
	Size: 24,
	Encode: func(e chesskey.Entry) []byte {
		b := e.Bytes()
		return b[:]
	},
	Decode: func(b []byte) chesskey.Entry {
		var arr [24]byte
		copy(arr[:], b)
		return chesskey.EntryFromBytes(arr)
	},
}

// indexRecordCodec is the fixed 24-byte encoding for sparseindex.Record.
var indexRecordCodec = filestore.Codec[sparseindex.Record]{
	Size:   sparseindex.RecordSize,
	Encode: sparseindex.EncodeRecord,
	Decode: sparseindex.DecodeRecord,
}

// EntriesPath returns the run file path for id within dir.
func EntriesPath(dir string, id int64) string {
	return filepath.Join(dir, strconv.FormatInt(id, 10))
}

// IndexPath returns the sparse-index sidecar path for id within dir.
func IndexPath(dir string, id int64) string {
	return filepath.Join(dir, strconv.FormatInt(id, 10)+"_index")
}

// MetaPath returns the runmeta sidecar path for id within dir: a small
// key-value blob recording how the run came to exist (entry count,
// write time, compaction generation), separate from the entries/index
// files so a reader never has to touch it on the hot query path.
func MetaPath(dir string, id int64) string {
	return filepath.Join(dir, strconv.FormatInt(id, 10)+"_meta")
}

// WriteMeta (over)writes id's runmeta sidecar.
func WriteMeta(pool *filestore.Pool, dir string, id int64, meta runmeta.Meta) error {
	f, err := pool.Acquire(MetaPath(dir, id), filestore.ModeReadWrite)
	if err != nil {
		return err
	}
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("run: truncate meta %d: %w", id, err)
	}
	if _, err := f.WriteAt(meta.Bytes(), 0); err != nil {
		return fmt.Errorf("run: write meta %d: %w", id, err)
	}
	return nil
}

// ReadMeta reads id's runmeta sidecar, returning a zero-value Meta if it
// doesn't exist yet (a run written before the sidecar was introduced, or
// never given one).
func ReadMeta(pool *filestore.Pool, dir string, id int64) (runmeta.Meta, error) {
	f, err := pool.Acquire(MetaPath(dir, id), filestore.ModeRead)
	if err != nil {
		return runmeta.Meta{}, nil
	}
	info, err := f.Stat()
	if err != nil {
		return runmeta.Meta{}, fmt.Errorf("run: stat meta %d: %w", id, err)
	}
	size := info.Size()
	if size == 0 {
		return runmeta.Meta{}, nil
	}
	buf := make([]byte, size)
	if _, err := f.ReadAt(buf, 0); err != nil {
		return runmeta.Meta{}, fmt.Errorf("run: read meta %d: %w", id, err)
	}
	var m runmeta.Meta
	if err := m.UnmarshalBinary(buf); err != nil {
		return runmeta.Meta{}, fmt.Errorf("run: decode meta %d: %w", id, err)
	}
	return m, nil
}

// writeDefaultMeta stamps a freshly written run with its entry count and
// write time, the baseline metadata every run gets regardless of how it
// was produced.
func writeDefaultMeta(pool *filestore.Pool, dir string, id int64, numEntries int) error {
	var meta runmeta.Meta
	if err := meta.AddUint64(runmeta.KeyNumEntries, uint64(numEntries)); err != nil {
		return err
	}
	if err := meta.AddString(runmeta.KeyImportedAt, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return WriteMeta(pool, dir, id, meta)
}

// Run is one immutable sorted run file plus its in-memory sparse index.
type Run struct {
	ID    int64
	dir   string
	pool  *filestore.Pool
	file  *filestore.ImmutableBinaryFile[chesskey.Entry]
	index sparseindex.Index
}

// WriteFiles writes entries and their sparse index directly to
// entriesPath/indexPath, without any notion of a run id — the primitive
// both Write and partition compaction build on.
func WriteFiles(pool *filestore.Pool, entriesPath, indexPath string, entries []chesskey.Entry, granularity int) (sparseindex.Index, error) {
	entriesOut, err := filestore.CreateOutput(pool, entriesPath, EntryCodec)
	if err != nil {
		return sparseindex.Index{}, err
	}
	if err := entriesOut.WriteAll(entries); err != nil {
		return sparseindex.Index{}, err
	}
	if err := entriesOut.Sync(); err != nil {
		return sparseindex.Index{}, err
	}

	builder := sparseindex.NewBuilder(granularity)
	for _, e := range entries {
		builder.Observe(e.Key)
	}
	idx := builder.Build()

	indexOut, err := filestore.CreateOutput(pool, indexPath, indexRecordCodec)
	if err != nil {
		return sparseindex.Index{}, err
	}
	if err := indexOut.WriteAll(idx.ToRecords()); err != nil {
		return sparseindex.Index{}, err
	}
	if err := indexOut.Sync(); err != nil {
		return sparseindex.Index{}, err
	}
	return idx, nil
}

// OpenFiles attaches to an existing entries/index file pair and loads the
// sparse index into memory.
func OpenFiles(pool *filestore.Pool, entriesPath, indexPath string, granularity int) (*filestore.ImmutableBinaryFile[chesskey.Entry], sparseindex.Index, error) {
	entriesFile, err := filestore.OpenImmutable(pool, entriesPath, EntryCodec)
	if err != nil {
		return nil, sparseindex.Index{}, err
	}
	numEntries, err := entriesFile.Len()
	if err != nil {
		return nil, sparseindex.Index{}, err
	}

	indexFile, err := filestore.OpenImmutable(pool, indexPath, indexRecordCodec)
	if err != nil {
		return nil, sparseindex.Index{}, err
	}
	numSamples, err := indexFile.Len()
	if err != nil {
		return nil, sparseindex.Index{}, err
	}
	records := make([]sparseindex.Record, numSamples)
	if err := indexFile.ReadAll(records); err != nil {
		return nil, sparseindex.Index{}, err
	}

	idx := sparseindex.FromRecords(granularity, records, int64(numEntries))
	return entriesFile, idx, nil
}

// Write builds a new run from entries, which callers guarantee is
// already sorted under chesskey.LessFull and deduplicated (at most one
// entry per (key-without-rmove, rmove, level, result) tuple). It streams
// the sparse index alongside the entry write.
func Write(pool *filestore.Pool, dir string, id int64, entries []chesskey.Entry, granularity int) (*Run, error) {
	idx, err := WriteFiles(pool, EntriesPath(dir, id), IndexPath(dir, id), entries, granularity)
	if err != nil {
		return nil, err
	}
	entriesFile, err := filestore.OpenImmutable(pool, EntriesPath(dir, id), EntryCodec)
	if err != nil {
		return nil, err
	}
	if err := writeDefaultMeta(pool, dir, id, len(entries)); err != nil {
		return nil, err
	}
	return &Run{ID: id, dir: dir, pool: pool, file: entriesFile, index: idx}, nil
}

// Open attaches to an existing run's files and loads its sparse index
// into memory.
func Open(pool *filestore.Pool, dir string, id int64, granularity int) (*Run, error) {
	entriesFile, idx, err := OpenFiles(pool, EntriesPath(dir, id), IndexPath(dir, id), granularity)
	if err != nil {
		return nil, err
	}
	return &Run{ID: id, dir: dir, pool: pool, file: entriesFile, index: idx}, nil
}

// HasValidSidecar reports whether id has both a non-empty entries file
// and a sidecar index — a partition open uses this to discard a run left
// behind by a killed-mid-write import (spec §5 "Cancellation").
func HasValidSidecar(pool *filestore.Pool, dir string, id int64) bool {
	entriesFile, err := filestore.OpenImmutable(pool, EntriesPath(dir, id), EntryCodec)
	if err != nil {
		return false
	}
	size, err := entriesFile.SizeBytes()
	if err != nil || size == 0 {
		return false
	}
	if _, err := filestore.OpenImmutable(pool, IndexPath(dir, id), indexRecordCodec); err != nil {
		return false
	}
	return true
}

// Len returns the number of entries in the run.
func (r *Run) Len() (int, error) {
	return r.file.Len()
}

// Span returns the run's full entry span.
func (r *Run) Span() (filestore.ImmutableSpan[chesskey.Entry], error) {
	return filestore.NewSpan(r.file)
}

// Remove deletes the run's backing files: entries, sparse index, and meta
// sidecar.
func (r *Run) Remove() error {
	if err := filestore.RemoveFile(r.pool, EntriesPath(r.dir, r.ID)); err != nil {
		return err
	}
	if err := filestore.RemoveFile(r.pool, IndexPath(r.dir, r.ID)); err != nil {
		return err
	}
	return filestore.RemoveFile(r.pool, MetaPath(r.dir, r.ID))
}

// Meta reads the run's runmeta sidecar, returning a zero-value Meta for a
// run written before the sidecar existed.
func (r *Run) Meta() (runmeta.Meta, error) {
	return ReadMeta(r.pool, r.dir, r.ID)
}

// ExecuteQuery scans this run for every query in queries, accumulating
// matches into result per spec §4.6/§4.9: for each query key, narrow via
// the sparse index's EqualRange, bulk-read that window, then scan
// applying the select rules for every select the request runs.
func (r *Run) ExecuteQuery(req *queryengine.Request, queries []queryengine.PositionQuery, result queryengine.ResultSet) error {
	for i, q := range queries {
		begin, end := r.index.EqualRange(q.Key)
		if end <= begin {
			continue
		}
		n := int(end - begin)
		window := filestore.NewSubSpan(r.file, int(begin), int(end))
		buf := make([]chesskey.Entry, n)
		if err := window.ReadAll(buf); err != nil {
			return fmt.Errorf("run: read query window for run %d: %w", r.ID, err)
		}

		for _, e := range buf {
			for sel := range req.Selects {
				if queryengine.Matches(e, q, sel) {
					result.Stats[i][sel] = result.Stats[i][sel].Combine(e.Count)
				}
			}
		}
	}
	return nil
}
