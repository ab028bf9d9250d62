// Package partition implements the ordered collection of run files that
// backs one level's storage: pending pipeline jobs, completed runs, cross-run
// query dispatch and whole-partition compaction (spec §4.8).
package partition

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/chessdb/chessdb/chesskey"
	"github.com/chessdb/chessdb/internal/filestore"
	"github.com/chessdb/chessdb/internal/pipeline"
	"github.com/chessdb/chessdb/internal/queryengine"
	"github.com/chessdb/chessdb/internal/run"
	"github.com/chessdb/chessdb/internal/runmeta"
	"github.com/chessdb/chessdb/internal/sparseindex"
	"github.com/natefinch/atomic"
	"golang.org/x/sync/errgroup"
)

const (
	mergeTmpName      = "merge_tmp"
	mergeTmpIndexName = "merge_tmp_index"
)

var indexCodec = filestore.Codec[sparseindex.Record]{
	Size:   sparseindex.RecordSize,
	Encode: sparseindex.EncodeRecord,
	Decode: sparseindex.DecodeRecord,
}

// Partition is one level's ordered set of run files plus the pipeline jobs
// still in flight for it.
type Partition struct {
	dir         string
	pool        *filestore.Pool
	granularity int

	mu      sync.Mutex
	runs    []*run.Run
	pending map[int64]*pipeline.Future
}

// Open scans dir for existing run files, discarding any without a valid
// sidecar index (left behind by a killed-mid-write import), and loads the
// rest in id order.
func Open(pool *filestore.Pool, dir string, granularity int) (*Partition, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("partition: mkdir %q: %w", dir, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("partition: read dir %q: %w", dir, err)
	}

	var ids []int64
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasSuffix(name, "_index") {
			continue
		}
		id, err := strconv.ParseInt(name, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	p := &Partition{dir: dir, pool: pool, granularity: granularity, pending: make(map[int64]*pipeline.Future)}
	for _, id := range ids {
		if !run.HasValidSidecar(pool, dir, id) {
			continue
		}
		r, err := run.Open(pool, dir, id, granularity)
		if err != nil {
			return nil, fmt.Errorf("partition: open run %d: %w", id, err)
		}
		p.runs = append(p.runs, r)
	}
	return p, nil
}

// NextID returns the maximum id present across completed runs and pending
// jobs, plus one, or 0 if the partition is empty.
func (p *Partition) NextID() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nextIDLocked()
}

func (p *Partition) nextIDLocked() int64 {
	max := int64(-1)
	for _, r := range p.runs {
		if r.ID > max {
			max = r.ID
		}
	}
	for id := range p.pending {
		if id > max {
			max = id
		}
	}
	return max + 1
}

// StoreOrdered writes entries directly as a new run, bypassing the
// pipeline: the caller guarantees entries is already sorted under
// chesskey.LessFull and deduplicated.
func (p *Partition) StoreOrdered(entries []chesskey.Entry, id ...int64) (*run.Run, error) {
	p.mu.Lock()
	runID := p.resolveID(id)
	p.mu.Unlock()

	r, err := run.Write(p.pool, p.dir, runID, entries, p.granularity)
	if err != nil {
		return nil, fmt.Errorf("partition: store_ordered run %d: %w", runID, err)
	}

	p.mu.Lock()
	p.insertRunLocked(r)
	p.mu.Unlock()
	return r, nil
}

// StoreUnordered schedules an unsorted batch onto pl as a pipeline job,
// tracking a pending future for its eventual run file.
func (p *Partition) StoreUnordered(pl *pipeline.Pipeline, entries []chesskey.Entry, id ...int64) int64 {
	p.mu.Lock()
	runID := p.resolveID(id)
	future := pl.Submit(pipeline.Job{ID: runID, Entries: entries})
	p.pending[runID] = future
	p.mu.Unlock()
	return runID
}

func (p *Partition) resolveID(id []int64) int64 {
	if len(id) > 0 {
		return id[0]
	}
	return p.nextIDLocked()
}

// CollectFutureFiles drains every completed pending job into the run list,
// preserving id order; it never blocks on a job still in flight.
func (p *Partition) CollectFutureFiles() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, future := range p.pending {
		r, err, ready := future.TryWait()
		if !ready {
			continue
		}
		delete(p.pending, id)
		if err != nil {
			return fmt.Errorf("partition: job %d failed: %w", id, err)
		}
		p.insertRunLocked(r)
	}
	return nil
}

// Runs returns a snapshot of the partition's current run set, in id order.
// Callers use this to inspect per-run metadata (e.g. Database.Verify
// cross-checking each run's recorded entry count against its actual
// length) without reaching into partition internals.
func (p *Partition) Runs() []*run.Run {
	p.mu.Lock()
	defer p.mu.Unlock()
	runs := make([]*run.Run, len(p.runs))
	copy(runs, p.runs)
	return runs
}

func (p *Partition) insertRunLocked(r *run.Run) {
	i := sort.Search(len(p.runs), func(i int) bool { return p.runs[i].ID >= r.ID })
	p.runs = append(p.runs, nil)
	copy(p.runs[i+1:], p.runs[i:])
	p.runs[i] = r
}

// ExecuteQuery dispatches queries to every run, concurrently, and folds
// each run's partial stats into one aggregate ResultSet via
// queryengine.PositionStats.Merge (the result does not depend on run
// order: Merge and Combine are both commutative monoids).
func (p *Partition) ExecuteQuery(req *queryengine.Request, queries []queryengine.PositionQuery) (queryengine.ResultSet, error) {
	if err := p.CollectFutureFiles(); err != nil {
		return queryengine.ResultSet{}, err
	}

	p.mu.Lock()
	runs := make([]*run.Run, len(p.runs))
	copy(runs, p.runs)
	p.mu.Unlock()

	partials := make([]queryengine.ResultSet, len(runs))
	var g errgroup.Group
	for i, r := range runs {
		i, r := i, r
		g.Go(func() error {
			rs := queryengine.NewResultSet(len(queries), req)
			if err := r.ExecuteQuery(req, queries, rs); err != nil {
				return fmt.Errorf("partition: query run %d: %w", r.ID, err)
			}
			partials[i] = rs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return queryengine.ResultSet{}, err
	}

	result := queryengine.NewResultSet(len(queries), req)
	for _, partial := range partials {
		for qi, byselect := range partial.Stats {
			for sel, stats := range byselect {
				result.Stats[qi][sel] = result.Stats[qi][sel].Merge(stats)
			}
		}
	}
	return result, nil
}

// MergeAll compacts every run into a single run at the old lowest id,
// removing the rest. A no-op when the partition holds one run or fewer.
func (p *Partition) MergeAll(memoryBudget int64, progress filestore.ProgressFunc) error {
	p.mu.Lock()
	runs := make([]*run.Run, len(p.runs))
	copy(runs, p.runs)
	p.mu.Unlock()

	if len(runs) <= 1 {
		return nil
	}

	lowestID := runs[0].ID
	entriesTmp := filepath.Join(p.dir, mergeTmpName)
	indexTmp := filepath.Join(p.dir, mergeTmpIndexName)

	if err := mergeAndCoalesce(p.pool, runs, entriesTmp, indexTmp, p.granularity, memoryBudget, progress); err != nil {
		return err
	}

	destEntries := run.EntriesPath(p.dir, lowestID)
	destIndex := run.IndexPath(p.dir, lowestID)
	if err := atomicPlace(p.pool, entriesTmp, destEntries); err != nil {
		return fmt.Errorf("partition: place merged entries: %w", err)
	}
	if err := atomicPlace(p.pool, indexTmp, destIndex); err != nil {
		return fmt.Errorf("partition: place merged index: %w", err)
	}

	for _, r := range runs[1:] {
		if err := r.Remove(); err != nil {
			return fmt.Errorf("partition: remove merged source run %d: %w", r.ID, err)
		}
	}

	merged, err := run.Open(p.pool, p.dir, lowestID, p.granularity)
	if err != nil {
		return fmt.Errorf("partition: reopen merged run %d: %w", lowestID, err)
	}
	if err := writeMergeMeta(p.pool, p.dir, lowestID, merged, len(runs)); err != nil {
		return fmt.Errorf("partition: write meta for merged run %d: %w", lowestID, err)
	}

	p.mu.Lock()
	p.runs = []*run.Run{merged}
	p.mu.Unlock()
	return nil
}

// ReplicateMergeAll compacts every run into dest/0 (plus its sidecar
// index) without mutating the source partition — used for consistent
// snapshot export.
func (p *Partition) ReplicateMergeAll(dest string, memoryBudget int64, progress filestore.ProgressFunc) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("partition: mkdir export dir %q: %w", dest, err)
	}

	p.mu.Lock()
	runs := make([]*run.Run, len(p.runs))
	copy(runs, p.runs)
	p.mu.Unlock()

	entriesPath := run.EntriesPath(dest, 0)
	indexPath := run.IndexPath(dest, 0)
	if len(runs) == 0 {
		if _, err := run.WriteFiles(p.pool, entriesPath, indexPath, nil, p.granularity); err != nil {
			return err
		}
		return writeMergeMetaAt(p.pool, dest, 0, 0, 0)
	}
	// One run or many: the merge-and-coalesce path handles both, so the
	// export always goes through one code path regardless of fan-in.
	if err := mergeAndCoalesce(p.pool, runs, entriesPath, indexPath, p.granularity, memoryBudget, progress); err != nil {
		return err
	}
	exported, err := run.Open(p.pool, dest, 0, p.granularity)
	if err != nil {
		return fmt.Errorf("partition: reopen exported run: %w", err)
	}
	return writeMergeMeta(p.pool, dest, 0, exported, len(runs))
}

// writeMergeMeta stamps a just-merged run's sidecar with its resulting
// entry count and the number of source runs folded into it, the
// compaction-path counterpart to writeDefaultMeta (which run.Write uses
// for a freshly-sorted run that never went through a merge).
func writeMergeMeta(pool *filestore.Pool, dir string, id int64, merged *run.Run, generation int) error {
	n, err := merged.Len()
	if err != nil {
		return fmt.Errorf("partition: len merged run %d: %w", id, err)
	}
	return writeMergeMetaAt(pool, dir, id, n, generation)
}

func writeMergeMetaAt(pool *filestore.Pool, dir string, id int64, numEntries, generation int) error {
	var meta runmeta.Meta
	if err := meta.AddUint64(runmeta.KeyNumEntries, uint64(numEntries)); err != nil {
		return err
	}
	if err := meta.AddUint64(runmeta.KeyGeneration, uint64(generation)); err != nil {
		return err
	}
	return run.WriteMeta(pool, dir, id, meta)
}

// mergeAndCoalesce k-way merges every run's span into a single sorted
// stream (filestore.Merge) and then folds CompareLessFull-equal adjacent
// entries (the cross-run duplicates a merge alone cannot remove) while
// streaming the result out to entriesPath, building its sparse index
// sidecar alongside.
func mergeAndCoalesce(pool *filestore.Pool, runs []*run.Run, entriesPath, indexPath string, granularity int, memoryBudget int64, progress filestore.ProgressFunc) error {
	spans := make([]filestore.ImmutableSpan[chesskey.Entry], len(runs))
	for i, r := range runs {
		span, err := r.Span()
		if err != nil {
			return fmt.Errorf("partition: span of run %d: %w", r.ID, err)
		}
		spans[i] = span
	}

	lessEntry := func(a, b chesskey.Entry) bool { return chesskey.LessFull(a.Key, b.Key) }
	rawPath := entriesPath + "_raw"
	merged, err := filestore.Merge(pool, spans, rawPath, run.EntryCodec, lessEntry, memoryBudget, progress)
	if err != nil {
		return fmt.Errorf("partition: merge runs: %w", err)
	}
	defer filestore.RemoveFile(pool, rawPath) //nolint:errcheck // best-effort cleanup of the pre-coalesce scratch file

	chunkElems := bufferElems(memoryBudget, granularity)
	if err := coalesceToFiles(pool, merged, entriesPath, indexPath, granularity, chunkElems); err != nil {
		return fmt.Errorf("partition: coalesce merged entries: %w", err)
	}
	return nil
}

func bufferElems(memoryBudget int64, granularity int) int {
	const recordSize = 24
	n := int(memoryBudget / recordSize)
	if n < granularity {
		n = granularity
	}
	return n
}

// coalesceToFiles streams merged's sorted entries, combining
// CompareLessFull-equal adjacent runs of entries via Entry.Combine, and
// writes the result to entriesPath/indexPath exactly as run.WriteFiles
// would from an in-memory slice, but without materializing the whole
// file in RAM.
func coalesceToFiles(pool *filestore.Pool, merged *filestore.ImmutableBinaryFile[chesskey.Entry], entriesPath, indexPath string, granularity, chunkElems int) error {
	span, err := filestore.NewSpan(merged)
	if err != nil {
		return err
	}

	out, err := filestore.CreateOutput(pool, entriesPath, run.EntryCodec)
	if err != nil {
		return err
	}
	ins := filestore.NewBackInserter(out, chunkElems)
	builder := sparseindex.NewBuilder(granularity)

	emit := func(e chesskey.Entry) error {
		builder.Observe(e.Key)
		return ins.Append(e)
	}

	it := span.Sequential(chunkElems)
	var pending chesskey.Entry
	havePending := false
	for {
		e, ok := it.Next()
		if !ok {
			break
		}
		if havePending && chesskey.EqualFull(pending.Key, e.Key) {
			combined, err := pending.Combine(e)
			if err != nil {
				return fmt.Errorf("combine merged entries: %w", err)
			}
			pending = combined
			continue
		}
		if havePending {
			if err := emit(pending); err != nil {
				return err
			}
		}
		pending = e
		havePending = true
	}
	if havePending {
		if err := emit(pending); err != nil {
			return err
		}
	}
	if err := ins.Close(); err != nil {
		return err
	}
	if err := out.Sync(); err != nil {
		return err
	}

	idx := builder.Build()
	idxOut, err := filestore.CreateOutput(pool, indexPath, indexCodec)
	if err != nil {
		return err
	}
	if err := idxOut.WriteAll(idx.ToRecords()); err != nil {
		return err
	}
	return idxOut.Sync()
}

// atomicPlace moves srcPath to dstPath via a temp-file-plus-rename write
// (natefinch/atomic), so a crash mid-compaction never leaves dstPath
// holding a half-written merge result.
func atomicPlace(pool *filestore.Pool, srcPath, dstPath string) error {
	pool.Forget(srcPath)
	pool.Forget(dstPath)
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open %q: %w", srcPath, err)
	}
	defer src.Close()
	if err := atomic.WriteFile(dstPath, src); err != nil {
		return fmt.Errorf("atomic write %q: %w", dstPath, err)
	}
	return os.Remove(srcPath)
}
