package chessdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/chessdb/chessdb/chesskey"
	"github.com/chessdb/chessdb/chessmodel"
	"github.com/chessdb/chessdb/internal/config"
	"github.com/chessdb/chessdb/internal/dberr"
	"github.com/chessdb/chessdb/internal/filestore"
	"github.com/chessdb/chessdb/internal/headerstore"
	"github.com/chessdb/chessdb/internal/metrics"
	"github.com/chessdb/chessdb/internal/partition"
	"github.com/chessdb/chessdb/internal/pipeline"
	"github.com/chessdb/chessdb/internal/queryengine"
	"github.com/chessdb/chessdb/internal/queryjson"
	"github.com/chessdb/chessdb/internal/run"
	"github.com/chessdb/chessdb/internal/runmeta"
)

// entrySize is sizeof(chesskey.Entry) serialized (Entry.Bytes' length),
// the unit Import's batch-capacity estimate (spec §4.10 step 1) divides
// the memory budget by.
const entrySize = 24

// pipelineQueueCapacity bounds how many unsorted batches may be in
// flight between the producer and the sort workers at once.
const pipelineQueueCapacity = 4

// pipelineSlack is the number of batch slots reserved on top of one per
// sort worker: one for the batch the producer is actively filling and one
// sitting in the write queue, so a generous memory_budget doesn't starve down to a
// single-game batch the moment SortWorkers grows.
const pipelineSlack = 2

// Database is the full position-indexed chess game database: one
// internal/partition.Partition and one internal/headerstore.Store per
// chesskey.Level, sharing a single file pool (spec §4.10).
type Database struct {
	dataDir string
	cfg     config.Config
	factory chessmodel.Factory
	pool    *filestore.Pool

	partitions [chesskey.NumLevels]*partition.Partition
	headers    [chesskey.NumLevels]*headerstore.Store

	stats Stats
}

func levelDir(dataDir string, level chesskey.Level) string {
	return fmt.Sprintf("%s/%s", dataDir, level.String())
}

// Open attaches to (creating if absent) the database rooted at
// cfg.DataDir: validates its manifest, then loads every level's
// partition, header store and persisted stats.
func Open(cfg config.Config, factory chessmodel.Factory) (*Database, error) {
	if err := cfg.Validate(); err != nil {
		return nil, dberr.Wrap(dberr.InvalidManifest, "chessdb.Open", cfg.DataDir, err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, dberr.Wrap(dberr.IO, "chessdb.Open", cfg.DataDir, err)
	}
	if err := readOrCreateManifest(cfg.DataDir); err != nil {
		return nil, err
	}

	pool := filestore.NewPool(cfg.FilePoolCapacity)
	db := &Database{dataDir: cfg.DataDir, cfg: cfg, factory: factory, pool: pool}

	for lvl := chesskey.Level(0); int(lvl) < chesskey.NumLevels; lvl++ {
		dir := levelDir(cfg.DataDir, lvl)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			pool.Close()
			return nil, dberr.Wrap(dberr.IO, "chessdb.Open", dir, err)
		}
		part, err := partition.Open(pool, dir, cfg.IndexGranularity)
		if err != nil {
			pool.Close()
			return nil, dberr.Wrap(dberr.IO, "chessdb.Open", dir, err)
		}
		store, err := headerstore.Open(pool, dir+"/headers", dir+"/headers.idx")
		if err != nil {
			pool.Close()
			return nil, dberr.Wrap(dberr.IO, "chessdb.Open", dir, err)
		}
		db.partitions[lvl] = part
		db.headers[lvl] = store
	}

	stats, err := readStats(cfg.DataDir)
	if err != nil {
		pool.Close()
		return nil, err
	}
	db.stats = stats
	return db, nil
}

// Close releases every pooled file handle.
func (db *Database) Close() error {
	return db.pool.Close()
}

// Stats returns a snapshot of the database's current per-level totals.
func (db *Database) Stats() Stats {
	return db.stats
}

func computeBatchCapacity(memoryBudget int64, sortWorkers int) int {
	slots := int64(sortWorkers) + pipelineSlack
	capacity := memoryBudget / (slots * entrySize)
	if capacity < 1 {
		capacity = 1
	}
	return int(capacity)
}

func headerFromTags(tags chessmodel.GameTags, result chesskey.Result, plyCount int) headerstore.GameHeader {
	return headerstore.GameHeader{
		Result:   result,
		Date:     headerstore.Date{Year: uint16(tags.Year), Month: uint8(tags.Month), Day: uint8(tags.Day)},
		ECO:      tags.ECO,
		PlyCount: plyCount,
		Event:    tags.Event,
		White:    tags.White,
		Black:    tags.Black,
	}
}

// Import walks every game yielded by sources into level, per spec §4.10:
// games with no usable result tag or an unparseable start position are
// skipped and counted; a game whose move list hits a SAN parse failure
// partway through stops being walked there, keeping the position trail
// accumulated up to that point. All entries go through a freshly
// constructed pipeline.Pipeline, since Pipeline.WaitForCompletion
// permanently closes its sort queue.
func (db *Database) Import(ctx context.Context, sources []chessmodel.GameSource, level chesskey.Level, memoryBudget int64, progress filestore.ProgressFunc) error {
	part := db.partitions[level]
	store := db.headers[level]

	batchCapacity := computeBatchCapacity(memoryBudget, db.cfg.SortWorkers)
	buffers := pipeline.NewBufferPool(batchCapacity)
	pl := pipeline.New(ctx, db.pool, levelDir(db.dataDir, level), db.cfg.IndexGranularity, db.cfg.SortWorkers, pipelineQueueCapacity, buffers)

	var local LevelStats
	batch := buffers.Get()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		part.StoreUnordered(pl, batch)
		batch = buffers.Get()
	}

	for _, src := range sources {
		for {
			game, err := src.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				pl.WaitForCompletion() //nolint:errcheck // best-effort drain before surfacing the source error
				return dberr.Wrap(dberr.IO, "chessdb.Import", "", err)
			}

			added, skipReason, err := db.importGame(store, game, level, &batch)
			if err != nil {
				pl.WaitForCompletion() //nolint:errcheck // a header-store write failure leaves in-memory stats disagreeing with disk; fatal per spec §7
				return err
			}
			if skipReason != "" {
				local.SkippedGames++
				metrics.GamesRejected.WithLabelValues(level.String(), skipReason).Inc()
				continue
			}

			local.NumGames++
			local.NumPositions += uint64(added)
			metrics.GamesImported.WithLabelValues(level.String()).Inc()
			metrics.PositionsIndexed.WithLabelValues(level.String()).Add(float64(added))

			if progress != nil {
				progress(filestore.Progress{WorkDone: int64(local.NumGames + local.SkippedGames)})
			}

			if len(batch) >= batchCapacity {
				flush()
			}
		}
	}
	flush()

	if err := pl.WaitForCompletion(); err != nil {
		return dberr.Wrap(dberr.IO, "chessdb.Import", levelDir(db.dataDir, level), err)
	}
	if err := part.CollectFutureFiles(); err != nil {
		return dberr.Wrap(dberr.Internal, "chessdb.Import", levelDir(db.dataDir, level), err)
	}

	db.stats.Levels[level].NumGames += local.NumGames
	db.stats.Levels[level].NumPositions += local.NumPositions
	db.stats.Levels[level].SkippedGames += local.SkippedGames
	return writeStats(db.dataDir, db.stats)
}

// importGame appends game's header (when it has a usable result and a
// parseable start position) and emits one Entry per position walked,
// appending them to *batch. skipReason is non-empty (and added is 0) when
// the game could not be stored at all.
func (db *Database) importGame(store *headerstore.Store, game chessmodel.Game, level chesskey.Level, batch *[]chesskey.Entry) (added int, skipReason string, err error) {
	result, ok := chesskey.ResultFromTag(game.Tags.ResultTag)
	if !ok {
		return 0, "no_result", nil
	}

	var pos chessmodel.Position
	if game.StartFEN == "" {
		pos = db.factory.StartPosition()
	} else {
		pos, err = db.factory.FromFEN(game.StartFEN)
		if err != nil {
			return 0, "invalid_fen", nil
		}
	}

	offset, _, err := store.Append(headerFromTags(game.Tags, result, len(game.Moves)))
	if err != nil {
		return 0, "", dberr.Wrap(dberr.IO, "chessdb.importGame", "", err)
	}

	rmove := chesskey.NullReverseMove
	key := chesskey.NewKeyWithMetadata(pos.Hash(), rmove, level, result)
	entry, err := chesskey.NewEntry(key, uint64(offset))
	if err != nil {
		return 0, "", dberr.Wrap(dberr.Internal, "chessdb.importGame", "", err)
	}
	*batch = append(*batch, entry)
	added++

	for _, san := range game.Moves {
		mv, ok := pos.SANToMove(san)
		if !ok {
			break // stop walking this game; the trail so far is kept
		}
		rm := pos.DoMove(mv)
		rmove = rm.Fields().Pack()

		key := chesskey.NewKeyWithMetadata(pos.Hash(), rmove, level, result)
		entry, err := chesskey.NewEntry(key, uint64(offset))
		if err != nil {
			return 0, "", dberr.Wrap(dberr.Internal, "chessdb.importGame", "", err)
		}
		*batch = append(*batch, entry)
		added++
	}
	return added, "", nil
}

// MergeAll compacts level's partition into a single run, delegating to
// internal/partition.Partition.MergeAll with a progress adapter and a
// latency observation.
func (db *Database) MergeAll(level chesskey.Level, progress filestore.ProgressFunc) error {
	start := time.Now()
	defer func() { metrics.MergeLatency.WithLabelValues(level.String()).Observe(time.Since(start).Seconds()) }()

	if err := db.partitions[level].MergeAll(db.cfg.MemoryBudgetBytes, progress); err != nil {
		return dberr.Wrap(dberr.IO, "chessdb.MergeAll", levelDir(db.dataDir, level), err)
	}
	return nil
}

// ExecuteQuery expands req against factory, dispatches it to every level's
// partition (each query carries the level it counts, so partitions of
// other levels match nothing for it) and folds each level's ResultSet
// together before shaping the JSON response, resolving
// first-game headers per level via the matching headerstore.Store.
func (db *Database) ExecuteQuery(req *queryjson.Request) (*queryjson.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	queries, err := queryjson.Expand(db.factory, req)
	if err != nil {
		return nil, err
	}
	sorted, perm := queryjson.SortStable(queries)
	selects := req.Selects()

	merged := queryengine.NewResultSet(len(sorted), selects)
	for lvl := chesskey.Level(0); int(lvl) < chesskey.NumLevels; lvl++ {
		start := time.Now()
		rs, err := db.partitions[lvl].ExecuteQuery(selects, sorted)
		for sel := range selects.Selects {
			metrics.QueryLatency.WithLabelValues(sel.String()).Observe(time.Since(start).Seconds())
			metrics.QueriesServed.WithLabelValues(sel.String()).Inc()
		}
		if err != nil {
			return nil, dberr.Wrap(dberr.IO, "chessdb.ExecuteQuery", levelDir(db.dataDir, lvl), err)
		}
		for i, byselect := range rs.Stats {
			for sel, stats := range byselect {
				merged.Stats[i][sel] = merged.Stats[i][sel].Merge(stats)
			}
		}
	}

	results := queryjson.Unsort(merged, perm)
	lookup := func(level chesskey.Level, offset uint64) (headerstore.GameHeader, error) {
		return db.headers[level].ByOffset(int64(offset))
	}
	return queryjson.BuildResponse(req, queries, results, lookup)
}

// Clear empties every level's partition and header store, discarding all
// imported data but keeping the database's directory and manifest.
func (db *Database) Clear() error {
	for lvl := chesskey.Level(0); int(lvl) < chesskey.NumLevels; lvl++ {
		if err := db.headers[lvl].Clear(); err != nil {
			return dberr.Wrap(dberr.IO, "chessdb.Clear", levelDir(db.dataDir, lvl), err)
		}
		dir := levelDir(db.dataDir, lvl)
		for _, r := range db.partitions[lvl].Runs() {
			if err := r.Remove(); err != nil {
				return dberr.Wrap(dberr.IO, "chessdb.Clear", dir, err)
			}
		}
		part, err := partition.Open(db.pool, dir, db.cfg.IndexGranularity)
		if err != nil {
			return dberr.Wrap(dberr.IO, "chessdb.Clear", dir, err)
		}
		db.partitions[lvl] = part
	}
	db.stats = Stats{}
	return writeStats(db.dataDir, db.stats)
}

// Flush syncs every level's header store to stable storage and persists
// the current stats and manifest.
func (db *Database) Flush() error {
	for lvl := chesskey.Level(0); int(lvl) < chesskey.NumLevels; lvl++ {
		if err := db.headers[lvl].Flush(); err != nil {
			return dberr.Wrap(dberr.IO, "chessdb.Flush", levelDir(db.dataDir, lvl), err)
		}
	}
	if err := writeStats(db.dataDir, db.stats); err != nil {
		return err
	}
	return writeManifest(db.dataDir)
}

// Verify re-opens every level's partition from its on-disk run files and
// reports a mismatch between the stats' game count and the header store's
// game count, or between a run's recorded meta entry count and its actual
// length, surfacing corruption without requiring a query. It does not
// check entry order, duplicates or sparse-index samples.
func (db *Database) Verify() error {
	for lvl := chesskey.Level(0); int(lvl) < chesskey.NumLevels; lvl++ {
		dir := levelDir(db.dataDir, lvl)
		part, err := partition.Open(db.pool, dir, db.cfg.IndexGranularity)
		if err != nil {
			return dberr.Wrap(dberr.IO, "chessdb.Verify", dir, err)
		}
		numGames := db.headers[lvl].NumGames()
		if db.stats.Levels[lvl].NumGames != uint64(numGames) {
			return dberr.New(dberr.Assertion, "chessdb.Verify", fmt.Sprintf("%s: stats say %d games, header store has %d", dir, db.stats.Levels[lvl].NumGames, numGames))
		}
		for _, r := range part.Runs() {
			if err := verifyRunMeta(r, dir); err != nil {
				return err
			}
		}
		db.partitions[lvl] = part
	}
	return nil
}

// verifyRunMeta cross-checks a run's runmeta sidecar (when present) against
// its actual entry count, catching a sidecar left stale by a bug in a
// writer that didn't go through run.Write.
func verifyRunMeta(r *run.Run, dir string) error {
	meta, err := r.Meta()
	if err != nil {
		return dberr.Wrap(dberr.IO, "chessdb.Verify", dir, err)
	}
	recorded, ok := meta.GetUint64(runmeta.KeyNumEntries)
	if !ok {
		return nil
	}
	n, err := r.Len()
	if err != nil {
		return dberr.Wrap(dberr.IO, "chessdb.Verify", dir, err)
	}
	if recorded != uint64(n) {
		return dberr.New(dberr.Assertion, "chessdb.Verify", fmt.Sprintf("%s: run %d meta says %d entries, file has %d", dir, r.ID, recorded, n))
	}
	return nil
}

// Export writes a consistent, compacted snapshot of level's partition
// into destDir, without mutating the source partition (spec §4.8's
// replicate_merge_all, promoted to a CLI-reachable operation).
func (db *Database) Export(level chesskey.Level, destDir string, memoryBudget int64, progress filestore.ProgressFunc) error {
	if err := db.partitions[level].ReplicateMergeAll(destDir, memoryBudget, progress); err != nil {
		return dberr.Wrap(dberr.IO, "chessdb.Export", destDir, err)
	}
	return nil
}
