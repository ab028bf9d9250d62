// Package chessdb is the position-indexed chess game database: import,
// merge and query a position key/value store sharded into
// chesskey.NumLevels levels (human/engine/server), each backed by an
// internal/partition.Partition of run files plus an internal/headerstore
// side store of game headers.
package chessdb

import (
	"os"

	jsoniter "github.com/json-iterator/go"

	"github.com/chessdb/chessdb/chesskey"
	"github.com/chessdb/chessdb/internal/dberr"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// LevelStats is one level's running import totals.
type LevelStats struct {
	NumGames     uint64 `json:"num_games"`
	NumPositions uint64 `json:"num_positions"`
	SkippedGames uint64 `json:"skipped_games"`
}

// Stats is a database's full set of per-level totals, persisted as
// data_dir/STATS on every Flush.
type Stats struct {
	Levels [chesskey.NumLevels]LevelStats `json:"levels"`
}

func statsPath(dataDir string) string {
	return dataDir + "/STATS"
}

func readStats(dataDir string) (Stats, error) {
	b, err := os.ReadFile(statsPath(dataDir))
	if os.IsNotExist(err) {
		return Stats{}, nil
	}
	if err != nil {
		return Stats{}, dberr.Wrap(dberr.IO, "chessdb.readStats", statsPath(dataDir), err)
	}
	var s Stats
	if err := json.Unmarshal(b, &s); err != nil {
		return Stats{}, dberr.Wrap(dberr.InvalidManifest, "chessdb.readStats", statsPath(dataDir), err)
	}
	return s, nil
}

func writeStats(dataDir string, s Stats) error {
	b, err := json.Marshal(s)
	if err != nil {
		return dberr.Wrap(dberr.Internal, "chessdb.writeStats", dataDir, err)
	}
	if err := os.WriteFile(statsPath(dataDir), b, 0o644); err != nil {
		return dberr.Wrap(dberr.IO, "chessdb.writeStats", statsPath(dataDir), err)
	}
	return nil
}
