package chessdb

import (
	"bytes"
	"fmt"
	"os"

	"github.com/natefinch/atomic"

	"github.com/chessdb/chessdb/internal/dberr"
)

// manifestSchema names the on-disk layout this build writes and expects;
// bumping it forces every existing database to be re-opened with a
// matching build rather than silently misreading incompatible files.
const manifestSchema = "chessdb-position-index"

// manifestVersion is the manifest's own format version, independent of
// config.ConfigVersion.
const manifestVersion = 1

// manifest is persisted as data_dir/MANIFEST: a small JSON document
// recording what produced the database directory, so Open can refuse to
// touch a directory written by an incompatible build before a single run
// file is misread.
type manifest struct {
	Schema     string `json:"schema"`
	Version    int    `json:"version"`
	Endianness string `json:"endianness"`
}

// manifestEndianness is fixed: every on-disk integer chessdb writes is
// little-endian (chesskey.Key.Bytes, headerstore record fields), matching
// the wire format, independent of the host's native byte order.
const manifestEndianness = "little"

func newManifest() manifest {
	return manifest{Schema: manifestSchema, Version: manifestVersion, Endianness: manifestEndianness}
}

func manifestPath(dataDir string) string {
	return dataDir + "/MANIFEST"
}

// writeManifest atomically (re)writes dataDir's manifest.
func writeManifest(dataDir string) error {
	b, err := json.Marshal(newManifest())
	if err != nil {
		return dberr.Wrap(dberr.Internal, "chessdb.writeManifest", dataDir, err)
	}
	if err := atomic.WriteFile(manifestPath(dataDir), bytes.NewReader(b)); err != nil {
		return dberr.Wrap(dberr.IO, "chessdb.writeManifest", dataDir, err)
	}
	return nil
}

// readOrCreateManifest loads dataDir's manifest, creating one from
// newManifest() if dataDir has no MANIFEST file yet (a brand-new
// database, or any directory without one), and
// validating an existing one against the schema/version/endianness this
// build understands.
func readOrCreateManifest(dataDir string) error {
	path := manifestPath(dataDir)
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return writeManifest(dataDir)
	}
	if err != nil {
		return dberr.Wrap(dberr.IO, "chessdb.readOrCreateManifest", path, err)
	}

	var m manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return dberr.Wrap(dberr.InvalidManifest, "chessdb.readOrCreateManifest", path, err)
	}
	if m.Schema != manifestSchema {
		return dberr.New(dberr.SchemaMismatch, "chessdb.readOrCreateManifest", fmt.Sprintf("%s: got schema %q, want %q", path, m.Schema, manifestSchema))
	}
	if m.Version != manifestVersion {
		return dberr.New(dberr.VersionMismatch, "chessdb.readOrCreateManifest", fmt.Sprintf("%s: got version %d, want %d", path, m.Version, manifestVersion))
	}
	if m.Endianness != manifestEndianness {
		return dberr.New(dberr.EndiannessMismatch, "chessdb.readOrCreateManifest", fmt.Sprintf("%s: got endianness %q, want %q", path, m.Endianness, manifestEndianness))
	}
	return nil
}
