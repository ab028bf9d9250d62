package headerstore

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/chessdb/chessdb/internal/filestore"
)

// Store is one level's game-header side store: an append-only blob of
// PackedGameHeader records (headerPath) plus a dense array of 64-bit
// byte offsets into it (indexPath), one per game in import order. Append
// is serialized so concurrent importers for the same level receive
// strictly increasing game offsets.
type Store struct {
	pool       *filestore.Pool
	headerPath string
	indexPath  string

	mu        sync.Mutex
	blobSize  int64
	numGames  int64
}

// Open attaches to (creating if absent) the header blob and index files
// at headerPath/indexPath.
func Open(pool *filestore.Pool, headerPath, indexPath string) (*Store, error) {
	hf, err := pool.Acquire(headerPath, filestore.ModeReadWrite)
	if err != nil {
		return nil, fmt.Errorf("headerstore: open %q: %w", headerPath, err)
	}
	fi, err := hf.Stat()
	if err != nil {
		return nil, fmt.Errorf("headerstore: stat %q: %w", headerPath, err)
	}

	idxf, err := pool.Acquire(indexPath, filestore.ModeReadWrite)
	if err != nil {
		return nil, fmt.Errorf("headerstore: open %q: %w", indexPath, err)
	}
	idxFi, err := idxf.Stat()
	if err != nil {
		return nil, fmt.Errorf("headerstore: stat %q: %w", indexPath, err)
	}
	if idxFi.Size()%8 != 0 {
		return nil, fmt.Errorf("headerstore: index file %q size %d is not a multiple of 8", indexPath, idxFi.Size())
	}

	return &Store{
		pool:       pool,
		headerPath: headerPath,
		indexPath:  indexPath,
		blobSize:   fi.Size(),
		numGames:   idxFi.Size() / 8,
	}, nil
}

// Append serializes h, writes it to the blob and records its offset in
// the index, returning the game's assigned offset into the blob (the
// value later embedded in every Entry emitted for this game) and its
// game index (ordinal position in this level's store).
func (s *Store) Append(h GameHeader) (offset int64, gameIndex int64, err error) {
	buf, err := Encode(h)
	if err != nil {
		return 0, 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	hf, err := s.pool.Acquire(s.headerPath, filestore.ModeReadWrite)
	if err != nil {
		return 0, 0, err
	}
	offset = s.blobSize
	if _, err := hf.WriteAt(buf, offset); err != nil {
		return 0, 0, fmt.Errorf("headerstore: write header blob %q: %w", s.headerPath, err)
	}
	s.blobSize += int64(len(buf))

	idxf, err := s.pool.Acquire(s.indexPath, filestore.ModeReadWrite)
	if err != nil {
		return 0, 0, err
	}
	gameIndex = s.numGames
	var offBuf [8]byte
	binary.LittleEndian.PutUint64(offBuf[:], uint64(offset))
	if _, err := idxf.WriteAt(offBuf[:], gameIndex*8); err != nil {
		return 0, 0, fmt.Errorf("headerstore: write index %q: %w", s.indexPath, err)
	}
	s.numGames++

	return offset, gameIndex, nil
}

// NumGames returns the number of games appended to this store.
func (s *Store) NumGames() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.numGames
}

// ByOffset reads and decodes the header record starting at the given
// blob byte offset.
func (s *Store) ByOffset(offset int64) (GameHeader, error) {
	hf, err := s.pool.Acquire(s.headerPath, filestore.ModeReadWrite)
	if err != nil {
		return GameHeader{}, err
	}
	head := make([]byte, 10)
	if _, err := hf.ReadAt(head, offset); err != nil {
		return GameHeader{}, fmt.Errorf("headerstore: read record header at offset %d: %w", offset, err)
	}
	size, err := PeekSize(head)
	if err != nil {
		return GameHeader{}, err
	}
	buf := make([]byte, size)
	if _, err := hf.ReadAt(buf, offset); err != nil {
		return GameHeader{}, fmt.Errorf("headerstore: read record at offset %d: %w", offset, err)
	}
	return Decode(buf)
}

// ByGameIndex looks up a game's blob offset via the index file, then
// decodes its header.
func (s *Store) ByGameIndex(gameIndex int64) (GameHeader, error) {
	idxf, err := s.pool.Acquire(s.indexPath, filestore.ModeReadWrite)
	if err != nil {
		return GameHeader{}, err
	}
	var offBuf [8]byte
	if _, err := idxf.ReadAt(offBuf[:], gameIndex*8); err != nil {
		return GameHeader{}, fmt.Errorf("headerstore: read index entry %d: %w", gameIndex, err)
	}
	return s.ByOffset(int64(binary.LittleEndian.Uint64(offBuf[:])))
}

// Clear truncates both files and resets bookkeeping.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := filestore.RemoveFile(s.pool, s.headerPath); err != nil {
		return err
	}
	if err := filestore.RemoveFile(s.pool, s.indexPath); err != nil {
		return err
	}
	if _, err := s.pool.Acquire(s.headerPath, filestore.ModeReadWrite); err != nil {
		return err
	}
	if _, err := s.pool.Acquire(s.indexPath, filestore.ModeReadWrite); err != nil {
		return err
	}
	s.blobSize = 0
	s.numGames = 0
	return nil
}

// Flush syncs both backing files to stable storage.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	hf, err := s.pool.Acquire(s.headerPath, filestore.ModeReadWrite)
	if err != nil {
		return err
	}
	if err := hf.Sync(); err != nil {
		return fmt.Errorf("headerstore: sync %q: %w", s.headerPath, err)
	}
	idxf, err := s.pool.Acquire(s.indexPath, filestore.ModeReadWrite)
	if err != nil {
		return err
	}
	if err := idxf.Sync(); err != nil {
		return fmt.Errorf("headerstore: sync %q: %w", s.indexPath, err)
	}
	return nil
}
