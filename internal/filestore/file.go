package filestore

import (
	"fmt"
	"io"
	"os"
)

// Codec is the fixed-size record (de)serialization a File needs: every
// record occupies exactly Size() bytes.
type Codec[T any] struct {
	Size   int
	Encode func(T) []byte
	Decode func([]byte) T
}

// ImmutableBinaryFile is a read-only view over a file of fixed-size
// records, backed by a pooled handle. "Immutable" reflects run-file
// lifecycle, not an OS-level guarantee.
type ImmutableBinaryFile[T any] struct {
	pool  *Pool
	path  string
	codec Codec[T]
}

// OpenImmutable opens path (must already exist) for reading.
func OpenImmutable[T any](pool *Pool, path string, codec Codec[T]) (*ImmutableBinaryFile[T], error) {
	if _, err := pool.Acquire(path, ModeRead); err != nil {
		return nil, err
	}
	return &ImmutableBinaryFile[T]{pool: pool, path: path, codec: codec}, nil
}

// Len returns the number of records in the file.
func (f *ImmutableBinaryFile[T]) Len() (int, error) {
	n, err := f.SizeBytes()
	if err != nil {
		return 0, err
	}
	if n%int64(f.codec.Size) != 0 {
		return 0, fmt.Errorf("filestore: %q size %d is not a multiple of record size %d", f.path, n, f.codec.Size)
	}
	return int(n / int64(f.codec.Size)), nil
}

// SizeBytes returns the file size in bytes.
func (f *ImmutableBinaryFile[T]) SizeBytes() (int64, error) {
	h, err := f.pool.Acquire(f.path, ModeRead)
	if err != nil {
		return 0, err
	}
	fi, err := h.Stat()
	if err != nil {
		return 0, fmt.Errorf("filestore: stat %q: %w", f.path, err)
	}
	return fi.Size(), nil
}

// ReadAt reads the record at ordinal index i.
func (f *ImmutableBinaryFile[T]) ReadAt(i int) (T, error) {
	var zero T
	h, err := f.pool.Acquire(f.path, ModeRead)
	if err != nil {
		return zero, err
	}
	buf := make([]byte, f.codec.Size)
	n, err := h.ReadAt(buf, int64(i)*int64(f.codec.Size))
	if err != nil && !(err == io.EOF && n == f.codec.Size) {
		return zero, fmt.Errorf("filestore: read record %d of %q: %w", i, f.path, err)
	}
	if n != f.codec.Size {
		return zero, fmt.Errorf("filestore: short read of record %d of %q: got %d want %d bytes", i, f.path, n, f.codec.Size)
	}
	return f.codec.Decode(buf), nil
}

// ReadAll reads every record into dst, which must have exactly Len()
// capacity available from index 0.
func (f *ImmutableBinaryFile[T]) ReadAll(dst []T) error {
	n, err := f.Len()
	if err != nil {
		return err
	}
	if len(dst) != n {
		return fmt.Errorf("filestore: ReadAll dst length %d does not match record count %d", len(dst), n)
	}
	h, err := f.pool.Acquire(f.path, ModeRead)
	if err != nil {
		return err
	}
	buf := make([]byte, n*f.codec.Size)
	if _, err := io.ReadFull(io.NewSectionReader(h, 0, int64(len(buf))), buf); err != nil {
		return fmt.Errorf("filestore: read all of %q: %w", f.path, err)
	}
	for i := 0; i < n; i++ {
		dst[i] = f.codec.Decode(buf[i*f.codec.Size : (i+1)*f.codec.Size])
	}
	return nil
}

// Path returns the file's path on disk.
func (f *ImmutableBinaryFile[T]) Path() string { return f.path }

// BinaryOutputFile is an append-oriented fixed-size-record writer, the
// target of a BackInserter or of a direct bulk write (store_ordered).
type BinaryOutputFile[T any] struct {
	pool  *Pool
	path  string
	codec Codec[T]
}

// CreateOutput opens path for writing, truncating any existing content.
func CreateOutput[T any](pool *Pool, path string, codec Codec[T]) (*BinaryOutputFile[T], error) {
	pool.Forget(path) // ensure a fresh handle truncates rather than appending
	if _, err := pool.Acquire(path, ModeWrite); err != nil {
		return nil, err
	}
	return &BinaryOutputFile[T]{pool: pool, path: path, codec: codec}, nil
}

// WriteAll appends every record in values, in order.
func (f *BinaryOutputFile[T]) WriteAll(values []T) error {
	h, err := f.pool.Acquire(f.path, ModeWrite)
	if err != nil {
		return err
	}
	buf := make([]byte, 0, len(values)*f.codec.Size)
	for _, v := range values {
		buf = append(buf, f.codec.Encode(v)...)
	}
	if _, err := h.Write(buf); err != nil {
		return fmt.Errorf("filestore: write %q: %w", f.path, err)
	}
	return nil
}

// Sync flushes the underlying handle to stable storage.
func (f *BinaryOutputFile[T]) Sync() error {
	h, err := f.pool.Acquire(f.path, ModeWrite)
	if err != nil {
		return err
	}
	if err := h.Sync(); err != nil {
		return fmt.Errorf("filestore: sync %q: %w", f.path, err)
	}
	return nil
}

// Path returns the file's path on disk.
func (f *BinaryOutputFile[T]) Path() string { return f.path }

// RemoveFile closes (forgetting it from the pool) and deletes path.
func RemoveFile(pool *Pool, path string) error {
	pool.Forget(path)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("filestore: remove %q: %w", path, err)
	}
	return nil
}

// RenameFile atomically renames oldPath to newPath, forgetting oldPath's
// pool entry so a later Acquire on newPath opens a fresh handle.
func RenameFile(pool *Pool, oldPath, newPath string) error {
	pool.Forget(oldPath)
	pool.Forget(newPath)
	if err := os.Rename(oldPath, newPath); err != nil {
		return fmt.Errorf("filestore: rename %q to %q: %w", oldPath, newPath, err)
	}
	return nil
}
