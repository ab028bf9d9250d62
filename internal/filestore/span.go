package filestore

import "fmt"

// ImmutableSpan is a read-only logical view over a contiguous range of
// records in an ImmutableBinaryFile, supporting both a buffered
// sequential scan and single-element random access with last-read
// caching.
type ImmutableSpan[T any] struct {
	file  *ImmutableBinaryFile[T]
	begin int
	end   int // exclusive
}

// NewSpan wraps the full file as a span.
func NewSpan[T any](f *ImmutableBinaryFile[T]) (ImmutableSpan[T], error) {
	n, err := f.Len()
	if err != nil {
		return ImmutableSpan[T]{}, err
	}
	return ImmutableSpan[T]{file: f, begin: 0, end: n}, nil
}

// NewSubSpan wraps [begin, end) of f.
func NewSubSpan[T any](f *ImmutableBinaryFile[T], begin, end int) ImmutableSpan[T] {
	return ImmutableSpan[T]{file: f, begin: begin, end: end}
}

// Len returns the number of records in the span.
func (s ImmutableSpan[T]) Len() int { return s.end - s.begin }

// SizeBytes returns the span's size in bytes.
func (s ImmutableSpan[T]) SizeBytes() int { return s.Len() * s.file.codec.Size }

// At reads the i-th record of the span (0-based, relative to the span).
func (s ImmutableSpan[T]) At(i int) (T, error) {
	var zero T
	if i < 0 || i >= s.Len() {
		return zero, fmt.Errorf("filestore: span index %d out of range [0,%d)", i, s.Len())
	}
	return s.file.ReadAt(s.begin + i)
}

// ReadAll reads every record in the span into dst.
func (s ImmutableSpan[T]) ReadAll(dst []T) error {
	if len(dst) != s.Len() {
		return fmt.Errorf("filestore: ReadAll dst length %d does not match span length %d", len(dst), s.Len())
	}
	for i := range dst {
		v, err := s.file.ReadAt(s.begin + i)
		if err != nil {
			return err
		}
		dst[i] = v
	}
	return nil
}

// SequentialIterator streams the span in chunks of chunkSize, refilling
// an owned buffer from the file rather than allocating per element.
type SequentialIterator[T any] struct {
	span      ImmutableSpan[T]
	chunkSize int
	buf       []T
	bufPos    int
	nextIdx   int
}

// Sequential returns a chunked sequential iterator over the span.
func (s ImmutableSpan[T]) Sequential(chunkSize int) *SequentialIterator[T] {
	if chunkSize <= 0 {
		chunkSize = 1024
	}
	return &SequentialIterator[T]{span: s, chunkSize: chunkSize, bufPos: -1}
}

// Next returns the next element and true, or the zero value and false at
// end of span.
func (it *SequentialIterator[T]) Next() (T, bool) {
	var zero T
	if it.bufPos < 0 || it.bufPos >= len(it.buf) {
		if it.nextIdx >= it.span.Len() {
			return zero, false
		}
		n := it.chunkSize
		if remaining := it.span.Len() - it.nextIdx; n > remaining {
			n = remaining
		}
		it.buf = make([]T, n)
		for i := 0; i < n; i++ {
			v, err := it.span.At(it.nextIdx + i)
			if err != nil {
				return zero, false
			}
			it.buf[i] = v
		}
		it.nextIdx += n
		it.bufPos = 0
	}
	v := it.buf[it.bufPos]
	it.bufPos++
	return v, true
}

// RandomAccessIterator reads single elements on demand, caching only the
// last record read so repeated re-reads of the same index are free.
type RandomAccessIterator[T any] struct {
	span      ImmutableSpan[T]
	lastIdx   int
	lastVal   T
	lastValid bool
}

// Random returns a random-access iterator over the span.
func (s ImmutableSpan[T]) Random() *RandomAccessIterator[T] {
	return &RandomAccessIterator[T]{span: s, lastIdx: -1}
}

// At returns the i-th element of the span, served from the last-read
// cache when i matches the previous access.
func (it *RandomAccessIterator[T]) At(i int) (T, error) {
	if it.lastValid && it.lastIdx == i {
		return it.lastVal, nil
	}
	v, err := it.span.At(i)
	if err != nil {
		var zero T
		return zero, err
	}
	it.lastIdx, it.lastVal, it.lastValid = i, v, true
	return v, nil
}
