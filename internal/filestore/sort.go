package filestore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Sort performs a stable (or unstable, per stable) external sort of the
// len(values)-element slice: it is chunked to fit memoryBudget, each
// chunk sorted in RAM and spilled to a temporary run under tmpDir, then
// the runs are external-merged into outPath.
func Sort[T any](pool *Pool, values []T, tmpDir, outPath string, codec Codec[T], less Less[T], memoryBudget int64, stable bool, progress ProgressFunc) (*ImmutableBinaryFile[T], error) {
	if progress == nil {
		progress = noopProgress
	}
	chunkElems := bufferElems(memoryBudget, 1, codec.Size)
	if chunkElems < 1 {
		chunkElems = 1
	}

	total := int64(len(values)) * 2 // one unit for the in-RAM sort read, one for the merge write
	done := int64(0)
	report := func(delta int64) {
		done += delta
		progress(Progress{WorkDone: done, WorkTotal: total})
	}

	if len(values) == 0 {
		out, err := CreateOutput(pool, outPath, codec)
		if err != nil {
			return nil, err
		}
		if err := out.Sync(); err != nil {
			return nil, err
		}
		return OpenImmutable(pool, outPath, codec)
	}

	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: mkdir %q: %w", tmpDir, err)
	}

	var runSpans []ImmutableSpan[T]
	for lo := 0; lo < len(values); lo += chunkElems {
		hi := lo + chunkElems
		if hi > len(values) {
			hi = len(values)
		}
		chunk := append([]T(nil), values[lo:hi]...)
		sortSlice(chunk, less, stable)
		report(int64(len(chunk)))

		runPath := filepath.Join(tmpDir, fmt.Sprintf("sortrun_%d", lo))
		runFile, err := CreateOutput(pool, runPath, codec)
		if err != nil {
			return nil, err
		}
		if err := runFile.WriteAll(chunk); err != nil {
			return nil, err
		}
		if err := runFile.Sync(); err != nil {
			return nil, err
		}
		immut, err := OpenImmutable(pool, runPath, codec)
		if err != nil {
			return nil, err
		}
		span, err := NewSpan(immut)
		if err != nil {
			return nil, err
		}
		runSpans = append(runSpans, span)
	}
	defer func() {
		for _, s := range runSpans {
			_ = RemoveFile(pool, s.file.Path())
		}
	}()

	prevMergeDone := int64(0)
	out, err := Merge(pool, runSpans, outPath, codec, less, memoryBudget, func(p Progress) {
		report(p.WorkDone - prevMergeDone)
		prevMergeDone = p.WorkDone
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func sortSlice[T any](values []T, less Less[T], stable bool) {
	cmp := func(i, j int) bool { return less(values[i], values[j]) }
	if stable {
		sort.SliceStable(values, cmp)
	} else {
		sort.Slice(values, cmp)
	}
}
