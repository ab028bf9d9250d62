package filestore

import (
	"fmt"
	"os"
	"path/filepath"
)

// MaxFanIn bounds how many sources a single merge pass fans in; wider
// inputs are merged in MaxFanIn-sized groups first.
const MaxFanIn = 16

// OutputBufferMultiplier is the weight the output buffer gets when
// dividing the memory budget across a merge's k inputs: per-source
// buffer size = memory / (k + OutputBufferMultiplier).
const OutputBufferMultiplier = 2

// Progress reports work completed against a pre-assessed total, in
// units of "elements read" plus "merge writes".
type Progress struct {
	WorkDone  int64
	WorkTotal int64
}

// ProgressFunc receives progress updates during Sort/Merge.
type ProgressFunc func(Progress)

func noopProgress(Progress) {}

// Less is a strict less-than comparator over T.
type Less[T any] func(a, b T) bool

// Merge performs a stable external merge of inputs (each already sorted
// by less) into a single output file at outPath, honoring memoryBudget
// bytes and MaxFanIn: fan-in at or under MaxFanIn merges directly with
// one buffer per source; wider fan-in merges MaxFanIn-sized groups into
// temporary files first, then merges those recursively.
func Merge[T any](pool *Pool, inputs []ImmutableSpan[T], outPath string, codec Codec[T], less Less[T], memoryBudget int64, progress ProgressFunc) (*ImmutableBinaryFile[T], error) {
	if progress == nil {
		progress = noopProgress
	}
	total := int64(0)
	for _, in := range inputs {
		total += int64(in.Len())
	}
	done := int64(0)
	reportDone := func(delta int64) {
		done += delta
		progress(Progress{WorkDone: done, WorkTotal: total})
	}
	return mergeInternal(pool, inputs, outPath, codec, less, memoryBudget, reportDone)
}

func mergeInternal[T any](pool *Pool, inputs []ImmutableSpan[T], outPath string, codec Codec[T], less Less[T], memoryBudget int64, reportDone func(int64)) (*ImmutableBinaryFile[T], error) {
	if len(inputs) > MaxFanIn {
		groupDir := outPath + "_merge_groups"
		if err := os.MkdirAll(groupDir, 0o755); err != nil {
			return nil, fmt.Errorf("filestore: mkdir %q: %w", groupDir, err)
		}
		defer os.RemoveAll(groupDir)

		var groupSpans []ImmutableSpan[T]
		for g := 0; g*MaxFanIn < len(inputs); g++ {
			lo, hi := g*MaxFanIn, min(len(inputs), (g+1)*MaxFanIn)
			groupPath := filepath.Join(groupDir, fmt.Sprintf("g%d", g))
			groupFile, err := mergeInternal(pool, inputs[lo:hi], groupPath, codec, less, memoryBudget, reportDone)
			if err != nil {
				return nil, err
			}
			span, err := NewSpan(groupFile)
			if err != nil {
				return nil, err
			}
			groupSpans = append(groupSpans, span)
		}
		return mergeInternal(pool, groupSpans, outPath, codec, less, memoryBudget, reportDone)
	}
	return kWayMerge(pool, inputs, outPath, codec, less, memoryBudget, reportDone)
}

type mergeCursor[T any] struct {
	it    *SequentialIterator[T]
	cur   T
	has   bool
	index int
}

func kWayMerge[T any](pool *Pool, inputs []ImmutableSpan[T], outPath string, codec Codec[T], less Less[T], memoryBudget int64, reportDone func(int64)) (*ImmutableBinaryFile[T], error) {
	k := len(inputs)
	if k == 0 {
		out, err := CreateOutput(pool, outPath, codec)
		if err != nil {
			return nil, err
		}
		if err := out.Sync(); err != nil {
			return nil, err
		}
		return OpenImmutable(pool, outPath, codec)
	}

	chunkElems := bufferElems(memoryBudget, k+OutputBufferMultiplier, codec.Size)

	cursors := make([]*mergeCursor[T], k)
	for i, span := range inputs {
		cursors[i] = &mergeCursor[T]{it: span.Sequential(chunkElems), index: i}
		cursors[i].cur, cursors[i].has = cursors[i].it.Next()
	}

	out, err := CreateOutput(pool, outPath, codec)
	if err != nil {
		return nil, err
	}
	ins := NewBackInserter(out, chunkElems)

	for {
		best := -1
		for i, c := range cursors {
			if !c.has {
				continue
			}
			if best == -1 || less(c.cur, cursors[best].cur) {
				best = i
			}
			// Ties keep the earliest source index (stability): since we
			// scan in increasing i and only replace on strict less-than,
			// an equal element from a later source never displaces an
			// earlier one.
		}
		if best == -1 {
			break
		}
		if err := ins.Append(cursors[best].cur); err != nil {
			return nil, err
		}
		reportDone(1)
		cursors[best].cur, cursors[best].has = cursors[best].it.Next()
	}
	if err := ins.Close(); err != nil {
		return nil, err
	}
	if err := out.Sync(); err != nil {
		return nil, err
	}
	return OpenImmutable(pool, outPath, codec)
}

func bufferElems(memoryBudget int64, divisor int, recordSize int) int {
	if memoryBudget <= 0 || divisor <= 0 || recordSize <= 0 {
		return 1024
	}
	n := int(memoryBudget / int64(divisor) / int64(recordSize))
	if n < 1 {
		n = 1
	}
	return n
}
