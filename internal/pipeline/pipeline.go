// Package pipeline implements the asynchronous store pipeline (spec
// §4.7): a reusable buffer pool, K sort workers and one write worker,
// connected by bounded channels and supervised with errgroup.Group.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/chessdb/chessdb/chesskey"
	"github.com/chessdb/chessdb/internal/filestore"
	"github.com/chessdb/chessdb/internal/run"
	"golang.org/x/sync/errgroup"
)

// Job is an unsorted batch of entries tagged with the run id it will
// become.
type Job struct {
	ID      int64
	Entries []chesskey.Entry
}

// Future resolves to the finished run once its job has been sorted,
// combined and written.
type Future struct {
	done chan struct{}
	run  *run.Run
	err  error
}

// Wait blocks until the job backing this future completes.
func (f *Future) Wait() (*run.Run, error) {
	<-f.done
	return f.run, f.err
}

// TryWait reports whether the job has finished without blocking. When
// ready is false, run and err are zero and the future must be polled
// again later — the non-blocking drain collect_future_files needs.
func (f *Future) TryWait() (r *run.Run, err error, ready bool) {
	select {
	case <-f.done:
		return f.run, f.err, true
	default:
		return nil, nil, false
	}
}

func (f *Future) resolve(r *run.Run, err error) {
	f.run, f.err = r, err
	close(f.done)
}

// BufferPool recycles entry slices so the producer rarely allocates
// fresh capacity for each batch.
type BufferPool struct {
	capacity int
	pool     sync.Pool
}

// NewBufferPool returns a pool of slices pre-sized to capacity.
func NewBufferPool(capacity int) *BufferPool {
	bp := &BufferPool{capacity: capacity}
	bp.pool.New = func() any {
		return make([]chesskey.Entry, 0, capacity)
	}
	return bp
}

// Get returns a zero-length buffer with spare capacity.
func (bp *BufferPool) Get() []chesskey.Entry {
	return bp.pool.Get().([]chesskey.Entry)[:0]
}

// Put returns a buffer to the pool for reuse.
func (bp *BufferPool) Put(buf []chesskey.Entry) {
	bp.pool.Put(buf[:0]) //nolint:staticcheck // intentional: retain backing array
}

type sortJob struct {
	Job
	future *Future
}

type writeJob struct {
	id      int64
	entries []chesskey.Entry
	future  *Future
}

// Pipeline owns the sort/write worker pool for one import run. Construct
// with New, Submit jobs, and call WaitForCompletion to drain and join.
type Pipeline struct {
	pool        *filestore.Pool
	dir         string
	granularity int
	buffers     *BufferPool

	sortQueue  chan sortJob
	writeQueue chan writeJob

	group *errgroup.Group
	ctx   context.Context
}

// New starts a pipeline with numSortWorkers sort workers and a single
// write worker, all writing runs into dir via pool.
func New(ctx context.Context, pool *filestore.Pool, dir string, granularity, numSortWorkers, queueCapacity int, buffers *BufferPool) *Pipeline {
	if numSortWorkers < 1 {
		numSortWorkers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	p := &Pipeline{
		pool:        pool,
		dir:         dir,
		granularity: granularity,
		buffers:     buffers,
		sortQueue:   make(chan sortJob, queueCapacity),
		writeQueue:  make(chan writeJob, queueCapacity),
		group:       g,
		ctx:         gctx,
	}

	var sortWG sync.WaitGroup
	sortWG.Add(numSortWorkers)
	for i := 0; i < numSortWorkers; i++ {
		g.Go(func() error {
			defer sortWG.Done()
			return p.sortWorker()
		})
	}
	// Once every sort worker has drained sortQueue, close writeQueue so
	// the write worker can observe end-of-input deterministically.
	go func() {
		sortWG.Wait()
		close(p.writeQueue)
	}()

	g.Go(p.writeWorker)

	return p
}

// Submit schedules an unsorted batch for sort+combine+write, returning a
// Future resolving to the finished run.
func (p *Pipeline) Submit(job Job) *Future {
	f := &Future{done: make(chan struct{})}
	select {
	case p.sortQueue <- sortJob{Job: job, future: f}:
	case <-p.ctx.Done():
		f.resolve(nil, p.ctx.Err())
	}
	return f
}

// WaitForCompletion closes the sort queue (signalling no more jobs will
// arrive), then joins every worker in deterministic order: sort workers
// first, then the write worker (via the close cascade above). The first
// worker error observed, if any, is returned.
func (p *Pipeline) WaitForCompletion() error {
	close(p.sortQueue)
	return p.group.Wait()
}

func (p *Pipeline) sortWorker() error {
	for job := range p.sortQueue {
		sort.Slice(job.Entries, func(i, j int) bool {
			return chesskey.LessFull(job.Entries[i].Key, job.Entries[j].Key)
		})
		combined, err := coalesce(job.Entries)
		if err != nil {
			job.future.resolve(nil, err)
			continue
		}
		select {
		case p.writeQueue <- writeJob{id: job.ID, entries: combined, future: job.future}:
		case <-p.ctx.Done():
			job.future.resolve(nil, p.ctx.Err())
		}
	}
	return nil
}

// coalesce merges consecutive CompareLessFull-equal entries via Combine,
// in a single forward pass over the (now sorted) slice.
func coalesce(sorted []chesskey.Entry) ([]chesskey.Entry, error) {
	if len(sorted) == 0 {
		return sorted, nil
	}
	out := sorted[:1]
	for i := 1; i < len(sorted); i++ {
		last := &out[len(out)-1]
		if chesskey.EqualFull(last.Key, sorted[i].Key) {
			combined, err := last.Combine(sorted[i])
			if err != nil {
				return nil, fmt.Errorf("pipeline: combine entries: %w", err)
			}
			*last = combined
			continue
		}
		out = append(out, sorted[i])
	}
	return out, nil
}

func (p *Pipeline) writeWorker() error {
	for job := range p.writeQueue {
		r, err := run.Write(p.pool, p.dir, job.id, job.entries, p.granularity)
		if p.buffers != nil {
			p.buffers.Put(job.entries)
		}
		job.future.resolve(r, err)
		if err != nil {
			return fmt.Errorf("pipeline: write run %d: %w", job.id, err)
		}
	}
	return nil
}
