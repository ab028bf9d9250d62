// Package filestore provides the external-memory building blocks the
// run/partition layers are built on: a process-wide pooled-handle cache,
// typed immutable/output file wrappers over fixed-size records, and
// generic external merge/sort with a bounded memory budget.
package filestore

import (
	"container/list"
	"fmt"
	"os"
	"sync"
)

// Mode selects how a pooled handle is (re)opened.
type Mode int

const (
	// ModeRead opens read-only.
	ModeRead Mode = iota
	// ModeWrite opens write-only, truncating on first open and
	// appending on every subsequent reopen (so an evicted-then-reused
	// handle never truncates data already written).
	ModeWrite
	// ModeReadWrite opens for both reading and writing, creating if
	// absent, never truncating.
	ModeReadWrite
)

// DefaultPoolCapacity is the hard cap on concurrently open OS handles
// before the pool starts closing LRU entries.
const DefaultPoolCapacity = 256

// Pool is a process-wide LRU cache of open *os.File handles. Handles are
// opened lazily on first access and transparently reopened after
// eviction; write-mode handles switch to append-only on any open after
// the first so no data already on disk is lost.
type Pool struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = MRU
	entries  map[string]*list.Element
}

type poolEntry struct {
	path          string
	mode          Mode // mode the handle is currently (or was last) open under
	file          *os.File
	opened        bool
	everOpenWrite bool // true once opened ModeWrite at least once, so the next ModeWrite open appends instead of truncating
}

// NewPool constructs a Pool with the given hard cap on open handles.
func NewPool(capacity int) *Pool {
	if capacity <= 0 {
		capacity = DefaultPoolCapacity
	}
	return &Pool{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

// Acquire returns an open handle for path in the given mode, opening it
// (or reopening it after eviction) as needed and marking it MRU. The
// caller must not close the returned handle directly; it simply stops
// using it — the pool closes handles only on eviction, Forget or Close.
func (p *Pool) Acquire(path string, mode Mode) (*os.File, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if el, ok := p.entries[path]; ok {
		e := el.Value.(*poolEntry)
		p.order.MoveToFront(el)
		if e.opened && e.mode == mode {
			return e.file, nil
		}
		if e.opened {
			// Switching modes on an already-open path: close and reopen
			// under the newly requested mode, so a write handle followed
			// by a read (e.g. after a Sync) actually sees read access.
			_ = e.file.Close()
			e.opened = false
		}
		e.mode = mode
		return p.openEntry(e)
	}

	e := &poolEntry{path: path, mode: mode}
	el := p.order.PushFront(e)
	p.entries[path] = el
	f, err := p.openEntry(e)
	if err != nil {
		p.order.Remove(el)
		delete(p.entries, path)
		return nil, err
	}
	p.evictIfOverCapacityLocked()
	return f, nil
}

func (p *Pool) openEntry(e *poolEntry) (*os.File, error) {
	flags := os.O_RDONLY
	switch e.mode {
	case ModeWrite:
		flags = os.O_WRONLY | os.O_CREATE
		if e.everOpenWrite {
			flags |= os.O_APPEND
		} else {
			flags |= os.O_TRUNC
		}
	case ModeReadWrite:
		flags = os.O_RDWR | os.O_CREATE
	}
	f, err := os.OpenFile(e.path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("filestore: open %q: %w", e.path, err)
	}
	e.file = f
	e.opened = true
	if e.mode == ModeWrite {
		e.everOpenWrite = true
	}
	return f, nil
}

// evictIfOverCapacityLocked closes the LRU-most open handle(s) until the
// pool is back within capacity. Called with p.mu held.
func (p *Pool) evictIfOverCapacityLocked() {
	openCount := 0
	for el := p.order.Front(); el != nil; el = el.Next() {
		if el.Value.(*poolEntry).opened {
			openCount++
		}
	}
	for openCount > p.capacity {
		el := p.order.Back()
		for el != nil && !el.Value.(*poolEntry).opened {
			el = el.Prev()
		}
		if el == nil {
			return
		}
		e := el.Value.(*poolEntry)
		_ = e.file.Close()
		e.file = nil
		e.opened = false
		openCount--
	}
}

// Forget closes path's handle (if open) and drops all pool bookkeeping
// for it, used once a run file is merged away and its path no longer
// exists.
func (p *Pool) Forget(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.entries[path]
	if !ok {
		return
	}
	e := el.Value.(*poolEntry)
	if e.opened {
		_ = e.file.Close()
	}
	p.order.Remove(el)
	delete(p.entries, path)
}

// Close closes every currently open handle in the pool.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for el := p.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*poolEntry)
		if e.opened {
			if err := e.file.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
			e.opened = false
		}
	}
	return firstErr
}
