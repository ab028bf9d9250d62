// Package queryengine holds the types shared by run-file scanning,
// partition dispatch and the JSON wire format: the expanded query
// representation, select semantics and per-query accumulated stats.
package queryengine

import "github.com/chessdb/chessdb/chesskey"

// Select classifies how an entry's inbound reverse-move relates to the
// query's reference key.
type Select int

const (
	// Continuations matches entries sharing both position and inbound
	// reverse-move with the query key (CompareEqualWithReverseMove).
	Continuations Select = iota
	// Transpositions matches entries sharing position but arriving via a
	// different inbound reverse-move.
	Transpositions
	// All matches any entry sharing the query's position, regardless of
	// inbound reverse-move.
	All
)

func (s Select) String() string {
	switch s {
	case Continuations:
		return "continuations"
	case Transpositions:
		return "transpositions"
	case All:
		return "all"
	default:
		return "unknown"
	}
}

// Origin distinguishes a query's root position from a one-ply child
// expanded from it.
type Origin int

const (
	OriginRoot Origin = iota
	OriginChild
)

// FetchOptions controls which auxiliary data a query result carries.
type FetchOptions struct {
	FetchChildren              bool
	FetchFirstGame             bool
	FetchLastGame              bool
	FetchFirstGameForEachChild bool
	FetchLastGameForEachChild  bool
}

// PositionQuery is one expanded query key: either a request's root
// position, or a one-ply child of it reached via ReverseMove. RootID ties
// a child back to the root it was expanded from.
type PositionQuery struct {
	RootID      int
	Origin      Origin
	Key         chesskey.Key
	ChildSAN    string // set only for Origin == OriginChild, the move's SAN label
	Level       chesskey.Level
	Result      chesskey.Result
}

// Request is one parsed query: the selects to run and, per select, the
// fetch options controlling header resolution.
type Request struct {
	Selects map[Select]FetchOptions
}

// PositionStats accumulates count and minimum game offset for one
// (query, select) pair.
type PositionStats struct {
	Count           uint64
	FirstGameOffset uint64 // chesskey.GameOffsetInvalid if none observed
}

// Combine folds an observed entry's packed count+offset into the running
// stats: counts add, offsets take the minimum non-sentinel value — the
// same monoid chesskey.PackedCountAndGameOffset.Combine implements.
func (s PositionStats) Combine(packed chesskey.PackedCountAndGameOffset) PositionStats {
	count, offset := packed.Unpack()
	newOffset := s.FirstGameOffset
	if s.Count == 0 {
		newOffset = offset
	} else if offset < newOffset {
		newOffset = offset
	}
	return PositionStats{Count: s.Count + count, FirstGameOffset: newOffset}
}

// Merge folds another already-computed PositionStats into s, the same
// monoid as Combine but over two accumulated values rather than a single
// raw packed entry — used to fold per-run results into a cross-partition
// total.
func (s PositionStats) Merge(other PositionStats) PositionStats {
	if other.Count == 0 {
		return s
	}
	if s.Count == 0 {
		return other
	}
	offset := s.FirstGameOffset
	if other.FirstGameOffset < offset {
		offset = other.FirstGameOffset
	}
	return PositionStats{Count: s.Count + other.Count, FirstGameOffset: offset}
}

// NewPositionStats returns the zero/identity stats value.
func NewPositionStats() PositionStats {
	return PositionStats{Count: 0, FirstGameOffset: chesskey.GameOffsetInvalid}
}

// ResultSet holds the accumulated stats for every (query, select) pair,
// indexed [queryIndex][select].
type ResultSet struct {
	Stats []map[Select]PositionStats
}

// NewResultSet allocates a ResultSet for n queries, pre-seeded with the
// identity stats value for every select the request runs.
func NewResultSet(n int, req *Request) ResultSet {
	rs := ResultSet{Stats: make([]map[Select]PositionStats, n)}
	for i := range rs.Stats {
		m := make(map[Select]PositionStats, len(req.Selects))
		for sel := range req.Selects {
			m[sel] = NewPositionStats()
		}
		rs.Stats[i] = m
	}
	return rs
}

// Matches reports whether entry e should be counted for query q under
// select sel. Level and result are entry attributes independent of
// position/reverse-move identity (chesskey.Key's equality helpers
// deliberately don't look at them, since runs dedupe per
// (position, rmove, level, result) and must keep those combinations as
// distinct entries) — so every select additionally requires the query's
// requested level and result to match the entry's.
func Matches(e chesskey.Entry, q PositionQuery, sel Select) bool {
	if e.Key.Level() != q.Level || e.Key.Result() != q.Result {
		return false
	}
	switch sel {
	case Continuations:
		return chesskey.EqualWithReverseMove(e.Key, q.Key)
	case Transpositions:
		return chesskey.EqualWithoutReverseMove(e.Key, q.Key) && !chesskey.EqualWithReverseMove(e.Key, q.Key)
	case All:
		return chesskey.EqualWithoutReverseMove(e.Key, q.Key)
	default:
		return false
	}
}
