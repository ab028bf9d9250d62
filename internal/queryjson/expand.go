package queryjson

import (
	"sort"

	"github.com/chessdb/chessdb/chesskey"
	"github.com/chessdb/chessdb/chessmodel"
	"github.com/chessdb/chessdb/internal/dberr"
	"github.com/chessdb/chessdb/internal/queryengine"
)

// Expand turns a validated request into the flat PositionQuery list
// run/partition ExecuteQuery dispatches, per spec §4.9: each position
// becomes one root query per requested (level, result) pair, plus one
// child query per legal move per (level, result) pair when any active
// select asks for fetch_children. A stable root_id (the position's index
// in the request) ties children back to their root.
func Expand(factory chessmodel.Factory, req *Request) ([]queryengine.PositionQuery, error) {
	levels := req.levels()
	results := req.results()
	fetchChildren := req.anyFetchChildren()

	var queries []queryengine.PositionQuery
	for rootID, spec := range req.Positions {
		pos, err := factory.FromFEN(spec.FEN)
		if err != nil {
			return nil, dberr.Wrap(dberr.InvalidFen, "queryjson.Expand", spec.FEN, err)
		}

		var rmove chesskey.PackedReverseMove
		if spec.Move != "" {
			mv, ok := pos.SANToMove(spec.Move)
			if !ok {
				return nil, dberr.New(dberr.InvalidSan, "queryjson.Expand", spec.Move)
			}
			rm := pos.DoMove(mv)
			rmove = rm.Fields().Pack()
		}

		hash := pos.Hash()
		for _, lvl := range levels {
			for _, res := range results {
				queries = append(queries, queryengine.PositionQuery{
					RootID: rootID,
					Origin: queryengine.OriginRoot,
					Key:    chesskey.NewKeyWithMetadata(hash, rmove, lvl, res),
					Level:  lvl,
					Result: res,
				})
			}
		}

		if !fetchChildren {
			continue
		}
		for _, mv := range pos.LegalMoves() {
			san := pos.SAN(mv)
			child := pos.Clone()
			childRMove := child.DoMove(mv)
			childHash := child.Hash()
			childPacked := childRMove.Fields().Pack()
			for _, lvl := range levels {
				for _, res := range results {
					queries = append(queries, queryengine.PositionQuery{
						RootID:   rootID,
						Origin:   queryengine.OriginChild,
						ChildSAN: san,
						Key:      chesskey.NewKeyWithMetadata(childHash, childPacked, lvl, res),
						Level:    lvl,
						Result:   res,
					})
				}
			}
		}
	}
	return queries, nil
}

func (r *Request) anyFetchChildren() bool {
	for _, opts := range []*SelectOptions{r.Continuations, r.Transpositions, r.All} {
		if opts != nil && opts.FetchChildren {
			return true
		}
	}
	return false
}

// Selects returns the request's select set as a queryengine.Request.
func (r *Request) Selects() *queryengine.Request {
	return r.selects()
}

// SortStable sorts queries by CompareLessWithoutReverseMove so each run
// scans in ascending file order (spec §4.9 "key sorting"), returning the
// sorted slice and the permutation needed to map each sorted position
// back to queries' original index.
func SortStable(queries []queryengine.PositionQuery) ([]queryengine.PositionQuery, []int) {
	perm := make([]int, len(queries))
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(i, j int) bool {
		return chesskey.LessWithoutReverseMove(queries[perm[i]].Key, queries[perm[j]].Key)
	})
	sorted := make([]queryengine.PositionQuery, len(queries))
	for i, origIdx := range perm {
		sorted[i] = queries[origIdx]
	}
	return sorted, perm
}

// Unsort maps a ResultSet computed over a SortStable-sorted query list
// back to original request order using the permutation SortStable
// returned.
func Unsort(sorted queryengine.ResultSet, perm []int) queryengine.ResultSet {
	out := queryengine.ResultSet{Stats: make([]map[queryengine.Select]queryengine.PositionStats, len(perm))}
	for sortedIdx, origIdx := range perm {
		out.Stats[origIdx] = sorted.Stats[sortedIdx]
	}
	return out
}
