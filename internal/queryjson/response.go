package queryjson

import (
	"fmt"

	"github.com/chessdb/chessdb/chesskey"
	"github.com/chessdb/chessdb/internal/dberr"
	"github.com/chessdb/chessdb/internal/headerstore"
	"github.com/chessdb/chessdb/internal/queryengine"
)

// GameHeaderJSON is the wire form of headerstore.GameHeader.
type GameHeaderJSON struct {
	Event string `json:"event,omitempty"`
	White string `json:"white,omitempty"`
	Black string `json:"black,omitempty"`
	ECO   string `json:"eco,omitempty"`
	Date  string `json:"date,omitempty"`
	Ply   *int   `json:"ply,omitempty"`
}

func headerToJSON(h headerstore.GameHeader) GameHeaderJSON {
	out := GameHeaderJSON{
		Event: h.Event,
		White: h.White,
		Black: h.Black,
		ECO:   h.ECO,
	}
	if h.Date.Year != 0 {
		out.Date = fmtDate(h.Date)
	}
	if h.PlyCount >= 0 {
		ply := h.PlyCount
		out.Ply = &ply
	}
	return out
}

func fmtDate(d headerstore.Date) string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Entry is one select's count plus its resolved first game, when asked
// for and available.
type Entry struct {
	Count     uint64          `json:"count"`
	FirstGame *GameHeaderJSON `json:"first_game,omitempty"`
}

// SelectResults maps a label ("--" for the root position itself, or a
// child's SAN) to its Entry, per spec §6.
type SelectResults map[string]Entry

// PositionResult is one requested position's full result.
type PositionResult struct {
	Position       PositionSpec  `json:"position"`
	Continuations  SelectResults `json:"continuations,omitempty"`
	Transpositions SelectResults `json:"transpositions,omitempty"`
	All            SelectResults `json:"all,omitempty"`
}

// Response is the full JSON query wire response.
type Response struct {
	Token   string           `json:"token,omitempty"`
	Results []PositionResult `json:"results"`
}

// rootLabel is the SelectResults key naming the queried position itself,
// as opposed to one of its children (keyed by SAN).
const rootLabel = "--"

// HeaderLookup resolves a game header for a resolved (level, game
// offset) pair, the accessor a caller wires to its per-level
// headerstore.Store slice.
type HeaderLookup func(level chesskey.Level, offset uint64) (headerstore.GameHeader, error)

type groupKey struct {
	rootID   int
	origin   queryengine.Origin
	childSAN string
}

type group struct {
	stats        map[queryengine.Select]queryengine.PositionStats
	winningLevel map[queryengine.Select]chesskey.Level
}

func newGroup() *group {
	return &group{
		stats:        make(map[queryengine.Select]queryengine.PositionStats),
		winningLevel: make(map[queryengine.Select]chesskey.Level),
	}
}

// BuildResponse aggregates queries/results (already unsorted back to
// request order, one entry per (level, result) combination) into the
// per-position, per-select response shape: counts summed and first-game
// offsets minimized across every requested level/result, with headers
// resolved via lookup only for selects whose fetch_first_game was set.
func BuildResponse(req *Request, queries []queryengine.PositionQuery, results queryengine.ResultSet, lookup HeaderLookup) (*Response, error) {
	fetch := req.selects()

	order := make([]groupKey, 0, len(req.Positions))
	seen := make(map[groupKey]bool)
	groups := make(map[groupKey]*group)

	for i, q := range queries {
		key := groupKey{rootID: q.RootID, origin: q.Origin, childSAN: q.ChildSAN}
		g, ok := groups[key]
		if !ok {
			g = newGroup()
			groups[key] = g
		}
		if !seen[key] {
			seen[key] = true
			order = append(order, key)
		}

		for sel, stats := range results.Stats[i] {
			if stats.Count == 0 {
				continue
			}
			before := g.stats[sel]
			if before.Count == 0 || stats.FirstGameOffset < before.FirstGameOffset {
				g.winningLevel[sel] = q.Level
			}
			g.stats[sel] = before.Merge(stats)
		}
	}

	byRoot := make(map[int][]groupKey)
	for _, key := range order {
		byRoot[key.rootID] = append(byRoot[key.rootID], key)
	}

	resp := &Response{Token: req.Token}
	for rootID, spec := range req.Positions {
		pr := PositionResult{Position: spec}
		for _, key := range byRoot[rootID] {
			g := groups[key]
			label := rootLabel
			if key.origin == queryengine.OriginChild {
				label = key.childSAN
			}

			for sel, stats := range g.stats {
				entry := Entry{Count: stats.Count}
				if fetch.Selects[sel].FetchFirstGame && stats.FirstGameOffset != chesskey.GameOffsetInvalid {
					h, err := lookup(g.winningLevel[sel], stats.FirstGameOffset)
					if err != nil {
						return nil, dberr.Wrap(dberr.IO, "queryjson.BuildResponse", "", err)
					}
					hj := headerToJSON(h)
					entry.FirstGame = &hj
				}
				assignSelect(&pr, sel, label, entry)
			}
		}
		resp.Results = append(resp.Results, pr)
	}
	return resp, nil
}

func assignSelect(pr *PositionResult, sel queryengine.Select, label string, entry Entry) {
	switch sel {
	case queryengine.Continuations:
		if pr.Continuations == nil {
			pr.Continuations = make(SelectResults)
		}
		pr.Continuations[label] = entry
	case queryengine.Transpositions:
		if pr.Transpositions == nil {
			pr.Transpositions = make(SelectResults)
		}
		pr.Transpositions[label] = entry
	case queryengine.All:
		if pr.All == nil {
			pr.All = make(SelectResults)
		}
		pr.All[label] = entry
	}
}

// Encode marshals resp back to JSON bytes.
func Encode(resp *Response) ([]byte, error) {
	b, err := json.Marshal(resp)
	if err != nil {
		return nil, dberr.Wrap(dberr.Internal, "queryjson.Encode", "", err)
	}
	return b, nil
}
