// Package queryjson implements the JSON wire format for position
// queries (spec §6): request/response types, request expansion into
// internal/queryengine.PositionQuery values, and response shaping.
package queryjson

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/chessdb/chessdb/chesskey"
	"github.com/chessdb/chessdb/internal/dberr"
	"github.com/chessdb/chessdb/internal/queryengine"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SelectOptions is the wire form of queryengine.FetchOptions.
type SelectOptions struct {
	FetchChildren              bool `json:"fetch_children,omitempty"`
	FetchFirstGame             bool `json:"fetch_first_game,omitempty"`
	FetchLastGame              bool `json:"fetch_last_game,omitempty"`
	FetchFirstGameForEachChild bool `json:"fetch_first_game_for_each_child,omitempty"`
	FetchLastGameForEachChild  bool `json:"fetch_last_game_for_each_child,omitempty"`
}

func (o SelectOptions) toFetchOptions() queryengine.FetchOptions {
	return queryengine.FetchOptions{
		FetchChildren:              o.FetchChildren,
		FetchFirstGame:             o.FetchFirstGame,
		FetchLastGame:              o.FetchLastGame,
		FetchFirstGameForEachChild: o.FetchFirstGameForEachChild,
		FetchLastGameForEachChild:  o.FetchLastGameForEachChild,
	}
}

// PositionSpec names a query root: a FEN plus an optional move applied
// from it. When Move is empty, the root itself (no inbound move) is
// queried — e.g. the start position.
type PositionSpec struct {
	FEN  string `json:"fen"`
	Move string `json:"move,omitempty"`
}

// Request is the full JSON query wire request.
type Request struct {
	Token          string         `json:"token,omitempty"`
	Positions      []PositionSpec `json:"positions"`
	Levels         []string       `json:"levels"`
	Results        []string       `json:"results"`
	Continuations  *SelectOptions `json:"continuations,omitempty"`
	Transpositions *SelectOptions `json:"transpositions,omitempty"`
	All            *SelectOptions `json:"all,omitempty"`
}

// Decode parses a JSON request body.
func Decode(b []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(b, &req); err != nil {
		return nil, dberr.Wrap(dberr.InvalidQuery, "queryjson.Decode", "", err)
	}
	return &req, nil
}

// Validate checks the request shape invariants from spec §6: at least
// one select, no combination of "all" with "continuations"/
// "transpositions", and every level/result string must be recognized.
func (r *Request) Validate() error {
	if r.Continuations == nil && r.Transpositions == nil && r.All == nil {
		return dberr.New(dberr.InvalidQuery, "queryjson.Validate", "at least one of continuations/transpositions/all is required")
	}
	if r.All != nil && (r.Continuations != nil || r.Transpositions != nil) {
		return dberr.New(dberr.InvalidQuery, "queryjson.Validate", `"all" cannot be combined with "continuations" or "transpositions"`)
	}
	if len(r.Positions) == 0 {
		return dberr.New(dberr.InvalidQuery, "queryjson.Validate", "positions must be non-empty")
	}
	for _, lvl := range r.Levels {
		if _, ok := chesskey.ParseLevel(lvl); !ok {
			return dberr.New(dberr.InvalidQuery, "queryjson.Validate", fmt.Sprintf("unknown level %q", lvl))
		}
	}
	for _, res := range r.Results {
		if _, ok := chesskey.ParseResult(res); !ok {
			return dberr.New(dberr.InvalidQuery, "queryjson.Validate", fmt.Sprintf("unknown result %q", res))
		}
	}
	return nil
}

// selects returns the request's selects as a queryengine.Request,
// silently clearing fetch_last_game/fetch_last_game_for_each_child
// fields per spec §4.9 ("this engine does not track maxima").
func (r *Request) selects() *queryengine.Request {
	out := &queryengine.Request{Selects: make(map[queryengine.Select]queryengine.FetchOptions)}
	add := func(sel queryengine.Select, opts *SelectOptions) {
		if opts == nil {
			return
		}
		fo := opts.toFetchOptions()
		fo.FetchLastGame = false
		fo.FetchLastGameForEachChild = false
		out.Selects[sel] = fo
	}
	add(queryengine.Continuations, r.Continuations)
	add(queryengine.Transpositions, r.Transpositions)
	add(queryengine.All, r.All)
	return out
}

func (r *Request) levels() []chesskey.Level {
	if len(r.Levels) == 0 {
		return []chesskey.Level{chesskey.LevelHuman, chesskey.LevelEngine, chesskey.LevelServer}
	}
	out := make([]chesskey.Level, 0, len(r.Levels))
	for _, s := range r.Levels {
		lvl, _ := chesskey.ParseLevel(s)
		out = append(out, lvl)
	}
	return out
}

func (r *Request) results() []chesskey.Result {
	if len(r.Results) == 0 {
		return []chesskey.Result{chesskey.ResultWhiteWin, chesskey.ResultBlackWin, chesskey.ResultDraw}
	}
	out := make([]chesskey.Result, 0, len(r.Results))
	for _, s := range r.Results {
		res, _ := chesskey.ParseResult(s)
		out = append(out, res)
	}
	return out
}
