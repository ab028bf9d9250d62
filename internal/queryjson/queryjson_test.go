package queryjson

import (
	"testing"

	"github.com/chessdb/chessdb/chesskey"
	"github.com/chessdb/chessdb/chessmodel/refchess"
	"github.com/chessdb/chessdb/internal/filestore"
	"github.com/chessdb/chessdb/internal/headerstore"
	"github.com/chessdb/chessdb/internal/partition"
	"github.com/chessdb/chessdb/internal/queryengine"
	"github.com/stretchr/testify/require"
)

func TestValidateRequiresAtLeastOneSelect(t *testing.T) {
	req := &Request{Positions: []PositionSpec{{FEN: "startpos"}}}
	require.Error(t, req.Validate())
}

func TestValidateRejectsAllCombinedWithContinuations(t *testing.T) {
	req := &Request{
		Positions:     []PositionSpec{{FEN: "startpos"}},
		All:           &SelectOptions{},
		Continuations: &SelectOptions{},
	}
	require.Error(t, req.Validate())
}

func TestValidateRejectsUnknownLevel(t *testing.T) {
	req := &Request{
		Positions: []PositionSpec{{FEN: "startpos"}},
		All:       &SelectOptions{},
		Levels:    []string{"grandmaster"},
	}
	require.Error(t, req.Validate())
}

func TestValidateAcceptsWellFormedRequest(t *testing.T) {
	req := &Request{
		Positions: []PositionSpec{{FEN: "startpos"}},
		All:       &SelectOptions{FetchChildren: true, FetchFirstGame: true},
	}
	require.NoError(t, req.Validate())
}

func TestSelectsClearsDisabledMaximaFeatures(t *testing.T) {
	req := &Request{All: &SelectOptions{FetchLastGame: true, FetchLastGameForEachChild: true}}
	out := req.selects()
	fo := out.Selects[queryengine.All]
	require.False(t, fo.FetchLastGame, "this engine never tracks maxima and must silently drop fetch_last_game")
	require.False(t, fo.FetchLastGameForEachChild)
}

func TestEncodeResponseKeepsToken(t *testing.T) {
	req := &Request{
		Token:     "tok",
		Positions: []PositionSpec{{FEN: "startpos"}},
		All:       &SelectOptions{FetchChildren: true},
	}
	b, err := Encode(&Response{Token: req.Token})
	require.NoError(t, err)
	require.Contains(t, string(b), "tok")
}

// TestExpandAndQueryStartPosition exercises the full path: expand the
// start position (with children) into PositionQuery values, import a few
// games into a partition, run the query and build a response.
func TestExpandAndQueryStartPosition(t *testing.T) {
	dir := t.TempDir()
	pool := filestore.NewPool(16)
	defer pool.Close()

	part, err := partition.Open(pool, dir, 4)
	require.NoError(t, err)

	factory := refchess.Factory{}
	start := factory.StartPosition()
	startHash := start.Hash()

	moves := start.LegalMoves()
	require.NotEmpty(t, moves)
	firstSAN := start.SAN(moves[0])
	child := start.Clone()
	rm := child.DoMove(moves[0])
	childHash := child.Hash()
	childPacked := rm.Fields().Pack()

	rootKey := chesskey.NewKeyWithMetadata(startHash, 0, chesskey.LevelHuman, chesskey.ResultWhiteWin)
	rootEntry, err := chesskey.NewEntry(rootKey, 1000)
	require.NoError(t, err)

	childKey := chesskey.NewKeyWithMetadata(childHash, childPacked, chesskey.LevelHuman, chesskey.ResultWhiteWin)
	childEntry, err := chesskey.NewEntry(childKey, 2000)
	require.NoError(t, err)

	_, err = part.StoreOrdered([]chesskey.Entry{rootEntry})
	require.NoError(t, err)
	_, err = part.StoreOrdered([]chesskey.Entry{childEntry})
	require.NoError(t, err)

	const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
	req := &Request{
		Positions: []PositionSpec{{FEN: startFEN}},
		Levels:    []string{"human"},
		Results:   []string{"win"},
		All:       &SelectOptions{FetchChildren: true, FetchFirstGame: true},
	}
	require.NoError(t, req.Validate())

	queries, err := Expand(factory, req)
	require.NoError(t, err)
	require.Len(t, queries, 1+len(moves))

	sorted, perm := SortStable(queries)
	raw, err := part.ExecuteQuery(req.selects(), sorted)
	require.NoError(t, err)
	results := Unsort(raw, perm)

	hdrDir := t.TempDir()
	store, err := headerstore.Open(pool, hdrDir+"/headers", hdrDir+"/headers.idx")
	require.NoError(t, err)
	blobOffsetFor := map[uint64]int64{}
	for _, syntheticOffset := range []uint64{1000, 2000} {
		blobOffset, _, err := store.Append(headerstore.GameHeader{White: "A", Black: "B", PlyCount: -1})
		require.NoError(t, err)
		blobOffsetFor[syntheticOffset] = blobOffset
	}
	lookup := func(level chesskey.Level, offset uint64) (headerstore.GameHeader, error) {
		return store.ByOffset(blobOffsetFor[offset])
	}

	resp, err := BuildResponse(req, queries, results, lookup)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)

	pr := resp.Results[0]
	require.Equal(t, uint64(1), pr.All[rootLabel].Count)
	require.NotNil(t, pr.All[rootLabel].FirstGame)
	require.Equal(t, uint64(1), pr.All[firstSAN].Count)
}
