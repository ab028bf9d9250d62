package main

import (
	"bufio"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"

	"github.com/chessdb/chessdb/chessmodel"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// gameRecord is the CLI demo import format: one JSON object per line,
// mirroring chessmodel.Game/GameTags. Real PGN/BCGN tokenizing is out of
// scope (spec Non-goals); this is the thin stand-in that exercises
// Database.Import end to end from a file.
type gameRecord struct {
	Event, White, Black, ECO string
	Year, Month, Day         int
	Result                   string
	StartFEN                 string
	Moves                    []string
}

func (r gameRecord) toGame() chessmodel.Game {
	return chessmodel.Game{
		Tags: chessmodel.GameTags{
			Event: r.Event, White: r.White, Black: r.Black, ECO: r.ECO,
			Year: r.Year, Month: r.Month, Day: r.Day,
			ResultTag: r.Result,
		},
		StartFEN: r.StartFEN,
		Moves:    r.Moves,
	}
}

// jsonlGameSource is a chessmodel.GameSource reading one gameRecord per
// line from a file, decoded lazily so import never has to hold a whole
// import file in memory.
type jsonlGameSource struct {
	file    *os.File
	scanner *bufio.Scanner
}

func openJSONLGameSource(path string) (*jsonlGameSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &jsonlGameSource{file: f, scanner: bufio.NewScanner(f)}, nil
}

func (s *jsonlGameSource) Next() (chessmodel.Game, error) {
	for s.scanner.Scan() {
		line := s.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec gameRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return chessmodel.Game{}, err
		}
		return rec.toGame(), nil
	}
	if err := s.scanner.Err(); err != nil {
		return chessmodel.Game{}, err
	}
	return chessmodel.Game{}, io.EOF
}

func (s *jsonlGameSource) Close() error {
	return s.file.Close()
}
