package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	chessdb "github.com/chessdb/chessdb"
	"github.com/chessdb/chessdb/chesskey"
	"github.com/chessdb/chessdb/chessmodel/refchess"
)

func newCmdStats() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "print the persisted per-level stats file, human-readably",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			db, err := chessdb.Open(cfg, refchess.Factory{})
			if err != nil {
				return err
			}
			defer db.Close()

			stats := db.Stats()
			for lvl := chesskey.Level(0); int(lvl) < chesskey.NumLevels; lvl++ {
				s := stats.Levels[lvl]
				fmt.Printf("%-7s games=%-12s positions=%-12s skipped=%s\n",
					lvl, humanize.Comma(int64(s.NumGames)), humanize.Comma(int64(s.NumPositions)), humanize.Comma(int64(s.SkippedGames)))
			}
			return nil
		},
	}
}
