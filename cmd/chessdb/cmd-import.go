package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"

	chessdb "github.com/chessdb/chessdb"
	"github.com/chessdb/chessdb/chesskey"
	"github.com/chessdb/chessdb/chessmodel"
	"github.com/chessdb/chessdb/chessmodel/refchess"
	"github.com/chessdb/chessdb/internal/filestore"
)

func newCmdImport() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "import games (one JSON record per line) into a level",
		ArgsUsage: "<game-file.jsonl>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "level", Value: "human", Usage: "human|engine|server"},
			&cli.Int64Flag{Name: "memory-budget", Value: 64 << 20, Usage: "import memory budget in bytes"},
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 1 {
				return fmt.Errorf("import: expected exactly one game file argument")
			}
			level, ok := chesskey.ParseLevel(c.String("level"))
			if !ok {
				return fmt.Errorf("import: unknown level %q", c.String("level"))
			}

			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			db, err := chessdb.Open(cfg, refchess.Factory{})
			if err != nil {
				return err
			}
			defer db.Close()

			src, err := openJSONLGameSource(c.Args().First())
			if err != nil {
				return err
			}
			defer src.Close()

			progress := func(p filestore.Progress) {
				klog.V(2).Infof("import: %s games processed", humanize.Comma(p.WorkDone))
			}

			if err := db.Import(c.Context, []chessmodel.GameSource{src}, level, c.Int64("memory-budget"), progress); err != nil {
				return err
			}

			stats := db.Stats().Levels[level]
			fmt.Printf("imported %s games (%s skipped), %s positions indexed into level %s\n",
				humanize.Comma(int64(stats.NumGames)), humanize.Comma(int64(stats.SkippedGames)),
				humanize.Comma(int64(stats.NumPositions)), level)
			return db.Flush()
		},
	}
}
