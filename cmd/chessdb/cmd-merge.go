package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"

	chessdb "github.com/chessdb/chessdb"
	"github.com/chessdb/chessdb/chesskey"
	"github.com/chessdb/chessdb/chessmodel/refchess"
	"github.com/chessdb/chessdb/internal/filestore"
)

func newCmdMerge() *cli.Command {
	return &cli.Command{
		Name:  "merge",
		Usage: "compact a level's runs into a single run",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "level", Value: "human", Usage: "human|engine|server"},
			&cli.Int64Flag{Name: "memory-budget", Value: 64 << 20, Usage: "merge memory budget in bytes"},
		},
		Action: func(c *cli.Context) error {
			level, ok := chesskey.ParseLevel(c.String("level"))
			if !ok {
				return fmt.Errorf("merge: unknown level %q", c.String("level"))
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

			progress := func(p filestore.Progress) {
				if p.WorkTotal > 0 {
					klog.V(2).Infof("merge: %s/%s entries merged", humanize.Comma(p.WorkDone), humanize.Comma(p.WorkTotal))
				}
			}
			if err := db.MergeAll(level, progress); err != nil {
				return err
			}
			fmt.Printf("merged level %s\n", level)
			return db.Flush()
		},
	}
}
