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

func newCmdExport() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "replicate-and-merge a level's runs into a standalone destination directory, without mutating the source",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "level", Value: "human", Usage: "human|engine|server"},
			&cli.StringFlag{Name: "dest", Required: true, Usage: "destination directory for the merged run"},
			&cli.Int64Flag{Name: "memory-budget", Value: 64 << 20, Usage: "merge memory budget in bytes"},
		},
		Action: func(c *cli.Context) error {
			level, ok := chesskey.ParseLevel(c.String("level"))
			if !ok {
				return fmt.Errorf("export: unknown level %q", c.String("level"))
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
					klog.V(2).Infof("export: %s/%s entries merged", humanize.Comma(p.WorkDone), humanize.Comma(p.WorkTotal))
				}
			}
			if err := db.Export(level, c.String("dest"), c.Int64("memory-budget"), progress); err != nil {
				return err
			}
			fmt.Printf("exported level %s to %s\n", level, c.String("dest"))
			return nil
		},
	}
}
