package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	chessdb "github.com/chessdb/chessdb"
	"github.com/chessdb/chessdb/chessmodel/refchess"
)

func newCmdVerify() *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "re-check that persisted stats agree with the on-disk run and header files",
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

			if err := db.Verify(); err != nil {
				return err
			}
			fmt.Println("verify: ok")
			return nil
		},
	}
}
