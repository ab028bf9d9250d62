package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	chessdb "github.com/chessdb/chessdb"
	"github.com/chessdb/chessdb/chessmodel/refchess"
	"github.com/chessdb/chessdb/internal/queryjson"
)

func newCmdQuery() *cli.Command {
	return &cli.Command{
		Name:      "query",
		Usage:     "run a JSON position query (spec §6 wire format) from a file or stdin, print the JSON response",
		ArgsUsage: "[request.json]",
		Action: func(c *cli.Context) error {
			var body []byte
			var err error
			if c.Args().Len() == 1 {
				body, err = os.ReadFile(c.Args().First())
			} else {
				body, err = io.ReadAll(os.Stdin)
			}
			if err != nil {
				return err
			}

			req, err := queryjson.Decode(body)
			if err != nil {
				return err
			}
			if err := req.Validate(); err != nil {
				return err
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

			resp, err := db.ExecuteQuery(req)
			if err != nil {
				return err
			}
			out, err := queryjson.Encode(resp)
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}
