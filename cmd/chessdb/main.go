package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"

	"github.com/chessdb/chessdb/internal/config"
)

var gitCommitSHA = ""

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, syscall.SIGTERM, syscall.SIGINT)

		select {
		case <-interrupt:
			fmt.Println()
			klog.Info("received interrupt signal")
			cancel()
		case <-ctx.Done():
		}

		signal.Stop(interrupt)
	}()

	app := &cli.App{
		Name:        "chessdb",
		Version:     gitCommitSHA,
		Description: "Position-indexed chess game database: import games, merge runs, and query aggregate position statistics.",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a JSON or YAML chessdb config file",
				EnvVars: []string{"CHESSDB_CONFIG"},
			},
		}, NewKlogFlagSet()...),
		Commands: []*cli.Command{
			newCmdImport(),
			newCmdMerge(),
			newCmdQuery(),
			newCmdStats(),
			newCmdVerify(),
			newCmdExport(),
			newCmdServe(),
		},
	}

	sort.Sort(cli.FlagsByName(app.Flags))
	sort.Sort(cli.CommandsByName(app.Commands))

	if err := app.RunContext(ctx, os.Args); err != nil {
		klog.Fatal(err)
	}
}

// loadConfig resolves the effective config for a subcommand: the file
// named by --config if present, otherwise config.Default().
func loadConfig(c *cli.Context) (config.Config, error) {
	path := c.String("config")
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	return *cfg, nil
}
