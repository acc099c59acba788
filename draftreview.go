package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/draftreview/cmd"
	"github.com/draftreview/internal/logging"
)

const (
	version = "0.1.0"
)

func main() {
	app := &cli.App{
		Name:    "draftreview",
		Usage:   "Draft pull/merge request reviews offline and publish them to GitHub or GitLab",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.IntFlag{
				Name:  "pr",
				Usage: "select the review session for PR/MR `N`",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "enable debug logging",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug, info, warn, error)",
				Value: "info",
			},
		},
		Before: func(c *cli.Context) error {
			logging.Setup(c.String("log-level"), c.Bool("verbose"))
			return nil
		},
		Commands: []*cli.Command{
			cmd.StartCommand(),
			cmd.CommentCommand(),
			cmd.BodyCommand(),
			cmd.PublishCommand(),
			cmd.StatusCommand(),
			cmd.ConfigCommand(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
