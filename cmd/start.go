package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// StartCommand returns the start command.
func StartCommand() *cli.Command {
	return &cli.Command{
		Name:      "start",
		Usage:     "Start or resume a review draft for a pull/merge request",
		ArgsUsage: "<pr-number>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "base",
				Usage: "base `REF` the PR/MR targets",
				Value: "origin/HEAD",
			},
			&cli.StringFlag{
				Name:  "head",
				Usage: "head `REF` under review",
				Value: "HEAD",
			},
		},
		Action: runStart,
	}
}

func runStart(c *cli.Context) error {
	number, err := parseNumberArg(c)
	if err != nil {
		return err
	}

	e, err := loadEnv(c)
	if err != nil {
		return err
	}

	target, err := e.cfg.ResolveRepo(e.remoteURL())
	if err != nil {
		return err
	}

	session, err := e.service.StartReview(target.Credential.Kind, target.Owner, target.Repo,
		number, c.String("base"), c.String("head"))
	if err != nil {
		return err
	}

	if len(session.Comments) > 0 || session.Body != "" {
		fmt.Printf("Resumed review of %s/%s#%d (%d comments, status %s)\n",
			session.Owner, session.Repo, session.Number, len(session.Comments), session.Status)
	} else {
		fmt.Printf("Started review of %s/%s#%d on %s\n",
			session.Owner, session.Repo, session.Number, session.Backend)
	}
	return nil
}
