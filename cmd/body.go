package cmd

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"
)

// BodyCommand returns the body command.
func BodyCommand() *cli.Command {
	return &cli.Command{
		Name:      "body",
		Usage:     "Set or show the review's summary body",
		ArgsUsage: "[text]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "show",
				Usage: "print the current body instead of setting it",
			},
		},
		Action: runBody,
	}
}

func runBody(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	session, err := e.session(c)
	if err != nil {
		return err
	}

	if c.Bool("show") {
		if session.Body == "" {
			fmt.Println("(empty body)")
		} else {
			fmt.Println(session.Body)
		}
		return nil
	}

	if c.NArg() == 0 {
		return fmt.Errorf("expected the body text as an argument, or --show")
	}

	body := strings.Join(c.Args().Slice(), " ")
	if err := e.service.SetBody(session.Number, body); err != nil {
		return err
	}
	fmt.Printf("Body set for %s/%s#%d\n", session.Owner, session.Repo, session.Number)
	return nil
}
