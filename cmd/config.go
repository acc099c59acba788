package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/draftreview/internal/config"
)

// ConfigCommand returns the config command.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage configuration",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write a sample configuration file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "output file `PATH`",
						Value:   "draftreview.toml",
					},
				},
				Action: runConfigInit,
			},
			{
				Name:   "show",
				Usage:  "Show the resolved publish target",
				Action: runConfigShow,
			},
		},
	}
}

func runConfigInit(c *cli.Context) error {
	outputPath := c.String("output")
	if err := config.Init(outputPath); err != nil {
		return err
	}
	fmt.Printf("Created configuration file at %s\n", outputPath)
	return nil
}

func runConfigShow(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return err
	}

	target, err := e.cfg.Resolve(e.remoteURL())
	if err != nil {
		return err
	}

	baseURL := target.Credential.BaseURL
	if baseURL == "" {
		baseURL = "(default)"
	}

	fmt.Printf("backend:  %s\n", target.Credential.Kind)
	fmt.Printf("base URL: %s\n", baseURL)
	fmt.Printf("project:  %s/%s\n", target.Owner, target.Repo)
	fmt.Printf("token:    %s\n", maskToken(target.Credential.Token))
	fmt.Printf("timeout:  %s\n", target.Timeout)
	return nil
}

// maskToken keeps just enough of the token to recognize which one is in use.
func maskToken(token string) string {
	if len(token) <= 8 {
		return "********"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
