package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/draftreview/internal/anchor"
	"github.com/draftreview/internal/backends"
	"github.com/draftreview/internal/backends/github"
	"github.com/draftreview/internal/backends/gitlab"
	"github.com/draftreview/internal/config"
	"github.com/draftreview/internal/publish"
	"github.com/draftreview/internal/retry"
	"github.com/draftreview/pkg/models"
)

// PublishCommand returns the publish command.
func PublishCommand() *cli.Command {
	return &cli.Command{
		Name:   "publish",
		Usage:  "Submit the draft review to the remote backend",
		Action: runPublish,
	}
}

func runPublish(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	session, err := e.session(c)
	if err != nil {
		return err
	}

	// The credential lives only in process memory for the duration of this
	// command; it is never part of the persisted session.
	target, err := e.cfg.Resolve(e.remoteURL())
	if err != nil {
		return err
	}
	if target.Credential.Kind != session.Backend {
		return fmt.Errorf("session %d targets %s but the configuration resolves to %s",
			session.Number, session.Backend, target.Credential.Kind)
	}

	backend, err := newBackend(target)
	if err != nil {
		return err
	}

	publisher := publish.New(e.store, anchor.NewResolver(), backend, retry.DefaultConfig())
	result, err := publisher.Publish(c.Context, e.repoRoot, session)
	if result != nil {
		printResult(result)
	}
	if err != nil {
		return err
	}
	if result.Status != models.SessionPublished {
		return fmt.Errorf("review is %s: fix or delete the failed comments and re-run publish", result.Status)
	}
	return nil
}

func newBackend(target *config.Target) (backends.Backend, error) {
	switch target.Credential.Kind {
	case models.BackendGitHub:
		return github.New(target.Credential, target.Timeout), nil
	case models.BackendGitLab:
		return gitlab.New(target.Credential, target.Timeout)
	}
	return nil, fmt.Errorf("unsupported backend %q", target.Credential.Kind)
}

func printResult(result *publish.Result) {
	for _, outcome := range result.Comments {
		switch outcome.Status {
		case models.CommentSubmitted:
			fmt.Printf("  submitted  %s:%d  -> %s\n", outcome.Path, outcome.Line, outcome.BackendID)
		case models.CommentFailed:
			fmt.Printf("  failed     %s:%d  (%s)  id=%s\n", outcome.Path, outcome.Line, outcome.Reason, outcome.LocalID)
		default:
			fmt.Printf("  pending    %s:%d  id=%s\n", outcome.Path, outcome.Line, outcome.LocalID)
		}
	}

	if result.Finalized {
		fmt.Printf("Review published (remote id %s)\n", result.ReviewID)
	}
}
