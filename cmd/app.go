// Package cmd implements the draftreview command surface. Commands are thin:
// they resolve the repository, load configuration and delegate to the
// internal packages, printing results to stdout.
package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/draftreview/internal/config"
	"github.com/draftreview/internal/gitutil"
	"github.com/draftreview/internal/review"
	"github.com/draftreview/internal/store"
	"github.com/draftreview/pkg/models"
)

// env carries everything a command action needs: the repository, its store
// and the loaded (not yet resolved) configuration.
type env struct {
	repoRoot string
	gitDir   string
	store    *store.Store
	service  *review.Service
	cfg      *config.Config
}

func loadEnv(c *cli.Context) (*env, error) {
	repoRoot, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determining working directory: %w", err)
	}

	gitDir, err := gitutil.GitDir(repoRoot)
	if err != nil {
		return nil, err
	}

	st, err := store.ForRepo(repoRoot)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(c.String("config"), gitDir)
	if err != nil {
		return nil, err
	}

	return &env{
		repoRoot: repoRoot,
		gitDir:   gitDir,
		store:    st,
		service:  review.NewService(st),
		cfg:      cfg,
	}, nil
}

// remoteURL returns the configured remote's URL, or "" when the repository
// has no such remote. Config files that pin owner/repo work without one.
func (e *env) remoteURL() string {
	url, err := gitutil.RemoteURL(e.repoRoot, e.cfg.Backend.Remote)
	if err != nil {
		return ""
	}
	return url
}

// session returns the review session selected by --pr, falling back to the
// only in-progress session when the flag is unset.
func (e *env) session(c *cli.Context) (*models.ReviewSession, error) {
	if number := c.Int("pr"); number > 0 {
		return e.store.Load(number)
	}

	sessions, err := e.store.List()
	if err != nil {
		return nil, err
	}
	switch len(sessions) {
	case 0:
		return nil, fmt.Errorf("no review in progress: run `draftreview start <pr-number>` first")
	case 1:
		return sessions[0], nil
	}

	numbers := make([]string, len(sessions))
	for i, s := range sessions {
		numbers[i] = strconv.Itoa(s.Number)
	}
	return nil, fmt.Errorf("multiple reviews in progress (%v): select one with --pr", numbers)
}

func parseNumberArg(c *cli.Context) (int, error) {
	if c.NArg() != 1 {
		return 0, fmt.Errorf("expected exactly one argument: the PR/MR number")
	}
	number, err := strconv.Atoi(c.Args().First())
	if err != nil || number <= 0 {
		return 0, fmt.Errorf("invalid PR/MR number %q", c.Args().First())
	}
	return number, nil
}
