package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/draftreview/internal/anchor"
	"github.com/draftreview/pkg/models"
)

// CommentCommand returns the comment command and its subcommands.
func CommentCommand() *cli.Command {
	return &cli.Command{
		Name:  "comment",
		Usage: "Manage draft comments",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Add a comment anchored to a line or line range",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "file `PATH` relative to the repository root",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "line",
						Aliases:  []string{"l"},
						Usage:    "line `N` or inclusive range `N-M`",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "side",
						Usage: "diff side the line numbers refer to: head or base",
						Value: "head",
					},
					&cli.StringFlag{
						Name:     "body",
						Aliases:  []string{"b"},
						Usage:    "comment `TEXT`",
						Required: true,
					},
				},
				Action: runCommentAdd,
			},
			{
				Name:      "edit",
				Usage:     "Replace the body of an existing comment",
				ArgsUsage: "<local-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "body",
						Aliases:  []string{"b"},
						Usage:    "new comment `TEXT`",
						Required: true,
					},
				},
				Action: runCommentEdit,
			},
			{
				Name:      "delete",
				Usage:     "Delete a comment from the draft",
				ArgsUsage: "<local-id>",
				Action:    runCommentDelete,
			},
			{
				Name:   "list",
				Usage:  "List the draft's comments in insertion order",
				Action: runCommentList,
			},
		},
	}
}

func runCommentAdd(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	session, err := e.session(c)
	if err != nil {
		return err
	}

	side, err := parseSide(c.String("side"))
	if err != nil {
		return err
	}
	startLine, endLine, err := parseLineSpec(c.String("line"))
	if err != nil {
		return err
	}

	resolver := anchor.NewResolver()
	resolved, err := resolver.Resolve(e.repoRoot, session.BaseRef, session.HeadRef,
		c.String("file"), side, startLine, endLine)
	if err != nil {
		return err
	}

	localID, err := e.service.AddComment(session.Number, resolved, c.String("body"))
	if err != nil {
		return err
	}

	fmt.Printf("Added comment %s at %s\n", localID, describeAnchor(resolved))
	return nil
}

func runCommentEdit(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one argument: the comment's local id")
	}

	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	session, err := e.session(c)
	if err != nil {
		return err
	}

	localID := c.Args().First()
	if err := e.service.EditComment(session.Number, localID, c.String("body")); err != nil {
		return err
	}
	fmt.Printf("Updated comment %s\n", localID)
	return nil
}

func runCommentDelete(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one argument: the comment's local id")
	}

	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	session, err := e.session(c)
	if err != nil {
		return err
	}

	localID := c.Args().First()
	if err := e.service.DeleteComment(session.Number, localID); err != nil {
		return err
	}
	fmt.Printf("Deleted comment %s\n", localID)
	return nil
}

func runCommentList(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	session, err := e.session(c)
	if err != nil {
		return err
	}

	if len(session.Comments) == 0 {
		fmt.Printf("No comments in the draft for %s/%s#%d\n", session.Owner, session.Repo, session.Number)
		return nil
	}

	for _, comment := range session.Comments {
		status := string(comment.Status)
		if comment.FailureReason != "" {
			status += " (" + comment.FailureReason + ")"
		}
		fmt.Printf("%s  %-40s  [%s]\n    %s\n",
			comment.LocalID, describeAnchor(comment.Anchor), status, firstLine(comment.Body))
	}
	return nil
}

func parseSide(raw string) (models.Side, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "head":
		return models.SideHead, nil
	case "base":
		return models.SideBase, nil
	}
	return "", fmt.Errorf("invalid side %q: must be head or base", raw)
}

// parseLineSpec accepts "N" for a single line and "N-M" or "N,M" for an
// inclusive range.
func parseLineSpec(raw string) (int, int, error) {
	raw = strings.TrimSpace(raw)
	sep := strings.IndexAny(raw, "-,")
	if sep < 0 {
		line, err := strconv.Atoi(raw)
		if err != nil || line <= 0 {
			return 0, 0, fmt.Errorf("invalid line %q", raw)
		}
		return line, line, nil
	}

	start, err := strconv.Atoi(raw[:sep])
	if err != nil || start <= 0 {
		return 0, 0, fmt.Errorf("invalid line range %q", raw)
	}
	end, err := strconv.Atoi(raw[sep+1:])
	if err != nil || end <= 0 {
		return 0, 0, fmt.Errorf("invalid line range %q", raw)
	}
	if end < start {
		start, end = end, start
	}
	return start, end, nil
}

func describeAnchor(a models.Anchor) string {
	if a.MultiLine() {
		return fmt.Sprintf("%s:%d-%d (%s)", a.Path, a.StartLine, a.EndLine, a.Side)
	}
	return fmt.Sprintf("%s:%d (%s)", a.Path, a.EndLine, a.Side)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
