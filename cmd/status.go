package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/draftreview/pkg/models"
)

// StatusCommand returns the status command.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show in-progress reviews and their publish state",
		Action: runStatus,
	}
}

func runStatus(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return err
	}

	sessions, err := e.store.List()
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No reviews in progress")
		return nil
	}

	for _, session := range sessions {
		var drafts, submitted, failed int
		for _, comment := range session.Comments {
			switch comment.Status {
			case models.CommentSubmitted:
				submitted++
			case models.CommentFailed:
				failed++
			default:
				drafts++
			}
		}

		fmt.Printf("%s/%s#%d  [%s]  %d comments (%d draft, %d submitted, %d failed)\n",
			session.Owner, session.Repo, session.Number, session.Status,
			len(session.Comments), drafts, submitted, failed)

		for _, comment := range session.Comments {
			if comment.Status != models.CommentFailed {
				continue
			}
			fmt.Printf("    failed: %s  %s  (%s)\n",
				comment.LocalID, describeAnchor(comment.Anchor), comment.FailureReason)
		}
	}
	return nil
}
