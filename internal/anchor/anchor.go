// Package anchor maps (file, line range) references onto the diff between a
// PR/MR's base and head, producing side-tagged anchors that backends can
// submit. Resolution is a pure function of the diff text, so the same inputs
// always yield the same anchor.
package anchor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/draftreview/internal/diff"
	"github.com/draftreview/internal/gitutil"
	"github.com/draftreview/pkg/models"
)

// ErrorKind classifies anchor resolution failures.
type ErrorKind string

const (
	// FileNotInDiff means the requested file has no changes between base and head.
	FileNotInDiff ErrorKind = "file_not_in_diff"
	// LineOutsideHunk means a requested line does not fall within any hunk.
	LineOutsideHunk ErrorKind = "line_outside_hunk"
	// AmbiguousRange means the requested range spans a hunk boundary. The
	// user must split it into per-hunk comments.
	AmbiguousRange ErrorKind = "ambiguous_range"
	// StaleAnchor means a previously valid anchor no longer matches the
	// current diff, e.g. after new commits were pushed.
	StaleAnchor ErrorKind = "stale_anchor"
)

// Error is a structured anchor resolution failure.
type Error struct {
	Kind      ErrorKind
	Path      string
	StartLine int
	EndLine   int
}

func (e *Error) Error() string {
	if e.StartLine == e.EndLine {
		return fmt.Sprintf("%s: %s line %d", e.Kind, e.Path, e.StartLine)
	}
	return fmt.Sprintf("%s: %s lines %d-%d", e.Kind, e.Path, e.StartLine, e.EndLine)
}

// DiffFunc produces the unified diff of one file between two refs. The
// default implementation shells out to git; tests inject fixed diff text.
type DiffFunc func(repoRoot, baseRef, headRef, path string) (string, error)

// Resolver validates line references against the base...head diff.
type Resolver struct {
	diffFn DiffFunc
}

// NewResolver returns a resolver backed by the local git repository.
func NewResolver() *Resolver {
	return &Resolver{diffFn: gitutil.DiffFile}
}

// NewResolverWithDiff returns a resolver using a custom diff source.
func NewResolverWithDiff(fn DiffFunc) *Resolver {
	return &Resolver{diffFn: fn}
}

// Resolve checks that the inclusive line range [startLine, endLine] of path,
// numbered on the given side, falls entirely within a single hunk of the
// base...head diff, and returns the side-tagged anchor for it.
func (r *Resolver) Resolve(repoRoot, baseRef, headRef, path string, side models.Side, startLine, endLine int) (models.Anchor, error) {
	if endLine < startLine {
		startLine, endLine = endLine, startLine
	}

	diffText, err := r.diffFn(repoRoot, baseRef, headRef, path)
	if err != nil {
		return models.Anchor{}, err
	}

	fileDiff, err := findFile(diffText, path, side)
	if err != nil {
		return models.Anchor{}, &Error{Kind: FileNotInDiff, Path: path, StartLine: startLine, EndLine: endLine}
	}

	hunkIdx := -1
	content := make([]string, 0, endLine-startLine+1)
	for line := startLine; line <= endLine; line++ {
		idx := hunkContaining(fileDiff.Hunks, side, line)
		if idx < 0 {
			return models.Anchor{}, &Error{Kind: LineOutsideHunk, Path: path, StartLine: startLine, EndLine: endLine}
		}
		if hunkIdx >= 0 && idx != hunkIdx {
			return models.Anchor{}, &Error{Kind: AmbiguousRange, Path: path, StartLine: startLine, EndLine: endLine}
		}
		hunkIdx = idx
		if text, ok := lineContent(&fileDiff.Hunks[idx], side, line); ok {
			content = append(content, text)
		}
	}

	return models.Anchor{
		Path:        path,
		Side:        side,
		StartLine:   startLine,
		EndLine:     endLine,
		ContentHash: hashContent(content),
	}, nil
}

// Reresolve validates an anchor created earlier against the current
// repository state. The line range must still resolve, and the content now
// under those lines must match the fingerprint taken at creation time:
// a force-push that slides different text under the same line numbers is
// reported as stale, not silently published at the wrong content.
func (r *Resolver) Reresolve(repoRoot, baseRef, headRef string, a models.Anchor) error {
	resolved, err := r.Resolve(repoRoot, baseRef, headRef, a.Path, a.Side, a.StartLine, a.EndLine)
	if err != nil {
		return err
	}
	if a.ContentHash != "" && resolved.ContentHash != a.ContentHash {
		return &Error{Kind: StaleAnchor, Path: a.Path, StartLine: a.StartLine, EndLine: a.EndLine}
	}
	return nil
}

func findFile(diffText, path string, side models.Side) (*diff.FileDiff, error) {
	diffs, err := diff.Parse(diffText)
	if err != nil {
		return nil, err
	}
	for i := range diffs {
		if side == models.SideBase && diffs[i].OldPath == path {
			return &diffs[i], nil
		}
		if side == models.SideHead && diffs[i].NewPath == path {
			return &diffs[i], nil
		}
	}
	return nil, fmt.Errorf("file %s not present in diff", path)
}

// lineContent returns the text of the given line on the requested side.
func lineContent(h *diff.Hunk, side models.Side, line int) (string, bool) {
	for i := range h.Lines {
		l := &h.Lines[i]
		if side == models.SideHead && l.NewLineNo == line {
			return l.Content, true
		}
		if side == models.SideBase && l.OldLineNo == line {
			return l.Content, true
		}
	}
	return "", false
}

// hashContent fingerprints the anchored lines for staleness detection.
func hashContent(lines []string) string {
	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(sum[:])
}

// hunkContaining returns the index of the hunk covering the line on the
// requested side, or -1. Head-side lines must exist as added or context
// lines; base-side lines as deleted or context lines.
func hunkContaining(hunks []diff.Hunk, side models.Side, line int) int {
	for i := range hunks {
		if side == models.SideHead && hunks[i].ContainsNewLine(line) {
			return i
		}
		if side == models.SideBase && hunks[i].ContainsOldLine(line) {
			return i
		}
	}
	return -1
}
