package diff

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// LineType classifies a single line within a hunk.
type LineType string

const (
	LineAdded   LineType = "added"
	LineDeleted LineType = "deleted"
	LineContext LineType = "context"
)

// Line is one line of a hunk with its position on both sides of the diff.
// OldLineNo is 0 for added lines, NewLineNo is 0 for deleted lines.
type Line struct {
	Content   string
	Type      LineType
	OldLineNo int
	NewLineNo int
}

// Hunk is a contiguous block of added/removed/context lines for one file.
type Hunk struct {
	OldStartLine int
	OldLineCount int
	NewStartLine int
	NewLineCount int
	HeaderText   string
	Lines        []Line
}

// ContainsOldLine reports whether the hunk covers the given base-side line.
func (h *Hunk) ContainsOldLine(line int) bool {
	for i := range h.Lines {
		if h.Lines[i].OldLineNo == line {
			return true
		}
	}
	return false
}

// ContainsNewLine reports whether the hunk covers the given head-side line.
func (h *Hunk) ContainsNewLine(line int) bool {
	for i := range h.Lines {
		if h.Lines[i].NewLineNo == line {
			return true
		}
	}
	return false
}

// FileDiff is the parsed diff of a single file.
type FileDiff struct {
	OldPath string
	NewPath string
	Hunks   []Hunk
}

var (
	fileHeaderRegex = regexp.MustCompile(`(?m)^diff --git a/`)
	hunkHeaderRegex = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@(.*)`)
)

// Parse parses unified diff text into per-file diffs with line-numbered
// hunks. An empty diff yields an empty slice.
func Parse(diffContent string) ([]FileDiff, error) {
	if strings.TrimSpace(diffContent) == "" {
		return nil, nil
	}

	var diffs []FileDiff
	fileChunks := fileHeaderRegex.Split(diffContent, -1)

	for _, fileContent := range fileChunks[1:] {
		if strings.TrimSpace(fileContent) == "" {
			continue
		}

		// Re-add the prefix that the split removed.
		lines := strings.Split("diff --git a/"+fileContent, "\n")

		oldPath, newPath := parseFileHeader(lines[0])
		if oldPath == "" && newPath == "" {
			return nil, fmt.Errorf("could not parse diff header %q", lines[0])
		}

		hunks, err := parseHunks(lines)
		if err != nil {
			return nil, fmt.Errorf("parsing hunks for %s: %w", newPath, err)
		}

		diffs = append(diffs, FileDiff{
			OldPath: oldPath,
			NewPath: newPath,
			Hunks:   hunks,
		})
	}

	return diffs, nil
}

func parseFileHeader(header string) (string, string) {
	// "diff --git a/old/path b/new/path"
	parts := strings.Fields(header)
	if len(parts) == 4 {
		return strings.TrimPrefix(parts[2], "a/"), strings.TrimPrefix(parts[3], "b/")
	}
	return "", ""
}

func parseHunks(lines []string) ([]Hunk, error) {
	var hunks []Hunk

	for i := 0; i < len(lines); i++ {
		matches := hunkHeaderRegex.FindStringSubmatch(lines[i])
		if matches == nil {
			continue
		}

		oldStart, _ := strconv.Atoi(matches[1])
		oldCount := countOrDefault(matches[2])
		newStart, _ := strconv.Atoi(matches[3])
		newCount := countOrDefault(matches[4])

		hunk := Hunk{
			OldStartLine: oldStart,
			OldLineCount: oldCount,
			NewStartLine: newStart,
			NewLineCount: newCount,
			HeaderText:   strings.TrimSpace(matches[5]),
		}

		oldLineNo, newLineNo := oldStart, newStart

		i++
		for ; i < len(lines); i++ {
			hunkLine := lines[i]
			if strings.HasPrefix(hunkLine, "@@") || strings.HasPrefix(hunkLine, "diff --git") {
				i--
				break
			}

			var line Line
			switch {
			case strings.HasPrefix(hunkLine, "+"):
				line = Line{Content: hunkLine[1:], Type: LineAdded, NewLineNo: newLineNo}
				newLineNo++
			case strings.HasPrefix(hunkLine, "-"):
				line = Line{Content: hunkLine[1:], Type: LineDeleted, OldLineNo: oldLineNo}
				oldLineNo++
			case strings.HasPrefix(hunkLine, " "):
				line = Line{Content: hunkLine[1:], Type: LineContext, OldLineNo: oldLineNo, NewLineNo: newLineNo}
				oldLineNo++
				newLineNo++
			case hunkLine == `\ No newline at end of file`:
				continue
			case hunkLine == "":
				// Trailing blank after the last hunk line.
				continue
			default:
				line = Line{Content: hunkLine, Type: LineContext, OldLineNo: oldLineNo, NewLineNo: newLineNo}
				oldLineNo++
				newLineNo++
			}
			hunk.Lines = append(hunk.Lines, line)
		}

		hunks = append(hunks, hunk)
	}

	return hunks, nil
}

func countOrDefault(s string) int {
	if s == "" {
		return 1
	}
	n, _ := strconv.Atoi(s)
	return n
}
