package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDiff = `diff --git a/src/app.py b/src/app.py
index 1111111..2222222 100644
--- a/src/app.py
+++ b/src/app.py
@@ -5,4 +5,8 @@ def main():
 context five
 context six
 context seven
+added eight
+added nine
+added ten
+added eleven
 context twelve
@@ -20,3 +24,2 @@ def helper():
 context twenty
-removed twenty-one
 context twenty-two
diff --git a/README.md b/README.md
index 3333333..4444444 100644
--- a/README.md
+++ b/README.md
@@ -1 +1,2 @@
 # Title
+New line
`

func TestParseFilesAndHunks(t *testing.T) {
	diffs, err := Parse(sampleDiff)
	require.NoError(t, err)
	require.Len(t, diffs, 2)

	app := diffs[0]
	assert.Equal(t, "src/app.py", app.OldPath)
	assert.Equal(t, "src/app.py", app.NewPath)
	require.Len(t, app.Hunks, 2)

	readme := diffs[1]
	assert.Equal(t, "README.md", readme.NewPath)
	require.Len(t, readme.Hunks, 1)
}

func TestParseLineNumbering(t *testing.T) {
	diffs, err := Parse(sampleDiff)
	require.NoError(t, err)

	first := diffs[0].Hunks[0]
	assert.Equal(t, 5, first.OldStartLine)
	assert.Equal(t, 4, first.OldLineCount)
	assert.Equal(t, 5, first.NewStartLine)
	assert.Equal(t, 8, first.NewLineCount)
	assert.Equal(t, "def main():", first.HeaderText)

	// Added lines carry only head-side numbers: 8 through 11.
	var added []int
	for _, line := range first.Lines {
		if line.Type == LineAdded {
			assert.Zero(t, line.OldLineNo)
			added = append(added, line.NewLineNo)
		}
	}
	assert.Equal(t, []int{8, 9, 10, 11}, added)

	second := diffs[0].Hunks[1]
	require.Len(t, second.Lines, 3)
	assert.Equal(t, LineDeleted, second.Lines[1].Type)
	assert.Equal(t, 21, second.Lines[1].OldLineNo)
	assert.Zero(t, second.Lines[1].NewLineNo)
}

func TestParseHunkContains(t *testing.T) {
	diffs, err := Parse(sampleDiff)
	require.NoError(t, err)

	first := diffs[0].Hunks[0]
	assert.True(t, first.ContainsNewLine(10))
	assert.True(t, first.ContainsNewLine(5))
	assert.False(t, first.ContainsNewLine(13))
	assert.True(t, first.ContainsOldLine(6))
	assert.False(t, first.ContainsOldLine(9))

	second := diffs[0].Hunks[1]
	assert.True(t, second.ContainsOldLine(21))
	assert.False(t, second.ContainsNewLine(21))
}

func TestParseSingleLineHunkHeader(t *testing.T) {
	text := "diff --git a/f.txt b/f.txt\n--- a/f.txt\n+++ b/f.txt\n@@ -1 +1 @@\n-old\n+new\n"
	diffs, err := Parse(text)
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	require.Len(t, diffs[0].Hunks, 1)

	h := diffs[0].Hunks[0]
	assert.Equal(t, 1, h.OldLineCount)
	assert.Equal(t, 1, h.NewLineCount)
	require.Len(t, h.Lines, 2)
	assert.Equal(t, LineDeleted, h.Lines[0].Type)
	assert.Equal(t, LineAdded, h.Lines[1].Type)
}

func TestParseEmpty(t *testing.T) {
	diffs, err := Parse("")
	require.NoError(t, err)
	assert.Empty(t, diffs)
}
