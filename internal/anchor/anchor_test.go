package anchor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftreview/pkg/models"
)

// Diff adding lines 8-15 of src/app.py, plus a removal-only hunk further
// down. Mirrors the shape of a typical feature-branch diff.
const appDiff = `diff --git a/src/app.py b/src/app.py
index 1111111..2222222 100644
--- a/src/app.py
+++ b/src/app.py
@@ -5,3 +5,11 @@ def main():
 context five
 context six
 context seven
+added eight
+added nine
+added ten
+added eleven
+added twelve
+added thirteen
+added fourteen
+added fifteen
@@ -30,3 +38,2 @@ def teardown():
 context thirty
-removed thirty-one
 context thirty-two
`

func fixedDiff(text string) DiffFunc {
	return func(repoRoot, baseRef, headRef, path string) (string, error) {
		return text, nil
	}
}

func TestResolveHeadLineInsideHunk(t *testing.T) {
	r := NewResolverWithDiff(fixedDiff(appDiff))

	a, err := r.Resolve(".", "main", "feature", "src/app.py", models.SideHead, 10, 10)
	require.NoError(t, err)
	assert.Equal(t, "src/app.py", a.Path)
	assert.Equal(t, models.SideHead, a.Side)
	assert.Equal(t, 10, a.StartLine)
	assert.Equal(t, 10, a.EndLine)
	assert.NotEmpty(t, a.ContentHash, "anchors carry a fingerprint of the anchored text")
}

func TestResolveRangeWithinOneHunk(t *testing.T) {
	r := NewResolverWithDiff(fixedDiff(appDiff))

	a, err := r.Resolve(".", "main", "feature", "src/app.py", models.SideHead, 8, 15)
	require.NoError(t, err)
	assert.Equal(t, 8, a.StartLine)
	assert.Equal(t, 15, a.EndLine)
	assert.True(t, a.MultiLine())
}

func TestResolveBaseSideRemovedLine(t *testing.T) {
	r := NewResolverWithDiff(fixedDiff(appDiff))

	a, err := r.Resolve(".", "main", "feature", "src/app.py", models.SideBase, 31, 31)
	require.NoError(t, err)
	assert.Equal(t, models.SideBase, a.Side)
}

func TestResolveLineOutsideHunk(t *testing.T) {
	r := NewResolverWithDiff(fixedDiff(appDiff))

	_, err := r.Resolve(".", "main", "feature", "src/app.py", models.SideHead, 100, 100)
	var anchorErr *Error
	require.True(t, errors.As(err, &anchorErr))
	assert.Equal(t, LineOutsideHunk, anchorErr.Kind)
}

func TestResolveRangeSpanningHunksIsAmbiguous(t *testing.T) {
	r := NewResolverWithDiff(fixedDiff(appDiff))

	// Head lines 15 (first hunk) through 38 (second hunk).
	_, err := r.Resolve(".", "main", "feature", "src/app.py", models.SideHead, 15, 38)
	var anchorErr *Error
	require.True(t, errors.As(err, &anchorErr))
	// Lines between the hunks are not in any hunk, so the gap is reported
	// before the boundary crossing.
	assert.Equal(t, LineOutsideHunk, anchorErr.Kind)
}

func TestResolveAdjacentHunkRangeIsAmbiguous(t *testing.T) {
	// Two back-to-back hunks with no gap on the head side, as produced by
	// a zero-context diff.
	text := `diff --git a/f.go b/f.go
--- a/f.go
+++ b/f.go
@@ -1,2 +1,3 @@
 one
 two
+three new
@@ -3,2 +4,2 @@
 four
-old five
+five new
`
	r := NewResolverWithDiff(fixedDiff(text))

	_, err := r.Resolve(".", "main", "feature", "f.go", models.SideHead, 3, 4)
	var anchorErr *Error
	require.True(t, errors.As(err, &anchorErr))
	assert.Equal(t, AmbiguousRange, anchorErr.Kind)
}

func TestResolveFileNotInDiff(t *testing.T) {
	r := NewResolverWithDiff(fixedDiff(appDiff))

	_, err := r.Resolve(".", "main", "feature", "src/other.py", models.SideHead, 1, 1)
	var anchorErr *Error
	require.True(t, errors.As(err, &anchorErr))
	assert.Equal(t, FileNotInDiff, anchorErr.Kind)
}

func TestResolveIsDeterministic(t *testing.T) {
	r := NewResolverWithDiff(fixedDiff(appDiff))

	first, err := r.Resolve(".", "main", "feature", "src/app.py", models.SideHead, 9, 12)
	require.NoError(t, err)
	second, err := r.Resolve(".", "main", "feature", "src/app.py", models.SideHead, 9, 12)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestReresolvePropagatesResolutionFailure(t *testing.T) {
	r := NewResolverWithDiff(fixedDiff(appDiff))

	a, err := r.Resolve(".", "main", "feature", "src/app.py", models.SideHead, 10, 10)
	require.NoError(t, err)

	// Same position still valid: no error.
	require.NoError(t, r.Reresolve(".", "main", "feature", a))

	// New commits shrink the hunk so line 10 no longer exists in it.
	shrunk := `diff --git a/src/app.py b/src/app.py
--- a/src/app.py
+++ b/src/app.py
@@ -5,3 +5,4 @@ def main():
 context five
 context six
 context seven
+added eight
`
	stale := NewResolverWithDiff(fixedDiff(shrunk))
	err = stale.Reresolve(".", "main", "feature", a)
	var anchorErr *Error
	require.True(t, errors.As(err, &anchorErr))
	assert.Equal(t, LineOutsideHunk, anchorErr.Kind)
}

func TestReresolveDetectsStaleAnchor(t *testing.T) {
	r := NewResolverWithDiff(fixedDiff(appDiff))

	a, err := r.Resolve(".", "main", "feature", "src/app.py", models.SideHead, 10, 10)
	require.NoError(t, err)

	// A force-push leaves line 10 inside a hunk of the same shape but with
	// different content under it.
	rewritten := `diff --git a/src/app.py b/src/app.py
index 1111111..3333333 100644
--- a/src/app.py
+++ b/src/app.py
@@ -5,3 +5,11 @@ def main():
 context five
 context six
 context seven
+added eight
+added nine
+rewritten ten
+added eleven
+added twelve
+added thirteen
+added fourteen
+added fifteen
`
	moved := NewResolverWithDiff(fixedDiff(rewritten))
	err = moved.Reresolve(".", "main", "feature", a)
	var anchorErr *Error
	require.True(t, errors.As(err, &anchorErr))
	assert.Equal(t, StaleAnchor, anchorErr.Kind)

	// An anchor without a fingerprint (older session files) is accepted as
	// long as the range still resolves.
	a.ContentHash = ""
	require.NoError(t, moved.Reresolve(".", "main", "feature", a))
}

func TestResolveSwapsInvertedRange(t *testing.T) {
	r := NewResolverWithDiff(fixedDiff(appDiff))

	a, err := r.Resolve(".", "main", "feature", "src/app.py", models.SideHead, 12, 9)
	require.NoError(t, err)
	assert.Equal(t, 9, a.StartLine)
	assert.Equal(t, 12, a.EndLine)
}
