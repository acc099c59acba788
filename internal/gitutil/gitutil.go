// Package gitutil wraps the handful of git invocations the tool needs:
// locating the metadata directory, reading the origin remote, and producing
// the unified diff used for anchor resolution.
package gitutil

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// GitDir returns the absolute path of the repository's git metadata
// directory ($GIT_DIR, usually <repoRoot>/.git).
func GitDir(repoRoot string) (string, error) {
	out, err := run(repoRoot, "rev-parse", "--git-dir")
	if err != nil {
		return "", fmt.Errorf("not a git repository: %w", err)
	}
	dir := strings.TrimSpace(out)
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(repoRoot, dir)
	}
	return dir, nil
}

// RemoteURL returns the URL of the named remote, typically "origin".
func RemoteURL(repoRoot, remote string) (string, error) {
	out, err := run(repoRoot, "remote", "get-url", remote)
	if err != nil {
		return "", fmt.Errorf("reading remote %q: %w", remote, err)
	}
	return strings.TrimSpace(out), nil
}

// DiffFile returns the unified diff of a single file between baseRef and
// headRef, using the merge-base form (base...head) so the diff matches what
// the hosting service displays for the PR/MR.
func DiffFile(repoRoot, baseRef, headRef, path string) (string, error) {
	out, err := run(repoRoot, "diff", baseRef+"..."+headRef, "--", path)
	if err != nil {
		return "", fmt.Errorf("diffing %s against %s...%s: %w", path, baseRef, headRef, err)
	}
	return out, nil
}

func run(repoRoot string, args ...string) (string, error) {
	cmd := exec.Command("git", append([]string{"-C", repoRoot}, args...)...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
			return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return string(out), nil
}
