// Package gitutil shells out to git for the small amount of repository
// awareness the tool needs: finding conflicted files, checking the conflict
// style, and annotating the merge message. No version-control logic lives
// here; conflicts are only ever read and rewritten as text.
package gitutil

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// assistedByTrailer is appended to the merge message when resolutions were
// written.
const assistedByTrailer = "Assisted-by: remerge"

// git runs one git command in dir and returns its trimmed stdout.
func git(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok && len(ee.Stderr) > 0 {
			return "", fmt.Errorf("git %s: %s", args[0], strings.TrimSpace(string(ee.Stderr)))
		}
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	return strings.TrimRight(string(out), "\n"), nil
}

// CheckDiff3 verifies that merge.conflictStyle is diff3, the style that
// produces the base section between ||||||| and ======= markers. The base
// disambiguates independent edits, so resolving without it is refused.
func CheckDiff3(ctx context.Context, dir string) error {
	val, err := git(ctx, dir, "config", "--get", "merge.conflictStyle")
	if err != nil {
		return fmt.Errorf("merge.conflictStyle is not set; run 'git config merge.conflictStyle diff3'")
	}
	if strings.TrimSpace(val) != "diff3" && strings.TrimSpace(val) != "zdiff3" {
		return fmt.Errorf("merge.conflictStyle is %q, not diff3; run 'git config merge.conflictStyle diff3'", val)
	}
	return nil
}

// FindConflictedFiles lists files in unmerged (UU) state.
func FindConflictedFiles(ctx context.Context, dir string) ([]string, error) {
	out, err := git(ctx, dir, "status", "--porcelain")
	if err != nil {
		return nil, err
	}
	var files []string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "UU ") {
			files = append(files, strings.TrimSpace(line[3:]))
		}
	}
	return files, nil
}

// CherryPickCommit returns the hash of the in-progress cherry-pick, or ""
// when no cherry-pick is in progress.
func CherryPickCommit(ctx context.Context, dir string) (string, error) {
	hash, err := git(ctx, dir, "rev-parse", "--verify", "--quiet", "CHERRY_PICK_HEAD")
	if err != nil {
		return "", nil
	}
	return strings.TrimSpace(hash), nil
}

// CommitDiff returns the patch a commit introduced, for use as prompt
// context.
func CommitDiff(ctx context.Context, dir, hash string) (string, error) {
	return git(ctx, dir, "show", "--pretty=format:", "--patch", hash)
}

// AppendAssistedBy inserts the assisted-by trailer into .git/MERGE_MSG,
// right after the last non-empty line before the "# Conflicts:" comment.
// Missing MERGE_MSG is not an error; the caller just reminds the user.
func AppendAssistedBy(ctx context.Context, dir string) (bool, error) {
	root, err := git(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return false, err
	}
	msgPath := filepath.Join(root, ".git", "MERGE_MSG")
	data, err := os.ReadFile(msgPath)
	if err != nil {
		return false, nil
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if trailerPresent(lines) {
		return true, nil
	}

	insert := len(lines)
	for i, line := range lines {
		if strings.TrimSpace(line) == "# Conflicts:" {
			insert = i
			break
		}
	}
	for insert > 0 && strings.TrimSpace(lines[insert-1]) == "" {
		insert--
	}

	updated := make([]string, 0, len(lines)+1)
	updated = append(updated, lines[:insert]...)
	updated = append(updated, assistedByTrailer)
	updated = append(updated, lines[insert:]...)

	out := strings.Join(updated, "\n") + "\n"
	if err := os.WriteFile(msgPath, []byte(out), 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", msgPath, err)
	}
	return true, nil
}

func trailerPresent(lines []string) bool {
	for _, line := range lines {
		if strings.TrimSpace(line) == assistedByTrailer {
			return true
		}
	}
	return false
}
