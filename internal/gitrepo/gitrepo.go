// Package gitrepo provides git integration for the versioned record store.
// It shells out to the git CLI; only "read file contents at commit X" and
// "list commits touching file Y" are assumed of the underlying store.
package gitrepo

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNotGitRepo indicates the directory is not a git repository.
var ErrNotGitRepo = errors.New("not a git repository")

// ErrCommitNotFound indicates the specified commit does not exist.
var ErrCommitNotFound = errors.New("commit not found")

// CommitInfo identifies a commit touching the record store.
type CommitInfo struct {
	SHA     string
	Message string
}

// FindRepoRoot finds the root of the git repository containing the given path.
// Returns ErrNotGitRepo if not in a git repository.
func FindRepoRoot(path string) (string, error) {
	cmd := exec.Command("git", "-C", path, "rev-parse", "--show-toplevel")
	output, err := cmd.Output()
	if err != nil {
		return "", ErrNotGitRepo
	}
	return strings.TrimSpace(string(output)), nil
}

// ValidateCommit verifies that a commit reference exists.
// Supports SHA, HEAD, HEAD~N, branch names, tags, etc.
// Returns the resolved full SHA or ErrCommitNotFound.
func ValidateCommit(repoRoot, commitRef string) (string, error) {
	cmd := exec.Command("git", "-C", repoRoot, "rev-parse", "--verify", commitRef+"^{commit}")
	output, err := cmd.Output()
	if err != nil {
		return "", ErrCommitNotFound
	}
	return strings.TrimSpace(string(output)), nil
}

// HeadSHA returns the SHA of the current HEAD commit.
func HeadSHA(repoRoot string) (string, error) {
	return ValidateCommit(repoRoot, "HEAD")
}

// IsDirty reports whether the working tree has uncommitted changes.
func IsDirty(repoRoot string) bool {
	cmd := exec.Command("git", "-C", repoRoot, "status", "--porcelain")
	output, err := cmd.Output()
	if err != nil {
		return false
	}
	return len(bytes.TrimSpace(output)) != 0
}

// CommitsTouching returns the commits that touched the given path,
// most recent first.
func CommitsTouching(repoRoot, path string) ([]CommitInfo, error) {
	cmd := exec.Command("git", "-C", repoRoot, "log", "--oneline", "--no-abbrev-commit", "--", path)
	output, err := cmd.Output()
	if err != nil {
		// No commits yet, or file never tracked.
		return nil, nil
	}
	return parseLogOneline(output), nil
}

// ShowAt returns the contents of path at the given commit. A path absent at
// that commit yields empty content, not an error.
func ShowAt(repoRoot, commitRef, path string) ([]byte, error) {
	sha, err := ValidateCommit(repoRoot, commitRef)
	if err != nil {
		return nil, err
	}
	cmd := exec.Command("git", "-C", repoRoot, "show", sha+":"+path)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, nil
		}
		return nil, fmt.Errorf("showing %s at %s: %w", path, commitRef, err)
	}
	return output, nil
}

// CommitMessage returns the subject line of the given commit.
func CommitMessage(repoRoot, commitRef string) (string, error) {
	sha, err := ValidateCommit(repoRoot, commitRef)
	if err != nil {
		return "", err
	}
	cmd := exec.Command("git", "-C", repoRoot, "log", "-1", "--format=%s", sha)
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("reading commit message for %s: %w", commitRef, err)
	}
	return strings.TrimSpace(string(output)), nil
}

// CommitFile stages the given path and commits it with msg, returning the
// new commit SHA. When staging changes nothing (the file matches HEAD) no
// commit is created and the current HEAD SHA is returned, so idempotent
// re-runs of an operation succeed.
func CommitFile(repoRoot, path, msg string) (string, error) {
	add := exec.Command("git", "-C", repoRoot, "add", "--", path)
	if out, err := add.CombinedOutput(); err != nil {
		return "", fmt.Errorf("staging %s: %s: %w", path, strings.TrimSpace(string(out)), err)
	}
	diff := exec.Command("git", "-C", repoRoot, "diff", "--cached", "--quiet", "--", path)
	if err := diff.Run(); err == nil {
		return HeadSHA(repoRoot)
	}
	commit := exec.Command("git", "-C", repoRoot, "commit", "-m", msg, "--", path)
	if out, err := commit.CombinedOutput(); err != nil {
		return "", fmt.Errorf("committing %s: %s: %w", path, strings.TrimSpace(string(out)), err)
	}
	return HeadSHA(repoRoot)
}

// parseLogOneline parses git log --oneline output.
func parseLogOneline(data []byte) []CommitInfo {
	var commits []CommitInfo
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, " ", 2)
		ci := CommitInfo{SHA: parts[0]}
		if len(parts) > 1 {
			ci.Message = parts[1]
		}
		commits = append(commits, ci)
	}
	return commits
}
