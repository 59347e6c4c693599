// Package git wraps the git CLI for the repository operations the workflow
// needs: branch inspection and creation, staging, committing, pushing, and
// diff capture. All commands run in the current working directory.
package git

import (
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
)

// IsRepository checks if the current directory is within a git repository.
func IsRepository() bool {
	cmd := exec.Command("git", "rev-parse", "--git-dir")
	return cmd.Run() == nil
}

// CurrentBranch returns the name of the checked-out branch.
func CurrentBranch() (string, error) {
	cmd := exec.Command("git", "rev-parse", "--abbrev-ref", "HEAD")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("resolving current branch: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// HeadSHA returns the full commit hash of HEAD.
func HeadSHA() (string, error) {
	cmd := exec.Command("git", "rev-parse", "HEAD")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("resolving HEAD: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// BranchNames returns all local and remote branch names, deduplicated and
// sorted, with remote prefixes and HEAD pointers stripped.
func BranchNames() ([]string, error) {
	cmd := exec.Command("git", "branch", "-a", "--format=%(refname:short)")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("listing branches: %w", err)
	}
	return parseBranchNames(string(output), remoteNames()), nil
}

// parseBranchNames normalizes raw `git branch -a` lines.
func parseBranchNames(raw string, remotes []string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.Contains(line, "HEAD") {
			continue
		}
		line = strings.TrimPrefix(line, "remotes/")
		if idx := strings.Index(line, "/"); idx > 0 {
			// Strip a leading remote like "origin/"; branch names containing
			// slashes (feature/x) keep everything after it.
			for _, r := range remotes {
				if line[:idx] == r {
					line = line[idx+1:]
					break
				}
			}
		}
		if line == "" || seen[line] {
			continue
		}
		seen[line] = true
		names = append(names, line)
	}
	sort.Strings(names)
	return names
}

func remoteNames() []string {
	cmd := exec.Command("git", "remote")
	output, err := cmd.Output()
	if err != nil {
		return []string{"origin"}
	}
	var remotes []string
	for _, r := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		if r = strings.TrimSpace(r); r != "" {
			remotes = append(remotes, r)
		}
	}
	if len(remotes) == 0 {
		return []string{"origin"}
	}
	return remotes
}

// CreateBranch creates a new branch and checks it out.
func CreateBranch(name string) error {
	cmd := exec.Command("git", "checkout", "-b", name)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("creating branch %q: %w", name, err)
	}
	return nil
}

// StageAll stages every change in the working tree.
func StageAll() error {
	cmd := exec.Command("git", "add", "-A")
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("staging changes: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// HasStagedChanges reports whether anything is staged for commit.
func HasStagedChanges() bool {
	cmd := exec.Command("git", "diff", "--cached", "--quiet")
	// Exit status 1 means differences exist.
	return cmd.Run() != nil
}

// Commit records the staged changes with the given message and returns the
// new commit hash.
func Commit(message string) (string, error) {
	cmd := exec.Command("git", "commit", "-m", message)
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("committing: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return HeadSHA()
}

// Push pushes branch to remote. With upstream set, the branch is pushed with
// tracking (-u); callers retry once without the flag when the push fails.
func Push(remote, branch string, upstream bool) error {
	args := []string{"push"}
	if upstream {
		args = append(args, "-u")
	}
	args = append(args, remote, branch)

	cmd := exec.Command("git", args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("pushing %s to %s: %w: %s", branch, remote, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// DiffStaged returns the staged diff text.
func DiffStaged() (string, error) {
	cmd := exec.Command("git", "diff", "--cached")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("reading staged diff: %w", err)
	}
	return string(output), nil
}

// DiffWorkingTree returns the full uncommitted diff, staged and unstaged.
func DiffWorkingTree() (string, error) {
	cmd := exec.Command("git", "diff", "HEAD")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("reading working tree diff: %w", err)
	}
	return string(output), nil
}

// RecentSubjects returns up to n recent commit subject lines, newest first.
func RecentSubjects(n int) ([]string, error) {
	cmd := exec.Command("git", "log", fmt.Sprintf("-%d", n), "--pretty=%s")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("reading commit log: %w", err)
	}
	trimmed := strings.TrimSpace(string(output))
	if trimmed == "" {
		return nil, nil
	}
	return strings.Split(trimmed, "\n"), nil
}

// ProjectPath derives the GitLab "group/name" path from the origin remote.
func ProjectPath() (string, error) {
	cmd := exec.Command("git", "remote", "get-url", "origin")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("reading origin remote: %w", err)
	}
	return ParseProjectPath(strings.TrimSpace(string(output)))
}

// ParseProjectPath extracts "group/name" from an SSH or HTTPS remote URL.
func ParseProjectPath(remoteURL string) (string, error) {
	u := strings.TrimSuffix(remoteURL, ".git")
	switch {
	case strings.HasPrefix(u, "git@"):
		// git@gitlab.example.com:group/name
		_, after, found := strings.Cut(u, ":")
		if !found || after == "" {
			return "", fmt.Errorf("unrecognized remote URL %q", remoteURL)
		}
		return after, nil
	case strings.HasPrefix(u, "http://"), strings.HasPrefix(u, "https://"), strings.HasPrefix(u, "ssh://"):
		_, rest, _ := strings.Cut(u, "://")
		_, path, found := strings.Cut(rest, "/")
		if !found || path == "" {
			return "", fmt.Errorf("unrecognized remote URL %q", remoteURL)
		}
		return strings.TrimPrefix(path, "~/"), nil
	default:
		return "", fmt.Errorf("unrecognized remote URL %q", remoteURL)
	}
}
