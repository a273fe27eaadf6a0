// Package testutil builds throwaway git repositories for integration tests.
package testutil

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// Epoch is the commit time of the first commit made through a GitRepo. Each
// later commit is one minute newer.
var Epoch = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

// RequireGit skips the test when no git executable is on PATH.
func RequireGit(t testing.TB) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

// GitRepo is a working tree used as an upstream in tests.
type GitRepo struct {
	Path    string
	t       testing.TB
	commits int
}

// NewGitRepo initializes an empty repository on branch main.
func NewGitRepo(t testing.TB) *GitRepo {
	t.Helper()
	RequireGit(t)
	r := &GitRepo{Path: t.TempDir(), t: t}
	r.Git("init", "--quiet", "--initial-branch=main")
	r.Git("config", "user.name", "Test User")
	r.Git("config", "user.email", "test@example.com")
	r.Git("config", "commit.gpgsign", "false")
	return r
}

// Git runs a git command in the repository and returns trimmed stdout.
func (r *GitRepo) Git(args ...string) string {
	r.t.Helper()
	return run(r.t, r.Path, nil, args...)
}

func run(t testing.TB, dir string, env []string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return strings.TrimSpace(string(out))
}

// Write creates or replaces a file, creating parent directories.
func (r *GitRepo) Write(path, content string) {
	r.t.Helper()
	full := filepath.Join(r.Path, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		r.t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		r.t.Fatalf("write %s: %v", path, err)
	}
}

// Remove deletes a file from the working tree.
func (r *GitRepo) Remove(path string) {
	r.t.Helper()
	if err := os.Remove(filepath.Join(r.Path, filepath.FromSlash(path))); err != nil {
		r.t.Fatalf("remove %s: %v", path, err)
	}
}

// Commit stages everything and commits it, returning the new sha.
func (r *GitRepo) Commit(msg string) string {
	r.t.Helper()
	r.Git("add", "--all")
	r.commitWith("commit", "--quiet", "--allow-empty", "-m", msg)
	return r.Git("rev-parse", "HEAD")
}

// Merge merges branch into the current branch with a merge commit.
func (r *GitRepo) Merge(branch string) string {
	r.t.Helper()
	r.commitWith("merge", "--quiet", "--no-ff", "-m", "merge "+branch, branch)
	return r.Git("rev-parse", "HEAD")
}

func (r *GitRepo) commitWith(args ...string) {
	r.t.Helper()
	when := Epoch.Add(time.Duration(r.commits) * time.Minute).Format(time.RFC3339)
	r.commits++
	run(r.t, r.Path, []string{
		"GIT_AUTHOR_DATE=" + when,
		"GIT_COMMITTER_DATE=" + when,
	}, args...)
}

// Switch checks out an existing branch, or creates it when create is set.
func (r *GitRepo) Switch(branch string, create bool) {
	r.t.Helper()
	if create {
		r.Git("switch", "--quiet", "-c", branch)
		return
	}
	r.Git("switch", "--quiet", branch)
}

// Clone clones the repository into a new temp directory and returns its path.
// The clone has remote-tracking branches under origin/.
func (r *GitRepo) Clone() string {
	r.t.Helper()
	dir := filepath.Join(r.t.TempDir(), filepath.Base(r.Path)+"-clone")
	run(r.t, "", nil, "clone", "--quiet", r.Path, dir)
	run(r.t, dir, nil, "config", "user.name", "Test User")
	run(r.t, dir, nil, "config", "user.email", "test@example.com")
	return dir
}

// LeinProject renders a minimal project.clj.
func LeinProject(coordinate, version string, deps ...[2]string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "(defproject %s %q\n  :description \"test\"\n  :dependencies [", coordinate, version)
	for i, d := range deps {
		if i > 0 {
			sb.WriteString("\n                 ")
		}
		fmt.Fprintf(&sb, "[%s %q]", d[0], d[1])
	}
	sb.WriteString("])\n")
	return sb.String()
}
