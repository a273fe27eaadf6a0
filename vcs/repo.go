package vcs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// Repo is a handle to one local git clone.
//
// Read operations may run concurrently. Operations that mutate the working
// tree or branch list are serialized per handle.
type Repo struct {
	dir    string
	runner *Runner
	mu     sync.Mutex
}

// Open returns a handle for the clone at dir. It does not touch the disk.
func Open(dir string, runner *Runner) *Repo {
	if runner == nil {
		runner = NewRunner()
	}
	return &Repo{dir: dir, runner: runner}
}

// Dir returns the working tree directory.
func (r *Repo) Dir() string {
	return r.dir
}

// Name returns the base name of the working tree directory.
func (r *Repo) Name() string {
	return filepath.Base(r.dir)
}

func (r *Repo) git(ctx context.Context, args ...string) (string, error) {
	out, err := r.runner.Run(ctx, r.dir, args...)
	return string(out), err
}

// Log starts streaming history.
func (r *Repo) Log(ctx context.Context, opts LogOptions) (*LogStream, error) {
	return newLogStream(ctx, r.runner, r.dir, opts.args())
}

// Commits reads a whole history into memory.
func (r *Repo) Commits(ctx context.Context, opts LogOptions) ([]Commit, error) {
	s, err := r.Log(ctx, opts)
	if err != nil {
		return nil, err
	}
	return readAll(s)
}

// Show returns the content of path as of commit sha.
func (r *Repo) Show(ctx context.Context, sha, path string) ([]byte, error) {
	return r.runner.Run(ctx, r.dir, "show", sha+":"+filepath.ToSlash(path))
}

// RevParse resolves rev to a full commit sha.
func (r *Repo) RevParse(ctx context.Context, rev string) (string, error) {
	out, err := r.git(ctx, "rev-parse", "--verify", "--quiet", rev+"^{commit}")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// ResolveRef is RevParse for refs that may legitimately be missing.
func (r *Repo) ResolveRef(ctx context.Context, ref string) (sha string, ok bool, err error) {
	sha, err = r.RevParse(ctx, ref)
	var ce *CommandError
	if errors.As(err, &ce) && ce.ExitCode == 1 {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return sha, true, nil
}

// Head returns the sha HEAD points at.
func (r *Repo) Head(ctx context.Context) (string, error) {
	return r.RevParse(ctx, "HEAD")
}

// Origin returns the fetch URL of the "origin" remote, or "" when there is
// none.
func (r *Repo) Origin(ctx context.Context) (string, error) {
	out, err := r.git(ctx, "config", "--get", "remote.origin.url")
	var ce *CommandError
	if errors.As(err, &ce) && ce.ExitCode == 1 {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Branches lists the remote-tracking branches, e.g. "origin/main", sorted.
// Symbolic refs such as origin/HEAD are skipped.
func (r *Repo) Branches(ctx context.Context) ([]string, error) {
	out, err := r.git(ctx, "for-each-ref", "--format=%(refname:strip=2)%09%(symref)", "refs/remotes/")
	if err != nil {
		return nil, err
	}
	var branches []string
	for line := range strings.SplitSeq(out, "\n") {
		name, symref, _ := strings.Cut(line, "\t")
		if name == "" || symref != "" || strings.HasSuffix(name, "/HEAD") {
			continue
		}
		branches = append(branches, name)
	}
	slices.Sort(branches)
	return branches, nil
}

// Tags lists tags whose names start with prefix, with the commits they point
// at.
func (r *Repo) Tags(ctx context.Context, prefix string) ([]TagRef, error) {
	out, err := r.git(ctx, "for-each-ref",
		"--format=%(refname:strip=2)%09%(objectname)%09%(*objectname)",
		"refs/tags/")
	if err != nil {
		return nil, err
	}
	var tags []TagRef
	for line := range strings.SplitSeq(out, "\n") {
		if line == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) != 3 {
			return nil, fmt.Errorf("malformed for-each-ref line %q", line)
		}
		// Filtered here: for-each-ref globs do not cross "/" and sentinel
		// names carry the remote's slash.
		if !strings.HasPrefix(parts[0], prefix) {
			continue
		}
		sha := parts[1]
		if parts[2] != "" {
			sha = parts[2]
		}
		tags = append(tags, TagRef{Name: parts[0], SHA: sha})
	}
	return tags, nil
}

// WriteTags force-writes lightweight tags in one transaction. Existing tags
// with the same names are moved.
func (r *Repo) WriteTags(ctx context.Context, tags []TagRef) error {
	if len(tags) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString("start\n")
	for _, t := range tags {
		fmt.Fprintf(&sb, "update refs/tags/%s %s\n", t.Name, t.SHA)
	}
	sb.WriteString("prepare\ncommit\n")
	_, err := r.runner.RunInput(ctx, r.dir, strings.NewReader(sb.String()), "update-ref", "--stdin")
	return err
}

// Fetch updates remote-tracking branches and tags from every remote.
func (r *Repo) Fetch(ctx context.Context) error {
	_, err := r.git(ctx, "fetch", "--all", "--prune", "--quiet")
	return err
}

// Checkout switches the working tree to rev.
func (r *Repo) Checkout(ctx context.Context, rev string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.git(ctx, "checkout", "--quiet", rev)
	return err
}

// CreateBranch creates or resets a local branch at rev.
func (r *Repo) CreateBranch(ctx context.Context, name, rev string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.git(ctx, "branch", "--force", name, rev)
	return err
}

// AddWorktree checks out sha, detached, into a new working tree at path.
func (r *Repo) AddWorktree(ctx context.Context, path, sha string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.git(ctx, "worktree", "add", "--detach", "--force", path, sha)
	return err
}

// RemoveWorktree deletes a working tree created by AddWorktree.
func (r *Repo) RemoveWorktree(ctx context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.git(ctx, "worktree", "remove", "--force", path); err != nil {
		return err
	}
	_, err := r.git(ctx, "worktree", "prune")
	return err
}
