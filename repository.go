package voom

import (
	"context"

	"github.com/albertocavalcante/go-voom/vcs"
)

// Repository is the version-control view voom needs of one repository.
// [GitRepository] adapts a [vcs.Repo]; tests use in-memory fakes.
type Repository interface {
	// Name identifies the repository in results and logs.
	Name() string

	// Origin returns the URL of the origin remote, or "" if there is none.
	Origin(ctx context.Context) (string, error)

	// Branches lists the remote-tracking branches, e.g. "origin/main".
	Branches(ctx context.Context) ([]string, error)

	// Log streams commits selected by opts.
	Log(ctx context.Context, opts vcs.LogOptions) (CommitStream, error)

	// Show returns the content of path at commit sha.
	Show(ctx context.Context, sha, path string) ([]byte, error)

	// Tags lists tags whose names start with prefix, with the commit each
	// points at.
	Tags(ctx context.Context, prefix string) ([]vcs.TagRef, error)

	// WriteTags creates or moves the given tags in one batch.
	WriteTags(ctx context.Context, tags []vcs.TagRef) error

	// ResolveRef returns the commit a ref points at; ok is false if the ref
	// does not exist.
	ResolveRef(ctx context.Context, ref string) (sha string, ok bool, err error)

	// Fetch updates the remote-tracking branches.
	Fetch(ctx context.Context) error
}

// CommitStream iterates over commits. See [vcs.LogStream].
type CommitStream interface {
	Next() bool
	Commit() vcs.Commit
	Err() error
	Close() error
}

// GitRepository adapts a git checkout to [Repository].
func GitRepository(repo *vcs.Repo) Repository {
	return gitRepository{repo}
}

type gitRepository struct {
	*vcs.Repo
}

func (g gitRepository) Log(ctx context.Context, opts vcs.LogOptions) (CommitStream, error) {
	return g.Repo.Log(ctx, opts)
}
