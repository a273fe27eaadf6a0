package box

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertocavalcante/go-voom/internal/testutil"
	"github.com/albertocavalcante/go-voom/vcs"
)

// fakeWorktrees materializes a checkout as a directory holding one manifest.
type fakeWorktrees struct {
	added   []string
	removed []string
	files   map[string]string
	err     error
}

func (f *fakeWorktrees) AddWorktree(ctx context.Context, path, sha string) error {
	if f.err != nil {
		return f.err
	}
	f.added = append(f.added, sha)
	for name, content := range f.files {
		p := filepath.Join(path, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeWorktrees) RemoveWorktree(ctx context.Context, path string) error {
	f.removed = append(f.removed, filepath.Base(path))
	return os.RemoveAll(path)
}

const sha = "0123456789abcdef0123456789abcdef01234567"

func TestBoxAddListRemove(t *testing.T) {
	ctx := context.Background()
	b, err := Open(filepath.Join(t.TempDir(), "box"), nil)
	require.NoError(t, err)
	wt := &fakeWorktrees{files: map[string]string{"core/project.clj": "core", "util/project.clj": "util"}}

	core, err := b.Add(ctx, wt, Entry{Coordinate: "acme/core", Version: "1.0.0", Repository: "mono", Path: "core", SHA: sha})
	require.NoError(t, err)
	assert.Equal(t, "core", core.Name)
	assert.True(t, core.Linked)

	content, err := os.ReadFile(filepath.Join(b.Dir(), "core", "project.clj"))
	require.NoError(t, err)
	assert.Equal(t, "core", string(content))

	_, err = b.Add(ctx, wt, Entry{Name: "u", Coordinate: "acme/util", Repository: "mono", Path: "util", SHA: sha})
	require.NoError(t, err)
	assert.Len(t, wt.added, 1, "checkout at the same commit is shared")

	_, err = b.Add(ctx, wt, Entry{Coordinate: "acme/core", Repository: "mono", Path: "core", SHA: sha})
	assert.ErrorIs(t, err, ErrExists)

	entries, err := b.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "core", entries[0].Name)
	assert.Equal(t, "u", entries[1].Name)
	assert.Equal(t, ".checkouts/mono-"+sha, entries[1].Checkout)

	require.NoError(t, b.Remove(ctx, wt, "core"))
	assert.Empty(t, wt.removed, "checkout still used by u")
	_, ok, err := b.Get("core")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Remove(ctx, wt, "u"))
	assert.Equal(t, []string{"mono-" + sha}, wt.removed)
	assert.NoDirExists(t, filepath.Join(b.Dir(), ".checkouts", "mono-"+sha))

	assert.ErrorIs(t, b.Remove(ctx, wt, "u"), ErrNotFound)
}

func TestBoxListReportsMissingLinks(t *testing.T) {
	ctx := context.Background()
	b, err := Open(t.TempDir(), nil)
	require.NoError(t, err)
	wt := &fakeWorktrees{}

	_, err = b.Add(ctx, wt, Entry{Coordinate: "acme/core", Repository: "core", SHA: sha})
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(b.Dir(), "core")))

	e, ok, err := b.Get("core")
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, e.Linked)
}

func TestBoxAddRejects(t *testing.T) {
	ctx := context.Background()
	b, err := Open(t.TempDir(), nil)
	require.NoError(t, err)

	tests := []struct {
		name  string
		entry Entry
	}{
		{"hidden name", Entry{Name: ".hidden", Repository: "core", SHA: sha}},
		{"nested name", Entry{Name: "a/b", Repository: "core", SHA: sha}},
		{"no sha", Entry{Name: "core", Repository: "core"}},
		{"bad coordinate", Entry{Coordinate: "a/b/c", Repository: "core", SHA: sha}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Add(ctx, &fakeWorktrees{}, tt.entry)
			assert.Error(t, err)
		})
	}

	require.NoError(t, os.WriteFile(filepath.Join(b.Dir(), "core"), nil, 0o644))
	_, err = b.Add(ctx, &fakeWorktrees{}, Entry{Coordinate: "acme/core", Repository: "core", SHA: sha})
	assert.ErrorIs(t, err, ErrExists)

	_, err = b.Add(ctx, &fakeWorktrees{err: errors.New("boom")}, Entry{Name: "x", Repository: "core", SHA: sha})
	assert.ErrorContains(t, err, "boom")
	entries, err := b.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBoxWithGitWorktree(t *testing.T) {
	upstream := testutil.NewGitRepo(t)
	upstream.Write("lib/project.clj", testutil.LeinProject("acme/lib", "1.0.0"))
	first := upstream.Commit("lib 1.0.0")
	upstream.Write("lib/project.clj", testutil.LeinProject("acme/lib", "1.1.0"))
	upstream.Commit("lib 1.1.0")

	repo := vcs.Open(upstream.Path, nil)
	ctx := context.Background()
	b, err := Open(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = b.Add(ctx, repo, Entry{Coordinate: "acme/lib", Repository: "lib", Path: "lib", SHA: first})
	require.NoError(t, err)
	content, err := os.ReadFile(filepath.Join(b.Dir(), "lib", "project.clj"))
	require.NoError(t, err)
	assert.Contains(t, string(content), `"1.0.0"`)

	require.NoError(t, b.Remove(ctx, repo, "lib"))
	assert.NoDirExists(t, filepath.Join(b.Dir(), ".checkouts", "lib-"+first))
}
