package voom

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/albertocavalcante/go-voom/vcs"
)

// fakeRepo is an in-memory Repository. Commits are added oldest first, each
// with the files it changes; a nil content deletes the file.
type fakeRepo struct {
	name   string
	origin string

	mu       sync.Mutex
	commits  []vcs.Commit
	byID     map[string]vcs.Commit
	trees    map[string]map[string]string
	branches map[string]string
	tags     map[string]string
	head     string
	shows    int
	fetches  int
	logErr   error

	// showErr fails every Show after the first showErrAfter calls.
	showErr      error
	showErrAfter int
	// openLogs counts unclosed log streams; logShows counts Show calls
	// made while one was open.
	openLogs int
	logShows int
}

func newFakeRepo(name string) *fakeRepo {
	return &fakeRepo{
		name:     name,
		byID:     make(map[string]vcs.Commit),
		trees:    make(map[string]map[string]string),
		branches: make(map[string]string),
		tags:     make(map[string]string),
	}
}

var fakeEpoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// commit adds a commit named id and returns its sha. The first parent's
// tree is inherited.
func (f *fakeRepo) commit(id string, parents []string, files map[string]*string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	sum := sha1.Sum([]byte(f.name + "/" + id))
	sha := hex.EncodeToString(sum[:])

	tree := make(map[string]string)
	if len(parents) > 0 {
		maps.Copy(tree, f.trees[parents[0]])
	}
	var changes []vcs.Change
	for _, p := range slices.Sorted(maps.Keys(files)) {
		content := files[p]
		_, existed := tree[p]
		switch {
		case content == nil:
			delete(tree, p)
			changes = append(changes, vcs.Change{Op: vcs.Deleted, Path: p})
		case existed:
			tree[p] = *content
			changes = append(changes, vcs.Change{Op: vcs.Modified, Path: p})
		default:
			tree[p] = *content
			changes = append(changes, vcs.Change{Op: vcs.Added, Path: p})
		}
	}
	c := vcs.Commit{
		SHA:     sha,
		Parents: slices.Clone(parents),
		Time:    fakeEpoch.Add(time.Duration(len(f.commits)) * time.Hour),
		Changes: changes,
	}
	f.commits = append(f.commits, c)
	f.byID[sha] = c
	f.trees[sha] = tree
	f.head = sha
	return sha
}

func (f *fakeRepo) setBranch(name, sha string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.branches[name] = sha
}

func str(s string) *string { return &s }

func (f *fakeRepo) Name() string { return f.name }

func (f *fakeRepo) Origin(ctx context.Context) (string, error) { return f.origin, nil }

func (f *fakeRepo) Branches(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Sorted(maps.Keys(f.branches)), nil
}

func (f *fakeRepo) resolve(ref string) (string, bool) {
	if name, ok := strings.CutPrefix(ref, "refs/tags/"); ok {
		sha, ok := f.tags[name]
		return sha, ok
	}
	if ref == "HEAD" {
		return f.head, f.head != ""
	}
	if sha, ok := f.branches[ref]; ok {
		return sha, true
	}
	if _, ok := f.byID[ref]; ok {
		return ref, true
	}
	return "", false
}

func (f *fakeRepo) ancestors(sha string, into map[string]bool) {
	stack := []string{sha}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if into[s] {
			continue
		}
		into[s] = true
		stack = append(stack, f.byID[s].Parents...)
	}
}

func (f *fakeRepo) Log(ctx context.Context, opts vcs.LogOptions) (CommitStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.logErr != nil {
		return nil, f.logErr
	}
	include, exclude := map[string]bool{}, map[string]bool{}
	revs := opts.Revs
	if len(revs) == 0 {
		revs = []string{"HEAD"}
	}
	for _, rev := range revs {
		neg := strings.HasPrefix(rev, "^")
		sha, ok := f.resolve(strings.TrimPrefix(rev, "^"))
		if !ok {
			if neg {
				continue
			}
			return nil, &vcs.CommandError{Args: []string{"log", rev}, ExitCode: 128, Err: errors.New("bad revision")}
		}
		if neg {
			f.ancestors(sha, exclude)
		} else {
			f.ancestors(sha, include)
		}
	}
	var out []vcs.Commit
	for _, c := range f.commits {
		if !include[c.SHA] || exclude[c.SHA] {
			continue
		}
		if !opts.Changes {
			c.Changes = nil
		}
		out = append(out, c)
	}
	if !opts.Reverse {
		slices.Reverse(out)
	}
	if opts.MaxCount > 0 && len(out) > opts.MaxCount {
		out = out[:opts.MaxCount]
	}
	f.openLogs++
	return &sliceStream{commits: out, i: -1, onClose: func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.openLogs--
	}}, nil
}

func (f *fakeRepo) Show(ctx context.Context, sha, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shows++
	if f.openLogs > 0 {
		f.logShows++
	}
	if f.showErr != nil && f.shows > f.showErrAfter {
		return nil, f.showErr
	}
	full := sha
	if _, ok := f.byID[sha]; !ok {
		for id := range f.byID {
			if strings.HasPrefix(id, sha) {
				full = id
			}
		}
	}
	content, ok := f.trees[full][path]
	if !ok {
		return nil, &vcs.CommandError{Args: []string{"show", sha + ":" + path}, ExitCode: 128, Err: errors.New("path not in tree")}
	}
	return []byte(content), nil
}

func (f *fakeRepo) Tags(ctx context.Context, prefix string) ([]vcs.TagRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var refs []vcs.TagRef
	for _, name := range slices.Sorted(maps.Keys(f.tags)) {
		if strings.HasPrefix(name, prefix) {
			refs = append(refs, vcs.TagRef{Name: name, SHA: f.tags[name]})
		}
	}
	return refs, nil
}

func (f *fakeRepo) WriteTags(ctx context.Context, tags []vcs.TagRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range tags {
		f.tags[t.Name] = t.SHA
	}
	return nil
}

func (f *fakeRepo) ResolveRef(ctx context.Context, ref string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sha, ok := f.resolve(ref)
	return sha, ok, nil
}

func (f *fakeRepo) Fetch(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	return nil
}

// voomTags returns the names of the voom--* tags, sorted.
func (f *fakeRepo) voomTags() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for name := range f.tags {
		if strings.HasPrefix(name, "voom--") {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

type sliceStream struct {
	commits []vcs.Commit
	i       int
	onClose func()
}

func (s *sliceStream) Next() bool {
	s.i++
	return s.i < len(s.commits)
}

func (s *sliceStream) Commit() vcs.Commit { return s.commits[s.i] }
func (s *sliceStream) Err() error         { return nil }

func (s *sliceStream) Close() error {
	if s.onClose != nil {
		s.onClose()
		s.onClose = nil
	}
	return nil
}
