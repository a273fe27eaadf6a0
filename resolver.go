package voom

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/albertocavalcante/go-voom/ancestry"
	"github.com/albertocavalcante/go-voom/label"
	"github.com/albertocavalcante/go-voom/vcs"
)

// Resolver answers which version of a dependency is current on each branch
// of a set of repositories, using the tags written by [Scanner].
//
// The history of each repository is read once, on first use, and kept for
// the lifetime of the Resolver. Call [Resolver.Refresh] after scanning to
// see new tags. A Resolver is safe for concurrent use.
type Resolver struct {
	cfg   *config
	slots []*historySlot
}

type historySlot struct {
	repo Repository
	mu   sync.Mutex
	h    *history
}

// history is the read-only view of one repository the resolver works on.
type history struct {
	name     string
	origin   string
	index    *ancestry.Index
	times    map[string]time.Time
	branches []branchHistory
	// tags are the decodable voom tags on commits in index, by manifest
	// directory.
	tags map[string][]taggedCommit
}

type branchHistory struct {
	name string
	tip  string
	// commits are the commits reachable from tip, oldest first.
	commits []string
}

type taggedCommit struct {
	tag label.Tag
	sha string
}

// NewResolver creates a resolver over repos.
func NewResolver(repos []Repository, opts ...Option) (*Resolver, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, fmt.Errorf("invalid resolver options: %w", err)
	}
	r := &Resolver{cfg: cfg}
	for _, repo := range repos {
		r.slots = append(r.slots, &historySlot{repo: repo})
	}
	return r, nil
}

// Repository returns the repository called name.
func (r *Resolver) Repository(name string) (Repository, bool) {
	for _, s := range r.slots {
		if s.repo.Name() == name {
			return s.repo, true
		}
	}
	return nil, false
}

// Refresh drops every cached history so the next query re-reads tags and
// branches.
func (r *Resolver) Refresh() {
	for _, s := range r.slots {
		s.mu.Lock()
		s.h = nil
		s.mu.Unlock()
	}
}

// Resolve finds every (repository, branch, path) on which req's coordinate
// is tagged, and for each the newest commit still at the tagged version.
//
// When nothing matches, the error is a [*NoMatchingVersionError] listing the
// tags that were considered. Several candidates are not an error here; use
// [Resolution.Unique] when exactly one is required.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Resolution, error) {
	if req.Coordinate.IsEmpty() {
		return nil, errors.New("resolve: request has no coordinate")
	}
	histories, err := r.histories(ctx)
	if err != nil {
		return nil, err
	}

	res := &Resolution{Request: req}
	var considered []label.Tag
	for _, h := range histories {
		if !h.matchesRepository(req.Repository) {
			continue
		}
		found, seen, err := h.resolve(r.cfg.logger, req)
		if err != nil {
			return nil, err
		}
		considered = append(considered, seen...)
		res.Candidates = append(res.Candidates, found...)
	}
	if len(res.Candidates) == 0 {
		return nil, &NoMatchingVersionError{Request: req, Considered: considered}
	}
	return res, nil
}

// histories returns the history of every repository, reading the missing
// ones concurrently.
func (r *Resolver) histories(ctx context.Context) ([]*history, error) {
	out := make([]*history, len(r.slots))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.concurrency)
	for i, slot := range r.slots {
		g.Go(func() error {
			h, err := slot.get(gctx, r.cfg)
			if err != nil {
				return fmt.Errorf("read history of %s: %w", slot.repo.Name(), err)
			}
			out[i] = h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *historySlot) get(ctx context.Context, cfg *config) (*history, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.h != nil {
		return s.h, nil
	}
	h, err := readHistory(ctx, s.repo, cfg)
	if err != nil {
		return nil, err
	}
	s.h = h
	return h, nil
}

func readHistory(ctx context.Context, repo Repository, cfg *config) (*history, error) {
	name := repo.Name()
	logger := cfg.logger.With("repo", name)
	start := time.Now()

	origin, err := repo.Origin(ctx)
	if err != nil {
		return nil, err
	}
	branches, err := repo.Branches(ctx)
	if err != nil {
		return nil, err
	}
	h := &history{
		name:   name,
		origin: origin,
		index:  ancestry.New(),
		times:  make(map[string]time.Time),
		tags:   make(map[string][]taggedCommit),
	}
	if len(branches) == 0 {
		return h, nil
	}

	prog := cfg.newProgress()
	var order []string
	stream, err := repo.Log(ctx, vcs.LogOptions{Revs: branches, Reverse: true})
	if err != nil {
		return nil, err
	}
	defer stream.Close()
	for stream.Next() {
		c := stream.Commit()
		if err := h.index.Add(c.SHA, c.Parents...); err != nil {
			return nil, err
		}
		h.times[c.SHA] = c.Time
		order = append(order, c.SHA)
		prog.report(ProgressEvent{Stage: StageHistory, Repository: name, Commits: len(order)})
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}

	for _, b := range branches {
		tip, ok, err := repo.ResolveRef(ctx, b)
		if err != nil {
			return nil, err
		}
		if !ok || !h.index.Has(tip) {
			logger.Warn("branch moved while reading history, skipping", "branch", b)
			continue
		}
		h.branches = append(h.branches, branchHistory{name: b, tip: tip, commits: h.index.AncestorsAmong(tip, order)})
	}

	refs, err := repo.Tags(ctx, label.TagPrefix+"--")
	if err != nil {
		return nil, err
	}
	for _, ref := range refs {
		tag, err := label.ParseTag(ref.Name)
		if err != nil {
			logger.Debug("ignoring undecodable tag", "tag", ref.Name, "error", err)
			continue
		}
		if !strings.HasPrefix(ref.SHA, tag.SHA) {
			logger.Warn("tag points at a commit other than the one it names", "tag", ref.Name, "sha", ref.SHA)
			continue
		}
		if !h.index.Has(ref.SHA) {
			// Left behind by a rewritten branch, or on a branch since deleted.
			logger.Debug("ignoring tag outside branch history", "tag", ref.Name)
			continue
		}
		h.tags[tag.Path] = append(h.tags[tag.Path], taggedCommit{tag: tag, sha: ref.SHA})
	}
	prog.done(ProgressEvent{Stage: StageHistory, Repository: name, Commits: len(order)})
	logger.Debug("history read", "commits", len(order), "branches", len(h.branches), "tags", len(refs), "elapsed", time.Since(start))
	return h, nil
}

// matchesRepository reports whether filter names this repository, by name,
// by origin URL, or by a trailing part of the origin such as "org/repo".
func (h *history) matchesRepository(filter string) bool {
	if filter == "" || filter == h.name || filter == h.origin {
		return true
	}
	if h.origin == "" {
		return false
	}
	origin := strings.TrimSuffix(h.origin, ".git")
	filter = strings.TrimSuffix(filter, ".git")
	return origin == filter || strings.HasSuffix(origin, "/"+filter) || strings.HasSuffix(origin, ":"+filter)
}

func matchesBranch(branch, filter string) bool {
	if filter == "" || branch == filter {
		return true
	}
	_, local, ok := strings.Cut(branch, "/")
	return ok && local == filter
}

// normalizePath maps a path filter onto the form tags use: slash separated,
// relative, "" for the root.
func normalizePath(p string) string {
	p = strings.Trim(path.Clean("/"+strings.ReplaceAll(p, "\\", "/")), "/")
	return p
}

// resolve returns the candidates of req in this repository and the tags for
// req's coordinate it looked at.
func (h *history) resolve(logger *slog.Logger, req Request) ([]ResolvedVersion, []label.Tag, error) {
	var paths []string
	if req.Path != "" {
		paths = []string{normalizePath(req.Path)}
	} else {
		for p := range h.tags {
			paths = append(paths, p)
		}
		slices.Sort(paths)
	}

	var (
		found      []ResolvedVersion
		considered []label.Tag
	)
	for _, p := range paths {
		var matching, boundaries []taggedCommit
		for _, tc := range h.tags[p] {
			switch {
			case tc.tag.IsDeletion():
				boundaries = append(boundaries, tc)
			case tc.tag.Coordinate == req.Coordinate:
				considered = append(considered, tc.tag)
				boundaries = append(boundaries, tc)
				if strings.HasPrefix(tc.tag.Version, req.VersionPrefix) {
					matching = append(matching, tc)
				}
			}
		}
		if len(matching) == 0 {
			continue
		}
		for _, b := range h.branches {
			if !matchesBranch(b.name, req.Branch) {
				continue
			}
			rv, ok, err := h.resolveOn(logger, b, p, matching, boundaries)
			if err != nil {
				return nil, nil, err
			}
			if !ok {
				continue
			}
			rv.Coordinate = req.Coordinate
			if slices.ContainsFunc(found, rv.sameCommit) {
				logger.Debug("branch resolves to an existing candidate", "branch", b.name, "sha", rv.SHA)
				continue
			}
			found = append(found, rv)
		}
	}
	return found, considered, nil
}

// resolveOn picks the baseline tag on branch b and walks forward from it.
//
// The baseline is the nearest reachable matching tag. When several tagged
// commits sit on parallel lines, the one met first along the tip's
// first-parent chain wins; if that chain meets none of them, or several tags
// sit on the baseline commit itself, resolution fails with
// [*AmbiguousTagSetError]. The resolved commit is the newest commit on b
// whose nearest tag at the same path, by the same rule, is the baseline.
func (h *history) resolveOn(logger *slog.Logger, b branchHistory, p string, matching, boundaries []taggedCommit) (ResolvedVersion, bool, error) {
	reachable := h.index.AncestorsAmong(b.tip, shas(matching))
	if len(reachable) == 0 {
		return ResolvedVersion{}, false, nil
	}
	baseline := reachable[len(reachable)-1]
	if frontier := h.index.Frontier(reachable); len(frontier) > 1 {
		nearest, ok := h.firstParentPick(b.tip, frontier)
		if !ok {
			return ResolvedVersion{}, false, &AmbiguousTagSetError{
				Repository: h.name, Branch: b.name, Path: p, Tags: tagsAt(matching, frontier...),
			}
		}
		logger.Debug("tagged commits on parallel lines, following first parents",
			"repo", h.name, "branch", b.name, "path", p, "commits", frontier, "baseline", nearest)
		baseline = nearest
	}

	atBaseline := tagsAt(matching, baseline)
	if len(atBaseline) > 1 {
		return ResolvedVersion{}, false, &AmbiguousTagSetError{Repository: h.name, Branch: b.name, Path: p, Tags: atBaseline}
	}

	// Boundaries that are not behind the baseline can end its line.
	var later, parallel []string
	for _, s := range shas(boundaries) {
		switch {
		case h.index.IsAncestor(s, baseline):
		case h.index.IsAncestor(baseline, s):
			later = append(later, s)
		default:
			parallel = append(parallel, s)
		}
	}
	boundarySHAs := shas(boundaries)
	resolved, walked := baseline, 0
	for _, c := range h.index.SuccessorsAmong(baseline, b.commits) {
		if c == baseline {
			continue
		}
		if slices.ContainsFunc(later, func(s string) bool { return h.index.IsAncestor(s, c) }) {
			continue
		}
		if slices.ContainsFunc(parallel, func(s string) bool { return h.index.IsAncestor(s, c) }) {
			nearest := h.index.Frontier(h.index.AncestorsAmong(c, boundarySHAs))
			if pick, ok := h.firstParentPick(c, nearest); !ok || pick != baseline {
				continue
			}
		}
		resolved = c
		walked++
	}

	return ResolvedVersion{
		Repository:  h.name,
		Branch:      b.name,
		Path:        p,
		Version:     atBaseline[0].Version,
		SHA:         resolved,
		Time:        h.times[resolved],
		BaselineSHA: baseline,
		Walked:      walked,
	}, true, nil
}

// firstParentPick follows first parents from start and returns the first
// member of candidates it meets. It gives up once no candidate is behind the
// commit it has reached.
func (h *history) firstParentPick(start string, candidates []string) (string, bool) {
	if len(candidates) == 1 {
		return candidates[0], true
	}
	for c := start; ; {
		if slices.Contains(candidates, c) {
			return c, true
		}
		if !slices.ContainsFunc(candidates, func(t string) bool { return h.index.IsAncestor(t, c) }) {
			return "", false
		}
		parents := h.index.Parents(c)
		if len(parents) == 0 {
			return "", false
		}
		c = parents[0]
	}
}

func tagsAt(tcs []taggedCommit, commits ...string) []label.Tag {
	var out []label.Tag
	for _, tc := range tcs {
		if slices.Contains(commits, tc.sha) {
			out = append(out, tc.tag)
		}
	}
	return out
}

// sameCommit reports whether o resolved to the same commit and version as v
// in the same repository and path.
func (v ResolvedVersion) sameCommit(o ResolvedVersion) bool {
	return v.Repository == o.Repository && v.Path == o.Path && v.SHA == o.SHA && v.Version == o.Version
}

func shas(tcs []taggedCommit) []string {
	out := make([]string, 0, len(tcs))
	for _, tc := range tcs {
		out = append(out, tc.sha)
	}
	return out
}
