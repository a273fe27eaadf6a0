package voom

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/albertocavalcante/go-voom/label"
	"github.com/albertocavalcante/go-voom/manifest"
	"github.com/albertocavalcante/go-voom/vcs"
)

// Scanner writes a tag for every commit that changed a manifest on any
// remote-tracking branch of one repository.
//
// Each branch's tip is recorded in a sentinel tag once scanned
// (see [label.BranchSentinel]), and history behind any sentinel is skipped
// the next time, so repeated scans only look at new commits. Tags are only
// ever added or force-moved to the same commit; a force-pushed branch leaves
// the tags of its old history behind.
type Scanner struct {
	repo Repository
	cfg  *config
}

// NewScanner creates a scanner for repo.
func NewScanner(repo Repository, opts ...Option) (*Scanner, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, fmt.Errorf("invalid scanner options: %w", err)
	}
	return &Scanner{repo: repo, cfg: cfg}, nil
}

// Scan tags new manifest changes on every branch. A manifest that cannot be
// parsed is logged and skipped; failures of the repository itself abort the
// scan, leaving the sentinels of already scanned branches in place.
func (s *Scanner) Scan(ctx context.Context) (*ScanResult, error) {
	name := s.repo.Name()
	logger := s.cfg.logger.With("repo", name)
	res := &ScanResult{Repository: name}

	branches, err := s.repo.Branches(ctx)
	if err != nil {
		return res, fmt.Errorf("list branches of %s: %w", name, err)
	}
	existing, err := s.repo.Tags(ctx, label.BranchPrefix+"--")
	if err != nil {
		return res, fmt.Errorf("list sentinels of %s: %w", name, err)
	}
	sentinels := make([]string, 0, len(existing)+len(branches))
	for _, ref := range existing {
		sentinels = append(sentinels, ref.Name)
	}

	prog := s.cfg.newProgress()
	for _, branch := range branches {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		scanned, err := s.scanBranch(ctx, logger.With("branch", branch), branch, sentinels, res, prog)
		if err != nil {
			return res, err
		}
		if scanned {
			res.Branches = append(res.Branches, branch)
		}
		if sentinel := label.BranchSentinel(branch); !slices.Contains(sentinels, sentinel) {
			sentinels = append(sentinels, sentinel)
		}
	}
	prog.done(ProgressEvent{Repository: name, Commits: res.Commits, Tags: res.Tags})
	logger.Info("scan complete", "commits", res.Commits, "tags", res.Tags, "unreadable", res.Unreadable)
	return res, nil
}

// tagBatchSize is how many tags a branch scan collects before writing them,
// so an interrupted scan keeps what it already found.
const tagBatchSize = 64

// scanBranch tags the commits of branch not behind any sentinel, then moves
// the branch sentinel to the tip that was read. It reports whether there was
// anything to read.
func (s *Scanner) scanBranch(ctx context.Context, logger *slog.Logger, branch string, sentinels []string, res *ScanResult, prog *progress) (bool, error) {
	tip, ok, err := s.repo.ResolveRef(ctx, branch)
	if err != nil {
		return false, fmt.Errorf("resolve %s: %w", branch, err)
	}
	if !ok {
		logger.Warn("branch vanished before scan")
		return false, nil
	}

	pending, commits, err := s.manifestChanges(ctx, tip, sentinels)
	if err != nil {
		return false, fmt.Errorf("read log of %s: %w", branch, err)
	}

	var (
		refs    []vcs.TagRef
		seen    = make(map[string]bool)
		written int
	)
	flush := func() error {
		if len(refs) == 0 {
			return nil
		}
		if err := s.repo.WriteTags(ctx, refs); err != nil {
			return fmt.Errorf("write tags for %s: %w", branch, err)
		}
		res.Tags += len(refs)
		written += len(refs)
		refs = refs[:0]
		return nil
	}
	scanned := commits - len(pending)
	for _, c := range pending {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		for _, ch := range c.Changes {
			tag, ok, err := s.tagFor(ctx, logger, c, ch, res)
			if err != nil {
				return false, err
			}
			if !ok {
				continue
			}
			tagName, err := tag.Name()
			if err != nil {
				logger.Warn("manifest cannot be encoded as a tag", "sha", c.SHA, "path", ch.Path, "error", err)
				res.Skipped++
				continue
			}
			if seen[tagName] {
				continue
			}
			seen[tagName] = true
			refs = append(refs, vcs.TagRef{Name: tagName, SHA: c.SHA})
			if tag.IsDeletion() {
				res.Deletions++
			}
			logger.Debug("tag", "tag", tagName, "sha", c.SHA)
		}
		if len(refs) >= tagBatchSize {
			if err := flush(); err != nil {
				return false, err
			}
		}
		scanned++
		prog.report(ProgressEvent{Stage: StageScan, Repository: s.repo.Name(), Branch: branch, Commits: res.Commits + scanned, Tags: res.Tags + len(refs)})
	}
	if err := flush(); err != nil {
		return false, err
	}
	res.Commits += commits

	sentinel := []vcs.TagRef{{Name: label.BranchSentinel(branch), SHA: tip}}
	if err := s.repo.WriteTags(ctx, sentinel); err != nil {
		return false, fmt.Errorf("write sentinel for %s: %w", branch, err)
	}
	logger.Debug("branch scanned", "commits", commits, "tags", written, "tip", tip)
	return commits > 0, nil
}

// manifestChanges reads the whole log of tip not behind any sentinel, oldest
// first, and returns the commits that touch a manifest along with the number
// of commits read. The log is closed before any manifest is read, so the git
// timeout covers the log alone.
func (s *Scanner) manifestChanges(ctx context.Context, tip string, sentinels []string) ([]vcs.Commit, int, error) {
	revs := []string{tip}
	for _, sentinel := range sentinels {
		revs = append(revs, "^refs/tags/"+sentinel)
	}
	stream, err := s.repo.Log(ctx, vcs.LogOptions{Revs: revs, Reverse: true, Changes: true})
	if err != nil {
		return nil, 0, err
	}
	defer stream.Close()

	var (
		out     []vcs.Commit
		commits int
	)
	for stream.Next() {
		c := stream.Commit()
		commits++
		changes := c.Changes[:0:0]
		for _, ch := range c.Changes {
			if s.cfg.reader.Match(ch.Path) {
				changes = append(changes, ch)
			}
		}
		if len(changes) == 0 {
			continue
		}
		c.Changes = changes
		out = append(out, c)
	}
	if err := stream.Err(); err != nil {
		return nil, 0, err
	}
	return out, commits, stream.Close()
}

// tagFor derives the tag for one manifest change. ok is false when the
// manifest at that commit is unreadable.
func (s *Scanner) tagFor(ctx context.Context, logger *slog.Logger, c vcs.Commit, ch vcs.Change, res *ScanResult) (label.Tag, bool, error) {
	tag := label.Tag{Path: manifest.Dir(ch.Path), SHA: c.SHA, NoParent: c.IsRoot()}
	if ch.Op == vcs.Deleted {
		return tag, true, nil
	}

	content, err := s.cfg.showCached(ctx, s.repo, c.SHA, ch.Path)
	if err != nil {
		return label.Tag{}, false, fmt.Errorf("read %s at %s: %w", ch.Path, c.SHA, err)
	}
	m, err := s.cfg.reader.Parse(ch.Path, content)
	if errors.Is(err, manifest.ErrParse) {
		logger.Warn("unreadable manifest", "sha", c.SHA, "path", ch.Path, "error", err)
		res.Unreadable++
		return label.Tag{}, false, nil
	}
	if err != nil {
		return label.Tag{}, false, err
	}
	tag.Coordinate = m.Coordinate
	tag.Version = m.Version
	return tag, true, nil
}
