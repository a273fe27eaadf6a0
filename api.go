// Package voom derives dependency versions from git history instead of a
// hand-maintained version file.
//
// Every commit that changes a build descriptor (a "manifest") gets a
// lightweight git tag recording the project coordinate, version and
// manifest directory at that commit. From those tags and the commit graph,
// voom answers "which commit is the newest one at version V of dependency D
// on branch B", and writes the answer back into dependent manifests as a
// qualified version such as 1.2.0-20240102_030405-gabc1234.
//
// # Overview
//
// The package provides three main components:
//
//   - [Scanner]: tags manifest changes in one repository's history
//   - [Resolver]: resolves a [Request] across repositories to candidate
//     [ResolvedVersion] values
//   - [Rewriter]: substitutes versions in a manifest with an exactly-one-match
//     rule and an atomic, verified file replacement
//
// [Resolver.Freshen] combines the last two; [Resolver.BuildDeps] finds the
// dependencies that still need building.
//
// # Quick Start
//
//	repo := voom.GitRepository(vcs.Open("/src/core", nil))
//	if _, err := voom.ScanAll(ctx, []voom.Repository{repo}); err != nil {
//	    return err
//	}
//
//	resolver, _ := voom.NewResolver([]voom.Repository{repo})
//	res, err := resolver.Resolve(ctx, voom.Request{
//	    Coordinate: label.MustCoordinate("acme/core"),
//	    Branch:     "main",
//	})
//	v, err := res.Unique()
//	fmt.Println(v.Qualified(false))
//
// # Ambiguity
//
// voom never guesses. A request matching several repositories, branches or
// manifest paths yields several candidates, and [Resolution.Unique] reports
// them all in an [*AmbiguousResolutionError].
//
// # Thread Safety
//
// [Resolver] is safe for concurrent use. A [Scanner] must not run twice at
// once on the same repository.
package voom

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/albertocavalcante/go-voom/vcs"
)

// ScanAll scans every repository in parallel, at most [WithConcurrency] at
// a time, and waits for all of them. A failing repository does not stop the
// others; results[i] is the (possibly partial) result for repos[i] and the
// error joins every failure.
func ScanAll(ctx context.Context, repos []Repository, opts ...Option) ([]*ScanResult, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, fmt.Errorf("invalid scan options: %w", err)
	}
	results := make([]*ScanResult, len(repos))
	errs := make([]error, len(repos))

	var g errgroup.Group
	g.SetLimit(cfg.concurrency)
	for i, repo := range repos {
		g.Go(func() error {
			s := &Scanner{repo: repo, cfg: cfg}
			results[i], errs[i] = s.Scan(ctx)
			if errs[i] != nil {
				cfg.logger.Error("scan failed", "repo", repo.Name(), "error", errs[i])
			}
			return nil
		})
	}
	_ = g.Wait()
	return results, errors.Join(errs...)
}

// FetchAll fetches every repository in parallel and waits for all of them.
// The error joins every failure.
func FetchAll(ctx context.Context, repos []Repository, opts ...Option) error {
	cfg, err := newConfig(opts)
	if err != nil {
		return fmt.Errorf("invalid fetch options: %w", err)
	}
	errs := make([]error, len(repos))
	prog := cfg.newProgress()

	var g errgroup.Group
	g.SetLimit(cfg.concurrency)
	for i, repo := range repos {
		g.Go(func() error {
			if err := repo.Fetch(ctx); err != nil {
				errs[i] = fmt.Errorf("fetch %s: %w", repo.Name(), err)
				return nil
			}
			cfg.logger.Debug("fetched", "repo", repo.Name())
			prog.report(ProgressEvent{Stage: StageFetch, Repository: repo.Name()})
			return nil
		})
	}
	_ = g.Wait()
	prog.done(ProgressEvent{Stage: StageFetch})
	return errors.Join(errs...)
}

// OpenRepositories returns a [Repository] for every git checkout directly
// under dir, sorted by name.
func OpenRepositories(dir string, runner *vcs.Runner) ([]Repository, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	var repos []Repository
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if _, err := os.Stat(filepath.Join(path, ".git")); err != nil {
			continue
		}
		repos = append(repos, GitRepository(vcs.Open(path, runner)))
	}
	slices.SortFunc(repos, func(a, b Repository) int {
		switch {
		case a.Name() < b.Name():
			return -1
		case a.Name() > b.Name():
			return 1
		}
		return 0
	})
	return repos, nil
}
