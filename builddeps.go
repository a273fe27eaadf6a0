package voom

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/albertocavalcante/go-voom/graph"
	"github.com/albertocavalcante/go-voom/label"
	"github.com/albertocavalcante/go-voom/manifest"
)

// BuildDepsOptions configures [Resolver.BuildDeps].
type BuildDepsOptions struct {
	// Branch restricts where dependency sources are looked up.
	Branch string

	// ArtifactDir is a local Maven-layout repository, usually
	// ~/.m2/repository. Dependencies installed there need no build.
	ArtifactDir string
}

// BuildDeps works out which voom-built dependencies of the manifest at path
// are missing locally, transitively, and where each is built from.
//
// A dependency with a qualified version names the commit it was built
// from. Its manifest is read at that commit to find its own dependencies.
// Dependencies with plain versions come from elsewhere and are treated as
// present. [graph.Graph.BuildOrder] gives the order to build the result in.
func (r *Resolver) BuildDeps(ctx context.Context, manifestPath string, opts BuildDepsOptions) (*graph.Graph, error) {
	m, err := r.cfg.reader.ReadFile(manifestPath)
	if err != nil {
		return nil, err
	}
	root := graph.Key{Coordinate: m.Coordinate, Version: m.Version}
	g := graph.New(root)

	type pending struct {
		from graph.Key
		deps []manifest.Dependency
	}
	queue := []pending{{from: root, deps: m.Dependencies}}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		for _, dep := range p.deps {
			key := graph.Key{Coordinate: dep.Coordinate, Version: dep.Version}
			if g.Get(key) == nil {
				deps, src, err := r.dependencySource(ctx, dep, opts)
				if err != nil {
					return nil, fmt.Errorf("%s (required by %s): %w", key, p.from, err)
				}
				g.Add(key, src)
				if src != nil {
					queue = append(queue, pending{from: key, deps: deps})
				}
			}
			g.AddEdge(p.from, key)
		}
	}
	return g, nil
}

// dependencySource returns where dep is built from and what it depends on,
// or a nil source if dep needs no build.
func (r *Resolver) dependencySource(ctx context.Context, dep manifest.Dependency, opts BuildDepsOptions) ([]manifest.Dependency, *graph.Source, error) {
	q, err := label.ParseVersion(dep.Version)
	if err != nil {
		return nil, nil, nil
	}
	if artifactInstalled(opts.ArtifactDir, dep) {
		r.cfg.logger.Debug("artifact installed", "coordinate", dep.Coordinate, "version", dep.Version)
		return nil, nil, nil
	}

	res, err := r.Resolve(ctx, Request{Coordinate: dep.Coordinate, VersionPrefix: q.Base, Branch: opts.Branch})
	if err != nil {
		return nil, nil, err
	}
	var errs []error
	tried := make(map[string]bool)
	for _, c := range res.Candidates {
		where := c.Repository + "\x00" + c.Path
		if tried[where] {
			continue
		}
		tried[where] = true
		repo, ok := r.Repository(c.Repository)
		if !ok {
			continue
		}
		m, err := r.manifestAt(ctx, repo, q.SHA, c.Path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if m.Coordinate != dep.Coordinate {
			errs = append(errs, fmt.Errorf("%s:%s at %s declares %s", c.Repository, c.Path, q.SHA, m.Coordinate))
			continue
		}
		return m.Dependencies, &graph.Source{Repository: c.Repository, Branch: c.Branch, Path: c.Path, SHA: q.SHA}, nil
	}
	return nil, nil, fmt.Errorf("commit %s not found in any candidate: %w", q.SHA, errors.Join(errs...))
}

// manifestAt reads the first manifest the reader knows in dir at sha.
func (r *Resolver) manifestAt(ctx context.Context, repo Repository, sha, dir string) (*manifest.Manifest, error) {
	var errs []error
	for _, f := range r.cfg.reader.Formats() {
		p := path.Join(dir, f.FileName())
		content, err := r.cfg.showCached(ctx, repo, sha, p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		return r.cfg.reader.Parse(p, content)
	}
	return nil, fmt.Errorf("no manifest in %s:%s at %s: %w", repo.Name(), dir, sha, errors.Join(errs...))
}

// artifactInstalled reports whether dep's jar or pom exists under dir in
// Maven layout: group/with/slashes/name/version/name-version.jar.
func artifactInstalled(dir string, dep manifest.Dependency) bool {
	if dir == "" {
		return false
	}
	base := filepath.Join(dir,
		filepath.FromSlash(strings.ReplaceAll(dep.Coordinate.Group, ".", "/")),
		dep.Coordinate.Name, dep.Version, dep.Coordinate.Name+"-"+dep.Version)
	for _, ext := range []string{".jar", ".pom"} {
		if _, err := os.Stat(base + ext); err == nil {
			return true
		}
	}
	return false
}
