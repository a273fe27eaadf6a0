package voom

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/albertocavalcante/go-voom/label"
	"github.com/albertocavalcante/go-voom/manifest"
	"github.com/albertocavalcante/go-voom/vcs"
)

// FreshenStatus is what happened to one dependency during a freshen.
type FreshenStatus string

const (
	// FreshenUpdated means the dependency gets a newer qualified version.
	FreshenUpdated FreshenStatus = "updated"
	// FreshenUnchanged means the dependency already has the resolved version.
	FreshenUnchanged FreshenStatus = "unchanged"
	// FreshenSkipped means the dependency was left alone; see Reason.
	FreshenSkipped FreshenStatus = "skipped"
)

// FreshenOptions narrows the resolution of every dependency.
type FreshenOptions struct {
	// Repository and Branch are passed on to each [Request].
	Repository string
	Branch     string

	// DryRun computes the edits without writing the manifest.
	DryRun bool
}

// DependencyOutcome reports on one dependency of a freshened manifest.
type DependencyOutcome struct {
	Dependency manifest.Dependency `json:"dependency" yaml:"dependency"`
	Status     FreshenStatus       `json:"status" yaml:"status"`
	NewVersion string              `json:"new_version,omitempty" yaml:"new_version,omitempty"`
	Reason     string              `json:"reason,omitempty" yaml:"reason,omitempty"`

	// Err is set when resolution failed or was ambiguous.
	Err error `json:"-" yaml:"-"`
}

// FreshenReport is the result of [Resolver.Freshen].
type FreshenReport struct {
	Path     string              `json:"path" yaml:"path"`
	Outcomes []DependencyOutcome `json:"outcomes" yaml:"outcomes"`
	Edits    []Edit              `json:"edits,omitempty" yaml:"edits,omitempty"`
	Diff     *DependencyDiff     `json:"diff" yaml:"diff"`
	Written  bool                `json:"written" yaml:"written"`
}

// Err joins the errors of every dependency that could not be resolved to a
// single version. Missing and ambiguous resolutions do not stop a freshen,
// but callers are expected to report them.
func (r *FreshenReport) Err() error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errors.Join(errs...)
}

// Freshen resolves every voom-qualified dependency of the manifest at path
// and rewrites the ones that have a newer version.
//
// Dependencies whose version is not qualified are not voom-built and are
// skipped. A qualified dependency stays within its base version unless the
// resolver was created [WithAnyVersion].
func (r *Resolver) Freshen(ctx context.Context, path string, opts FreshenOptions) (*FreshenReport, error) {
	format, ok := r.cfg.reader.FormatFor(path)
	if !ok {
		return nil, fmt.Errorf("freshen %s: not a known manifest file", path)
	}
	m, err := r.cfg.reader.ReadFile(path)
	if err != nil {
		return nil, err
	}
	logger := r.cfg.logger.With("path", path)

	report := &FreshenReport{Path: path}
	for _, dep := range m.Dependencies {
		outcome := r.freshenDependency(ctx, dep, opts)
		if outcome.Status == FreshenUpdated {
			report.Edits = append(report.Edits, Edit{Coordinate: dep.Coordinate, OldVersion: dep.Version, NewVersion: outcome.NewVersion})
		}
		if outcome.Err != nil && outcome.Reason == "" {
			return nil, outcome.Err
		}
		logger.Debug("dependency", "coordinate", dep.Coordinate, "status", outcome.Status, "version", outcome.NewVersion, "reason", outcome.Reason)
		report.Outcomes = append(report.Outcomes, outcome)
	}
	report.Diff = DiffDependencies(m.Dependencies, intendedDependencies(m.Dependencies, report.Edits))

	if opts.DryRun || len(report.Edits) == 0 {
		return report, nil
	}
	rw := &Rewriter{format: format, cfg: r.cfg}
	if err := rw.RewriteFile(path, report.Edits); err != nil {
		return report, err
	}
	report.Written = true
	return report, nil
}

func (r *Resolver) freshenDependency(ctx context.Context, dep manifest.Dependency, opts FreshenOptions) DependencyOutcome {
	out := DependencyOutcome{Dependency: dep, Status: FreshenSkipped}
	current, err := label.ParseVersion(dep.Version)
	if err != nil {
		out.Reason = "version is not qualified"
		return out
	}
	req := Request{Coordinate: dep.Coordinate, Repository: opts.Repository, Branch: opts.Branch}
	if !r.cfg.anyVersion {
		req.VersionPrefix = current.Base
	}

	res, err := r.Resolve(ctx, req)
	if err == nil {
		var rv ResolvedVersion
		rv, err = res.Unique()
		if err == nil {
			out.NewVersion = rv.Qualified(r.cfg.longSHA)
		}
	}
	switch {
	case errors.Is(err, ErrNoMatchingVersion):
		out.Reason = "no tagged version found"
		out.Err = err
	case errors.Is(err, ErrAmbiguousMatch):
		out.Reason = "several candidates"
		out.Err = err
	case errors.Is(err, ErrAmbiguousTagSet):
		out.Reason = "several tags on the nearest commit"
		out.Err = err
	case err != nil:
		out.Err = err
	case out.NewVersion == dep.Version:
		out.Status = FreshenUnchanged
	case label.CompareVersions(out.NewVersion, dep.Version) < 0:
		out.Reason = "resolved version " + out.NewVersion + " is older"
		out.NewVersion = ""
	default:
		out.Status = FreshenUpdated
	}
	return out
}

// SelfVersion qualifies the version declared by the manifest at
// manifestPath, relative to the repository root, with the time and sha of
// the repository's HEAD commit. The manifest is read as committed at HEAD.
func SelfVersion(ctx context.Context, repo Repository, manifestPath string, opts ...Option) (string, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return "", err
	}
	stream, err := repo.Log(ctx, vcs.LogOptions{Revs: []string{"HEAD"}, MaxCount: 1})
	if err != nil {
		return "", err
	}
	defer stream.Close()
	if !stream.Next() {
		if err := stream.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("%s has no commits", repo.Name())
	}
	head := stream.Commit()

	manifestPath = filepath.ToSlash(manifestPath)
	content, err := cfg.showCached(ctx, repo, head.SHA, manifestPath)
	if err != nil {
		return "", fmt.Errorf("read %s at HEAD: %w", manifestPath, err)
	}
	m, err := cfg.reader.Parse(manifestPath, content)
	if err != nil {
		return "", err
	}
	return label.FormatVersion(m.Version, head.Time, head.SHA, cfg.longSHA), nil
}
