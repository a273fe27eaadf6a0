package voom

import (
	"fmt"
	"strings"
	"time"

	"github.com/albertocavalcante/go-voom/label"
)

// Request asks for the most recent version of a dependency. Zero-valued
// filters match everything.
type Request struct {
	// Coordinate is the dependency to resolve. Required.
	Coordinate label.Coordinate `json:"coordinate" yaml:"coordinate"`

	// VersionPrefix keeps only tags whose version starts with it, e.g. "1.2".
	VersionPrefix string `json:"version_prefix,omitempty" yaml:"version_prefix,omitempty"`

	// Repository restricts resolution to one repository, matched against its
	// name or origin URL.
	Repository string `json:"repository,omitempty" yaml:"repository,omitempty"`

	// Branch restricts resolution to one branch, given either as a
	// remote-tracking name ("origin/main") or a bare name ("main").
	Branch string `json:"branch,omitempty" yaml:"branch,omitempty"`

	// Path restricts resolution to the manifest in one directory, relative to
	// the repository root. Use "." for the root directory.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

func (r Request) String() string {
	var filters []string
	if r.VersionPrefix != "" {
		filters = append(filters, "version "+r.VersionPrefix+"*")
	}
	if r.Repository != "" {
		filters = append(filters, "repository "+r.Repository)
	}
	if r.Branch != "" {
		filters = append(filters, "branch "+r.Branch)
	}
	if r.Path != "" {
		filters = append(filters, "path "+r.Path)
	}
	if len(filters) == 0 {
		return r.Coordinate.String()
	}
	return r.Coordinate.String() + " (" + strings.Join(filters, ", ") + ")"
}

// ResolvedVersion is the newest commit on a branch at which a dependency
// still had a given version.
type ResolvedVersion struct {
	Coordinate label.Coordinate `json:"coordinate" yaml:"coordinate"`
	Repository string           `json:"repository" yaml:"repository"`
	Branch     string           `json:"branch" yaml:"branch"`

	// Path is the manifest directory; empty for the repository root.
	Path string `json:"path" yaml:"path"`

	// Version is the version recorded by the baseline tag.
	Version string `json:"version" yaml:"version"`

	// SHA and Time identify the resolved commit.
	SHA  string    `json:"sha" yaml:"sha"`
	Time time.Time `json:"time" yaml:"time"`

	// BaselineSHA is the commit of the tag the version was read from.
	BaselineSHA string `json:"baseline_sha" yaml:"baseline_sha"`

	// Walked counts the commits between the baseline and the resolved
	// commit.
	Walked int `json:"walked" yaml:"walked"`
}

// Qualified renders the version with the resolved commit's time and sha.
func (v ResolvedVersion) Qualified(long bool) string {
	return label.FormatVersion(v.Version, v.Time, v.SHA, long)
}

func (v ResolvedVersion) String() string {
	path := v.Path
	if path == "" {
		path = "."
	}
	return fmt.Sprintf("%s %s in %s %s:%s", v.Coordinate, v.Qualified(false), v.Repository, v.Branch, path)
}

// Resolution holds every candidate for a request. Callers that need a single
// answer use [Resolution.Unique].
type Resolution struct {
	Request    Request           `json:"request" yaml:"request"`
	Candidates []ResolvedVersion `json:"candidates" yaml:"candidates"`
}

// Unique returns the only candidate, or an [*AmbiguousResolutionError] when
// there are several.
func (r *Resolution) Unique() (ResolvedVersion, error) {
	switch len(r.Candidates) {
	case 0:
		return ResolvedVersion{}, &NoMatchingVersionError{Request: r.Request}
	case 1:
		return r.Candidates[0], nil
	}
	return ResolvedVersion{}, &AmbiguousResolutionError{Request: r.Request, Candidates: r.Candidates}
}

// Edit replaces one dependency version in a manifest.
type Edit struct {
	Coordinate label.Coordinate `json:"coordinate" yaml:"coordinate"`
	OldVersion string           `json:"old_version" yaml:"old_version"`
	NewVersion string           `json:"new_version" yaml:"new_version"`
}

func (e Edit) String() string {
	return fmt.Sprintf("%s %s -> %s", e.Coordinate, e.OldVersion, e.NewVersion)
}

// ScanResult summarizes one repository scan.
type ScanResult struct {
	Repository string `json:"repository" yaml:"repository"`

	// Branches lists the branches that had unscanned commits.
	Branches []string `json:"branches,omitempty" yaml:"branches,omitempty"`

	// Commits counts commits read from the log.
	Commits int `json:"commits" yaml:"commits"`

	// Tags counts tags written, deletion markers included.
	Tags int `json:"tags" yaml:"tags"`

	// Deletions counts deletion marker tags among Tags.
	Deletions int `json:"deletions" yaml:"deletions"`

	// Unreadable counts manifests that could not be parsed and were skipped.
	Unreadable int `json:"unreadable" yaml:"unreadable"`

	// Skipped counts manifests that parsed but cannot be encoded as a tag.
	Skipped int `json:"skipped" yaml:"skipped"`
}

// ProgressStage identifies what a [ProgressEvent] reports on.
type ProgressStage string

const (
	StageScan    ProgressStage = "scan"
	StageFetch   ProgressStage = "fetch"
	StageHistory ProgressStage = "history"
	StageDone    ProgressStage = "done"
)

// ProgressEvent is delivered to the callback registered with [WithProgress].
type ProgressEvent struct {
	Stage      ProgressStage
	Repository string
	Branch     string

	// Commits counts the commits processed so far in this stage.
	Commits int

	// Tags counts tags written so far.
	Tags int
}
