package voom

import (
	"errors"
	"fmt"
	"strings"

	"github.com/albertocavalcante/go-voom/label"
)

// Sentinel errors for resolution and rewrite failures.
var (
	// ErrNoMatchingVersion indicates no repository and branch carries a tag
	// for the requested coordinate under the given filters.
	ErrNoMatchingVersion = errors.New("no matching version")

	// ErrAmbiguousTagSet indicates several tags for the same coordinate and
	// path sit on the same commit, so there is no single baseline version.
	ErrAmbiguousTagSet = errors.New("ambiguous tag set")

	// ErrAmbiguousMatch indicates more than one match where exactly one was
	// required: several resolution candidates, or several occurrences of a
	// dependency in a manifest.
	ErrAmbiguousMatch = errors.New("ambiguous match")

	// ErrNoMatchFound indicates a dependency declaration was not found in a
	// manifest.
	ErrNoMatchFound = errors.New("no match found")

	// ErrRewriteMisfire indicates a rewritten manifest did not re-parse to
	// the intended dependency list.
	ErrRewriteMisfire = errors.New("rewrite misfire")
)

// NoMatchingVersionError reports a request that resolved to nothing, along
// with the tags that were looked at, so the caller can see why.
type NoMatchingVersionError struct {
	Request    Request
	Considered []label.Tag
}

func (e *NoMatchingVersionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "no version of %s", e.Request)
	if len(e.Considered) == 0 {
		b.WriteString(": no tags for this coordinate")
		return b.String()
	}
	fmt.Fprintf(&b, " among %d tags:", len(e.Considered))
	for _, t := range e.Considered {
		b.WriteString("\n  ")
		b.WriteString(t.String())
	}
	return b.String()
}

func (e *NoMatchingVersionError) Unwrap() error { return ErrNoMatchingVersion }

// AmbiguousTagSetError reports several tags for one coordinate and path
// with no single one nearest to a branch tip: they sit on the same commit,
// or on parallel lines that the tip's first-parent history does not decide
// between.
type AmbiguousTagSetError struct {
	Repository string
	Branch     string
	Path       string
	Tags       []label.Tag
}

func (e *AmbiguousTagSetError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %d tags at path %q and none is nearest to the tip:", e.Repository, e.Branch, len(e.Tags), e.Path)
	for _, t := range e.Tags {
		b.WriteString("\n  ")
		b.WriteString(t.String())
	}
	return b.String()
}

func (e *AmbiguousTagSetError) Unwrap() error { return ErrAmbiguousTagSet }

// AmbiguousResolutionError lists every candidate of a resolution that was
// expected to be unique.
type AmbiguousResolutionError struct {
	Request    Request
	Candidates []ResolvedVersion
}

func (e *AmbiguousResolutionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s matches %d candidates:", e.Request, len(e.Candidates))
	for _, c := range e.Candidates {
		b.WriteString("\n  ")
		b.WriteString(c.String())
	}
	return b.String()
}

func (e *AmbiguousResolutionError) Unwrap() error { return ErrAmbiguousMatch }

// MatchError reports an edit whose old version could not be located exactly
// once in a manifest. Count is zero for [ErrNoMatchFound] and above one for
// [ErrAmbiguousMatch].
type MatchError struct {
	Edit  Edit
	Count int
}

func (e *MatchError) Error() string {
	if e.Count == 0 {
		return fmt.Sprintf("%s %q not found in manifest", e.Edit.Coordinate, e.Edit.OldVersion)
	}
	return fmt.Sprintf("%s %q occurs %d times in manifest", e.Edit.Coordinate, e.Edit.OldVersion, e.Count)
}

func (e *MatchError) Is(target error) bool {
	if e.Count == 0 {
		return target == ErrNoMatchFound
	}
	return target == ErrAmbiguousMatch
}

// RewriteMisfireError reports a rewrite whose result did not re-parse as
// intended. The manifest is left untouched and the rewritten text is kept at
// ScratchPath for inspection.
type RewriteMisfireError struct {
	Path        string
	ScratchPath string
	Reason      string
	Err         error
}

func (e *RewriteMisfireError) Error() string {
	msg := fmt.Sprintf("rewrite of %s misfired: %s (result kept at %s)", e.Path, e.Reason, e.ScratchPath)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RewriteMisfireError) Is(target error) bool { return target == ErrRewriteMisfire }

func (e *RewriteMisfireError) Unwrap() error { return e.Err }
