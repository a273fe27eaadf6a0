package voom

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/albertocavalcante/go-voom/manifest"
)

// Rewriter substitutes dependency versions in a manifest, changing nothing
// but the version literals.
type Rewriter struct {
	format manifest.Format
	cfg    *config
}

// NewRewriter creates a rewriter for manifests in format.
func NewRewriter(format manifest.Format, opts ...Option) (*Rewriter, error) {
	if format == nil {
		return nil, fmt.Errorf("rewriter needs a manifest format")
	}
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, fmt.Errorf("invalid rewriter options: %w", err)
	}
	return &Rewriter{format: format, cfg: cfg}, nil
}

type replacement struct {
	span manifest.Span
	edit Edit
}

// Apply returns content with every edit applied. Each edit's old version
// must occur exactly once for its dependency; otherwise Apply fails with a
// [*MatchError] and no edit is applied.
func (r *Rewriter) Apply(content []byte, edits []Edit) ([]byte, error) {
	repls := make([]replacement, 0, len(edits))
	for _, e := range edits {
		spans, err := r.format.Locate(content, manifest.Dependency{Coordinate: e.Coordinate, Version: e.OldVersion})
		if err != nil {
			return nil, fmt.Errorf("locate %s: %w", e.Coordinate, err)
		}
		if len(spans) != 1 {
			return nil, &MatchError{Edit: e, Count: len(spans)}
		}
		repls = append(repls, replacement{span: spans[0], edit: e})
	}
	slices.SortFunc(repls, func(a, b replacement) int { return a.span.Start - b.span.Start })
	for i := 1; i < len(repls); i++ {
		if repls[i].span.Start < repls[i-1].span.End {
			return nil, fmt.Errorf("edits %s and %s touch the same declaration", repls[i-1].edit, repls[i].edit)
		}
	}

	var out bytes.Buffer
	out.Grow(len(content))
	last := 0
	for _, rp := range repls {
		out.Write(content[last:rp.span.Start])
		out.WriteString(rp.edit.NewVersion)
		last = rp.span.End
	}
	out.Write(content[last:])
	return out.Bytes(), nil
}

// RewriteFile applies edits to the manifest at path.
//
// The result is written to a scratch file next to path and parsed back. It
// replaces path only if its dependency list is exactly the intended one;
// otherwise path is left as it was, the scratch file is kept, and the error
// is a [*RewriteMisfireError] naming it.
func (r *Rewriter) RewriteFile(path string, edits []Edit) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat manifest: %w", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}
	before, err := r.format.Parse(content)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	out, err := r.Apply(content, edits)
	if err != nil {
		return err
	}

	scratch, err := writeScratch(path, out, info.Mode().Perm())
	if err != nil {
		return err
	}
	written, err := os.ReadFile(scratch)
	if err != nil {
		return fmt.Errorf("read back %s: %w", scratch, err)
	}
	after, err := r.format.Parse(written)
	if err != nil {
		return &RewriteMisfireError{Path: path, ScratchPath: scratch, Reason: "result does not parse", Err: err}
	}
	want := intendedDependencies(before.Dependencies, edits)
	if reason := compareManifests(before, after, want); reason != "" {
		return &RewriteMisfireError{Path: path, ScratchPath: scratch, Reason: reason}
	}

	if err := os.Rename(scratch, path); err != nil {
		os.Remove(scratch)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	r.cfg.logger.Info("manifest rewritten", "path", path, "edits", len(edits))
	return nil
}

// writeScratch writes data to a new file beside path: tempfile, fsync, close.
func writeScratch(path string, data []byte, perm os.FileMode) (string, error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".voom-*")
	if err != nil {
		return "", fmt.Errorf("create scratch file: %w", err)
	}
	name := f.Name()
	fail := func(step string, err error) (string, error) {
		f.Close()
		os.Remove(name)
		return "", fmt.Errorf("%s scratch file: %w", step, err)
	}
	if _, err := f.Write(data); err != nil {
		return fail("write", err)
	}
	if err := f.Sync(); err != nil {
		return fail("fsync", err)
	}
	if err := f.Chmod(perm); err != nil {
		return fail("chmod", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("close scratch file: %w", err)
	}
	return name, nil
}

func intendedDependencies(deps []manifest.Dependency, edits []Edit) []manifest.Dependency {
	out := slices.Clone(deps)
	for i, d := range out {
		for _, e := range edits {
			if d.Coordinate == e.Coordinate && d.Version == e.OldVersion {
				out[i].Version = e.NewVersion
				break
			}
		}
	}
	return out
}

// compareManifests describes how after differs from what the edits should
// have produced, or returns "".
func compareManifests(before, after *manifest.Manifest, want []manifest.Dependency) string {
	if after.Coordinate != before.Coordinate || after.Version != before.Version {
		return fmt.Sprintf("project changed from %s %s to %s %s", before.Coordinate, before.Version, after.Coordinate, after.Version)
	}
	if slices.Equal(after.Dependencies, want) {
		return ""
	}
	var b strings.Builder
	b.WriteString("dependencies differ from the intended list")
	for i := range max(len(want), len(after.Dependencies)) {
		var w, g string
		if i < len(want) {
			w = want[i].String()
		}
		if i < len(after.Dependencies) {
			g = after.Dependencies[i].String()
		}
		if w != g {
			fmt.Fprintf(&b, "; want %q got %q", w, g)
		}
	}
	return b.String()
}
