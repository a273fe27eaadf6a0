// Package manifest reads build descriptors into a common model.
//
// A [Format] knows one descriptor type: which file names it handles, how to
// parse a file into a [Manifest], and where a dependency's version literal
// sits in the raw bytes so it can be replaced without touching anything
// else. Two formats ship with the package:
//
//   - [Leiningen]: project.clj, read as EDN data and never evaluated
//   - [Bazel]: MODULE.bazel, parsed with buildtools
//
// A [Reader] dispatches to the format that matches a file name.
package manifest

import (
	"path"
	"slices"

	"github.com/albertocavalcante/go-voom/label"
)

// Dependency is one declared dependency.
type Dependency struct {
	Coordinate label.Coordinate `json:"coordinate" yaml:"coordinate"`
	Version    string           `json:"version" yaml:"version"`
	// Dev marks a dependency only needed to work on the project itself,
	// such as a Bazel dev_dependency.
	Dev bool `json:"dev,omitempty" yaml:"dev,omitempty"`
}

func (d Dependency) String() string {
	return d.Coordinate.String() + " " + d.Version
}

// Manifest is the part of a build descriptor voom cares about.
type Manifest struct {
	Coordinate   label.Coordinate
	Version      string
	Dependencies []Dependency
}

// Dependency returns the declared dependency on c.
func (m *Manifest) Dependency(c label.Coordinate) (Dependency, bool) {
	i := slices.IndexFunc(m.Dependencies, func(d Dependency) bool { return d.Coordinate == c })
	if i < 0 {
		return Dependency{}, false
	}
	return m.Dependencies[i], true
}

// Span is a half-open byte range [Start, End) in a descriptor.
type Span struct {
	Start int
	End   int
}

// Format handles one kind of build descriptor.
type Format interface {
	// Name identifies the format in logs and errors.
	Name() string
	// FileName is the base name of descriptors of this format.
	FileName() string
	// Parse reads a descriptor. Failures wrap [ErrParse].
	Parse(content []byte) (*Manifest, error)
	// Locate returns the spans of every version literal in content that
	// declares dep at dep.Version. Spans cover the version text only.
	Locate(content []byte, dep Dependency) ([]Span, error)
}

// Dir returns the directory of a descriptor path relative to the repository
// root, "" for a descriptor at the root.
func Dir(p string) string {
	d := path.Dir(p)
	if d == "." || d == "/" {
		return ""
	}
	return d
}
