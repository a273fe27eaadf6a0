package manifest

import (
	"fmt"

	"github.com/bazelbuild/buildtools/build"

	"github.com/albertocavalcante/go-voom/internal/buildutil"
	"github.com/albertocavalcante/go-voom/label"
)

// Bazel reads MODULE.bazel descriptors. Module names map to coordinates whose
// group and name are both the module name.
type Bazel struct{}

func (Bazel) Name() string     { return "bazel" }
func (Bazel) FileName() string { return "MODULE.bazel" }

func (b Bazel) parse(content []byte) (*build.File, error) {
	f, err := build.ParseModule(b.FileName(), content)
	if err != nil {
		return nil, &ParseError{Format: b.Name(), Message: "syntax error", Err: err}
	}
	return f, nil
}

func (b Bazel) Parse(content []byte) (*Manifest, error) {
	f, err := b.parse(content)
	if err != nil {
		return nil, err
	}

	modules := buildutil.Calls(f, "module")
	if len(modules) != 1 {
		return nil, &ParseError{Format: b.Name(), Message: fmt.Sprintf("expected one module() call, found %d", len(modules))}
	}
	mod := modules[0]
	coord, err := label.NewCoordinate(buildutil.String(mod, "name"), buildutil.String(mod, "name"))
	if err != nil {
		return nil, b.errorAt(mod, "module name", err)
	}
	m := &Manifest{Coordinate: coord, Version: buildutil.String(mod, "version")}
	if m.Version == "" {
		return nil, b.errorAt(mod, "module has no version", nil)
	}

	for _, call := range buildutil.Calls(f, "bazel_dep") {
		name := buildutil.String(call, "name")
		dep, err := label.NewCoordinate(name, name)
		if err != nil {
			return nil, b.errorAt(call, "bazel_dep name", err)
		}
		m.Dependencies = append(m.Dependencies, Dependency{
			Coordinate: dep,
			Version:    buildutil.String(call, "version"),
			Dev:        buildutil.Bool(call, "dev_dependency"),
		})
	}
	return m, nil
}

func (b Bazel) errorAt(call *build.CallExpr, msg string, err error) error {
	start, _ := call.Span()
	return &ParseError{Format: b.Name(), Line: start.Line, Message: msg, Err: err}
}

// Locate finds the version literal of every bazel_dep on dep's module at
// dep.Version. Only plain double- or single-quoted literals qualify.
func (b Bazel) Locate(content []byte, dep Dependency) ([]Span, error) {
	f, err := b.parse(content)
	if err != nil {
		return nil, err
	}
	var spans []Span
	for _, call := range buildutil.Calls(f, "bazel_dep") {
		if buildutil.String(call, "name") != dep.Coordinate.Name {
			continue
		}
		s := buildutil.StringExpr(call, "version")
		if s == nil || s.Value != dep.Version || s.TripleQuote {
			continue
		}
		start, end := s.Span()
		if end.Byte-start.Byte != len(dep.Version)+2 || string(content[start.Byte+1:end.Byte-1]) != dep.Version {
			continue
		}
		spans = append(spans, Span{Start: start.Byte + 1, End: end.Byte - 1})
	}
	return spans, nil
}
