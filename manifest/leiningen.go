package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"

	"olympos.io/encoding/edn"

	"github.com/albertocavalcante/go-voom/label"
)

// Leiningen reads project.clj descriptors.
//
// The file is read as data: metadata, discarded forms and quotes are dropped,
// regex literals become strings, and the rest is decoded as EDN. A
// descriptor must consist of exactly one (defproject name "version" ...)
// form; anything that would need evaluating Clojure is rejected with
// [ErrParse].
type Leiningen struct{}

func (Leiningen) Name() string     { return "leiningen" }
func (Leiningen) FileName() string { return "project.clj" }

func (l Leiningen) Parse(content []byte) (m *Manifest, err error) {
	defer func() {
		if r := recover(); r != nil {
			m, err = nil, l.errorf("malformed project: %v", r)
		}
	}()

	data, _, err := readClojure(content)
	if err != nil {
		return nil, &ParseError{Format: l.Name(), Message: "not readable as data", Err: err}
	}
	dec := edn.NewDecoder(bytes.NewReader(data))
	var forms []any
	for {
		var form any
		if err := dec.Decode(&form); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, &ParseError{Format: l.Name(), Message: "not readable as data", Err: err}
		}
		forms = append(forms, form)
	}
	if len(forms) != 1 {
		return nil, l.errorf("expected a single defproject form, found %d top-level forms", len(forms))
	}

	list, ok := forms[0].([]any)
	if !ok || len(list) < 3 || list[0] != edn.Symbol("defproject") {
		return nil, l.errorf("top-level form is not defproject")
	}
	coord, err := symbolCoordinate(list[1])
	if err != nil {
		return nil, l.errorf("project name: %v", err)
	}
	version, ok := list[2].(string)
	if !ok {
		return nil, l.errorf("project %s: version is not a string literal", coord)
	}
	m = &Manifest{Coordinate: coord, Version: version}

	opts := list[3:]
	if len(opts)%2 != 0 {
		return nil, l.errorf("project %s: odd number of options", coord)
	}
	for i := 0; i < len(opts); i += 2 {
		if opts[i] != edn.Keyword("dependencies") {
			continue
		}
		deps, ok := opts[i+1].([]any)
		if !ok {
			return nil, l.errorf("project %s: :dependencies is not a vector", coord)
		}
		for _, d := range deps {
			dep, err := l.dependency(d)
			if err != nil {
				return nil, l.errorf("project %s: %v", coord, err)
			}
			m.Dependencies = append(m.Dependencies, dep)
		}
	}
	return m, nil
}

func (l Leiningen) dependency(v any) (Dependency, error) {
	vec, ok := v.([]any)
	if !ok || len(vec) < 2 {
		return Dependency{}, fmt.Errorf("dependency %v is not [name \"version\" ...]", v)
	}
	coord, err := symbolCoordinate(vec[0])
	if err != nil {
		return Dependency{}, err
	}
	version, ok := vec[1].(string)
	if !ok {
		return Dependency{}, fmt.Errorf("dependency %s: version is not a string literal", coord)
	}
	return Dependency{Coordinate: coord, Version: version}, nil
}

func symbolCoordinate(v any) (label.Coordinate, error) {
	sym, ok := v.(edn.Symbol)
	if !ok {
		return label.Coordinate{}, fmt.Errorf("%v is not a symbol", v)
	}
	return label.ParseCoordinate(string(sym))
}

func (l Leiningen) errorf(format string, args ...any) error {
	return &ParseError{Format: l.Name(), Message: fmt.Sprintf(format, args...)}
}

// Locate finds `<name> "<version>"` where name is the dependency symbol as
// written: "group/name", or just "name" when group and name agree. Matches
// in comments and discarded (#_) forms are not counted.
func (l Leiningen) Locate(content []byte, dep Dependency) ([]Span, error) {
	_, dead, err := readClojure(content)
	if err != nil {
		return nil, &ParseError{Format: l.Name(), Message: "not readable as data", Err: err}
	}
	names := regexp.QuoteMeta(dep.Coordinate.String())
	if dep.Coordinate.Group == dep.Coordinate.Name {
		names += "|" + regexp.QuoteMeta(dep.Coordinate.Name)
	}
	re, err := regexp.Compile(`(?:^|[\s\[(,])(?:` + names + `)[\s,]+"(` + regexp.QuoteMeta(dep.Version) + `)"`)
	if err != nil {
		return nil, fmt.Errorf("dependency pattern for %s: %w", dep, err)
	}
	var spans []Span
	for _, loc := range re.FindAllSubmatchIndex(content, -1) {
		if inSpans(dead, loc[2]) {
			continue
		}
		spans = append(spans, Span{Start: loc[2], End: loc[3]})
	}
	return spans, nil
}
