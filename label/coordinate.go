// Package label provides the strongly-typed, validated identifiers that voom
// derives from and writes into git history.
//
// All types in this package are immutable value types. Zero values are
// meaningful only where documented (a zero [Coordinate] marks a deleted
// manifest in a [Tag]).
//
// # Types
//
// The main types are:
//   - [Coordinate]: a dependency identity, "group/name"
//   - [Tag]: the structured form of a voom--... git tag name
//   - [QualifiedVersion]: a base version qualified with commit time and sha,
//     e.g. "1.2.0-20240102_030405-gabc1234"
//
// # Wire formats
//
// Tag names and qualified versions are the only places where voom assumes a
// string layout. [Tag.Name], [ParseTag], [FormatVersion] and [ParseVersion]
// are the single encode/decode pairs for them.
package label

import (
	"fmt"
	"regexp"
	"strings"
)

// Coordinate identifies a logical dependency independent of its version and of
// the repository or path that hosts it.
type Coordinate struct {
	Group string
	Name  string
}

var coordinatePartRegex = regexp.MustCompile(`^[A-Za-z0-9_.+]([A-Za-z0-9_.+-]*[A-Za-z0-9_.+])?$`)

// NewCoordinate creates a validated Coordinate.
func NewCoordinate(group, name string) (Coordinate, error) {
	if group == "" || name == "" {
		return Coordinate{}, fmt.Errorf("coordinate %q/%q: group and name must be non-empty", group, name)
	}
	for _, part := range []string{group, name} {
		if !coordinatePartRegex.MatchString(part) {
			return Coordinate{}, fmt.Errorf("invalid coordinate part %q: must match %s", part, coordinatePartRegex)
		}
		if strings.Contains(part, fieldSeparator) || strings.Contains(part, "..") {
			return Coordinate{}, fmt.Errorf("invalid coordinate part %q: must not contain %q or \"..\"", part, fieldSeparator)
		}
	}
	return Coordinate{Group: group, Name: name}, nil
}

// ParseCoordinate parses "group/name". A bare "name" is shorthand for
// "name/name", following the Leiningen convention.
func ParseCoordinate(s string) (Coordinate, error) {
	group, name, ok := strings.Cut(s, "/")
	if !ok {
		return NewCoordinate(s, s)
	}
	return NewCoordinate(group, name)
}

// MustCoordinate parses a coordinate or panics. Use only for constants/tests.
func MustCoordinate(s string) Coordinate {
	c, err := ParseCoordinate(s)
	if err != nil {
		panic(err)
	}
	return c
}

// String returns "group/name", or "" for the zero value.
func (c Coordinate) String() string {
	if c.IsEmpty() {
		return ""
	}
	return c.Group + "/" + c.Name
}

// IsEmpty reports whether c is the zero value.
func (c Coordinate) IsEmpty() bool {
	return c.Group == "" && c.Name == ""
}

// ShortName is the name a build descriptor uses to refer to the dependency
// inside a dependency vector.
func (c Coordinate) ShortName() string {
	return c.Name
}

// MarshalText encodes c as "group/name".
func (c Coordinate) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText accepts the forms [ParseCoordinate] does. Empty text leaves
// the zero value.
func (c *Coordinate) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*c = Coordinate{}
		return nil
	}
	parsed, err := ParseCoordinate(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
