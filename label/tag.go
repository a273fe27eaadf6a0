package label

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// TagPrefix starts every version tag name.
	TagPrefix = "voom"

	// BranchPrefix starts every branch sentinel tag name.
	BranchPrefix = "voom-branch"

	// ShortSHALength is the number of hex digits of a commit sha kept in tag
	// names and short qualified versions.
	ShortSHALength = 7

	fieldSeparator = "--"
	pathEscape     = "%"
	noParentFlag   = "no-parent"
)

var (
	shaRegex        = regexp.MustCompile(`^[0-9a-f]{4,40}$`)
	tagVersionRegex = regexp.MustCompile(`^[A-Za-z0-9_.+]([A-Za-z0-9_.+-]*[A-Za-z0-9_.+])?$`)
	pathSegRegex    = regexp.MustCompile(`^[A-Za-z0-9_.+]([A-Za-z0-9_.+-]*[A-Za-z0-9_.+])?$`)
)

// Tag is the structured form of a version tag. Tags are lightweight git tags
// that point at the commit which changed a manifest, and encode what that
// manifest declared:
//
//	voom--<group>%<name>--<version>--<escaped-path>--<7-char-sha>[--no-parent]
//
// Path is the directory of the manifest relative to the repository root, ""
// for the root. A Tag with an empty Coordinate and Version marks that the
// manifest at Path was deleted by SHA.
type Tag struct {
	Coordinate Coordinate
	Version    string
	Path       string
	SHA        string
	NoParent   bool
}

// IsDeletion reports whether the tag records a manifest deletion.
func (t Tag) IsDeletion() bool {
	return t.Coordinate.IsEmpty() && t.Version == ""
}

// ShortSHA returns the abbreviated sha stored in the tag name.
func (t Tag) ShortSHA() string {
	return ShortSHA(t.SHA)
}

// Validate checks that every field can be encoded without ambiguity.
func (t Tag) Validate() error {
	if !shaRegex.MatchString(t.SHA) || len(t.SHA) < ShortSHALength {
		return fmt.Errorf("invalid tag sha %q: need at least %d hex digits", t.SHA, ShortSHALength)
	}
	if t.Coordinate.IsEmpty() != (t.Version == "") {
		return fmt.Errorf("tag for %q at %q: coordinate and version must both be set or both be empty", t.Coordinate, t.Path)
	}
	if !t.Coordinate.IsEmpty() {
		if _, err := NewCoordinate(t.Coordinate.Group, t.Coordinate.Name); err != nil {
			return err
		}
		if !tagVersionRegex.MatchString(t.Version) || strings.Contains(t.Version, fieldSeparator) || strings.Contains(t.Version, "..") {
			return fmt.Errorf("invalid tag version %q", t.Version)
		}
	}
	if t.Path != "" {
		for _, seg := range strings.Split(t.Path, "/") {
			if !pathSegRegex.MatchString(seg) || strings.Contains(seg, fieldSeparator) || strings.Contains(seg, "..") {
				return fmt.Errorf("invalid manifest path %q: segment %q cannot be encoded", t.Path, seg)
			}
		}
	}
	return nil
}

// Name encodes the tag as a git tag name.
func (t Tag) Name() (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	coord := ""
	if !t.Coordinate.IsEmpty() {
		coord = t.Coordinate.Group + pathEscape + t.Coordinate.Name
	}
	parts := []string{
		TagPrefix,
		coord,
		t.Version,
		strings.ReplaceAll(t.Path, "/", pathEscape),
		t.ShortSHA(),
	}
	if t.NoParent {
		parts = append(parts, noParentFlag)
	}
	return strings.Join(parts, fieldSeparator), nil
}

// MustName encodes the tag or panics. Use only for constants/tests.
func (t Tag) MustName() string {
	name, err := t.Name()
	if err != nil {
		panic(err)
	}
	return name
}

// String returns the encoded tag name, or a diagnostic form if the tag
// cannot be encoded.
func (t Tag) String() string {
	if name, err := t.Name(); err == nil {
		return name
	}
	return fmt.Sprintf("%s@%s:%s#%s", t.Coordinate, t.Version, t.Path, t.SHA)
}

// IsTagName reports whether name looks like a version tag (as opposed to a
// branch sentinel or an unrelated tag).
func IsTagName(name string) bool {
	return strings.HasPrefix(name, TagPrefix+fieldSeparator)
}

// ParseTag decodes a git tag name produced by [Tag.Name].
func ParseTag(name string) (Tag, error) {
	if !IsTagName(name) {
		return Tag{}, fmt.Errorf("tag %q: missing %q prefix", name, TagPrefix+fieldSeparator)
	}
	parts := strings.Split(name, fieldSeparator)
	var t Tag
	switch len(parts) {
	case 5:
	case 6:
		if parts[5] != noParentFlag {
			return Tag{}, fmt.Errorf("tag %q: unknown flag %q", name, parts[5])
		}
		t.NoParent = true
	default:
		return Tag{}, fmt.Errorf("tag %q: expected 5 or 6 fields, got %d", name, len(parts))
	}

	if parts[1] != "" {
		group, artifact, ok := strings.Cut(parts[1], pathEscape)
		if !ok {
			return Tag{}, fmt.Errorf("tag %q: coordinate %q has no %q separator", name, parts[1], pathEscape)
		}
		t.Coordinate = Coordinate{Group: group, Name: artifact}
	}
	t.Version = parts[2]
	t.Path = strings.ReplaceAll(parts[3], pathEscape, "/")
	t.SHA = parts[4]

	if err := t.Validate(); err != nil {
		return Tag{}, fmt.Errorf("tag %q: %w", name, err)
	}
	return t, nil
}

// BranchSentinel returns the tag name that records how far branch has been
// scanned.
func BranchSentinel(branch string) string {
	return BranchPrefix + fieldSeparator + branch
}

// ParseBranchSentinel returns the branch a sentinel tag name refers to.
func ParseBranchSentinel(name string) (string, bool) {
	branch, ok := strings.CutPrefix(name, BranchPrefix+fieldSeparator)
	if !ok || branch == "" {
		return "", false
	}
	return branch, true
}

// ShortSHA abbreviates a commit sha to [ShortSHALength] hex digits.
func ShortSHA(sha string) string {
	if len(sha) <= ShortSHALength {
		return sha
	}
	return sha[:ShortSHALength]
}
