package label

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	// snapshotSuffix marks a development version in a build descriptor.
	snapshotSuffix = "-SNAPSHOT"

	// qualifierTimeLayout renders the commit time of a qualified version.
	qualifierTimeLayout = "20060102_150405"
)

// qualifiedVersionRegex matches "<base>-<yyyyMMdd>[_]<HHmmss>-g?<sha>[.jar]".
// The base is everything before the last dash that is followed by a timestamp.
var qualifiedVersionRegex = regexp.MustCompile(`^(.*)-(\d{8})_?(\d{6})-g?([0-9a-f]{4,40})(?:\.jar)?$`)

// QualifiedVersion is a base version qualified with the commit that produced
// it, e.g. "1.2.0-20240102_030405-gabc1234".
type QualifiedVersion struct {
	Base string
	Time time.Time
	SHA  string
}

// String renders the version with the sha as stored.
func (v QualifiedVersion) String() string {
	return v.Base + "-" + v.Time.UTC().Format(qualifierTimeLayout) + "-g" + v.SHA
}

// Newer reports whether v was committed after other.
func (v QualifiedVersion) Newer(other QualifiedVersion) bool {
	return v.Time.After(other.Time)
}

// FormatVersion qualifies base with a commit time and sha. Any -SNAPSHOT
// suffix on base is dropped. The sha is abbreviated to [ShortSHALength] hex
// digits unless long is set.
func FormatVersion(base string, committed time.Time, sha string, long bool) string {
	if !long {
		sha = ShortSHA(sha)
	}
	return QualifiedVersion{
		Base: StripSnapshot(base),
		Time: committed.UTC().Truncate(time.Second),
		SHA:  sha,
	}.String()
}

// ParseVersion extracts the base, commit time and sha from a qualified
// version string. A trailing ".jar" is accepted so artifact file names parse
// too.
func ParseVersion(s string) (QualifiedVersion, error) {
	m := qualifiedVersionRegex.FindStringSubmatch(s)
	if m == nil {
		return QualifiedVersion{}, fmt.Errorf("version %q is not qualified with a commit time and sha", s)
	}
	t, err := time.ParseInLocation("20060102150405", m[2]+m[3], time.UTC)
	if err != nil {
		return QualifiedVersion{}, fmt.Errorf("version %q: invalid timestamp: %w", s, err)
	}
	return QualifiedVersion{Base: m[1], Time: t, SHA: m[4]}, nil
}

// IsQualified reports whether s parses with [ParseVersion].
func IsQualified(s string) bool {
	_, err := ParseVersion(s)
	return err == nil
}

// StripSnapshot removes a trailing -SNAPSHOT.
func StripSnapshot(v string) string {
	return strings.TrimSuffix(v, snapshotSuffix)
}

// BaseVersion returns the unqualified part of v: the base of a qualified
// version, or v itself with any -SNAPSHOT suffix removed.
func BaseVersion(v string) string {
	if q, err := ParseVersion(v); err == nil {
		return q.Base
	}
	return StripSnapshot(v)
}
