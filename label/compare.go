package label

import (
	"cmp"
	"strconv"
	"strings"
)

// identifier is one dot-separated piece of a version.
type identifier struct {
	numeric bool
	n       uint64
	s       string
}

func parseIdentifier(s string) identifier {
	if s != "" && strings.Trim(s, "0123456789") == "" {
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			return identifier{numeric: true, n: n, s: s}
		}
	}
	return identifier{s: s}
}

// Numeric identifiers sort before alphanumeric ones and compare by value.
func compareIdentifier(a, b identifier) int {
	if a.numeric != b.numeric {
		if a.numeric {
			return -1
		}
		return 1
	}
	if a.numeric {
		return cmp.Compare(a.n, b.n)
	}
	return strings.Compare(a.s, b.s)
}

func splitIdentifiers(s string) []identifier {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ".")
	ids := make([]identifier, len(parts))
	for i, p := range parts {
		ids[i] = parseIdentifier(p)
	}
	return ids
}

func compareIdentifiers(a, b []identifier) int {
	for i := range min(len(a), len(b)) {
		if c := compareIdentifier(a[i], b[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(a), len(b))
}

// compareBase orders release[-qualifier] strings. A qualifier such as
// "SNAPSHOT" or "alpha.1" sorts before the bare release.
func compareBase(a, b string) int {
	relA, preA, _ := strings.Cut(a, "-")
	relB, preB, _ := strings.Cut(b, "-")
	if c := compareIdentifiers(splitIdentifiers(relA), splitIdentifiers(relB)); c != 0 {
		return c
	}
	switch {
	case preA == preB:
		return 0
	case preA == "":
		return 1
	case preB == "":
		return -1
	}
	return compareIdentifiers(splitIdentifiers(strings.ReplaceAll(preA, "-", ".")), splitIdentifiers(strings.ReplaceAll(preB, "-", ".")))
}

// CompareVersions orders two dependency versions. Qualified versions compare
// by base version and then by commit time; a qualified version sorts after
// the plain release of the same base. The result is -1, 0 or +1.
func CompareVersions(a, b string) int {
	qa, errA := ParseVersion(a)
	qb, errB := ParseVersion(b)
	okA, okB := errA == nil, errB == nil
	baseA, baseB := a, b
	if okA {
		baseA = qa.Base
	}
	if okB {
		baseB = qb.Base
	}
	if c := compareBase(StripSnapshot(baseA), StripSnapshot(baseB)); c != 0 {
		return c
	}
	switch {
	case okA && okB:
		if c := qa.Time.Compare(qb.Time); c != 0 {
			return c
		}
		return strings.Compare(qa.SHA, qb.SHA)
	case okA:
		return 1
	case okB:
		return -1
	}
	return compareBase(a, b)
}
