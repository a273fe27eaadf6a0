package vcs

import "time"

// ChangeOp is the kind of change a commit made to a path.
type ChangeOp int

const (
	Added ChangeOp = iota
	Modified
	Deleted
)

func (op ChangeOp) String() string {
	switch op {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Change is one path touched by a commit, relative to the repository root.
type Change struct {
	Op   ChangeOp
	Path string
}

// Commit is one record of a history stream.
type Commit struct {
	SHA     string
	Parents []string
	Time    time.Time
	// Refs are the decorations git printed for the commit, e.g.
	// "tag: voom--...", "origin/main".
	Refs    []string
	Changes []Change
}

// IsRoot reports whether the commit has no parents.
func (c Commit) IsRoot() bool {
	return len(c.Parents) == 0
}

// TagRef is a tag name and the commit it points at.
type TagRef struct {
	Name string
	SHA  string
}
