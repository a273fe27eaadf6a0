package voom

import (
	"sort"

	"github.com/albertocavalcante/go-voom/label"
	"github.com/albertocavalcante/go-voom/manifest"
)

// DependencyChange is a dependency present in only one of two lists.
type DependencyChange struct {
	Coordinate label.Coordinate `json:"coordinate" yaml:"coordinate"`
	Version    string           `json:"version" yaml:"version"`
}

// DependencyUpgrade is a dependency whose version differs between lists.
type DependencyUpgrade struct {
	Coordinate label.Coordinate `json:"coordinate" yaml:"coordinate"`
	OldVersion string           `json:"old_version" yaml:"old_version"`
	NewVersion string           `json:"new_version" yaml:"new_version"`
}

// DependencyDiff describes the differences between two dependency lists,
// typically a manifest before and after a freshen.
//
// Example usage:
//
//	diff := DiffDependencies(before.Dependencies, after.Dependencies)
//	if !diff.IsEmpty() {
//	    fmt.Printf("%d upgraded, %d downgraded\n", len(diff.Upgraded), len(diff.Downgraded))
//	}
type DependencyDiff struct {
	// Added contains dependencies present in new but not in old.
	Added []DependencyChange `json:"added,omitempty" yaml:"added,omitempty"`

	// Removed contains dependencies present in old but not in new.
	Removed []DependencyChange `json:"removed,omitempty" yaml:"removed,omitempty"`

	// Upgraded contains dependencies whose new version is higher.
	Upgraded []DependencyUpgrade `json:"upgraded,omitempty" yaml:"upgraded,omitempty"`

	// Downgraded contains dependencies whose new version is lower.
	Downgraded []DependencyUpgrade `json:"downgraded,omitempty" yaml:"downgraded,omitempty"`
}

// IsEmpty returns true if there are no differences.
func (d *DependencyDiff) IsEmpty() bool {
	return d.TotalChanges() == 0
}

// TotalChanges returns the total number of changes (added + removed + upgraded + downgraded).
func (d *DependencyDiff) TotalChanges() int {
	return len(d.Added) + len(d.Removed) + len(d.Upgraded) + len(d.Downgraded)
}

// DiffDependencies computes the difference between two dependency lists.
// Versions are ordered with [label.CompareVersions], so qualified versions
// of the same base compare by commit time. A dependency declared more than
// once keeps its last version. Results are sorted by coordinate.
func DiffDependencies(old, new []manifest.Dependency) *DependencyDiff {
	diff := &DependencyDiff{}

	oldDeps := make(map[label.Coordinate]string, len(old))
	for _, d := range old {
		oldDeps[d.Coordinate] = d.Version
	}
	newDeps := make(map[label.Coordinate]string, len(new))
	for _, d := range new {
		newDeps[d.Coordinate] = d.Version
	}

	for c, newVersion := range newDeps {
		oldVersion, existed := oldDeps[c]
		if !existed {
			diff.Added = append(diff.Added, DependencyChange{Coordinate: c, Version: newVersion})
			continue
		}
		if oldVersion == newVersion {
			continue
		}
		up := DependencyUpgrade{Coordinate: c, OldVersion: oldVersion, NewVersion: newVersion}
		switch label.CompareVersions(newVersion, oldVersion) {
		case 1:
			diff.Upgraded = append(diff.Upgraded, up)
		case -1:
			diff.Downgraded = append(diff.Downgraded, up)
		}
	}
	for c, oldVersion := range oldDeps {
		if _, ok := newDeps[c]; !ok {
			diff.Removed = append(diff.Removed, DependencyChange{Coordinate: c, Version: oldVersion})
		}
	}

	sortChanges(diff.Added)
	sortChanges(diff.Removed)
	sortUpgrades(diff.Upgraded)
	sortUpgrades(diff.Downgraded)
	return diff
}

func sortChanges(changes []DependencyChange) {
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Coordinate.String() < changes[j].Coordinate.String()
	})
}

func sortUpgrades(upgrades []DependencyUpgrade) {
	sort.Slice(upgrades, func(i, j int) bool {
		return upgrades[i].Coordinate.String() < upgrades[j].Coordinate.String()
	})
}
