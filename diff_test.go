package voom

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/albertocavalcante/go-voom/label"
	"github.com/albertocavalcante/go-voom/manifest"
)

func dep(coord, version string) manifest.Dependency {
	return manifest.Dependency{Coordinate: label.MustCoordinate(coord), Version: version}
}

func TestDiffDependencies(t *testing.T) {
	old := []manifest.Dependency{
		dep("acme/core", "1.0.0-20240301_120000-gaaaaaaa"),
		dep("acme/util", "2.0.0-20240301_120000-gccccccc"),
		dep("acme/gone", "1.0"),
		dep("org.clojure/clojure", "1.11.1"),
	}
	new := []manifest.Dependency{
		dep("acme/core", "1.0.0-20240302_120000-gbbbbbbb"),
		dep("acme/util", "2.0.0-20240201_120000-gddddddd"),
		dep("acme/added", "0.1"),
		dep("org.clojure/clojure", "1.11.1"),
	}

	got := DiffDependencies(old, new)
	want := &DependencyDiff{
		Added:   []DependencyChange{{Coordinate: label.MustCoordinate("acme/added"), Version: "0.1"}},
		Removed: []DependencyChange{{Coordinate: label.MustCoordinate("acme/gone"), Version: "1.0"}},
		Upgraded: []DependencyUpgrade{{
			Coordinate: label.MustCoordinate("acme/core"),
			OldVersion: "1.0.0-20240301_120000-gaaaaaaa",
			NewVersion: "1.0.0-20240302_120000-gbbbbbbb",
		}},
		Downgraded: []DependencyUpgrade{{
			Coordinate: label.MustCoordinate("acme/util"),
			OldVersion: "2.0.0-20240301_120000-gccccccc",
			NewVersion: "2.0.0-20240201_120000-gddddddd",
		}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DiffDependencies() mismatch (-want +got):\n%s", diff)
	}
	if got.TotalChanges() != 4 || got.IsEmpty() {
		t.Errorf("TotalChanges() = %d", got.TotalChanges())
	}
}

func TestDiffDependenciesEmpty(t *testing.T) {
	deps := []manifest.Dependency{dep("acme/core", "1.0")}
	if d := DiffDependencies(deps, deps); !d.IsEmpty() {
		t.Errorf("diff of identical lists = %+v", d)
	}
	if d := DiffDependencies(nil, nil); !d.IsEmpty() {
		t.Errorf("diff of empty lists = %+v", d)
	}
}

func TestDiffDependenciesSortsByCoordinate(t *testing.T) {
	d := DiffDependencies(nil, []manifest.Dependency{dep("b/b", "1"), dep("a/z", "1"), dep("a/a", "1")})
	var got []string
	for _, c := range d.Added {
		got = append(got, c.Coordinate.String())
	}
	if diff := cmp.Diff([]string{"a/a", "a/z", "b/b"}, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}
