package voom

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertocavalcante/go-voom/internal/testutil"
	"github.com/albertocavalcante/go-voom/label"
)

// coreHistory builds acme/core 1.0.0 at c1 and 1.1.0 at c3, four commits in
// all, on origin/main.
func coreHistory(name string) (*fakeRepo, []string) {
	repo := newFakeRepo(name)
	c1 := repo.commit("c1", nil, map[string]*string{"project.clj": lein("acme/core", "1.0.0")})
	c2 := repo.commit("c2", []string{c1}, map[string]*string{"README.md": str("a")})
	c3 := repo.commit("c3", []string{c2}, map[string]*string{"project.clj": lein("acme/core", "1.1.0")})
	c4 := repo.commit("c4", []string{c3}, map[string]*string{"README.md": str("b")})
	repo.setBranch("origin/main", c4)
	return repo, []string{c1, c2, c3, c4}
}

func qualified(base string, n int, sha string) string {
	return label.FormatVersion(base, fakeTime(n), sha, false)
}

func TestFreshen(t *testing.T) {
	repo, shas := coreHistory("core")
	r := mustResolver(t, scanAll(t, repo))
	ctx := context.Background()

	missing := "3.0.0-20240101_000000-gabcdef0"
	path := writeManifest(t, "project.clj", testutil.LeinProject("acme/app", "0.1.0-SNAPSHOT",
		[2]string{"acme/core", qualified("1.0.0", 0, shas[0])},
		[2]string{"org.clojure/clojure", "1.11.1"},
		[2]string{"acme/missing", missing},
	), 0o644)

	report, err := r.Freshen(ctx, path, FreshenOptions{})
	require.NoError(t, err)

	want := qualified("1.0.0", 1, shas[1])
	require.Len(t, report.Outcomes, 3)
	assert.Equal(t, FreshenUpdated, report.Outcomes[0].Status)
	assert.Equal(t, want, report.Outcomes[0].NewVersion)
	assert.Equal(t, FreshenSkipped, report.Outcomes[1].Status)
	assert.Equal(t, "version is not qualified", report.Outcomes[1].Reason)
	assert.NoError(t, report.Outcomes[1].Err)
	assert.Equal(t, FreshenSkipped, report.Outcomes[2].Status)
	assert.ErrorIs(t, report.Outcomes[2].Err, ErrNoMatchingVersion)
	assert.ErrorIs(t, report.Err(), ErrNoMatchingVersion)

	assert.True(t, report.Written)
	assert.Equal(t, []Edit{{Coordinate: core, OldVersion: qualified("1.0.0", 0, shas[0]), NewVersion: want}}, report.Edits)
	require.Len(t, report.Diff.Upgraded, 1)
	assert.Equal(t, 1, report.Diff.TotalChanges())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `[acme/core "`+want+`"]`)
	assert.Contains(t, string(content), `[acme/missing "`+missing+`"]`)

	again, err := r.Freshen(ctx, path, FreshenOptions{})
	require.NoError(t, err)
	assert.Equal(t, FreshenUnchanged, again.Outcomes[0].Status)
	assert.Empty(t, again.Edits)
	assert.False(t, again.Written)
	assert.True(t, again.Diff.IsEmpty())
}

func TestFreshenDryRun(t *testing.T) {
	repo, shas := coreHistory("core")
	r := mustResolver(t, scanAll(t, repo))
	content := testutil.LeinProject("acme/app", "0.1.0", [2]string{"acme/core", qualified("1.0.0", 0, shas[0])})
	path := writeManifest(t, "project.clj", content, 0o644)

	report, err := r.Freshen(context.Background(), path, FreshenOptions{DryRun: true})
	require.NoError(t, err)
	assert.Len(t, report.Edits, 1)
	assert.False(t, report.Written)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, string(got))
}

func TestFreshenAnyVersion(t *testing.T) {
	repo, shas := coreHistory("core")
	r := mustResolver(t, scanAll(t, repo), WithAnyVersion(true), WithLongSHA(true))
	path := writeManifest(t, "project.clj",
		testutil.LeinProject("acme/app", "0.1.0", [2]string{"acme/core", qualified("1.0.0", 0, shas[0])}), 0o644)

	report, err := r.Freshen(context.Background(), path, FreshenOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, label.FormatVersion("1.1.0", fakeTime(3), shas[3], true), report.Outcomes[0].NewVersion)
}

func TestFreshenNeverDowngrades(t *testing.T) {
	repo, _ := coreHistory("core")
	r := mustResolver(t, scanAll(t, repo))
	future := "1.0.0-20300101_000000-gfffffff"
	path := writeManifest(t, "project.clj",
		testutil.LeinProject("acme/app", "0.1.0", [2]string{"acme/core", future}), 0o644)

	report, err := r.Freshen(context.Background(), path, FreshenOptions{})
	require.NoError(t, err)
	assert.Equal(t, FreshenSkipped, report.Outcomes[0].Status)
	assert.Contains(t, report.Outcomes[0].Reason, "older")
	assert.Empty(t, report.Outcomes[0].NewVersion)
	assert.False(t, report.Written)
}

func TestFreshenAmbiguous(t *testing.T) {
	a, shas := coreHistory("a")
	b, _ := coreHistory("b")
	r := mustResolver(t, scanAll(t, a, b))
	path := writeManifest(t, "project.clj",
		testutil.LeinProject("acme/app", "0.1.0", [2]string{"acme/core", qualified("1.0.0", 0, shas[0])}), 0o644)
	ctx := context.Background()

	report, err := r.Freshen(ctx, path, FreshenOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, FreshenSkipped, report.Outcomes[0].Status)
	assert.Equal(t, "several candidates", report.Outcomes[0].Reason)
	var amb *AmbiguousResolutionError
	assert.True(t, errors.As(report.Err(), &amb))

	report, err = r.Freshen(ctx, path, FreshenOptions{Repository: "a", Branch: "main", DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, FreshenUpdated, report.Outcomes[0].Status)
	assert.NoError(t, report.Err())
}

func TestFreshenRejectsUnknownFile(t *testing.T) {
	r := mustResolver(t, nil)
	path := writeManifest(t, "pom.xml", "<project/>", 0o644)
	_, err := r.Freshen(context.Background(), path, FreshenOptions{})
	assert.Error(t, err)
}

func TestSelfVersion(t *testing.T) {
	repo, shas := coreHistory("core")
	ctx := context.Background()

	got, err := SelfVersion(ctx, repo, "project.clj")
	require.NoError(t, err)
	assert.Equal(t, qualified("1.1.0", 3, shas[3]), got)

	got, err = SelfVersion(ctx, repo, "project.clj", WithLongSHA(true))
	require.NoError(t, err)
	assert.Equal(t, label.FormatVersion("1.1.0", fakeTime(3), shas[3], true), got)

	_, err = SelfVersion(ctx, repo, "lib/project.clj")
	assert.Error(t, err)

	_, err = SelfVersion(ctx, newFakeRepo("empty"), "project.clj")
	assert.Error(t, err)
}

func TestSelfVersionDropsSnapshot(t *testing.T) {
	repo := newFakeRepo("core")
	sha := repo.commit("c1", nil, map[string]*string{"project.clj": lein("acme/core", "2.0.0-SNAPSHOT")})

	got, err := SelfVersion(context.Background(), repo, "project.clj")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0-20240301_120000-g"+sha[:7], got)
}
