package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertocavalcante/go-voom/internal/testutil"
	"github.com/albertocavalcante/go-voom/label"
)

type cliResult struct {
	code   int
	stdout string
	stderr string
}

func invoke(t *testing.T, args ...string) cliResult {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(args, &out, &errOut)
	return cliResult{code: code, stdout: out.String(), stderr: errOut.String()}
}

// workspace is a repos directory holding one clone of acme/core with two
// commits, and an isolated home and box directory.
type workspace struct {
	repos string
	box   string
	clone string
	c1    string
	c2    string
}

func newWorkspace(t *testing.T) workspace {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	box := filepath.Join(t.TempDir(), "box")
	t.Setenv("VOOM_BOX_DIR", box)

	upstream := testutil.NewGitRepo(t)
	upstream.Write("project.clj", testutil.LeinProject("acme/core", "1.0.0-SNAPSHOT"))
	c1 := upstream.Commit("core 1.0.0")
	upstream.Write("src/core.clj", "(ns core)")
	c2 := upstream.Commit("add source")

	repos := t.TempDir()
	clone := filepath.Join(repos, "core")
	upstream.Git("clone", "--quiet", upstream.Path, clone)
	return workspace{repos: repos, box: box, clone: clone, c1: c1, c2: c2}
}

func (w workspace) run(t *testing.T, args ...string) cliResult {
	t.Helper()
	return invoke(t, append([]string{"--repos-dir", w.repos}, args...)...)
}

func (w workspace) newest() string {
	return label.FormatVersion("1.0.0", testutil.Epoch.Add(time.Minute), w.c2, false)
}

func TestRetagAndResolve(t *testing.T) {
	w := newWorkspace(t)

	res := w.run(t, "retag")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "core: 2 commits, 1 tags (0 deletions), 0 unreadable\n", res.stdout)

	res = w.run(t, "retag")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "core: 0 commits, 0 tags (0 deletions), 0 unreadable\n", res.stdout)

	res = w.run(t, "resolve", "acme/core")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, w.newest()+"\n", res.stdout)

	res = w.run(t, "resolve", "acme/core", "--all")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, w.newest()+"\tcore\torigin/main\t.\n", res.stdout)

	res = w.run(t, "resolve", "acme/core", "-o", "json")
	require.Equal(t, 0, res.code, res.stderr)
	var got []map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &got))
	require.Len(t, got, 1)
	assert.Equal(t, w.newest(), got[0]["qualified"])
	assert.Equal(t, "acme/core", got[0]["coordinate"])
	assert.Equal(t, w.c2, got[0]["sha"])
	assert.Equal(t, w.c1, got[0]["baseline_sha"])
}

func TestResolveErrors(t *testing.T) {
	w := newWorkspace(t)
	require.Equal(t, 0, w.run(t, "retag").code)

	res := w.run(t, "resolve", "acme/missing")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "Error: no version of acme/missing")

	res = w.run(t, "resolve", "acme/core", "--version-prefix", "2.")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "no version of acme/core")

	res = w.run(t, "resolve", "not a coordinate")
	assert.Equal(t, 1, res.code)

	res = invoke(t, "--repos-dir", t.TempDir(), "resolve", "acme/core")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "no git repositories")
}

func TestVersionCommand(t *testing.T) {
	w := newWorkspace(t)

	res := w.run(t, "version", w.clone)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, w.newest()+"\n", res.stdout)

	res = w.run(t, "version", w.clone, "--long", "-o", "yaml")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "version: "+label.FormatVersion("1.0.0", testutil.Epoch.Add(time.Minute), w.c2, true)+"\n", res.stdout)

	res = w.run(t, "version", w.clone, "--manifest", "missing/project.clj")
	assert.Equal(t, 1, res.code)
}

func TestParseVersion(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	res := invoke(t, "parse-version", "1.0.0-20240102_030405-gabcdef0")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "1.0.0\t2024-01-02T03:04:05Z\tabcdef0\n", res.stdout)

	res = invoke(t, "parse-version", "1.0.0")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "not qualified")

	res = invoke(t, "-o", "xml", "parse-version", "1.0.0-20240102_030405-gabcdef0")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, `unknown output format "xml"`)
}

func TestFreshenCommand(t *testing.T) {
	w := newWorkspace(t)
	require.Equal(t, 0, w.run(t, "retag").code)

	old := label.FormatVersion("1.0.0", testutil.Epoch, w.c1, false)
	app := filepath.Join(t.TempDir(), "project.clj")
	original := testutil.LeinProject("acme/app", "0.1.0",
		[2]string{"acme/core", old},
		[2]string{"org.clojure/clojure", "1.11.1"})
	require.NoError(t, os.WriteFile(app, []byte(original), 0o644))

	res := w.run(t, "freshen", app, "--dry-run")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "acme/core "+old+" -> "+w.newest()+"\nwould update 1 dependencies in "+app+"\n", res.stdout)
	content, err := os.ReadFile(app)
	require.NoError(t, err)
	assert.Equal(t, original, string(content))

	res = w.run(t, "freshen", app)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "updated 1 dependencies")
	content, err = os.ReadFile(app)
	require.NoError(t, err)
	assert.Equal(t, strings.Replace(original, old, w.newest(), 1), string(content))

	res = w.run(t, "freshen", app)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, app+" is up to date\n", res.stdout)
}

func TestFreshenReportsUnresolved(t *testing.T) {
	w := newWorkspace(t)
	require.Equal(t, 0, w.run(t, "retag").code)

	app := filepath.Join(t.TempDir(), "project.clj")
	ghost := "2.0.0-20240102_030405-gabcdef0"
	require.NoError(t, os.WriteFile(app, []byte(testutil.LeinProject("acme/app", "0.1.0",
		[2]string{"acme/ghost", ghost})), 0o644))

	res := w.run(t, "freshen", app)
	assert.Equal(t, 2, res.code)
	assert.Contains(t, res.stdout, "acme/ghost "+ghost+": skipped, no tagged version found")
	assert.Contains(t, res.stderr, "some dependencies were not resolved")
}

func TestBox(t *testing.T) {
	w := newWorkspace(t)
	require.Equal(t, 0, w.run(t, "retag").code)

	res := w.run(t, "box", "add", "acme/core")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "core -> acme/core "+w.newest()+"\n", res.stdout)

	content, err := os.ReadFile(filepath.Join(w.box, "core", "src", "core.clj"))
	require.NoError(t, err)
	assert.Equal(t, "(ns core)", string(content))

	res = w.run(t, "box", "add", "acme/core")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "already")

	res = w.run(t, "box", "list", "-o", "json")
	require.Equal(t, 0, res.code, res.stderr)
	var entries []map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "core", entries[0]["name"])
	assert.Equal(t, w.c2, entries[0]["sha"])
	assert.Equal(t, true, entries[0]["linked"])

	res = w.run(t, "box", "rm", "core")
	require.Equal(t, 0, res.code, res.stderr)
	_, err = os.Lstat(filepath.Join(w.box, "core"))
	assert.True(t, os.IsNotExist(err))

	res = w.run(t, "box", "list")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Empty(t, res.stdout)

	res = w.run(t, "box", "remove", "core")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "not found")
}

func TestBuildDepsCommand(t *testing.T) {
	w := newWorkspace(t)
	require.Equal(t, 0, w.run(t, "retag").code)
	t.Setenv("VOOM_M2_DIR", t.TempDir())

	app := filepath.Join(t.TempDir(), "project.clj")
	require.NoError(t, os.WriteFile(app, []byte(testutil.LeinProject("acme/app", "0.1.0",
		[2]string{"acme/core", w.newest()})), 0o644))

	res := w.run(t, "build-deps", app)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "1. acme/core "+w.newest()+"\tcore origin/main:.@"+w.c2[:7]+"\n", res.stdout)

	res = w.run(t, "deps", "graph", app, "--format", "dot")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "digraph dependencies")

	res = w.run(t, "deps", "graph", app, "--stats")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "1 direct")
	assert.Contains(t, res.stdout, "cycles: none")

	res = w.run(t, "deps", "why", "acme/core", app)
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "acme/app@0.1.0 -> acme/core@"+w.newest()+"\n", res.stdout)
}

func TestConfigFile(t *testing.T) {
	w := newWorkspace(t)
	cfg := filepath.Join(t.TempDir(), "voom.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("repos_dir: "+w.repos+"\nlog:\n  level: debug\n"), 0o644))

	res := invoke(t, "--config", cfg, "retag")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "core: 2 commits")
	assert.Contains(t, res.stderr, "level=DEBUG")

	res = invoke(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "retag")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "read config")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "warn", "json", false)
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	buf.Reset()
	logger, err = newLogger(&buf, "warn", "text", true)
	require.NoError(t, err)
	logger.Debug("verbose")
	assert.Contains(t, buf.String(), "msg=verbose")

	_, err = newLogger(&buf, "loud", "text", false)
	assert.Error(t, err)
	_, err = newLogger(&buf, "info", "xml", false)
	assert.Error(t, err)
}
