// Package box manages a directory of dependency checkouts, one symlink per
// dependency, so several projects can be built side by side at the commits
// voom resolved for them.
//
// Layout:
//
//	<box>/.checkouts/<repository>-<sha>/   detached git worktree
//	<box>/.checkouts/index.yaml            what each link was created for
//	<box>/<name> -> .checkouts/<repository>-<sha>/<manifest dir>
//
// A worktree is shared by every entry at the same repository and commit and
// removed with the last of them.
package box

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/albertocavalcante/go-voom/label"
)

const (
	checkoutsDir = ".checkouts"
	indexFile    = "index.yaml"
)

var (
	// ErrExists is returned when adding a name the box already holds.
	ErrExists = errors.New("box entry already exists")

	// ErrNotFound is returned when removing a name the box does not hold.
	ErrNotFound = errors.New("box entry not found")
)

// Worktrees creates and deletes detached checkouts of one repository.
// [*vcs.Repo] implements it.
type Worktrees interface {
	AddWorktree(ctx context.Context, path, sha string) error
	RemoveWorktree(ctx context.Context, path string) error
}

// Entry is one dependency in the box.
type Entry struct {
	// Name is the link name inside the box.
	Name       string `json:"name" yaml:"name"`
	Coordinate string `json:"coordinate" yaml:"coordinate"`
	Version    string `json:"version" yaml:"version"`
	Repository string `json:"repository" yaml:"repository"`
	Branch     string `json:"branch,omitempty" yaml:"branch,omitempty"`

	// Path is the manifest directory inside the repository.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	SHA  string `json:"sha" yaml:"sha"`

	// Checkout is the worktree directory, relative to the box.
	Checkout string `json:"checkout" yaml:"checkout"`

	// Linked is false when the symlink has gone missing. Not persisted in the index.
	Linked bool `json:"linked" yaml:"-"`
}

// Box is a box directory. Methods are safe for concurrent use within one
// process.
type Box struct {
	dir    string
	logger *slog.Logger
	mu     sync.Mutex
}

// Open prepares dir as a box, creating it if needed. A nil logger discards.
func Open(dir string, logger *slog.Logger) (*Box, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("box directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(abs, checkoutsDir), 0o755); err != nil {
		return nil, fmt.Errorf("create box: %w", err)
	}
	return &Box{dir: abs, logger: logger}, nil
}

// Dir returns the absolute box directory.
func (b *Box) Dir() string {
	return b.dir
}

// List returns the entries, sorted by name.
func (b *Box) List() ([]Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries, err := b.load()
	if err != nil {
		return nil, err
	}
	for i := range entries {
		_, err := os.Readlink(filepath.Join(b.dir, entries[i].Name))
		entries[i].Linked = err == nil
	}
	return entries, nil
}

// Get returns the entry called name.
func (b *Box) Get(name string) (Entry, bool, error) {
	entries, err := b.List()
	if err != nil {
		return Entry{}, false, err
	}
	i := slices.IndexFunc(entries, func(e Entry) bool { return e.Name == name })
	if i < 0 {
		return Entry{}, false, nil
	}
	return entries[i], true, nil
}

// Add checks out e.SHA from wt, unless a checkout of that commit is already
// in the box, and links e.Name to e.Path inside it. An empty name defaults
// to the coordinate's short name.
func (b *Box) Add(ctx context.Context, wt Worktrees, e Entry) (Entry, error) {
	if e.Name == "" {
		c, err := label.ParseCoordinate(e.Coordinate)
		if err != nil {
			return Entry{}, err
		}
		e.Name = c.ShortName()
	}
	if err := validName(e.Name); err != nil {
		return Entry{}, err
	}
	if len(e.SHA) < label.ShortSHALength || e.Repository == "" {
		return Entry{}, fmt.Errorf("box entry %s: repository and sha are required", e.Name)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	entries, err := b.load()
	if err != nil {
		return Entry{}, err
	}
	if slices.ContainsFunc(entries, func(o Entry) bool { return o.Name == e.Name }) {
		return Entry{}, fmt.Errorf("%s: %w", e.Name, ErrExists)
	}
	link := filepath.Join(b.dir, e.Name)
	if _, err := os.Lstat(link); err == nil {
		return Entry{}, fmt.Errorf("%s: %w (not managed by the box)", link, ErrExists)
	}

	e.Checkout = filepath.ToSlash(filepath.Join(checkoutsDir, e.Repository+"-"+e.SHA))
	checkout := filepath.Join(b.dir, filepath.FromSlash(e.Checkout))
	if _, err := os.Stat(checkout); errors.Is(err, fs.ErrNotExist) {
		if err := wt.AddWorktree(ctx, checkout, e.SHA); err != nil {
			return Entry{}, fmt.Errorf("check out %s at %s: %w", e.Repository, e.SHA, err)
		}
		b.logger.Info("checked out", "repo", e.Repository, "sha", e.SHA, "dir", checkout)
	} else if err != nil {
		return Entry{}, err
	}

	target := filepath.Join(filepath.FromSlash(e.Checkout), filepath.FromSlash(e.Path))
	if err := os.Symlink(target, link); err != nil {
		return Entry{}, fmt.Errorf("link %s: %w", e.Name, err)
	}
	entries = append(entries, e)
	if err := b.save(entries); err != nil {
		os.Remove(link)
		return Entry{}, err
	}
	e.Linked = true
	b.logger.Debug("linked", "name", e.Name, "target", target)
	return e, nil
}

// Remove deletes the link called name, and the worktree behind it if no
// other entry uses it. wt must belong to the entry's repository.
func (b *Box) Remove(ctx context.Context, wt Worktrees, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries, err := b.load()
	if err != nil {
		return err
	}
	i := slices.IndexFunc(entries, func(e Entry) bool { return e.Name == name })
	if i < 0 {
		return fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	e := entries[i]
	entries = slices.Delete(entries, i, i+1)

	if err := os.Remove(filepath.Join(b.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("unlink %s: %w", name, err)
	}
	if err := b.save(entries); err != nil {
		return err
	}
	if slices.ContainsFunc(entries, func(o Entry) bool { return o.Checkout == e.Checkout }) {
		return nil
	}
	checkout := filepath.Join(b.dir, filepath.FromSlash(e.Checkout))
	if err := wt.RemoveWorktree(ctx, checkout); err != nil {
		return fmt.Errorf("remove checkout %s: %w", e.Checkout, err)
	}
	b.logger.Info("removed checkout", "repo", e.Repository, "sha", e.SHA)
	return nil
}

func validName(name string) error {
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid box entry name %q", name)
	}
	return nil
}

func (b *Box) indexPath() string {
	return filepath.Join(b.dir, checkoutsDir, indexFile)
}

func (b *Box) load() ([]Entry, error) {
	data, err := os.ReadFile(b.indexPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read box index: %w", err)
	}
	var idx struct {
		Entries []Entry `json:"entries" yaml:"entries"`
	}
	if err := yaml.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parse box index: %w", err)
	}
	slices.SortFunc(idx.Entries, func(a, b Entry) int { return strings.Compare(a.Name, b.Name) })
	return idx.Entries, nil
}

func (b *Box) save(entries []Entry) error {
	data, err := yaml.Marshal(struct {
		Entries []Entry `json:"entries" yaml:"entries"`
	}{entries})
	if err != nil {
		return fmt.Errorf("encode box index: %w", err)
	}
	tmp := b.indexPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write box index: %w", err)
	}
	if err := os.Rename(tmp, b.indexPath()); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write box index: %w", err)
	}
	return nil
}
