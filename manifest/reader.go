package manifest

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
)

// Reader picks a Format by file name.
type Reader struct {
	formats []Format
}

// NewReader returns a Reader over formats. With none, it handles
// Leiningen and Bazel descriptors.
func NewReader(formats ...Format) *Reader {
	if len(formats) == 0 {
		formats = []Format{Leiningen{}, Bazel{}}
	}
	return &Reader{formats: formats}
}

// Formats returns the formats the reader dispatches to.
func (r *Reader) Formats() []Format {
	return r.formats
}

// FormatFor returns the format handling the descriptor at p.
func (r *Reader) FormatFor(p string) (Format, bool) {
	base := path.Base(filepath.ToSlash(p))
	for _, f := range r.formats {
		if f.FileName() == base {
			return f, true
		}
	}
	return nil, false
}

// Match reports whether p is a descriptor any format handles.
func (r *Reader) Match(p string) bool {
	_, ok := r.FormatFor(p)
	return ok
}

// Parse reads content as the descriptor at p.
func (r *Reader) Parse(p string, content []byte) (*Manifest, error) {
	f, ok := r.FormatFor(p)
	if !ok {
		return nil, &ParseError{Path: p, Message: "not a known manifest file"}
	}
	m, err := f.Parse(content)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) && pe.Path == "" {
			pe.Path = p
		}
		return nil, err
	}
	return m, nil
}

// ReadFile parses the descriptor at p on disk.
func (r *Reader) ReadFile(p string) (*Manifest, error) {
	content, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return r.Parse(p, content)
}

// Find returns the path of the first descriptor found in dir, trying
// formats in order.
func (r *Reader) Find(dir string) (string, Format, error) {
	for _, f := range r.formats {
		p := filepath.Join(dir, f.FileName())
		if _, err := os.Stat(p); err == nil {
			return p, f, nil
		}
	}
	return "", nil, fmt.Errorf("no manifest in %s: %w", dir, os.ErrNotExist)
}
