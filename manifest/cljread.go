package manifest

import (
	"bytes"
	"fmt"
)

// cljReader turns the data subset of Clojure reader syntax into EDN.
//
// Metadata (^:skip-aot, ^{...}) and discarded forms (#_) are dropped, quoted
// forms lose the quote, and regex literals become strings. Syntax that runs
// code while reading or evaluating (#=, #(...), syntax quote, unquote, deref,
// var quote, reader conditionals) is refused. The skipped byte ranges,
// comments included, are kept so callers can tell live text from dead text.
type cljReader struct {
	src     []byte
	pos     int
	out     bytes.Buffer
	skipped []Span
}

// readClojure converts src and returns the EDN text and the skipped ranges.
func readClojure(src []byte) ([]byte, []Span, error) {
	r := &cljReader{src: src}
	for {
		if err := r.space(true); err != nil {
			return nil, nil, err
		}
		if r.pos >= len(r.src) {
			return r.out.Bytes(), r.skipped, nil
		}
		if err := r.form(true); err != nil {
			return nil, nil, err
		}
	}
}

func (r *cljReader) errorf(format string, args ...any) error {
	line := 1 + bytes.Count(r.src[:min(r.pos, len(r.src))], []byte("\n"))
	return fmt.Errorf("line %d: %s", line, fmt.Sprintf(format, args...))
}

func (r *cljReader) peek(off int) byte {
	if r.pos+off < len(r.src) {
		return r.src[r.pos+off]
	}
	return 0
}

func (r *cljReader) write(emit bool, b []byte) {
	if emit {
		r.out.Write(b)
	}
}

// space consumes whitespace, commas, comments, metadata and discarded forms.
func (r *cljReader) space(emit bool) error {
	for r.pos < len(r.src) {
		c := r.src[r.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == ',':
			r.write(emit, r.src[r.pos:r.pos+1])
			r.pos++
		case c == ';':
			start := r.pos
			for r.pos < len(r.src) && r.src[r.pos] != '\n' {
				r.pos++
			}
			r.skipped = append(r.skipped, Span{Start: start, End: r.pos})
		case c == '^' || (c == '#' && r.peek(1) == '_'):
			start := r.pos
			if c == '#' {
				r.pos += 2
			} else {
				r.pos++
			}
			if err := r.space(false); err != nil {
				return err
			}
			if r.pos >= len(r.src) {
				return r.errorf("nothing follows %q", r.src[start:r.pos])
			}
			if err := r.form(false); err != nil {
				return err
			}
			r.skipped = append(r.skipped, Span{Start: start, End: r.pos})
			r.write(emit, []byte(" "))
		default:
			return nil
		}
	}
	return nil
}

var closers = map[byte]byte{'(': ')', '[': ']', '{': '}'}

// form reads exactly one form. The caller has consumed leading space.
func (r *cljReader) form(emit bool) error {
	c := r.src[r.pos]
	switch c {
	case '(', '[', '{':
		return r.collection(emit, c)
	case ')', ']', '}':
		return r.errorf("unexpected %q", c)
	case '"':
		return r.str(emit)
	case '\\':
		start := r.pos
		r.pos += 2
		for r.pos < len(r.src) && isAlnum(r.src[r.pos]) {
			r.pos++
		}
		r.write(emit, r.src[start:min(r.pos, len(r.src))])
		return nil
	case '\'':
		r.pos++
		if err := r.space(emit); err != nil {
			return err
		}
		if r.pos >= len(r.src) {
			return r.errorf("nothing follows quote")
		}
		return r.form(emit)
	case '~', '`', '@':
		return r.errorf("%q needs evaluating", c)
	case '#':
		switch n := r.peek(1); {
		case n == '{':
			r.write(emit, []byte("#"))
			r.pos++
			return r.collection(emit, '{')
		case n == '"':
			r.pos++
			return r.regex(emit)
		case n == '=' || n == '(' || n == '\'' || n == '?':
			return r.errorf("%q needs evaluating", r.src[r.pos:r.pos+2])
		}
		// A tagged literal: the tag reads as an atom, its value as the next form.
		r.write(emit, []byte("#"))
		r.pos++
		return r.atom(emit)
	}
	return r.atom(emit)
}

func (r *cljReader) collection(emit bool, open byte) error {
	start := r.pos
	r.write(emit, []byte{open})
	r.pos++
	for {
		if err := r.space(emit); err != nil {
			return err
		}
		if r.pos >= len(r.src) {
			r.pos = start
			return r.errorf("unclosed %q", open)
		}
		if r.src[r.pos] == closers[open] {
			r.write(emit, r.src[r.pos:r.pos+1])
			r.pos++
			return nil
		}
		if err := r.form(emit); err != nil {
			return err
		}
	}
}

func (r *cljReader) str(emit bool) error {
	start := r.pos
	for r.pos++; r.pos < len(r.src); r.pos++ {
		switch r.src[r.pos] {
		case '\\':
			r.pos++
		case '"':
			r.pos++
			r.write(emit, r.src[start:r.pos])
			return nil
		}
	}
	r.pos = start
	return r.errorf("unterminated string")
}

// regex rewrites #"..." as a string holding the same pattern text.
func (r *cljReader) regex(emit bool) error {
	start := r.pos
	var b bytes.Buffer
	b.WriteByte('"')
	for r.pos++; r.pos < len(r.src); r.pos++ {
		switch c := r.src[r.pos]; c {
		case '\\':
			r.pos++
			if r.pos >= len(r.src) {
				break
			}
			if r.src[r.pos] == '"' {
				b.WriteString(`\"`)
			} else {
				b.WriteString(`\\`)
				b.WriteByte(r.src[r.pos])
			}
		case '"':
			r.pos++
			b.WriteByte('"')
			r.write(emit, b.Bytes())
			return nil
		default:
			b.WriteByte(c)
		}
	}
	r.pos = start
	return r.errorf("unterminated regex")
}

func (r *cljReader) atom(emit bool) error {
	start := r.pos
	for r.pos < len(r.src) && !isDelimiter(r.src[r.pos]) {
		r.pos++
	}
	if r.pos == start {
		if r.pos >= len(r.src) {
			return r.errorf("unexpected end of input")
		}
		return r.errorf("unexpected %q", r.src[r.pos])
	}
	r.write(emit, r.src[start:r.pos])
	return nil
}

func isDelimiter(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', ',', '(', ')', '[', ']', '{', '}', '"', ';', '^', '~', '`', '@':
		return true
	}
	return false
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// inSpans reports whether offset falls inside one of spans.
func inSpans(spans []Span, offset int) bool {
	for _, s := range spans {
		if offset >= s.Start && offset < s.End {
			return true
		}
	}
	return false
}
