package vcs

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	recordSep = '\x1e'
	fieldSep  = "\x1f"

	logFormat = "--format=%x1e%H%x1f%P%x1f%ct%x1f%D"

	maxRecordSize = 64 << 20
)

// LogOptions selects the history a [Repo.Log] stream yields.
type LogOptions struct {
	// Revs are revisions in git rev-list syntax, e.g. "origin/main" or
	// "^refs/tags/voom-branch--origin/main". Empty means HEAD.
	Revs []string
	// Reverse yields parents before children.
	Reverse bool
	// Changes includes the name-status of every commit. Merges are diffed
	// against their first parent.
	Changes bool
	// Paths limits the stream to commits touching these paths.
	Paths []string
	// MaxCount stops after this many commits when positive.
	MaxCount int
}

func (o LogOptions) args() []string {
	args := []string{"-c", "core.quotePath=false", "log", "--topo-order", "--no-renames", logFormat}
	if o.Reverse {
		args = append(args, "--reverse")
	}
	if o.MaxCount > 0 {
		args = append(args, "--max-count="+strconv.Itoa(o.MaxCount))
	}
	if o.Changes {
		args = append(args, "--name-status", "--root", "--diff-merges=first-parent")
	}
	args = append(args, o.Revs...)
	args = append(args, "--")
	return append(args, o.Paths...)
}

// LogStream iterates over the commits of one git log invocation. It must be
// closed.
type LogStream struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	stderr *bytes.Buffer
	sc     *bufio.Scanner
	wrap   func(err error) error

	cur  Commit
	err  error
	done bool
}

func newLogStream(ctx context.Context, r *Runner, dir string, args []string) (*LogStream, error) {
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	cmd := r.command(runCtx, dir, args)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("git log pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, r.wrap(ctx, runCtx, dir, args, "", "", err)
	}
	r.logger.Debug("git stream", "dir", dir, "args", args)

	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 0, 64<<10), maxRecordSize)
	sc.Split(splitRecords)
	return &LogStream{
		cmd:    cmd,
		cancel: cancel,
		stderr: stderr,
		sc:     sc,
		wrap: func(err error) error {
			return r.wrap(ctx, runCtx, dir, args, "", stderr.String(), err)
		},
	}, nil
}

// Next advances to the next commit. It returns false at the end of the
// stream or on error; check Err.
func (s *LogStream) Next() bool {
	if s.done {
		return false
	}
	for s.sc.Scan() {
		rec := bytes.Trim(s.sc.Bytes(), "\n")
		if len(rec) == 0 {
			continue
		}
		c, err := parseRecord(string(rec))
		if err != nil {
			s.finish(err)
			return false
		}
		s.cur = c
		return true
	}
	s.finish(s.sc.Err())
	return false
}

// Commit returns the current commit.
func (s *LogStream) Commit() Commit {
	return s.cur
}

// Err returns the first error the stream hit, if any.
func (s *LogStream) Err() error {
	return s.err
}

// Close stops the underlying process. It is safe to call more than once.
func (s *LogStream) Close() error {
	if !s.done {
		s.done = true
		s.cancel()
		_ = s.cmd.Wait()
	}
	return nil
}

func (s *LogStream) finish(readErr error) {
	s.done = true
	if readErr != nil {
		s.cancel()
		_ = s.cmd.Wait()
		s.err = readErr
		return
	}
	if err := s.cmd.Wait(); err != nil {
		s.err = s.wrap(err)
	}
	s.cancel()
}

func splitRecords(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, recordSep); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// parseRecord parses one header line, optionally followed by name-status
// lines.
func parseRecord(rec string) (Commit, error) {
	header, body, _ := strings.Cut(rec, "\n")
	fields := strings.Split(header, fieldSep)
	if len(fields) != 4 {
		return Commit{}, fmt.Errorf("malformed log record %q", header)
	}
	secs, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return Commit{}, fmt.Errorf("malformed commit time in %q: %w", header, err)
	}
	c := Commit{
		SHA:  fields[0],
		Time: time.Unix(secs, 0).UTC(),
	}
	if fields[1] != "" {
		c.Parents = strings.Fields(fields[1])
	}
	if fields[3] != "" {
		c.Refs = strings.Split(fields[3], ", ")
	}
	for line := range strings.SplitSeq(body, "\n") {
		if line == "" {
			continue
		}
		status, path, ok := strings.Cut(line, "\t")
		if !ok || status == "" {
			return Commit{}, fmt.Errorf("malformed name-status line %q in %s", line, c.SHA)
		}
		var op ChangeOp
		switch status[0] {
		case 'A':
			op = Added
		case 'D':
			op = Deleted
		case 'M', 'T':
			op = Modified
		default:
			continue
		}
		c.Changes = append(c.Changes, Change{Op: op, Path: path})
	}
	return c, nil
}

// readAll drains a stream into a slice.
func readAll(s *LogStream) ([]Commit, error) {
	defer s.Close()
	var out []Commit
	for s.Next() {
		out = append(out, s.Commit())
	}
	return out, s.Err()
}

var _ io.Closer = (*LogStream)(nil)
