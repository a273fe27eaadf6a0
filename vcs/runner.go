package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds every git invocation unless overridden.
const DefaultTimeout = 2 * time.Minute

// Runner executes git commands.
type Runner struct {
	binary  string
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithBinary sets the git executable. Defaults to "git" on PATH.
func WithBinary(path string) Option {
	return func(r *Runner) {
		if path != "" {
			r.binary = path
		}
	}
}

// WithTimeout bounds each invocation. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLogger logs every invocation at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRunner returns a Runner with the given options applied.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		binary:  "git",
		timeout: DefaultTimeout,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Timeout returns the per-invocation timeout.
func (r *Runner) Timeout() time.Duration {
	return r.timeout
}

// Run executes git with args in dir and returns its stdout.
func (r *Runner) Run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	return r.RunInput(ctx, dir, nil, args...)
}

// RunInput is Run with stdin connected to in.
func (r *Runner) RunInput(ctx context.Context, dir string, in io.Reader, args ...string) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := r.command(runCtx, dir, args)
	cmd.Stdin = in
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	r.logger.Debug("git", "dir", dir, "args", args, "duration", time.Since(start), "error", err)
	if err != nil {
		return nil, r.wrap(ctx, runCtx, dir, args, stdout.String(), stderr.String(), err)
	}
	return stdout.Bytes(), nil
}

func (r *Runner) command(ctx context.Context, dir string, args []string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "LC_ALL=C")
	return cmd
}

// wrap converts an exec failure into a typed error. ctx is the caller's
// context and runCtx the one carrying the runner timeout; a caller deadline
// or cancellation is reported as such, not as a runner timeout.
func (r *Runner) wrap(ctx, runCtx context.Context, dir string, args []string, stdout, stderr string, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return fmt.Errorf("git %s (in %s): %w", strings.Join(args, " "), dir, cerr)
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Args: args, Dir: dir, Timeout: r.timeout}
	}
	ce := &CommandError{
		Args:     args,
		Dir:      dir,
		ExitCode: -1,
		Stdout:   stdout,
		Stderr:   stderr,
		Err:      err,
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		ce.ExitCode = exitErr.ExitCode()
	}
	return ce
}

// Clone clones url into dir and opens the result.
func (r *Runner) Clone(ctx context.Context, url, dir string) (*Repo, error) {
	if _, err := r.Run(ctx, "", "clone", "--quiet", url, dir); err != nil {
		return nil, err
	}
	return Open(dir, r), nil
}
