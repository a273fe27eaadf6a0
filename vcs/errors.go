package vcs

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrCommandFailed indicates git exited unsuccessfully.
	ErrCommandFailed = errors.New("git command failed")

	// ErrTimeout indicates git did not finish within the runner's timeout.
	ErrTimeout = errors.New("git command timed out")
)

// CommandError describes a failed git invocation.
type CommandError struct {
	Args     []string
	Dir      string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("git %s (in %s): exit %d", strings.Join(e.Args, " "), e.Dir, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *CommandError) Is(target error) bool {
	return target == ErrCommandFailed
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// TimeoutError is returned when a git invocation is killed after Timeout.
type TimeoutError struct {
	Args    []string
	Dir     string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("git %s (in %s): timed out after %s", strings.Join(e.Args, " "), e.Dir, e.Timeout)
}

func (e *TimeoutError) Unwrap() error {
	return ErrTimeout
}
