package git

import (
	"errors"
	"fmt"

	"github.com/kateleext/hunknav/internal/hunk"
)

var (
	// ErrNotARepository indicates the directory is not inside a git work tree
	ErrNotARepository = errors.New("not a git repository")
	// ErrSourceCommandFailed indicates a diff command exited non-zero or produced no usable output
	ErrSourceCommandFailed = errors.New("diff command failed")
	// ErrPathUnresolvable indicates a hunk's file cannot be found under the repository root
	ErrPathUnresolvable = errors.New("path unresolvable")
)

// SourceError describes a failed diff command
type SourceError struct {
	Scope    hunk.Scope
	Command  string
	Reason   string
	ExitCode int
	Err      error
}

func (e *SourceError) Error() string {
	msg := fmt.Sprintf("%s diff failed: %s: %s", e.Scope, e.Command, e.Reason)
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit %d)", e.ExitCode)
	}
	return msg
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// Is makes every SourceError match ErrSourceCommandFailed
func (e *SourceError) Is(target error) bool {
	return target == ErrSourceCommandFailed
}

// PathError reports a hunk file that does not exist on disk
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("cannot resolve %s: %v", e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

func (e *PathError) Is(target error) bool {
	return target == ErrPathUnresolvable
}
