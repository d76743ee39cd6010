package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kateleext/hunknav/internal/hunk"
)

// SourceConfig selects what each scope diffs against
type SourceConfig struct {
	Dir          string // any directory inside the work tree
	RemoteRef    string // comparison target for the remote scope
	PreferPRDiff bool   // try `gh pr diff` before the plain remote diff
}

// Source produces raw unified diff text for a scope
type Source struct {
	runner Runner
	cfg    SourceConfig
	log    zerolog.Logger

	mu   sync.Mutex
	root string

	prOnce      sync.Once
	prAvailable bool
}

// NewSource creates a diff source backed by runner
func NewSource(runner Runner, cfg SourceConfig, logger zerolog.Logger) *Source {
	return &Source{
		runner: runner,
		cfg:    cfg,
		log:    logger.With().Str("component", "diffsource").Logger(),
	}
}

// Root returns the repository root, resolving it on first use
func (s *Source) Root(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.root != "" {
		return s.root, nil
	}
	root, err := RepoRoot(ctx, s.runner, s.cfg.Dir)
	if err != nil {
		return "", err
	}
	s.root = root
	return root, nil
}

// Fetch returns the unified diff for scope.
// An empty string with a nil error means there are no changes.
func (s *Source) Fetch(ctx context.Context, scope hunk.Scope) (string, error) {
	root, err := s.Root(ctx)
	if err != nil {
		return "", err
	}

	switch scope {
	case hunk.ScopeLocal:
		return s.run(ctx, scope, root, "git", diffArgs(root)...)
	case hunk.ScopeRemote:
		return s.fetchRemote(ctx, root)
	default:
		return "", fmt.Errorf("unknown scope %q", scope)
	}
}

// fetchRemote tries the pull request diff first, falling back to the remote ref
func (s *Source) fetchRemote(ctx context.Context, root string) (string, error) {
	if s.cfg.PreferPRDiff && s.prDiffAvailable(ctx, root) {
		out, err := s.run(ctx, hunk.ScopeRemote, root, "gh", "pr", "diff", "--color=never")
		if err == nil && strings.TrimSpace(out) != "" {
			return out, nil
		}
		s.log.Debug().Err(err).Msg("pr diff unusable, falling back to remote ref")
	}

	return s.run(ctx, hunk.ScopeRemote, root, "git", diffArgs(root, s.cfg.RemoteRef)...)
}

// diffArgs pins the header shape against user config: unescaped paths and
// a/ b/ prefixes regardless of diff.noprefix or diff.mnemonicPrefix.
func diffArgs(root string, extra ...string) []string {
	args := []string{
		"-C", root, "-c", "core.quotePath=false",
		"diff", "--unified=0", "--no-color", "--src-prefix=a/", "--dst-prefix=b/",
	}
	return append(args, extra...)
}

// prDiffAvailable checks once whether gh is authenticated and origin is hosted
func (s *Source) prDiffAvailable(ctx context.Context, root string) bool {
	s.prOnce.Do(func() {
		origin := OriginURL(ctx, s.runner, root)
		s.prAvailable = IsHostedOrigin(origin) && GhAuthenticated(ctx, s.runner, root)
		s.log.Debug().Str("origin", origin).Bool("available", s.prAvailable).Msg("pr diff probe")
	})
	return s.prAvailable
}

// run executes one diff command and converts failures into a SourceError
func (s *Source) run(ctx context.Context, scope hunk.Scope, dir, name string, args ...string) (string, error) {
	cmdLine := commandLine(name, args)
	s.log.Debug().Str("scope", scope.String()).Str("cmd", cmdLine).Msg("running diff")

	res, err := s.runner.Run(ctx, dir, name, args...)
	if err != nil {
		return "", &SourceError{Scope: scope, Command: cmdLine, Reason: err.Error(), Err: err}
	}
	if res.ExitCode != 0 {
		return "", &SourceError{Scope: scope, Command: cmdLine, Reason: failureReason(res), ExitCode: res.ExitCode}
	}
	return res.Stdout, nil
}

// ResolvePath returns the absolute path of a hunk's file
func (s *Source) ResolvePath(ctx context.Context, h hunk.Hunk) (string, error) {
	root, err := s.Root(ctx)
	if err != nil {
		return "", err
	}

	path := filepath.Join(root, filepath.FromSlash(h.File))
	info, err := os.Stat(path)
	if err != nil {
		return "", &PathError{Path: h.File, Err: err}
	}
	if info.IsDir() {
		return "", &PathError{Path: h.File, Err: fmt.Errorf("is a directory")}
	}
	return path, nil
}

// failureReason picks a short human-readable reason from a failed command
func failureReason(res Result) string {
	stderr := strings.TrimSpace(res.Stderr)
	if stderr == "" {
		return fmt.Sprintf("exit status %d", res.ExitCode)
	}
	line, _, _ := strings.Cut(stderr, "\n")
	line = strings.TrimPrefix(line, "fatal: ")
	line = strings.TrimPrefix(line, "error: ")
	return line
}
