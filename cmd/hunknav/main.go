package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kateleext/hunknav/internal/cache"
	"github.com/kateleext/hunknav/internal/config"
	"github.com/kateleext/hunknav/internal/git"
	"github.com/kateleext/hunknav/internal/logger"
	"github.com/kateleext/hunknav/internal/nav"
	"github.com/kateleext/hunknav/internal/ui"
	"github.com/kateleext/hunknav/internal/watcher"
)

func main() {
	// Get directory from args or use current
	dir := "."
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		fmt.Printf("Error resolving path: %v\n", err)
		os.Exit(1)
	}

	info, err := os.Stat(absDir)
	if err != nil || !info.IsDir() {
		fmt.Printf("Not a valid directory: %s\n", absDir)
		os.Exit(1)
	}

	runner := git.ExecRunner{}
	root, err := git.RepoRoot(context.Background(), runner, absDir)
	if err != nil {
		fmt.Printf("Not a git repository: %s\n", absDir)
		os.Exit(1)
	}

	cfg, err := config.Load(root)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogConfig)
	if err != nil {
		fmt.Printf("Error setting up logging: %v\n", err)
		os.Exit(1)
	}
	log.Info().Str("root", root).Str("remote_ref", cfg.RemoteRef).Msg("Starting hunknav")

	src := git.NewSource(runner, git.SourceConfig{
		Dir:          root,
		RemoteRef:    cfg.RemoteRef,
		PreferPRDiff: cfg.PreferPRDiff,
	}, log)
	hunks := cache.New(src, cache.WithTTL(cfg.CacheTTL()), cache.WithLogger(log))

	opts := ui.Options{
		Dir:               root,
		Navigator:         nav.New(hunks),
		Cache:             hunks,
		Resolver:          src,
		HighlightDuration: cfg.HighlightDuration(),
		Logger:            log,
	}

	if cfg.Watch {
		w, err := watcher.New(root, watcher.DefaultDebounce, log)
		if err != nil {
			// Without a watcher the local scope only ages out on its TTL
			log.Warn().Err(err).Msg("File watching disabled")
		} else {
			w.Start()
			defer w.Close()
			opts.Changes = w.Changes
			opts.WatchErrors = w.Errors
		}
	}

	p := tea.NewProgram(
		ui.New(opts),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	if _, err := p.Run(); err != nil {
		log.Error().Err(err).Msg("Program exited with error")
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
