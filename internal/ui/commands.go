package ui

import (
	"bytes"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kateleext/hunknav/internal/highlight"
	"github.com/kateleext/hunknav/internal/hunk"
	"github.com/kateleext/hunknav/internal/nav"
)

// selectedMsg carries the outcome of one navigation step
type selectedMsg struct {
	scope hunk.Scope
	sel   nav.Selection
	err   error
}

// previewMsg carries the file content for a selected hunk
type previewMsg struct {
	sel         nav.Selection
	path        string
	raw         []string
	highlighted []string
	err         error
}

// refreshedMsg reports a finished refresh, background or forced
type refreshedMsg struct {
	scope  hunk.Scope
	forced bool
	count  int
	err    error
}

// changedMsg is a debounced batch of work tree changes
type changedMsg struct {
	paths []string
}

type watchErrMsg struct {
	err error
}

// clearHighlightMsg ends the highlight started with the same seq
type clearHighlightMsg struct {
	seq int
}

func (m Model) advanceCmd(scope hunk.Scope, dir nav.Direction) tea.Cmd {
	return func() tea.Msg {
		sel, err := m.nav.Advance(m.ctx, scope, dir)
		return selectedMsg{scope: scope, sel: sel, err: err}
	}
}

func (m Model) refreshCmd(scope hunk.Scope) tea.Cmd {
	return func() tea.Msg {
		hunks, err := m.cache.Refresh(m.ctx, scope)
		return refreshedMsg{scope: scope, forced: true, count: len(hunks), err: err}
	}
}

// pendingCmd delivers the completion of scope's background refresh as a message
func (m Model) pendingCmd(scope hunk.Scope) tea.Cmd {
	done := m.cache.Pending(scope)
	if done == nil {
		return nil
	}
	return func() tea.Msg {
		<-done
		return refreshedMsg{scope: scope, count: len(m.cache.Snapshot(scope).Hunks)}
	}
}

func (m Model) previewCmd(sel nav.Selection) tea.Cmd {
	return func() tea.Msg {
		path, err := m.resolver.ResolvePath(m.ctx, sel.Hunk)
		if err != nil {
			return previewMsg{sel: sel, err: err}
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return previewMsg{sel: sel, path: path, err: err}
		}

		if bytes.IndexByte(data, 0) >= 0 {
			lines := []string{"(binary file)"}
			return previewMsg{sel: sel, path: path, raw: lines, highlighted: lines}
		}

		source := string(data)
		raw := strings.Split(strings.TrimSuffix(source, "\n"), "\n")
		return previewMsg{
			sel:         sel,
			path:        path,
			raw:         raw,
			highlighted: highlight.Lines(sel.Hunk.File, source),
		}
	}
}

// watchCmd waits for the next watcher batch or error
func (m Model) watchCmd() tea.Cmd {
	if m.changes == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case paths, ok := <-m.changes:
			if !ok {
				return nil
			}
			return changedMsg{paths: paths}
		case err, ok := <-m.watchErrs:
			if !ok {
				return nil
			}
			return watchErrMsg{err: err}
		}
	}
}

func clearHighlightCmd(d time.Duration, seq int) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return clearHighlightMsg{seq: seq}
	})
}
