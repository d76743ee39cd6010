package ui

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/kateleext/hunknav/internal/cache"
	"github.com/kateleext/hunknav/internal/hunk"
	"github.com/kateleext/hunknav/internal/nav"
)

// Navigator steps through a scope's hunks
type Navigator interface {
	Advance(ctx context.Context, scope hunk.Scope, dir nav.Direction) (nav.Selection, error)
	Cursor(scope hunk.Scope) int
}

// HunkCache is the part of the cache the UI drives directly
type HunkCache interface {
	Refresh(ctx context.Context, scope hunk.Scope) ([]hunk.Hunk, error)
	Invalidate(scope hunk.Scope)
	Pending(scope hunk.Scope) <-chan struct{}
	Snapshot(scope hunk.Scope) cache.Entry
}

// PathResolver maps a hunk to a readable file
type PathResolver interface {
	ResolvePath(ctx context.Context, h hunk.Hunk) (string, error)
}

// Options wires the model to its collaborators
type Options struct {
	Dir       string
	Navigator Navigator
	Cache     HunkCache
	Resolver  PathResolver

	// Changes and WatchErrors are nil when watching is disabled
	Changes     <-chan []string
	WatchErrors <-chan error

	HighlightDuration time.Duration
	Logger            zerolog.Logger
	Now               func() time.Time
}

// Model is the bubbletea model
type Model struct {
	ctx       context.Context
	dir       string
	nav       Navigator
	cache     HunkCache
	resolver  PathResolver
	changes   <-chan []string
	watchErrs <-chan error
	log       zerolog.Logger
	now       func() time.Time

	highlightFor time.Duration

	keys     keyMap
	help     help.Model
	viewport viewport.Model
	ready    bool

	scope   hunk.Scope
	sel     nav.Selection
	hasSel  bool
	path    string
	raw     []string
	colored []string
	lines   []VisualLine

	status    string
	statusErr bool

	highlightOn  bool
	highlightSeq int
	showList     bool

	// waiting tracks scopes with a pendingCmd already listening
	waiting map[hunk.Scope]bool

	width  int
	height int
}

// New creates a new UI model
func New(opts Options) Model {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return Model{
		ctx:          context.Background(),
		dir:          opts.Dir,
		nav:          opts.Navigator,
		cache:        opts.Cache,
		resolver:     opts.Resolver,
		changes:      opts.Changes,
		watchErrs:    opts.WatchErrors,
		log:          opts.Logger.With().Str("component", "ui").Logger(),
		now:          now,
		highlightFor: opts.HighlightDuration,
		keys:         defaultKeyMap(),
		help:         help.New(),
		scope:        hunk.ScopeLocal,
		status:       "n/p step through local hunks, N/P through remote",
		waiting:      make(map[hunk.Scope]bool),
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(tea.SetWindowTitle("hunknav"), m.watchCmd())
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		if !m.ready {
			m.viewport = viewport.New(msg.Width, m.bodyHeight())
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = m.bodyHeight()
		}
		m.rewrap()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.NextLocal):
			return m, m.advanceCmd(hunk.ScopeLocal, nav.Forward)
		case key.Matches(msg, m.keys.PrevLocal):
			return m, m.advanceCmd(hunk.ScopeLocal, nav.Backward)
		case key.Matches(msg, m.keys.NextRemote):
			return m, m.advanceCmd(hunk.ScopeRemote, nav.Forward)
		case key.Matches(msg, m.keys.PrevRemote):
			return m, m.advanceCmd(hunk.ScopeRemote, nav.Backward)
		case key.Matches(msg, m.keys.RefreshLocal):
			m.setStatus(fmt.Sprintf("[%s] refreshing", hunk.ScopeLocal), false)
			return m, m.refreshCmd(hunk.ScopeLocal)
		case key.Matches(msg, m.keys.RefreshRemote):
			m.setStatus(fmt.Sprintf("[%s] refreshing", hunk.ScopeRemote), false)
			return m, m.refreshCmd(hunk.ScopeRemote)
		case key.Matches(msg, m.keys.ToggleList):
			m.showList = !m.showList
			return m, nil
		}

	case selectedMsg:
		return m.handleSelected(msg)

	case previewMsg:
		return m.handlePreview(msg)

	case clearHighlightMsg:
		if msg.seq == m.highlightSeq && m.highlightOn {
			m.highlightOn = false
			m.renderContent()
		}
		return m, nil

	case refreshedMsg:
		delete(m.waiting, msg.scope)
		if msg.err != nil {
			m.log.Warn().Err(msg.err).Str("scope", msg.scope.String()).Msg("Refresh failed")
			m.setStatus(fmt.Sprintf("[%s] refresh failed: %v", msg.scope, msg.err), true)
			return m, nil
		}
		if msg.forced {
			m.setStatus(fmt.Sprintf("[%s] refreshed: %d hunks", msg.scope, msg.count), false)
		}
		return m, nil

	case changedMsg:
		m.log.Debug().Strs("paths", msg.paths).Msg("Work tree changed")
		m.cache.Invalidate(hunk.ScopeLocal)
		cmds := []tea.Cmd{m.watchCmd()}
		if m.hasSel && slices.Contains(msg.paths, m.sel.Hunk.File) {
			cmds = append(cmds, m.previewCmd(m.sel))
		}
		return m, tea.Batch(cmds...)

	case watchErrMsg:
		m.log.Warn().Err(msg.err).Msg("Watcher error")
		m.setStatus(fmt.Sprintf("watch: %v", msg.err), true)
		return m, m.watchCmd()
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) handleSelected(msg selectedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.log.Warn().Err(msg.err).Str("scope", msg.scope.String()).Msg("Navigation failed")
		m.setStatus(fmt.Sprintf("[%s] %v", msg.scope, msg.err), true)
		return m, nil
	}

	m.scope = msg.scope
	m.setStatus(msg.sel.Message(), false)
	pending := m.listenPending(msg.scope)

	if msg.sel.Empty() {
		m.hasSel = false
		m.sel = msg.sel
		m.clearPreview()
		return m, pending
	}

	m.sel = msg.sel
	m.hasSel = true
	return m, tea.Batch(m.previewCmd(msg.sel), pending)
}

func (m Model) handlePreview(msg previewMsg) (tea.Model, tea.Cmd) {
	if !m.hasSel || msg.sel != m.sel {
		return m, nil
	}
	if msg.err != nil {
		m.log.Warn().Err(msg.err).Str("file", msg.sel.Hunk.File).Msg("Preview failed")
		m.setStatus(fmt.Sprintf("%s: %v", msg.sel.Message(), msg.err), true)
		m.clearPreview()
		return m, nil
	}

	m.path = msg.path
	m.raw = msg.raw
	m.colored = msg.highlighted
	m.highlightOn = m.highlightFor > 0
	m.highlightSeq++
	m.rewrap()
	m.scrollToHunk()

	if !m.highlightOn {
		return m, nil
	}
	return m, clearHighlightCmd(m.highlightFor, m.highlightSeq)
}

// listenPending starts at most one pendingCmd per scope
func (m Model) listenPending(scope hunk.Scope) tea.Cmd {
	if m.waiting[scope] {
		return nil
	}
	cmd := m.pendingCmd(scope)
	if cmd != nil {
		m.waiting[scope] = true
	}
	return cmd
}

func (m *Model) setStatus(s string, isErr bool) {
	m.status = s
	m.statusErr = isErr
}

func (m *Model) clearPreview() {
	m.path = ""
	m.raw = nil
	m.colored = nil
	m.lines = nil
	m.highlightOn = false
	m.viewport.SetContent("")
}

// bodyHeight is the terminal height minus header, status line and help
func (m Model) bodyHeight() int {
	return max(m.height-3, 1)
}

// rewrap recomputes visual lines for the current width
func (m *Model) rewrap() {
	if !m.ready || m.colored == nil {
		return
	}
	m.lines = wrapAllLines(m.colored, m.raw, m.sel.Hunk, m.width)
	m.renderContent()
}

// targetLine is the hunk's start line clamped to the file, as a 0-based index
func (m Model) targetLine() int {
	if len(m.raw) == 0 {
		return 0
	}
	return min(max(m.sel.Hunk.Line, 1), len(m.raw)) - 1
}

// scrollToHunk places the hunk a third of the way down the viewport
func (m *Model) scrollToHunk() {
	row := firstVisualIndex(m.lines, m.targetLine())
	m.viewport.SetYOffset(max(row-m.viewport.Height/3, 0))
}
