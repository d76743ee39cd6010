package ui

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/kateleext/hunknav/internal/hunk"
)

// 109=cyan, 241=dim, 252=bright
var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("109"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	brightStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("167"))
	hunkGutter     = lipgloss.NewStyle().Foreground(lipgloss.Color("109"))
	tableBorder    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	tableHeader    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252")).Padding(0, 1)
	tableCell      = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Padding(0, 1)
	tableCursorRow = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("109")).Padding(0, 1)
)

// highlightBg is the 256-color background applied to hunk lines while highlighted
const highlightBg = "\x1b[48;5;238m"

// View implements tea.Model
func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}

	var body string
	if m.showList {
		body = m.listView()
	} else if m.colored == nil {
		body = lipgloss.Place(m.width, m.bodyHeight(), lipgloss.Center, lipgloss.Center, dimStyle.Render("no hunk selected"))
	} else {
		body = m.viewport.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(),
		body,
		m.statusView(),
		m.help.View(m.keys),
	)
}

func (m Model) headerView() string {
	now := m.now()
	parts := []string{titleStyle.Render("hunknav"), dimStyle.Render(filepath.Base(m.dir))}
	for _, scope := range hunk.Scopes {
		st := newScopeStatus(scope, m.cache.Snapshot(scope), m.nav.Cursor(scope), now)
		style := dimStyle
		if scope == m.scope {
			style = brightStyle
		}
		label := st.Label()
		if st.Loaded && st.Age >= time.Second {
			label += " " + st.Age.Round(time.Second).String()
		}
		parts = append(parts, style.Render(label))
	}
	return truncate(strings.Join(parts, dimStyle.Render("  │  ")), m.width)
}

func (m Model) statusView() string {
	line := m.status
	if m.hasSel && m.path != "" && !m.statusErr {
		line = fmt.Sprintf("%s  %s", line, dimStyle.Render(m.path))
	}
	if m.statusErr {
		return truncate(errorStyle.Render(line), m.width)
	}
	return truncate(brightStyle.Render(line), m.width)
}

// renderContent pushes the wrapped lines into the viewport
func (m *Model) renderContent() {
	contentWidth := max(m.width-gutterWidth, 10)
	var b strings.Builder
	for i, vl := range m.lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		gutter := dimStyle.Render(vl.Gutter)
		if vl.InHunk {
			gutter = hunkGutter.Render(vl.Gutter)
		}
		b.WriteString(gutter)

		text := vl.Text
		if m.highlightOn && vl.InHunk {
			pad := max(contentWidth-VisibleWidth(text), 0)
			text = InjectBackground(text+strings.Repeat(" ", pad), highlightBg) + ansiReset
		}
		b.WriteString(text)
	}
	m.viewport.SetContent(b.String())
}

// listView renders the current scope's hunks as a table, windowed around the cursor
func (m Model) listView() string {
	hunks := m.cache.Snapshot(m.scope).Hunks
	if len(hunks) == 0 {
		return lipgloss.Place(m.width, m.bodyHeight(), lipgloss.Center, lipgloss.Center,
			dimStyle.Render(fmt.Sprintf("[%s] no hunks", m.scope)))
	}

	cursor := m.nav.Cursor(m.scope) - 1
	start, end := listWindow(len(hunks), cursor, max(m.bodyHeight()-4, 1))

	rows := make([][]string, 0, end-start)
	for i := start; i < end; i++ {
		h := hunks[i]
		span := strconv.Itoa(h.Line)
		if h.EndLine > h.Line {
			span = fmt.Sprintf("%d-%d", h.Line, h.EndLine)
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), h.File, span, h.Kind.String()})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(tableBorder).
		Headers("#", "file", "lines", "kind").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return tableHeader
			case start+row == cursor:
				return tableCursorRow
			default:
				return tableCell
			}
		})

	return lipgloss.NewStyle().Height(m.bodyHeight()).MaxHeight(m.bodyHeight()).Render(t.Render())
}

// listWindow picks the [start, end) slice of n rows to show, keeping cursor visible
func listWindow(n, cursor, size int) (int, int) {
	if n <= size {
		return 0, n
	}
	start := max(cursor-size/2, 0)
	if start+size > n {
		start = n - size
	}
	return start, start + size
}

func truncate(s string, width int) string {
	if width <= 0 {
		return s
	}
	return lipgloss.NewStyle().MaxWidth(width).Render(s)
}
