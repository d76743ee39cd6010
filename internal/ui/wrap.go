package ui

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"

	"github.com/kateleext/hunknav/internal/hunk"
)

const (
	ansiReset = "\x1b[0m"
	tabWidth  = 4

	numberWidth = 5
	gutterWidth = numberWidth + 3 // number, space, marker, space
)

// VisualLine represents one physical line in the viewport
type VisualLine struct {
	LogicalIndex int    // 0-based index into the file's lines
	SegmentIndex int    // 0 = first segment, 1+ = continuations
	Gutter       string // line number and kind marker, blank for continuations
	Text         string // ANSI-highlighted content slice
	InHunk       bool
}

// InjectBackground replaces all ANSI resets with reset+background to maintain bg color
func InjectBackground(s string, bgCode string) string {
	if bgCode == "" {
		return s
	}
	return bgCode + strings.ReplaceAll(s, ansiReset, ansiReset+bgCode)
}

// countLeadingSpaces returns the indent width of s, counting tabs as tabWidth
func countLeadingSpaces(s string) int {
	count := 0
	for _, r := range s {
		switch r {
		case ' ':
			count++
		case '\t':
			count += tabWidth
		default:
			return count
		}
	}
	return count
}

func runeVisualWidth(r rune) int {
	if r == '\t' {
		return tabWidth
	}
	return runewidth.RuneWidth(r)
}

// VisibleWidth returns visual column width, ignoring ANSI sequences
func VisibleWidth(s string) int {
	width := 0
	for i := 0; i < len(s); {
		if isANSIStart(s, i) {
			i = skipANSI(s, i)
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		width += runeVisualWidth(r)
		i += size
	}
	return width
}

func isANSIStart(s string, i int) bool {
	if i+1 >= len(s) {
		return false
	}
	return s[i] == 0x1b && s[i+1] == '['
}

func skipANSI(s string, i int) int {
	if !isANSIStart(s, i) {
		return i + 1
	}
	for j := i + 2; j < len(s); j++ {
		if b := s[j]; b >= 0x40 && b <= 0x7E {
			return j + 1
		}
	}
	return len(s)
}

// sliceANSIAware cuts s after maxWidth visible columns. It returns the cut
// content, the rest of s, and the SGR codes active at the cut so the next
// segment can resume them.
func sliceANSIAware(s string, maxWidth int) (content string, remainder string, activeANSI string) {
	if maxWidth <= 0 {
		return "", s, ""
	}

	var result, current strings.Builder
	width := 0
	i := 0

	for i < len(s) {
		if isANSIStart(s, i) {
			start := i
			i = skipANSI(s, i)
			code := s[start:i]
			result.WriteString(code)
			if code == ansiReset {
				current.Reset()
			} else {
				current.WriteString(code)
			}
			continue
		}

		r, size := utf8.DecodeRuneInString(s[i:])
		rw := runeVisualWidth(r)
		if width+rw > maxWidth {
			break
		}
		if r == '\t' {
			result.WriteString(strings.Repeat(" ", tabWidth))
		} else {
			result.WriteString(s[i : i+size])
		}
		width += rw
		i += size
	}

	content = result.String()
	if current.Len() > 0 {
		content += ansiReset
		activeANSI = current.String()
	}
	if i < len(s) {
		remainder = s[i:]
	}
	return content, remainder, activeANSI
}

// gutterFor renders the line number column with the hunk kind marker
func gutterFor(lineNum int, h hunk.Hunk, inHunk bool) string {
	marker := "·"
	if inHunk {
		switch h.Kind {
		case hunk.KindAdd:
			marker = "+"
		case hunk.KindChange:
			marker = "~"
		case hunk.KindDelete:
			marker = "-"
		}
	}
	return fmt.Sprintf("%*d %s ", numberWidth, lineNum, marker)
}

// wrapHighlightedLine splits one highlighted line into VisualLine segments
// with hanging indent support - continuation lines preserve leading whitespace
func wrapHighlightedLine(line, rawLine string, logicalIndex, maxWidth int, gutter string, inHunk bool) []VisualLine {
	if maxWidth <= gutterWidth {
		maxWidth = gutterWidth + 10
	}
	contentWidth := maxWidth - gutterWidth

	hangingIndent := min(countLeadingSpaces(rawLine), contentWidth/2)
	hangingIndentStr := strings.Repeat(" ", hangingIndent)
	contGutter := strings.Repeat(" ", gutterWidth)

	var result []VisualLine
	remaining := line
	activeANSI := ""

	for segment := 0; ; segment++ {
		if activeANSI != "" && segment > 0 {
			remaining = activeANSI + remaining
		}

		availWidth := contentWidth
		if segment > 0 && hangingIndent > 0 {
			availWidth = max(contentWidth-hangingIndent, 10)
		}

		content, rest, nextANSI := sliceANSIAware(remaining, availWidth)

		vl := VisualLine{
			LogicalIndex: logicalIndex,
			SegmentIndex: segment,
			Gutter:       gutter,
			Text:         content,
			InHunk:       inHunk,
		}
		if segment > 0 {
			vl.Gutter = contGutter
			vl.Text = hangingIndentStr + content
		}
		result = append(result, vl)

		if rest == "" || VisibleWidth(rest) == 0 {
			return result
		}
		remaining = rest
		activeANSI = nextANSI
	}
}

// wrapAllLines wraps every line of a file for the given width, marking the
// lines that fall inside h
func wrapAllLines(highlighted, rawLines []string, h hunk.Hunk, maxWidth int) []VisualLine {
	var result []VisualLine
	for i, line := range highlighted {
		lineNum := i + 1
		inHunk := h.Contains(lineNum)
		rawLine := ""
		if i < len(rawLines) {
			rawLine = rawLines[i]
		}
		result = append(result, wrapHighlightedLine(line, rawLine, i, maxWidth, gutterFor(lineNum, h, inHunk), inHunk)...)
	}
	return result
}

// firstVisualIndex returns the viewport row where logical line idx starts
func firstVisualIndex(lines []VisualLine, idx int) int {
	for i, vl := range lines {
		if vl.LogicalIndex == idx && vl.SegmentIndex == 0 {
			return i
		}
	}
	return 0
}
