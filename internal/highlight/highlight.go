package highlight

import (
	"bytes"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

const ansiReset = "\x1b[0m"

// Theme is a muted palette that reads well under the hunk highlight background
var Theme = styleOrFallback("algol")

func styleOrFallback(name string) *chroma.Style {
	if s := styles.Get(name); s != nil {
		return s
	}
	return styles.Fallback
}

// Lines highlights source and returns one ANSI string per source line.
// On any lexer or formatter failure the plain lines are returned.
func Lines(filename, source string) []string {
	plain := splitLines(source)

	lexer := lexers.Match(filename)
	if lexer == nil {
		lexer = lexers.Analyse(source)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, source)
	if err != nil {
		return plain
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, Theme, iterator); err != nil {
		return plain
	}

	out := splitLines(buf.String())
	if len(out) != len(plain) {
		// Formatter merged or split lines; keep line numbers honest
		return plain
	}
	for i, line := range out {
		if !strings.HasSuffix(line, ansiReset) {
			out[i] = line + ansiReset
		}
	}
	return out
}

// splitLines splits on newlines without producing a trailing empty line
func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return []string{}
	}
	return strings.Split(s, "\n")
}
