package hunk

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"
)

var (
	// diff --git a/<path> b/<path>, optionally quoted when the path has special characters
	fileHeaderRegex = regexp.MustCompile(`^diff --git "?a/(.*?)"? "?b/(.*?)"?$`)

	// @@ -old_start[,old_count] +new_start[,new_count] @@ [section]
	hunkHeaderRegex = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)
)

// Parse converts unified diff text into hunks, in the order they appear
func Parse(raw string) []Hunk {
	var hunks []Hunk
	currentFile := ""

	scanner := bufio.NewScanner(strings.NewReader(raw))
	// Long minified lines must not stop the scan
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")

		if strings.HasPrefix(line, "diff --git ") {
			if file, ok := parseFileHeader(line); ok {
				currentFile = file
			}
			continue
		}

		if currentFile == "" || !strings.HasPrefix(line, "@@ ") {
			continue
		}

		if h, ok := parseHunkHeader(currentFile, line); ok {
			hunks = append(hunks, h)
		}
	}

	return hunks
}

// ParseFiles parses raw diff text and groups the hunks by file
func ParseFiles(raw string) []File {
	var files []File
	for _, h := range Parse(raw) {
		if n := len(files); n > 0 && files[n-1].Path == h.File {
			files[n-1].Hunks = append(files[n-1].Hunks, h)
			continue
		}
		files = append(files, File{Path: h.File, Hunks: []Hunk{h}})
	}
	return files
}

// parseFileHeader returns the b-side path of a diff --git line. A quoted
// b-side is C-style escaped by git (core.quotePath) and is unquoted here.
func parseFileHeader(line string) (string, bool) {
	if strings.HasSuffix(line, `"`) {
		if i := strings.LastIndex(line, ` "b/`); i >= 0 {
			if path, err := strconv.Unquote(line[i+1:]); err == nil {
				return strings.TrimPrefix(path, "b/"), true
			}
		}
	}
	m := fileHeaderRegex.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[2], true
}

// parseHunkHeader derives a hunk from one @@ header line
func parseHunkHeader(file, line string) (Hunk, bool) {
	m := hunkHeaderRegex.FindStringSubmatch(line)
	if m == nil {
		return Hunk{}, false
	}

	oldStart, ok1 := atoi(m[1], 0)
	oldCount, ok2 := atoi(m[2], 1)
	newStart, ok3 := atoi(m[3], 0)
	newCount, ok4 := atoi(m[4], 1)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return Hunk{}, false
	}

	h := Hunk{File: file}
	switch {
	case newCount == 0:
		// Pure deletion: point at the old position
		h.Kind = KindDelete
		h.Line = max(oldStart, 1)
		h.EndLine = h.Line
	case oldCount == 0:
		h.Kind = KindAdd
		h.Line = max(newStart, 1)
		h.EndLine = h.Line + newCount - 1
	default:
		h.Kind = KindChange
		h.Line = max(newStart, 1)
		h.EndLine = h.Line + newCount - 1
	}
	return h, true
}

// atoi parses a header number, returning def for an omitted group.
// It reports false when the number does not fit in an int.
func atoi(s string, def int) (int, bool) {
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
