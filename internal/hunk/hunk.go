package hunk

import "fmt"

// Kind classifies a changed region
type Kind string

const (
	KindAdd    Kind = "add"    // lines only added
	KindDelete Kind = "delete" // lines only removed
	KindChange Kind = "change" // lines replaced
)

func (k Kind) String() string {
	return string(k)
}

// Scope selects which diff a hunk sequence came from
type Scope string

const (
	ScopeLocal  Scope = "local"  // working tree vs index
	ScopeRemote Scope = "remote" // working tree vs remote ref or PR
)

// Scopes lists every scope in display order
var Scopes = []Scope{ScopeLocal, ScopeRemote}

func (s Scope) String() string {
	return string(s)
}

// Hunk is one contiguous changed region of one file.
// Line and EndLine are 1-based and diff-relative; they are not clamped to the
// file's current length.
type Hunk struct {
	File    string
	Line    int
	EndLine int
	Kind    Kind
}

// Lines returns the number of lines the hunk spans
func (h Hunk) Lines() int {
	return h.EndLine - h.Line + 1
}

// Contains reports whether line falls inside the hunk
func (h Hunk) Contains(line int) bool {
	return line >= h.Line && line <= h.EndLine
}

func (h Hunk) String() string {
	if h.EndLine > h.Line {
		return fmt.Sprintf("%s:%d-%d (%s)", h.File, h.Line, h.EndLine, h.Kind)
	}
	return fmt.Sprintf("%s:%d (%s)", h.File, h.Line, h.Kind)
}

// File groups the hunks of one path
type File struct {
	Path  string
	Hunks []Hunk
}

// Counts tallies hunks per kind
type Counts struct {
	Add    int
	Delete int
	Change int
}

// Total returns the number of hunks counted
func (c Counts) Total() int {
	return c.Add + c.Delete + c.Change
}

// Summary counts hunks per kind
func Summary(hunks []Hunk) Counts {
	var c Counts
	for _, h := range hunks {
		switch h.Kind {
		case KindAdd:
			c.Add++
		case KindDelete:
			c.Delete++
		case KindChange:
			c.Change++
		}
	}
	return c
}
