package ui

import (
	"fmt"
	"time"

	"github.com/kateleext/hunknav/internal/cache"
	"github.com/kateleext/hunknav/internal/hunk"
)

// ScopeStatus captures the immutable per-scope state needed to render a frame
type ScopeStatus struct {
	Scope      hunk.Scope
	Counts     hunk.Counts
	Cursor     int
	Refreshing bool
	Stale      bool
	Age        time.Duration
	Loaded     bool
}

func newScopeStatus(scope hunk.Scope, e cache.Entry, cursor int, now time.Time) ScopeStatus {
	st := ScopeStatus{
		Scope:      scope,
		Counts:     hunk.Summary(e.Hunks),
		Cursor:     cursor,
		Refreshing: e.Refreshing,
		Stale:      e.Stale,
		Loaded:     !e.FetchedAt.IsZero(),
	}
	if st.Loaded {
		st.Age = now.Sub(e.FetchedAt)
	}
	return st
}

// Label renders the status as "local 2/5 +1 -0 ~4"
func (s ScopeStatus) Label() string {
	if !s.Loaded {
		return fmt.Sprintf("%s -", s.Scope)
	}
	label := fmt.Sprintf("%s %d/%d +%d -%d ~%d",
		s.Scope, s.Cursor, s.Counts.Total(), s.Counts.Add, s.Counts.Delete, s.Counts.Change)
	switch {
	case s.Refreshing:
		label += " ↻"
	case s.Stale:
		label += " *"
	}
	return label
}
