package nav

import (
	"context"
	"fmt"
	"sync"

	"github.com/kateleext/hunknav/internal/hunk"
)

// Direction is the step applied to a cursor
type Direction int

const (
	Forward  Direction = 1
	Backward Direction = -1
)

// HunkSource is the part of the cache the navigator needs
type HunkSource interface {
	Get(ctx context.Context, scope hunk.Scope, force bool) ([]hunk.Hunk, error)
}

// Selection is the outcome of one navigation step
type Selection struct {
	Scope   hunk.Scope
	Hunk    hunk.Hunk
	Index   int // 1-based position of Hunk
	Total   int
	Wrapped bool
}

// Empty reports the no-hunks outcome
func (s Selection) Empty() bool {
	return s.Total == 0
}

// Message renders the selection as a short notification
func (s Selection) Message() string {
	if s.Empty() {
		return fmt.Sprintf("[%s] no hunks", s.Scope)
	}
	msg := fmt.Sprintf("[%s] %d/%d %s", s.Scope, s.Index, s.Total, s.Hunk)
	if s.Wrapped {
		msg += " (wrapped)"
	}
	return msg
}

// Navigator keeps a 1-based cursor per scope; 0 means navigation has not started
type Navigator struct {
	hunks HunkSource

	mu      sync.Mutex
	cursors map[hunk.Scope]int
}

// New creates a navigator reading hunks from src
func New(src HunkSource) *Navigator {
	return &Navigator{
		hunks:   src,
		cursors: make(map[hunk.Scope]int),
	}
}

// Advance moves scope's cursor one step in dir, wrapping at either end
func (n *Navigator) Advance(ctx context.Context, scope hunk.Scope, dir Direction) (Selection, error) {
	hunks, err := n.hunks.Get(ctx, scope, false)
	if err != nil {
		return Selection{}, err
	}

	sel := Selection{Scope: scope, Total: len(hunks)}
	if len(hunks) == 0 {
		return sel, nil
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	cur := n.cursors[scope]
	// The sequence may have shrunk since the cursor was stored
	if cur < 0 || cur > len(hunks) {
		cur = 0
	}

	next := cur + int(dir)
	switch {
	case next > len(hunks):
		next = 1
		sel.Wrapped = true
	case next < 1:
		next = len(hunks)
		sel.Wrapped = true
	}

	n.cursors[scope] = next
	sel.Index = next
	sel.Hunk = hunks[next-1]
	return sel, nil
}

// Cursor returns scope's current cursor
func (n *Navigator) Cursor(scope hunk.Scope) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.cursors[scope]
}

// Reset clears scope's cursor back to unset
func (n *Navigator) Reset(scope hunk.Scope) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.cursors, scope)
}

// NextLocal moves to the next local hunk
func (n *Navigator) NextLocal(ctx context.Context) (Selection, error) {
	return n.Advance(ctx, hunk.ScopeLocal, Forward)
}

// PrevLocal moves to the previous local hunk
func (n *Navigator) PrevLocal(ctx context.Context) (Selection, error) {
	return n.Advance(ctx, hunk.ScopeLocal, Backward)
}

// NextRemote moves to the next remote hunk
func (n *Navigator) NextRemote(ctx context.Context) (Selection, error) {
	return n.Advance(ctx, hunk.ScopeRemote, Forward)
}

// PrevRemote moves to the previous remote hunk
func (n *Navigator) PrevRemote(ctx context.Context) (Selection, error) {
	return n.Advance(ctx, hunk.ScopeRemote, Backward)
}
