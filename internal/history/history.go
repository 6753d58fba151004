// Package history tracks operator selections with undo/redo semantics.
//
// Two kinds of log exist: a ClickLog of anchor placements shared by all
// targets, and one EditLog of region selections per target. Both follow the
// standard undo/redo contract: recording a new entry while the cursor is not
// at the end discards everything after the cursor.
package history

import (
	"mos-align/pkg/geometry"
)

// EditKind distinguishes the two region selection actions.
type EditKind int

const (
	// Include keeps only the interior of the rectangle; everything outside
	// it is removed from consideration.
	Include EditKind = iota
	// Exclude removes the interior of the rectangle from consideration.
	Exclude
)

func (k EditKind) String() string {
	switch k {
	case Include:
		return "include"
	case Exclude:
		return "exclude"
	default:
		return "unknown"
	}
}

// Edit is one recorded region selection for one target.
type Edit struct {
	Rect geometry.Box `json:"rect"`
	Kind EditKind     `json:"kind"`
}

// ClickLog is an undoable log of anchor placement clicks.
// The zero cursor state is -1, meaning no click has been made.
type ClickLog struct {
	clicks []geometry.Point2D
	cursor int
}

// NewClickLog returns an empty click log.
func NewClickLog() *ClickLog {
	return &ClickLog{cursor: -1}
}

// Record appends a click, discarding any entries past the cursor first.
// The cursor ends on the new entry.
func (l *ClickLog) Record(p geometry.Point2D) {
	if l.cursor < len(l.clicks)-1 {
		l.clicks = l.clicks[:l.cursor+1]
	}
	l.clicks = append(l.clicks, p)
	l.cursor = len(l.clicks) - 1
}

// Undo moves the cursor back one click. At the start it is a no-op.
func (l *ClickLog) Undo() {
	if l.cursor > 0 {
		l.cursor--
	}
}

// Redo moves the cursor forward one click. At the end it is a no-op.
func (l *ClickLog) Redo() {
	if l.cursor < len(l.clicks)-1 {
		l.cursor++
	}
}

// Current returns the click at the cursor. ok is false when nothing has
// been recorded yet.
func (l *ClickLog) Current() (p geometry.Point2D, ok bool) {
	if l.cursor < 0 {
		return geometry.Point2D{}, false
	}
	return l.clicks[l.cursor], true
}

// Len returns the number of recorded clicks, including undone ones.
func (l *ClickLog) Len() int { return len(l.clicks) }

// Cursor returns the current cursor index, or -1 before the first click.
func (l *ClickLog) Cursor() int { return l.cursor }

// EditLog is an undoable log of region edits for a single target.
// The cursor is in [-1, len-1]; -1 means no edits are applied.
type EditLog struct {
	edits  []Edit
	cursor int
}

// NewEditLog returns an empty edit log.
func NewEditLog() *EditLog {
	return &EditLog{cursor: -1}
}

// NewEditLogs returns n independently owned empty edit logs, one per target.
func NewEditLogs(n int) []*EditLog {
	logs := make([]*EditLog, n)
	for i := range logs {
		logs[i] = NewEditLog()
	}
	return logs
}

// Record clamps rect into bounds, normalizes it, and appends it, discarding
// any entries past the cursor first. Degenerate drags (start == end) are
// ignored; recorded reports whether an entry was stored.
func (l *EditLog) Record(rect geometry.Box, kind EditKind, bounds geometry.Box) (recorded bool) {
	if rect.X1 == rect.X2 && rect.Y1 == rect.Y2 {
		return false
	}
	if l.cursor < len(l.edits)-1 {
		l.edits = l.edits[:l.cursor+1]
	}
	l.edits = append(l.edits, Edit{Rect: rect.ClampTo(bounds), Kind: kind})
	l.cursor = len(l.edits) - 1
	return true
}

// Undo unapplies the edit at the cursor. With no applied edits it is a no-op.
func (l *EditLog) Undo() {
	if l.cursor >= 0 {
		l.cursor--
	}
}

// Redo reapplies the next undone edit, if any.
func (l *EditLog) Redo() {
	if l.cursor < len(l.edits)-1 {
		l.cursor++
	}
}

// Applied returns the edits from the start through the cursor, in order.
// Undone edits are never included. The returned slice must not be modified.
func (l *EditLog) Applied() []Edit {
	return l.edits[:l.cursor+1]
}

// Len returns the number of recorded edits, including undone ones.
func (l *EditLog) Len() int { return len(l.edits) }

// Cursor returns the current cursor index, or -1 when no edits are applied.
func (l *EditLog) Cursor() int { return l.cursor }
